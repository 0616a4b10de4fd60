package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	c := New(&bytes.Buffer{}, LogInfo)
	root := c.RootCommand()

	want := map[string]bool{
		"recalc":     false,
		"serve":      false,
		"inspect":    false,
		"export":     false,
		"cache":      false,
		"completion": false,
	}
	for _, cmd := range root.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestCacheDirRespectsXDG(t *testing.T) {
	oldXdg := os.Getenv("XDG_CACHE_HOME")
	defer os.Setenv("XDG_CACHE_HOME", oldXdg)

	os.Setenv("XDG_CACHE_HOME", "/tmp/xdg-cache")
	dir, err := cacheDir()
	if err != nil {
		t.Fatalf("cacheDir() error = %v", err)
	}
	if dir != filepath.Join("/tmp/xdg-cache", appName) {
		t.Errorf("cacheDir() = %q, want XDG path", dir)
	}
}

func TestStateDirRespectsXDG(t *testing.T) {
	oldXdg := os.Getenv("XDG_STATE_HOME")
	defer os.Setenv("XDG_STATE_HOME", oldXdg)

	os.Setenv("XDG_STATE_HOME", "/tmp/xdg-state")
	dir, err := stateDir()
	if err != nil {
		t.Fatalf("stateDir() error = %v", err)
	}
	if dir != filepath.Join("/tmp/xdg-state", appName) {
		t.Errorf("stateDir() = %q, want XDG path", dir)
	}
}

func TestLoggerContextRoundTrip(t *testing.T) {
	c := New(&bytes.Buffer{}, LogDebug)
	ctx := withLogger(context.Background(), c.Logger)

	if got := loggerFromContext(ctx); got != c.Logger {
		t.Error("loggerFromContext should return the attached logger")
	}
	if got := loggerFromContext(context.Background()); got == nil {
		t.Error("loggerFromContext should fall back to a usable logger")
	}
}

func TestLoadConfigDefaultsWithoutFlag(t *testing.T) {
	c := New(&bytes.Buffer{}, LogInfo)
	cfg, err := c.loadConfig()
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Cascade.Epsilon != 0.01 {
		t.Errorf("default epsilon = %v, want 0.01", cfg.Cascade.Epsilon)
	}
}
