package cache

import (
	"context"
	"testing"
	"time"
)

func TestNullCache(t *testing.T) {
	ctx := context.Background()
	c := NewNullCache()
	defer c.Close()

	// Get always returns miss
	data, hit, err := c.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if hit {
		t.Error("NullCache.Get should always return miss")
	}
	if data != nil {
		t.Error("NullCache.Get should return nil data")
	}

	// Set does nothing (no error)
	if err := c.Set(ctx, "key", []byte("value"), time.Hour); err != nil {
		t.Errorf("Set error: %v", err)
	}

	// Still a miss after Set
	_, hit, _ = c.Get(ctx, "key")
	if hit {
		t.Error("NullCache should not store data")
	}

	// Delete does nothing (no error)
	if err := c.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete error: %v", err)
	}
}

func TestFileCache(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache error: %v", err)
	}
	defer c.Close()

	// Miss before any write
	_, hit, err := c.Get(ctx, "sample:100:200")
	if err != nil || hit {
		t.Fatalf("expected clean miss, got hit=%v err=%v", hit, err)
	}

	// Round trip
	if err := c.Set(ctx, "sample:100:200", []byte("42.5"), TTLSample); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	data, hit, err := c.Get(ctx, "sample:100:200")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if !hit || string(data) != "42.5" {
		t.Errorf("Get = %q hit=%v, want 42.5 hit", data, hit)
	}

	// Expired entries are treated as misses
	if err := c.Set(ctx, "stale", []byte("x"), -time.Second); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if _, hit, _ := c.Get(ctx, "stale"); hit {
		t.Error("expired entry should miss")
	}

	// Delete is idempotent
	if err := c.Delete(ctx, "sample:100:200"); err != nil {
		t.Errorf("Delete error: %v", err)
	}
	if err := c.Delete(ctx, "sample:100:200"); err != nil {
		t.Errorf("second Delete error: %v", err)
	}
	if _, hit, _ := c.Get(ctx, "sample:100:200"); hit {
		t.Error("deleted entry should miss")
	}

	// Purge drops everything that remains
	if err := c.Set(ctx, "a", []byte("1"), 0); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if err := c.Set(ctx, "b", []byte("2"), 0); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	n, err := c.(*FileCache).Purge()
	if err != nil {
		t.Fatalf("Purge error: %v", err)
	}
	if n != 2 {
		t.Errorf("Purge removed %d entries, want 2", n)
	}
	if _, hit, _ := c.Get(ctx, "a"); hit {
		t.Error("purged entry should miss")
	}
}

func TestHash(t *testing.T) {
	// Test determinism
	h1 := Hash([]byte("hello"))
	h2 := Hash([]byte("hello"))
	if h1 != h2 {
		t.Error("Hash should be deterministic")
	}

	// Test different inputs produce different hashes
	h3 := Hash([]byte("world"))
	if h1 == h3 {
		t.Error("Different inputs should produce different hashes")
	}

	// Test hash length (SHA-256 produces 64 hex chars)
	if len(h1) != 64 {
		t.Errorf("Hash length should be 64, got %d", len(h1))
	}
}

func TestKeyer(t *testing.T) {
	k := NewDefaultKeyer()

	if got := k.SampleKey("1000:2000"); got != "sample:1000:2000" {
		t.Errorf("SampleKey = %q", got)
	}
	if got := k.ReportKey("abc"); got != "report:abc" {
		t.Errorf("ReportKey = %q", got)
	}

	scoped := NewScopedKeyer(k, "net:main:")
	if got := scoped.SampleKey("1000:2000"); got != "net:main:sample:1000:2000" {
		t.Errorf("scoped SampleKey = %q", got)
	}
	if got := scoped.ReportKey("abc"); got != "net:main:report:abc" {
		t.Errorf("scoped ReportKey = %q", got)
	}
}
