// Package cli implements the sewerflow command-line interface.
//
// Commands operate on JSON network files: recalc runs recalculation
// cycles, inspect browses segments interactively, export renders the
// topology as DOT or SVG, serve exposes the engine over HTTP, and cache
// manages the elevation sample cache. The CLI is built using cobra with
// charmbracelet/log for verbose logging.
package cli

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/openhydro/sewerflow/pkg/buildinfo"
	"github.com/openhydro/sewerflow/pkg/config"
)

// appName is the application name used for directories and display.
const appName = "sewerflow"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands
// registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Sewerflow maintains invert depths for sewerage networks",
		Long:         `Sewerflow builds the topology of a sewerage pipe network from segment geometry, detects edits, and recalculates elevations and invert depths for exactly the segments an edit can affect, cascading downstream only while the change stays meaningful.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "path to a sewerflow.toml config file")

	root.AddCommand(c.recalcCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.inspectCommand())
	root.AddCommand(c.exportCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// loadConfig resolves the effective configuration for a command run.
func (c *CLI) loadConfig() (config.Config, error) {
	return config.Load(c.configPath)
}

// cacheDir returns the cache directory using the XDG standard
// (~/.cache/sewerflow/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// stateDir returns where snapshots are stored by default
// (~/.local/state/sewerflow/).
func stateDir() (string, error) {
	if stateHome := os.Getenv("XDG_STATE_HOME"); stateHome != "" {
		return filepath.Join(stateHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state", appName), nil
}
