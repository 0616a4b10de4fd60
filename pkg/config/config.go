// Package config loads engine configuration from a TOML file with sane
// defaults for every option.
package config

import (
	"os"

	"github.com/BurntSushi/toml"

	"github.com/openhydro/sewerflow/pkg/elevation"
	"github.com/openhydro/sewerflow/pkg/errors"
	"github.com/openhydro/sewerflow/pkg/geometry"
)

// Config is the root configuration document.
type Config struct {
	Network   Network   `toml:"network"`
	Cascade   Cascade   `toml:"cascade"`
	Elevation Elevation `toml:"elevation"`
	Cache     Cache     `toml:"cache"`
	Snapshot  Snapshot  `toml:"snapshot"`
	Server    Server    `toml:"server"`
	Log       Log       `toml:"log"`
}

// Network controls topology construction and change detection.
type Network struct {
	// Tolerance is the coordinate quantization tolerance for endpoint
	// coincidence, in map units.
	Tolerance float64 `toml:"tolerance"`

	// MovementTolerance is the minimum endpoint displacement treated as a
	// real vertex move. It should exceed Tolerance, otherwise snapping
	// noise shows up as edits.
	MovementTolerance float64 `toml:"movement_tolerance"`
}

// Cascade holds the default depth parameters.
type Cascade struct {
	Epsilon      float64  `toml:"epsilon"`
	MinCover     float64  `toml:"min_cover"`
	Diameter     float64  `toml:"diameter"`
	Slope        float64  `toml:"slope"`
	InitialDepth *float64 `toml:"initial_depth"`
}

// Elevation selects the interpolation method and an optional terrain grid.
type Elevation struct {
	// Method is "sample-only" or "sample-with-interpolation".
	Method string `toml:"method"`

	// Grid is a path to a JSON elevation grid. Empty means no terrain
	// source beyond what the network file embeds.
	Grid string `toml:"grid"`
}

// Cache selects the sample/report cache backend.
type Cache struct {
	// Backend is "none", "file" or "redis".
	Backend string `toml:"backend"`

	// Dir is the file backend's directory. Empty means the user cache dir.
	Dir string `toml:"dir"`

	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
}

// Snapshot selects where committed topology snapshots are persisted.
type Snapshot struct {
	// Backend is "none", "file" or "mongo".
	Backend string `toml:"backend"`

	// Path is the file backend's snapshot file.
	Path string `toml:"path"`

	MongoURI        string `toml:"mongo_uri"`
	MongoDatabase   string `toml:"mongo_database"`
	MongoCollection string `toml:"mongo_collection"`
}

// Server controls the HTTP service.
type Server struct {
	// Listen is the address the serve command binds to.
	Listen string `toml:"listen"`
}

// Log controls the CLI logger.
type Log struct {
	// Level is debug, info, warn or error.
	Level string `toml:"level"`

	// Format is "text" or "json".
	Format string `toml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Network: Network{
			Tolerance:         geometry.DefaultTolerance,
			MovementTolerance: 0.01,
		},
		Cascade: Cascade{
			Epsilon:  0.01,
			MinCover: 1.0,
			Diameter: 0.2,
			Slope:    0.001,
		},
		Elevation: Elevation{
			Method: string(elevation.MethodInterpolate),
		},
		Cache: Cache{
			Backend:   "file",
			RedisAddr: "localhost:6379",
		},
		Snapshot: Snapshot{
			Backend:         "file",
			MongoDatabase:   "sewerflow",
			MongoCollection: "snapshots",
		},
		Server: Server{
			Listen: "localhost:8080",
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a TOML file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		cfg.applyEnv()
		return cfg, cfg.Validate()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(errors.ErrCodeInvalidPath, err, "reading config")
	}
	if err := toml.Unmarshal(raw, &cfg); err != nil {
		return cfg, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parsing config")
	}
	cfg.applyEnv()
	return cfg, cfg.Validate()
}

// applyEnv overlays credential and address settings from the environment,
// so deployments never need secrets in the config file.
func (c *Config) applyEnv() {
	if v := os.Getenv("SEWERFLOW_REDIS_ADDR"); v != "" {
		c.Cache.RedisAddr = v
	}
	if v := os.Getenv("SEWERFLOW_REDIS_PASSWORD"); v != "" {
		c.Cache.RedisPassword = v
	}
	if v := os.Getenv("SEWERFLOW_MONGO_URI"); v != "" {
		c.Snapshot.MongoURI = v
	}
	if v := os.Getenv("SEWERFLOW_LISTEN"); v != "" {
		c.Server.Listen = v
	}
}

// Validate checks option ranges and enum values.
func (c Config) Validate() error {
	if c.Network.Tolerance <= 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "network.tolerance must be positive")
	}
	if c.Network.MovementTolerance < c.Network.Tolerance {
		return errors.New(errors.ErrCodeInvalidConfig, "network.movement_tolerance must be at least network.tolerance")
	}
	if c.Cascade.Epsilon <= 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "cascade.epsilon must be positive")
	}
	if c.Cascade.MinCover < 0 || c.Cascade.Diameter < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "cascade cover and diameter must not be negative")
	}
	switch elevation.Method(c.Elevation.Method) {
	case elevation.MethodSampleOnly, elevation.MethodInterpolate:
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "elevation.method must be %q or %q",
			elevation.MethodSampleOnly, elevation.MethodInterpolate)
	}
	switch c.Cache.Backend {
	case "none", "file", "redis":
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "cache.backend must be none, file or redis")
	}
	switch c.Snapshot.Backend {
	case "none", "file", "mongo":
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "snapshot.backend must be none, file or mongo")
	}
	return nil
}

// Method returns the configured interpolation method.
func (c Config) Method() elevation.Method {
	return elevation.Method(c.Elevation.Method)
}
