package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openhydro/sewerflow/pkg/elevation"
	"github.com/openhydro/sewerflow/pkg/errors"
)

func writeConfig(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sewerflow.toml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, elevation.MethodInterpolate, cfg.Method())
	assert.Equal(t, 0.01, cfg.Cascade.Epsilon)
	assert.Equal(t, "localhost:8080", cfg.Server.Listen)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("SEWERFLOW_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("SEWERFLOW_MONGO_URI", "mongodb://db.internal:27017")
	t.Setenv("SEWERFLOW_LISTEN", "0.0.0.0:9000")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "redis.internal:6380", cfg.Cache.RedisAddr)
	assert.Equal(t, "mongodb://db.internal:27017", cfg.Snapshot.MongoURI)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Listen)
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[cascade]
epsilon = 0.02
min_cover = 1.5

[elevation]
method = "sample-only"

[cache]
backend = "redis"
redis_addr = "cache.internal:6379"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.02, cfg.Cascade.Epsilon)
	assert.Equal(t, 1.5, cfg.Cascade.MinCover)
	assert.Equal(t, elevation.MethodSampleOnly, cfg.Method())
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, "cache.internal:6379", cfg.Cache.RedisAddr)

	// Untouched sections keep their defaults.
	assert.Equal(t, Default().Network.Tolerance, cfg.Network.Tolerance)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"negative epsilon", "[cascade]\nepsilon = -1.0\n"},
		{"unknown method", "[elevation]\nmethod = \"guess\"\n"},
		{"unknown cache backend", "[cache]\nbackend = \"memcached\"\n"},
		{"unknown snapshot backend", "[snapshot]\nbackend = \"s3\"\n"},
		{"movement below tolerance", "[network]\ntolerance = 0.1\nmovement_tolerance = 0.01\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrCodeInvalidConfig), "got %v", err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidPath), "got %v", err)
}
