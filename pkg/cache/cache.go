// Package cache provides byte-level caching for expensive lookups,
// primarily elevation samples from slow raster providers.
//
// Three backends are provided:
//   - FileCache: directory of hashed JSON entries, for CLI usage
//   - RedisCache: shared cache for service deployments
//   - NullCache: disables caching
//
// Keys are namespaced through a [Keyer]; a [ScopedKeyer] adds a prefix for
// isolating multiple networks sharing one backend.
package cache

import (
	"context"
	"time"
)

// TTL defaults per key class.
const (
	// TTLSample is how long an elevation sample stays cached. Terrain
	// rasters change rarely; a day keeps repeated edit sessions cheap.
	TTLSample = 24 * time.Hour

	// TTLReport is how long cycle reports stay cached for the stats API.
	TTLReport = time.Hour
)

// Cache is the interface implemented by all backends.
type Cache interface {
	// Get retrieves a value. The second return reports a hit.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with a TTL. A zero TTL means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Keyer builds namespaced cache keys.
type Keyer interface {
	// SampleKey builds the key for an elevation sample at a quantized
	// coordinate key.
	SampleKey(nodeKey string) string

	// ReportKey builds the key for a recalculation cycle report.
	ReportKey(cycleID string) string
}

// DefaultKeyer is the standard key layout.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// SampleKey returns "sample:<nodeKey>".
func (DefaultKeyer) SampleKey(nodeKey string) string { return "sample:" + nodeKey }

// ReportKey returns "report:<cycleID>".
func (DefaultKeyer) ReportKey(cycleID string) string { return "report:" + cycleID }

// ScopedKeyer wraps a Keyer with a prefix so multiple networks can share
// one cache backend without key collisions.
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer that prefixes every key.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

// SampleKey prefixes the inner sample key.
func (s *ScopedKeyer) SampleKey(nodeKey string) string {
	return s.prefix + s.inner.SampleKey(nodeKey)
}

// ReportKey prefixes the inner report key.
func (s *ScopedKeyer) ReportKey(cycleID string) string {
	return s.prefix + s.inner.ReportKey(cycleID)
}
