package elevation

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"os"

	"github.com/openhydro/sewerflow/pkg/cache"
	"github.com/openhydro/sewerflow/pkg/errors"
	"github.com/openhydro/sewerflow/pkg/geometry"
	"github.com/openhydro/sewerflow/pkg/observability"
)

// CachedSampler memoizes sample results per quantized coordinate key so
// repeated recalculations over the same terrain do not re-sample.
type CachedSampler struct {
	inner     Sampler
	cache     cache.Cache
	keyer     cache.Keyer
	tolerance float64
}

// NewCachedSampler wraps inner with a cache. A nil cache disables caching.
func NewCachedSampler(inner Sampler, c cache.Cache, tolerance float64) *CachedSampler {
	if c == nil {
		c = cache.NewNullCache()
	}
	return &CachedSampler{
		inner:     inner,
		cache:     c,
		keyer:     cache.DefaultKeyer{},
		tolerance: tolerance,
	}
}

type cachedSample struct {
	Value float64 `json:"value"`
	Miss  bool    `json:"miss,omitempty"`
}

// Sample returns the cached elevation for p's quantized key, sampling the
// inner sampler on a cache miss. Negative sample results (no coverage) are
// cached too, so dead zones are not re-probed every cycle.
func (s *CachedSampler) Sample(ctx context.Context, p geometry.Point) (float64, error) {
	key := s.keyer.SampleKey(p.Key(s.tolerance))

	if raw, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		var entry cachedSample
		if err := json.Unmarshal(raw, &entry); err == nil {
			observability.Cache().OnCacheHit(ctx, "sample")
			if entry.Miss {
				return 0, ErrNoSample
			}
			return entry.Value, nil
		}
	}
	observability.Cache().OnCacheMiss(ctx, "sample")

	v, err := s.inner.Sample(ctx, p)
	switch {
	case err == nil:
		s.store(ctx, key, cachedSample{Value: v})
		return v, nil
	case stderrors.Is(err, ErrNoSample):
		s.store(ctx, key, cachedSample{Miss: true})
		return 0, ErrNoSample
	default:
		return 0, err
	}
}

func (s *CachedSampler) store(ctx context.Context, key string, entry cachedSample) {
	raw, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, cache.TTLSample); err == nil {
		observability.Cache().OnCacheSet(ctx, "sample", len(raw))
	}
}

// LoadGrid reads an elevation grid from a JSON file.
func LoadGrid(path string) (*Grid, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "reading elevation grid")
	}
	var g Grid
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "parsing elevation grid")
	}
	if g.CellSize <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "elevation grid cell size must be positive")
	}
	return &g, nil
}
