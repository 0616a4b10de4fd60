// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard
// dependencies on specific observability backends. Consumers can register
// hooks at startup to receive events about recalculation cycles, elevation
// sampling, and cache operations.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// This keeps the engine free of observability-framework imports while
// allowing different backends (OpenTelemetry, Prometheus, etc.) to be
// wired by main.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetEngineHooks(&myEngineHooks{})
//	    // ... run application
//	}
//
// The engine calls hooks to emit events:
//
//	observability.Engine().OnCycleStart(ctx, cycleID, len(events))
//	// ... run cycle ...
//	observability.Engine().OnCycleComplete(ctx, cycleID, duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// EngineHooks receives events from the recalculation engine.
type EngineHooks interface {
	// Cycle events
	OnCycleStart(ctx context.Context, cycleID string, eventCount int)
	OnCycleComplete(ctx context.Context, cycleID string, duration time.Duration, err error)

	// OnCascadeStop records a smart-cascade stop at a node: the computed
	// depth change stayed at or below the continuation threshold.
	OnCascadeStop(ctx context.Context, nodeKey string, delta float64)

	// OnConvergentUpdate records a convergent node re-arbitrating its
	// maximum depth.
	OnConvergentUpdate(ctx context.Context, nodeKey string, depth float64)
}

// SamplerHooks receives events from elevation samplers.
type SamplerHooks interface {
	// OnSample records an elevation lookup and whether a value was found.
	OnSample(ctx context.Context, found bool)
}

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// NoopEngineHooks is a no-op implementation of EngineHooks.
type NoopEngineHooks struct{}

func (NoopEngineHooks) OnCycleStart(context.Context, string, int)                    {}
func (NoopEngineHooks) OnCycleComplete(context.Context, string, time.Duration, error) {}
func (NoopEngineHooks) OnCascadeStop(context.Context, string, float64)               {}
func (NoopEngineHooks) OnConvergentUpdate(context.Context, string, float64)          {}

// NoopSamplerHooks is a no-op implementation of SamplerHooks.
type NoopSamplerHooks struct{}

func (NoopSamplerHooks) OnSample(context.Context, bool) {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

var (
	engineHooks  EngineHooks  = NoopEngineHooks{}
	samplerHooks SamplerHooks = NoopSamplerHooks{}
	cacheHooks   CacheHooks   = NoopCacheHooks{}
	hooksMu      sync.RWMutex
)

// SetEngineHooks registers custom engine hooks.
// This should be called once at application startup before any cycles run.
func SetEngineHooks(h EngineHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		engineHooks = h
	}
}

// SetSamplerHooks registers custom sampler hooks.
func SetSamplerHooks(h SamplerHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		samplerHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// Engine returns the registered engine hooks.
func Engine() EngineHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return engineHooks
}

// Sampler returns the registered sampler hooks.
func Sampler() SamplerHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return samplerHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	engineHooks = NoopEngineHooks{}
	samplerHooks = NoopSamplerHooks{}
	cacheHooks = NoopCacheHooks{}
}
