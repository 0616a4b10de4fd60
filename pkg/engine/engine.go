// Package engine drives complete recalculation cycles: diff the current
// geometry against the last committed snapshot, analyze impact, refresh
// elevations, cascade depths, write results back and commit a new
// snapshot.
//
// The engine owns the only mutable process-wide state, the last-committed
// snapshot. A cycle is all-or-nothing with respect to that snapshot: on
// failure the previous snapshot stays in place. Attribute writes from a
// partially completed cascade are tolerated as best-effort results that
// the next cycle corrects, since recomputation is idempotent.
package engine

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/openhydro/sewerflow/pkg/cascade"
	"github.com/openhydro/sewerflow/pkg/change"
	"github.com/openhydro/sewerflow/pkg/elevation"
	"github.com/openhydro/sewerflow/pkg/errors"
	"github.com/openhydro/sewerflow/pkg/geometry"
	"github.com/openhydro/sewerflow/pkg/impact"
	"github.com/openhydro/sewerflow/pkg/network"
	"github.com/openhydro/sewerflow/pkg/observability"
	"github.com/openhydro/sewerflow/pkg/provider"
	"github.com/openhydro/sewerflow/pkg/snapshot"
)

// Statistics accumulates counters across cycles.
type Statistics struct {
	VerticesMoved      int `json:"vertices_moved"`
	ElevationsUpdated  int `json:"elevations_updated"`
	DepthsRecalculated int `json:"depths_recalculated"`
	CascadeStops       int `json:"cascade_stops"`
	ConvergentUpdates  int `json:"convergent_updates"`
}

// Options configures an engine.
type Options struct {
	// Provider is the geometry and attribute source. Required.
	Provider provider.Provider

	// Sampler supplies terrain elevations. Nil means no terrain source;
	// only stored elevations are available.
	Sampler elevation.Sampler

	// Store persists committed snapshots. Nil means in-process only.
	Store snapshot.Store

	// SnapshotName keys the snapshot in the store, typically the network
	// file name.
	SnapshotName string

	// Tolerance is the coordinate quantization tolerance.
	Tolerance float64

	// MovementTolerance filters sub-threshold endpoint displacements.
	MovementTolerance float64

	// Method selects the elevation fill strategy.
	Method elevation.Method

	// Params are the default depth parameters.
	Params cascade.Params

	// Logger defaults to the package-level charm logger.
	Logger *log.Logger
}

// Report describes one recalculation cycle.
type Report struct {
	CycleID  string        `json:"cycle_id"`
	Duration time.Duration `json:"duration"`

	Events    []change.Event    `json:"-"`
	Impact    *impact.Set       `json:"-"`
	Elevation *elevation.Result `json:"-"`
	Cascade   *cascade.Result   `json:"-"`

	// EventCount and friends are the flat numbers for logs and the API.
	EventCount         int `json:"event_count"`
	ImpactedSegments   int `json:"impacted_segments"`
	ElevationsUpdated  int `json:"elevations_updated"`
	DepthsRecalculated int `json:"depths_recalculated"`
	CascadeStops       int `json:"cascade_stops"`
	ConvergentUpdates  int `json:"convergent_updates"`
	DeferredChains     int `json:"deferred_chains"`
	Failures           int `json:"failures"`
}

// Engine runs recalculation cycles over a provider. Cycles are serialized:
// an edit arriving while a cycle runs waits for the mutex, it is never
// interleaved.
type Engine struct {
	opts Options
	log  *log.Logger

	mu       sync.Mutex
	snapshot *change.Snapshot
	topo     *network.Topology
	stats    Statistics
}

// New builds an engine and loads the last committed snapshot from the
// store when one exists.
func New(ctx context.Context, opts Options) (*Engine, error) {
	if opts.Provider == nil {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "engine requires a provider")
	}
	if opts.Tolerance <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "engine requires a positive tolerance")
	}
	if opts.Method == "" {
		opts.Method = elevation.MethodInterpolate
	}
	if opts.Store == nil {
		opts.Store = snapshot.NewNullStore()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	e := &Engine{opts: opts, log: logger}

	snap, err := opts.Store.Load(ctx, opts.SnapshotName)
	if err != nil {
		return nil, err
	}
	e.snapshot = snap
	return e, nil
}

// Snapshot returns the last committed snapshot, or nil before the first
// committed cycle.
func (e *Engine) Snapshot() *change.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot
}

// Topology returns the topology committed by the last cycle, or nil.
func (e *Engine) Topology() *network.Topology {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.topo
}

// Statistics returns a copy of the accumulated counters.
func (e *Engine) Statistics() Statistics {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// OnGeometryChanged runs one recalculation cycle for whatever geometry
// edits happened since the last committed snapshot.
func (e *Engine) OnGeometryChanged(ctx context.Context) (*Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cycle(ctx, false)
}

// OnParametersChanged adopts new depth parameters and runs a full-network
// recalculation treating every segment as impacted.
func (e *Engine) OnParametersChanged(ctx context.Context, params cascade.Params) (*Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.opts.Params = params
	return e.cycle(ctx, true)
}

// Recalculate runs a full-network cycle with the current parameters,
// regardless of pending edits.
func (e *Engine) Recalculate(ctx context.Context) (*Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cycle(ctx, true)
}

// cycle runs one recalculation. full forces every segment into the
// impacted set instead of deriving it from change events.
func (e *Engine) cycle(ctx context.Context, full bool) (*Report, error) {
	start := time.Now()
	report := &Report{CycleID: uuid.NewString()}

	segments, err := e.opts.Provider.Segments(ctx)
	if err != nil {
		return nil, err
	}
	topo := network.Build(segments, e.opts.Tolerance)

	prev := e.snapshot
	if prev == nil {
		prev = change.Empty(e.opts.Tolerance)
	}
	events := prev.Diff(segments, e.opts.MovementTolerance)
	report.Events = events
	report.EventCount = len(events)

	if !full && len(events) == 0 {
		report.Duration = time.Since(start)
		e.log.Debug("no geometry changes", "cycle", report.CycleID)
		return report, nil
	}

	observability.Engine().OnCycleStart(ctx, report.CycleID, len(events))
	err = e.run(ctx, topo, prev, events, full, report)
	report.Duration = time.Since(start)
	observability.Engine().OnCycleComplete(ctx, report.CycleID, report.Duration, err)
	if err != nil {
		e.log.Error("cycle failed", "cycle", report.CycleID, "err", err)
		return report, err
	}

	e.log.Info("cycle complete",
		"cycle", report.CycleID,
		"events", report.EventCount,
		"impacted", report.ImpactedSegments,
		"depths", report.DepthsRecalculated,
		"stops", report.CascadeStops,
		"duration", report.Duration)
	return report, nil
}

func (e *Engine) run(ctx context.Context, topo *network.Topology, prev *change.Snapshot, events []change.Event, full bool, report *Report) error {
	var order, seeds []int64

	if full {
		var cyclic []int64
		order, cyclic = topo.OrderByComponent(nil)
		seeds = append(append(seeds, order...), cyclic...)
	} else {
		set, aerr := impact.Analyze(prev, topo, events)
		if aerr != nil {
			return errors.Wrap(errors.ErrCodeInternal, aerr, "analyzing impact")
		}
		report.Impact = set
		order = set.Order
		// Seed only the segments with a direct cause to change. Anything
		// further downstream is reached by the cascade itself, which stops
		// where deltas fall inside the tolerance.
		seeds = seedSet(set)
	}
	report.ImpactedSegments = len(order)

	// Phase 1: elevations, strictly before any depth is touched.
	updater := elevation.NewUpdater(e.sampler(), e.opts.Method, e.opts.Params.Slope)
	elevRes, err := updater.Update(ctx, topo, order)
	if err != nil {
		return err
	}
	report.Elevation = elevRes
	report.ElevationsUpdated = elevRes.Sampled + elevRes.Interpolated
	report.DeferredChains = len(elevRes.Deferred)
	for _, d := range elevRes.Deferred {
		e.log.Warn("chain deferred, no elevation source", "node", d.NodeKey, "segments", len(d.Segments))
	}

	// Phase 2: depths, excluding deferred chains.
	seeds = excludeDeferred(seeds, elevRes.Deferred)
	cascRes, err := cascade.Recalculate(ctx, topo, seeds, e.opts.Params)
	if err != nil {
		return err
	}
	report.Cascade = cascRes
	report.DepthsRecalculated = len(cascRes.Recalculated)
	report.CascadeStops = len(cascRes.CascadeStoppedAt)
	report.ConvergentUpdates = cascRes.ConvergentUpdates
	report.Failures = len(cascRes.Failures)
	for _, f := range cascRes.Failures {
		e.log.Warn("segment skipped", "segment", f.SegmentID, "err", f.Err)
	}

	// Write back every touched segment.
	if err := e.writeBack(ctx, topo, order, cascRes.Recalculated); err != nil {
		return err
	}

	// Commit: swap the snapshot only after everything else succeeded.
	// Deferred segments are left out so the next diff re-reports them and
	// they are retried once an elevation source covers them.
	snap := change.Capture(topo)
	for _, d := range elevRes.Deferred {
		for _, id := range d.Segments {
			delete(snap.Segments, id)
		}
	}
	if err := e.opts.Store.Save(ctx, e.opts.SnapshotName, snap); err != nil {
		return err
	}
	e.snapshot = snap
	e.topo = topo

	e.stats.VerticesMoved += countMoves(events)
	e.stats.ElevationsUpdated += report.ElevationsUpdated
	e.stats.DepthsRecalculated += report.DepthsRecalculated
	e.stats.CascadeStops += report.CascadeStops
	e.stats.ConvergentUpdates += report.ConvergentUpdates
	return nil
}

func (e *Engine) sampler() elevation.Sampler {
	if e.opts.Sampler != nil {
		return e.opts.Sampler
	}
	return noSampler{}
}

// noSampler reports every coordinate as uncovered, leaving stored
// elevations in charge.
type noSampler struct{}

func (noSampler) Sample(context.Context, geometry.Point) (float64, error) {
	return 0, elevation.ErrNoSample
}

func (e *Engine) writeBack(ctx context.Context, topo *network.Topology, order, recalculated []int64) error {
	touched := make(map[int64]bool, len(order)+len(recalculated))
	for _, id := range order {
		touched[id] = true
	}
	for _, id := range recalculated {
		touched[id] = true
	}

	ids := make([]int64, 0, len(touched))
	for id := range touched {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		seg, ok := topo.Segment(id)
		if !ok {
			continue
		}
		err := e.opts.Provider.WriteSegmentAttributes(ctx, id, provider.AttributeUpdate{
			UpElev:    seg.UpElev,
			DownElev:  seg.DownElev,
			UpDepth:   seg.UpDepth,
			DownDepth: seg.DownDepth,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// seedSet collects the segments with a direct cause to change: edited,
// orphaned, or downstream of a convergent node that gained or lost a
// contributor. Cyclic segments are included so recalculation reports them
// individually. The plain downstream cascade is left out; it is reached
// through propagation when deltas exceed the tolerance.
func seedSet(set *impact.Set) []int64 {
	seen := make(map[int64]bool)
	seeds := make([]int64, 0)
	for _, part := range [][]int64{set.Moved, set.Orphaned, set.ConvergentAffected, set.Cyclic} {
		for _, id := range part {
			if !seen[id] {
				seen[id] = true
				seeds = append(seeds, id)
			}
		}
	}
	slices.Sort(seeds)
	return seeds
}

// excludeDeferred drops deferred segments from the seed set.
func excludeDeferred(order []int64, deferred []elevation.Deferral) []int64 {
	if len(deferred) == 0 {
		return order
	}
	skip := make(map[int64]bool)
	for _, d := range deferred {
		for _, id := range d.Segments {
			skip[id] = true
		}
	}
	seeds := make([]int64, 0, len(order))
	for _, id := range order {
		if !skip[id] {
			seeds = append(seeds, id)
		}
	}
	return seeds
}

func countMoves(events []change.Event) int {
	n := 0
	for _, ev := range events {
		if ev.Kind == change.VertexMoved {
			n++
		}
	}
	return n
}
