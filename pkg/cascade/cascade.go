// Package cascade recomputes invert depths across an impacted set of
// segments and propagates changes downstream only while they remain
// meaningful.
//
// Depth propagation follows the invert line: a segment's downstream depth
// is derived from its upstream depth, the elevation change across the
// segment and the pipe slope, floored at the minimum depth required by
// cover and diameter. After each node update the new depth is compared to
// the previously stored one; a sub-threshold change is committed but not
// propagated further (smart-cascade stopping), while an above-threshold
// change enqueues the node's downstream segments even when they were not
// part of the original impacted set.
package cascade

import (
	"context"
	"math"

	"github.com/openhydro/sewerflow/pkg/errors"
	"github.com/openhydro/sewerflow/pkg/network"
	"github.com/openhydro/sewerflow/pkg/observability"
)

// DefaultEpsilon is the cascade-continuation threshold: depth changes at or
// below this value (1 cm) are not propagated downstream.
const DefaultEpsilon = 0.01

// Params carries network-wide depth parameters. Segments may override
// Diameter, Slope and MinCover individually; zero segment values fall back
// to these defaults.
type Params struct {
	// MinCover is the required soil cover above the pipe crown, in meters.
	MinCover float64

	// Diameter is the default pipe diameter in meters.
	Diameter float64

	// Slope is the default pipe slope as a dimensionless gradient.
	Slope float64

	// Epsilon is the cascade-continuation threshold in meters. Zero means
	// DefaultEpsilon.
	Epsilon float64

	// InitialDepth, when set, seeds root nodes that carry no stored depth.
	// A stored depth always takes precedence over this override.
	InitialDepth *float64
}

func (p Params) epsilon() float64 {
	if p.Epsilon > 0 {
		return p.Epsilon
	}
	return DefaultEpsilon
}

// MinimumDepth returns the smallest admissible invert depth for the given
// cover and diameter. The sum is taken in integer millimeters so repeated
// recalculation cannot drift the floor through binary rounding.
func MinimumDepth(minCover, diameter float64) float64 {
	mm := int64(math.Round(minCover*1000)) + int64(math.Round(diameter*1000))
	return float64(mm) / 1000
}

// Failure records a segment that could not be recalculated. The segment
// keeps its last valid values.
type Failure struct {
	SegmentID int64
	Err       error
}

// Result reports one depth recalculation pass.
type Result struct {
	// Recalculated lists the ids of segments whose depths were recomputed,
	// in processing order.
	Recalculated []int64

	// CascadeStoppedAt lists node keys where a sub-threshold change ended
	// propagation while downstream segments still existed.
	CascadeStoppedAt []string

	// ConvergentUpdates counts re-arbitrations at convergent nodes that
	// changed the committed depth.
	ConvergentUpdates int

	// ActualSlope holds the invert slope each recalculated segment ended up
	// with, derived from its committed endpoint inverts.
	ActualSlope map[int64]float64

	// Failures lists segments skipped because of bad data. Their last valid
	// values are untouched and their changes were not propagated.
	Failures []Failure
}

// Recalculate recomputes depths for the seed segments and whatever the
// cascade reaches beyond them. Seeds are processed in topological order;
// both endpoint elevations of every processed segment must already be
// resolved (see the elevation package). Passing nil seeds recalculates the
// whole network.
//
// Segments in a cyclic component cannot be ordered; they are reported as
// per-segment failures while every other component proceeds normally.
func Recalculate(ctx context.Context, topo *network.Topology, seeds []int64, p Params) (*Result, error) {
	order, cyclic := topo.OrderByComponent(nil)

	pending := make(map[int64]bool)
	if seeds == nil {
		for _, id := range order {
			pending[id] = true
		}
	} else {
		for _, id := range seeds {
			if _, ok := topo.Segment(id); !ok {
				return nil, errors.New(errors.ErrCodeSegmentNotFound, "seed segment not in topology")
			}
			pending[id] = true
		}
	}

	res := &Result{ActualSlope: make(map[int64]float64)}
	eps := p.epsilon()

	for _, id := range cyclic {
		if seeds == nil || pending[id] {
			delete(pending, id)
			res.Failures = append(res.Failures, Failure{
				SegmentID: id,
				Err:       errors.New(errors.ErrCodeCycleDetected, "segment %d is part of a cyclic component", id),
			})
		}
	}

	// A single pass over the full topological order suffices: dynamically
	// enqueued downstream segments always sort after the segment that
	// enqueued them.
	for _, id := range order {
		if !pending[id] {
			continue
		}
		seg, _ := topo.Segment(id)
		recalcSegment(ctx, topo, seg, p, eps, pending, res)
	}
	return res, nil
}

func recalcSegment(ctx context.Context, topo *network.Topology, seg *network.Segment, p Params, eps float64, pending map[int64]bool, res *Result) {
	upNode, _ := topo.Node(seg.UpKey)
	downNode, _ := topo.Node(seg.DownKey)

	upElev := elevationAt(upNode, seg.UpElev)
	downElev := elevationAt(downNode, seg.DownElev)
	if upElev == nil || downElev == nil {
		res.Failures = append(res.Failures, Failure{
			SegmentID: seg.ID,
			Err:       errors.New(errors.ErrCodeIncompleteElevation, "segment endpoint has no elevation"),
		})
		return
	}

	diameter := orDefault(seg.Diameter, p.Diameter)
	slope := orDefault(seg.Slope, p.Slope)
	cover := orDefault(seg.MinCover, p.MinCover)
	minDepth := MinimumDepth(cover, diameter)

	upDepth := resolveUpstreamDepth(upNode, seg, p, minDepth)

	// Downstream depth from the projected invert line, floored at the
	// structural minimum. Nothing is written back until the result is
	// known to be valid.
	raw := *downElev - (*upElev - upDepth - slope*seg.Length)
	if raw < 0 {
		res.Failures = append(res.Failures, Failure{
			SegmentID: seg.ID,
			Err:       errors.New(errors.ErrCodeNegativeDepth, "computed depth is negative"),
		})
		return
	}
	newDepth := math.Max(raw, minDepth)
	seg.UpDepth = network.Float(upDepth)
	if upNode.Depth == nil {
		upNode.Depth = network.Float(upDepth)
	}
	seg.DownDepth = network.Float(newDepth)
	res.Recalculated = append(res.Recalculated, seg.ID)
	if seg.Length > 0 {
		upInvert := *upElev - upDepth
		downInvert := *downElev - newDepth
		res.ActualSlope[seg.ID] = (upInvert - downInvert) / seg.Length
	}

	commitNodeDepth(ctx, topo, downNode, eps, pending, res)
}

// commitNodeDepth re-arbitrates the node's depth from its upstream
// contributions and decides whether the change propagates.
func commitNodeDepth(ctx context.Context, topo *network.Topology, node *network.Node, eps float64, pending map[int64]bool, res *Result) {
	contribution, ok := maxContribution(topo, node)
	if !ok {
		return
	}

	prev := node.Depth
	changed := prev == nil || contribution != *prev
	node.Depth = network.Float(contribution)

	if node.IsConvergent() && changed {
		res.ConvergentUpdates++
		observability.Engine().OnConvergentUpdate(ctx, node.Key, contribution)
	}

	if len(node.Downstream) == 0 {
		return
	}
	if prev != nil && math.Abs(contribution-*prev) <= eps {
		res.CascadeStoppedAt = append(res.CascadeStoppedAt, node.Key)
		observability.Engine().OnCascadeStop(ctx, node.Key, contribution-*prev)
		return
	}
	for _, id := range node.Downstream {
		pending[id] = true
	}
}

// maxContribution returns the maximum downstream depth contributed by the
// node's upstream segments.
func maxContribution(topo *network.Topology, node *network.Node) (float64, bool) {
	best := 0.0
	found := false
	for _, id := range node.Upstream {
		seg, ok := topo.Segment(id)
		if !ok || seg.DownDepth == nil {
			continue
		}
		if !found || *seg.DownDepth > best {
			best = *seg.DownDepth
			found = true
		}
	}
	return best, found
}

// resolveUpstreamDepth picks the depth at the segment's upstream node.
// Priority: depth already committed at the node, then the segment's stored
// depth, then the configured initial-depth override, then the structural
// minimum.
func resolveUpstreamDepth(node *network.Node, seg *network.Segment, p Params, minDepth float64) float64 {
	switch {
	case node.Depth != nil:
		return *node.Depth
	case seg.UpDepth != nil:
		return *seg.UpDepth
	case p.InitialDepth != nil:
		return *p.InitialDepth
	}
	return minDepth
}

func elevationAt(node *network.Node, fallback *float64) *float64 {
	if node != nil && node.Elev != nil {
		return node.Elev
	}
	return fallback
}

func orDefault(v, def float64) float64 {
	if v != 0 {
		return v
	}
	return def
}

// Validate checks committed depths against the structural invariants:
// depths never decrease along a path and convergent nodes carry the
// maximum upstream contribution. It returns one error per violation.
func Validate(topo *network.Topology, p Params) []error {
	var errs []error
	for _, id := range topo.SegmentIDs() {
		seg, _ := topo.Segment(id)
		if seg.UpDepth == nil || seg.DownDepth == nil {
			continue
		}
		floor := MinimumDepth(orDefault(seg.MinCover, p.MinCover), orDefault(seg.Diameter, p.Diameter))
		if *seg.DownDepth+1e-9 < floor {
			errs = append(errs, errors.New(errors.ErrCodeNegativeDepth, "segment depth below structural minimum"))
		}
	}
	for _, key := range topo.ConvergentNodes() {
		node, _ := topo.Node(key)
		want, ok := maxContribution(topo, node)
		if !ok || node.Depth == nil {
			continue
		}
		if math.Abs(*node.Depth-want) > 1e-9 {
			errs = append(errs, errors.New(errors.ErrCodeInvalidNetwork, "convergent node depth is not the maximum contribution"))
		}
	}
	return errs
}
