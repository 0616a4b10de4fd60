package elevation

import (
	"context"
	stderrors "errors"
	"slices"

	"github.com/openhydro/sewerflow/pkg/errors"
	"github.com/openhydro/sewerflow/pkg/network"
)

// Method selects how nodes without terrain coverage get an elevation.
type Method string

const (
	// MethodSampleOnly uses terrain samples exclusively. Nodes without a
	// sample keep their stored elevation or are deferred.
	MethodSampleOnly Method = "sample-only"

	// MethodInterpolate fills sample gaps by linear interpolation between
	// the nearest anchored elevations along cumulative segment length, or
	// by the slope-implied drop when only one side is anchored.
	MethodInterpolate Method = "sample-with-interpolation"
)

// Deferral records a chain whose elevations could not be resolved. Depth
// recalculation for the listed segments must be skipped, never run with a
// defaulted elevation.
type Deferral struct {
	NodeKey  string
	Segments []int64
	Err      error
}

// Result summarizes an elevation update pass.
type Result struct {
	// Sampled counts nodes whose elevation came from the terrain sampler.
	Sampled int

	// Interpolated counts nodes filled by interpolation or slope derivation.
	Interpolated int

	// Deferred lists chains excluded from the subsequent depth phase.
	Deferred []Deferral
}

// Updater refreshes node elevations for a set of impacted segments. The
// elevation phase must complete before any depth is recalculated, since
// the depth formula reads both endpoint elevations of every segment.
type Updater struct {
	sampler      Sampler
	method       Method
	defaultSlope float64
}

// NewUpdater builds an updater. defaultSlope is used for slope-implied
// elevation drops on segments that carry no slope of their own.
func NewUpdater(sampler Sampler, method Method, defaultSlope float64) *Updater {
	return &Updater{sampler: sampler, method: method, defaultSlope: defaultSlope}
}

// Update refreshes the elevations of every node touched by the segments in
// order, visiting upstream nodes before downstream ones. order must already
// be topologically sorted (see [network.Topology.Order]).
//
// The pass runs in two phases. First every node is sampled: a valid sample
// at a node's current coordinate is authoritative and overwrites any stored
// elevation, since a moved vertex sits on new terrain. Then nodes still
// without an elevation are interpolated between the now-anchored neighbors,
// or deferred when no anchor exists anywhere on their chain. Sampler
// failures other than [ErrNoSample] abort the pass.
func (u *Updater) Update(ctx context.Context, topo *network.Topology, order []int64) (*Result, error) {
	res := &Result{}

	keys, err := nodeOrder(topo, order)
	if err != nil {
		return nil, err
	}

	gaps := make([]string, 0, len(keys))
	for _, key := range keys {
		node, _ := topo.Node(key)
		v, err := u.sampler.Sample(ctx, node.Coord)
		switch {
		case err == nil:
			setNodeElev(topo, node, v)
			res.Sampled++
		case stderrors.Is(err, ErrNoSample):
			gaps = append(gaps, key)
		default:
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "sampling elevation")
		}
	}

	deferred := make(map[string]bool)
	for _, key := range gaps {
		node, _ := topo.Node(key)
		// A stored elevation stays valid where there is no coverage.
		if node.Elev != nil {
			continue
		}
		if u.method == MethodInterpolate {
			if v, ok := u.interpolate(topo, node); ok {
				setNodeElev(topo, node, v)
				res.Interpolated++
				continue
			}
		}
		u.deferChain(topo, node, res, deferred)
	}
	return res, nil
}

// nodeOrder lists the distinct node keys touched by the segments, upstream
// endpoint before downstream, following segment order.
func nodeOrder(topo *network.Topology, order []int64) ([]string, error) {
	seen := make(map[string]bool)
	keys := make([]string, 0, len(order)+1)
	for _, id := range order {
		seg, ok := topo.Segment(id)
		if !ok {
			return nil, errors.New(errors.ErrCodeSegmentNotFound, "segment not in topology")
		}
		for _, key := range []string{seg.UpKey, seg.DownKey} {
			if seen[key] {
				continue
			}
			seen[key] = true
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// interpolate derives an elevation from the nearest anchored nodes. With
// anchors on both sides it interpolates linearly by cumulative segment
// length; with a single anchor it applies the slope-implied drop along the
// connecting path.
func (u *Updater) interpolate(topo *network.Topology, node *network.Node) (float64, bool) {
	up, upOK := u.nearestAnchor(topo, node.Key, true)
	down, downOK := u.nearestAnchor(topo, node.Key, false)

	switch {
	case upOK && downOK:
		total := up.dist + down.dist
		if total == 0 {
			return up.elev, true
		}
		return up.elev - (up.elev-down.elev)*up.dist/total, true
	case upOK:
		return up.elev - up.drop, true
	case downOK:
		return down.elev + down.drop, true
	}
	return 0, false
}

// anchor is the nearest node with a known elevation in one direction.
type anchor struct {
	elev float64
	dist float64 // cumulative segment length to the anchor
	drop float64 // slope-implied elevation change along the path
}

// nearestAnchor searches breadth-first away from key, upstream or
// downstream, for the closest node carrying an elevation.
func (u *Updater) nearestAnchor(topo *network.Topology, key string, upstream bool) (anchor, bool) {
	type frontier struct {
		key  string
		dist float64
		drop float64
	}

	best := anchor{}
	found := false
	visited := map[string]bool{key: true}
	queue := []frontier{{key: key}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		node, ok := topo.Node(cur.key)
		if !ok {
			continue
		}
		if cur.key != key && node.Elev != nil {
			if !found || cur.dist < best.dist {
				best = anchor{elev: *node.Elev, dist: cur.dist, drop: cur.drop}
				found = true
			}
			continue
		}

		ids := node.Upstream
		if !upstream {
			ids = node.Downstream
		}
		for _, id := range ids {
			seg, ok := topo.Segment(id)
			if !ok {
				continue
			}
			next := seg.UpKey
			if !upstream {
				next = seg.DownKey
			}
			if visited[next] {
				continue
			}
			visited[next] = true
			slope := seg.Slope
			if slope == 0 {
				slope = u.defaultSlope
			}
			queue = append(queue, frontier{
				key:  next,
				dist: cur.dist + seg.Length,
				drop: cur.drop + slope*seg.Length,
			})
		}
	}
	return best, found
}

// deferChain marks the node's incident and downstream segments as excluded
// from depth recalculation. Nested deferrals inside an already deferred
// closure are not reported twice.
func (u *Updater) deferChain(topo *network.Topology, node *network.Node, res *Result, deferred map[string]bool) {
	if deferred[node.Key] {
		return
	}

	segs := slices.Clone(node.Upstream)
	segs = append(segs, topo.ClosureFromNode(node.Key)...)
	slices.Sort(segs)
	segs = slices.Compact(segs)

	// Mark the node and every downstream node as deferred so nested gaps
	// inside this closure are not reported again.
	deferred[node.Key] = true
	for _, id := range segs {
		if seg, ok := topo.Segment(id); ok {
			deferred[seg.DownKey] = true
		}
	}

	res.Deferred = append(res.Deferred, Deferral{
		NodeKey:  node.Key,
		Segments: segs,
		Err:      errors.New(errors.ErrCodeIncompleteElevation, "no elevation source for node %s", node.Key),
	})
}

// setNodeElev writes an elevation to the node and to the matching endpoint
// of every incident segment.
func setNodeElev(topo *network.Topology, node *network.Node, v float64) {
	e := v
	node.Elev = &e
	for _, id := range node.Upstream {
		if seg, ok := topo.Segment(id); ok {
			dv := v
			seg.DownElev = &dv
		}
	}
	for _, id := range node.Downstream {
		if seg, ok := topo.Segment(id); ok {
			uv := v
			seg.UpElev = &uv
		}
	}
}
