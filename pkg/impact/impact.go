// Package impact determines which segments a batch of geometry changes
// can affect.
//
// The analyzer is a pure function of its inputs: the previous topology
// snapshot, the current topology, and the change events produced by
// diffing the two. It yields an [Set] of segment ids partitioned into
// orphaned chains, convergent-affected chains, and the downstream cascade,
// together with a topological processing order restricted to that set.
//
// Downstream tracing is applied identically regardless of which endpoint
// of a segment moved. Moving an upstream endpoint and moving a downstream
// endpoint with the same topological effect produce the same cascade set.
package impact

import (
	"slices"

	"github.com/openhydro/sewerflow/pkg/change"
	"github.com/openhydro/sewerflow/pkg/network"
)

// Set is the result of change-impact analysis: the segments that must be
// re-evaluated, partitioned by why, plus a topological processing order
// over their union. Ids may appear in more than one partition; All and
// Order are deduplicated.
type Set struct {
	// Moved are the directly edited segments (moved, added).
	Moved []int64
	// Orphaned are segments that lost all upstream supply: their depth is
	// indeterminate until a new supply is established or they are reseeded
	// as roots.
	Orphaned []int64
	// ConvergentAffected are segments downstream of a convergent node that
	// gained or lost an upstream contributor.
	ConvergentAffected []int64
	// Cascade is the full downstream transitive closure of every changed
	// segment.
	Cascade []int64

	// ConvergentNodes are the keys of convergent nodes whose maximum-depth
	// arbitration must be reapplied.
	ConvergentNodes []string

	// Order is the topological processing order over All, excluding any
	// ids in Cyclic.
	Order []int64
	// Cyclic are impacted segments belonging to a cyclic component. They
	// cannot be ordered and are skipped by recalculation; the rest of the
	// set is unaffected.
	Cyclic []int64
}

// All returns the deduplicated union of every partition, sorted.
func (s *Set) All() []int64 {
	seen := make(map[int64]bool)
	var all []int64
	for _, part := range [][]int64{s.Moved, s.Orphaned, s.ConvergentAffected, s.Cascade} {
		for _, id := range part {
			if !seen[id] {
				seen[id] = true
				all = append(all, id)
			}
		}
	}
	slices.Sort(all)
	return all
}

// Contains reports whether the impact set includes the segment.
func (s *Set) Contains(id int64) bool {
	return slices.Contains(s.Order, id)
}

// Analyze computes the impact set for a batch of change events.
//
// prev is the snapshot the events were diffed against; topo is the
// topology built from the current segment collection. The previous
// topology is reconstructed from the snapshot so lost connections can be
// recognized: a segment whose upstream node is a root now but was not
// before has been orphaned.
//
// Impacted segments caught in a cyclic component are reported in Cyclic
// rather than failing the analysis; every other component is ordered
// normally.
func Analyze(prev *change.Snapshot, topo *network.Topology, events []change.Event) (*Set, error) {
	prevTopo := rebuild(prev)
	set := &Set{}
	convergent := make(map[string]bool)

	for _, ev := range events {
		switch ev.Kind {
		case change.VertexMoved:
			analyzeMove(set, convergent, prevTopo, topo, ev)
		case change.SegmentAdded:
			analyzeAdd(set, convergent, topo, ev)
		case change.SegmentRemoved:
			analyzeRemove(set, convergent, prevTopo, topo, ev)
		}
	}

	collectOrphans(set, prevTopo, topo)

	for key := range convergent {
		set.ConvergentNodes = append(set.ConvergentNodes, key)
	}
	slices.Sort(set.ConvergentNodes)
	dedupe(set)

	set.Order, set.Cyclic = topo.OrderByComponent(set.All())
	return set, nil
}

func rebuild(prev *change.Snapshot) *network.Topology {
	segs := make([]network.Segment, 0, len(prev.Segments))
	for _, seg := range prev.Segments {
		segs = append(segs, seg)
	}
	return network.Build(segs, prev.Tolerance)
}

// analyzeMove handles a vertex displacement. The handling is symmetric in
// the endpoint: both the coordinate the vertex left and the one it arrived
// at are re-examined, and the moved segment's full downstream closure is
// always included.
func analyzeMove(set *Set, convergent map[string]bool, prevTopo, topo *network.Topology, ev change.Event) {
	set.Moved = append(set.Moved, ev.SegmentID)
	set.Cascade = append(set.Cascade, topo.DownstreamClosure(ev.SegmentID)...)

	tol := topo.Tolerance()
	oldKey := ev.Old.Key(tol)
	newKey := ev.New.Key(tol)

	// The node left behind may have lost a contributor; the node arrived
	// at may have gained one. Either way any convergent node among them
	// must re-arbitrate its maximum depth downstream.
	markConvergent(set, convergent, topo, oldKey)
	markConvergent(set, convergent, topo, newKey)

	// A node that was convergent before the move but no longer exists (or
	// is no longer convergent) still needs its downstream chain refreshed:
	// its committed depth may reflect a contributor that is gone.
	if prevNode, ok := prevTopo.Node(oldKey); ok && prevNode.IsConvergent() {
		convergent[oldKey] = true
		set.ConvergentAffected = append(set.ConvergentAffected, topo.ClosureFromNode(oldKey)...)
	}
}

func analyzeAdd(set *Set, convergent map[string]bool, topo *network.Topology, ev change.Event) {
	set.Moved = append(set.Moved, ev.SegmentID)
	set.Cascade = append(set.Cascade, topo.DownstreamClosure(ev.SegmentID)...)

	if seg, ok := topo.Segment(ev.SegmentID); ok {
		markConvergent(set, convergent, topo, seg.DownKey)
		markConvergent(set, convergent, topo, seg.UpKey)
	}
}

func analyzeRemove(set *Set, convergent map[string]bool, prevTopo, topo *network.Topology, ev change.Event) {
	tol := topo.Tolerance()
	upKey := ev.Old.Key(tol)
	downKey := ev.New.Key(tol)

	// Everything that was fed through the removed segment's downstream
	// node must be re-evaluated against the surviving supply.
	set.Cascade = append(set.Cascade, topo.ClosureFromNode(downKey)...)

	markConvergent(set, convergent, topo, upKey)
	markConvergent(set, convergent, topo, downKey)
	if prevNode, ok := prevTopo.Node(downKey); ok && prevNode.IsConvergent() {
		convergent[downKey] = true
		set.ConvergentAffected = append(set.ConvergentAffected, topo.ClosureFromNode(downKey)...)
	}
}

// markConvergent records a convergent node and pulls its downstream
// closure into the convergent-affected partition.
func markConvergent(set *Set, convergent map[string]bool, topo *network.Topology, key string) {
	n, ok := topo.Node(key)
	if !ok || !n.IsConvergent() {
		return
	}
	if convergent[key] {
		return
	}
	convergent[key] = true
	set.ConvergentAffected = append(set.ConvergentAffected, n.Downstream...)
	set.ConvergentAffected = append(set.ConvergentAffected, topo.ClosureFromNode(key)...)
}

// collectOrphans finds segments whose upstream node is a root now but was
// not before the edit: they lost their upstream supply and their chains
// must be reseeded rather than silently retaining stale depths.
func collectOrphans(set *Set, prevTopo, topo *network.Topology) {
	for _, id := range topo.SegmentIDs() {
		seg, _ := topo.Segment(id)
		node, ok := topo.Node(seg.UpKey)
		if !ok || !node.IsRoot() {
			continue
		}
		prevSeg, ok := prevTopo.Segment(id)
		if !ok {
			continue // newly added, handled as a move
		}
		prevNode, ok := prevTopo.Node(prevSeg.UpKey)
		if !ok || prevNode.IsRoot() {
			continue // was already a root
		}
		set.Orphaned = append(set.Orphaned, id)
		set.Cascade = append(set.Cascade, topo.DownstreamClosure(id)...)
	}
}

func dedupe(set *Set) {
	set.Moved = dedupeIDs(set.Moved)
	set.Orphaned = dedupeIDs(set.Orphaned)
	set.ConvergentAffected = dedupeIDs(set.ConvergentAffected)
	set.Cascade = dedupeIDs(set.Cascade)
}

func dedupeIDs(ids []int64) []int64 {
	if len(ids) == 0 {
		return ids
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}
