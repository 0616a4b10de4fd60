// Package network builds and queries the node/segment topology of a
// sewerage collection network.
//
// A network is a set of directed pipe segments. Segment endpoints that
// quantize to the same coordinate key (see [geometry.Point.Key]) form a
// shared node. Nodes are a derived view over segments: they are rebuilt
// from the segment arena whenever geometry changes and are never persisted
// independently, which avoids live back-pointer lifetime issues entirely.
//
// The package computes topological processing order (upstream before
// downstream) via Kahn's algorithm and detects cycles with depth-first
// search. Sewerage networks are defined to be acyclic directed graphs
// (trees with possible convergence, never loops), so a cycle is reported
// as an error, not silently resolved.
package network

import (
	"errors"
	"slices"

	"github.com/openhydro/sewerflow/pkg/geometry"
)

var (
	// ErrCycleDetected is returned by [Topology.Order] and [Topology.Validate]
	// when the segment dependency graph contains a directed cycle.
	ErrCycleDetected = errors.New("network contains a cycle")

	// ErrUnknownSegment is returned when a segment id is not present in the
	// topology.
	ErrUnknownSegment = errors.New("unknown segment")
)

// Segment represents one pipe/conduit edge with an upstream and a
// downstream endpoint. The feature identifier is stable across edits; the
// node-key pair is recomputed on every topology build.
//
// Elevation and depth fields are nil until computed. They are owned and
// mutated only by the elevation updater and the cascade depth calculator.
type Segment struct {
	ID int64 `json:"id"`

	Up   geometry.Point `json:"up"`
	Down geometry.Point `json:"down"`

	// UpKey and DownKey are assigned during Build from the quantized
	// endpoint coordinates.
	UpKey   string `json:"-"`
	DownKey string `json:"-"`

	// Length is the geometric segment length in map units. Zero means
	// "derive from endpoints" during Build.
	Length float64 `json:"length,omitempty"`

	UpElev   *float64 `json:"up_elev,omitempty"`
	DownElev *float64 `json:"down_elev,omitempty"`
	UpDepth  *float64 `json:"up_depth,omitempty"`
	DownDepth *float64 `json:"down_depth,omitempty"`

	// Hydraulic parameters. Zero values mean "use network defaults".
	Diameter float64 `json:"diameter,omitempty"`
	Slope    float64 `json:"slope,omitempty"`
	MinCover float64 `json:"min_cover,omitempty"`
}

// Clone returns a deep copy of the segment. The optional elevation and
// depth pointers are duplicated so the copy shares no mutable state with
// the original.
func (s *Segment) Clone() Segment {
	c := *s
	c.UpElev = cloneFloat(s.UpElev)
	c.DownElev = cloneFloat(s.DownElev)
	c.UpDepth = cloneFloat(s.UpDepth)
	c.DownDepth = cloneFloat(s.DownDepth)
	return c
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Node represents a point where one or more segments meet, derived from
// coincident endpoint coordinates. Upstream holds ids of segments ending
// at the node, Downstream ids of segments starting from it; the two sets
// are mutually exclusive views of the same adjacency.
type Node struct {
	Key   string         `json:"key"`
	Coord geometry.Point `json:"coord"`

	Upstream   []int64 `json:"upstream"`
	Downstream []int64 `json:"downstream"`

	Elev  *float64 `json:"elev,omitempty"`
	Depth *float64 `json:"depth,omitempty"`
}

// IsConvergent reports whether the node is fed by more than one upstream
// segment. A convergent node must always carry the maximum depth among its
// upstream contributors.
func (n *Node) IsConvergent() bool { return len(n.Upstream) > 1 }

// IsRoot reports whether the node has no upstream segment (network source).
func (n *Node) IsRoot() bool { return len(n.Upstream) == 0 }

// Topology is the node/segment graph of a network at a point in time.
// It is a pure derived structure: building it does not mutate segment
// attribute values. Topology is not safe for concurrent mutation.
type Topology struct {
	tolerance float64
	segments  map[int64]*Segment
	nodes     map[string]*Node
}

// Build constructs a topology from the given segments using the coordinate
// quantization tolerance for endpoint coincidence. Segment values are
// copied; the input slice is not retained. Segments with zero Length get
// their geometric endpoint distance.
func Build(segments []Segment, tolerance float64) *Topology {
	t := &Topology{
		tolerance: tolerance,
		segments:  make(map[int64]*Segment, len(segments)),
		nodes:     make(map[string]*Node),
	}
	for i := range segments {
		seg := segments[i] // copy
		seg.UpKey = seg.Up.Key(tolerance)
		seg.DownKey = seg.Down.Key(tolerance)
		if seg.Length == 0 {
			seg.Length = seg.Up.Distance(seg.Down)
		}
		t.segments[seg.ID] = &seg

		up := t.node(seg.UpKey, seg.Up)
		up.Downstream = append(up.Downstream, seg.ID)
		mergeElev(up, seg.UpElev)
		mergeDepth(up, seg.UpDepth)

		down := t.node(seg.DownKey, seg.Down)
		down.Upstream = append(down.Upstream, seg.ID)
		mergeElev(down, seg.DownElev)
		mergeDepth(down, seg.DownDepth)
	}
	for _, n := range t.nodes {
		slices.Sort(n.Upstream)
		slices.Sort(n.Downstream)
	}
	return t
}

func (t *Topology) node(key string, coord geometry.Point) *Node {
	n, ok := t.nodes[key]
	if !ok {
		n = &Node{Key: key, Coord: coord}
		t.nodes[key] = n
	}
	return n
}

// mergeElev adopts the first known elevation seen at a node.
func mergeElev(n *Node, v *float64) {
	if n.Elev == nil && v != nil {
		e := *v
		n.Elev = &e
	}
}

// mergeDepth keeps the maximum depth contributed at a node, matching the
// convergent-node rule.
func mergeDepth(n *Node, v *float64) {
	if v == nil {
		return
	}
	if n.Depth == nil || *v > *n.Depth {
		d := *v
		n.Depth = &d
	}
}

// Tolerance returns the quantization tolerance the topology was built with.
func (t *Topology) Tolerance() float64 { return t.tolerance }

// Segment returns the segment with the given id and true, or nil and false.
func (t *Topology) Segment(id int64) (*Segment, bool) {
	s, ok := t.segments[id]
	return s, ok
}

// Node returns the node with the given key and true, or nil and false.
func (t *Topology) Node(key string) (*Node, bool) {
	n, ok := t.nodes[key]
	return n, ok
}

// SegmentIDs returns all segment ids in ascending order.
func (t *Topology) SegmentIDs() []int64 {
	ids := make([]int64, 0, len(t.segments))
	for id := range t.segments {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Nodes returns all nodes. The order is not guaranteed.
func (t *Topology) Nodes() []*Node {
	nodes := make([]*Node, 0, len(t.nodes))
	for _, n := range t.nodes {
		nodes = append(nodes, n)
	}
	return nodes
}

// SegmentCount returns the number of segments.
func (t *Topology) SegmentCount() int { return len(t.segments) }

// NodeCount returns the number of nodes.
func (t *Topology) NodeCount() int { return len(t.nodes) }

// Roots returns segments whose upstream node has no upstream segment.
// These seed depth propagation.
func (t *Topology) Roots() []int64 {
	var roots []int64
	for id, s := range t.segments {
		if n, ok := t.nodes[s.UpKey]; ok && n.IsRoot() {
			roots = append(roots, id)
		}
	}
	slices.Sort(roots)
	return roots
}

// ConvergentNodes returns the keys of nodes fed by more than one upstream
// segment, in sorted order.
func (t *Topology) ConvergentNodes() []string {
	var keys []string
	for key, n := range t.nodes {
		if n.IsConvergent() {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)
	return keys
}

// UpstreamOf returns the ids of segments whose downstream node is the
// upstream node of the given segment, i.e. its direct feeders.
func (t *Topology) UpstreamOf(id int64) []int64 {
	s, ok := t.segments[id]
	if !ok {
		return nil
	}
	n, ok := t.nodes[s.UpKey]
	if !ok {
		return nil
	}
	return n.Upstream
}

// DownstreamOf returns the ids of segments starting at the given segment's
// downstream node, i.e. its direct dependents.
func (t *Topology) DownstreamOf(id int64) []int64 {
	s, ok := t.segments[id]
	if !ok {
		return nil
	}
	n, ok := t.nodes[s.DownKey]
	if !ok {
		return nil
	}
	return n.Downstream
}

// DownstreamClosure returns every segment reachable downstream from the
// given segment, excluding the segment itself, via breadth-first search.
// The result is sorted for determinism.
func (t *Topology) DownstreamClosure(id int64) []int64 {
	s, ok := t.segments[id]
	if !ok {
		return nil
	}
	return t.ClosureFromNode(s.DownKey)
}

// ClosureFromNode returns every segment reachable downstream from the node
// with the given key, in sorted order.
func (t *Topology) ClosureFromNode(key string) []int64 {
	visited := make(map[string]bool)
	seen := make(map[int64]bool)
	var result []int64

	queue := []string{key}
	for len(queue) > 0 {
		k := queue[0]
		queue = queue[1:]
		if visited[k] {
			continue
		}
		visited[k] = true

		n, ok := t.nodes[k]
		if !ok {
			continue
		}
		for _, segID := range n.Downstream {
			if seen[segID] {
				continue
			}
			seen[segID] = true
			result = append(result, segID)
			if seg, ok := t.segments[segID]; ok {
				queue = append(queue, seg.DownKey)
			}
		}
	}
	slices.Sort(result)
	return result
}
