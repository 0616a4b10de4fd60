package network

import (
	"errors"
	"slices"
	"testing"

	"github.com/openhydro/sewerflow/pkg/geometry"
)

// chain builds segments 1→2→3 laid out left to right:
//
//	(0,0) --1--> (10,0) --2--> (20,0) --3--> (30,0)
func chain() []Segment {
	return []Segment{
		{ID: 1, Up: geometry.Point{X: 0, Y: 0}, Down: geometry.Point{X: 10, Y: 0}},
		{ID: 2, Up: geometry.Point{X: 10, Y: 0}, Down: geometry.Point{X: 20, Y: 0}},
		{ID: 3, Up: geometry.Point{X: 20, Y: 0}, Down: geometry.Point{X: 30, Y: 0}},
	}
}

// confluence builds two branches feeding one node, with one outflow:
//
//	1 ─┐
//	   ├─> 3
//	2 ─┘
func confluence() []Segment {
	return []Segment{
		{ID: 1, Up: geometry.Point{X: 0, Y: 10}, Down: geometry.Point{X: 10, Y: 0}},
		{ID: 2, Up: geometry.Point{X: 0, Y: -10}, Down: geometry.Point{X: 10, Y: 0}},
		{ID: 3, Up: geometry.Point{X: 10, Y: 0}, Down: geometry.Point{X: 20, Y: 0}},
	}
}

func TestBuildChain(t *testing.T) {
	topo := Build(chain(), 1e-3)

	if topo.SegmentCount() != 3 {
		t.Fatalf("SegmentCount = %d, want 3", topo.SegmentCount())
	}
	if topo.NodeCount() != 4 {
		t.Fatalf("NodeCount = %d, want 4", topo.NodeCount())
	}

	// Shared endpoint of 1 and 2 must map to a single node.
	s1, _ := topo.Segment(1)
	s2, _ := topo.Segment(2)
	if s1.DownKey != s2.UpKey {
		t.Errorf("segment 1 down key %q != segment 2 up key %q", s1.DownKey, s2.UpKey)
	}

	n, ok := topo.Node(s1.DownKey)
	if !ok {
		t.Fatal("interior node missing")
	}
	if !slices.Equal(n.Upstream, []int64{1}) || !slices.Equal(n.Downstream, []int64{2}) {
		t.Errorf("interior node adjacency = up %v down %v", n.Upstream, n.Downstream)
	}
	if n.IsConvergent() || n.IsRoot() {
		t.Error("interior node misclassified")
	}

	if got := topo.Roots(); !slices.Equal(got, []int64{1}) {
		t.Errorf("Roots = %v, want [1]", got)
	}
	if got := topo.ConvergentNodes(); len(got) != 0 {
		t.Errorf("ConvergentNodes = %v, want none", got)
	}

	// Length derived from geometry when not supplied.
	if s1.Length != 10 {
		t.Errorf("segment 1 length = %v, want 10", s1.Length)
	}
}

func TestBuildTolerance(t *testing.T) {
	segs := []Segment{
		{ID: 1, Up: geometry.Point{X: 0, Y: 0}, Down: geometry.Point{X: 10, Y: 0}},
		// Starts 0.4mm away from segment 1's end: same node at 1mm tolerance.
		{ID: 2, Up: geometry.Point{X: 10.0004, Y: 0}, Down: geometry.Point{X: 20, Y: 0}},
	}

	topo := Build(segs, 1e-3)
	if topo.NodeCount() != 3 {
		t.Errorf("NodeCount at 1mm tolerance = %d, want 3 (snapped)", topo.NodeCount())
	}

	// At a far tighter tolerance the endpoints fragment into separate nodes.
	frag := Build(segs, 1e-6)
	if frag.NodeCount() != 4 {
		t.Errorf("NodeCount at 1µm tolerance = %d, want 4 (fragmented)", frag.NodeCount())
	}
}

func TestConvergentClassification(t *testing.T) {
	topo := Build(confluence(), 1e-3)

	keys := topo.ConvergentNodes()
	if len(keys) != 1 {
		t.Fatalf("ConvergentNodes = %v, want exactly one", keys)
	}
	n, _ := topo.Node(keys[0])
	if !slices.Equal(n.Upstream, []int64{1, 2}) {
		t.Errorf("convergent upstream = %v, want [1 2]", n.Upstream)
	}
	if !slices.Equal(n.Downstream, []int64{3}) {
		t.Errorf("convergent downstream = %v, want [3]", n.Downstream)
	}
	if got := topo.Roots(); !slices.Equal(got, []int64{1, 2}) {
		t.Errorf("Roots = %v, want [1 2]", got)
	}
}

func TestNodeDepthTakesMaximum(t *testing.T) {
	segs := confluence()
	segs[0].DownDepth = Float(1.20)
	segs[1].DownDepth = Float(1.35)

	topo := Build(segs, 1e-3)
	key := topo.ConvergentNodes()[0]
	n, _ := topo.Node(key)
	if n.Depth == nil || *n.Depth != 1.35 {
		t.Errorf("convergent node depth = %v, want 1.35", n.Depth)
	}
}

func TestOrderFullNetwork(t *testing.T) {
	topo := Build(confluence(), 1e-3)

	order, err := topo.Order(nil)
	if err != nil {
		t.Fatalf("Order error: %v", err)
	}
	if !slices.Equal(order, []int64{1, 2, 3}) {
		t.Errorf("Order = %v, want [1 2 3]", order)
	}
}

func TestOrderRestrictedSet(t *testing.T) {
	topo := Build(chain(), 1e-3)

	order, err := topo.Order([]int64{3, 2})
	if err != nil {
		t.Fatalf("Order error: %v", err)
	}
	if !slices.Equal(order, []int64{2, 3}) {
		t.Errorf("Order = %v, want [2 3]", order)
	}

	// Unknown ids are ignored, not an error.
	order, err = topo.Order([]int64{2, 99})
	if err != nil {
		t.Fatalf("Order with unknown id error: %v", err)
	}
	if !slices.Equal(order, []int64{2}) {
		t.Errorf("Order = %v, want [2]", order)
	}
}

func TestOrderDetectsCycle(t *testing.T) {
	segs := []Segment{
		{ID: 1, Up: geometry.Point{X: 0, Y: 0}, Down: geometry.Point{X: 10, Y: 0}},
		{ID: 2, Up: geometry.Point{X: 10, Y: 0}, Down: geometry.Point{X: 10, Y: 10}},
		{ID: 3, Up: geometry.Point{X: 10, Y: 10}, Down: geometry.Point{X: 0, Y: 0}},
	}
	topo := Build(segs, 1e-3)

	if _, err := topo.Order(nil); !errors.Is(err, ErrCycleDetected) {
		t.Errorf("Order error = %v, want ErrCycleDetected", err)
	}
	if err := topo.Validate(); !errors.Is(err, ErrCycleDetected) {
		t.Errorf("Validate error = %v, want ErrCycleDetected", err)
	}
}

func TestOrderByComponentIsolatesCycle(t *testing.T) {
	// Healthy chain 1→2→3 plus a detached three-segment loop.
	segs := append(chain(),
		Segment{ID: 11, Up: geometry.Point{X: 100, Y: 0}, Down: geometry.Point{X: 110, Y: 0}},
		Segment{ID: 12, Up: geometry.Point{X: 110, Y: 0}, Down: geometry.Point{X: 110, Y: 10}},
		Segment{ID: 13, Up: geometry.Point{X: 110, Y: 10}, Down: geometry.Point{X: 100, Y: 0}},
	)
	topo := Build(segs, 1e-3)

	order, cyclic := topo.OrderByComponent(nil)
	if !slices.Equal(order, []int64{1, 2, 3}) {
		t.Errorf("order = %v, want [1 2 3]", order)
	}
	if !slices.Equal(cyclic, []int64{11, 12, 13}) {
		t.Errorf("cyclic = %v, want [11 12 13]", cyclic)
	}

	// Restricting to the healthy chain leaves nothing cyclic.
	order, cyclic = topo.OrderByComponent([]int64{3, 1})
	if !slices.Equal(order, []int64{1, 3}) {
		t.Errorf("restricted order = %v, want [1 3]", order)
	}
	if len(cyclic) != 0 {
		t.Errorf("restricted cyclic = %v, want empty", cyclic)
	}
}

func TestOrderByComponentAcyclic(t *testing.T) {
	topo := Build(confluence(), 1e-3)

	order, cyclic := topo.OrderByComponent(nil)
	if !slices.Equal(order, []int64{1, 2, 3}) {
		t.Errorf("order = %v, want [1 2 3]", order)
	}
	if len(cyclic) != 0 {
		t.Errorf("cyclic = %v, want empty", cyclic)
	}
}

func TestValidateAcyclic(t *testing.T) {
	topo := Build(confluence(), 1e-3)
	if err := topo.Validate(); err != nil {
		t.Errorf("Validate error: %v", err)
	}
}

func TestDownstreamClosure(t *testing.T) {
	// Chain 1→2→3 plus a side branch 4 joining at segment 3's upstream node.
	segs := append(chain(), Segment{
		ID: 4, Up: geometry.Point{X: 20, Y: 10}, Down: geometry.Point{X: 20, Y: 0},
	})
	topo := Build(segs, 1e-3)

	if got := topo.DownstreamClosure(1); !slices.Equal(got, []int64{2, 3}) {
		t.Errorf("DownstreamClosure(1) = %v, want [2 3]", got)
	}
	if got := topo.DownstreamClosure(4); !slices.Equal(got, []int64{3}) {
		t.Errorf("DownstreamClosure(4) = %v, want [3]", got)
	}
	if got := topo.DownstreamClosure(3); len(got) != 0 {
		t.Errorf("DownstreamClosure(3) = %v, want empty", got)
	}
}

func TestDirectAdjacency(t *testing.T) {
	topo := Build(confluence(), 1e-3)

	if got := topo.UpstreamOf(3); !slices.Equal(got, []int64{1, 2}) {
		t.Errorf("UpstreamOf(3) = %v, want [1 2]", got)
	}
	if got := topo.DownstreamOf(1); !slices.Equal(got, []int64{3}) {
		t.Errorf("DownstreamOf(1) = %v, want [3]", got)
	}
	if got := topo.UpstreamOf(99); got != nil {
		t.Errorf("UpstreamOf(99) = %v, want nil", got)
	}
}
