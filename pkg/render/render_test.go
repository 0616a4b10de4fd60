package render

import (
	"strings"
	"testing"

	"github.com/openhydro/sewerflow/pkg/geometry"
	"github.com/openhydro/sewerflow/pkg/network"
)

func testTopology() *network.Topology {
	segs := []network.Segment{
		{ID: 1, Up: geometry.Point{X: 0, Y: 50}, Down: geometry.Point{X: 100, Y: 0}},
		{ID: 2, Up: geometry.Point{X: 0, Y: -50}, Down: geometry.Point{X: 100, Y: 0}},
		{ID: 3, Up: geometry.Point{X: 100, Y: 0}, Down: geometry.Point{X: 200, Y: 0}, DownDepth: network.Float(1.35)},
	}
	return network.Build(segs, geometry.DefaultTolerance)
}

func TestToDOT(t *testing.T) {
	topo := testTopology()
	dot := ToDOT(topo, Options{})

	if !strings.HasPrefix(dot, "digraph network {") {
		t.Fatalf("ToDOT() missing digraph header:\n%s", dot)
	}
	for _, want := range []string{`"#1"`, `"#2"`, `"#3"`} {
		if !strings.Contains(dot, "label="+want) {
			t.Errorf("ToDOT() missing edge label %s", want)
		}
	}
	// The junction of segments 1 and 2 is convergent.
	if !strings.Contains(dot, "doublecircle") {
		t.Error("ToDOT() missing convergent node styling")
	}
	if !strings.Contains(dot, "lightblue") {
		t.Error("ToDOT() missing root node styling")
	}
}

func TestToDOTDetailed(t *testing.T) {
	dot := ToDOT(testTopology(), Options{Detailed: true})
	if !strings.Contains(dot, "1.35") {
		t.Errorf("detailed ToDOT() missing depth label:\n%s", dot)
	}
}

func TestToDOTHighlight(t *testing.T) {
	dot := ToDOT(testTopology(), Options{Highlight: []int64{3}})
	if !strings.Contains(dot, "color=red") {
		t.Error("ToDOT() missing highlight styling")
	}
}

func TestToDOTDeterministic(t *testing.T) {
	a := ToDOT(testTopology(), Options{Detailed: true})
	b := ToDOT(testTopology(), Options{Detailed: true})
	if a != b {
		t.Error("ToDOT() output is not deterministic")
	}
}
