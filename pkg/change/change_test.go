package change

import (
	"testing"

	"github.com/openhydro/sewerflow/pkg/geometry"
	"github.com/openhydro/sewerflow/pkg/network"
)

func baseSegments() []network.Segment {
	return []network.Segment{
		{ID: 1, Up: geometry.Point{X: 0, Y: 0}, Down: geometry.Point{X: 10, Y: 0}},
		{ID: 2, Up: geometry.Point{X: 10, Y: 0}, Down: geometry.Point{X: 20, Y: 0}},
	}
}

func snapshotOf(segs []network.Segment) *Snapshot {
	return Capture(network.Build(segs, 1e-3))
}

func TestDiffNoChanges(t *testing.T) {
	snap := snapshotOf(baseSegments())
	if events := snap.Diff(baseSegments(), 1e-3); len(events) != 0 {
		t.Errorf("Diff of identical state = %v, want no events", events)
	}
}

func TestDiffVertexMoved(t *testing.T) {
	snap := snapshotOf(baseSegments())

	moved := baseSegments()
	moved[0].Up = geometry.Point{X: 0, Y: 5}

	events := snap.Diff(moved, 1e-3)
	if len(events) != 1 {
		t.Fatalf("Diff = %v, want exactly one event", events)
	}
	ev := events[0]
	if ev.Kind != VertexMoved || ev.SegmentID != 1 || ev.Endpoint != EndpointUp {
		t.Errorf("event = %+v, want vertex-moved up endpoint of segment 1", ev)
	}
	if ev.Distance != 5 {
		t.Errorf("Distance = %v, want 5", ev.Distance)
	}
}

func TestDiffBothEndpointsMoved(t *testing.T) {
	snap := snapshotOf(baseSegments())

	moved := baseSegments()
	moved[1].Up = geometry.Point{X: 10, Y: 2}
	moved[1].Down = geometry.Point{X: 20, Y: 2}

	events := snap.Diff(moved, 1e-3)
	if len(events) != 2 {
		t.Fatalf("Diff = %v, want two events", events)
	}
	// Upstream endpoint reported before downstream.
	if events[0].Endpoint != EndpointUp || events[1].Endpoint != EndpointDown {
		t.Errorf("endpoint order = %v, %v; want up then down", events[0].Endpoint, events[1].Endpoint)
	}
}

func TestDiffMovementTolerance(t *testing.T) {
	snap := snapshotOf(baseSegments())

	jitter := baseSegments()
	jitter[0].Down = geometry.Point{X: 10.0005, Y: 0}

	// Sub-tolerance displacement is noise, not an edit.
	if events := snap.Diff(jitter, 1e-3); len(events) != 0 {
		t.Errorf("Diff below tolerance = %v, want no events", events)
	}
	if events := snap.Diff(jitter, 0); len(events) != 1 {
		t.Errorf("Diff with zero tolerance = %v, want one event", events)
	}
}

func TestDiffAddRemove(t *testing.T) {
	snap := snapshotOf(baseSegments())

	edited := []network.Segment{
		baseSegments()[0],
		{ID: 5, Up: geometry.Point{X: 20, Y: 0}, Down: geometry.Point{X: 30, Y: 0}},
	}

	events := snap.Diff(edited, 1e-3)
	if len(events) != 2 {
		t.Fatalf("Diff = %v, want two events", events)
	}
	if events[0].Kind != SegmentRemoved || events[0].SegmentID != 2 {
		t.Errorf("first event = %+v, want removal of segment 2", events[0])
	}
	// Removal events carry the old endpoint coordinates for node lookup.
	if events[0].Old != (geometry.Point{X: 10, Y: 0}) || events[0].New != (geometry.Point{X: 20, Y: 0}) {
		t.Errorf("removal coordinates = %+v", events[0])
	}
	if events[1].Kind != SegmentAdded || events[1].SegmentID != 5 {
		t.Errorf("second event = %+v, want addition of segment 5", events[1])
	}
}

func TestCaptureIsACopy(t *testing.T) {
	segs := baseSegments()
	segs[0].DownDepth = network.Float(1.5)
	topo := network.Build(segs, 1e-3)
	snap := Capture(topo)

	// Mutating the live topology must not leak into the snapshot.
	live, _ := topo.Segment(1)
	*live.DownDepth = 9.9

	if got := *snap.Segments[1].DownDepth; got != 1.5 {
		t.Fatalf("snapshot depth = %v, want 1.5 (snapshot must be immutable)", got)
	}
}

func TestEmptySnapshotDiffReportsAdds(t *testing.T) {
	snap := Empty(1e-3)
	events := snap.Diff(baseSegments(), 1e-3)
	if len(events) != 2 {
		t.Fatalf("Diff = %v, want two additions", events)
	}
	for _, ev := range events {
		if ev.Kind != SegmentAdded {
			t.Errorf("event kind = %v, want segment-added", ev.Kind)
		}
	}
}
