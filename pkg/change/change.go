// Package change detects geometry deltas between topology snapshots.
//
// A [Snapshot] is an immutable record of segment state at a point in time,
// owned by the orchestrator and replaced wholesale after each successful
// recalculation cycle. Diffing a snapshot against the current segment
// collection yields a batch of [Event] values, each a closed tagged
// variant: vertex moved, segment added, or segment removed. Events are
// produced once per edit batch and consumed exactly once by the impact
// analyzer; they are never persisted.
package change

import (
	"fmt"
	"slices"
	"time"

	"github.com/openhydro/sewerflow/pkg/geometry"
	"github.com/openhydro/sewerflow/pkg/network"
)

// Kind discriminates the change event variants. The set is closed:
// the impact analyzer handles every kind exhaustively.
type Kind int

const (
	// VertexMoved reports that a segment endpoint moved beyond the
	// movement tolerance.
	VertexMoved Kind = iota
	// SegmentAdded reports a segment present now but not in the snapshot.
	SegmentAdded
	// SegmentRemoved reports a segment present in the snapshot but gone now.
	SegmentRemoved
)

// String returns the kind name for logs and reports.
func (k Kind) String() string {
	switch k {
	case VertexMoved:
		return "vertex-moved"
	case SegmentAdded:
		return "segment-added"
	case SegmentRemoved:
		return "segment-removed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Endpoint identifies which end of a segment an event refers to.
type Endpoint int

const (
	// EndpointUp is the upstream endpoint.
	EndpointUp Endpoint = iota
	// EndpointDown is the downstream endpoint.
	EndpointDown
)

// String returns the endpoint name for logs and reports.
func (e Endpoint) String() string {
	if e == EndpointDown {
		return "down"
	}
	return "up"
}

// Event represents one detected geometry delta.
//
// Endpoint, Old, New and Distance are meaningful only for VertexMoved.
// For SegmentRemoved, Old holds the removed segment's upstream coordinate
// and New its downstream coordinate so the analyzer can locate the nodes
// that lost a connection.
type Event struct {
	Kind      Kind
	SegmentID int64
	Endpoint  Endpoint
	Old       geometry.Point
	New       geometry.Point
	Distance  float64
}

// Snapshot is an immutable copy of all segment state at capture time,
// used only for diffing.
type Snapshot struct {
	TakenAt   time.Time
	Tolerance float64
	Segments  map[int64]network.Segment
}

// Capture copies the topology's segment state into a new snapshot.
func Capture(topo *network.Topology) *Snapshot {
	snap := &Snapshot{
		TakenAt:   time.Now(),
		Tolerance: topo.Tolerance(),
		Segments:  make(map[int64]network.Segment, topo.SegmentCount()),
	}
	for _, id := range topo.SegmentIDs() {
		seg, _ := topo.Segment(id)
		snap.Segments[id] = seg.Clone()
	}
	return snap
}

// Empty returns a snapshot with no segments, used before the first cycle.
func Empty(tolerance float64) *Snapshot {
	return &Snapshot{
		TakenAt:   time.Now(),
		Tolerance: tolerance,
		Segments:  map[int64]network.Segment{},
	}
}

// Diff compares the snapshot against the current segment collection and
// returns the detected change events in deterministic order: removals,
// additions, then vertex moves, each sorted by segment id with the
// upstream endpoint reported before the downstream one.
//
// Endpoint displacements at or below movementTolerance are noise, not
// edits, and produce no event. A non-positive movementTolerance reports
// every displacement.
func (s *Snapshot) Diff(current []network.Segment, movementTolerance float64) []Event {
	curr := make(map[int64]network.Segment, len(current))
	for _, seg := range current {
		curr[seg.ID] = seg
	}

	var events []Event

	for _, id := range sortedIDs(s.Segments) {
		if _, ok := curr[id]; !ok {
			prev := s.Segments[id]
			events = append(events, Event{
				Kind:      SegmentRemoved,
				SegmentID: id,
				Old:       prev.Up,
				New:       prev.Down,
			})
		}
	}

	for _, id := range sortedIDs(curr) {
		if _, ok := s.Segments[id]; !ok {
			events = append(events, Event{Kind: SegmentAdded, SegmentID: id})
		}
	}

	for _, id := range sortedIDs(curr) {
		prev, ok := s.Segments[id]
		if !ok {
			continue
		}
		seg := curr[id]
		if d := prev.Up.Distance(seg.Up); d > movementTolerance {
			events = append(events, Event{
				Kind:      VertexMoved,
				SegmentID: id,
				Endpoint:  EndpointUp,
				Old:       prev.Up,
				New:       seg.Up,
				Distance:  d,
			})
		}
		if d := prev.Down.Distance(seg.Down); d > movementTolerance {
			events = append(events, Event{
				Kind:      VertexMoved,
				SegmentID: id,
				Endpoint:  EndpointDown,
				Old:       prev.Down,
				New:       seg.Down,
				Distance:  d,
			})
		}
	}

	return events
}

func sortedIDs(m map[int64]network.Segment) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
