package provider

import (
	"context"
	"slices"
	"sync"

	"github.com/openhydro/sewerflow/pkg/errors"
	"github.com/openhydro/sewerflow/pkg/geometry"
	"github.com/openhydro/sewerflow/pkg/network"
)

// Memory is an in-process segment store. It backs tests, the CLI and the
// HTTP server, where edits arrive as explicit geometry updates rather than
// from a live editing surface.
type Memory struct {
	mu       sync.RWMutex
	segments map[int64]*network.Segment
}

// NewMemory builds a store holding copies of the given segments.
func NewMemory(segments []network.Segment) *Memory {
	m := &Memory{segments: make(map[int64]*network.Segment, len(segments))}
	for i := range segments {
		seg := segments[i].Clone()
		m.segments[seg.ID] = &seg
	}
	return m
}

// Segments returns clones of all stored segments in ascending id order.
func (m *Memory) Segments(ctx context.Context) ([]network.Segment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]int64, 0, len(m.segments))
	for id := range m.segments {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	out := make([]network.Segment, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.segments[id].Clone())
	}
	return out, nil
}

// SegmentEndpoints returns the current endpoints of one segment.
func (m *Memory) SegmentEndpoints(ctx context.Context, id int64) (geometry.Point, geometry.Point, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seg, ok := m.segments[id]
	if !ok {
		return geometry.Point{}, geometry.Point{}, errors.New(errors.ErrCodeSegmentNotFound, "segment %d", id)
	}
	return seg.Up, seg.Down, nil
}

// SegmentAttributes returns the stored hydraulic parameters.
func (m *Memory) SegmentAttributes(ctx context.Context, id int64) (Attributes, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seg, ok := m.segments[id]
	if !ok {
		return Attributes{}, errors.New(errors.ErrCodeSegmentNotFound, "segment %d", id)
	}
	return Attributes{Diameter: seg.Diameter, Slope: seg.Slope, MinCover: seg.MinCover}, nil
}

// WriteSegmentAttributes persists computed elevations and depths. Nil
// fields in the update leave the stored value untouched.
func (m *Memory) WriteSegmentAttributes(ctx context.Context, id int64, update AttributeUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	seg, ok := m.segments[id]
	if !ok {
		return errors.New(errors.ErrCodeSegmentNotFound, "segment %d", id)
	}
	applyFloat(&seg.UpElev, update.UpElev)
	applyFloat(&seg.DownElev, update.DownElev)
	applyFloat(&seg.UpDepth, update.UpDepth)
	applyFloat(&seg.DownDepth, update.DownDepth)
	return nil
}

// MoveEndpoint updates one endpoint coordinate, as an editing surface would.
func (m *Memory) MoveEndpoint(id int64, down bool, to geometry.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	seg, ok := m.segments[id]
	if !ok {
		return errors.New(errors.ErrCodeSegmentNotFound, "segment %d", id)
	}
	if down {
		seg.Down = to
	} else {
		seg.Up = to
	}
	// Geometry changed, stored length is stale.
	seg.Length = 0
	return nil
}

// AddSegment inserts a new segment. The id must be unused.
func (m *Memory) AddSegment(seg network.Segment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.segments[seg.ID]; ok {
		return errors.New(errors.ErrCodeInvalidInput, "segment %d already exists", seg.ID)
	}
	c := seg.Clone()
	m.segments[seg.ID] = &c
	return nil
}

// RemoveSegment deletes a segment. Removing an unknown id is a no-op.
func (m *Memory) RemoveSegment(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.segments, id)
}

func applyFloat(dst **float64, v *float64) {
	if v == nil {
		return
	}
	c := *v
	*dst = &c
}
