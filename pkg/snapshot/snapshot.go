// Package snapshot persists the last-committed topology snapshot so change
// detection survives process restarts. Backends: a JSON file for desktop
// use and MongoDB for shared deployments.
package snapshot

import (
	"context"
	"time"

	"github.com/openhydro/sewerflow/pkg/change"
	"github.com/openhydro/sewerflow/pkg/network"
)

// Store persists committed snapshots under a name, typically one per
// network file or project.
type Store interface {
	// Save replaces the stored snapshot.
	Save(ctx context.Context, name string, snap *change.Snapshot) error

	// Load returns the stored snapshot, or (nil, nil) when none exists.
	Load(ctx context.Context, name string) (*change.Snapshot, error)

	Close(ctx context.Context) error
}

// document is the storage form of a snapshot. The segment map becomes a
// list because BSON and human-readable JSON both want string keys.
type document struct {
	Name      string            `bson:"_id" json:"name"`
	TakenAt   time.Time         `bson:"taken_at" json:"taken_at"`
	Tolerance float64           `bson:"tolerance" json:"tolerance"`
	Segments  []network.Segment `bson:"segments" json:"segments"`
}

func toDocument(name string, snap *change.Snapshot) document {
	doc := document{
		Name:      name,
		TakenAt:   snap.TakenAt,
		Tolerance: snap.Tolerance,
		Segments:  make([]network.Segment, 0, len(snap.Segments)),
	}
	for _, seg := range snap.Segments {
		doc.Segments = append(doc.Segments, seg.Clone())
	}
	return doc
}

func (d document) snapshot() *change.Snapshot {
	snap := &change.Snapshot{
		TakenAt:   d.TakenAt,
		Tolerance: d.Tolerance,
		Segments:  make(map[int64]network.Segment, len(d.Segments)),
	}
	for _, seg := range d.Segments {
		snap.Segments[seg.ID] = seg.Clone()
	}
	return snap
}

// NullStore discards snapshots. Every cycle then diffs against an empty
// baseline, which treats all segments as added.
type NullStore struct{}

func NewNullStore() Store { return &NullStore{} }

func (*NullStore) Save(context.Context, string, *change.Snapshot) error { return nil }

func (*NullStore) Load(context.Context, string) (*change.Snapshot, error) { return nil, nil }

func (*NullStore) Close(context.Context) error { return nil }
