// Package provider abstracts the external geometry and attribute source a
// recalculation engine reads from and writes back to. In a desktop GIS
// deployment this is the edited layer; here implementations exist for an
// in-memory store and a JSON network file.
package provider

import (
	"context"

	"github.com/openhydro/sewerflow/pkg/geometry"
	"github.com/openhydro/sewerflow/pkg/network"
)

// Attributes are the hydraulic parameters stored per segment. Zero values
// fall back to network defaults.
type Attributes struct {
	Diameter float64 `json:"diameter,omitempty"`
	Slope    float64 `json:"slope,omitempty"`
	MinCover float64 `json:"min_cover,omitempty"`
}

// AttributeUpdate carries computed values to write back. Nil fields are
// left untouched.
type AttributeUpdate struct {
	UpElev    *float64
	DownElev  *float64
	UpDepth   *float64
	DownDepth *float64
}

// Provider is the external geometry/elevation collaborator.
type Provider interface {
	// Segments enumerates every segment with current geometry and stored
	// attribute values.
	Segments(ctx context.Context) ([]network.Segment, error)

	// SegmentEndpoints returns the current endpoint coordinates of one
	// segment.
	SegmentEndpoints(ctx context.Context, id int64) (up, down geometry.Point, err error)

	// SegmentAttributes returns the stored hydraulic parameters of one
	// segment.
	SegmentAttributes(ctx context.Context, id int64) (Attributes, error)

	// WriteSegmentAttributes persists computed elevations and depths.
	WriteSegmentAttributes(ctx context.Context, id int64, update AttributeUpdate) error
}
