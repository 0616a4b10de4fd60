// Package elevation supplies ground elevations for network nodes.
//
// Elevations come from a [Sampler], typically a terrain raster. The
// [Updater] walks impacted nodes in strict upstream→downstream order:
// a valid sample at a node's current coordinate is authoritative; a node
// without a sample is linearly interpolated between the nearest anchored
// elevations along cumulative segment length, or derived from the
// slope-implied drop when only one side is anchored. A chain with no
// elevation source at all is deferred, never defaulted to zero.
package elevation

import (
	"context"
	"errors"
	"math"

	"github.com/openhydro/sewerflow/pkg/geometry"
	"github.com/openhydro/sewerflow/pkg/observability"
)

// ErrNoSample is returned by samplers when no elevation value exists at
// the requested coordinate (outside coverage or a no-data cell).
var ErrNoSample = errors.New("no elevation sample at coordinate")

// Sampler provides an elevation for a map coordinate.
type Sampler interface {
	// Sample returns the elevation at the given point, or ErrNoSample if
	// the point has no coverage.
	Sample(ctx context.Context, p geometry.Point) (float64, error)
}

// Grid is an in-memory elevation raster with row-major cell values.
// Row 0 is the northernmost row (max Y), matching common raster layouts.
type Grid struct {
	// OriginX and OriginY are the coordinates of the grid's top-left
	// corner (minimum X, maximum Y).
	OriginX float64 `json:"origin_x"`
	OriginY float64 `json:"origin_y"`

	// CellSize is the edge length of a square cell in map units.
	CellSize float64 `json:"cell_size"`

	// NoData marks missing cells. NaN values are always treated as no-data.
	NoData float64 `json:"nodata"`

	// Values holds rows top-down, each row west to east.
	Values [][]float64 `json:"values"`
}

// GridSampler samples a Grid using bilinear interpolation between the four
// surrounding cell centers, falling back to the nearest cell at the grid
// edge. It implements [Sampler].
type GridSampler struct {
	grid *Grid
}

// NewGridSampler wraps a grid. The grid must have a positive cell size and
// at least one row.
func NewGridSampler(g *Grid) *GridSampler {
	return &GridSampler{grid: g}
}

// Sample returns the bilinearly interpolated elevation at p.
func (s *GridSampler) Sample(ctx context.Context, p geometry.Point) (float64, error) {
	v, err := s.sample(p)
	observability.Sampler().OnSample(ctx, err == nil)
	return v, err
}

func (s *GridSampler) sample(p geometry.Point) (float64, error) {
	g := s.grid
	if g == nil || g.CellSize <= 0 || len(g.Values) == 0 {
		return 0, ErrNoSample
	}

	// Fractional cell-center coordinates of p.
	fx := (p.X-g.OriginX)/g.CellSize - 0.5
	fy := (g.OriginY-p.Y)/g.CellSize - 0.5

	col := int(math.Floor(fx))
	row := int(math.Floor(fy))

	v11, ok11 := s.cell(row, col)
	v21, ok21 := s.cell(row, col+1)
	v12, ok12 := s.cell(row+1, col)
	v22, ok22 := s.cell(row+1, col+1)

	if !(ok11 && ok21 && ok12 && ok22) {
		// Edge or no-data neighborhood: nearest-cell fallback.
		return s.nearest(p)
	}

	tx := fx - float64(col)
	ty := fy - float64(row)
	top := v11*(1-tx) + v21*tx
	bottom := v12*(1-tx) + v22*tx
	return top*(1-ty) + bottom*ty, nil
}

// nearest returns the value of the cell containing p.
func (s *GridSampler) nearest(p geometry.Point) (float64, error) {
	g := s.grid
	col := int(math.Floor((p.X - g.OriginX) / g.CellSize))
	row := int(math.Floor((g.OriginY - p.Y) / g.CellSize))
	v, ok := s.cell(row, col)
	if !ok {
		return 0, ErrNoSample
	}
	return v, nil
}

// cell returns the value at (row, col) and whether it is valid data.
func (s *GridSampler) cell(row, col int) (float64, bool) {
	g := s.grid
	if row < 0 || row >= len(g.Values) {
		return 0, false
	}
	r := g.Values[row]
	if col < 0 || col >= len(r) {
		return 0, false
	}
	v := r[col]
	if math.IsNaN(v) || v == g.NoData {
		return 0, false
	}
	return v, true
}

// Static is a trivial sampler returning fixed elevations by quantized
// coordinate key, useful for tests and synthetic networks.
type Static struct {
	Tolerance float64
	ByKey     map[string]float64
}

// Sample returns the configured elevation for p's quantized key.
func (s *Static) Sample(ctx context.Context, p geometry.Point) (float64, error) {
	v, ok := s.ByKey[p.Key(s.Tolerance)]
	observability.Sampler().OnSample(ctx, ok)
	if !ok {
		return 0, ErrNoSample
	}
	return v, nil
}
