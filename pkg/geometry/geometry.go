// Package geometry provides 2D coordinate primitives for network topology.
//
// Segment endpoints are matched into shared nodes by quantizing their
// coordinates onto a grid. Two points whose quantized keys are equal are
// considered coincident. The grid cell size (tolerance) is a configuration
// parameter: too small fragments a continuous pipe into disconnected nodes,
// too large merges distinct manholes.
package geometry

import (
	"fmt"
	"math"
)

// DefaultTolerance is the default coordinate quantization tolerance in map
// units. Projected coordinates in meters are assumed, so 1e-3 matches
// survey-grade snapping.
const DefaultTolerance = 1e-3

// Point is a 2D map coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Distance returns the Euclidean distance between p and q.
func (p Point) Distance(q Point) float64 {
	dx := p.X - q.X
	dy := p.Y - q.Y
	return math.Hypot(dx, dy)
}

// Key returns the quantized node key for p using the given tolerance.
// Points within one grid cell share a key and therefore a node.
// A non-positive tolerance falls back to DefaultTolerance.
func (p Point) Key(tolerance float64) string {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	gx := int64(math.Round(p.X / tolerance))
	gy := int64(math.Round(p.Y / tolerance))
	return fmt.Sprintf("%d:%d", gx, gy)
}

// Coincident reports whether p and q quantize to the same node key.
func Coincident(p, q Point, tolerance float64) bool {
	return p.Key(tolerance) == q.Key(tolerance)
}
