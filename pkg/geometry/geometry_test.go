package geometry

import (
	"math"
	"testing"
)

func TestDistance(t *testing.T) {
	a := Point{X: 0, Y: 0}
	b := Point{X: 3, Y: 4}
	if d := a.Distance(b); d != 5 {
		t.Errorf("Distance = %v, want 5", d)
	}
	if d := a.Distance(a); d != 0 {
		t.Errorf("Distance to self = %v, want 0", d)
	}
}

func TestKeyCoincidence(t *testing.T) {
	tests := []struct {
		name      string
		a, b      Point
		tolerance float64
		same      bool
	}{
		{
			name: "identical points share a key",
			a:    Point{X: 100.5, Y: 200.25},
			b:    Point{X: 100.5, Y: 200.25},
			tolerance: 1e-3,
			same: true,
		},
		{
			name: "within tolerance snaps to same node",
			a:    Point{X: 100.0000, Y: 200.0000},
			b:    Point{X: 100.0004, Y: 199.9996},
			tolerance: 1e-3,
			same: true,
		},
		{
			name: "beyond tolerance stays distinct",
			a:    Point{X: 100.000, Y: 200.000},
			b:    Point{X: 100.010, Y: 200.000},
			tolerance: 1e-3,
			same: false,
		},
		{
			name: "large tolerance merges distinct manholes",
			a:    Point{X: 100, Y: 200},
			b:    Point{X: 101, Y: 200},
			tolerance: 5,
			same: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Coincident(tt.a, tt.b, tt.tolerance); got != tt.same {
				t.Errorf("Coincident = %v, want %v (keys %q vs %q)",
					got, tt.same, tt.a.Key(tt.tolerance), tt.b.Key(tt.tolerance))
			}
		})
	}
}

func TestKeyDefaultTolerance(t *testing.T) {
	p := Point{X: 1.2345, Y: -9.8765}
	if p.Key(0) != p.Key(DefaultTolerance) {
		t.Error("non-positive tolerance should fall back to DefaultTolerance")
	}
	if p.Key(-1) != p.Key(DefaultTolerance) {
		t.Error("negative tolerance should fall back to DefaultTolerance")
	}
}

func TestKeyStability(t *testing.T) {
	// Keys must be stable across repeated quantization of the same point.
	p := Point{X: 532017.118, Y: 6982044.902}
	k := p.Key(1e-3)
	for i := 0; i < 100; i++ {
		if p.Key(1e-3) != k {
			t.Fatal("node key is not deterministic")
		}
	}
	if math.IsNaN(p.Distance(p)) {
		t.Fatal("distance produced NaN")
	}
}
