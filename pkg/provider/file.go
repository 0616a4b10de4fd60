package provider

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/openhydro/sewerflow/pkg/elevation"
	"github.com/openhydro/sewerflow/pkg/errors"
	"github.com/openhydro/sewerflow/pkg/geometry"
	"github.com/openhydro/sewerflow/pkg/network"
)

// NetworkFile is the JSON document the CLI reads networks from and writes
// results back to. The embedded grid is optional; without it elevations
// must already be present on the segments.
type NetworkFile struct {
	Tolerance float64           `json:"tolerance,omitempty"`
	Segments  []network.Segment `json:"segments"`
	Grid      *elevation.Grid   `json:"grid,omitempty"`
}

// LoadFile reads a network file.
func LoadFile(path string) (*NetworkFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "reading network file")
	}
	var f NetworkFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "parsing network file")
	}
	if f.Tolerance == 0 {
		f.Tolerance = geometry.DefaultTolerance
	}
	seen := make(map[int64]bool, len(f.Segments))
	for _, seg := range f.Segments {
		if seen[seg.ID] {
			return nil, errors.New(errors.ErrCodeInvalidInput, "duplicate segment id %d", seg.ID)
		}
		seen[seg.ID] = true
	}
	return &f, nil
}

// Provider returns an in-memory store over the file's segments.
func (f *NetworkFile) Provider() *Memory {
	return NewMemory(f.Segments)
}

// Sampler returns a sampler over the embedded grid, or nil when the file
// carries no terrain.
func (f *NetworkFile) Sampler() elevation.Sampler {
	if f.Grid == nil {
		return nil
	}
	return elevation.NewGridSampler(f.Grid)
}

// SaveFile writes the current provider contents back to a network file,
// preserving the tolerance and grid. The write goes through a temp file in
// the same directory so a crash cannot truncate the original.
func SaveFile(ctx context.Context, path string, f *NetworkFile, p Provider) error {
	segments, err := p.Segments(ctx)
	if err != nil {
		return err
	}
	out := NetworkFile{Tolerance: f.Tolerance, Segments: segments, Grid: f.Grid}

	raw, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encoding network file")
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".sewerflow-*")
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "writing network file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return errors.Wrap(errors.ErrCodeInternal, err, "writing network file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "writing network file")
	}
	return os.Rename(tmp.Name(), path)
}
