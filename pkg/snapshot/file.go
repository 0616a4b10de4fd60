package snapshot

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/openhydro/sewerflow/pkg/change"
	"github.com/openhydro/sewerflow/pkg/errors"
)

// FileStore keeps one JSON file per snapshot name under a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "creating snapshot dir")
	}
	return &FileStore{dir: dir}, nil
}

// Save writes the snapshot through a temp file and renames it into place.
func (s *FileStore) Save(ctx context.Context, name string, snap *change.Snapshot) error {
	raw, err := json.MarshalIndent(toDocument(name, snap), "", "  ")
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encoding snapshot")
	}

	tmp, err := os.CreateTemp(s.dir, ".snapshot-*")
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "writing snapshot")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return errors.Wrap(errors.ErrCodeInternal, err, "writing snapshot")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "writing snapshot")
	}
	return os.Rename(tmp.Name(), s.path(name))
}

// Load reads a stored snapshot, or returns (nil, nil) when none exists or
// the file is unreadable. A corrupt snapshot only costs one full diff, so
// it is not worth failing the cycle over.
func (s *FileStore) Load(ctx context.Context, name string) (*change.Snapshot, error) {
	raw, err := os.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "reading snapshot")
	}
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, nil
	}
	return doc.snapshot(), nil
}

func (s *FileStore) Close(ctx context.Context) error { return nil }

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, sanitize(name)+".json")
}

// sanitize maps a snapshot name to a safe filename.
func sanitize(name string) string {
	if name == "" {
		return "default"
	}
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		}
		return '_'
	}, name)
	return mapped
}
