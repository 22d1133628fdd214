package patternfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kirillkom/fill-pattern-engine/internal/core/domain"
)

// Repository persists the pattern store as one JSON snapshot on disk.
// Writes go to a temp file in the same directory followed by a rename, so
// readers never observe a half-written store.
type Repository struct {
	path string
}

func New(path string) (*Repository, error) {
	if path == "" {
		path = "./data/patterns.json"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &Repository{path: path}, nil
}

// Load reads the snapshot. A missing file is a fresh deployment and yields
// an empty store; an unreadable or invalid payload is ErrCorruptStore.
func (r *Repository) Load(_ context.Context) (*domain.PatternStore, error) {
	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return domain.NewPatternStore(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read pattern store: %w", err)
	}

	store, err := domain.DeserializePatternStore(data)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func (r *Repository) Save(_ context.Context, store *domain.PatternStore) error {
	data, err := store.Serialize()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), filepath.Base(r.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp store file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp store file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp store file: %w", err)
	}
	if err := os.Rename(tmpPath, r.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace store file: %w", err)
	}
	return nil
}
