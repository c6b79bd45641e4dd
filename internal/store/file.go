// Package store provides embedding-table persistence backends. Both backends
// replace the stored table atomically: a crash mid-save may lose the
// in-flight table but never corrupts the previous one.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/davidbz/marketmatch/internal/domain"
)

// File persists the embedding table as a JSON file on disk.
type File struct {
	path string
}

// NewFile creates a file-backed store at path, creating parent directories
// as needed on first save.
func NewFile(path string) *File {
	return &File{path: path}
}

// Load reads the stored table. A missing file is an empty table, not an
// error.
func (f *File) Load(_ context.Context) ([]domain.EmbeddingRecord, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", f.path, err)
	}

	var records []domain.EmbeddingRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrCacheCorrupted, f.path, err)
	}
	return records, nil
}

// Save replaces the stored table. The table is written to a temp file in the
// same directory and renamed over the live file, so readers see either the
// old complete table or the new one.
func (f *File) Save(_ context.Context, records []domain.EmbeddingRecord) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encoding embedding table: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing %s: %w", f.path, err)
	}
	return nil
}
