// Package store provides the filesystem implementation of ContentStore.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FSStore implements ContentStore as one PNG file per artifact under a directory.
// Useful for development and for inspecting the cache with ordinary tools; pairs
// with the directory watcher for out-of-band deletion repair.
type FSStore struct {
	dir string
}

// NewFSStore creates the directory if needed and returns a filesystem store.
func NewFSStore(dir string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FSStore{dir: dir}, nil
}

// Dir returns the directory blobs are written to.
func (s *FSStore) Dir() string {
	return s.dir
}

func (s *FSStore) path(id string) string {
	return filepath.Join(s.dir, id+".png")
}

// Put writes the blob for id atomically (temp file + rename).
func (s *FSStore) Put(ctx context.Context, id string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, id+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to stage blob: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close blob: %w", err)
	}
	if err := os.Rename(tmpName, s.path(id)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to commit blob: %w", err)
	}
	return nil
}

// Get returns the blob for id, or ErrNotFound.
func (s *FSStore) Get(ctx context.Context, id string) ([]byte, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// Delete removes the blob for id. Deleting a missing ID is a no-op.
func (s *FSStore) Delete(ctx context.Context, id string) error {
	if err := os.Remove(s.path(id)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Count returns the number of stored artifact files.
func (s *FSStore) Count(ctx context.Context) (int64, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, err
	}
	var n int64
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".png" {
			n++
		}
	}
	return n, nil
}

// Close is a no-op for FSStore.
func (s *FSStore) Close() error {
	return nil
}
