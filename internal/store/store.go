// Package store defines durable blob persistence for generated images.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no blob exists for the given ID.
var ErrNotFound = errors.New("artifact not found")

// ContentStore persists image bytes keyed by artifact ID.
// Put overwrites; Delete is idempotent (deleting a missing ID is not an error).
type ContentStore interface {
	Put(ctx context.Context, id string, data []byte) error
	Get(ctx context.Context, id string) ([]byte, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// Counter is implemented by stores that can report how many artifacts they hold.
// Used by the status endpoint; not part of the serve path.
type Counter interface {
	Count(ctx context.Context) (int64, error)
}
