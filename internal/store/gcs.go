// Package store provides the Google Cloud Storage implementation of ContentStore.
package store

import (
	"context"
	"errors"
	"io"

	gcstorage "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/hyperjump/dreamcache/internal/artifact"
)

// GCSStore implements ContentStore on a Google Cloud Storage bucket.
// Objects are written under "images/<id>.png", the layout the hosted
// deployment uses.
type GCSStore struct {
	client *gcstorage.Client
	bucket string
}

// NewGCSStore returns a store backed by the given bucket. Credentials come
// from the ambient environment (GOOGLE_APPLICATION_CREDENTIALS or metadata).
func NewGCSStore(ctx context.Context, bucket string) (*GCSStore, error) {
	client, err := gcstorage.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &GCSStore{client: client, bucket: bucket}, nil
}

func (s *GCSStore) object(id string) *gcstorage.ObjectHandle {
	return s.client.Bucket(s.bucket).Object(artifact.Location(id))
}

// Put writes the blob for id.
func (s *GCSStore) Put(ctx context.Context, id string, data []byte) error {
	w := s.object(id).NewWriter(ctx)
	w.ContentType = "image/png"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// Get returns the blob for id, or ErrNotFound.
func (s *GCSStore) Get(ctx context.Context, id string) ([]byte, error) {
	r, err := s.object(id).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcstorage.ErrObjectNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer func() { _ = r.Close() }()
	return io.ReadAll(r)
}

// Delete removes the blob for id. Deleting a missing object is a no-op.
func (s *GCSStore) Delete(ctx context.Context, id string) error {
	err := s.object(id).Delete(ctx)
	if err != nil && !errors.Is(err, gcstorage.ErrObjectNotExist) {
		return err
	}
	return nil
}

// Count returns the number of stored artifacts under the images/ prefix.
func (s *GCSStore) Count(ctx context.Context) (int64, error) {
	var n int64
	it := s.client.Bucket(s.bucket).Objects(ctx, &gcstorage.Query{Prefix: "images/"})
	for {
		_, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return 0, err
		}
		n++
	}
	return n, nil
}

// Close closes the underlying client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}
