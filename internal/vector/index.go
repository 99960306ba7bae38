// Package vector provides the vector index for prompt embeddings and similarity search.
package vector

import "context"

// Metadata is the per-entry payload stored alongside an embedding.
type Metadata struct {
	Prompt   string `json:"prompt"`
	Location string `json:"location"`
}

// Match is a single similarity hit. Metadata is populated only when the query
// requested it.
type Match struct {
	ID       string
	Score    float64
	Metadata Metadata
}

// Index defines vector storage and similarity search over cached prompts.
// Query returns matches ordered by descending similarity, at most topK of them.
// Upsert overwrites any existing entry for id; Delete is idempotent.
type Index interface {
	Query(ctx context.Context, query []float32, topK int, includeMetadata bool) ([]Match, error)
	Upsert(ctx context.Context, id string, vec []float32, meta Metadata) error
	Delete(ctx context.Context, ids []string) error
	Close() error
}

// Sizer is implemented by indexes that can report how many entries they hold.
type Sizer interface {
	Size() int
}
