// Package embedding provides prompt text embedding via ONNX and caching.
package embedding

import "context"

// Embedder produces vector embeddings for prompt text.
// Embeddings are deterministic for a given model snapshot.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Close() error
}
