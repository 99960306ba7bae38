// Package generation defines the text-to-image generation oracle.
package generation

import "context"

// Output is a single generation result. Unsafe marks content the model's
// safety checker flagged; callers must not persist or serve flagged output.
type Output struct {
	Image  []byte
	Unsafe bool
}

// Generator produces an image for a prompt. Failures are fatal to the calling
// operation; there is no retry at this layer.
type Generator interface {
	Generate(ctx context.Context, prompt string) (*Output, error)
	Close() error
}
