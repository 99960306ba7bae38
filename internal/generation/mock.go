package generation

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
)

// MockGenerator is a deterministic generator for tests and generator-less runs.
// It renders a small solid-color PNG derived from the prompt, and flags prompts
// containing UnsafeMarker as unsafe.
type MockGenerator struct {
	// UnsafeMarker, when non-empty, marks any prompt containing it as unsafe.
	UnsafeMarker string

	mu    sync.Mutex
	calls int
}

// NewMockGenerator returns a mock generator.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{UnsafeMarker: "unsafe:"}
}

// Generate renders a deterministic 8x8 PNG for the prompt.
func (g *MockGenerator) Generate(ctx context.Context, prompt string) (*Output, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()

	if g.UnsafeMarker != "" && strings.Contains(prompt, g.UnsafeMarker) {
		return &Output{Unsafe: true}, nil
	}

	h := 0
	for _, c := range prompt {
		h = 31*h + int(c)
	}
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	fill := color.RGBA{R: uint8(h), G: uint8(h >> 8), B: uint8(h >> 16), A: 255}
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, fill)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return &Output{Image: buf.Bytes()}, nil
}

// Calls returns how many times Generate was invoked.
func (g *MockGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// Close is a no-op for MockGenerator.
func (g *MockGenerator) Close() error {
	return nil
}
