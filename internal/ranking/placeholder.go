package ranking

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"sync"
)

var (
	placeholderOnce sync.Once
	placeholderPNG  []byte
)

// Placeholder returns the fixed fallback image substituted for unreadable
// artifacts: a plain black square, always available, generated once.
func Placeholder() []byte {
	placeholderOnce.Do(func() {
		img := image.NewRGBA(image.Rect(0, 0, 64, 64))
		black := color.RGBA{A: 255}
		for y := 0; y < 64; y++ {
			for x := 0; x < 64; x++ {
				img.Set(x, y, black)
			}
		}
		var buf bytes.Buffer
		// Encoding a fixed in-memory image cannot fail.
		_ = png.Encode(&buf, img)
		placeholderPNG = buf.Bytes()
	})
	return placeholderPNG
}
