// Package ranking turns raw vector index matches into served results:
// deduplicated prompt suggestions and validated image sequences.
package ranking

import (
	"bytes"
	"context"
	"image/png"
	"math"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/hyperjump/dreamcache/internal/store"
	"github.com/hyperjump/dreamcache/internal/vector"
)

// Suggestion is one ranked prompt suggestion. Similarity is rounded to two
// decimals for display.
type Suggestion struct {
	Similarity float64 `json:"similarity"`
	Prompt     string  `json:"prompt"`
}

// Ranker reads from the content store to resolve matches; it never writes
// except through lazy invalidation of entries found corrupt.
type Ranker struct {
	store          store.ContentStore
	index          vector.Index
	minPromptLen   int
	maxSuggestions int
	logger         *zap.Logger
	onInvalidate   func(ctx context.Context, id string)
}

// RankerOption configures a Ranker.
type RankerOption func(*Ranker)

// WithLogger sets a logger for invalidation and fetch events.
func WithLogger(l *zap.Logger) RankerOption {
	return func(r *Ranker) { r.logger = l }
}

// WithInvalidateHook registers a callback invoked after an entry is lazily
// invalidated (e.g. to prune the prompt keyword index).
func WithInvalidateHook(fn func(ctx context.Context, id string)) RankerOption {
	return func(r *Ranker) { r.onInvalidate = fn }
}

// NewRanker creates a ranker. minPromptLen filters suggestions at or below that
// length; maxSuggestions truncates the suggestion list.
func NewRanker(contentStore store.ContentStore, idx vector.Index, minPromptLen, maxSuggestions int, opts ...RankerOption) *Ranker {
	r := &Ranker{
		store:          contentStore,
		index:          idx,
		minPromptLen:   minPromptLen,
		maxSuggestions: maxSuggestions,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Suggestions runs the suggestion pipeline: dedup by exact prompt text keeping
// the first (highest-ranked) occurrence, drop short prompts, truncate. The
// incoming rank order is preserved; nothing is re-sorted.
func (r *Ranker) Suggestions(matches []vector.Match) []Suggestion {
	seen := make(map[string]bool, len(matches))
	out := make([]Suggestion, 0, r.maxSuggestions)
	for _, m := range matches {
		prompt := m.Metadata.Prompt
		if seen[prompt] {
			continue
		}
		seen[prompt] = true
		// Short prompts tend to be less useful or interesting.
		if utf8.RuneCountInString(prompt) <= r.minPromptLen {
			continue
		}
		out = append(out, Suggestion{
			Similarity: math.Round(m.Score*100) / 100,
			Prompt:     prompt,
		})
		if len(out) >= r.maxSuggestions {
			break
		}
	}
	return out
}

// Images runs the image-serving pipeline: resolve each match to content and
// validate it decodes as PNG. Unreadable content is lazily invalidated and
// replaced with the placeholder, preserving sequence length. Scores are
// returned raw, parallel to the images.
func (r *Ranker) Images(ctx context.Context, matches []vector.Match) ([][]byte, []float64) {
	images := make([][]byte, 0, len(matches))
	scores := make([]float64, 0, len(matches))
	for _, m := range matches {
		data, err := r.store.Get(ctx, m.ID)
		if err != nil || !decodable(data) {
			r.invalidate(ctx, m.ID, err)
			data = Placeholder()
		}
		images = append(images, data)
		scores = append(scores, m.Score)
	}
	return images, scores
}

// decodable reports whether data parses as a PNG header and metadata.
func decodable(data []byte) bool {
	_, err := png.DecodeConfig(bytes.NewReader(data))
	return err == nil
}

// invalidate removes the entry for id from both the vector index and the
// content store. Both deletes are idempotent; failures are logged and
// swallowed so the serve path is never blocked on repair.
func (r *Ranker) invalidate(ctx context.Context, id string, cause error) {
	r.logger.Warn("invalidating unreadable artifact", zap.String("id", id), zap.Error(cause))
	if err := r.index.Delete(ctx, []string{id}); err != nil {
		r.logger.Error("index delete failed during invalidation", zap.String("id", id), zap.Error(err))
	}
	if err := r.store.Delete(ctx, id); err != nil {
		r.logger.Error("store delete failed during invalidation", zap.String("id", id), zap.Error(err))
	}
	if r.onInvalidate != nil {
		r.onInvalidate(ctx, id)
	}
}

// Invalidate removes a known-bad entry by ID. Exposed for out-of-band repair
// (e.g. the filesystem watcher noticing a deleted blob).
func (r *Ranker) Invalidate(ctx context.Context, id string) {
	r.invalidate(ctx, id, nil)
}
