// Package cache implements the generate-or-retrieve orchestration: embed the
// prompt, query the vector index, reuse cached artifacts above the similarity
// threshold, otherwise generate and commit a new artifact to both stores.
package cache

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/dreamcache/internal/artifact"
	"github.com/hyperjump/dreamcache/internal/config"
	"github.com/hyperjump/dreamcache/internal/embedding"
	"github.com/hyperjump/dreamcache/internal/generation"
	"github.com/hyperjump/dreamcache/internal/keyword"
	"github.com/hyperjump/dreamcache/internal/ranking"
	"github.com/hyperjump/dreamcache/internal/store"
	"github.com/hyperjump/dreamcache/internal/vector"
)

// CommitStage reports how far a miss-path commit progressed.
type CommitStage int

const (
	// CommitOK means the artifact landed in both the content store and the index.
	CommitOK CommitStage = iota
	// CommitSkippedUnsafe means generation succeeded but the safety checker
	// flagged the output; nothing was persisted.
	CommitSkippedUnsafe
	// CommitStoreFailed means the content store write failed; the index was
	// never touched.
	CommitStoreFailed
	// CommitIndexFailed means the content store write succeeded but the index
	// write failed even after reconnecting. The stored blob is an orphan until
	// a later commit or repair re-registers it.
	CommitIndexFailed
)

func (s CommitStage) String() string {
	switch s {
	case CommitOK:
		return "ok"
	case CommitSkippedUnsafe:
		return "skipped_unsafe"
	case CommitStoreFailed:
		return "store_failed"
	case CommitIndexFailed:
		return "index_failed"
	}
	return "unknown"
}

// CommitResult describes the outcome of persisting a newly generated artifact.
type CommitResult struct {
	Stage CommitStage
	ID    string
}

// FetchResult is the response to an image request. Hit is true when a cached
// artifact scored above the threshold and no generation happened. Commit is
// nil on hits.
type FetchResult struct {
	Images [][]byte
	Scores []float64
	Hit    bool
	Commit *CommitResult
}

// PromptPutter is implemented by content stores that can record the prompt
// alongside the artifact bytes.
type PromptPutter interface {
	PutWithPrompt(ctx context.Context, id string, data []byte, prompt string) error
}

// Orchestrator wires the embedder, vector index, content store and generator
// into the suggest and fetch-or-create operations.
type Orchestrator struct {
	embedder  embedding.Embedder
	index     vector.Index
	contents  store.ContentStore
	generator generation.Generator
	ranker    *ranking.Ranker
	prompts   keyword.PromptIndex
	cfg       *config.CacheConfig
	logger    *zap.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithPromptIndex enables best-effort keyword indexing of committed prompts.
func WithPromptIndex(p keyword.PromptIndex) Option {
	return func(o *Orchestrator) { o.prompts = p }
}

// NewOrchestrator creates an orchestrator over the given components.
func NewOrchestrator(emb embedding.Embedder, idx vector.Index, contents store.ContentStore, gen generation.Generator, ranker *ranking.Ranker, cfg *config.CacheConfig, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		embedder:  emb,
		index:     idx,
		contents:  contents,
		generator: gen,
		ranker:    ranker,
		cfg:       cfg,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Suggest returns prompts from the index similar to the given text, deduped,
// filtered by minimum length and capped at the configured maximum. Suggest
// never writes; repeated calls with the same text return the same result.
func (o *Orchestrator) Suggest(ctx context.Context, text string) ([]ranking.Suggestion, error) {
	vec, err := o.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed text: %w", err)
	}
	matches, err := o.index.Query(ctx, vec, o.cfg.SuggestTopK, true)
	if err != nil {
		return nil, fmt.Errorf("suggestion query failed: %w", err)
	}
	return o.ranker.Suggestions(matches), nil
}

// FetchOrCreate serves images for a prompt. It queries the index for the
// nearest cached artifacts; if the best survivor scores above the threshold
// the cached set is returned as a hit. Otherwise a new image is generated,
// committed, and the retrieval re-run so the fresh artifact ranks with the rest.
func (o *Orchestrator) FetchOrCreate(ctx context.Context, prompt string) (*FetchResult, error) {
	vec, err := o.embedder.Embed(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to embed prompt: %w", err)
	}

	images, scores, err := o.retrieve(ctx, vec)
	if err != nil {
		return nil, err
	}
	for _, s := range scores {
		if s > o.cfg.Threshold {
			return &FetchResult{Images: images, Scores: scores, Hit: true}, nil
		}
	}

	commit, err := o.commit(ctx, prompt)
	if err != nil {
		return nil, err
	}

	if commit.Stage == CommitSkippedUnsafe {
		// Nothing new to serve; hand back the sub-threshold retrieval.
		return &FetchResult{Images: images, Scores: scores, Commit: commit}, nil
	}

	// Re-query regardless of commit outcome. A fully committed artifact ranks
	// naturally with the rest; a failed commit degrades to whatever the cache
	// still holds, with the stage reporting what went wrong.
	images, scores, err = o.retrieve(ctx, vec)
	if err != nil {
		return nil, err
	}
	return &FetchResult{Images: images, Scores: scores, Commit: commit}, nil
}

// retrieve queries the index and resolves matches to image bytes, with lazy
// invalidation and placeholder substitution handled by the ranker.
func (o *Orchestrator) retrieve(ctx context.Context, vec []float32) ([][]byte, []float64, error) {
	matches, err := o.index.Query(ctx, vec, o.cfg.ImageTopK, true)
	if err != nil {
		return nil, nil, fmt.Errorf("image query failed: %w", err)
	}
	images, scores := o.ranker.Images(ctx, matches)
	return images, scores, nil
}

// commit generates an image for the prompt and persists it. The content store
// write happens before the index write. Persistence failures never fail the
// request: a store failure skips the index write, an index failure leaves an
// orphaned blob behind, and both are reported through the commit stage.
func (o *Orchestrator) commit(ctx context.Context, prompt string) (*CommitResult, error) {
	out, err := o.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generation failed: %w", err)
	}
	if out.Unsafe {
		o.logger.Info("generation flagged unsafe, skipping commit")
		return &CommitResult{Stage: CommitSkippedUnsafe}, nil
	}

	id := uuid.New().String()

	if err := o.putContent(ctx, id, out.Image, prompt); err != nil {
		o.logger.Error("content store write failed, generation lost",
			zap.String("id", id),
			zap.Error(err))
		return &CommitResult{Stage: CommitStoreFailed, ID: id}, nil
	}

	// The embedding cache makes this cheap for the common case; the index
	// always receives a vector from the same model that served retrieval.
	vec, err := o.embedder.Embed(ctx, prompt)
	if err != nil {
		o.logger.Error("re-embed before index write failed",
			zap.String("id", id),
			zap.Error(err))
		return &CommitResult{Stage: CommitIndexFailed, ID: id}, nil
	}

	meta := vector.Metadata{Prompt: prompt, Location: artifact.Location(id)}
	if err := o.index.Upsert(ctx, id, vec, meta); err != nil {
		o.logger.Error("index write failed, artifact orphaned",
			zap.String("id", id),
			zap.Error(err))
		return &CommitResult{Stage: CommitIndexFailed, ID: id}, nil
	}

	if o.prompts != nil {
		if err := o.prompts.Index(ctx, id, prompt); err != nil {
			o.logger.Warn("prompt keyword indexing failed",
				zap.String("id", id),
				zap.Error(err))
		}
	}

	o.logger.Info("artifact committed",
		zap.String("id", id),
		zap.Int("bytes", len(out.Image)))
	return &CommitResult{Stage: CommitOK, ID: id}, nil
}

func (o *Orchestrator) putContent(ctx context.Context, id string, data []byte, prompt string) error {
	if pp, ok := o.contents.(PromptPutter); ok {
		return pp.PutWithPrompt(ctx, id, data, prompt)
	}
	return o.contents.Put(ctx, id, data)
}

// SearchPrompts looks up cached prompts by keyword. Returns an error when no
// prompt index is configured.
func (o *Orchestrator) SearchPrompts(ctx context.Context, query string, limit int) ([]keyword.PromptHit, error) {
	if o.prompts == nil {
		return nil, fmt.Errorf("prompt index not configured")
	}
	return o.prompts.Search(ctx, query, limit)
}
