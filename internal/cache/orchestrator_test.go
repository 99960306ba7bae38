package cache

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/hyperjump/dreamcache/internal/config"
	"github.com/hyperjump/dreamcache/internal/embedding"
	"github.com/hyperjump/dreamcache/internal/generation"
	"github.com/hyperjump/dreamcache/internal/keyword"
	"github.com/hyperjump/dreamcache/internal/ranking"
	"github.com/hyperjump/dreamcache/internal/store"
	"github.com/hyperjump/dreamcache/internal/vector"
)

func testConfig() *config.CacheConfig {
	return &config.CacheConfig{
		Threshold:       0.85,
		SuggestTopK:     20,
		ImageTopK:       9,
		MinPromptLength: 7,
		MaxSuggestions:  5,
	}
}

type testEnv struct {
	orch  *Orchestrator
	store *store.SQLiteStore
	index *vector.MemoryIndex
	gen   *generation.MockGenerator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	contents, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { contents.Close() })

	idx, err := vector.NewMemoryIndex(768)
	if err != nil {
		t.Fatalf("failed to create index: %v", err)
	}

	emb := embedding.NewMockEmbedder(768)
	gen := generation.NewMockGenerator()
	ranker := ranking.NewRanker(contents, idx, 7, 5)

	orch := NewOrchestrator(emb, idx, contents, gen, ranker, testConfig())
	return &testEnv{orch: orch, store: contents, index: idx, gen: gen}
}

func TestFetchOrCreateMiss(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.orch.FetchOrCreate(ctx, "A person surfing")
	if err != nil {
		t.Fatalf("FetchOrCreate failed: %v", err)
	}

	if res.Hit {
		t.Error("expected miss on empty index")
	}
	if env.gen.Calls() != 1 {
		t.Errorf("expected exactly 1 generation, got %d", env.gen.Calls())
	}
	if res.Commit == nil || res.Commit.Stage != CommitOK {
		t.Fatalf("expected CommitOK, got %+v", res.Commit)
	}
	if len(res.Images) != 1 {
		t.Fatalf("expected 1 image after commit, got %d", len(res.Images))
	}
	if res.Scores[0] < 0.99 {
		t.Errorf("fresh artifact should score ~1.0 on re-query, got %f", res.Scores[0])
	}

	if _, err := env.store.Get(ctx, res.Commit.ID); err != nil {
		t.Errorf("committed artifact missing from content store: %v", err)
	}
	if env.index.Size() != 1 {
		t.Errorf("expected 1 index entry, got %d", env.index.Size())
	}
}

func TestFetchOrCreateHit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.orch.FetchOrCreate(ctx, "a red bicycle against a wall"); err != nil {
		t.Fatalf("seed FetchOrCreate failed: %v", err)
	}

	res, err := env.orch.FetchOrCreate(ctx, "a red bicycle against a wall")
	if err != nil {
		t.Fatalf("FetchOrCreate failed: %v", err)
	}

	if !res.Hit {
		t.Error("expected hit for identical prompt")
	}
	if res.Commit != nil {
		t.Error("hit should not carry a commit result")
	}
	if env.gen.Calls() != 1 {
		t.Errorf("hit must not generate, total generations %d", env.gen.Calls())
	}
	if res.Scores[0] < 0.99 {
		t.Errorf("expected top score ~1.0, got %f", res.Scores[0])
	}
}

func TestFetchOrCreateUnrelatedPromptGenerates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.orch.FetchOrCreate(ctx, "a red bicycle against a wall"); err != nil {
		t.Fatalf("seed FetchOrCreate failed: %v", err)
	}

	res, err := env.orch.FetchOrCreate(ctx, "snowy mountain peak at dawn")
	if err != nil {
		t.Fatalf("FetchOrCreate failed: %v", err)
	}

	if res.Hit {
		t.Error("unrelated prompt should miss")
	}
	if env.gen.Calls() != 2 {
		t.Errorf("expected 2 generations, got %d", env.gen.Calls())
	}
	if env.index.Size() != 2 {
		t.Errorf("expected 2 index entries, got %d", env.index.Size())
	}
}

func TestSuggestIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, p := range []string{"a castle on a hill", "a castle in the clouds", "city skyline at night"} {
		if _, err := env.orch.FetchOrCreate(ctx, p); err != nil {
			t.Fatalf("seed FetchOrCreate failed: %v", err)
		}
	}
	before := env.index.Size()

	first, err := env.orch.Suggest(ctx, "a castle on a hill")
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}
	second, err := env.orch.Suggest(ctx, "a castle on a hill")
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}

	if len(first) == 0 {
		t.Fatal("expected suggestions")
	}
	if len(first) != len(second) {
		t.Fatalf("suggestion count changed between calls: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("suggestion %d changed: %+v vs %+v", i, first[i], second[i])
		}
	}
	if env.index.Size() != before {
		t.Errorf("Suggest must not write, index grew from %d to %d", before, env.index.Size())
	}
}

func TestUnsafeGenerationSuppressed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.orch.FetchOrCreate(ctx, "unsafe: something terrible")
	if err != nil {
		t.Fatalf("unsafe prompt must not error: %v", err)
	}

	if res.Commit == nil || res.Commit.Stage != CommitSkippedUnsafe {
		t.Fatalf("expected CommitSkippedUnsafe, got %+v", res.Commit)
	}
	if len(res.Images) != 0 {
		t.Errorf("unsafe output must not be served, got %d images", len(res.Images))
	}
	if env.index.Size() != 0 {
		t.Error("unsafe output must not be indexed")
	}
	if n, _ := env.store.Count(ctx); n != 0 {
		t.Errorf("unsafe output must not be stored, count %d", n)
	}
}

type failingGenerator struct{}

func (failingGenerator) Generate(ctx context.Context, prompt string) (*generation.Output, error) {
	return nil, errors.New("inference backend down")
}

func (failingGenerator) Close() error { return nil }

func TestGenerationFailurePropagates(t *testing.T) {
	env := newTestEnv(t)
	env.orch.generator = failingGenerator{}
	ctx := context.Background()

	if _, err := env.orch.FetchOrCreate(ctx, "a quiet forest"); err == nil {
		t.Fatal("expected generation error to propagate")
	}
	if env.index.Size() != 0 {
		t.Error("failed generation must not touch the index")
	}
	if n, _ := env.store.Count(ctx); n != 0 {
		t.Errorf("failed generation must not touch the store, count %d", n)
	}
}

type failingStore struct {
	store.ContentStore
}

func (failingStore) Put(ctx context.Context, id string, data []byte) error {
	return errors.New("disk full")
}

func (failingStore) PutWithPrompt(ctx context.Context, id string, data []byte, prompt string) error {
	return errors.New("disk full")
}

func TestStoreFailureDegradesToCachedResults(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	seed, err := env.orch.FetchOrCreate(ctx, "a red bicycle against a wall")
	if err != nil {
		t.Fatalf("seed FetchOrCreate failed: %v", err)
	}
	stored, err := env.store.Get(ctx, seed.Commit.ID)
	if err != nil {
		t.Fatalf("failed to read stored artifact: %v", err)
	}

	env.orch.contents = failingStore{ContentStore: env.store}

	res, err := env.orch.FetchOrCreate(ctx, "snowy mountain peak at dawn")
	if err != nil {
		t.Fatalf("store failure must not fail the request: %v", err)
	}
	if res.Hit {
		t.Error("expected miss")
	}
	if res.Commit == nil || res.Commit.Stage != CommitStoreFailed {
		t.Fatalf("expected CommitStoreFailed, got %+v", res.Commit)
	}
	if env.index.Size() != 1 {
		t.Errorf("index must stay untouched when the content store write fails, got %d entries", env.index.Size())
	}
	if len(res.Images) != 1 || !bytes.Equal(res.Images[0], stored) {
		t.Error("request should still serve the cached artifacts")
	}
}

type failUpsertIndex struct {
	vector.Index
}

func (f failUpsertIndex) Upsert(ctx context.Context, id string, vec []float32, meta vector.Metadata) error {
	return errors.New("index unavailable")
}

func TestIndexFailureDegradesToCachedResults(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.orch.FetchOrCreate(ctx, "a red bicycle against a wall"); err != nil {
		t.Fatalf("seed FetchOrCreate failed: %v", err)
	}

	env.orch.index = failUpsertIndex{Index: env.index}

	res, err := env.orch.FetchOrCreate(ctx, "snowy mountain peak at dawn")
	if err != nil {
		t.Fatalf("index failure must not fail the request: %v", err)
	}

	if res.Commit == nil || res.Commit.Stage != CommitIndexFailed {
		t.Fatalf("expected CommitIndexFailed, got %+v", res.Commit)
	}
	// The fresh artifact is not searchable, so the re-query sees only the
	// seeded entry.
	if len(res.Images) != 1 {
		t.Fatalf("expected 1 cached image from re-query, got %d", len(res.Images))
	}
	// Orphan: in the store but not the index.
	if _, err := env.store.Get(ctx, res.Commit.ID); err != nil {
		t.Errorf("orphaned blob should remain in content store: %v", err)
	}
	if env.index.Size() != 1 {
		t.Errorf("expected only the seeded index entry, got %d", env.index.Size())
	}
}

type fixedMatchIndex struct {
	vector.Index
	matches []vector.Match
}

func (f fixedMatchIndex) Query(ctx context.Context, query []float32, topK int, includeMetadata bool) ([]vector.Match, error) {
	return f.matches, nil
}

func TestHitWithMixedScoresReturnsAllImages(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.orch.FetchOrCreate(ctx, "a red bicycle against a wall")
	if err != nil {
		t.Fatalf("seed FetchOrCreate failed: %v", err)
	}
	second, err := env.orch.FetchOrCreate(ctx, "snowy mountain peak at dawn")
	if err != nil {
		t.Fatalf("seed FetchOrCreate failed: %v", err)
	}

	env.orch.index = fixedMatchIndex{Index: env.index, matches: []vector.Match{
		{ID: first.Commit.ID, Score: 0.92, Metadata: vector.Metadata{Prompt: "a red bicycle against a wall"}},
		{ID: second.Commit.ID, Score: 0.40, Metadata: vector.Metadata{Prompt: "snowy mountain peak at dawn"}},
	}}

	res, err := env.orch.FetchOrCreate(ctx, "a bicycle leaning against a wall")
	if err != nil {
		t.Fatalf("FetchOrCreate failed: %v", err)
	}

	if !res.Hit {
		t.Error("one score above the threshold should be a hit")
	}
	if res.Commit != nil {
		t.Error("hit should not carry a commit result")
	}
	if env.gen.Calls() != 2 {
		t.Errorf("hit must not generate, total generations %d", env.gen.Calls())
	}
	if len(res.Images) != 2 {
		t.Fatalf("expected both matched images, got %d", len(res.Images))
	}
	if res.Scores[0] != 0.92 || res.Scores[1] != 0.40 {
		t.Errorf("scores should be returned raw, got %v", res.Scores)
	}
	for i, id := range []string{first.Commit.ID, second.Commit.ID} {
		stored, err := env.store.Get(ctx, id)
		if err != nil {
			t.Fatalf("failed to read stored artifact: %v", err)
		}
		if !bytes.Equal(res.Images[i], stored) {
			t.Errorf("image %d should be served unchanged", i)
		}
	}
}

type recordingPromptIndex struct {
	ids     []string
	prompts []string
}

func (r *recordingPromptIndex) Index(ctx context.Context, id, prompt string) error {
	r.ids = append(r.ids, id)
	r.prompts = append(r.prompts, prompt)
	return nil
}

func (r *recordingPromptIndex) Search(ctx context.Context, query string, limit int) ([]keyword.PromptHit, error) {
	return nil, nil
}

func (r *recordingPromptIndex) Delete(ctx context.Context, id string) error { return nil }
func (r *recordingPromptIndex) Count() (uint64, error)                      { return uint64(len(r.ids)), nil }
func (r *recordingPromptIndex) Close() error                                { return nil }

func TestCommitIndexesPrompt(t *testing.T) {
	env := newTestEnv(t)
	rec := &recordingPromptIndex{}
	WithPromptIndex(rec)(env.orch)
	ctx := context.Background()

	res, err := env.orch.FetchOrCreate(ctx, "a lighthouse in a storm")
	if err != nil {
		t.Fatalf("FetchOrCreate failed: %v", err)
	}

	if len(rec.ids) != 1 || rec.ids[0] != res.Commit.ID {
		t.Errorf("prompt index should record the committed id, got %v", rec.ids)
	}
	if len(rec.prompts) != 1 || rec.prompts[0] != "a lighthouse in a storm" {
		t.Errorf("prompt index should record the prompt, got %v", rec.prompts)
	}
}

func TestHitReturnsStoredBytes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	seed, err := env.orch.FetchOrCreate(ctx, "a red bicycle against a wall")
	if err != nil {
		t.Fatalf("seed FetchOrCreate failed: %v", err)
	}
	stored, err := env.store.Get(ctx, seed.Commit.ID)
	if err != nil {
		t.Fatalf("failed to read stored artifact: %v", err)
	}

	res, err := env.orch.FetchOrCreate(ctx, "a red bicycle against a wall")
	if err != nil {
		t.Fatalf("FetchOrCreate failed: %v", err)
	}
	if !bytes.Equal(res.Images[0], stored) {
		t.Error("hit should serve the stored bytes unchanged")
	}
}
