// Package keyword provides the Bleve implementation of PromptIndex.
package keyword

import (
	"context"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
)

// BleveIndex implements PromptIndex using Bleve.
type BleveIndex struct {
	index bleve.Index
}

type promptDoc struct {
	Prompt string `json:"prompt"`
}

// NewBleveIndex creates or opens a Bleve index at path. An existing index is
// opened and reused so prompt lookup survives restarts without a rebuild.
func NewBleveIndex(path string) (*BleveIndex, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	promptFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so queries match
	// prompt words exactly as typed.
	promptFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("prompt", promptFieldMapping)
	im.AddDocumentMapping("prompt", docMapping)
	im.DefaultType = "prompt"
	im.DefaultMapping = docMapping

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// Index indexes the prompt for an artifact ID, overwriting any previous entry.
func (b *BleveIndex) Index(ctx context.Context, id, prompt string) error {
	return b.index.Index(id, promptDoc{Prompt: prompt})
}

// Search runs a match query over prompt text and returns up to limit hits.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int) ([]PromptHit, error) {
	q := bleve.NewMatchQuery(query)
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	req.Fields = []string{"prompt"}
	results, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]PromptHit, len(results.Hits))
	for i, hit := range results.Hits {
		prompt, _ := hit.Fields["prompt"].(string)
		out[i] = PromptHit{ID: hit.ID, Prompt: prompt, Score: hit.Score}
	}
	return out, nil
}

// Delete removes the entry for id. Deleting a missing ID is a no-op.
func (b *BleveIndex) Delete(ctx context.Context, id string) error {
	return b.index.Delete(id)
}

// Count returns the number of indexed prompts.
func (b *BleveIndex) Count() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
