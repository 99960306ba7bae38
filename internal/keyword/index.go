// Package keyword provides keyword lookup over cached prompt text.
// It is an admin/inspection surface; the serve path never depends on it.
package keyword

import "context"

// PromptHit is a single keyword search hit.
type PromptHit struct {
	ID     string  `json:"id"`
	Prompt string  `json:"prompt"`
	Score  float64 `json:"score"`
}

// PromptIndex indexes prompt text keyed by artifact ID.
type PromptIndex interface {
	Index(ctx context.Context, id, prompt string) error
	Search(ctx context.Context, query string, limit int) ([]PromptHit, error)
	Delete(ctx context.Context, id string) error
	Count() (uint64, error)
	Close() error
}
