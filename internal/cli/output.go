// Package cli provides output formatting for the dreamcache command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hyperjump/dreamcache/internal/keyword"
	"github.com/hyperjump/dreamcache/internal/ranking"
	"github.com/hyperjump/dreamcache/pkg/utils"
)

// OutputFormat selects how results are written.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ImageSummary describes an image request outcome for CLI display. Paths are
// the files the images were written to, parallel to Scores.
type ImageSummary struct {
	Prompt      string    `json:"prompt"`
	Hit         bool      `json:"hit"`
	CommitStage string    `json:"commit_stage,omitempty"`
	Scores      []float64 `json:"scores"`
	Paths       []string  `json:"paths"`
}

// WriteSuggestions writes prompt suggestions to w in the given format.
func WriteSuggestions(w io.Writer, suggestions []ranking.Suggestion, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(suggestions)
	}
	if len(suggestions) == 0 {
		fmt.Fprintln(w, "No suggestions.")
		return nil
	}
	for i, s := range suggestions {
		fmt.Fprintf(w, "%d. [%.2f] %s\n", i+1, s.Similarity, utils.Truncate(s.Prompt, 120))
	}
	return nil
}

// WriteImageSummary writes an image request summary to w in the given format.
func WriteImageSummary(w io.Writer, summary *ImageSummary, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}
	if summary.Hit {
		fmt.Fprintf(w, "Cache hit for %q\n", summary.Prompt)
	} else {
		fmt.Fprintf(w, "Cache miss for %q", summary.Prompt)
		if summary.CommitStage != "" {
			fmt.Fprintf(w, " (commit: %s)", summary.CommitStage)
		}
		fmt.Fprintln(w)
	}
	for i, path := range summary.Paths {
		fmt.Fprintf(w, "  [%.2f] %s\n", summary.Scores[i], path)
	}
	return nil
}

// WritePromptHits writes keyword prompt search hits to w in the given format.
func WritePromptHits(w io.Writer, hits []keyword.PromptHit, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(hits)
	}
	if len(hits) == 0 {
		fmt.Fprintln(w, "No matching prompts.")
		return nil
	}
	for _, h := range hits {
		fmt.Fprintf(w, "[%.4f] %s  %s\n", h.Score, h.ID, utils.Truncate(h.Prompt, 120))
	}
	return nil
}
