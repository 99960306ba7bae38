package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hyperjump/dreamcache/internal/keyword"
	"github.com/hyperjump/dreamcache/internal/ranking"
)

func TestWriteSuggestions_JSON(t *testing.T) {
	suggestions := []ranking.Suggestion{
		{Similarity: 0.92, Prompt: "a castle on a hill"},
		{Similarity: 0.40, Prompt: "city skyline at night"},
	}
	var buf bytes.Buffer
	if err := WriteSuggestions(&buf, suggestions, OutputJSON); err != nil {
		t.Fatalf("WriteSuggestions(json): %v", err)
	}
	var decoded []ranking.Suggestion
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(decoded) != 2 || decoded[0].Prompt != "a castle on a hill" {
		t.Errorf("decoded suggestions: %+v", decoded)
	}
}

func TestWriteSuggestions_Text(t *testing.T) {
	suggestions := []ranking.Suggestion{
		{Similarity: 0.92, Prompt: "a castle on a hill"},
	}
	var buf bytes.Buffer
	if err := WriteSuggestions(&buf, suggestions, OutputText); err != nil {
		t.Fatalf("WriteSuggestions(text): %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "0.92") || !strings.Contains(out, "a castle on a hill") {
		t.Errorf("unexpected text output: %s", out)
	}
}

func TestWriteSuggestions_TextEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSuggestions(&buf, nil, OutputText); err != nil {
		t.Fatalf("WriteSuggestions(text): %v", err)
	}
	if !strings.Contains(buf.String(), "No suggestions") {
		t.Errorf("unexpected empty output: %s", buf.String())
	}
}

func TestWriteImageSummary_Text(t *testing.T) {
	summary := &ImageSummary{
		Prompt: "a red bicycle",
		Hit:    true,
		Scores: []float64{0.92, 0.40},
		Paths:  []string{"/tmp/out/01.png", "/tmp/out/02.png"},
	}
	var buf bytes.Buffer
	if err := WriteImageSummary(&buf, summary, OutputText); err != nil {
		t.Fatalf("WriteImageSummary(text): %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Cache hit") {
		t.Errorf("expected hit line, got: %s", out)
	}
	if !strings.Contains(out, "/tmp/out/01.png") {
		t.Errorf("expected path line, got: %s", out)
	}
}

func TestWriteImageSummary_MissShowsStage(t *testing.T) {
	summary := &ImageSummary{
		Prompt:      "a red bicycle",
		CommitStage: "ok",
		Scores:      []float64{1.0},
		Paths:       []string{"/tmp/out/01.png"},
	}
	var buf bytes.Buffer
	if err := WriteImageSummary(&buf, summary, OutputText); err != nil {
		t.Fatalf("WriteImageSummary(text): %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Cache miss") || !strings.Contains(out, "commit: ok") {
		t.Errorf("expected miss with commit stage, got: %s", out)
	}
}

func TestWritePromptHits_JSON(t *testing.T) {
	hits := []keyword.PromptHit{
		{ID: "abc", Prompt: "a castle on a hill", Score: 1.5},
	}
	var buf bytes.Buffer
	if err := WritePromptHits(&buf, hits, OutputJSON); err != nil {
		t.Fatalf("WritePromptHits(json): %v", err)
	}
	var decoded []keyword.PromptHit
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(decoded) != 1 || decoded[0].ID != "abc" {
		t.Errorf("decoded hits: %+v", decoded)
	}
}
