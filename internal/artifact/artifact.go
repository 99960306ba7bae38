// Package artifact defines core data structures shared by the store, index, and cache layers.
package artifact

import (
	"strings"
	"time"
)

// Artifact is a generated image committed to the content store and vector index.
// Once committed it is immutable; the ID is assigned at creation time.
type Artifact struct {
	ID        string    `json:"id"`
	Prompt    string    `json:"prompt"`
	Location  string    `json:"location"`
	CreatedAt time.Time `json:"created_at"`
}

// Location returns the canonical object key for an artifact ID.
// Matches the layout used by the hosted deployment ("images/<id>.png").
func Location(id string) string {
	return "images/" + id + ".png"
}

// IDFromFilename returns the artifact ID for a blob filename ("<id>.png"),
// or "" if the name does not look like an artifact blob.
func IDFromFilename(name string) string {
	if !strings.HasSuffix(name, ".png") {
		return ""
	}
	return strings.TrimSuffix(name, ".png")
}
