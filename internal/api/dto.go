package api

import (
	"github.com/starford/vaultgraph/internal/graphservice"
	"github.com/starford/vaultgraph/internal/suggest"
)

// BuildRequest is the optional request body for a build.
type BuildRequest = graphservice.BuildRequest

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	Path    string `json:"path" example:"notes/hello.md" validate:"required"`
	Content string `json:"content" example:"---\ncreated: 2025-01-01\n---" validate:"required"`
}

// MoveNoteRequest is the request body for renaming a note.
type MoveNoteRequest struct {
	From string `json:"from" example:"notes/old.md" validate:"required"`
	To   string `json:"to" example:"archive/old.md" validate:"required"`
}

// SearchResponse wraps activation search hits.
type SearchResponse struct {
	Results []graphservice.SearchHit `json:"results" validate:"required"`
}

// SuggestResponse wraps link suggestions.
type SuggestResponse struct {
	Suggestions []suggest.Suggestion `json:"suggestions" validate:"required"`
}
