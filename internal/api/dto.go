package api

import (
	"github.com/starford/deckgraph/internal/deckservice"
	"github.com/starford/deckgraph/internal/graph"
	"github.com/starford/deckgraph/internal/index"
)

// CreateDeckRequest is the request body for creating a deck.
type CreateDeckRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// UpdateDeckRequest is the request body for updating a deck.
type UpdateDeckRequest struct {
	Content string `json:"content"`
}

// MarkupRequest carries note markup to render or split.
type MarkupRequest struct {
	Content string `json:"content"`
}

// DeckDetail is the full deck response type.
type DeckDetail = deckservice.DeckDetail

// DeckListResponse wraps paginated deck listings.
type DeckListResponse struct {
	Decks []deckservice.DeckListItem `json:"decks"`
	Total int                        `json:"total"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results"`
}

// GraphResponse is the whole graph. Each links entry is a
// [neighbourId, kind, strength] triple; negative strength marks a backlink.
type GraphResponse struct {
	Decks []graph.Deck       `json:"decks"`
	Links map[int64][][3]any `json:"links"`
}

// SessionNodeRequest names a node of a running layout session. X and Y
// are only read by drag.
type SessionNodeRequest struct {
	ID int64    `json:"id"`
	X  *float64 `json:"x,omitempty"`
	Y  *float64 `json:"y,omitempty"`
}

// ToggleResponse is the state a toggle left the node in.
type ToggleResponse struct {
	ID    int64               `json:"id"`
	State graph.ExpandedState `json:"state"`
}

// SplitResponse lists the top-level notes of a markup document.
type SplitResponse struct {
	Notes []string `json:"notes"`
}

func toGraphResponse(decks []graph.Deck, adj graph.Adjacency) GraphResponse {
	resp := GraphResponse{Decks: decks, Links: make(map[int64][][3]any, len(adj))}
	for id, ns := range adj {
		triples := make([][3]any, len(ns))
		for i, n := range ns {
			triples[i] = [3]any{n.ID, n.Kind, n.Strength}
		}
		resp.Links[id] = triples
	}
	return resp
}
