// Package models defines the domain types shared by storage, index and the
// service layer.
package models

import "time"

// DeckMetadata is the lightweight file listing entry returned by storage.
type DeckMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Ref is a directed reference between two decks, by vault path.
type Ref struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Kind   string `json:"kind"`
}
