// Package storage defines the vault file-system abstraction for deck files.
package storage

import "github.com/starford/deckgraph/internal/models"

// Provider is the interface for vault file operations. Paths are slash
// separated and relative to the vault root.
type Provider interface {
	// List returns metadata for every non-ignored .deck file under dir.
	List(dir string) ([]models.DeckMetadata, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Move renames oldPath to newPath.
	Move(oldPath, newPath string) error
	// Ignored reports whether path matches an ignore pattern.
	Ignored(path string) bool
}
