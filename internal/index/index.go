package index

import "github.com/starford/deckgraph/internal/models"

// DeckIndex defines the interface for deck indexing operations.
type DeckIndex interface {
	UpsertDeck(d DeckRow, body string, refs []models.Ref) error
	DeleteDeck(path string) error
	GetChecksum(path string) (string, error)
	GetDeck(path string) (*DeckRow, error)
	GetDeckByID(id int64) (*DeckRow, error)
	ListDecks(q ListQuery) ([]DeckRow, int, error)
	Search(query string, limit int) ([]SearchResult, error)
	Refs(source string) ([]models.Ref, error)
	Backrefs(target string) ([]models.Ref, error)
	Graph() (*Graph, error)
	AllPaths() (map[string]struct{}, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

// Verify *DB satisfies DeckIndex at compile time.
var _ DeckIndex = (*DB)(nil)
