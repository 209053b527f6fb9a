// Package testutil provides shared test helpers for vaults, indexes and
// seeded deck services.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/starford/deckgraph/internal/deckservice"
	"github.com/starford/deckgraph/internal/index"
	"github.com/starford/deckgraph/internal/storage"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "deckgraph-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary vault directory with a storage.Provider.
func TestVault(t *testing.T) (string, storage.Provider) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

// Logger discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Fixture is a small vault:
//
//	root -> alpha (ref), root -> beta (ref_to_child), alpha -> gamma, beta -> delta
//
// root, alpha and gamma are ideas; beta and delta are people.
var Fixture = map[string]string{
	"root.deck": "---\nname: Root\nkind: idea\nrefs:\n  - to: beta.deck\n    kind: ref_to_child\n---\n" +
		"Start at [[alpha.deck][Alpha]].\n",
	"alpha.deck": "---\nname: Alpha\nkind: idea\ntags: [greek]\nrefs:\n  - to: gamma.deck\n---\n" +
		"First letter.\n\n- one\n- two\n",
	"beta.deck":  "---\nname: Beta\nkind: person\nrefs:\n  - to: delta.deck\n---\nSecond.\n",
	"gamma.deck": "---\nname: Gamma\nkind: idea\n---\nThird.\n",
	"delta.deck": "---\nname: Delta\nkind: person\n---\nFourth.\n",
}

// SeedVault writes files into the vault and syncs the index.
func SeedVault(t *testing.T, store storage.Provider, db index.DeckIndex, files map[string]string) {
	t.Helper()
	for p, body := range files {
		if err := store.Write(p, []byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := index.Sync(db, store, Logger()); err != nil {
		t.Fatal(err)
	}
}

// TestService returns a service over a seeded vault.
func TestService(t *testing.T, opts ...deckservice.Option) (*deckservice.Service, *index.DB, storage.Provider) {
	t.Helper()
	_, store := TestVault(t)
	db := TestDB(t)
	SeedVault(t, store, db, Fixture)
	opts = append([]deckservice.Option{deckservice.WithLogger(Logger())}, opts...)
	return deckservice.NewService(store, db, opts...), db, store
}
