package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/deckgraph/internal/apperr"
	"github.com/starford/deckgraph/internal/models"
)

// DeckRow represents a row in the decks table.
type DeckRow struct {
	ID        int64
	Path      string
	Name      string
	Kind      string
	Checksum  string
	Tags      []string
	UpdatedAt time.Time
}

// SearchResult represents one search hit.
type SearchResult struct {
	ID      int64  `json:"id"`
	Path    string `json:"path"`
	Name    string `json:"name"`
	Kind    string `json:"deckKind"`
	Snippet string `json:"snippet"`
}

// ListQuery filters and pages ListDecks.
type ListQuery struct {
	Limit  int
	Offset int
	Kind   string
	Tag    string
	// Sort is "name", "path" or "updated" (newest first, the default).
	Sort string
}

const deckColumns = `id, path, name, kind, checksum, tags, updated_at`

// UpsertDeck inserts or replaces a deck, its FTS entry and outgoing refs
// within a transaction. The deck id is stable across updates.
func (db *DB) UpsertDeck(d DeckRow, body string, refs []models.Ref) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	tagsJSON, _ := json.Marshal(nonNil(d.Tags))

	_, err = tx.Exec(`
		INSERT INTO decks (path, name, kind, checksum, tags, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			name       = excluded.name,
			kind       = excluded.kind,
			checksum   = excluded.checksum,
			tags       = excluded.tags,
			body       = excluded.body,
			updated_at = excluded.updated_at
	`, d.Path, d.Name, d.Kind, d.Checksum, string(tagsJSON), body, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert deck: %w", err)
	}

	if err := ftsUpsert(tx, d.Path, d.Name, body, d.Tags); err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM refs WHERE source = ?`, d.Path); err != nil {
		return fmt.Errorf("index: clear refs: %w", err)
	}
	if len(refs) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO refs (source, target, kind) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare ref insert: %w", err)
		}
		defer stmt.Close()
		for _, r := range refs {
			kind := r.Kind
			if kind == "" {
				kind = "ref"
			}
			if _, err := stmt.Exec(d.Path, r.Target, kind); err != nil {
				return fmt.Errorf("index: insert ref: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteDeck removes a deck, its FTS entry and outgoing refs.
func (db *DB) DeleteDeck(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	if _, err := tx.Exec(`DELETE FROM refs WHERE source = ?`, path); err != nil {
		return fmt.Errorf("index: delete refs: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM decks WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete deck: %w", err)
	}
	return tx.Commit()
}

// GetChecksum returns the stored checksum for a deck, or empty string if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM decks WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: get checksum: %w", err)
	}
	return cs, nil
}

// GetDeck returns the deck at path.
func (db *DB) GetDeck(path string) (*DeckRow, error) {
	return db.getDeck(`SELECT `+deckColumns+` FROM decks WHERE path = ?`, path)
}

// GetDeckByID returns the deck with the given id.
func (db *DB) GetDeckByID(id int64) (*DeckRow, error) {
	return db.getDeck(`SELECT `+deckColumns+` FROM decks WHERE id = ?`, id)
}

func (db *DB) getDeck(query string, arg any) (*DeckRow, error) {
	d, err := scanDeck(db.conn.QueryRow(query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: get deck: %w", err)
	}
	return d, nil
}

// ListDecks returns one page of decks and the total matching count.
func (db *DB) ListDecks(q ListQuery) ([]DeckRow, int, error) {
	if q.Limit <= 0 {
		q.Limit = 50
	}
	var where []string
	var args []any
	if q.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, q.Kind)
	}
	if q.Tag != "" {
		tag, _ := json.Marshal(q.Tag)
		where = append(where, "tags LIKE ?")
		args = append(args, "%"+string(tag)+"%")
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM decks`+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count decks: %w", err)
	}

	order := "updated_at DESC, path"
	switch q.Sort {
	case "name":
		order = "name COLLATE NOCASE, path"
	case "path":
		order = "path"
	}
	rows, err := db.conn.Query(`SELECT `+deckColumns+` FROM decks`+cond+` ORDER BY `+order+` LIMIT ? OFFSET ?`,
		append(args, q.Limit, q.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list decks: %w", err)
	}
	defer rows.Close()

	var out []DeckRow
	for rows.Next() {
		d, err := scanDeck(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *d)
	}
	return out, total, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDeck(s scanner) (*DeckRow, error) {
	var d DeckRow
	var tags string
	if err := s.Scan(&d.ID, &d.Path, &d.Name, &d.Kind, &d.Checksum, &tags, &d.UpdatedAt); err != nil {
		return nil, err
	}
	_ = json.Unmarshal([]byte(tags), &d.Tags)
	d.Tags = nonNil(d.Tags)
	return &d, nil
}

// AllPaths returns every indexed deck path.
func (db *DB) AllPaths() (map[string]struct{}, error) {
	rows, err := db.conn.Query(`SELECT path FROM decks`)
	if err != nil {
		return nil, fmt.Errorf("index: all paths: %w", err)
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out[p] = struct{}{}
	}
	return out, rows.Err()
}

// AllChecksums maps every indexed deck path to its checksum.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM decks`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// Refs returns the outgoing references of source.
func (db *DB) Refs(source string) ([]models.Ref, error) {
	return db.queryRefs(`SELECT source, target, kind FROM refs WHERE source = ? ORDER BY target, kind`, source)
}

// Backrefs returns all references pointing at target.
func (db *DB) Backrefs(target string) ([]models.Ref, error) {
	return db.queryRefs(`SELECT source, target, kind FROM refs WHERE target = ? ORDER BY source, kind`, target)
}

func (db *DB) queryRefs(query string, arg string) ([]models.Ref, error) {
	rows, err := db.conn.Query(query, arg)
	if err != nil {
		return nil, fmt.Errorf("index: refs: %w", err)
	}
	defer rows.Close()

	out := []models.Ref{}
	for rows.Next() {
		var r models.Ref
		if err := rows.Scan(&r.Source, &r.Target, &r.Kind); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
