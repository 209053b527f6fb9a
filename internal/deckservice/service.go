// Package deckservice coordinates the vault, the index, the markup engine
// and the graph layout engine.
package deckservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/starford/deckgraph/internal/apperr"
	"github.com/starford/deckgraph/internal/checksum"
	"github.com/starford/deckgraph/internal/deckfile"
	"github.com/starford/deckgraph/internal/graph"
	"github.com/starford/deckgraph/internal/index"
	"github.com/starford/deckgraph/internal/layoutcache"
	"github.com/starford/deckgraph/internal/metrics"
	"github.com/starford/deckgraph/internal/storage"
)

// DeckDetail is the full representation of a deck.
type DeckDetail struct {
	ID        int64          `json:"id"`
	Path      string         `json:"path"`
	Name      string         `json:"name"`
	Kind      string         `json:"deckKind"`
	Content   string         `json:"content"`
	Checksum  string         `json:"checksum"`
	Tags      []string       `json:"tags"`
	Refs      []deckfile.Ref `json:"refs"`
	Backrefs  []string       `json:"backrefs"`
	Notes     []string       `json:"notes"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// DeckListItem is a lightweight item in a list response.
type DeckListItem struct {
	ID        int64     `json:"id"`
	Path      string    `json:"path"`
	Name      string    `json:"name"`
	Kind      string    `json:"deckKind"`
	Checksum  string    `json:"checksum"`
	Tags      []string  `json:"tags"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Service coordinates storage, index and engines.
type Service struct {
	store   storage.Provider
	db      index.DeckIndex
	cache   layoutcache.Cache
	metrics *metrics.Metrics
	logger  *slog.Logger
	graph   GraphSettings
	now     func() time.Time

	sessions sessionRegistry
}

// NewService creates a deck service. Without WithCache layouts are
// recomputed on every request.
func NewService(store storage.Provider, db index.DeckIndex, opts ...Option) *Service {
	s := &Service{
		store:  store,
		db:     db,
		logger: slog.Default(),
		graph:  DefaultGraphSettings(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetDeck reads a deck from storage and enriches it with backrefs.
func (s *Service) GetDeck(_ context.Context, p string) (*DeckDetail, error) {
	p = index.NormalizePath(p)
	data, err := s.store.Read(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return s.buildDetail(p, data)
}

// CreateDeck validates, writes and indexes a new deck.
func (s *Service) CreateDeck(ctx context.Context, p string, content []byte) (*DeckDetail, error) {
	p = index.NormalizePath(p)
	if err := validateDeck(p, content); err != nil {
		return nil, err
	}
	if _, err := s.store.Read(p); err == nil {
		return nil, apperr.ErrAlreadyExists
	}
	if err := s.store.Write(p, content); err != nil {
		return nil, err
	}
	if err := s.IndexFile(p, content); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return s.buildDetail(p, content)
}

// UpdateDeck writes new content with optimistic concurrency. An empty
// ifMatch skips the checksum comparison.
func (s *Service) UpdateDeck(ctx context.Context, p string, content []byte, ifMatch string) (*DeckDetail, error) {
	p = index.NormalizePath(p)
	if err := validateDeck(p, content); err != nil {
		return nil, err
	}
	existing, err := s.store.Read(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	if ifMatch != "" && ifMatch != checksum.Sum(existing) {
		return nil, apperr.ErrConflict
	}
	if err := s.store.Write(p, content); err != nil {
		return nil, err
	}
	if err := s.IndexFile(p, content); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return s.buildDetail(p, content)
}

// DeleteDeck removes a deck from storage and index.
func (s *Service) DeleteDeck(ctx context.Context, p string) error {
	p = index.NormalizePath(p)
	if err := s.store.Delete(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperr.ErrNotFound
		}
		return err
	}
	if err := s.db.DeleteDeck(p); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// ListDecks returns a page of decks and the total count.
func (s *Service) ListDecks(_ context.Context, q index.ListQuery) ([]DeckListItem, int, error) {
	rows, total, err := s.db.ListDecks(q)
	if err != nil {
		return nil, 0, err
	}
	items := make([]DeckListItem, len(rows))
	for i, r := range rows {
		items[i] = DeckListItem{
			ID:        r.ID,
			Path:      r.Path,
			Name:      r.Name,
			Kind:      r.Kind,
			Checksum:  r.Checksum,
			Tags:      nonNilSlice(r.Tags),
			UpdatedAt: r.UpdatedAt,
		}
	}
	return items, total, nil
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return []index.SearchResult{}, nil
	}
	return s.db.Search(query, limit)
}

// IndexFile parses data and upserts it into the index.
func (s *Service) IndexFile(p string, data []byte) error {
	return index.IndexFile(s.db, p, data)
}

// Reindex brings the index up to date with the vault.
func (s *Service) Reindex(ctx context.Context) error {
	if err := index.Sync(s.db, s.store, s.logger); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// Invalidate drops cached layouts after an out-of-band vault change.
func (s *Service) Invalidate(ctx context.Context) { s.invalidate(ctx) }

func (s *Service) invalidate(ctx context.Context) {
	if _, total, err := s.db.ListDecks(index.ListQuery{Limit: 1}); err == nil {
		s.metrics.SetIndexed(total)
	}
	if s.cache == nil {
		return
	}
	if err := s.cache.Purge(ctx); err != nil {
		s.logger.Warn("deckservice: purge layout cache", slog.String("error", err.Error()))
	}
}

func (s *Service) buildDetail(p string, data []byte) (*DeckDetail, error) {
	f, err := deckfile.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
	}
	backrefs, err := s.db.Backrefs(p)
	if err != nil {
		return nil, err
	}
	d := &DeckDetail{
		Path:      p,
		Name:      f.DisplayName(p),
		Kind:      f.Header.Kind,
		Content:   string(data),
		Checksum:  checksum.Sum(data),
		Tags:      nonNilSlice(f.Header.Tags),
		Refs:      nonNilSlice(f.AllRefs()),
		Backrefs:  []string{},
		Notes:     nonNilSlice(f.Notes()),
		UpdatedAt: s.now().UTC(),
	}
	for _, r := range backrefs {
		d.Backrefs = append(d.Backrefs, r.Source)
	}
	if row, err := s.db.GetDeck(p); err == nil {
		d.ID = row.ID
		d.UpdatedAt = row.UpdatedAt
	}
	return d, nil
}

func validateDeck(p string, content []byte) error {
	if !strings.HasSuffix(p, deckfile.Ext) {
		return fmt.Errorf("%w: path must end in %s", apperr.ErrInvalid, deckfile.Ext)
	}
	f, err := deckfile.Parse(content)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
	}
	if err := f.Validate(); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
	}
	return nil
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
