package index

import (
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/starford/deckgraph/internal/checksum"
	"github.com/starford/deckgraph/internal/deckfile"
	"github.com/starford/deckgraph/internal/models"
	"github.com/starford/deckgraph/internal/storage"
)

// Sync walks the vault and brings the index up to date:
//   - new/changed files are parsed and upserted
//   - files removed from disk are deleted from the index
func Sync(db DeckIndex, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := IndexFile(db, m.Path, data); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", m.Path))
		}
	}

	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.DeleteDeck(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// IndexFile parses a deck file and upserts it with its references.
func IndexFile(db DeckIndex, p string, data []byte) error {
	f, err := deckfile.Parse(data)
	if err != nil {
		return err
	}
	var refs []models.Ref
	for _, r := range f.AllRefs() {
		refs = append(refs, models.Ref{Source: p, Target: NormalizePath(r.To), Kind: r.Kind})
	}
	return db.UpsertDeck(DeckRow{
		Path:      p,
		Name:      f.DisplayName(p),
		Kind:      f.Header.Kind,
		Checksum:  checksum.Sum(data),
		Tags:      f.Header.Tags,
		UpdatedAt: time.Now().UTC(),
	}, f.Body, refs)
}

// NormalizePath cleans a vault-relative deck path.
func NormalizePath(p string) string {
	return path.Clean(strings.TrimPrefix(strings.TrimSpace(p), "/"))
}
