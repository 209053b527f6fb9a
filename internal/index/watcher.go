package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/starford/deckgraph/internal/deckfile"
	"github.com/starford/deckgraph/internal/storage"
)

// ChangeKind classifies a watcher-driven index mutation.
type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
)

// EventCallback is called after a watcher-driven index change.
type EventCallback func(kind ChangeKind, path string)

const (
	settleDelay    = 100 * time.Millisecond
	reconcileDelay = 200 * time.Millisecond
)

type watcher struct {
	fsw    *fsnotify.Watcher
	db     DeckIndex
	store  storage.Provider
	root   string
	logger *slog.Logger
	cb     EventCallback

	// pending holds deck paths written since the last flush. Editors emit
	// bursts of create/write events; a path is indexed once they settle.
	pending map[string]ChangeKind
}

// Watch re-indexes deck files as they change on disk until ctx is
// cancelled, calling cb (if non-nil) after each index mutation. New
// directories are watched as they appear unless ignored; renames trigger
// a debounced reconciliation against the vault listing.
func Watch(ctx context.Context, db DeckIndex, store storage.Provider, vaultRoot string, logger *slog.Logger, cb EventCallback) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	w := &watcher{
		fsw:     fsw,
		db:      db,
		store:   store,
		root:    vaultRoot,
		logger:  logger,
		cb:      cb,
		pending: make(map[string]ChangeKind),
	}
	if err := w.addDirs(vaultRoot); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", vaultRoot))

	settle := newDebounce(settleDelay)
	reconcile := newDebounce(reconcileDelay)
	defer settle.stop()
	defer reconcile.stop()

	for {
		select {
		case <-ctx.Done():
			w.flush()
			logger.Info("watcher: stopped")
			return nil

		case <-settle.C():
			w.flush()

		case <-reconcile.C():
			w.reconcile()

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			switch w.handle(ev) {
			case needsSettle:
				settle.reset()
			case needsReconcile:
				reconcile.reset()
			}

		case watchErr, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

type followUp int

const (
	noFollowUp followUp = iota
	needsSettle
	needsReconcile
)

func (w *watcher) handle(ev fsnotify.Event) followUp {
	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			w.enterDir(ev.Name)
			return needsSettle
		}
	}

	rel, ok := w.deckPath(ev.Name)
	if !ok {
		return noFollowUp
	}

	switch {
	case ev.Op&fsnotify.Create != 0:
		w.pending[rel] = ChangeCreated
		return needsSettle

	case ev.Op&fsnotify.Write != 0:
		if _, seen := w.pending[rel]; !seen {
			w.pending[rel] = ChangeUpdated
		}
		return needsSettle

	case ev.Op&fsnotify.Remove != 0:
		delete(w.pending, rel)
		w.remove(rel)

	case ev.Op&fsnotify.Rename != 0:
		// Rename fires on the old path only; the new path
		// arrives as a Create if it stays inside the vault.
		delete(w.pending, rel)
		w.remove(rel)
		return needsReconcile
	}
	return noFollowUp
}

// deckPath maps an absolute event path to a vault-relative deck path,
// rejecting non-deck and ignored files.
func (w *watcher) deckPath(abs string) (string, bool) {
	if !strings.HasSuffix(abs, deckfile.Ext) {
		return "", false
	}
	rel, err := filepath.Rel(w.root, abs)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if w.store.Ignored(rel) {
		return "", false
	}
	return rel, true
}

// enterDir watches a new directory and queues the decks already inside it,
// since files may land before the watch is registered.
func (w *watcher) enterDir(abs string) {
	if err := w.addDirs(abs); err != nil {
		w.logger.Warn("watcher: add new dir failed",
			slog.String("path", abs),
			slog.String("error", err.Error()))
		return
	}
	_ = filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if rel, ok := w.deckPath(p); ok {
			w.pending[rel] = ChangeCreated
		}
		return nil
	})
}

func (w *watcher) flush() {
	for rel, kind := range w.pending {
		delete(w.pending, rel)
		data, err := w.store.Read(rel)
		if err != nil {
			w.logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", err.Error()))
			continue
		}
		if err := IndexFile(w.db, rel, data); err != nil {
			w.logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", err.Error()))
			continue
		}
		w.logger.Debug("watcher: indexed", slog.String("path", rel), slog.String("op", string(kind)))
		w.notify(kind, rel)
	}
}

func (w *watcher) remove(rel string) {
	if err := w.db.DeleteDeck(rel); err != nil {
		w.logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	w.logger.Debug("watcher: deleted", slog.String("path", rel))
	w.notify(ChangeDeleted, rel)
}

func (w *watcher) notify(kind ChangeKind, rel string) {
	if w.cb != nil {
		w.cb(kind, rel)
	}
}

// reconcile drops index entries whose file is gone and indexes files whose
// checksum differs from the index.
func (w *watcher) reconcile() {
	checksums, err := w.db.AllChecksums()
	if err != nil {
		w.logger.Warn("watcher: reconcile checksums failed", slog.String("error", err.Error()))
		return
	}
	metas, err := w.store.List("")
	if err != nil {
		w.logger.Warn("watcher: reconcile list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string, len(metas))
	for _, m := range metas {
		disk[m.Path] = m.Checksum
	}
	for p := range checksums {
		if _, ok := disk[p]; !ok {
			w.remove(p)
		}
	}
	for p, cs := range disk {
		if prev, known := checksums[p]; !known {
			w.pending[p] = ChangeCreated
		} else if prev != cs {
			w.pending[p] = ChangeUpdated
		}
	}
	w.flush()
}

// addDirs adds root and all its non-ignored subdirectories to the watcher.
func (w *watcher) addDirs(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if rel, relErr := filepath.Rel(w.root, p); relErr == nil && rel != "." && w.store.Ignored(filepath.ToSlash(rel)) {
			return filepath.SkipDir
		}
		return w.fsw.Add(p)
	})
}

// debounce is a resettable one-shot timer whose channel is nil while idle.
type debounce struct {
	delay time.Duration
	timer *time.Timer
}

func newDebounce(delay time.Duration) *debounce { return &debounce{delay: delay} }

func (d *debounce) reset() {
	if d.timer == nil {
		d.timer = time.NewTimer(d.delay)
		return
	}
	d.timer.Reset(d.delay)
}

func (d *debounce) C() <-chan time.Time {
	if d.timer == nil {
		return nil
	}
	return d.timer.C
}

func (d *debounce) stop() {
	if d.timer != nil {
		d.timer.Stop()
	}
}
