package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func tempVault(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempVault(t)
	content := []byte("---\nname: Hello\n---\nWorld\n")
	if err := s.Write("note.deck", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("note.deck")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempVault(t)
	if err := s.Write("a/b/c.deck", []byte("deep")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("a/b/c.deck")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "deep" {
		t.Errorf("content = %q", got)
	}
}

func TestDelete(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("del.deck", []byte("bye"))
	if err := s.Delete("del.deck"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("del.deck"); err == nil {
		t.Error("expected error reading deleted file")
	}
}

func TestMove(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("old.deck", []byte("data"))
	if err := s.Move("old.deck", "sub/new.deck"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	got, err := s.Read("sub/new.deck")
	if err != nil {
		t.Fatalf("Read after move: %v", err)
	}
	if string(got) != "data" {
		t.Errorf("content = %q", got)
	}
	if _, err := s.Read("old.deck"); err == nil {
		t.Error("old path should not exist")
	}
}

func TestList(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("a.deck", []byte("a"))
	_ = s.Write("sub/b.deck", []byte("b"))
	_ = s.Write("readme.txt", []byte("not a deck"))

	items, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("len = %d, want 2", len(items))
	}
}

func TestListIgnore(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFS(dir, WithIgnore("archive/**", "**/*.draft.deck"))
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	_ = s.Write("keep.deck", []byte("a"))
	_ = s.Write("archive/old.deck", []byte("b"))
	_ = s.Write("archive/deep/older.deck", []byte("c"))
	_ = s.Write("ideas/wip.draft.deck", []byte("d"))
	_ = s.Write("ideas/done.deck", []byte("e"))

	items, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	got := map[string]bool{}
	for _, m := range items {
		got[m.Path] = true
	}
	if len(got) != 2 || !got["keep.deck"] || !got["ideas/done.deck"] {
		t.Errorf("listed %v", got)
	}
	if !s.Ignored("archive/x.deck") || s.Ignored("ideas/x.deck") {
		t.Error("Ignored mismatch")
	}
}

func TestNewFS_InvalidIgnorePattern(t *testing.T) {
	if _, err := NewFS(t.TempDir(), WithIgnore("[")); err == nil {
		t.Error("expected error for invalid pattern")
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempVault(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.deck",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicWriteNoCorruption(t *testing.T) {
	// Verify that if we read during a write the old content is intact
	// (the rename is atomic on POSIX).
	s := tempVault(t)
	original := []byte("original content")
	_ = s.Write("atomic.deck", original)

	// Overwrite with new content.
	updated := []byte("updated content")
	if err := s.Write("atomic.deck", updated); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic.deck")
	if string(got) != string(updated) {
		t.Errorf("expected updated content, got %q", got)
	}

	// Confirm no leftover temp files.
	matches, _ := filepath.Glob(filepath.Join(s.root, ".deckgraph-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS("/tmp/deckgraph-does-not-exist-" + t.Name())
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "deckgraph-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}
