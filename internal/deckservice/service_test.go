package deckservice_test

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/deckgraph/internal/apperr"
	"github.com/starford/deckgraph/internal/checksum"
	"github.com/starford/deckgraph/internal/deckservice"
	"github.com/starford/deckgraph/internal/graph"
	"github.com/starford/deckgraph/internal/index"
	"github.com/starford/deckgraph/internal/layoutcache"
	"github.com/starford/deckgraph/internal/markup"
	"github.com/starford/deckgraph/internal/testutil"
)

func deckID(t *testing.T, db *index.DB, p string) int64 {
	t.Helper()
	row, err := db.GetDeck(p)
	if err != nil {
		t.Fatalf("GetDeck(%s): %v", p, err)
	}
	return row.ID
}

func nodeIDs(l graph.Layout) []int64 {
	ids := make([]int64, len(l.Nodes))
	for i, n := range l.Nodes {
		ids[i] = n.ID
	}
	return ids
}

func TestGetDeck(t *testing.T) {
	svc, _, _ := testutil.TestService(t)
	ctx := context.Background()

	d, err := svc.GetDeck(ctx, "alpha.deck")
	if err != nil {
		t.Fatal(err)
	}
	if d.Name != "Alpha" || d.Kind != "idea" || d.ID == 0 {
		t.Errorf("got %+v", d)
	}
	if len(d.Backrefs) != 1 || d.Backrefs[0] != "root.deck" {
		t.Errorf("Backrefs = %v", d.Backrefs)
	}
	if len(d.Notes) != 2 {
		t.Errorf("Notes = %q, want paragraph and list", d.Notes)
	}
	if d.Checksum != checksum.Sum([]byte(testutil.Fixture["alpha.deck"])) {
		t.Error("checksum mismatch")
	}

	if _, err := svc.GetDeck(ctx, "missing.deck"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateDeck_Validation(t *testing.T) {
	svc, _, _ := testutil.TestService(t)
	ctx := context.Background()

	cases := map[string]struct {
		path, body string
		want       error
	}{
		"wrong extension": {"x.md", "---\nname: X\nkind: idea\n---\n", apperr.ErrInvalid},
		"missing kind":    {"x.deck", "---\nname: X\n---\n", apperr.ErrInvalid},
		"bad ref kind":    {"x.deck", "---\nname: X\nkind: idea\nrefs:\n  - to: a.deck\n    kind: nope\n---\n", apperr.ErrInvalid},
		"bad markup":      {"x.deck", "---\nname: X\nkind: idea\n---\n[[a]b\n", apperr.ErrInvalid},
		"exists":          {"root.deck", "---\nname: R\nkind: idea\n---\n", apperr.ErrAlreadyExists},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := svc.CreateDeck(ctx, tc.path, []byte(tc.body)); !errors.Is(err, tc.want) {
				t.Errorf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestCreateUpdateDelete(t *testing.T) {
	svc, _, store := testutil.TestService(t)
	ctx := context.Background()

	body := "---\nname: Epsilon\nkind: idea\n---\nFifth links [[root.deck]].\n"
	d, err := svc.CreateDeck(ctx, "/greek/epsilon.deck", []byte(body))
	if err != nil {
		t.Fatal(err)
	}
	if d.Path != "greek/epsilon.deck" || len(d.Refs) != 1 || d.Refs[0].To != "root.deck" {
		t.Errorf("got %+v", d)
	}

	root, err := svc.GetDeck(ctx, "root.deck")
	if err != nil {
		t.Fatal(err)
	}
	if len(root.Backrefs) != 1 || root.Backrefs[0] != "greek/epsilon.deck" {
		t.Errorf("root backrefs = %v", root.Backrefs)
	}

	updated := strings.Replace(body, "Epsilon", "Epsilon II", 1)
	if _, err := svc.UpdateDeck(ctx, d.Path, []byte(updated), "stale"); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
	d2, err := svc.UpdateDeck(ctx, d.Path, []byte(updated), d.Checksum)
	if err != nil {
		t.Fatal(err)
	}
	if d2.Name != "Epsilon II" {
		t.Errorf("Name = %q", d2.Name)
	}

	if err := svc.DeleteDeck(ctx, d.Path); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Read(d.Path); err == nil {
		t.Error("file still on disk")
	}
	if err := svc.DeleteDeck(ctx, d.Path); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete: %v", err)
	}
}

func TestUpdateDeck_NotFound(t *testing.T) {
	svc, _, _ := testutil.TestService(t)
	_, err := svc.UpdateDeck(context.Background(), "nope.deck", []byte("---\nname: N\nkind: idea\n---\n"), "")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("got %v", err)
	}
}

func TestListDecksAndSearch(t *testing.T) {
	svc, _, _ := testutil.TestService(t)
	ctx := context.Background()

	items, total, err := svc.ListDecks(ctx, index.ListQuery{Limit: 10, Kind: "person", Sort: "name"})
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 || len(items) != 2 || items[0].Name != "Beta" || items[1].Name != "Delta" {
		t.Errorf("got %d %+v", total, items)
	}

	res, err := svc.Search(ctx, "   ", 10)
	if err != nil || len(res) != 0 {
		t.Errorf("blank search = %v, %v", res, err)
	}
}

func TestLayout_RootNeighbourhood(t *testing.T) {
	svc, db, _ := testutil.TestService(t)
	ctx := context.Background()
	root := deckID(t, db, "root.deck")

	res, err := svc.Layout(ctx, deckservice.LayoutRequest{Root: root, Depth: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Layout.Nodes) != 3 {
		t.Fatalf("nodes = %v", nodeIDs(res.Layout))
	}
	if len(res.Layout.Edges) != 2 {
		t.Errorf("edges = %+v", res.Layout.Edges)
	}
	if res.States[root] != graph.ExpandedFully {
		t.Errorf("root state = %v", res.States[root])
	}
	if res.Cached {
		t.Error("no cache configured")
	}
}

func TestLayout_ToggleExpands(t *testing.T) {
	svc, db, _ := testutil.TestService(t)
	ctx := context.Background()
	root := deckID(t, db, "root.deck")
	alpha := deckID(t, db, "alpha.deck")
	gamma := deckID(t, db, "gamma.deck")

	res, err := svc.Layout(ctx, deckservice.LayoutRequest{Root: root, Depth: 1, Toggle: alpha})
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, id := range nodeIDs(res.Layout) {
		found = found || id == gamma
	}
	if !found {
		t.Errorf("gamma not visible: %v", nodeIDs(res.Layout))
	}
	if res.States[alpha] != graph.ExpandedFully {
		t.Errorf("alpha state = %v", res.States[alpha])
	}

	res2, err := svc.Layout(ctx, deckservice.LayoutRequest{Root: root, Depth: 1, States: res.States, Toggle: alpha})
	if err != nil {
		t.Fatal(err)
	}
	if len(res2.Layout.Nodes) != 3 {
		t.Errorf("collapse left %v", nodeIDs(res2.Layout))
	}
}

func TestLayout_Errors(t *testing.T) {
	svc, db, _ := testutil.TestService(t)
	ctx := context.Background()

	if _, err := svc.Layout(ctx, deckservice.LayoutRequest{Root: 9999}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown root: %v", err)
	}
	root := deckID(t, db, "root.deck")
	delta := deckID(t, db, "delta.deck")
	_, err := svc.Layout(ctx, deckservice.LayoutRequest{Root: root, Depth: 1, Toggle: delta})
	if !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("invisible toggle: %v", err)
	}
}

func TestLayout_Cache(t *testing.T) {
	cache := layoutcache.NewMemory(0)
	svc, db, _ := testutil.TestService(t, deckservice.WithCache(cache))
	ctx := context.Background()
	req := deckservice.LayoutRequest{Root: deckID(t, db, "root.deck"), Depth: 2}

	first, err := svc.Layout(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.Layout(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if first.Cached || !second.Cached {
		t.Errorf("cached = %v, %v", first.Cached, second.Cached)
	}
	if !reflect.DeepEqual(first.Layout, second.Layout) {
		t.Error("cached layout differs")
	}
	if !reflect.DeepEqual(first.States, second.States) {
		t.Errorf("states %v vs %v", first.States, second.States)
	}

	if _, err := svc.CreateDeck(ctx, "new.deck", []byte("---\nname: New\nkind: idea\n---\n")); err != nil {
		t.Fatal(err)
	}
	third, err := svc.Layout(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if third.Cached {
		t.Error("cache survived a vault change")
	}
}

func TestStreamLayout(t *testing.T) {
	settings := deckservice.DefaultGraphSettings()
	settings.FrameInterval = time.Millisecond
	svc, db, _ := testutil.TestService(t, deckservice.WithGraphSettings(settings))
	ctx := context.Background()
	req := deckservice.LayoutRequest{Root: deckID(t, db, "root.deck"), Depth: 1}

	var frames int
	var last deckservice.LayoutFrame
	err := svc.StreamLayout(ctx, req, func(f deckservice.LayoutFrame) error {
		frames++
		last = f
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if frames < graph.SettleTicks-5 || frames > graph.SettleTicks+5 {
		t.Errorf("frames = %d", frames)
	}
	if len(last.Nodes) != 3 {
		t.Errorf("last frame nodes = %d", len(last.Nodes))
	}
	if last.Session == "" {
		t.Error("frames carry no session")
	}
	if _, err := svc.Session(last.Session); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("session outlived its stream: %v", err)
	}

	stop := errors.New("client gone")
	frames = 0
	err = svc.StreamLayout(ctx, req, func(deckservice.LayoutFrame) error {
		frames++
		if frames == 3 {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) || frames != 3 {
		t.Errorf("err = %v after %d frames", err, frames)
	}
}

func hasNode(l graph.Layout, id int64) bool {
	for _, n := range l.Nodes {
		if n.ID == id {
			return true
		}
	}
	return false
}

func TestStreamLayout_InteractiveSession(t *testing.T) {
	settings := deckservice.DefaultGraphSettings()
	settings.FrameInterval = time.Millisecond
	svc, db, _ := testutil.TestService(t, deckservice.WithGraphSettings(settings))
	root := deckID(t, db, "root.deck")
	alpha := deckID(t, db, "alpha.deck")
	gamma := deckID(t, db, "gamma.deck")
	delta := deckID(t, db, "delta.deck")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu   sync.Mutex
		last deckservice.LayoutFrame
	)
	errc := make(chan error, 1)
	go func() {
		req := deckservice.LayoutRequest{Root: root, Depth: 1, Interactive: true}
		errc <- svc.StreamLayout(ctx, req, func(f deckservice.LayoutFrame) error {
			mu.Lock()
			last = f
			mu.Unlock()
			return nil
		})
	}()
	waitFor := func(what string, ok func(deckservice.LayoutFrame) bool) deckservice.LayoutFrame {
		t.Helper()
		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			mu.Lock()
			f := last
			mu.Unlock()
			if f.Session != "" && ok(f) {
				return f
			}
			time.Sleep(2 * time.Millisecond)
		}
		t.Fatalf("timed out waiting for %s", what)
		return deckservice.LayoutFrame{}
	}

	first := waitFor("first frame", func(deckservice.LayoutFrame) bool { return true })
	ls, err := svc.Session(first.Session)
	if err != nil {
		t.Fatal(err)
	}

	state, err := ls.Toggle(ctx, alpha)
	if err != nil || state != graph.ExpandedFully {
		t.Fatalf("Toggle(alpha) = %v, %v", state, err)
	}
	expanded := waitFor("gamma to appear", func(f deckservice.LayoutFrame) bool {
		return hasNode(f.Layout, gamma)
	})
	if expanded.Generation <= first.Generation {
		t.Errorf("generation %d after toggle, was %d", expanded.Generation, first.Generation)
	}
	if len(expanded.Nodes) != 4 {
		t.Errorf("nodes after toggle = %v", nodeIDs(expanded.Layout))
	}

	if _, err := ls.Toggle(ctx, delta); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("Toggle(invisible) = %v", err)
	}

	ls.Drag(root, 500, 500)
	waitFor("root pinned", func(f deckservice.LayoutFrame) bool {
		for _, n := range f.Nodes {
			if n.ID == root {
				return n.X == 500 && n.Y == 500
			}
		}
		return false
	})
	ls.Release(root)

	select {
	case err := <-errc:
		t.Fatalf("interactive stream returned early: %v", err)
	default:
	}
	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Errorf("stream err = %v", err)
	}
	if _, err := svc.Session(first.Session); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("session after cancel: %v", err)
	}
	if _, err := ls.Toggle(context.Background(), alpha); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Toggle on ended session = %v", err)
	}
}

func TestLayout_LabelMetrics(t *testing.T) {
	svc, db, store := testutil.TestService(t)
	ctx := context.Background()
	req := deckservice.LayoutRequest{Root: deckID(t, db, "root.deck"), Depth: 1}

	narrow, err := svc.Layout(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	settings := deckservice.DefaultGraphSettings()
	settings.CharWidth = 100
	settings.LineHeight = 40
	wideSvc := deckservice.NewService(store, db,
		deckservice.WithGraphSettings(settings), deckservice.WithLogger(testutil.Logger()))
	wide, err := wideSvc.Layout(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if reflect.DeepEqual(wide.Layout.Nodes, narrow.Layout.Nodes) {
		t.Error("label metrics did not change the layout")
	}
}

func TestNeighbourhoodOf(t *testing.T) {
	svc, db, _ := testutil.TestService(t)
	n, err := svc.NeighbourhoodOf(context.Background(), "root.deck", 1)
	if err != nil {
		t.Fatal(err)
	}
	if n.Root.ID != deckID(t, db, "root.deck") || n.Root.Name != "Root" {
		t.Errorf("root = %+v", n.Root)
	}
	names := map[string]bool{}
	for _, d := range n.Decks {
		names[d.Name] = true
	}
	if len(n.Decks) != 2 || !names["Alpha"] || !names["Beta"] {
		t.Errorf("decks = %+v", n.Decks)
	}
	for _, e := range n.Edges {
		if e.Backlink() {
			t.Errorf("backlink edge %+v", e)
		}
	}

	if _, err := svc.NeighbourhoodOf(context.Background(), "missing.deck", 1); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing: %v", err)
	}
}

func TestGraph(t *testing.T) {
	svc, _, store := testutil.TestService(t)
	ctx := context.Background()
	if err := store.Write("orphan.deck", []byte("---\nname: O\nkind: idea\nrefs:\n  - to: ghost.deck\n---\n")); err != nil {
		t.Fatal(err)
	}
	if err := svc.Reindex(ctx); err != nil {
		t.Fatal(err)
	}

	g, err := svc.Graph(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(g.Decks) != 6 {
		t.Errorf("decks = %d", len(g.Decks))
	}
	if len(g.Unresolved) != 1 || g.Unresolved[0].Target != "ghost.deck" {
		t.Errorf("unresolved = %+v", g.Unresolved)
	}
}

func TestRenderMarkup(t *testing.T) {
	svc, _, _ := testutil.TestService(t)
	ctx := context.Background()

	r, err := svc.RenderMarkup(ctx, "Hello *world*", nil)
	if err != nil {
		t.Fatal(err)
	}
	if r.Error != "" || !strings.Contains(r.HTML, "<strong>world</strong>") {
		t.Errorf("got %+v", r)
	}

	r, err = svc.RenderMarkup(ctx, "see [[a.deck]x <b>", nil)
	if err != nil {
		t.Fatal(err)
	}
	if r.Error == "" || !strings.Contains(r.HTML, "&lt;b&gt;") {
		t.Errorf("malformed link: %+v", r)
	}

	counter := &markup.SidenoteCounter{}
	if _, err := svc.RenderMarkup(ctx, "a |side|", counter); err != nil {
		t.Fatal(err)
	}
	if next := counter.Next(); next != 3 {
		t.Errorf("counter advanced to %d, want 3", next)
	}
}

func TestRenderDeckAndSplit(t *testing.T) {
	svc, _, _ := testutil.TestService(t)
	ctx := context.Background()

	notes, err := svc.RenderDeck(ctx, "alpha.deck")
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 2 || !strings.Contains(notes[1].HTML, "<ul>") {
		t.Errorf("got %+v", notes)
	}

	parts, err := svc.Split(ctx, "one\n\ntwo\n1. a\n2. b\n")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"one", "two", "1. a\n2. b"}
	if !reflect.DeepEqual(parts, want) {
		t.Errorf("Split = %q, want %q", parts, want)
	}
}
