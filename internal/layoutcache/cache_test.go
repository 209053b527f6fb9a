package layoutcache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/deckgraph/internal/graph"
)

func sampleLayout() *graph.Layout {
	return &graph.Layout{
		Generation: 3,
		Nodes: []graph.LayoutNode{
			{ID: 1, Label: "root", DeckKind: "idea", Important: true, Expanded: graph.ExpandedFully, X: 1.5, Y: -2},
			{ID: 2, Label: "two", DeckKind: "idea", X: 40, Y: 12.25},
		},
		Edges: []graph.Edge{{Source: 1, Target: 2, Strength: 1, Kind: graph.RefKindToChild}},
	}
}

func sampleGraph() ([]graph.Deck, graph.Adjacency) {
	decks := []graph.Deck{{ID: 1, Kind: "idea", Name: "root"}, {ID: 2, Kind: "idea", Name: "two"}}
	adj := graph.Adjacency{
		1: {{ID: 2, Kind: graph.RefKindRef, Strength: 1}},
		2: {{ID: 1, Kind: graph.RefKindRef, Strength: -1}},
	}
	return decks, adj
}

func TestKey_Stable(t *testing.T) {
	decks, adj := sampleGraph()
	p := Params{Root: 1, Depth: 2, States: map[int64]graph.ExpandedState{1: graph.ExpandedFully, 2: graph.ExpandedNone}, Forces: graph.DefaultForces()}

	k := Key(decks, adj, p)
	assert.Len(t, k, 64)

	reversed := []graph.Deck{decks[1], decks[0]}
	assert.Equal(t, k, Key(reversed, adj, p), "deck order must not matter")
}

func TestKey_ChangesWithInputs(t *testing.T) {
	decks, adj := sampleGraph()
	base := Params{Root: 1, Depth: 2, Forces: graph.DefaultForces()}
	k := Key(decks, adj, base)

	depth := base
	depth.Depth = 3
	assert.NotEqual(t, k, Key(decks, adj, depth))

	kind := base
	kind.Kind = "idea"
	assert.NotEqual(t, k, Key(decks, adj, kind))

	forces := base
	forces.Forces.LinkDistance = 31
	assert.NotEqual(t, k, Key(decks, adj, forces))

	labels := base
	labels.CharWidth = 9
	assert.NotEqual(t, k, Key(decks, adj, labels))

	renamed := []graph.Deck{decks[0], {ID: 2, Kind: "idea", Name: "deux"}}
	assert.NotEqual(t, k, Key(renamed, adj, base))
}

func TestMemory_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(0)

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, c.Set(ctx, "k", sampleLayout()))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, sampleLayout(), got)

	require.NoError(t, c.Purge(ctx))
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemory_Expires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemory(time.Minute)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k", sampleLayout()))
	now = now.Add(30 * time.Second)
	_, err := c.Get(ctx, "k")
	require.NoError(t, err)

	now = now.Add(time.Minute)
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}

func newRedis(t *testing.T, opts ...RedisOption) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	r := NewRedisFromClient(client, opts...)
	t.Cleanup(func() { _ = r.Close() })
	return r, mr
}

func TestRedis_RoundTrip(t *testing.T) {
	ctx := context.Background()
	r, mr := newRedis(t)
	require.NoError(t, r.Ping(ctx))

	_, err := r.Get(ctx, "abc")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, r.Set(ctx, "abc", sampleLayout()))
	assert.True(t, mr.Exists("deckgraph:layout:abc"))

	got, err := r.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, sampleLayout(), got)
}

func TestRedis_TTL(t *testing.T) {
	ctx := context.Background()
	r, mr := newRedis(t, WithTTL(time.Minute), WithPrefix("t:"))

	require.NoError(t, r.Set(ctx, "abc", sampleLayout()))
	assert.Equal(t, time.Minute, mr.TTL("t:abc"))

	mr.FastForward(2 * time.Minute)
	_, err := r.Get(ctx, "abc")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedis_PurgeOnlyTouchesPrefix(t *testing.T) {
	ctx := context.Background()
	r, mr := newRedis(t)

	require.NoError(t, r.Set(ctx, "a", sampleLayout()))
	require.NoError(t, r.Set(ctx, "b", sampleLayout()))
	require.NoError(t, mr.Set("other", "x"))

	require.NoError(t, r.Purge(ctx))
	assert.False(t, mr.Exists("deckgraph:layout:a"))
	assert.False(t, mr.Exists("deckgraph:layout:b"))
	assert.True(t, mr.Exists("other"))

	require.NoError(t, r.Purge(ctx), "purging an empty cache is fine")
}

func TestRedis_CorruptPayload(t *testing.T) {
	ctx := context.Background()
	r, mr := newRedis(t)
	require.NoError(t, mr.Set("deckgraph:layout:bad", "not zstd"))

	_, err := r.Get(ctx, "bad")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMiss)
}
