package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// biLink adds a reference and its backlink.
func biLink(adj Adjacency, from, to int64, kind RefKind) {
	adj[from] = append(adj[from], Neighbour{ID: to, Kind: kind, Strength: 1})
	adj[to] = append(adj[to], Neighbour{ID: from, Kind: kind, Strength: -1})
}

func TestBuildConnectivity_DeduplicatesBacklink(t *testing.T) {
	adj := Adjacency{}
	biLink(adj, 1, 2, RefKindRef)

	edges := BuildConnectivity(adj, 1, 2, nil)
	require.Len(t, edges, 1)
	assert.Equal(t, Edge{Source: 1, Target: 2, Strength: 1, Kind: RefKindRef}, edges[0])
}

func TestBuildConnectivity_DeduplicatesFromBacklinkSide(t *testing.T) {
	adj := Adjacency{}
	biLink(adj, 1, 2, RefKindRef)

	// Rooted at the referenced deck the raw walk starts from the backlink.
	edges := BuildConnectivity(adj, 2, 2, nil)
	require.Len(t, edges, 1)
	assert.Equal(t, Edge{Source: 1, Target: 2, Strength: 1, Kind: RefKindRef}, edges[0])
}

func TestBuildConnectivity_IncomingOnlyIsFlipped(t *testing.T) {
	adj := Adjacency{2: {{ID: 1, Kind: RefKindToChild, Strength: -1}}}

	edges := BuildConnectivity(adj, 2, 1, nil)
	require.Len(t, edges, 1)
	assert.Equal(t, Edge{Source: 1, Target: 2, Strength: 1, Kind: RefKindToChild}, edges[0])
	assert.False(t, edges[0].Backlink())
}

func TestBuildConnectivity_DepthBound(t *testing.T) {
	adj := Adjacency{}
	biLink(adj, 1, 2, RefKindRef)
	biLink(adj, 2, 3, RefKindRef)
	biLink(adj, 3, 4, RefKindRef)

	assert.Empty(t, BuildConnectivity(adj, 1, 0, nil))

	one := BuildConnectivity(adj, 1, 1, nil)
	assert.Equal(t, []Edge{{Source: 1, Target: 2, Strength: 1}}, one)

	two := BuildConnectivity(adj, 1, 2, nil)
	assert.Equal(t, []Edge{
		{Source: 1, Target: 2, Strength: 1},
		{Source: 2, Target: 3, Strength: 1},
	}, two)
}

func TestBuildConnectivity_AllowedFilter(t *testing.T) {
	adj := Adjacency{}
	biLink(adj, 1, 2, RefKindRef)
	biLink(adj, 1, 3, RefKindRef)
	biLink(adj, 3, 4, RefKindRef)

	edges := BuildConnectivity(adj, 1, 3, func(id int64) bool { return id != 3 })
	assert.Equal(t, []Edge{{Source: 1, Target: 2, Strength: 1}}, edges)
}

func TestBuildConnectivity_MutualReferencesBothSurvive(t *testing.T) {
	adj := Adjacency{}
	biLink(adj, 1, 2, RefKindRef)
	biLink(adj, 2, 1, RefKindInContrast)

	edges := BuildConnectivity(adj, 1, 2, nil)
	assert.Equal(t, []Edge{
		{Source: 1, Target: 2, Strength: 1, Kind: RefKindRef},
		{Source: 2, Target: 1, Strength: 1, Kind: RefKindInContrast},
	}, edges)
}

func TestBuildConnectivity_UnknownRoot(t *testing.T) {
	assert.Empty(t, BuildConnectivity(Adjacency{}, 99, 3, nil))
}
