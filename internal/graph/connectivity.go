package graph

import "sort"

// BuildConnectivity walks adj breadth-first from root for at most depth hops
// and returns the edges between discovered nodes. Neighbours for which
// allowed returns false are neither recorded nor visited; a nil allowed
// accepts every node. A connection present as both a reference and its
// backlink is returned once, in the reference direction.
func BuildConnectivity(adj Adjacency, root int64, depth int, allowed func(int64) bool) []Edge {
	if allowed == nil {
		allowed = func(int64) bool { return true }
	}

	visited := make(map[int64]bool)
	future := map[int64]bool{root: true}
	raw := make(map[Edge]struct{})

	for hop := 0; hop < depth && len(future) > 0; hop++ {
		var active []int64
		for id := range future {
			if !visited[id] {
				active = append(active, id)
			}
		}
		future = make(map[int64]bool)

		for _, id := range active {
			visited[id] = true
			for _, nb := range adj[id] {
				if !allowed(nb.ID) {
					continue
				}
				raw[Edge{Source: id, Target: nb.ID, Strength: nb.Strength, Kind: nb.Kind}] = struct{}{}
				if !visited[nb.ID] {
					future[nb.ID] = true
				}
			}
		}
	}

	edges := make([]Edge, 0, len(raw))
	for e := range raw {
		edges = append(edges, e)
	}
	return dedupe(edges)
}

type pair struct{ from, to int64 }

// dedupe drops a backlink when the reference it mirrors is present and
// otherwise flips it into a forward edge. The result is sorted.
func dedupe(raw []Edge) []Edge {
	forward := make(map[pair]bool)
	for _, e := range raw {
		if e.Strength > 0 {
			forward[pair{e.Source, e.Target}] = true
		}
	}

	seen := make(map[Edge]bool)
	out := make([]Edge, 0, len(raw))
	for _, e := range raw {
		if e.Backlink() {
			if forward[pair{e.Target, e.Source}] {
				continue
			}
			e = Edge{Source: e.Target, Target: e.Source, Strength: -e.Strength, Kind: e.Kind}
		}
		if seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	sortEdges(out)
	return out
}

func sortEdges(edges []Edge) {
	sort.Slice(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		if a.Target != b.Target {
			return a.Target < b.Target
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Strength < b.Strength
	})
}
