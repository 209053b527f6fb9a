package index

import (
	"fmt"

	"github.com/starford/deckgraph/internal/graph"
	"github.com/starford/deckgraph/internal/models"
)

// Graph is the full deck graph: every deck plus the adjacency map holding
// each reference twice, forward with strength +1 on the source and as a
// backlink with strength -1 on the target.
type Graph struct {
	Decks []graph.Deck
	Links graph.Adjacency
	// Unresolved lists refs whose target is not an indexed deck. They are
	// left out of Links.
	Unresolved []models.Ref
}

// Graph loads the full reference graph.
func (db *DB) Graph() (*Graph, error) {
	rows, err := db.conn.Query(`SELECT id, path, name, kind FROM decks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("index: graph decks: %w", err)
	}
	defer rows.Close()

	g := &Graph{Links: graph.Adjacency{}}
	ids := make(map[string]int64)
	for rows.Next() {
		var d graph.Deck
		var path string
		if err := rows.Scan(&d.ID, &path, &d.Name, &d.Kind); err != nil {
			return nil, err
		}
		ids[path] = d.ID
		g.Decks = append(g.Decks, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	refRows, err := db.conn.Query(`SELECT source, target, kind FROM refs ORDER BY source, target, kind`)
	if err != nil {
		return nil, fmt.Errorf("index: graph refs: %w", err)
	}
	defer refRows.Close()

	for refRows.Next() {
		var r models.Ref
		if err := refRows.Scan(&r.Source, &r.Target, &r.Kind); err != nil {
			return nil, err
		}
		src, ok1 := ids[r.Source]
		dst, ok2 := ids[r.Target]
		if !ok1 || !ok2 {
			g.Unresolved = append(g.Unresolved, r)
			continue
		}
		if src == dst {
			continue
		}
		kind, err := graph.ParseRefKind(r.Kind)
		if err != nil {
			kind = graph.RefKindRef
		}
		g.Links[src] = append(g.Links[src], graph.Neighbour{ID: dst, Kind: kind, Strength: 1})
		g.Links[dst] = append(g.Links[dst], graph.Neighbour{ID: src, Kind: kind, Strength: -1})
	}
	return g, refRows.Err()
}
