package graph

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"unicode/utf8"
)

var (
	// ErrUnknownDeck is returned when an id has no entry in the deck lookup.
	ErrUnknownDeck = errors.New("graph: unknown deck")
	// ErrNotVisible is returned when toggling a node outside the visible set.
	ErrNotVisible = errors.New("graph: node not visible")
)

// Default label metrics, in layout units.
const (
	DefaultCharWidth  = 7.0
	DefaultLineHeight = 16.0
)

const (
	seedRadius      = 10.0
	phyllotaxisStep = 10.0
)

var goldenAngle = math.Pi * (3 - math.Sqrt(5))

// ExplorerOption configures an Explorer.
type ExplorerOption func(*Explorer)

// WithDeckKind restricts traversal to decks of one kind. The root is always shown.
func WithDeckKind(kind string) ExplorerOption {
	return func(x *Explorer) { x.kind = kind }
}

// WithLogger sets the logger used for data-integrity warnings.
func WithLogger(logger *slog.Logger) ExplorerOption {
	return func(x *Explorer) { x.logger = logger }
}

// WithLabelMetrics sets the per-character width and line height used to size
// label boxes.
func WithLabelMetrics(charWidth, lineHeight float64) ExplorerOption {
	return func(x *Explorer) {
		x.charWidth = charWidth
		x.lineHeight = lineHeight
	}
}

// Explorer owns the expand/collapse state of a neighbourhood and rebuilds the
// visible GraphState after every transition. It is not safe for concurrent use.
type Explorer struct {
	adj        Adjacency
	decks      map[int64]Deck
	root       int64
	kind       string
	logger     *slog.Logger
	charWidth  float64
	lineHeight float64

	important  map[int64]bool
	states     map[int64]ExpandedState
	state      *GraphState
	generation uint64
}

// NewExplorer builds the initial neighbourhood of root, depth hops deep.
// Adjacency entries naming decks absent from decks are dropped with a warning.
func NewExplorer(adj Adjacency, decks []Deck, root int64, depth int, opts ...ExplorerOption) (*Explorer, error) {
	x := &Explorer{
		decks:      make(map[int64]Deck, len(decks)),
		root:       root,
		logger:     slog.Default(),
		charWidth:  DefaultCharWidth,
		lineHeight: DefaultLineHeight,
	}
	for _, opt := range opts {
		opt(x)
	}
	for _, d := range decks {
		x.decks[d.ID] = d
	}
	if _, ok := x.decks[root]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownDeck, root)
	}
	x.adj = x.sanitize(adj)

	x.important = map[int64]bool{root: true}
	for _, e := range BuildConnectivity(x.adj, root, depth, x.allowed) {
		x.important[e.Source] = true
		x.important[e.Target] = true
	}
	x.states = map[int64]ExpandedState{root: ExpandedFully}
	x.rebuild()
	return x, nil
}

// Root returns the focus deck id.
func (x *Explorer) Root() int64 { return x.root }

// State returns the current visible graph. It is replaced, not mutated, by
// Toggle and SetStates.
func (x *Explorer) State() *GraphState { return x.state }

// Generation counts rebuilds, starting at 1.
func (x *Explorer) Generation() uint64 { return x.generation }

// States returns a copy of the non-collapsed node states.
func (x *Explorer) States() map[int64]ExpandedState {
	out := make(map[int64]ExpandedState, len(x.states))
	for id, s := range x.states {
		out[id] = s
	}
	return out
}

// SetStates replaces every node state and rebuilds. Unknown ids are skipped.
func (x *Explorer) SetStates(states map[int64]ExpandedState) {
	x.states = make(map[int64]ExpandedState, len(states))
	for id, s := range states {
		if _, ok := x.decks[id]; !ok {
			x.logger.Warn("graph: state for unknown deck", slog.Int64("deck_id", id))
			continue
		}
		if s != ExpandedNone {
			x.states[id] = s
		}
	}
	x.rebuild()
}

// Toggle applies a click to a visible node and returns its new state.
func (x *Explorer) Toggle(id int64) (ExpandedState, error) {
	if _, ok := x.state.Nodes[id]; !ok {
		return ExpandedNone, fmt.Errorf("%w: %d", ErrNotVisible, id)
	}

	var next ExpandedState
	switch x.states[id] {
	case ExpandedFully:
		if x.expandedNeighbours(id) > 1 {
			next = ExpandedPartial
		} else {
			next = ExpandedNone
		}
	default:
		next = ExpandedFully
	}

	if next == ExpandedNone {
		delete(x.states, id)
	} else {
		x.states[id] = next
	}
	x.rebuild()
	return next, nil
}

// expandedNeighbours counts distinct visible neighbours of id whose state is
// not None.
func (x *Explorer) expandedNeighbours(id int64) int {
	seen := make(map[int64]bool)
	for _, e := range x.state.Edges {
		var other int64
		switch id {
		case e.Source:
			other = e.Target
		case e.Target:
			other = e.Source
		default:
			continue
		}
		if other != id && x.states[other] != ExpandedNone {
			seen[other] = true
		}
	}
	return len(seen)
}

func (x *Explorer) allowed(id int64) bool {
	d, ok := x.decks[id]
	return ok && (x.kind == "" || d.Kind == x.kind)
}

func (x *Explorer) sanitize(adj Adjacency) Adjacency {
	out := make(Adjacency, len(adj))
	for id, nbs := range adj {
		if _, ok := x.decks[id]; !ok {
			x.logger.Warn("graph: adjacency for unknown deck", slog.Int64("deck_id", id))
			continue
		}
		kept := make([]Neighbour, 0, len(nbs))
		for _, nb := range nbs {
			if _, ok := x.decks[nb.ID]; !ok {
				x.logger.Warn("graph: link to unknown deck",
					slog.Int64("deck_id", id), slog.Int64("neighbour_id", nb.ID))
				continue
			}
			kept = append(kept, nb)
		}
		out[id] = kept
	}
	return out
}

// rebuild recomputes the visible state from scratch. Nodes visible before
// keep their position and velocity; nodes pulled in by a fully expanded
// parent start next to it. A Partial node pulls in nothing, so it stays
// attached only to neighbours visible for another reason. Edges join every
// visible pair.
func (x *Explorer) rebuild() {
	prev := x.state

	visible := make(map[int64]bool)
	for id := range x.important {
		visible[id] = true
	}
	for id := range x.states {
		visible[id] = true
	}

	parent := make(map[int64]int64)
	for _, id := range sortedIDs(visible) {
		if x.states[id] != ExpandedFully {
			continue
		}
		for _, nb := range x.adj[id] {
			if !visible[nb.ID] && x.allowed(nb.ID) {
				visible[nb.ID] = true
				parent[nb.ID] = id
			}
		}
	}

	ids := sortedIDs(visible)
	next := &GraphState{Nodes: make(map[int64]*GraphNode, len(ids))}
	var fresh []int64
	for i, id := range ids {
		d := x.decks[id]
		n := &GraphNode{
			ID:         id,
			Important:  x.important[id],
			Expanded:   x.states[id],
			DeckKind:   d.Kind,
			Label:      d.Name,
			TextWidth:  x.charWidth * float64(utf8.RuneCountInString(d.Name)),
			TextHeight: x.lineHeight,
		}
		if old, ok := lookup(prev, id); ok {
			n.X, n.Y, n.VX, n.VY = old.X, old.Y, old.VX, old.VY
			n.FX, n.FY = copyPin(old.FX), copyPin(old.FY)
		} else {
			r := phyllotaxisStep * math.Sqrt(0.5+float64(i))
			a := float64(i) * goldenAngle
			n.X, n.Y = r*math.Cos(a), r*math.Sin(a)
			fresh = append(fresh, id)
		}
		next.Nodes[id] = n
	}

	children := make(map[int64]int)
	for _, id := range fresh {
		p, ok := parent[id]
		if !ok {
			continue
		}
		pn := next.Nodes[p]
		k := children[p]
		children[p]++
		a := float64(k) * goldenAngle
		n := next.Nodes[id]
		n.X = pn.X + seedRadius*math.Cos(a)
		n.Y = pn.Y + seedRadius*math.Sin(a)
		n.VX, n.VY = -pn.VX, -pn.VY
	}

	var raw []Edge
	for _, id := range ids {
		for _, nb := range x.adj[id] {
			if visible[nb.ID] {
				raw = append(raw, Edge{Source: id, Target: nb.ID, Strength: nb.Strength, Kind: nb.Kind})
			}
		}
	}
	next.Edges = dedupe(raw)

	x.state = next
	x.generation++
}

func lookup(s *GraphState, id int64) (*GraphNode, bool) {
	if s == nil {
		return nil, false
	}
	n, ok := s.Nodes[id]
	return n, ok
}

func copyPin(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func sortedIDs(set map[int64]bool) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
