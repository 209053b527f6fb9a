// Package graph lays out the deck connectivity graph: it selects the visible
// neighbourhood of a focus deck, tracks per-node expand/collapse state and
// positions nodes with a force simulation.
package graph

import (
	"fmt"
	"sort"
)

// ExpandedState is the per-node visibility state.
type ExpandedState int

const (
	// ExpandedNone is collapsed: the node does not pull in its neighbours.
	ExpandedNone ExpandedState = iota
	// ExpandedPartial keeps only neighbours that are already visible and expanded.
	ExpandedPartial
	// ExpandedFully attaches every neighbour in the full graph.
	ExpandedFully
)

var expandedNames = [...]string{"none", "partial", "fully"}

// String returns a string representation of the ExpandedState.
func (s ExpandedState) String() string {
	if s < 0 || int(s) >= len(expandedNames) {
		return fmt.Sprintf("ExpandedState(%d)", int(s))
	}
	return expandedNames[s]
}

// MarshalText implements encoding.TextMarshaler.
func (s ExpandedState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *ExpandedState) UnmarshalText(b []byte) error {
	for i, name := range expandedNames {
		if name == string(b) {
			*s = ExpandedState(i)
			return nil
		}
	}
	return fmt.Errorf("graph: unknown expanded state %q", b)
}

// RefKind describes how one deck refers to another. It drives rendering,
// not physics.
type RefKind int

const (
	RefKindRef RefKind = iota
	RefKindToParent
	RefKindToChild
	RefKindInContrast
	RefKindCritical
)

var refKindNames = [...]string{"ref", "ref_to_parent", "ref_to_child", "ref_in_contrast", "ref_critical"}

// String returns a string representation of the RefKind.
func (k RefKind) String() string {
	if k < 0 || int(k) >= len(refKindNames) {
		return fmt.Sprintf("RefKind(%d)", int(k))
	}
	return refKindNames[k]
}

// ParseRefKind parses the textual form. The empty string is RefKindRef.
func ParseRefKind(s string) (RefKind, error) {
	if s == "" {
		return RefKindRef, nil
	}
	for i, name := range refKindNames {
		if name == s {
			return RefKind(i), nil
		}
	}
	return 0, fmt.Errorf("graph: unknown ref kind %q", s)
}

// RefKindNames lists every valid textual ref kind.
func RefKindNames() []string {
	return append([]string(nil), refKindNames[:]...)
}

// MarshalText implements encoding.TextMarshaler.
func (k RefKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *RefKind) UnmarshalText(b []byte) error {
	v, err := ParseRefKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Neighbour is one entry of an adjacency list. Positive strength is a
// reference as authored; negative strength is the synthetic backlink.
type Neighbour struct {
	ID       int64
	Kind     RefKind
	Strength float64
}

// Adjacency is the full graph keyed by deck id.
type Adjacency map[int64][]Neighbour

// Deck is the label lookup entry for a graph node.
type Deck struct {
	ID   int64  `json:"id"`
	Kind string `json:"deckKind"`
	Name string `json:"name"`
}

// Edge is a directed connection in the visible graph.
type Edge struct {
	Source   int64   `json:"source"`
	Target   int64   `json:"target"`
	Strength float64 `json:"strength"`
	Kind     RefKind `json:"kind"`
}

// Backlink reports whether the edge is the synthetic reverse of a reference.
func (e Edge) Backlink() bool { return e.Strength < 0 }

// GraphNode is a visible node. X, Y, VX and VY are mutated by every
// simulation tick. A non-nil FX or FY pins that axis.
type GraphNode struct {
	ID         int64
	Important  bool
	Expanded   ExpandedState
	DeckKind   string
	Label      string
	X, Y       float64
	VX, VY     float64
	FX, FY     *float64
	TextWidth  float64
	TextHeight float64
}

// Pinned reports whether either axis is pinned.
func (n *GraphNode) Pinned() bool { return n.FX != nil || n.FY != nil }

// GraphState is the visible subgraph. Every edge's endpoints are in Nodes.
type GraphState struct {
	Nodes map[int64]*GraphNode
	Edges []Edge
}

// SortedIDs returns node ids in ascending order.
func (s *GraphState) SortedIDs() []int64 {
	ids := make([]int64, 0, len(s.Nodes))
	for id := range s.Nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Clone returns a deep copy.
func (s *GraphState) Clone() *GraphState {
	out := &GraphState{
		Nodes: make(map[int64]*GraphNode, len(s.Nodes)),
		Edges: append([]Edge(nil), s.Edges...),
	}
	for id, n := range s.Nodes {
		c := *n
		if n.FX != nil {
			fx := *n.FX
			c.FX = &fx
		}
		if n.FY != nil {
			fy := *n.FY
			c.FY = &fy
		}
		out.Nodes[id] = &c
	}
	return out
}

// LayoutNode is the serialisable position of one node.
type LayoutNode struct {
	ID        int64         `json:"id"`
	Label     string        `json:"label"`
	DeckKind  string        `json:"deckKind"`
	Important bool          `json:"important"`
	Expanded  ExpandedState `json:"expanded"`
	X         float64       `json:"x"`
	Y         float64       `json:"y"`
}

// Layout is a point-in-time rendering of a GraphState.
type Layout struct {
	Generation uint64       `json:"generation"`
	Nodes      []LayoutNode `json:"nodes"`
	Edges      []Edge       `json:"edges"`
}

// Layout captures node positions ordered by id.
func (s *GraphState) Layout(generation uint64) Layout {
	out := Layout{
		Generation: generation,
		Nodes:      make([]LayoutNode, 0, len(s.Nodes)),
		Edges:      append([]Edge{}, s.Edges...),
	}
	for _, id := range s.SortedIDs() {
		n := s.Nodes[id]
		out.Nodes = append(out.Nodes, LayoutNode{
			ID:        n.ID,
			Label:     n.Label,
			DeckKind:  n.DeckKind,
			Important: n.Important,
			Expanded:  n.Expanded,
			X:         n.X,
			Y:         n.Y,
		})
	}
	return out
}
