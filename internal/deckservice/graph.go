package deckservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/deckgraph/internal/apperr"
	"github.com/starford/deckgraph/internal/graph"
	"github.com/starford/deckgraph/internal/index"
	"github.com/starford/deckgraph/internal/layoutcache"
)

// LayoutRequest selects the subgraph to lay out. Zero Root means the
// lowest deck id; zero Depth means the configured default. States restores
// a previous exploration and Toggle, when non-zero, is applied last.
// Interactive keeps a stream open after it settles.
type LayoutRequest struct {
	Root        int64                         `json:"root"`
	Depth       int                           `json:"depth"`
	Kind        string                        `json:"deckKind,omitempty"`
	States      map[int64]graph.ExpandedState `json:"states,omitempty"`
	Toggle      int64                         `json:"toggle,omitempty"`
	Interactive bool                          `json:"interactive,omitempty"`
}

// LayoutResult is a settled layout plus the exploration state that
// produced it.
type LayoutResult struct {
	Root   int64                         `json:"root"`
	Layout graph.Layout                  `json:"layout"`
	States map[int64]graph.ExpandedState `json:"states"`
	Cached bool                          `json:"cached"`
}

// Neighbourhood is the connectivity around one deck.
type Neighbourhood struct {
	Root  graph.Deck   `json:"root"`
	Decks []graph.Deck `json:"decks"`
	Edges []graph.Edge `json:"edges"`
}

// Graph returns every deck with its adjacency. Refs to missing decks are
// logged and left out.
func (s *Service) Graph(_ context.Context) (*index.Graph, error) {
	g, err := s.db.Graph()
	if err != nil {
		return nil, err
	}
	for _, r := range g.Unresolved {
		s.logger.Warn("deckservice: unresolved ref",
			slog.String("source", r.Source), slog.String("target", r.Target))
	}
	if g.Decks == nil {
		g.Decks = []graph.Deck{}
	}
	return g, nil
}

// Layout computes a settled layout, serving it from the cache when the
// graph and request are unchanged.
func (s *Service) Layout(ctx context.Context, req LayoutRequest) (*LayoutResult, error) {
	g, err := s.Graph(ctx)
	if err != nil {
		return nil, err
	}
	req, err = s.normalize(g, req)
	if err != nil {
		return nil, err
	}

	key := layoutcache.Key(g.Decks, g.Links, layoutcache.Params{
		Root:   req.Root,
		Depth:  req.Depth,
		Kind:   req.Kind,
		States: req.States,
		Toggle: req.Toggle,
		Ticks:  s.graph.MaxTicks,
		Forces: s.graph.Forces,

		CharWidth:  s.graph.CharWidth,
		LineHeight: s.graph.LineHeight,
	})
	if s.cache != nil {
		l, err := s.cache.Get(ctx, key)
		switch {
		case err == nil:
			s.metrics.ObserveCache(true)
			return &LayoutResult{Root: req.Root, Layout: *l, States: statesOf(l), Cached: true}, nil
		case errors.Is(err, layoutcache.ErrMiss):
			s.metrics.ObserveCache(false)
		default:
			s.logger.Warn("deckservice: layout cache get", slog.String("error", err.Error()))
		}
	}

	x, err := s.explore(g, req)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	sim := graph.NewSimulation(x.State(), graph.WithForces(s.graph.Forces))
	ticks := sim.Run(s.graph.MaxTicks)
	s.metrics.ObserveLayout(ticks, time.Since(start))

	l := x.State().Layout(x.Generation())
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, &l); err != nil {
			s.logger.Warn("deckservice: layout cache set", slog.String("error", err.Error()))
		}
	}
	return &LayoutResult{Root: req.Root, Layout: l, States: x.States()}, nil
}

// StreamLayout runs the frame loop for req, calling onFrame after every
// tick until the layout settles, ctx is cancelled or onFrame fails. An
// interactive stream runs until ctx is cancelled. While the stream runs its
// session is reachable through Session.
func (s *Service) StreamLayout(ctx context.Context, req LayoutRequest, onFrame func(LayoutFrame) error) error {
	g, err := s.Graph(ctx)
	if err != nil {
		return err
	}
	req, err = s.normalize(g, req)
	if err != nil {
		return err
	}
	x, err := s.explore(g, req)
	if err != nil {
		return err
	}

	done := s.metrics.StreamOpened()
	defer done()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	loop := graph.NewLoop(
		graph.WithFrameInterval(s.graph.FrameInterval),
		graph.WithReheat(s.graph.Reheat),
		graph.WithStayAlive(req.Interactive),
		graph.WithSimOptions(graph.WithForces(s.graph.Forces)),
	)
	session, closeSession := s.openSession(loop, x)
	defer closeSession()

	var (
		frameErr error
		ticks    int
	)
	start := time.Now()
	err = loop.Launch(ctx, x.State(), func(st *graph.GraphState) {
		if frameErr != nil {
			return
		}
		ticks++
		if err := onFrame(LayoutFrame{Session: session.id, Layout: st.Layout(x.Generation())}); err != nil {
			frameErr = err
			cancel()
		}
	})
	s.metrics.ObserveLayout(ticks, time.Since(start))
	if frameErr != nil {
		return frameErr
	}
	return err
}

// NeighbourhoodOf returns the decks reachable from the deck at path within
// depth hops and the de-duplicated edges between them.
func (s *Service) NeighbourhoodOf(ctx context.Context, p string, depth int) (*Neighbourhood, error) {
	row, err := s.db.GetDeck(index.NormalizePath(p))
	if err != nil {
		return nil, err
	}
	g, err := s.Graph(ctx)
	if err != nil {
		return nil, err
	}
	if depth <= 0 {
		depth = s.graph.Depth
	}

	byID := make(map[int64]graph.Deck, len(g.Decks))
	for _, d := range g.Decks {
		byID[d.ID] = d
	}
	edges := graph.BuildConnectivity(g.Links, row.ID, depth, func(int64) bool { return true })

	out := &Neighbourhood{Root: byID[row.ID], Decks: []graph.Deck{}, Edges: edges}
	if out.Edges == nil {
		out.Edges = []graph.Edge{}
	}
	seen := map[int64]bool{row.ID: true}
	for _, e := range edges {
		for _, id := range []int64{e.Source, e.Target} {
			if !seen[id] {
				seen[id] = true
				out.Decks = append(out.Decks, byID[id])
			}
		}
	}
	return out, nil
}

func (s *Service) normalize(g *index.Graph, req LayoutRequest) (LayoutRequest, error) {
	if len(g.Decks) == 0 {
		return req, fmt.Errorf("%w: no decks indexed", apperr.ErrNotFound)
	}
	if req.Root == 0 {
		req.Root = g.Decks[0].ID
	}
	if req.Depth <= 0 {
		req.Depth = s.graph.Depth
	}
	return req, nil
}

func (s *Service) explore(g *index.Graph, req LayoutRequest) (*graph.Explorer, error) {
	opts := []graph.ExplorerOption{
		graph.WithLogger(s.logger),
		graph.WithLabelMetrics(s.graph.CharWidth, s.graph.LineHeight),
	}
	if req.Kind != "" {
		opts = append(opts, graph.WithDeckKind(req.Kind))
	}
	x, err := graph.NewExplorer(g.Links, g.Decks, req.Root, req.Depth, opts...)
	if err != nil {
		return nil, mapGraphErr(err)
	}
	if len(req.States) > 0 {
		x.SetStates(req.States)
	}
	if req.Toggle != 0 {
		if _, err := x.Toggle(req.Toggle); err != nil {
			return nil, mapGraphErr(err)
		}
	}
	return x, nil
}

func mapGraphErr(err error) error {
	switch {
	case errors.Is(err, graph.ErrUnknownDeck):
		return fmt.Errorf("%w: %v", apperr.ErrNotFound, err)
	case errors.Is(err, graph.ErrNotVisible):
		return fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
	}
	return err
}

func statesOf(l *graph.Layout) map[int64]graph.ExpandedState {
	out := make(map[int64]graph.ExpandedState)
	for _, n := range l.Nodes {
		if n.Expanded != graph.ExpandedNone {
			out[n.ID] = n.Expanded
		}
	}
	return out
}
