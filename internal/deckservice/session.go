package deckservice

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/starford/deckgraph/internal/apperr"
	"github.com/starford/deckgraph/internal/graph"
)

// LayoutFrame is one streamed tick. Session names the running stream for
// Toggle, Drag and Release.
type LayoutFrame struct {
	Session string `json:"session"`
	graph.Layout
}

// LayoutSession is a running layout stream. Its interactions are applied
// between two frames of the stream's loop.
type LayoutSession struct {
	id   string
	loop *graph.Loop
	x    *graph.Explorer
	done chan struct{}
}

// ID returns the session id carried by every frame.
func (ls *LayoutSession) ID() string { return ls.id }

// Toggle clicks deck id in the running stream and returns its new state.
// The stream continues on the rebuilt graph, with surviving nodes keeping
// their positions.
func (ls *LayoutSession) Toggle(ctx context.Context, id int64) (graph.ExpandedState, error) {
	type result struct {
		state graph.ExpandedState
		err   error
	}
	ch := make(chan result, 1)
	ls.loop.Rebuild(func() *graph.GraphState {
		st, err := ls.x.Toggle(id)
		ch <- result{st, err}
		if err != nil {
			return nil
		}
		return ls.x.State()
	})

	select {
	case r := <-ch:
		if r.err != nil {
			return graph.ExpandedNone, mapGraphErr(r.err)
		}
		return r.state, nil
	case <-ls.done:
		return graph.ExpandedNone, fmt.Errorf("%w: layout session %s ended", apperr.ErrNotFound, ls.id)
	case <-ctx.Done():
		return graph.ExpandedNone, ctx.Err()
	}
}

// Drag pins deck id at (x, y) and reheats the stream. Unknown ids are ignored.
func (ls *LayoutSession) Drag(id int64, x, y float64) { ls.loop.Drag(id, x, y) }

// Release unpins deck id.
func (ls *LayoutSession) Release(id int64) { ls.loop.Release(id) }

type sessionRegistry struct {
	mu sync.RWMutex
	m  map[string]*LayoutSession
}

func (r *sessionRegistry) add(ls *LayoutSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.m == nil {
		r.m = make(map[string]*LayoutSession)
	}
	r.m[ls.id] = ls
}

func (r *sessionRegistry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.m, id)
}

func (r *sessionRegistry) get(id string) (*LayoutSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ls, ok := r.m[id]
	return ls, ok
}

// Session returns the running layout stream with the given id.
func (s *Service) Session(id string) (*LayoutSession, error) {
	ls, ok := s.sessions.get(id)
	if !ok {
		return nil, fmt.Errorf("%w: layout session %s", apperr.ErrNotFound, id)
	}
	return ls, nil
}

func (s *Service) openSession(loop *graph.Loop, x *graph.Explorer) (*LayoutSession, func()) {
	ls := &LayoutSession{
		id:   uuid.NewString(),
		loop: loop,
		x:    x,
		done: make(chan struct{}),
	}
	s.sessions.add(ls)
	return ls, func() {
		s.sessions.remove(ls.id)
		close(ls.done)
	}
}
