package graph

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrSuperseded is returned by Launch when a later Launch or Stop replaced it.
var ErrSuperseded = errors.New("graph: layout superseded")

const (
	// DefaultFrameInterval is the tick period of a Loop.
	DefaultFrameInterval = 16 * time.Millisecond
	dragAlphaTarget      = 0.3
)

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithFrameInterval sets the tick period.
func WithFrameInterval(d time.Duration) LoopOption {
	return func(l *Loop) { l.interval = d }
}

// WithReheat controls whether every Launch and Rebuild restarts at alpha 1.
// When false, only the first Launch does and later ones continue at the
// previous alpha, ticking at least once.
func WithReheat(reheat bool) LoopOption {
	return func(l *Loop) { l.reheat = reheat }
}

// WithStayAlive keeps a settled Launch waiting for Drag and Release instead
// of returning.
func WithStayAlive(stay bool) LoopOption {
	return func(l *Loop) { l.stayAlive = stay }
}

// WithSimOptions passes options to every Simulation the loop creates.
func WithSimOptions(opts ...SimOption) LoopOption {
	return func(l *Loop) { l.simOpts = append(l.simOpts, opts...) }
}

// Loop drives a Simulation from a ticker. At most one tick runs at a time and
// interactions are queued and applied between ticks.
type Loop struct {
	interval  time.Duration
	reheat    bool
	stayAlive bool
	simOpts   []SimOption

	generation atomic.Uint64

	mu      sync.Mutex // guards sim, pending and rebuilt; held for a whole tick
	sim     *Simulation
	pending []func()
	rebuilt uint64 // generation set by a Rebuild the running Launch adopts
	wake    chan struct{}
}

// NewLoop creates an idle loop.
func NewLoop(opts ...LoopOption) *Loop {
	l := &Loop{
		interval: DefaultFrameInterval,
		reheat:   true,
		wake:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Generation returns the number of Launch, Rebuild and Stop calls applied so far.
func (l *Loop) Generation() uint64 { return l.generation.Load() }

// Stop makes the running Launch return ErrSuperseded at its next frame.
func (l *Loop) Stop() {
	l.mu.Lock()
	l.generation.Add(1)
	l.mu.Unlock()
	l.signal()
}

// Launch simulates state, calling onTick after every tick with the state
// held exclusively. It returns nil once settled (unless the loop stays
// alive), ctx's error when cancelled and ErrSuperseded when replaced.
// onTick must not retain state after it returns.
func (l *Loop) Launch(ctx context.Context, state *GraphState, onTick func(*GraphState)) error {
	l.mu.Lock()
	gen := l.generation.Add(1)
	l.rebuilt = 0
	l.restart(state)
	l.mu.Unlock()
	l.signal()

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		if l.generation.Load() != gen {
			return ErrSuperseded
		}
		var settled bool
		var err error
		gen, settled, err = l.frame(gen, onTick)
		if err != nil {
			return err
		}
		if settled {
			if !l.stayAlive {
				return nil
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-l.wake:
			}
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// restart replaces the simulation. When reheat is off it keeps the old
// alpha, raised to the settle threshold so the new graph is ticked once.
// l.mu must be held.
func (l *Loop) restart(state *GraphState) {
	opts := l.simOpts
	if prev := l.sim; prev != nil && !l.reheat {
		alpha := prev.Alpha()
		if alpha < prev.AlphaMin() {
			alpha = prev.AlphaMin()
		}
		opts = append(append([]SimOption(nil), opts...), WithAlpha(alpha))
	}
	l.sim = NewSimulation(state, opts...)
}

// frame applies queued interactions and runs one tick unless settled. It
// returns the generation the Launch continues under, which changes when a
// queued Rebuild replaced the graph.
func (l *Loop) frame(gen uint64, onTick func(*GraphState)) (uint64, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.generation.Load() != gen {
		return gen, false, ErrSuperseded
	}
	for _, fn := range l.pending {
		fn()
	}
	l.pending = l.pending[:0]
	if l.rebuilt != 0 {
		gen, l.rebuilt = l.rebuilt, 0
	}

	if l.sim.Settled() {
		return gen, true, nil
	}
	l.sim.Tick()
	if onTick != nil {
		onTick(l.sim.State())
	}
	return gen, false, nil
}

// Rebuild calls build between two frames of the running Launch, with no
// tick in flight, and continues that Launch on the state build returns.
// build may read the previous state, which holds the latest positions. The
// generation is bumped, so any other Launch on this loop aborts, and alpha
// restarts at 1 unless reheat is off. A nil state from build changes nothing.
func (l *Loop) Rebuild(build func() *GraphState) {
	l.enqueue(func() {
		state := build()
		if state == nil {
			return
		}
		l.restart(state)
		l.rebuilt = l.generation.Add(1)
	})
}

// Drag pins node id at (x, y) and reheats the running simulation without
// resetting alpha.
func (l *Loop) Drag(id int64, x, y float64) {
	l.enqueue(func() {
		s := l.sim
		n, ok := s.State().Nodes[id]
		if !ok {
			return
		}
		n.FX, n.FY = &x, &y
		s.SetAlphaTarget(dragAlphaTarget)
		if s.Settled() {
			s.SetAlpha(s.AlphaMin())
		}
	})
}

// Release unpins node id and lets the simulation cool.
func (l *Loop) Release(id int64) {
	l.enqueue(func() {
		s := l.sim
		if n, ok := s.State().Nodes[id]; ok {
			n.FX, n.FY = nil, nil
		}
		s.SetAlphaTarget(0)
	})
}

// Alpha returns the running simulation's temperature, or 0 before the first Launch.
func (l *Loop) Alpha() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sim == nil {
		return 0
	}
	return l.sim.Alpha()
}

// Snapshot returns a copy of the simulated state, or nil before the first Launch.
func (l *Loop) Snapshot() *GraphState {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sim == nil {
		return nil
	}
	return l.sim.State().Clone()
}

func (l *Loop) enqueue(fn func()) {
	l.mu.Lock()
	l.pending = append(l.pending, fn)
	l.mu.Unlock()
	l.signal()
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}
