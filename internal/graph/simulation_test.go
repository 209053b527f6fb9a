package graph

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// randomChain returns n nodes linked in a chain, scattered at random.
func randomChain(n int, seed uint64) *GraphState {
	rng := rand.New(rand.NewPCG(seed, seed))
	s := &GraphState{Nodes: make(map[int64]*GraphNode, n)}
	for i := 1; i <= n; i++ {
		s.Nodes[int64(i)] = &GraphNode{
			ID: int64(i),
			X:  rng.Float64()*400 - 200,
			Y:  rng.Float64()*400 - 200,
		}
		if i > 1 {
			s.Edges = append(s.Edges, Edge{Source: int64(i - 1), Target: int64(i), Strength: 1})
		}
	}
	return s
}

func positions(s *GraphState) map[int64][2]float64 {
	out := make(map[int64][2]float64, len(s.Nodes))
	for id, n := range s.Nodes {
		out[id] = [2]float64{n.X, n.Y}
	}
	return out
}

func maxDelta(before map[int64][2]float64, s *GraphState) float64 {
	var m float64
	for id, n := range s.Nodes {
		p := before[id]
		m = math.Max(m, math.Hypot(n.X-p[0], n.Y-p[1]))
	}
	return m
}

func TestSimulation_Converges(t *testing.T) {
	state := randomChain(8, 7)
	sim := NewSimulation(state)

	prev := sim.Alpha()
	ticks := 0
	var firstDelta float64
	for !sim.Settled() {
		before := positions(state)
		sim.Tick()
		ticks++
		if ticks == 1 {
			firstDelta = maxDelta(before, state)
		}
		require.Less(t, sim.Alpha(), prev, "alpha must fall every tick")
		prev = sim.Alpha()
		require.LessOrEqual(t, ticks, SettleTicks+5)
	}
	assert.GreaterOrEqual(t, ticks, SettleTicks-5)

	before := positions(state)
	sim.Tick()
	lastDelta := maxDelta(before, state)
	assert.Less(t, lastDelta, 1.0)
	assert.Less(t, lastDelta, firstDelta)
}

func TestSimulation_RunStopsWhenSettled(t *testing.T) {
	sim := NewSimulation(randomChain(4, 3))
	ticks := sim.Run(1000)
	assert.True(t, sim.Settled())
	assert.Less(t, ticks, 1000)

	assert.Equal(t, 0, sim.Run(1000))
}

func TestSimulation_PinsSnapPosition(t *testing.T) {
	state := randomChain(3, 1)
	fx, fy := 12.5, -4.0
	pinned := state.Nodes[2]
	pinned.FX, pinned.FY = &fx, &fy
	pinned.VX, pinned.VY = 9, 9

	sim := NewSimulation(state)
	for i := 0; i < 10; i++ {
		sim.Tick()
		assert.Equal(t, fx, pinned.X)
		assert.Equal(t, fy, pinned.Y)
		assert.Zero(t, pinned.VX)
		assert.Zero(t, pinned.VY)
	}
}

func TestSimulation_CoincidentNodesSeparate(t *testing.T) {
	state := &GraphState{Nodes: map[int64]*GraphNode{
		1: {ID: 1},
		2: {ID: 2},
	}}
	sim := NewSimulation(state)
	sim.Run(SettleTicks * 2)

	a, b := state.Nodes[1], state.Nodes[2]
	assert.False(t, math.IsNaN(a.X) || math.IsNaN(b.X))
	assert.Greater(t, math.Hypot(a.X-b.X, a.Y-b.Y), 1.0)
}

func TestSimulation_LabelBoxesNudgeAlongY(t *testing.T) {
	state := &GraphState{Nodes: map[int64]*GraphNode{
		1: {ID: 1, X: 0, Y: 0, TextWidth: 100, TextHeight: 20},
		2: {ID: 2, X: 5, Y: 4, TextWidth: 100, TextHeight: 20},
	}}
	f := DefaultForces()
	f.ManyBodyStrength = 0
	f.CollideRadius = 0
	f.CenterXStrength = 0
	f.CenterYStrength = 0
	sim := NewSimulation(state, WithForces(f))
	sim.Tick()

	assert.Equal(t, 0.0, state.Nodes[1].X)
	assert.Equal(t, 5.0, state.Nodes[2].X)
	assert.Less(t, state.Nodes[1].Y, 0.0)
	assert.Greater(t, state.Nodes[2].Y, 4.0)
}

func TestSimulation_CenteringFavoursY(t *testing.T) {
	state := &GraphState{Nodes: map[int64]*GraphNode{
		1: {ID: 1, X: 100, Y: 100},
	}}
	sim := NewSimulation(state)
	sim.Tick()

	n := state.Nodes[1]
	assert.Less(t, n.X, 100.0)
	assert.Less(t, n.Y, n.X, "Y is pulled harder than X")
}

func TestSimulation_LinkPullsTowardRestDistance(t *testing.T) {
	state := &GraphState{
		Nodes: map[int64]*GraphNode{
			1: {ID: 1, X: -200},
			2: {ID: 2, X: 200},
		},
		Edges: []Edge{{Source: 1, Target: 2, Strength: 1}},
	}
	f := DefaultForces()
	f.ManyBodyStrength = 0
	f.CenterXStrength = 0
	sim := NewSimulation(state, WithForces(f))
	sim.Tick()

	assert.Greater(t, state.Nodes[1].X, -200.0)
	assert.Less(t, state.Nodes[2].X, 200.0)
	assert.InDelta(t, -state.Nodes[1].X, state.Nodes[2].X, 1e-9)
}
