package graph

import (
	"math"
	"math/rand/v2"
)

const (
	// DefaultAlphaMin is the temperature below which a simulation is settled.
	DefaultAlphaMin = 0.001
	// SettleTicks is the number of ticks alpha takes to fall from 1 to
	// DefaultAlphaMin.
	SettleTicks = 300
)

// Forces holds the simulation constants.
type Forces struct {
	LinkDistance     float64 `yaml:"link_distance" toml:"link_distance"`
	ManyBodyStrength float64 `yaml:"many_body_strength" toml:"many_body_strength"`
	DistanceMin      float64 `yaml:"distance_min" toml:"distance_min"`
	CollideRadius    float64 `yaml:"collide_radius" toml:"collide_radius"`
	CollideStrength  float64 `yaml:"collide_strength" toml:"collide_strength"`
	LabelStrength    float64 `yaml:"label_strength" toml:"label_strength"`
	CenterXStrength  float64 `yaml:"center_x_strength" toml:"center_x_strength"`
	CenterYStrength  float64 `yaml:"center_y_strength" toml:"center_y_strength"`
	// VelocityDecay is the fraction of velocity kept after each tick.
	VelocityDecay float64 `yaml:"velocity_decay" toml:"velocity_decay"`
}

// DefaultForces returns the standard layout constants.
func DefaultForces() Forces {
	return Forces{
		LinkDistance:     30,
		ManyBodyStrength: -300,
		DistanceMin:      1,
		CollideRadius:    40,
		CollideStrength:  0.7,
		LabelStrength:    0.5,
		CenterXStrength:  0.05,
		CenterYStrength:  0.1,
		VelocityDecay:    0.6,
	}
}

type link struct {
	source, target *GraphNode
	strength       float64
	bias           float64
}

// Simulation is a discrete-time force layout over a GraphState. Positions
// are mutated in place. It is not safe for concurrent use; Loop serialises
// access for concurrent callers.
type Simulation struct {
	forces      Forces
	alpha       float64
	alphaMin    float64
	alphaDecay  float64
	alphaTarget float64
	rng         *rand.Rand

	state *GraphState
	nodes []*GraphNode
	links []link
}

// SimOption configures a Simulation.
type SimOption func(*Simulation)

// WithForces replaces the force constants.
func WithForces(f Forces) SimOption {
	return func(s *Simulation) { s.forces = f }
}

// WithSeed seeds the jitter source used for coincident nodes.
func WithSeed(seed uint64) SimOption {
	return func(s *Simulation) { s.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

// WithAlpha sets the starting temperature.
func WithAlpha(alpha float64) SimOption {
	return func(s *Simulation) { s.alpha = alpha }
}

// NewSimulation prepares a simulation over state starting at alpha 1.
func NewSimulation(state *GraphState, opts ...SimOption) *Simulation {
	s := &Simulation{
		forces:     DefaultForces(),
		alpha:      1,
		alphaMin:   DefaultAlphaMin,
		alphaDecay: 1 - math.Pow(DefaultAlphaMin, 1.0/SettleTicks),
	}
	WithSeed(1)(s)
	for _, opt := range opts {
		opt(s)
	}
	s.SetState(state)
	return s
}

// SetState swaps the simulated graph without touching alpha.
func (s *Simulation) SetState(state *GraphState) {
	s.state = state
	s.nodes = s.nodes[:0]
	for _, id := range state.SortedIDs() {
		s.nodes = append(s.nodes, state.Nodes[id])
	}

	count := make(map[int64]int)
	for _, e := range state.Edges {
		count[e.Source]++
		count[e.Target]++
	}
	s.links = s.links[:0]
	for _, e := range state.Edges {
		src, ok1 := state.Nodes[e.Source]
		dst, ok2 := state.Nodes[e.Target]
		if !ok1 || !ok2 {
			continue
		}
		cs, ct := float64(count[e.Source]), float64(count[e.Target])
		s.links = append(s.links, link{
			source:   src,
			target:   dst,
			strength: 1 / math.Min(cs, ct),
			bias:     cs / (cs + ct),
		})
	}
}

// State returns the simulated graph.
func (s *Simulation) State() *GraphState { return s.state }

// Alpha returns the current temperature.
func (s *Simulation) Alpha() float64 { return s.alpha }

// SetAlpha sets the current temperature.
func (s *Simulation) SetAlpha(alpha float64) { s.alpha = alpha }

// AlphaMin returns the settle threshold.
func (s *Simulation) AlphaMin() float64 { return s.alphaMin }

// AlphaTarget returns the temperature alpha decays toward.
func (s *Simulation) AlphaTarget() float64 { return s.alphaTarget }

// SetAlphaTarget sets the temperature alpha decays toward.
func (s *Simulation) SetAlphaTarget(target float64) { s.alphaTarget = target }

// Settled reports whether alpha has fallen below the threshold.
func (s *Simulation) Settled() bool { return s.alpha < s.alphaMin }

// Tick advances the simulation by one step.
func (s *Simulation) Tick() {
	s.alpha += (s.alphaTarget - s.alpha) * s.alphaDecay

	s.applyLinks()
	s.applyManyBody()
	s.applyCollide()
	s.applyLabelBoxes()
	s.applyCenter()

	decay := s.forces.VelocityDecay
	for _, n := range s.nodes {
		if n.FX == nil {
			n.VX *= decay
			n.X += n.VX
		} else {
			n.X = *n.FX
			n.VX = 0
		}
		if n.FY == nil {
			n.VY *= decay
			n.Y += n.VY
		} else {
			n.Y = *n.FY
			n.VY = 0
		}
	}
}

// Run ticks until settled or maxTicks is reached and returns the number of
// ticks taken.
func (s *Simulation) Run(maxTicks int) int {
	ticks := 0
	for ticks < maxTicks && !s.Settled() {
		s.Tick()
		ticks++
	}
	return ticks
}

func (s *Simulation) jiggle() float64 {
	return (s.rng.Float64() - 0.5) * 1e-6
}

func (s *Simulation) applyLinks() {
	for _, l := range s.links {
		src, dst := l.source, l.target
		x := dst.X + dst.VX - src.X - src.VX
		y := dst.Y + dst.VY - src.Y - src.VY
		if x == 0 {
			x = s.jiggle()
		}
		if y == 0 {
			y = s.jiggle()
		}
		d := math.Sqrt(x*x + y*y)
		k := (d - s.forces.LinkDistance) / d * s.alpha * l.strength
		x, y = x*k, y*k
		dst.VX -= x * l.bias
		dst.VY -= y * l.bias
		src.VX += x * (1 - l.bias)
		src.VY += y * (1 - l.bias)
	}
}

func (s *Simulation) applyManyBody() {
	min2 := s.forces.DistanceMin * s.forces.DistanceMin
	for _, a := range s.nodes {
		for _, b := range s.nodes {
			if a == b {
				continue
			}
			x, y := b.X-a.X, b.Y-a.Y
			l := x*x + y*y
			if x == 0 {
				x = s.jiggle()
				l += x * x
			}
			if y == 0 {
				y = s.jiggle()
				l += y * y
			}
			if l < min2 {
				l = math.Sqrt(min2 * l)
			}
			w := s.forces.ManyBodyStrength * s.alpha / l
			a.VX += x * w
			a.VY += y * w
		}
	}
}

// applyCollide separates nodes whose disks overlap, splitting the
// correction evenly since every disk has the same radius.
func (s *Simulation) applyCollide() {
	r := 2 * s.forces.CollideRadius
	for i, a := range s.nodes {
		ax, ay := a.X+a.VX, a.Y+a.VY
		for _, b := range s.nodes[i+1:] {
			x := ax - b.X - b.VX
			y := ay - b.Y - b.VY
			l := x*x + y*y
			if l >= r*r {
				continue
			}
			if x == 0 {
				x = s.jiggle()
				l += x * x
			}
			if y == 0 {
				y = s.jiggle()
				l += y * y
			}
			d := math.Sqrt(l)
			k := (r - d) / d * s.forces.CollideStrength
			x, y = x*k, y*k
			a.VX += x / 2
			a.VY += y / 2
			b.VX -= x / 2
			b.VY -= y / 2
		}
	}
}

// applyLabelBoxes pushes nodes with overlapping label boxes apart along Y.
// Nodes without a measured label are ignored.
func (s *Simulation) applyLabelBoxes() {
	for i, a := range s.nodes {
		if a.TextWidth <= 0 || a.TextHeight <= 0 {
			continue
		}
		for _, b := range s.nodes[i+1:] {
			if b.TextWidth <= 0 || b.TextHeight <= 0 {
				continue
			}
			dx := (b.X + b.VX) - (a.X + a.VX)
			dy := (b.Y + b.VY) - (a.Y + a.VY)
			if math.Abs(dx) >= (a.TextWidth+b.TextWidth)/2 {
				continue
			}
			overlap := (a.TextHeight+b.TextHeight)/2 - math.Abs(dy)
			if overlap <= 0 {
				continue
			}
			dir := 1.0
			if dy < 0 {
				dir = -1
			}
			push := overlap / 2 * s.forces.LabelStrength * dir
			a.VY -= push
			b.VY += push
		}
	}
}

func (s *Simulation) applyCenter() {
	kx := s.forces.CenterXStrength * s.alpha
	ky := s.forces.CenterYStrength * s.alpha
	for _, n := range s.nodes {
		if n.Pinned() {
			continue
		}
		n.VX -= n.X * kx
		n.VY -= n.Y * ky
	}
}
