package deckservice

import (
	"log/slog"
	"time"

	"github.com/starford/deckgraph/internal/graph"
	"github.com/starford/deckgraph/internal/layoutcache"
	"github.com/starford/deckgraph/internal/metrics"
)

// GraphSettings tune layout requests.
type GraphSettings struct {
	Depth         int
	MaxTicks      int
	FrameInterval time.Duration
	Reheat        bool
	Forces        graph.Forces
	// CharWidth and LineHeight size node label boxes.
	CharWidth  float64
	LineHeight float64
}

// DefaultGraphSettings returns depth 2 with the default forces.
func DefaultGraphSettings() GraphSettings {
	return GraphSettings{
		Depth:         2,
		MaxTicks:      graph.SettleTicks * 2,
		FrameInterval: graph.DefaultFrameInterval,
		Reheat:        true,
		Forces:        graph.DefaultForces(),
		CharWidth:     graph.DefaultCharWidth,
		LineHeight:    graph.DefaultLineHeight,
	}
}

// Option configures a Service.
type Option func(*Service)

// WithCache stores computed layouts in c.
func WithCache(c layoutcache.Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithMetrics records engine activity on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithGraphSettings overrides layout defaults.
func WithGraphSettings(g GraphSettings) Option {
	return func(s *Service) { s.graph = g }
}
