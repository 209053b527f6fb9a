// Package metrics exposes Prometheus collectors for markup compilation,
// layout simulation and the layout cache.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics holds the collectors and the registry they are registered on.
type Metrics struct {
	reg *prometheus.Registry

	MarkupCompiles *prometheus.CounterVec
	LayoutTicks    prometheus.Counter
	LayoutDuration prometheus.Histogram
	CacheLookups   *prometheus.CounterVec
	ActiveStreams  prometheus.Gauge
	IndexedDecks   prometheus.Gauge
}

// New creates a Metrics with a private registry. Go runtime and process
// collectors are included.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		MarkupCompiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "deckgraph",
			Name:      "markup_compiles_total",
			Help:      "Markup compilations by outcome.",
		}, []string{"outcome"}),
		LayoutTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "deckgraph",
			Name:      "layout_ticks_total",
			Help:      "Force simulation ticks executed.",
		}),
		LayoutDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "deckgraph",
			Name:      "layout_duration_seconds",
			Help:      "Time to compute a settled layout.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "deckgraph",
			Name:      "layout_cache_lookups_total",
			Help:      "Layout cache lookups by result.",
		}, []string{"result"}),
		ActiveStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "deckgraph",
			Name:      "layout_streams_active",
			Help:      "Open layout streams.",
		}),
		IndexedDecks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "deckgraph",
			Name:      "indexed_decks",
			Help:      "Decks in the index after the last sync.",
		}),
	}
	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.MarkupCompiles, m.LayoutTicks, m.LayoutDuration,
		m.CacheLookups, m.ActiveStreams, m.IndexedDecks,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// ObserveCompile counts one markup compilation.
func (m *Metrics) ObserveCompile(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.MarkupCompiles.WithLabelValues(OutcomeError).Inc()
		return
	}
	m.MarkupCompiles.WithLabelValues(OutcomeOK).Inc()
}

// ObserveLayout records a finished simulation run.
func (m *Metrics) ObserveLayout(ticks int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.LayoutTicks.Add(float64(ticks))
	m.LayoutDuration.Observe(elapsed.Seconds())
}

// ObserveCache counts a cache hit or miss.
func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.CacheLookups.WithLabelValues("miss").Inc()
}

// StreamOpened increments the open stream gauge and returns its decrement.
func (m *Metrics) StreamOpened() func() {
	if m == nil {
		return func() {}
	}
	m.ActiveStreams.Inc()
	return m.ActiveStreams.Dec
}

// SetIndexed records the deck count.
func (m *Metrics) SetIndexed(n int) {
	if m == nil {
		return
	}
	m.IndexedDecks.Set(float64(n))
}
