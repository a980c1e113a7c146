// Package metrics exposes the watcher's Prometheus collectors. All methods
// are safe on a nil *Metrics so components can run without instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "polywatch"

// Metrics holds the collectors and the registry they are registered on.
type Metrics struct {
	reg *prometheus.Registry

	FramesTotal     prometheus.Counter
	EventsTotal     *prometheus.CounterVec // kind, result
	IssuesTotal     *prometheus.CounterVec // reason
	SessionsTotal   prometheus.Counter
	ReconnectsTotal prometheus.Counter
	ArbWindowsTotal *prometheus.CounterVec // label, direction
	BookLevels      *prometheus.GaugeVec   // instrument, side
	PairEdge        *prometheus.GaugeVec   // label
	SinkErrorsTotal *prometheus.CounterVec // sink
}

// New creates and registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		FramesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "frames_total", Help: "Raw frames received from the market channel",
		}),
		EventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "events_total", Help: "Decoded events by kind and apply result",
		}, []string{"kind", "result"}),
		IssuesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "decode_issues_total", Help: "Recoverable decode problems by reason",
		}, []string{"reason"}),
		SessionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "sessions_total", Help: "Feed sessions opened",
		}),
		ReconnectsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "reconnects_total", Help: "Reconnect attempts after a connection error",
		}),
		ArbWindowsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "arb_windows_total", Help: "Arbitrage windows opened by pair and direction",
		}, []string{"label", "direction"}),
		BookLevels: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "book_levels", Help: "Resting price levels per instrument and side",
		}, []string{"instrument", "side"}),
		PairEdge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "pair_edge", Help: "Latest 1-(mid UP + mid DOWN) per pair",
		}, []string{"label"}),
		SinkErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "sink_errors_total", Help: "Failed publishes by sink",
		}, []string{"sink"}),
	}
	m.reg.MustRegister(
		m.FramesTotal, m.EventsTotal, m.IssuesTotal, m.SessionsTotal, m.ReconnectsTotal,
		m.ArbWindowsTotal, m.BookLevels, m.PairEdge, m.SinkErrorsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Metrics) Frame() {
	if m != nil {
		m.FramesTotal.Inc()
	}
}

func (m *Metrics) Event(kind, result string) {
	if m != nil {
		m.EventsTotal.WithLabelValues(kind, result).Inc()
	}
}

func (m *Metrics) Issue(reason string) {
	if m != nil {
		m.IssuesTotal.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) Session() {
	if m != nil {
		m.SessionsTotal.Inc()
	}
}

func (m *Metrics) Reconnect() {
	if m != nil {
		m.ReconnectsTotal.Inc()
	}
}

func (m *Metrics) ArbWindow(label, direction string) {
	if m != nil {
		m.ArbWindowsTotal.WithLabelValues(label, direction).Inc()
	}
}

func (m *Metrics) Levels(instrument string, bids, asks int) {
	if m != nil {
		m.BookLevels.WithLabelValues(instrument, "bid").Set(float64(bids))
		m.BookLevels.WithLabelValues(instrument, "ask").Set(float64(asks))
	}
}

func (m *Metrics) Edge(label string, edge float64) {
	if m != nil {
		m.PairEdge.WithLabelValues(label).Set(edge)
	}
}

func (m *Metrics) SinkError(sink string) {
	if m != nil {
		m.SinkErrorsTotal.WithLabelValues(sink).Inc()
	}
}
