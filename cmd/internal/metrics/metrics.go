// Package metrics owns the Prometheus collectors for the token lifecycle.
//
// A nil *Metrics is valid and records nothing, so components can take it as an
// optional dependency.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "console"

// Metrics groups the counters and histograms exported at /metrics.
type Metrics struct {
	minted      *prometheus.CounterVec
	extended    *prometheus.CounterVec
	transitions *prometheus.CounterVec
	redirects   *prometheus.CounterVec
	conflicts   *prometheus.CounterVec
	storeOps    *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		minted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_minted_total",
			Help:      "Credentials minted because the owner had none.",
		}, []string{"kind"}),
		extended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_extended_total",
			Help:      "Existing credentials whose expiry was slid forward.",
		}, []string{"kind"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_transitions_total",
			Help:      "Session state machine states entered.",
		}, []string{"state"}),
		redirects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_redirects_total",
			Help:      "Redirects issued by the authorization gate.",
		}, []string{"reason"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_conflicts_total",
			Help:      "Optimistic concurrency conflicts detected by token stores.",
		}, []string{"backend"}),
		storeOps: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_op_duration_seconds",
			Help:      "Token store operation latency.",
			Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"backend", "op"}),
	}

	if reg == nil {
		return m, nil
	}

	for _, c := range []prometheus.Collector{m.minted, m.extended, m.transitions, m.redirects, m.conflicts, m.storeOps} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// TokenMinted counts a freshly minted credential of the given kind.
func (m *Metrics) TokenMinted(kind string) {
	if m == nil {
		return
	}
	m.minted.WithLabelValues(kind).Inc()
}

// TokenExtended counts a sliding-expiry extension.
func (m *Metrics) TokenExtended(kind string) {
	if m == nil {
		return
	}
	m.extended.WithLabelValues(kind).Inc()
}

// Transition counts a state entered by the session state machine.
func (m *Metrics) Transition(state string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(state).Inc()
}

// Redirect counts a gate redirect.
func (m *Metrics) Redirect(reason string) {
	if m == nil {
		return
	}
	m.redirects.WithLabelValues(reason).Inc()
}

// StoreConflict counts a compare-and-swap miss in a token store.
func (m *Metrics) StoreConflict(backend string) {
	if m == nil {
		return
	}
	m.conflicts.WithLabelValues(backend).Inc()
}

// ObserveStoreOp records the latency of a store operation that began at start.
func (m *Metrics) ObserveStoreOp(backend, op string, start time.Time) {
	if m == nil {
		return
	}
	m.storeOps.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
}
