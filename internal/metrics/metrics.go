// Package metrics exposes the engine's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors shared across services.
type Metrics struct {
	EvalDuration      prometheus.Histogram
	EntitiesEvaluated prometheus.Counter
	LockTransitions   *prometheus.CounterVec
	SamplingRequests  *prometheus.CounterVec
}

// New registers and returns the engine collectors.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EvalDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "attest",
			Name:      "evaluation_run_duration_seconds",
			Help:      "Wall time of batch evaluation runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		EntitiesEvaluated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "attest",
			Name:      "entities_evaluated_total",
			Help:      "Entities evaluated across all runs.",
		}),
		LockTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "attest",
			Name:      "lockout_transitions_total",
			Help:      "Lockout transition attempts by action and outcome.",
		}, []string{"action", "outcome"}),
		SamplingRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "attest",
			Name:      "sampling_requests_total",
			Help:      "Sampling draws by method.",
		}, []string{"method"}),
	}
	reg.MustRegister(m.EvalDuration, m.EntitiesEvaluated, m.LockTransitions, m.SamplingRequests)
	return m
}

// NewNop returns collectors that are never scraped, for tests and optional
// wiring.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
