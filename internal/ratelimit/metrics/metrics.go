// Package metrics exposes Prometheus instrumentation for rate limit checks.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	checksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sesame_ratelimit_checks_total",
			Help: "Rate limit checks by scope and outcome.",
		},
		[]string{"scope", "outcome"},
	)

	deniedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sesame_ratelimit_denied_total",
			Help: "Rate limit denials by scope.",
		},
		[]string{"scope"},
	)

	checkDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sesame_ratelimit_check_duration_seconds",
			Help:    "Latency of rate limit checks including counter store access.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Recorder records rate limit check outcomes.
type Recorder struct{}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) RecordCheck(scope string, allowed bool) {
	outcome := "allowed"
	if !allowed {
		outcome = "denied"
		deniedTotal.WithLabelValues(scope).Inc()
	}
	checksTotal.WithLabelValues(scope, outcome).Inc()
}

func (r *Recorder) RecordDuration(seconds float64) {
	checkDuration.Observe(seconds)
}
