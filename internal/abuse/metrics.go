package abuse

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	assessmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sesame_abuse_assessments_total",
			Help: "Abuse assessments by resulting action.",
		},
		[]string{"action"},
	)

	signalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sesame_abuse_signals_total",
			Help: "Risk signals that fired during abuse assessments.",
		},
		[]string{"signal"},
	)

	riskScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sesame_abuse_risk_score",
			Help:    "Distribution of computed risk scores.",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)
)

// MetricsRecorder records abuse assessment outcomes.
type MetricsRecorder struct{}

func NewMetricsRecorder() *MetricsRecorder {
	return &MetricsRecorder{}
}

func (r *MetricsRecorder) RecordAssessment(a *Assessment) {
	assessmentsTotal.WithLabelValues(string(a.Action)).Inc()
	riskScore.Observe(a.RiskScore)
	for _, sig := range a.Signals {
		signalsTotal.WithLabelValues(sig.Name).Inc()
	}
}
