// Package metrics exposes Prometheus instrumentation for the challenge
// lifecycle.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	startedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sesame_challenges_started_total",
			Help: "Challenges created, by channel and delivery method.",
		},
		[]string{"channel", "method"},
	)

	verifiedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sesame_challenges_verified_total",
			Help: "Verification attempts, by outcome.",
		},
		[]string{"outcome"},
	)

	resendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sesame_challenge_resends_total",
			Help: "Resend requests, by outcome.",
		},
		[]string{"outcome"},
	)

	sendFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sesame_challenge_send_failures_total",
			Help: "Outbound messages the comm collaborator failed to deliver.",
		},
	)

	sweptTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sesame_challenges_swept_total",
			Help: "Expired challenges removed by the cleanup worker.",
		},
	)
)

// Verification outcomes.
const (
	OutcomeVerified  = "verified"
	OutcomeMismatch  = "mismatch"
	OutcomeExpired   = "expired"
	OutcomeExhausted = "exhausted"
	OutcomeConsumed  = "already_consumed"
	OutcomeNotFound  = "not_found"
)

type Recorder struct{}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) RecordStart(channel, method string) {
	startedTotal.WithLabelValues(channel, method).Inc()
}

func (r *Recorder) RecordVerify(outcome string) {
	verifiedTotal.WithLabelValues(outcome).Inc()
}

func (r *Recorder) RecordResend(outcome string) {
	resendsTotal.WithLabelValues(outcome).Inc()
}

func (r *Recorder) RecordSendFailure() {
	sendFailuresTotal.Inc()
}

func (r *Recorder) RecordSwept(count int) {
	sweptTotal.Add(float64(count))
}
