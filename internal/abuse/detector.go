package abuse

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"sesame/internal/platform/privacy"
	"sesame/internal/ratelimit/store/counter"
	dErrors "sesame/pkg/domain-errors"
)

const (
	velocityKeyPrefix    = "abuse:velocity:"
	geoVelocityKeyPrefix = "abuse:geo:"
	ipVelocityKeyPrefix  = "abuse:ip:"
)

// Detector composes independent velocity and heuristic signals into a risk
// score in [0,1] and maps it onto an action.
type Detector struct {
	counters counter.Store
	config   *Config
	logger   *slog.Logger
	metrics  *MetricsRecorder
}

type Option func(*Detector)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Detector) {
		d.logger = logger
	}
}

func WithConfig(cfg *Config) Option {
	return func(d *Detector) {
		d.config = cfg
	}
}

func WithMetrics(recorder *MetricsRecorder) Option {
	return func(d *Detector) {
		d.metrics = recorder
	}
}

func NewDetector(counters counter.Store, opts ...Option) (*Detector, error) {
	if counters == nil {
		return nil, fmt.Errorf("counter store is required")
	}

	d := &Detector{
		counters: counters,
		config:   DefaultConfig(),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d, nil
}

// Check scores one challenge-start request. Each velocity signal increments
// its own fixed-window counter, so the act of checking is also the act of
// recording. Signal weights add; the sum is capped at 1.0.
func (d *Detector) Check(ctx context.Context, input Input) (*Assessment, error) {
	if input.IdentifierHash == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "identifier hash is required")
	}
	if input.IP == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "ip is required")
	}

	assessment := &Assessment{}

	velocity, err := d.bump(ctx, velocityKeyPrefix+input.IdentifierHash)
	if err != nil {
		return nil, err
	}
	if velocity > d.config.VelocityThreshold {
		d.addSignal(assessment, Signal{
			Name:      SignalVelocity,
			Weight:    d.config.VelocityWeight,
			Count:     velocity,
			Threshold: d.config.VelocityThreshold,
		})
	}

	// Geo velocity only carries signal when the caller resolved a country.
	if input.GeoCountry != "" {
		geo, err := d.bump(ctx, geoVelocityKeyPrefix+input.IdentifierHash)
		if err != nil {
			return nil, err
		}
		if geo > d.config.GeoVelocityThreshold {
			d.addSignal(assessment, Signal{
				Name:      SignalGeoVelocity,
				Weight:    d.config.GeoVelocityWeight,
				Count:     geo,
				Threshold: d.config.GeoVelocityThreshold,
			})
		}
	}

	ipVelocity, err := d.bump(ctx, ipVelocityKeyPrefix+input.IP)
	if err != nil {
		return nil, err
	}
	if ipVelocity > d.config.IPVelocityThreshold {
		d.addSignal(assessment, Signal{
			Name:      SignalIPVelocity,
			Weight:    d.config.IPVelocityWeight,
			Count:     ipVelocity,
			Threshold: d.config.IPVelocityThreshold,
		})
	}

	if suspiciousUserAgent(input.UserAgent) {
		d.addSignal(assessment, Signal{
			Name:   SignalSuspiciousUA,
			Weight: d.config.SuspiciousUAWeight,
		})
	}

	// Weights are two-decimal quantities; round so accumulated float error
	// cannot land a score just below a cut-off it should meet.
	assessment.RiskScore = math.Round(assessment.RiskScore*100) / 100
	if assessment.RiskScore > 1.0 {
		assessment.RiskScore = 1.0
	}

	switch {
	case assessment.RiskScore >= d.config.BlockThreshold:
		assessment.Action = ActionBlock
	case assessment.RiskScore >= d.config.ChallengeThreshold:
		assessment.Action = ActionChallenge
	default:
		assessment.Action = ActionAllow
	}
	assessment.Suspicious = assessment.RiskScore >= d.config.ChallengeThreshold

	if d.metrics != nil {
		d.metrics.RecordAssessment(assessment)
	}
	if assessment.Action != ActionAllow && d.logger != nil {
		signals := make([]string, 0, len(assessment.Signals))
		for _, sig := range assessment.Signals {
			signals = append(signals, sig.Name)
		}
		d.logger.InfoContext(ctx, "abuse signal",
			"event", "abuse_detected",
			"log_type", "audit",
			"action", assessment.Action,
			"risk_score", assessment.RiskScore,
			"signals", signals,
			"ip", privacy.AnonymizeIP(input.IP),
		)
	}

	return assessment, nil
}

func (d *Detector) addSignal(a *Assessment, sig Signal) {
	a.Signals = append(a.Signals, sig)
	a.RiskScore += sig.Weight
}

func (d *Detector) bump(ctx context.Context, key string) (int, error) {
	c, err := d.counters.Increment(ctx, key, d.config.Window)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record abuse velocity")
	}
	return c.Count, nil
}
