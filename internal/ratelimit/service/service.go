// Package service implements fixed-window rate limiting over a counter store.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"sesame/internal/platform/privacy"
	"sesame/internal/ratelimit/config"
	"sesame/internal/ratelimit/metrics"
	"sesame/internal/ratelimit/models"
	"sesame/internal/ratelimit/store/counter"
	dErrors "sesame/pkg/domain-errors"
)

const globalKey = "all"

type Service struct {
	counters counter.Store
	config   *config.Config
	logger   *slog.Logger
	metrics  *metrics.Recorder
	clock    func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		s.config = cfg
	}
}

func WithMetrics(recorder *metrics.Recorder) Option {
	return func(s *Service) {
		s.metrics = recorder
	}
}

func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

func New(counters counter.Store, opts ...Option) (*Service, error) {
	if counters == nil {
		return nil, fmt.Errorf("counter store is required")
	}

	svc := &Service{
		counters: counters,
		config:   config.DefaultConfig(),
		clock:    time.Now,
	}

	for _, opt := range opts {
		opt(svc)
	}

	return svc, nil
}

// Check applies a rule to an already-incremented counter. It is pure so the
// windowing arithmetic can be tested without a store.
func Check(rule models.Rule, c *models.Counter, now time.Time) *models.Result {
	allowed := c.Count <= rule.MaxAttempts

	remaining := rule.MaxAttempts - c.Count
	if remaining < 0 {
		remaining = 0
	}

	return &models.Result{
		Allowed:    allowed,
		Limit:      rule.MaxAttempts,
		Remaining:  remaining,
		ResetAt:    c.ExpiresAt,
		RetryAfter: models.RetryAfterSeconds(allowed, c.ExpiresAt, now),
	}
}

// Allow counts one attempt against the scope's fixed window and reports the
// decision. The increment happens before the comparison, so attempts made
// while a window is exhausted still land in that window and keep its ResetAt
// stable rather than extending it.
func (s *Service) Allow(ctx context.Context, scope models.Scope, key string) (*models.Result, error) {
	if !scope.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown rate limit scope %q", scope))
	}
	if key == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "rate limit key is required")
	}

	rule, ok := s.config.GetRule(scope)
	if !ok {
		// No rule configured for the scope means no limit.
		return &models.Result{Allowed: true, Scope: scope}, nil
	}

	c, err := s.counters.Increment(ctx, models.CounterKey(scope, key), rule.Window)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count rate limit attempt")
	}

	result := Check(rule, c, s.clock())
	result.Scope = scope

	if s.metrics != nil {
		s.metrics.RecordCheck(string(scope), result.Allowed)
	}
	if !result.Allowed {
		s.logAudit(ctx, "rate_limit_exceeded",
			"scope", scope,
			"limit", rule.MaxAttempts,
			"window_seconds", int(rule.Window.Seconds()),
			"retry_after_seconds", result.RetryAfter,
		)
	}

	return result, nil
}

// AllowStart applies the challenge-issuance limits for a new challenge
// request: the identifier scope, then the caller's IP, then the global
// throttle. All three counters are incremented even when an earlier scope
// denies, so an attacker hammering one identifier still burns IP budget.
func (s *Service) AllowStart(ctx context.Context, identifierHash, ip string) (*models.Result, error) {
	idResult, err := s.Allow(ctx, models.ScopeIdentifier, identifierHash)
	if err != nil {
		return nil, err
	}

	ipResult, err := s.Allow(ctx, models.ScopeIP, ip)
	if err != nil {
		return nil, err
	}

	combined := models.Combine(idResult, ipResult)

	globalResult, err := s.Allow(ctx, models.ScopeGlobal, globalKey)
	if err != nil {
		return nil, err
	}
	combined = models.Combine(combined, globalResult)

	if !combined.Allowed {
		s.logAudit(ctx, "challenge_start_rate_limited",
			"scope", combined.Scope,
			"ip", privacy.AnonymizeIP(ip),
			"reset_at", combined.ResetAt,
		)
	}

	return combined, nil
}

// Reset clears the counter for a scope+key, typically after a successful
// verification releases the identifier.
func (s *Service) Reset(ctx context.Context, scope models.Scope, key string) error {
	if err := s.counters.Reset(ctx, models.CounterKey(scope, key)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to reset rate limit")
	}
	return nil
}

func (s *Service) logAudit(ctx context.Context, event string, args ...any) {
	if s.logger == nil {
		return
	}
	allArgs := append([]any{"event", event, "log_type", "audit"}, args...)
	s.logger.InfoContext(ctx, "rate limit event", allArgs...)
}
