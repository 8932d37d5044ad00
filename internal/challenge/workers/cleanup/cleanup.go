// Package cleanup sweeps expired challenge engine artifacts on an interval.
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"sesame/internal/challenge/metrics"
)

// ChallengeStore exposes cleanup for expired challenges.
type ChallengeStore interface {
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// CounterStore exposes cleanup for expired rate limit and abuse counters.
type CounterStore interface {
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// DenylistStore exposes cleanup for expired denylist entries.
type DenylistStore interface {
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// Result summarizes the deletions performed by a cleanup run.
type Result struct {
	DeletedChallenges      int
	DeletedCounters        int
	DeletedDenylistEntries int
}

// Service periodically removes expired challenges, counters and denylist
// entries. Redis-backed stores expire values through TTLs and report only
// index pruning here; the sweep matters for the in-memory and Postgres
// stores.
type Service struct {
	challenges ChallengeStore
	counters   CounterStore
	denylist   DenylistStore
	interval   time.Duration
	logger     *slog.Logger
	metrics    *metrics.Recorder
	clock      func() time.Time
}

// Option configures Service.
type Option func(*Service)

// WithInterval overrides the sweep interval when greater than zero.
func WithInterval(interval time.Duration) Option {
	return func(s *Service) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithLogger overrides the logger used for sweep errors.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records swept challenge counts.
func WithMetrics(recorder *metrics.Recorder) Option {
	return func(s *Service) {
		s.metrics = recorder
	}
}

// WithClock overrides the time source. Test hook.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// New constructs a cleanup Service. The counter and denylist stores are
// optional; backends that expire entries on their own need no sweep.
func New(challenges ChallengeStore, counters CounterStore, denylist DenylistStore, opts ...Option) (*Service, error) {
	if challenges == nil {
		return nil, fmt.Errorf("challenge store is required")
	}
	svc := &Service{
		challenges: challenges,
		counters:   counters,
		denylist:   denylist,
		interval:   5 * time.Minute,
		logger:     slog.Default(),
		clock:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc, nil
}

// Start runs the sweep periodically until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.ErrorContext(ctx, "cleanup sweep failed", "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce sweeps all configured stores concurrently. Each store writes its
// own result field, so the group needs no extra locking.
func (s *Service) RunOnce(ctx context.Context) (Result, error) {
	now := s.clock()
	var res Result

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		deleted, err := s.challenges.DeleteExpired(ctx, now)
		if err != nil {
			return fmt.Errorf("delete expired challenges: %w", err)
		}
		res.DeletedChallenges = deleted
		if s.metrics != nil && deleted > 0 {
			s.metrics.RecordSwept(deleted)
		}
		return nil
	})

	if s.counters != nil {
		g.Go(func() error {
			deleted, err := s.counters.DeleteExpired(ctx, now)
			if err != nil {
				return fmt.Errorf("delete expired counters: %w", err)
			}
			res.DeletedCounters = deleted
			return nil
		})
	}

	if s.denylist != nil {
		g.Go(func() error {
			deleted, err := s.denylist.DeleteExpired(ctx, now)
			if err != nil {
				return fmt.Errorf("delete expired denylist entries: %w", err)
			}
			res.DeletedDenylistEntries = deleted
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return res, err
	}
	return res, nil
}
