// Package service gates identifiers against the internal denylist and the
// disposable-domain heuristic. It is consulted before any challenge is
// created and fed by the bounce feedback loop.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"sesame/internal/denylist/models"
	"sesame/internal/denylist/store"
	identity "sesame/internal/identity/models"
	dErrors "sesame/pkg/domain-errors"
)

type Service struct {
	store  store.Store
	logger *slog.Logger
	clock  func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

func New(st store.Store, opts ...Option) (*Service, error) {
	if st == nil {
		return nil, fmt.Errorf("denylist store is required")
	}

	svc := &Service{
		store: st,
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// CheckIdentifier consults the internal list first; an internal block wins
// over everything. Otherwise emails are screened against the disposable
// domain set.
func (s *Service) CheckIdentifier(ctx context.Context, identifier identity.Identifier) (*models.CheckResult, error) {
	entry, err := s.store.IsBlocked(ctx, identifier.Hash, s.clock())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check denylist")
	}
	if entry != nil {
		return models.BlockedBy(models.SourceInternal, entry.Reason), nil
	}

	if identifier.IsEmail() && isDisposableDomain(identifier.EmailDomain()) {
		return models.BlockedBy(models.SourceDisposableEmail, "disposable email domain"), nil
	}

	return models.Allowed(), nil
}

// BlockIdentifier adds an identifier to the internal list. A nil expiresAt
// blocks permanently.
func (s *Service) BlockIdentifier(ctx context.Context, identifier identity.Identifier, reason string, expiresAt *time.Time) error {
	return s.BlockHash(ctx, identifier.Hash, reason, expiresAt)
}

// BlockHash is the hash-keyed primitive used by feedback loops that never
// see the raw identifier.
func (s *Service) BlockHash(ctx context.Context, identifierHash, reason string, expiresAt *time.Time) error {
	if identifierHash == "" {
		return dErrors.New(dErrors.CodeValidation, "identifier hash is required")
	}

	entry := &models.Entry{
		IdentifierHash: identifierHash,
		Reason:         reason,
		CreatedAt:      s.clock(),
		ExpiresAt:      expiresAt,
	}
	if err := s.store.Add(ctx, entry); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to add denylist entry")
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "identifier denylisted",
			"event", "identifier_blocked",
			"log_type", "audit",
			"reason", reason,
			"permanent", expiresAt == nil,
		)
	}
	return nil
}

// UnblockIdentifier removes an internal entry. It cannot lift a disposable
// domain block; those are not entries.
func (s *Service) UnblockIdentifier(ctx context.Context, identifierHash string) error {
	if identifierHash == "" {
		return dErrors.New(dErrors.CodeValidation, "identifier hash is required")
	}
	if err := s.store.Remove(ctx, identifierHash); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to remove denylist entry")
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "identifier unblocked",
			"event", "identifier_unblocked",
			"log_type", "audit",
		)
	}
	return nil
}

// List exposes live entries for operational inspection.
func (s *Service) List(ctx context.Context, limit int) ([]*models.Entry, error) {
	entries, err := s.store.List(ctx, limit, s.clock())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list denylist entries")
	}
	return entries, nil
}
