// Package store defines the challenge persistence contract. Every mutation
// is an atomic conditional write; implementations must stay correct when
// hit by arbitrarily many concurrent callers sharing the backing store.
package store

import (
	"context"
	"time"

	"sesame/internal/challenge/models"
)

// Store persists challenges. Callers supply the current time so
// implementations stay deterministic under test.
type Store interface {
	// Create persists a new challenge. A challenge with the same id must
	// be rejected with sentinel.ErrConflict, never overwritten.
	Create(ctx context.Context, challenge *models.OTPChallenge) error

	// GetByID returns the challenge or sentinel.ErrNotFound.
	GetByID(ctx context.Context, id string) (*models.OTPChallenge, error)

	// GetActiveByIdentifier returns the most recently created pending,
	// non-expired challenge for the identifier hash, or
	// sentinel.ErrNotFound. Callers must not assume uniqueness beyond
	// "most recent".
	GetActiveByIdentifier(ctx context.Context, identifierHash string, now time.Time) (*models.OTPChallenge, error)

	// VerifyAndConsume attempts to verify a challenge with the given raw
	// code. It first tries a single conditional update requiring pending
	// status, an unexpired window and a matching code hash; on success the
	// challenge flips to verified with the attempt recorded, and verified
	// is true. If that condition fails for any reason, a second
	// conditional update records the attempt on the still-pending
	// challenge, flipping it to failed when the budget is spent. At most
	// one caller ever observes verified == true for a given challenge.
	// The returned challenge reflects the post-operation state.
	VerifyAndConsume(ctx context.Context, id, code string, now time.Time) (challenge *models.OTPChallenge, verified bool, err error)

	// IncrementSendCount atomically replaces the code hash, resets the
	// attempt budget and bumps the resend count, provided the challenge
	// is pending, unexpired and under its resend budget. Predicate
	// failures surface as sentinel.ErrExpired, sentinel.ErrLimitExceeded
	// or sentinel.ErrInvalidState.
	IncrementSendCount(ctx context.Context, id, newCodeHash string, now time.Time) (*models.OTPChallenge, error)

	// MarkExpired flips a pending challenge whose window has passed to
	// expired. A no-op for challenges that are terminal or still live.
	MarkExpired(ctx context.Context, id string, now time.Time) error

	// DeleteByID removes a challenge outright.
	DeleteByID(ctx context.Context, id string) error

	// DeleteExpired removes challenges whose window passed before now and
	// reports how many were swept.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
