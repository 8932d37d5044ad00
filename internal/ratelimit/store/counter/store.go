// Package counter provides the atomic increment-with-expiry primitive
// consumed by rate limiting and abuse scoring. Every implementation must
// express Increment as a single atomic read-modify-write: concurrent callers
// racing on the same key must each observe a distinct count.
package counter

import (
	"context"
	"time"

	"sesame/internal/ratelimit/models"
)

// Store is the counter store contract.
//
// Error contract: Get returns an error wrapping sentinel.ErrNotFound when no
// live counter exists for the key; infrastructure failures are returned
// wrapped with context.
type Store interface {
	// Increment atomically bumps the fixed-window counter for key. When no
	// counter exists, or the existing window has expired, a new window is
	// started with count 1 and the given TTL.
	Increment(ctx context.Context, key string, windowTTL time.Duration) (*models.Counter, error)

	// Get returns the current counter without mutating it.
	Get(ctx context.Context, key string) (*models.Counter, error)

	// Reset removes the counter for key.
	Reset(ctx context.Context, key string) error
}
