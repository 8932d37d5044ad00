// Package store defines denylist persistence. Entries are keyed by
// identifier hash; an expired entry reads as not blocked and is evicted
// lazily on the next lookup.
package store

import (
	"context"
	"time"

	"sesame/internal/denylist/models"
)

type Store interface {
	// Add upserts an entry; re-blocking an already blocked hash replaces
	// the reason and expiry.
	Add(ctx context.Context, entry *models.Entry) error

	// Remove deletes an entry. Removing an absent hash is not an error.
	Remove(ctx context.Context, identifierHash string) error

	// IsBlocked returns the live entry for a hash, or nil when the hash
	// is unknown or its entry has expired.
	IsBlocked(ctx context.Context, identifierHash string, now time.Time) (*models.Entry, error)

	// List returns up to limit live entries, newest first.
	List(ctx context.Context, limit int, now time.Time) ([]*models.Entry, error)

	// DeleteExpired removes entries whose expiry has passed and reports how
	// many were swept. Backends that expire entries on their own may report
	// zero.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
