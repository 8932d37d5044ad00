// Package store persists the append-only delivery-feedback audit trail.
package store

import (
	"context"

	"sesame/internal/bounce/models"
)

type Store interface {
	// RecordBounce appends a bounce record.
	RecordBounce(ctx context.Context, record *models.BounceRecord) error

	// RecordComplaint appends a complaint record.
	RecordComplaint(ctx context.Context, record *models.ComplaintRecord) error

	// GetBounceCount counts bounces of the given type for an identifier
	// hash. An empty bounceType counts all bounces.
	GetBounceCount(ctx context.Context, identifierHash string, bounceType models.BounceType) (int, error)

	// GetComplaintCount counts complaints for an identifier hash.
	GetComplaintCount(ctx context.Context, identifierHash string) (int, error)

	// GetLastBounce returns the most recent bounce for the hash, or nil.
	GetLastBounce(ctx context.Context, identifierHash string) (*models.BounceRecord, error)

	// GetLastComplaint returns the most recent complaint for the hash, or nil.
	GetLastComplaint(ctx context.Context, identifierHash string) (*models.ComplaintRecord, error)
}
