package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"sesame/internal/bounce/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) RecordBounce(ctx context.Context, record *models.BounceRecord) error {
	if record == nil || record.IdentifierHash == "" {
		return fmt.Errorf("identifier hash is required")
	}

	query := `
		INSERT INTO bounce_records (identifier_hash, identifier, bounce_type, message_id, received_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.ExecContext(ctx, query,
		record.IdentifierHash,
		record.Identifier,
		string(record.BounceType),
		record.MessageID,
		record.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("record bounce: %w", err)
	}
	return nil
}

func (s *PostgresStore) RecordComplaint(ctx context.Context, record *models.ComplaintRecord) error {
	if record == nil || record.IdentifierHash == "" {
		return fmt.Errorf("identifier hash is required")
	}

	query := `
		INSERT INTO complaint_records (identifier_hash, identifier, complaint_type, message_id, received_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.ExecContext(ctx, query,
		record.IdentifierHash,
		record.Identifier,
		record.ComplaintType,
		record.MessageID,
		record.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("record complaint: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetBounceCount(ctx context.Context, identifierHash string, bounceType models.BounceType) (int, error) {
	query := `SELECT COUNT(*) FROM bounce_records WHERE identifier_hash = $1`
	args := []any{identifierHash}
	if bounceType != "" {
		query += ` AND bounce_type = $2`
		args = append(args, string(bounceType))
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count bounces: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) GetComplaintCount(ctx context.Context, identifierHash string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM complaint_records WHERE identifier_hash = $1`,
		identifierHash,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count complaints: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) GetLastBounce(ctx context.Context, identifierHash string) (*models.BounceRecord, error) {
	query := `
		SELECT identifier_hash, identifier, bounce_type, message_id, received_at
		FROM bounce_records
		WHERE identifier_hash = $1
		ORDER BY received_at DESC
		LIMIT 1
	`
	var (
		record     models.BounceRecord
		bounceType string
	)
	err := s.db.QueryRowContext(ctx, query, identifierHash).Scan(
		&record.IdentifierHash,
		&record.Identifier,
		&bounceType,
		&record.MessageID,
		&record.Timestamp,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get last bounce: %w", err)
	}
	record.BounceType = models.BounceType(bounceType)
	return &record, nil
}

func (s *PostgresStore) GetLastComplaint(ctx context.Context, identifierHash string) (*models.ComplaintRecord, error) {
	query := `
		SELECT identifier_hash, identifier, complaint_type, message_id, received_at
		FROM complaint_records
		WHERE identifier_hash = $1
		ORDER BY received_at DESC
		LIMIT 1
	`
	var record models.ComplaintRecord
	err := s.db.QueryRowContext(ctx, query, identifierHash).Scan(
		&record.IdentifierHash,
		&record.Identifier,
		&record.ComplaintType,
		&record.MessageID,
		&record.Timestamp,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get last complaint: %w", err)
	}
	return &record, nil
}
