package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"sesame/internal/denylist/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Add(ctx context.Context, entry *models.Entry) error {
	if entry == nil || entry.IdentifierHash == "" {
		return fmt.Errorf("identifier hash is required")
	}

	query := `
		INSERT INTO denylist_entries (identifier_hash, reason, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (identifier_hash)
		DO UPDATE SET reason = EXCLUDED.reason,
		              created_at = EXCLUDED.created_at,
		              expires_at = EXCLUDED.expires_at
	`
	_, err := s.db.ExecContext(ctx, query,
		entry.IdentifierHash,
		entry.Reason,
		entry.CreatedAt,
		entry.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("add denylist entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) Remove(ctx context.Context, identifierHash string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM denylist_entries WHERE identifier_hash = $1`, identifierHash)
	if err != nil {
		return fmt.Errorf("remove denylist entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsBlocked(ctx context.Context, identifierHash string, now time.Time) (*models.Entry, error) {
	query := `
		SELECT identifier_hash, reason, created_at, expires_at
		FROM denylist_entries
		WHERE identifier_hash = $1
	`
	entry, err := scanEntry(s.db.QueryRowContext(ctx, query, identifierHash))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("check denylist: %w", err)
	}

	if entry.Expired(now) {
		// Lazy eviction; a failed delete only delays the next one.
		_, _ = s.db.ExecContext(ctx,
			`DELETE FROM denylist_entries WHERE identifier_hash = $1 AND expires_at <= $2`,
			identifierHash, now)
		return nil, nil
	}
	return entry, nil
}

func (s *PostgresStore) List(ctx context.Context, limit int, now time.Time) ([]*models.Entry, error) {
	query := `
		SELECT identifier_hash, reason, created_at, expires_at
		FROM denylist_entries
		WHERE expires_at IS NULL OR expires_at > $1
		ORDER BY created_at DESC
	`
	args := []any{now}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list denylist: %w", err)
	}
	defer rows.Close()

	var entries []*models.Entry
	for rows.Next() {
		var (
			entry     models.Entry
			expiresAt sql.NullTime
		)
		if err := rows.Scan(&entry.IdentifierHash, &entry.Reason, &entry.CreatedAt, &expiresAt); err != nil {
			return nil, fmt.Errorf("scan denylist entry: %w", err)
		}
		if expiresAt.Valid {
			t := expiresAt.Time
			entry.ExpiresAt = &t
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM denylist_entries WHERE expires_at IS NOT NULL AND expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired denylist entries: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired denylist entries: %w", err)
	}
	return int(affected), nil
}

func scanEntry(row *sql.Row) (*models.Entry, error) {
	var (
		entry     models.Entry
		expiresAt sql.NullTime
	)
	if err := row.Scan(&entry.IdentifierHash, &entry.Reason, &entry.CreatedAt, &expiresAt); err != nil {
		return nil, err
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		entry.ExpiresAt = &t
	}
	return &entry, nil
}
