package counter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"sesame/internal/ratelimit/models"
	"sesame/internal/sentinel"
)

// PostgresStore persists counters in PostgreSQL. The increment is a single
// upsert whose CASE expressions restart the window when the stored one has
// expired, so concurrent callers serialize on the row without explicit locks.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed counter store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Increment(ctx context.Context, key string, windowTTL time.Duration) (*models.Counter, error) {
	if key == "" {
		return nil, fmt.Errorf("counter key is required")
	}
	if windowTTL <= 0 {
		return nil, fmt.Errorf("counter window must be positive")
	}

	now := time.Now()
	expiresAt := now.Add(windowTTL)

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO rate_counters (key, count, window_start, expires_at)
		VALUES ($1, 1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET
			count        = CASE WHEN rate_counters.expires_at <= $2 THEN 1 ELSE rate_counters.count + 1 END,
			window_start = CASE WHEN rate_counters.expires_at <= $2 THEN $2 ELSE rate_counters.window_start END,
			expires_at   = CASE WHEN rate_counters.expires_at <= $2 THEN $3 ELSE rate_counters.expires_at END
		RETURNING count, window_start, expires_at
	`, key, now, expiresAt)

	out := &models.Counter{Key: key}
	if err := row.Scan(&out.Count, &out.WindowStart, &out.ExpiresAt); err != nil {
		return nil, fmt.Errorf("increment counter: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) (*models.Counter, error) {
	now := time.Now()
	row := s.db.QueryRowContext(ctx, `
		SELECT count, window_start, expires_at
		FROM rate_counters
		WHERE key = $1 AND expires_at > $2
	`, key, now)

	out := &models.Counter{Key: key}
	if err := row.Scan(&out.Count, &out.WindowStart, &out.ExpiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("counter %q: %w", key, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("get counter: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Reset(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM rate_counters WHERE key = $1`, key); err != nil {
		return fmt.Errorf("reset counter: %w", err)
	}
	return nil
}

// DeleteExpired removes counters whose window has ended. Postgres has no
// native TTL; the cleanup worker calls this for hygiene (correctness never
// depends on it - expiry is re-checked on every read).
func (s *PostgresStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rate_counters WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired counters: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired counters rows: %w", err)
	}
	return int(rows), nil
}
