package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"sesame/internal/challenge/models"
	identity "sesame/internal/identity/models"
	"sesame/internal/sentinel"
)

// PostgresStore persists challenges in PostgreSQL. Conditional updates rely
// on the affected-row count as the success signal, so the predicate and the
// write are one statement.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const challengeColumns = `
	id, identifier_hash, identifier_value, identifier_type, channel, intent,
	code_hash, expires_at, attempts, max_attempts, resend_count, max_resends,
	ip_hash, device_id, status, created_at, last_attempt_at
`

func (s *PostgresStore) Create(ctx context.Context, challenge *models.OTPChallenge) error {
	if challenge == nil || challenge.ID == "" {
		return fmt.Errorf("challenge id is required")
	}

	query := `
		INSERT INTO challenges (` + challengeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err := s.db.ExecContext(ctx, query,
		challenge.ID,
		challenge.IdentifierHash,
		challenge.IdentifierValue,
		string(challenge.IdentifierType),
		string(challenge.Channel),
		string(challenge.Intent),
		challenge.CodeHash,
		challenge.ExpiresAt,
		challenge.Attempts,
		challenge.MaxAttempts,
		challenge.ResendCount,
		challenge.MaxResends,
		nullString(challenge.IPHash),
		nullString(challenge.DeviceID),
		string(challenge.Status),
		challenge.CreatedAt,
		challenge.LastAttemptAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("challenge %q: %w", challenge.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("create challenge: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (*models.OTPChallenge, error) {
	query := `SELECT ` + challengeColumns + ` FROM challenges WHERE id = $1`

	challenge, err := scanChallenge(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("challenge %q: %w", id, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("get challenge: %w", err)
	}
	return challenge, nil
}

func (s *PostgresStore) GetActiveByIdentifier(ctx context.Context, identifierHash string, now time.Time) (*models.OTPChallenge, error) {
	query := `
		SELECT ` + challengeColumns + `
		FROM challenges
		WHERE identifier_hash = $1 AND status = 'pending' AND expires_at > $2
		ORDER BY created_at DESC
		LIMIT 1
	`
	challenge, err := scanChallenge(s.db.QueryRowContext(ctx, query, identifierHash, now))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("active challenge for identifier: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("get active challenge: %w", err)
	}
	return challenge, nil
}

func (s *PostgresStore) VerifyAndConsume(ctx context.Context, id, code string, now time.Time) (*models.OTPChallenge, bool, error) {
	// Step one: consume in a single conditional update.
	consume := `
		UPDATE challenges
		SET status = 'verified', attempts = attempts + 1, last_attempt_at = $3
		WHERE id = $1 AND status = 'pending' AND expires_at > $3 AND code_hash = $2
		RETURNING ` + challengeColumns

	challenge, err := scanChallenge(s.db.QueryRowContext(ctx, consume, id, models.HashCode(code), now))
	if err == nil {
		return challenge, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("consume challenge: %w", err)
	}

	// Step two: the consume failed, record the attempt while pending.
	record := `
		UPDATE challenges
		SET attempts = attempts + 1,
		    last_attempt_at = $2,
		    status = CASE WHEN attempts + 1 >= max_attempts THEN 'failed' ELSE status END
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + challengeColumns

	challenge, err = scanChallenge(s.db.QueryRowContext(ctx, record, id, now))
	if err == nil {
		return challenge, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("record challenge attempt: %w", err)
	}

	// Neither update matched: the challenge is terminal or absent.
	challenge, err = s.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return challenge, false, nil
}

func (s *PostgresStore) IncrementSendCount(ctx context.Context, id, newCodeHash string, now time.Time) (*models.OTPChallenge, error) {
	query := `
		UPDATE challenges
		SET resend_count = resend_count + 1, code_hash = $2, attempts = 0
		WHERE id = $1 AND status = 'pending' AND expires_at > $3 AND resend_count < max_resends
		RETURNING ` + challengeColumns

	challenge, err := scanChallenge(s.db.QueryRowContext(ctx, query, id, newCodeHash, now))
	if err == nil {
		return challenge, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("increment send count: %w", err)
	}

	// Classify the refusal from current state.
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return nil, resendPredicate(current, now)
}

func (s *PostgresStore) MarkExpired(ctx context.Context, id string, now time.Time) error {
	query := `
		UPDATE challenges
		SET status = 'expired'
		WHERE id = $1 AND status = 'pending' AND expires_at <= $2
	`
	if _, err := s.db.ExecContext(ctx, query, id, now); err != nil {
		return fmt.Errorf("mark challenge expired: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteByID(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM challenges WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete challenge: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete challenge: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("challenge %q: %w", id, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM challenges WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired challenges: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired challenges: %w", err)
	}
	return int(affected), nil
}

func scanChallenge(row *sql.Row) (*models.OTPChallenge, error) {
	var (
		challenge     models.OTPChallenge
		identType     string
		channel       string
		intent        string
		status        string
		ipHash        sql.NullString
		deviceID      sql.NullString
		lastAttemptAt sql.NullTime
	)

	err := row.Scan(
		&challenge.ID,
		&challenge.IdentifierHash,
		&challenge.IdentifierValue,
		&identType,
		&channel,
		&intent,
		&challenge.CodeHash,
		&challenge.ExpiresAt,
		&challenge.Attempts,
		&challenge.MaxAttempts,
		&challenge.ResendCount,
		&challenge.MaxResends,
		&ipHash,
		&deviceID,
		&status,
		&challenge.CreatedAt,
		&lastAttemptAt,
	)
	if err != nil {
		return nil, err
	}

	challenge.IdentifierType = identity.IdentifierType(identType)
	challenge.Channel = models.Channel(channel)
	challenge.Intent = models.Intent(intent)
	challenge.Status = models.Status(status)
	if ipHash.Valid {
		challenge.IPHash = ipHash.String
	}
	if deviceID.Valid {
		challenge.DeviceID = deviceID.String
	}
	if lastAttemptAt.Valid {
		t := lastAttemptAt.Time
		challenge.LastAttemptAt = &t
	}
	return &challenge, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
