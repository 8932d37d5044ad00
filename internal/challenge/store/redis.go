package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"sesame/internal/challenge/models"
	"sesame/internal/sentinel"
)

const (
	challengeKeyPrefix  = "challenge:"
	identifierKeyPrefix = "challenge_ident:"

	// identifierIndexSlack keeps the per-identifier index alive slightly
	// longer than the challenges it points at, so lookups made right at
	// expiry still see the index and filter by state.
	identifierIndexSlack = time.Hour

	// maxActiveCandidates caps how many index entries one lookup scans.
	maxActiveCandidates = 20

	// maxTxRetries bounds how often a conditional update reruns after WATCH
	// detects a concurrent write to the same challenge. Every aborted round
	// means another caller committed, so the budget must cover the resend
	// budget's worth of back-to-back commits.
	maxTxRetries = 8
)

// RedisStore persists challenges as JSON values with a per-identifier
// sorted-set index ordered by creation time. Conditional updates run under
// WATCH so the state predicate and the write commit as one unit.
type RedisStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) challengeKey(id string) string {
	return challengeKeyPrefix + id
}

func (s *RedisStore) identifierKey(identifierHash string) string {
	return identifierKeyPrefix + identifierHash
}

func (s *RedisStore) Create(ctx context.Context, challenge *models.OTPChallenge) error {
	if challenge == nil || challenge.ID == "" {
		return fmt.Errorf("challenge id is required")
	}

	data, err := json.Marshal(challenge)
	if err != nil {
		return fmt.Errorf("marshal challenge: %w", err)
	}

	key := s.challengeKey(challenge.ID)
	ttl := time.Until(challenge.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("challenge already expired")
	}

	ok, err := s.client.SetNX(ctx, key, data, ttl).Result()
	if err != nil {
		return fmt.Errorf("create challenge: %w", err)
	}
	if !ok {
		return fmt.Errorf("challenge %q: %w", challenge.ID, sentinel.ErrConflict)
	}

	identKey := s.identifierKey(challenge.IdentifierHash)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, identKey, redis.Z{
			Score:  float64(challenge.CreatedAt.UnixNano()),
			Member: challenge.ID,
		})
		pipe.Expire(ctx, identKey, ttl+identifierIndexSlack)
		return nil
	})
	if err != nil {
		return fmt.Errorf("index challenge: %w", err)
	}
	return nil
}

func (s *RedisStore) GetByID(ctx context.Context, id string) (*models.OTPChallenge, error) {
	data, err := s.client.Get(ctx, s.challengeKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("challenge %q: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get challenge: %w", err)
	}

	var challenge models.OTPChallenge
	if err := json.Unmarshal([]byte(data), &challenge); err != nil {
		return nil, fmt.Errorf("unmarshal challenge: %w", err)
	}
	return &challenge, nil
}

func (s *RedisStore) GetActiveByIdentifier(ctx context.Context, identifierHash string, now time.Time) (*models.OTPChallenge, error) {
	ids, err := s.client.ZRevRange(ctx, s.identifierKey(identifierHash), 0, maxActiveCandidates-1).Result()
	if err != nil {
		return nil, fmt.Errorf("list challenges for identifier: %w", err)
	}

	for _, id := range ids {
		challenge, err := s.GetByID(ctx, id)
		if errors.Is(err, sentinel.ErrNotFound) {
			// Value expired out from under the index; drop the entry.
			s.client.ZRem(ctx, s.identifierKey(identifierHash), id)
			continue
		}
		if err != nil {
			return nil, err
		}
		if challenge.Status == models.StatusPending && !challenge.IsExpired(now) {
			return challenge, nil
		}
	}

	return nil, fmt.Errorf("active challenge for identifier: %w", sentinel.ErrNotFound)
}

func (s *RedisStore) VerifyAndConsume(ctx context.Context, id, code string, now time.Time) (*models.OTPChallenge, bool, error) {
	var (
		result   *models.OTPChallenge
		verified bool
	)

	err := s.execute(ctx, id, func(challenge *models.OTPChallenge) bool {
		// The callback can rerun when WATCH detects interference; reset
		// captured state so a stale pass cannot leak through.
		verified = false
		result = nil

		// Step one: the consuming update.
		if challenge.Status == models.StatusPending &&
			!challenge.IsExpired(now) &&
			challenge.CodeHash == models.HashCode(code) {
			challenge.Status = models.StatusVerified
			challenge.Attempts++
			challenge.LastAttemptAt = &now
			verified = true
			result = challenge
			return true
		}

		// Step two: record the failed attempt on a pending challenge.
		result = challenge
		if challenge.Status != models.StatusPending {
			return false
		}
		challenge.Attempts++
		challenge.LastAttemptAt = &now
		if challenge.Attempts >= challenge.MaxAttempts {
			challenge.Status = models.StatusFailed
		}
		return true
	})
	if err != nil {
		return nil, false, err
	}

	clone := *result
	return &clone, verified, nil
}

func (s *RedisStore) IncrementSendCount(ctx context.Context, id, newCodeHash string, now time.Time) (*models.OTPChallenge, error) {
	var (
		result  *models.OTPChallenge
		refused error
	)

	err := s.execute(ctx, id, func(challenge *models.OTPChallenge) bool {
		refused = nil
		if err := resendPredicate(challenge, now); err != nil {
			refused = err
			return false
		}
		challenge.ResendCount++
		challenge.CodeHash = newCodeHash
		challenge.Attempts = 0
		result = challenge
		return true
	})
	if err != nil {
		return nil, err
	}
	if refused != nil {
		return nil, refused
	}

	clone := *result
	return &clone, nil
}

func (s *RedisStore) MarkExpired(ctx context.Context, id string, now time.Time) error {
	err := s.execute(ctx, id, func(challenge *models.OTPChallenge) bool {
		if challenge.Status == models.StatusPending && challenge.IsExpired(now) {
			challenge.Status = models.StatusExpired
			return true
		}
		return false
	})
	// The value may have already been evicted by its TTL; expiry is then
	// a fact, not an error.
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil
	}
	return err
}

func (s *RedisStore) DeleteByID(ctx context.Context, id string) error {
	deleted, err := s.client.Del(ctx, s.challengeKey(id)).Result()
	if err != nil {
		return fmt.Errorf("delete challenge: %w", err)
	}
	if deleted == 0 {
		return fmt.Errorf("challenge %q: %w", id, sentinel.ErrNotFound)
	}
	return nil
}

// DeleteExpired is a no-op for Redis: values carry their window as a TTL
// and the engine evicts them. Index entries are dropped lazily on lookup.
func (s *RedisStore) DeleteExpired(_ context.Context, _ time.Time) (int, error) {
	return 0, nil
}

// execute runs a conditional read-modify-write on one challenge under
// WATCH. Watch does not retry on its own: a concurrent write to the key
// aborts the transaction with redis.TxFailedErr, so the loop reruns the
// callback against the fresh state until it commits or the budget runs out.
// The mutate callback returns false to skip the write; the read state still
// reaches the caller through whatever the callback captured.
func (s *RedisStore) execute(ctx context.Context, id string, mutate func(*models.OTPChallenge) bool) error {
	key := s.challengeKey(id)

	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := s.watchOnce(ctx, key, id, mutate)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("challenge %q: transaction contention persisted after %d attempts", id, maxTxRetries)
}

func (s *RedisStore) watchOnce(ctx context.Context, key, id string, mutate func(*models.OTPChallenge) bool) error {
	return s.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("challenge %q: %w", id, sentinel.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("get challenge for update: %w", err)
		}

		var challenge models.OTPChallenge
		if err := json.Unmarshal([]byte(data), &challenge); err != nil {
			return fmt.Errorf("unmarshal challenge: %w", err)
		}

		if !mutate(&challenge) {
			return nil
		}

		newData, err := json.Marshal(&challenge)
		if err != nil {
			return fmt.Errorf("marshal challenge: %w", err)
		}

		ttl, err := tx.PTTL(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("read challenge ttl: %w", err)
		}
		if ttl <= 0 {
			ttl = time.Until(challenge.ExpiresAt)
			if ttl <= 0 {
				ttl = time.Minute
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, newData, ttl)
			return nil
		})
		return err
	}, key)
}
