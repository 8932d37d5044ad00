package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"sesame/internal/denylist/models"
)

const (
	entryKeyPrefix = "denylist:"
	indexKey       = "denylist_index"
)

// RedisStore keeps entries as JSON values with their optional expiry as the
// value TTL, plus a sorted-set index ordered by creation time for listing.
type RedisStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) key(identifierHash string) string {
	return entryKeyPrefix + identifierHash
}

func (s *RedisStore) Add(ctx context.Context, entry *models.Entry) error {
	if entry == nil || entry.IdentifierHash == "" {
		return fmt.Errorf("identifier hash is required")
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal denylist entry: %w", err)
	}

	var ttl time.Duration
	if entry.ExpiresAt != nil {
		ttl = time.Until(*entry.ExpiresAt)
		if ttl <= 0 {
			return fmt.Errorf("denylist entry already expired")
		}
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(entry.IdentifierHash), data, ttl)
		pipe.ZAdd(ctx, indexKey, redis.Z{
			Score:  float64(entry.CreatedAt.UnixNano()),
			Member: entry.IdentifierHash,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("add denylist entry: %w", err)
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context, identifierHash string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(identifierHash))
		pipe.ZRem(ctx, indexKey, identifierHash)
		return nil
	})
	if err != nil {
		return fmt.Errorf("remove denylist entry: %w", err)
	}
	return nil
}

func (s *RedisStore) IsBlocked(ctx context.Context, identifierHash string, now time.Time) (*models.Entry, error) {
	data, err := s.client.Get(ctx, s.key(identifierHash)).Result()
	if errors.Is(err, redis.Nil) {
		// Evicted or never present; drop any stale index entry.
		s.client.ZRem(ctx, indexKey, identifierHash)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("check denylist: %w", err)
	}

	var entry models.Entry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		return nil, fmt.Errorf("unmarshal denylist entry: %w", err)
	}
	if entry.Expired(now) {
		s.Remove(ctx, identifierHash)
		return nil, nil
	}
	return &entry, nil
}

func (s *RedisStore) List(ctx context.Context, limit int, now time.Time) ([]*models.Entry, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}

	hashes, err := s.client.ZRevRange(ctx, indexKey, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("list denylist: %w", err)
	}

	entries := make([]*models.Entry, 0, len(hashes))
	for _, hash := range hashes {
		entry, err := s.IsBlocked(ctx, hash, now)
		if err != nil {
			return nil, err
		}
		if entry != nil {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// DeleteExpired walks the index and prunes members whose value key has been
// evicted by its TTL. The values themselves expire without a sweep.
func (s *RedisStore) DeleteExpired(ctx context.Context, _ time.Time) (int, error) {
	hashes, err := s.client.ZRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("sweep denylist index: %w", err)
	}

	pruned := 0
	for _, hash := range hashes {
		exists, err := s.client.Exists(ctx, s.key(hash)).Result()
		if err != nil {
			return pruned, fmt.Errorf("sweep denylist index: %w", err)
		}
		if exists == 0 {
			if err := s.client.ZRem(ctx, indexKey, hash).Err(); err != nil {
				return pruned, fmt.Errorf("sweep denylist index: %w", err)
			}
			pruned++
		}
	}
	return pruned, nil
}
