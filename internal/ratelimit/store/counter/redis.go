package counter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"sesame/internal/ratelimit/models"
	"sesame/internal/sentinel"
)

const redisKeyPrefix = "counter:"

// RedisStore implements Store on Redis INCR with key TTL as the window
// boundary. This is the production-recommended implementation for
// distributed deployments: INCR is atomic server-side, and window expiry is
// delegated to Redis key expiration.
type RedisStore struct {
	client redis.Cmdable
}

// NewRedis constructs a Redis-backed counter store.
func NewRedis(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) key(key string) string {
	return redisKeyPrefix + key
}

func (s *RedisStore) Increment(ctx context.Context, key string, windowTTL time.Duration) (*models.Counter, error) {
	if key == "" {
		return nil, fmt.Errorf("counter key is required")
	}
	if windowTTL <= 0 {
		return nil, fmt.Errorf("counter window must be positive")
	}

	rkey := s.key(key)
	now := time.Now()

	count, err := s.client.Incr(ctx, rkey).Result()
	if err != nil {
		return nil, fmt.Errorf("increment counter: %w", err)
	}

	ttl := windowTTL
	if count == 1 {
		// First hit of a new window: attach the window TTL.
		if err := s.client.Expire(ctx, rkey, windowTTL).Err(); err != nil {
			return nil, fmt.Errorf("set counter expiry: %w", err)
		}
	} else {
		remaining, err := s.client.PTTL(ctx, rkey).Result()
		if err != nil {
			return nil, fmt.Errorf("read counter ttl: %w", err)
		}
		if remaining > 0 {
			ttl = remaining
		} else {
			// The key lost its TTL (e.g. a crash between INCR and EXPIRE).
			// Re-attach rather than letting the window live forever.
			if err := s.client.Expire(ctx, rkey, windowTTL).Err(); err != nil {
				return nil, fmt.Errorf("repair counter expiry: %w", err)
			}
		}
	}

	expiresAt := now.Add(ttl)
	return &models.Counter{
		Key:         key,
		Count:       int(count),
		WindowStart: expiresAt.Add(-windowTTL),
		ExpiresAt:   expiresAt,
	}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (*models.Counter, error) {
	rkey := s.key(key)

	count, err := s.client.Get(ctx, rkey).Int()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("counter %q: %w", key, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get counter: %w", err)
	}

	remaining, err := s.client.PTTL(ctx, rkey).Result()
	if err != nil {
		return nil, fmt.Errorf("read counter ttl: %w", err)
	}

	now := time.Now()
	expiresAt := now.Add(remaining)
	if remaining < 0 {
		expiresAt = now
	}
	return &models.Counter{
		Key:       key,
		Count:     count,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *RedisStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("reset counter: %w", err)
	}
	return nil
}
