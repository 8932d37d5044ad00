package counter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sesame/internal/ratelimit/models"
	"sesame/internal/sentinel"
)

// InMemoryStore implements Store with a mutex-guarded map. Suitable for
// single-process deployments and tests; distributed deployments should use
// the Redis or Postgres store.
type InMemoryStore struct {
	mu       sync.Mutex
	counters map[string]*models.Counter
	clock    func() time.Time
}

// NewInMemory creates a new in-memory counter store.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		counters: make(map[string]*models.Counter),
		clock:    time.Now,
	}
}

// WithClock overrides the time source. Test hook.
func (s *InMemoryStore) WithClock(clock func() time.Time) *InMemoryStore {
	s.clock = clock
	return s
}

func (s *InMemoryStore) Increment(_ context.Context, key string, windowTTL time.Duration) (*models.Counter, error) {
	if key == "" {
		return nil, fmt.Errorf("counter key is required")
	}
	if windowTTL <= 0 {
		return nil, fmt.Errorf("counter window must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	existing, ok := s.counters[key]
	if !ok || existing.Expired(now) {
		fresh := &models.Counter{
			Key:         key,
			Count:       1,
			WindowStart: now,
			ExpiresAt:   now.Add(windowTTL),
		}
		s.counters[key] = fresh
		return snapshot(fresh), nil
	}

	existing.Count++
	return snapshot(existing), nil
}

func (s *InMemoryStore) Get(_ context.Context, key string) (*models.Counter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.counters[key]
	if !ok {
		return nil, fmt.Errorf("counter %q: %w", key, sentinel.ErrNotFound)
	}
	now := s.clock()
	if existing.Expired(now) {
		// Expiry is checked on read; evict lazily.
		delete(s.counters, key)
		return nil, fmt.Errorf("counter %q: %w", key, sentinel.ErrNotFound)
	}
	return snapshot(existing), nil
}

func (s *InMemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.counters, key)
	return nil
}

// DeleteExpired removes every counter whose window has ended and reports how
// many were swept.
func (s *InMemoryStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for key, c := range s.counters {
		if c.Expired(now) {
			delete(s.counters, key)
			deleted++
		}
	}
	return deleted, nil
}

// snapshot copies a counter so callers never share the stored pointer.
func snapshot(c *models.Counter) *models.Counter {
	out := *c
	return &out
}
