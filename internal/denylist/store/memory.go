package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"sesame/internal/denylist/models"
)

type InMemoryStore struct {
	mu      sync.Mutex
	entries map[string]*models.Entry
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		entries: make(map[string]*models.Entry),
	}
}

func (s *InMemoryStore) Add(_ context.Context, entry *models.Entry) error {
	if entry == nil || entry.IdentifierHash == "" {
		return fmt.Errorf("identifier hash is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *entry
	s.entries[entry.IdentifierHash] = &clone
	return nil
}

func (s *InMemoryStore) Remove(_ context.Context, identifierHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, identifierHash)
	return nil
}

func (s *InMemoryStore) IsBlocked(_ context.Context, identifierHash string, now time.Time) (*models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[identifierHash]
	if !ok {
		return nil, nil
	}
	if entry.Expired(now) {
		delete(s.entries, identifierHash)
		return nil, nil
	}

	clone := *entry
	return &clone, nil
}

func (s *InMemoryStore) List(_ context.Context, limit int, now time.Time) ([]*models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	live := make([]*models.Entry, 0, len(s.entries))
	for hash, entry := range s.entries {
		if entry.Expired(now) {
			delete(s.entries, hash)
			continue
		}
		clone := *entry
		live = append(live, &clone)
	}

	sort.Slice(live, func(i, j int) bool {
		return live[i].CreatedAt.After(live[j].CreatedAt)
	})

	if limit > 0 && len(live) > limit {
		live = live[:limit]
	}
	return live, nil
}

func (s *InMemoryStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for hash, entry := range s.entries {
		if entry.Expired(now) {
			delete(s.entries, hash)
			deleted++
		}
	}
	return deleted, nil
}
