package store

import (
	"context"
	"fmt"
	"sync"

	"sesame/internal/bounce/models"
)

type InMemoryStore struct {
	mu         sync.Mutex
	bounces    map[string][]*models.BounceRecord
	complaints map[string][]*models.ComplaintRecord
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		bounces:    make(map[string][]*models.BounceRecord),
		complaints: make(map[string][]*models.ComplaintRecord),
	}
}

func (s *InMemoryStore) RecordBounce(_ context.Context, record *models.BounceRecord) error {
	if record == nil || record.IdentifierHash == "" {
		return fmt.Errorf("identifier hash is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *record
	s.bounces[record.IdentifierHash] = append(s.bounces[record.IdentifierHash], &clone)
	return nil
}

func (s *InMemoryStore) RecordComplaint(_ context.Context, record *models.ComplaintRecord) error {
	if record == nil || record.IdentifierHash == "" {
		return fmt.Errorf("identifier hash is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *record
	s.complaints[record.IdentifierHash] = append(s.complaints[record.IdentifierHash], &clone)
	return nil
}

func (s *InMemoryStore) GetBounceCount(_ context.Context, identifierHash string, bounceType models.BounceType) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if bounceType == "" {
		return len(s.bounces[identifierHash]), nil
	}

	count := 0
	for _, record := range s.bounces[identifierHash] {
		if record.BounceType == bounceType {
			count++
		}
	}
	return count, nil
}

func (s *InMemoryStore) GetComplaintCount(_ context.Context, identifierHash string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.complaints[identifierHash]), nil
}

func (s *InMemoryStore) GetLastBounce(_ context.Context, identifierHash string) (*models.BounceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.bounces[identifierHash]
	if len(records) == 0 {
		return nil, nil
	}

	last := records[0]
	for _, record := range records[1:] {
		if record.Timestamp.After(last.Timestamp) {
			last = record
		}
	}
	clone := *last
	return &clone, nil
}

func (s *InMemoryStore) GetLastComplaint(_ context.Context, identifierHash string) (*models.ComplaintRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.complaints[identifierHash]
	if len(records) == 0 {
		return nil, nil
	}

	last := records[0]
	for _, record := range records[1:] {
		if record.Timestamp.After(last.Timestamp) {
			last = record
		}
	}
	clone := *last
	return &clone, nil
}
