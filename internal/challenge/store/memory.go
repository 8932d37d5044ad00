package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sesame/internal/challenge/models"
	"sesame/internal/sentinel"
)

// InMemoryStore keeps challenges under a single mutex. The same
// pending-state predicates guard every mutation, so its observable
// semantics match the distributed implementations.
type InMemoryStore struct {
	mu         sync.Mutex
	challenges map[string]*models.OTPChallenge
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		challenges: make(map[string]*models.OTPChallenge),
	}
}

func (s *InMemoryStore) Create(_ context.Context, challenge *models.OTPChallenge) error {
	if challenge == nil || challenge.ID == "" {
		return fmt.Errorf("challenge id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.challenges[challenge.ID]; exists {
		return fmt.Errorf("challenge %q: %w", challenge.ID, sentinel.ErrConflict)
	}

	clone := *challenge
	s.challenges[challenge.ID] = &clone
	return nil
}

func (s *InMemoryStore) GetByID(_ context.Context, id string) (*models.OTPChallenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	challenge, ok := s.challenges[id]
	if !ok {
		return nil, fmt.Errorf("challenge %q: %w", id, sentinel.ErrNotFound)
	}
	clone := *challenge
	return &clone, nil
}

func (s *InMemoryStore) GetActiveByIdentifier(_ context.Context, identifierHash string, now time.Time) (*models.OTPChallenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest *models.OTPChallenge
	for _, challenge := range s.challenges {
		if challenge.IdentifierHash != identifierHash {
			continue
		}
		if challenge.Status != models.StatusPending || challenge.IsExpired(now) {
			continue
		}
		if latest == nil || challenge.CreatedAt.After(latest.CreatedAt) {
			latest = challenge
		}
	}

	if latest == nil {
		return nil, fmt.Errorf("active challenge for identifier: %w", sentinel.ErrNotFound)
	}
	clone := *latest
	return &clone, nil
}

func (s *InMemoryStore) VerifyAndConsume(_ context.Context, id, code string, now time.Time) (*models.OTPChallenge, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	challenge, ok := s.challenges[id]
	if !ok {
		return nil, false, fmt.Errorf("challenge %q: %w", id, sentinel.ErrNotFound)
	}

	// Step one: the consuming update. All conditions checked under the
	// same lock that applies the write.
	if challenge.Status == models.StatusPending &&
		!challenge.IsExpired(now) &&
		challenge.CodeHash == models.HashCode(code) {
		challenge.Status = models.StatusVerified
		challenge.Attempts++
		challenge.LastAttemptAt = &now

		clone := *challenge
		return &clone, true, nil
	}

	// Step two: record the failed attempt while the challenge is still
	// pending, exhausting it when the budget runs out.
	if challenge.Status == models.StatusPending {
		challenge.Attempts++
		challenge.LastAttemptAt = &now
		if challenge.Attempts >= challenge.MaxAttempts {
			challenge.Status = models.StatusFailed
		}
	}

	clone := *challenge
	return &clone, false, nil
}

func (s *InMemoryStore) IncrementSendCount(_ context.Context, id, newCodeHash string, now time.Time) (*models.OTPChallenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	challenge, ok := s.challenges[id]
	if !ok {
		return nil, fmt.Errorf("challenge %q: %w", id, sentinel.ErrNotFound)
	}

	if err := resendPredicate(challenge, now); err != nil {
		return nil, err
	}

	challenge.ResendCount++
	challenge.CodeHash = newCodeHash
	challenge.Attempts = 0

	clone := *challenge
	return &clone, nil
}

func (s *InMemoryStore) MarkExpired(_ context.Context, id string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	challenge, ok := s.challenges[id]
	if !ok {
		return fmt.Errorf("challenge %q: %w", id, sentinel.ErrNotFound)
	}

	if challenge.Status == models.StatusPending && challenge.IsExpired(now) {
		challenge.Status = models.StatusExpired
	}
	return nil
}

func (s *InMemoryStore) DeleteByID(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.challenges[id]; !ok {
		return fmt.Errorf("challenge %q: %w", id, sentinel.ErrNotFound)
	}
	delete(s.challenges, id)
	return nil
}

func (s *InMemoryStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for id, challenge := range s.challenges {
		if challenge.IsExpired(now) {
			delete(s.challenges, id)
			deleted++
		}
	}
	return deleted, nil
}

// resendPredicate classifies why a resend is not possible, or nil when it is.
func resendPredicate(challenge *models.OTPChallenge, now time.Time) error {
	if challenge.Status != models.StatusPending {
		return fmt.Errorf("challenge is %s: %w", challenge.Status, sentinel.ErrInvalidState)
	}
	if challenge.IsExpired(now) {
		return fmt.Errorf("challenge window passed: %w", sentinel.ErrExpired)
	}
	if challenge.ResendCount >= challenge.MaxResends {
		return fmt.Errorf("resend budget spent: %w", sentinel.ErrLimitExceeded)
	}
	return nil
}
