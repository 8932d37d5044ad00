package counter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"sesame/internal/sentinel"
	"sesame/pkg/testutil"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	now   time.Time
	ctx   context.Context
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.store = NewInMemory().WithClock(func() time.Time { return s.now })
	s.ctx = context.Background()
}

func (s *InMemoryStoreSuite) TestIncrement() {
	s.Run("first increment starts a window", func() {
		c, err := s.store.Increment(s.ctx, "id:abc", time.Hour)
		s.Require().NoError(err)
		s.Equal(1, c.Count)
		s.Equal(s.now, c.WindowStart)
		s.Equal(s.now.Add(time.Hour), c.ExpiresAt)
	})

	s.Run("subsequent increments keep the window", func() {
		c, err := s.store.Increment(s.ctx, "id:abc", time.Hour)
		s.Require().NoError(err)
		s.Equal(2, c.Count)
		s.Equal(s.now.Add(time.Hour), c.ExpiresAt)
	})

	s.Run("expired window restarts at one", func() {
		s.now = s.now.Add(2 * time.Hour)
		c, err := s.store.Increment(s.ctx, "id:abc", time.Hour)
		s.Require().NoError(err)
		s.Equal(1, c.Count)
		s.Equal(s.now, c.WindowStart)
	})

	s.Run("rejects empty key and non-positive window", func() {
		_, err := s.store.Increment(s.ctx, "", time.Hour)
		s.Error(err)
		_, err = s.store.Increment(s.ctx, "k", 0)
		s.Error(err)
	})
}

func (s *InMemoryStoreSuite) TestGet() {
	s.Run("missing counter is not found", func() {
		_, err := s.store.Get(s.ctx, "missing")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("live counter is returned", func() {
		_, err := s.store.Increment(s.ctx, "ip:1", 30*time.Minute)
		s.Require().NoError(err)
		c, err := s.store.Get(s.ctx, "ip:1")
		s.Require().NoError(err)
		s.Equal(1, c.Count)
	})

	s.Run("expired counter is evicted on read", func() {
		_, err := s.store.Increment(s.ctx, "ip:2", time.Minute)
		s.Require().NoError(err)
		s.now = s.now.Add(2 * time.Minute)
		_, err = s.store.Get(s.ctx, "ip:2")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemoryStoreSuite) TestReset() {
	_, err := s.store.Increment(s.ctx, "id:reset", time.Hour)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Reset(s.ctx, "id:reset"))
	_, err = s.store.Get(s.ctx, "id:reset")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestConcurrentIncrements() {
	store := NewInMemory()
	const goroutines = 64

	res := testutil.RunConcurrent(goroutines, func(int) error {
		_, err := store.Increment(context.Background(), "hot", time.Hour)
		return err
	})
	s.Equal(int32(goroutines), res.Successes)

	c, err := store.Get(context.Background(), "hot")
	s.Require().NoError(err)
	s.Equal(goroutines, c.Count, "every concurrent increment must be observed")
}
