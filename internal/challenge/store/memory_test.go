package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"sesame/internal/challenge/models"
	identity "sesame/internal/identity/models"
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
	s.store = NewInMemory()
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = context.Background()
}

func (s *InMemoryStoreSuite) newChallenge(code string) *models.OTPChallenge {
	id, err := identity.NewIdentifier("user@example.com")
	s.Require().NoError(err)
	return models.New(id, models.ChannelEmail, models.IntentLogin, code, models.DefaultOTPTTL, s.now)
}

func (s *InMemoryStoreSuite) TestCreate() {
	challenge := s.newChallenge("482913")
	s.Require().NoError(s.store.Create(s.ctx, challenge))

	s.Run("duplicate id is rejected not overwritten", func() {
		dup := *challenge
		dup.CodeHash = models.HashCode("999999")
		err := s.store.Create(s.ctx, &dup)
		s.ErrorIs(err, sentinel.ErrConflict)

		stored, err := s.store.GetByID(s.ctx, challenge.ID)
		s.Require().NoError(err)
		s.Equal(models.HashCode("482913"), stored.CodeHash)
	})
}

func (s *InMemoryStoreSuite) TestGetActiveByIdentifier() {
	s.Run("empty store yields not found", func() {
		_, err := s.store.GetActiveByIdentifier(s.ctx, "anything", s.now)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	first := s.newChallenge("111111")
	s.Require().NoError(s.store.Create(s.ctx, first))

	second := s.newChallenge("222222")
	second.CreatedAt = s.now.Add(time.Minute)
	second.ExpiresAt = second.CreatedAt.Add(models.DefaultOTPTTL)
	s.Require().NoError(s.store.Create(s.ctx, second))

	s.Run("most recent pending challenge wins", func() {
		active, err := s.store.GetActiveByIdentifier(s.ctx, first.IdentifierHash, s.now.Add(2*time.Minute))
		s.Require().NoError(err)
		s.Equal(second.ID, active.ID)
	})

	s.Run("terminal challenges are skipped", func() {
		_, verified, err := s.store.VerifyAndConsume(s.ctx, second.ID, "222222", s.now.Add(2*time.Minute))
		s.Require().NoError(err)
		s.Require().True(verified)

		active, err := s.store.GetActiveByIdentifier(s.ctx, first.IdentifierHash, s.now.Add(2*time.Minute))
		s.Require().NoError(err)
		s.Equal(first.ID, active.ID)
	})

	s.Run("expired challenges are skipped", func() {
		_, err := s.store.GetActiveByIdentifier(s.ctx, first.IdentifierHash, s.now.Add(time.Hour))
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemoryStoreSuite) TestVerifyAndConsume() {
	s.Run("unknown id", func() {
		_, _, err := s.store.VerifyAndConsume(s.ctx, "nope", "482913", s.now)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	challenge := s.newChallenge("482913")
	s.Require().NoError(s.store.Create(s.ctx, challenge))

	s.Run("wrong code records the attempt", func() {
		got, verified, err := s.store.VerifyAndConsume(s.ctx, challenge.ID, "000000", s.now)
		s.Require().NoError(err)
		s.False(verified)
		s.Equal(1, got.Attempts)
		s.Equal(models.StatusPending, got.Status)
		s.NotNil(got.LastAttemptAt)
	})

	s.Run("right code consumes", func() {
		got, verified, err := s.store.VerifyAndConsume(s.ctx, challenge.ID, "482913", s.now)
		s.Require().NoError(err)
		s.True(verified)
		s.Equal(models.StatusVerified, got.Status)
		s.Equal(2, got.Attempts)
	})

	s.Run("replay of the right code fails without mutation", func() {
		got, verified, err := s.store.VerifyAndConsume(s.ctx, challenge.ID, "482913", s.now)
		s.Require().NoError(err)
		s.False(verified)
		s.Equal(models.StatusVerified, got.Status)
		s.Equal(2, got.Attempts)
	})
}

func (s *InMemoryStoreSuite) TestVerifyAndConsumeExhaustion() {
	challenge := s.newChallenge("482913")
	s.Require().NoError(s.store.Create(s.ctx, challenge))

	for i := 1; i <= challenge.MaxAttempts; i++ {
		got, verified, err := s.store.VerifyAndConsume(s.ctx, challenge.ID, "000000", s.now)
		s.Require().NoError(err)
		s.False(verified)
		s.Equal(i, got.Attempts)
	}

	got, err := s.store.GetByID(s.ctx, challenge.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusFailed, got.Status)

	s.Run("the right code cannot rescue a failed challenge", func() {
		got, verified, err := s.store.VerifyAndConsume(s.ctx, challenge.ID, "482913", s.now)
		s.Require().NoError(err)
		s.False(verified)
		s.Equal(models.StatusFailed, got.Status)
	})
}

func (s *InMemoryStoreSuite) TestVerifyAndConsumeExpired() {
	challenge := s.newChallenge("482913")
	s.Require().NoError(s.store.Create(s.ctx, challenge))

	late := challenge.ExpiresAt.Add(time.Second)
	got, verified, err := s.store.VerifyAndConsume(s.ctx, challenge.ID, "482913", late)
	s.Require().NoError(err)
	s.False(verified, "the right code after expiry must not consume")
	s.Equal(1, got.Attempts, "the attempt is still recorded while pending")
}

func (s *InMemoryStoreSuite) TestVerifyAndConsumeSingleWinner() {
	challenge := s.newChallenge("482913")
	s.Require().NoError(s.store.Create(s.ctx, challenge))

	const goroutines = 32
	trues, falses, errs := testutil.RunConcurrentBools(goroutines, func(int) (bool, error) {
		_, verified, err := s.store.VerifyAndConsume(context.Background(), challenge.ID, "482913", s.now)
		return verified, err
	})

	s.Empty(errs)
	s.Equal(int32(1), trues, "exactly one concurrent caller may win")
	s.Equal(int32(goroutines-1), falses)

	got, err := s.store.GetByID(s.ctx, challenge.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusVerified, got.Status)
}

func (s *InMemoryStoreSuite) TestIncrementSendCount() {
	challenge := s.newChallenge("482913")
	s.Require().NoError(s.store.Create(s.ctx, challenge))

	s.Run("swaps code and resets attempts", func() {
		_, _, err := s.store.VerifyAndConsume(s.ctx, challenge.ID, "000000", s.now)
		s.Require().NoError(err)

		newHash := models.HashCode("175349")
		got, err := s.store.IncrementSendCount(s.ctx, challenge.ID, newHash, s.now)
		s.Require().NoError(err)
		s.Equal(1, got.ResendCount)
		s.Equal(newHash, got.CodeHash)
		s.Zero(got.Attempts)
	})

	s.Run("resend budget is enforced", func() {
		var lastErr error
		for i := 0; i < models.DefaultMaxResends+1; i++ {
			_, lastErr = s.store.IncrementSendCount(s.ctx, challenge.ID, models.HashCode("888888"), s.now)
		}
		s.ErrorIs(lastErr, sentinel.ErrLimitExceeded)
	})

	s.Run("expired challenge refuses resend", func() {
		fresh := s.newChallenge("333333")
		s.Require().NoError(s.store.Create(s.ctx, fresh))
		_, err := s.store.IncrementSendCount(s.ctx, fresh.ID, models.HashCode("444444"), fresh.ExpiresAt)
		s.ErrorIs(err, sentinel.ErrExpired)
	})

	s.Run("terminal challenge refuses resend", func() {
		fresh := s.newChallenge("555555")
		s.Require().NoError(s.store.Create(s.ctx, fresh))
		_, verified, err := s.store.VerifyAndConsume(s.ctx, fresh.ID, "555555", s.now)
		s.Require().NoError(err)
		s.Require().True(verified)

		_, err = s.store.IncrementSendCount(s.ctx, fresh.ID, models.HashCode("666666"), s.now)
		s.ErrorIs(err, sentinel.ErrInvalidState)
	})
}

func (s *InMemoryStoreSuite) TestMarkExpired() {
	challenge := s.newChallenge("482913")
	s.Require().NoError(s.store.Create(s.ctx, challenge))

	s.Run("live challenge is untouched", func() {
		s.Require().NoError(s.store.MarkExpired(s.ctx, challenge.ID, s.now))
		got, err := s.store.GetByID(s.ctx, challenge.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusPending, got.Status)
	})

	s.Run("past the window the status flips", func() {
		s.Require().NoError(s.store.MarkExpired(s.ctx, challenge.ID, challenge.ExpiresAt))
		got, err := s.store.GetByID(s.ctx, challenge.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusExpired, got.Status)
	})
}

func (s *InMemoryStoreSuite) TestDeleteExpired() {
	live := s.newChallenge("111111")
	live.ExpiresAt = s.now.Add(time.Hour)
	s.Require().NoError(s.store.Create(s.ctx, live))

	stale := s.newChallenge("222222")
	s.Require().NoError(s.store.Create(s.ctx, stale))

	swept, err := s.store.DeleteExpired(s.ctx, stale.ExpiresAt.Add(time.Second))
	s.Require().NoError(err)
	s.Equal(1, swept)

	_, err = s.store.GetByID(s.ctx, stale.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.GetByID(s.ctx, live.ID)
	s.NoError(err)
}

func (s *InMemoryStoreSuite) TestDeleteByID() {
	s.Run("unknown id", func() {
		s.ErrorIs(s.store.DeleteByID(s.ctx, "nope"), sentinel.ErrNotFound)
	})

	challenge := s.newChallenge("482913")
	s.Require().NoError(s.store.Create(s.ctx, challenge))
	s.Require().NoError(s.store.DeleteByID(s.ctx, challenge.ID))
	_, err := s.store.GetByID(s.ctx, challenge.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}
