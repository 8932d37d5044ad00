package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type ModelsSuite struct {
	suite.Suite
	now time.Time
}

func TestModelsSuite(t *testing.T) {
	suite.Run(t, new(ModelsSuite))
}

func (s *ModelsSuite) SetupTest() {
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func (s *ModelsSuite) TestCounterExpired() {
	c := &Counter{ExpiresAt: s.now.Add(time.Minute)}
	s.False(c.Expired(s.now))
	s.True(c.Expired(s.now.Add(time.Minute)), "expiry instant itself is expired")
	s.True(c.Expired(s.now.Add(2*time.Minute)))
}

func (s *ModelsSuite) TestCombine() {
	s.Run("both allowed keeps the tighter budget", func() {
		a := &Result{Allowed: true, Scope: ScopeIdentifier, Limit: 5, Remaining: 2, ResetAt: s.now.Add(time.Hour)}
		b := &Result{Allowed: true, Scope: ScopeIP, Limit: 10, Remaining: 7, ResetAt: s.now.Add(30 * time.Minute)}

		combined := Combine(a, b)
		s.True(combined.Allowed)
		s.Equal(ScopeIdentifier, combined.Scope)
		s.Equal(2, combined.Remaining)
		s.Equal(s.now.Add(time.Hour), combined.ResetAt, "later reset wins")
	})

	s.Run("a single denial denies the whole decision", func() {
		a := &Result{Allowed: true, Scope: ScopeIdentifier, Limit: 5, Remaining: 1, ResetAt: s.now.Add(10 * time.Minute)}
		b := &Result{Allowed: false, Scope: ScopeIP, Limit: 10, Remaining: 0, ResetAt: s.now.Add(45 * time.Minute), RetryAfter: 2700}

		combined := Combine(a, b)
		s.False(combined.Allowed)
		s.Equal(ScopeIP, combined.Scope, "denying scope is reported")
		s.Equal(0, combined.Remaining)
		s.Equal(s.now.Add(45*time.Minute), combined.ResetAt)
		s.Equal(2700, combined.RetryAfter)
	})
}

func (s *ModelsSuite) TestRetryAfterSeconds() {
	s.Zero(RetryAfterSeconds(true, s.now.Add(time.Hour), s.now))
	s.Equal(3600, RetryAfterSeconds(false, s.now.Add(time.Hour), s.now))
	s.Zero(RetryAfterSeconds(false, s.now.Add(-time.Minute), s.now), "past reset clamps to zero")
}
