package domainerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
)

// DomainErrorsSuite tests the domain error primitives.
//
// Justification: these primitives sit at every trust boundary; the tests pin
// invariants like "wrapped domain errors preserve the original code" and
// "errors.Is matches by code".
type DomainErrorsSuite struct {
	suite.Suite
}

func TestDomainErrorsSuite(t *testing.T) {
	suite.Run(t, new(DomainErrorsSuite))
}

func (s *DomainErrorsSuite) TestErrorInterface() {
	s.Run("returns message when present", func() {
		err := &Error{Code: CodeNotFound, Message: "challenge not found"}
		s.Equal("challenge not found", err.Error())
	})

	s.Run("returns code when message is empty", func() {
		err := &Error{Code: CodeRateLimited}
		s.Equal("rate_limit_exceeded", err.Error())
	})
}

func (s *DomainErrorsSuite) TestUnwrap() {
	s.Run("returns wrapped error", func() {
		inner := errors.New("redis connection refused")
		err := &Error{Code: CodeInternal, Message: "store error", Err: inner}
		s.Equal(inner, err.Unwrap())
	})

	s.Run("works with errors.Unwrap", func() {
		inner := errors.New("root cause")
		err := &Error{Code: CodeInternal, Err: inner}
		s.Equal(inner, errors.Unwrap(err))
	})
}

func (s *DomainErrorsSuite) TestIsMatching() {
	s.Run("matches by code only", func() {
		err1 := &Error{Code: CodeBlocked, Message: "identifier blocked"}
		err2 := &Error{Code: CodeBlocked, Message: "domain blocked"}
		s.True(errors.Is(err1, err2))
	})

	s.Run("does not match different codes", func() {
		s.False(errors.Is(New(CodeChallengeExpired, ""), New(CodeChallengeExhausted, "")))
	})
}

func (s *DomainErrorsSuite) TestWrapPreservesCode() {
	s.Run("wrapping a domain error keeps its code", func() {
		inner := New(CodeVerificationFailed, "code mismatch")
		wrapped := Wrap(inner, CodeInternal, "verify failed")
		s.True(HasCode(wrapped, CodeVerificationFailed))
		s.False(HasCode(wrapped, CodeInternal))
	})

	s.Run("wrapping a plain error applies the new code", func() {
		wrapped := Wrap(errors.New("timeout"), CodeUnavailable, "store unavailable")
		s.True(HasCode(wrapped, CodeUnavailable))
	})
}

func (s *DomainErrorsSuite) TestHasCode() {
	s.Run("nil error has no code", func() {
		s.False(HasCode(nil, CodeNotFound))
	})

	s.Run("plain error has no code", func() {
		s.False(HasCode(errors.New("boom"), CodeNotFound))
	})
}
