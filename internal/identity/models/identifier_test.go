package models

import (
	"testing"

	"github.com/stretchr/testify/suite"

	dErrors "sesame/pkg/domain-errors"
)

type IdentifierSuite struct {
	suite.Suite
}

func TestIdentifierSuite(t *testing.T) {
	suite.Run(t, new(IdentifierSuite))
}

func (s *IdentifierSuite) TestEmailNormalization() {
	s.Run("trims and lower-cases", func() {
		id, err := NewIdentifier("USER@Example.com ")
		s.Require().NoError(err)
		s.Equal("user@example.com", id.Value)
		s.Equal(IdentifierTypeEmail, id.Type)
	})

	s.Run("hash is sha256 of normalized value", func() {
		id, err := NewIdentifier("USER@Example.com")
		s.Require().NoError(err)
		s.Equal(HashValue("user@example.com"), id.Hash)
		s.Len(id.Hash, 64)
	})

	s.Run("rejects missing domain dot", func() {
		_, err := NewIdentifier("user@localhost")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects embedded whitespace", func() {
		_, err := NewIdentifier("us er@example.com")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *IdentifierSuite) TestPhoneNormalization() {
	s.Run("normalizes separators to E.164", func() {
		id, err := NewIdentifier("+1 202 555 1234")
		s.Require().NoError(err)
		s.Equal("+12025551234", id.Value)
		s.Equal(IdentifierTypePhone, id.Type)
	})

	s.Run("accepts punctuation-heavy input", func() {
		id, err := NewIdentifier("+1 (202) 555-1234")
		s.Require().NoError(err)
		s.Equal("+12025551234", id.Value)
	})

	s.Run("folds 00 international prefix", func() {
		id, err := NewIdentifier("0044 20 7946 0958")
		s.Require().NoError(err)
		s.Equal("+442079460958", id.Value)
	})

	s.Run("rejects phone without country code", func() {
		_, err := NewIdentifier("202 555 1234")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects too many digits", func() {
		_, err := NewIdentifier("+1234567890123456")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *IdentifierSuite) TestEquality() {
	a, err := NewIdentifier("user@example.com")
	s.Require().NoError(err)
	b, err := NewIdentifier("USER@EXAMPLE.COM")
	s.Require().NoError(err)

	s.True(a.Equals(b), "equality holds after normalization")

	c, err := NewIdentifier("other@example.com")
	s.Require().NoError(err)
	s.False(a.Equals(c))
}

func (s *IdentifierSuite) TestEmailDomain() {
	id, err := NewIdentifier("user@MAILINATOR.com")
	s.Require().NoError(err)
	s.Equal("mailinator.com", id.EmailDomain())

	phone, err := NewIdentifier("+12025551234")
	s.Require().NoError(err)
	s.Equal("", phone.EmailDomain())
}

func (s *IdentifierSuite) TestEmptyInput() {
	_, err := NewIdentifier("   ")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}
