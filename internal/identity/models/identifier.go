// Package models holds the identity value objects shared by the challenge
// engine: normalized identifiers and device fingerprints.
package models

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	dErrors "sesame/pkg/domain-errors"
)

// IdentifierType classifies an identifier as a phone number or email address.
type IdentifierType string

const (
	IdentifierTypePhone IdentifierType = "phone"
	IdentifierTypeEmail IdentifierType = "email"
)

func (t IdentifierType) IsValid() bool {
	return t == IdentifierTypePhone || t == IdentifierTypeEmail
}

// Identifier is the normalized subject of authentication: a lower-cased email
// address or an E.164 phone number. It is immutable, created on every
// normalization call, and never persisted on its own - the hash is the only
// form that reaches storage keys.
type Identifier struct {
	Value string         `json:"value"`
	Type  IdentifierType `json:"type"`
	Hash  string         `json:"hash"`
}

var (
	// loosePhoneShape matches inputs that are plausibly phone numbers:
	// optional leading +, then digits with common separators.
	loosePhoneShape = regexp.MustCompile(`^\+?[0-9][0-9().\-\s]{4,19}$`)

	// permissiveEmail accepts anything with a local part, an @, and a dotted
	// domain. Deliverability is the message sender's problem, not ours.
	permissiveEmail = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

	nonDigits = regexp.MustCompile(`[^0-9]`)
)

// NewIdentifier trims and classifies the input, normalizes it, and derives
// the storage hash. Phone-shaped input must normalize to a valid E.164
// number; everything else must pass the permissive email check.
func NewIdentifier(input string) (Identifier, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return Identifier{}, dErrors.New(dErrors.CodeValidation, "identifier cannot be empty")
	}

	if loosePhoneShape.MatchString(trimmed) {
		normalized, err := normalizePhone(trimmed)
		if err != nil {
			return Identifier{}, err
		}
		return newIdentifier(normalized, IdentifierTypePhone), nil
	}

	lowered := strings.ToLower(trimmed)
	if !permissiveEmail.MatchString(lowered) {
		return Identifier{}, dErrors.New(dErrors.CodeValidation, "identifier is not a valid email or phone number")
	}
	return newIdentifier(lowered, IdentifierTypeEmail), nil
}

func newIdentifier(value string, typ IdentifierType) Identifier {
	return Identifier{
		Value: value,
		Type:  typ,
		Hash:  HashValue(value),
	}
}

// normalizePhone converts a loose phone shape to E.164: separators stripped,
// international 00 prefix folded into +, and the digit count bounded per
// E.164 (country code required, at most 15 digits).
func normalizePhone(raw string) (string, error) {
	hasPlus := strings.HasPrefix(raw, "+")
	digits := nonDigits.ReplaceAllString(raw, "")

	if !hasPlus && strings.HasPrefix(digits, "00") {
		digits = digits[2:]
		hasPlus = true
	}
	if !hasPlus {
		return "", dErrors.New(dErrors.CodeValidation, "phone number must include a country code")
	}
	if len(digits) < 7 || len(digits) > 15 {
		return "", dErrors.New(dErrors.CodeValidation, "phone number is not a valid E.164 number")
	}
	if digits[0] == '0' {
		return "", dErrors.New(dErrors.CodeValidation, "phone number country code cannot start with zero")
	}
	return "+" + digits, nil
}

// Equals reports value equality: two identifiers are equal iff value and type match.
func (i Identifier) Equals(other Identifier) bool {
	return i.Value == other.Value && i.Type == other.Type
}

// IsEmail reports whether the identifier is an email address.
func (i Identifier) IsEmail() bool {
	return i.Type == IdentifierTypeEmail
}

// EmailDomain returns the domain part of an email identifier, lower-cased.
// Returns "" for phone identifiers.
func (i Identifier) EmailDomain() string {
	if !i.IsEmail() {
		return ""
	}
	at := strings.LastIndex(i.Value, "@")
	if at < 0 {
		return ""
	}
	return i.Value[at+1:]
}

// HashValue returns the hex SHA-256 digest used for storage keys, so that
// raw identifiers never land in counters, denylists, or challenge records.
func HashValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
