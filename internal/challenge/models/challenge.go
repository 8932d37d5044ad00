// Package models holds the challenge entity and its state machine.
package models

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	identity "sesame/internal/identity/models"
)

// Channel is the delivery transport for a challenge.
type Channel string

const (
	ChannelSMS      Channel = "sms"
	ChannelEmail    Channel = "email"
	ChannelWhatsApp Channel = "whatsapp"
)

func (c Channel) IsValid() bool {
	switch c {
	case ChannelSMS, ChannelEmail, ChannelWhatsApp:
		return true
	}
	return false
}

// Intent is the purpose a challenge was started for.
type Intent string

const (
	IntentLogin         Intent = "login"
	IntentBind          Intent = "bind"
	IntentVerifyContact Intent = "verifyContact"
)

func (i Intent) IsValid() bool {
	switch i {
	case IntentLogin, IntentBind, IntentVerifyContact:
		return true
	}
	return false
}

// Status is the challenge lifecycle state. Transitions only move forward:
// pending is the sole non-terminal state.
type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusFailed   Status = "failed"
	StatusExpired  Status = "expired"
)

func (s Status) Terminal() bool {
	return s != StatusPending
}

const (
	DefaultMaxAttempts = 3
	DefaultMaxResends  = 5

	DefaultOTPTTL       = 5 * time.Minute
	DefaultMagicLinkTTL = 15 * time.Minute
)

// OTPChallenge is one verification attempt window for an identifier. The
// raw code never lives on the entity, only its SHA-256 hash. Field names
// are part of the persisted format and must round-trip exactly.
type OTPChallenge struct {
	ID              string                  `json:"id"`
	IdentifierHash  string                  `json:"identifierHash"`
	IdentifierValue string                  `json:"identifierValue"`
	IdentifierType  identity.IdentifierType `json:"identifierType"`
	Channel         Channel                 `json:"channel"`
	Intent          Intent                  `json:"intent"`
	CodeHash        string                  `json:"codeHash"`
	ExpiresAt       time.Time               `json:"expiresAt"`
	Attempts        int                     `json:"attempts"`
	MaxAttempts     int                     `json:"maxAttempts"`
	ResendCount     int                     `json:"resendCount"`
	MaxResends      int                     `json:"maxResends"`
	IPHash          string                  `json:"ipHash,omitempty"`
	DeviceID        string                  `json:"deviceId,omitempty"`
	Status          Status                  `json:"status"`
	CreatedAt       time.Time               `json:"createdAt"`
	LastAttemptAt   *time.Time              `json:"lastAttemptAt,omitempty"`
}

// New creates a pending challenge for an identifier with a freshly hashed
// code and validity window.
func New(identifier identity.Identifier, channel Channel, intent Intent, code string, ttl time.Duration, now time.Time) *OTPChallenge {
	return &OTPChallenge{
		ID:              uuid.NewString(),
		IdentifierHash:  identifier.Hash,
		IdentifierValue: identifier.Value,
		IdentifierType:  identifier.Type,
		Channel:         channel,
		Intent:          intent,
		CodeHash:        HashCode(code),
		ExpiresAt:       now.Add(ttl),
		MaxAttempts:     DefaultMaxAttempts,
		MaxResends:      DefaultMaxResends,
		Status:          StatusPending,
		CreatedAt:       now,
	}
}

// HashCode returns the hex SHA-256 digest of a raw code.
func HashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// IsExpired reports whether the validity window has passed.
func (c *OTPChallenge) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// CanAttempt reports whether a verify call could still succeed.
func (c *OTPChallenge) CanAttempt(now time.Time) bool {
	return c.Status == StatusPending && c.Attempts < c.MaxAttempts && !c.IsExpired(now)
}

// CanResend reports whether the challenge may be re-issued with a new code.
func (c *OTPChallenge) CanResend(now time.Time) bool {
	return c.Status == StatusPending && c.ResendCount < c.MaxResends && !c.IsExpired(now)
}

// Verify consumes one attempt against the given code. Every call on a
// pending challenge stamps lastAttemptAt, even the ones refused for expiry
// or exhaustion, so a wrong code still moves the entity toward exhaustion
// and the audit trail sees every try. Terminal states always return false.
func (c *OTPChallenge) Verify(code string, now time.Time) bool {
	if c.Status.Terminal() {
		return false
	}

	c.LastAttemptAt = &now
	if c.IsExpired(now) {
		c.Status = StatusExpired
		return false
	}
	if c.Attempts >= c.MaxAttempts {
		c.Status = StatusFailed
		return false
	}

	c.Attempts++

	if subtle.ConstantTimeCompare([]byte(HashCode(code)), []byte(c.CodeHash)) == 1 {
		c.Status = StatusVerified
		return true
	}

	if c.Attempts >= c.MaxAttempts {
		c.Status = StatusFailed
	}
	return false
}

// Resend replaces the code and resets the attempt budget. Returns false
// without mutating anything once the resend budget is spent, the window has
// passed, or the challenge is terminal.
func (c *OTPChallenge) Resend(newCode string, now time.Time) bool {
	if !c.CanResend(now) {
		return false
	}

	c.ResendCount++
	c.CodeHash = HashCode(newCode)
	c.Attempts = 0
	return true
}
