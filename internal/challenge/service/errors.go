package service

import (
	"time"

	dErrors "sesame/pkg/domain-errors"
)

// User-facing messages stay generic so a caller cannot tell which control
// rejected a request or whether an identifier exists.
const (
	msgRequestRefused  = "request cannot be processed right now"
	msgCodeInvalid     = "code is invalid or expired"
	msgCaptchaRequired = "captcha verification required"
)

// RateLimitError decorates the domain code with the retry window.
type RateLimitError struct {
	ResetAt    time.Time
	RetryAfter int
	err        error
}

func newRateLimitError(resetAt time.Time, retryAfter int) *RateLimitError {
	return &RateLimitError{
		ResetAt:    resetAt,
		RetryAfter: retryAfter,
		err:        dErrors.New(dErrors.CodeRateLimited, msgRequestRefused),
	}
}

func (e *RateLimitError) Error() string {
	return e.err.Error()
}

func (e *RateLimitError) Unwrap() error {
	return e.err
}

// BlockedError decorates the domain code with the block classification for
// internal consumers; its message never reaches past the generic copy.
type BlockedError struct {
	Source string
	Reason string
	err    error
}

func newBlockedError(source, reason string) *BlockedError {
	return &BlockedError{
		Source: source,
		Reason: reason,
		err:    dErrors.New(dErrors.CodeBlocked, msgRequestRefused),
	}
}

func (e *BlockedError) Error() string {
	return e.err.Error()
}

func (e *BlockedError) Unwrap() error {
	return e.err
}
