package models

import (
	"time"
)

// Scope is the dimension a rate limit or abuse signal is keyed on.
type Scope string

const (
	ScopeIdentifier Scope = "identifier"
	ScopeIP         Scope = "ip"
	ScopeGlobal     Scope = "global"
)

func (s Scope) IsValid() bool {
	switch s {
	case ScopeIdentifier, ScopeIP, ScopeGlobal:
		return true
	}
	return false
}

// Rule defines fixed-window limit parameters for a scope.
type Rule struct {
	MaxAttempts int
	Window      time.Duration
}

// Counter is one fixed window of request volume for a scope+subject.
// Field names are part of the persisted format and must round-trip exactly.
type Counter struct {
	Key         string    `json:"key"`
	Count       int       `json:"count"`
	WindowStart time.Time `json:"windowStart"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Expired reports whether the counter's window has ended.
func (c *Counter) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Result is the outcome of a rate limit check.
type Result struct {
	Allowed    bool      `json:"allowed"`
	Scope      Scope     `json:"scope"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"resetAt"`
	RetryAfter int       `json:"retryAfter,omitempty"` // seconds, only set when not allowed
}

// RetryAfterSeconds calculates seconds until retry is allowed.
func RetryAfterSeconds(allowed bool, resetAt, now time.Time) int {
	if allowed {
		return 0
	}
	seconds := int(resetAt.Sub(now).Seconds())
	if seconds < 0 {
		return 0
	}
	return seconds
}

// Combine merges two per-scope results into the overall decision: allowed
// only if both pass, ResetAt is the later of the two, Remaining the lesser.
// The scope of the combined result is the scope that denied (or the more
// restrictive one when both allow).
func Combine(a, b *Result) *Result {
	combined := &Result{
		Allowed: a.Allowed && b.Allowed,
	}

	restrictive := a
	if !b.Allowed && a.Allowed {
		restrictive = b
	} else if a.Allowed == b.Allowed && b.Remaining < a.Remaining {
		restrictive = b
	}
	combined.Scope = restrictive.Scope
	combined.Limit = restrictive.Limit

	combined.Remaining = a.Remaining
	if b.Remaining < combined.Remaining {
		combined.Remaining = b.Remaining
	}

	combined.ResetAt = a.ResetAt
	if b.ResetAt.After(combined.ResetAt) {
		combined.ResetAt = b.ResetAt
	}

	if !combined.Allowed {
		combined.RetryAfter = a.RetryAfter
		if b.RetryAfter > combined.RetryAfter {
			combined.RetryAfter = b.RetryAfter
		}
	}
	return combined
}
