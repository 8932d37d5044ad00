// Package models holds denylist entries and check results.
package models

import "time"

// Source tells a caller which mechanism blocked an identifier.
type Source string

const (
	SourceInternal        Source = "internal"
	SourceDisposableEmail Source = "disposable_email"
)

// Entry is one hash-keyed block. Permanent unless ExpiresAt is set.
// Field names are part of the persisted format and must round-trip exactly.
type Entry struct {
	IdentifierHash string     `json:"identifierHash"`
	Reason         string     `json:"reason"`
	CreatedAt      time.Time  `json:"createdAt"`
	ExpiresAt      *time.Time `json:"expiresAt,omitempty"`
}

// Expired reports whether a time-bounded entry has lapsed.
func (e *Entry) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && !now.Before(*e.ExpiresAt)
}

// CheckResult is the outcome of a denylist lookup.
type CheckResult struct {
	Blocked bool   `json:"blocked"`
	Source  Source `json:"source,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// Allowed is the zero-value pass result.
func Allowed() *CheckResult {
	return &CheckResult{}
}

// BlockedBy builds a blocking result.
func BlockedBy(source Source, reason string) *CheckResult {
	return &CheckResult{Blocked: true, Source: source, Reason: reason}
}
