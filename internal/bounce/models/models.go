// Package models holds delivery-feedback records and events.
package models

import "time"

// FeedbackType discriminates provider feedback events.
type FeedbackType string

const (
	FeedbackBounce    FeedbackType = "bounce"
	FeedbackComplaint FeedbackType = "complaint"
)

// BounceType classifies a bounce. Only permanent bounces count toward
// auto-denylisting.
type BounceType string

const (
	BouncePermanent BounceType = "permanent"
	BounceTransient BounceType = "transient"
)

// Event is one delivery-feedback notification from the comm provider's
// webhook collaborator. A single event may cover several recipients.
type Event struct {
	Type          FeedbackType `json:"type"`
	BounceType    BounceType   `json:"bounceType,omitempty"`
	ComplaintType string       `json:"complaintType,omitempty"`
	MessageID     string       `json:"messageId"`
	Recipients    []string     `json:"recipients"`
	Timestamp     time.Time    `json:"timestamp"`
}

// BounceRecord is one recipient's bounce, append-only.
// Field names are part of the persisted format and must round-trip exactly.
type BounceRecord struct {
	IdentifierHash string     `json:"identifierHash"`
	Identifier     string     `json:"identifier"`
	BounceType     BounceType `json:"bounceType"`
	MessageID      string     `json:"messageId"`
	Timestamp      time.Time  `json:"timestamp"`
}

// ComplaintRecord is one recipient's spam complaint, append-only.
type ComplaintRecord struct {
	IdentifierHash string    `json:"identifierHash"`
	Identifier     string    `json:"identifier"`
	ComplaintType  string    `json:"complaintType"`
	MessageID      string    `json:"messageId"`
	Timestamp      time.Time `json:"timestamp"`
}
