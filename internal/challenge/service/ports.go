package service

import (
	"context"

	"sesame/internal/challenge/models"
)

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

// Message is the channel-agnostic outbound payload. Transport-specific
// formatting belongs to the sender, not to this engine.
type Message struct {
	To        string
	Channel   models.Channel
	Subject   string
	Body      string
	Variables map[string]string
}

// SendResult is the sender's delivery outcome.
type SendResult struct {
	Success   bool
	MessageID string
	Error     string
}

// MessageSender is the outbound comm collaborator.
type MessageSender interface {
	Send(ctx context.Context, msg *Message) (*SendResult, error)
}

// CaptchaVerifier validates CAPTCHA tokens when the abuse detector demands
// a challenge step.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) (bool, error)
}
