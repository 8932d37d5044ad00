// Package service orchestrates the challenge lifecycle: issuance behind the
// denylist, abuse and rate limit gates, verification through the store's
// atomic consume protocol, and resends against the challenge's budgets.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"sesame/internal/abuse"
	"sesame/internal/challenge/magiclink"
	"sesame/internal/challenge/metrics"
	"sesame/internal/challenge/models"
	"sesame/internal/challenge/store"
	denylist "sesame/internal/denylist/service"
	identity "sesame/internal/identity/models"
	"sesame/internal/platform/privacy"
	"sesame/internal/platform/tracer"
	rlmodels "sesame/internal/ratelimit/models"
	ratelimit "sesame/internal/ratelimit/service"
	"sesame/internal/sentinel"
	dErrors "sesame/pkg/domain-errors"
	"sesame/pkg/validation"
)

// DeliveryMethod selects how the challenge secret reaches the user.
type DeliveryMethod string

const (
	MethodOTP       DeliveryMethod = "otp"
	MethodMagicLink DeliveryMethod = "magic_link"
)

type Service struct {
	challenges store.Store
	limiter    *ratelimit.Service
	detector   *abuse.Detector
	denylist   *denylist.Service
	sender     MessageSender

	links   *magiclink.Issuer
	captcha CaptchaVerifier

	logger  *slog.Logger
	metrics *metrics.Recorder
	tracer  tracer.Tracer
	clock   func() time.Time

	otpTTL time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(recorder *metrics.Recorder) Option {
	return func(s *Service) {
		s.metrics = recorder
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

// WithMagicLinks enables the magic link delivery method.
func WithMagicLinks(issuer *magiclink.Issuer) Option {
	return func(s *Service) {
		s.links = issuer
	}
}

// WithCaptcha wires the CAPTCHA collaborator consulted when the abuse
// detector asks for a challenge step.
func WithCaptcha(verifier CaptchaVerifier) Option {
	return func(s *Service) {
		s.captcha = verifier
	}
}

func WithOTPTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.otpTTL = ttl
	}
}

func New(
	challenges store.Store,
	limiter *ratelimit.Service,
	detector *abuse.Detector,
	dl *denylist.Service,
	sender MessageSender,
	opts ...Option,
) (*Service, error) {
	if challenges == nil {
		return nil, fmt.Errorf("challenge store is required")
	}
	if limiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}
	if detector == nil {
		return nil, fmt.Errorf("abuse detector is required")
	}
	if dl == nil {
		return nil, fmt.Errorf("denylist service is required")
	}
	if sender == nil {
		return nil, fmt.Errorf("message sender is required")
	}

	svc := &Service{
		challenges: challenges,
		limiter:    limiter,
		detector:   detector,
		denylist:   dl,
		sender:     sender,
		tracer:     tracer.Noop(),
		clock:      time.Now,
		otpTTL:     models.DefaultOTPTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

type StartRequest struct {
	Identifier   string         `validate:"required,notblank"`
	Channel      models.Channel `validate:"required"`
	Intent       models.Intent  `validate:"required"`
	Method       DeliveryMethod
	IP           string `validate:"required,notblank"`
	UserAgent    string
	GeoCountry   string
	DeviceID     string
	CaptchaToken string
}

type StartResult struct {
	ChallengeID string
	Channel     models.Channel
	Intent      models.Intent
	Method      DeliveryMethod
	ExpiresAt   time.Time
	MessageID   string
}

// Start runs the issuance gauntlet: normalize, denylist, abuse score,
// CAPTCHA when demanded, rate limits, then create and send.
func (s *Service) Start(ctx context.Context, req *StartRequest) (*StartResult, error) {
	ctx, span := s.tracer.Start(ctx, "challenge.start",
		tracer.String("channel", string(req.Channel)),
		tracer.String("intent", string(req.Intent)),
	)
	var opErr error
	defer func() { span.End(opErr) }()

	if err := s.validateStart(req); err != nil {
		opErr = err
		return nil, err
	}

	identifier, err := identity.NewIdentifier(req.Identifier)
	if err != nil {
		opErr = dErrors.Wrap(err, dErrors.CodeValidation, "identifier format not recognized")
		return nil, opErr
	}
	if err := s.checkChannelFit(identifier, req.Channel); err != nil {
		opErr = err
		return nil, err
	}

	check, err := s.denylist.CheckIdentifier(ctx, identifier)
	if err != nil {
		opErr = err
		return nil, err
	}
	if check.Blocked {
		s.audit(ctx, "challenge_start_denied", "cause", "denylist", "source", check.Source)
		opErr = newBlockedError(string(check.Source), check.Reason)
		return nil, opErr
	}

	assessment, err := s.detector.Check(ctx, abuse.Input{
		IdentifierHash: identifier.Hash,
		IP:             req.IP,
		UserAgent:      req.UserAgent,
		GeoCountry:     req.GeoCountry,
	})
	if err != nil {
		opErr = err
		return nil, err
	}
	switch assessment.Action {
	case abuse.ActionBlock:
		s.audit(ctx, "challenge_start_denied", "cause", "abuse_score", "risk_score", assessment.RiskScore)
		opErr = newBlockedError("abuse", "risk score above block threshold")
		return nil, opErr
	case abuse.ActionChallenge:
		if err := s.requireCaptcha(ctx, req); err != nil {
			opErr = err
			return nil, err
		}
	}

	limit, err := s.limiter.AllowStart(ctx, identifier.Hash, req.IP)
	if err != nil {
		opErr = err
		return nil, err
	}
	if !limit.Allowed {
		opErr = newRateLimitError(limit.ResetAt, limit.RetryAfter)
		return nil, opErr
	}

	method := req.Method
	if method == "" {
		method = MethodOTP
	}

	secret, ttl, err := s.newSecret(method)
	if err != nil {
		opErr = err
		return nil, err
	}

	now := s.clock()
	challenge := models.New(identifier, req.Channel, req.Intent, secret, ttl, now)
	challenge.IPHash = identity.HashValue(req.IP)
	challenge.DeviceID = req.DeviceID

	if err := s.challenges.Create(ctx, challenge); err != nil {
		opErr = dErrors.Wrap(err, dErrors.CodeInternal, "failed to create challenge")
		return nil, opErr
	}

	msg, err := s.composeMessage(identifier, challenge, method, secret)
	if err != nil {
		opErr = err
		return nil, err
	}

	sendResult, err := s.sender.Send(ctx, msg)
	if err != nil || !sendResult.Success {
		if s.metrics != nil {
			s.metrics.RecordSendFailure()
		}
		// The challenge stays; a resend can still deliver it.
		opErr = dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to deliver challenge message")
		return nil, opErr
	}

	if s.metrics != nil {
		s.metrics.RecordStart(string(req.Channel), string(method))
	}
	s.audit(ctx, "challenge_started",
		"challenge_id", challenge.ID,
		"channel", req.Channel,
		"intent", req.Intent,
		"method", method,
		"ip", privacy.AnonymizeIP(req.IP),
	)
	span.SetAttributes(tracer.String("challenge_id", challenge.ID))

	return &StartResult{
		ChallengeID: challenge.ID,
		Channel:     challenge.Channel,
		Intent:      challenge.Intent,
		Method:      method,
		ExpiresAt:   challenge.ExpiresAt,
		MessageID:   sendResult.MessageID,
	}, nil
}

type VerifyRequest struct {
	ChallengeID string
	Identifier  string
	Code        string `validate:"required,notblank"`
}

type VerifyResult struct {
	ChallengeID     string
	IdentifierHash  string
	IdentifierValue string
	Intent          models.Intent
	VerifiedAt      time.Time
}

// Verify consumes a challenge with a numeric code, addressed either by
// challenge id or by identifier (most recent active challenge).
func (s *Service) Verify(ctx context.Context, req *VerifyRequest) (*VerifyResult, error) {
	ctx, span := s.tracer.Start(ctx, "challenge.verify")
	var opErr error
	defer func() { span.End(opErr) }()

	if err := validation.Validate(req); err != nil {
		opErr = err
		return nil, err
	}

	challengeID, err := s.resolveChallengeID(ctx, req.ChallengeID, req.Identifier)
	if err != nil {
		opErr = err
		return nil, err
	}

	result, err := s.consume(ctx, challengeID, req.Code)
	opErr = err
	return result, err
}

// VerifyLink consumes a challenge through its magic link token.
func (s *Service) VerifyLink(ctx context.Context, token string) (*VerifyResult, error) {
	ctx, span := s.tracer.Start(ctx, "challenge.verify_link")
	var opErr error
	defer func() { span.End(opErr) }()

	if s.links == nil {
		opErr = dErrors.New(dErrors.CodeValidation, "magic links are not enabled")
		return nil, opErr
	}

	claims, err := s.links.Parse(token)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordVerify(metrics.OutcomeMismatch)
		}
		opErr = err
		return nil, err
	}

	result, err := s.consume(ctx, claims.ChallengeID, claims.Nonce)
	opErr = err
	return result, err
}

// consume runs the store's atomic verify-and-consume and folds its outcome
// into the error taxonomy.
func (s *Service) consume(ctx context.Context, challengeID, code string) (*VerifyResult, error) {
	now := s.clock()

	challenge, verified, err := s.challenges.VerifyAndConsume(ctx, challengeID, code, now)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.recordVerify(metrics.OutcomeNotFound)
			return nil, dErrors.New(dErrors.CodeNotFound, msgCodeInvalid)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify challenge")
	}

	if verified {
		// A consumed identifier gets its issuance budget back.
		if err := s.limiter.Reset(ctx, rlmodels.ScopeIdentifier, challenge.IdentifierHash); err != nil {
			s.audit(ctx, "rate_limit_reset_failed", "challenge_id", challenge.ID)
		}

		s.recordVerify(metrics.OutcomeVerified)
		s.audit(ctx, "challenge_verified",
			"challenge_id", challenge.ID,
			"intent", challenge.Intent,
			"attempts", challenge.Attempts,
		)
		return &VerifyResult{
			ChallengeID:     challenge.ID,
			IdentifierHash:  challenge.IdentifierHash,
			IdentifierValue: challenge.IdentifierValue,
			Intent:          challenge.Intent,
			VerifiedAt:      now,
		}, nil
	}

	switch {
	case challenge.Status == models.StatusExpired,
		challenge.Status == models.StatusPending && challenge.IsExpired(now):
		s.recordVerify(metrics.OutcomeExpired)
		return nil, dErrors.New(dErrors.CodeChallengeExpired, msgCodeInvalid)
	case challenge.Status == models.StatusFailed:
		s.recordVerify(metrics.OutcomeExhausted)
		s.audit(ctx, "challenge_exhausted", "challenge_id", challenge.ID)
		return nil, dErrors.New(dErrors.CodeChallengeExhausted, msgCodeInvalid)
	case challenge.Status == models.StatusVerified:
		// Someone else won the race; this caller still loses.
		s.recordVerify(metrics.OutcomeConsumed)
		return nil, dErrors.New(dErrors.CodeVerificationFailed, msgCodeInvalid)
	default:
		s.recordVerify(metrics.OutcomeMismatch)
		return nil, dErrors.New(dErrors.CodeVerificationFailed, msgCodeInvalid)
	}
}

type ResendRequest struct {
	ChallengeID string
	Identifier  string
	Method      DeliveryMethod
}

type ResendResult struct {
	ChallengeID string
	ResendCount int
	ExpiresAt   time.Time
	MessageID   string
}

// Resend re-issues a pending challenge with a fresh secret, within the
// challenge's resend budget and validity window.
func (s *Service) Resend(ctx context.Context, req *ResendRequest) (*ResendResult, error) {
	ctx, span := s.tracer.Start(ctx, "challenge.resend")
	var opErr error
	defer func() { span.End(opErr) }()

	challengeID, err := s.resolveChallengeID(ctx, req.ChallengeID, req.Identifier)
	if err != nil {
		opErr = err
		return nil, err
	}

	method := req.Method
	if method == "" {
		method = MethodOTP
	}

	secret, _, err := s.newSecret(method)
	if err != nil {
		opErr = err
		return nil, err
	}

	challenge, err := s.challenges.IncrementSendCount(ctx, challengeID, models.HashCode(secret), s.clock())
	if err != nil {
		opErr = s.translateResend(err)
		if s.metrics != nil {
			s.metrics.RecordResend("refused")
		}
		return nil, opErr
	}

	identifier := identity.Identifier{
		Value: challenge.IdentifierValue,
		Type:  challenge.IdentifierType,
		Hash:  challenge.IdentifierHash,
	}
	msg, err := s.composeMessage(identifier, challenge, method, secret)
	if err != nil {
		opErr = err
		return nil, err
	}

	sendResult, err := s.sender.Send(ctx, msg)
	if err != nil || !sendResult.Success {
		if s.metrics != nil {
			s.metrics.RecordSendFailure()
		}
		opErr = dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to deliver challenge message")
		return nil, opErr
	}

	if s.metrics != nil {
		s.metrics.RecordResend("sent")
	}
	s.audit(ctx, "challenge_resent",
		"challenge_id", challenge.ID,
		"resend_count", challenge.ResendCount,
	)

	return &ResendResult{
		ChallengeID: challenge.ID,
		ResendCount: challenge.ResendCount,
		ExpiresAt:   challenge.ExpiresAt,
		MessageID:   sendResult.MessageID,
	}, nil
}

func (s *Service) validateStart(req *StartRequest) error {
	if err := validation.Validate(req); err != nil {
		return err
	}
	if !req.Channel.IsValid() {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown channel %q", req.Channel))
	}
	if !req.Intent.IsValid() {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown intent %q", req.Intent))
	}
	switch req.Method {
	case "", MethodOTP:
	case MethodMagicLink:
		if s.links == nil {
			return dErrors.New(dErrors.CodeValidation, "magic links are not enabled")
		}
		if req.Channel != models.ChannelEmail {
			return dErrors.New(dErrors.CodeValidation, "magic links require the email channel")
		}
	default:
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown delivery method %q", req.Method))
	}
	return nil
}

func (s *Service) checkChannelFit(identifier identity.Identifier, channel models.Channel) error {
	switch channel {
	case models.ChannelEmail:
		if !identifier.IsEmail() {
			return dErrors.New(dErrors.CodeValidation, "email channel requires an email identifier")
		}
	case models.ChannelSMS, models.ChannelWhatsApp:
		if identifier.IsEmail() {
			return dErrors.New(dErrors.CodeValidation, "phone channels require a phone identifier")
		}
	}
	return nil
}

func (s *Service) requireCaptcha(ctx context.Context, req *StartRequest) error {
	if s.captcha == nil {
		// No verifier wired means the challenge step cannot be satisfied.
		s.audit(ctx, "challenge_start_denied", "cause", "captcha_unavailable")
		return newBlockedError("abuse", "captcha step unavailable")
	}
	if req.CaptchaToken == "" {
		return dErrors.New(dErrors.CodeCaptchaRequired, msgCaptchaRequired)
	}

	ok, err := s.captcha.Verify(ctx, req.CaptchaToken, req.IP)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "captcha verification unavailable")
	}
	if !ok {
		return dErrors.New(dErrors.CodeCaptchaRequired, msgCaptchaRequired)
	}
	return nil
}

func (s *Service) newSecret(method DeliveryMethod) (secret string, ttl time.Duration, err error) {
	switch method {
	case MethodMagicLink:
		if s.links == nil {
			return "", 0, dErrors.New(dErrors.CodeValidation, "magic links are not enabled")
		}
		nonce, err := magiclink.NewNonce()
		if err != nil {
			return "", 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate link nonce")
		}
		return nonce, models.DefaultMagicLinkTTL, nil
	default:
		code, err := models.GenerateCode(models.DefaultCodeLength)
		if err != nil {
			return "", 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate code")
		}
		return code, s.otpTTL, nil
	}
}

func (s *Service) composeMessage(identifier identity.Identifier, challenge *models.OTPChallenge, method DeliveryMethod, secret string) (*Message, error) {
	msg := &Message{
		To:      identifier.Value,
		Channel: challenge.Channel,
	}

	switch method {
	case MethodMagicLink:
		token, err := s.links.Issue(challenge.ID, secret)
		if err != nil {
			return nil, err
		}
		msg.Subject = "Your sign-in link"
		msg.Body = "Use the link below to sign in."
		msg.Variables = map[string]string{"token": token}
	default:
		msg.Subject = "Your verification code"
		msg.Body = fmt.Sprintf("Your verification code is %s.", secret)
		msg.Variables = map[string]string{"code": secret}
	}
	return msg, nil
}

// resolveChallengeID addresses a challenge directly or through the
// identifier's most recent active challenge.
func (s *Service) resolveChallengeID(ctx context.Context, challengeID, rawIdentifier string) (string, error) {
	if challengeID != "" {
		return challengeID, nil
	}
	if rawIdentifier == "" {
		return "", dErrors.New(dErrors.CodeValidation, "challenge id or identifier is required")
	}

	identifier, err := identity.NewIdentifier(rawIdentifier)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeValidation, "identifier format not recognized")
	}

	challenge, err := s.challenges.GetActiveByIdentifier(ctx, identifier.Hash, s.clock())
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.New(dErrors.CodeNotFound, msgCodeInvalid)
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up active challenge")
	}
	return challenge.ID, nil
}

func (s *Service) translateResend(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound), errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.New(dErrors.CodeNotFound, msgCodeInvalid)
	case errors.Is(err, sentinel.ErrExpired):
		return dErrors.New(dErrors.CodeChallengeExpired, msgCodeInvalid)
	case errors.Is(err, sentinel.ErrLimitExceeded):
		return dErrors.New(dErrors.CodeChallengeExhausted, msgCodeInvalid)
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to resend challenge")
	}
}

func (s *Service) recordVerify(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordVerify(outcome)
	}
}

func (s *Service) audit(ctx context.Context, event string, args ...any) {
	if s.logger == nil {
		return
	}
	allArgs := append([]any{"event", event, "log_type", "audit"}, args...)
	s.logger.InfoContext(ctx, "challenge event", allArgs...)
}
