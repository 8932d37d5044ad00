// Package magiclink issues and parses the signed tokens embedded in magic
// links. A link token is an HS256 JWT binding a challenge id to a random
// nonce; the challenge stores SHA-256(nonce) as its code hash, so link
// verification reuses the same consume path as numeric codes.
package magiclink

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"sesame/internal/challenge/models"
	dErrors "sesame/pkg/domain-errors"
)

const issuer = "sesame"

// nonceBytes gives 192 bits of entropy per link.
const nonceBytes = 24

// LinkClaims are the claims carried by a magic link token.
type LinkClaims struct {
	ChallengeID string `json:"cid"`
	Nonce       string `json:"nonce"`
	jwt.RegisteredClaims
}

// Issuer signs and validates magic link tokens.
type Issuer struct {
	signingKey []byte
	ttl        time.Duration
	clock      func() time.Time
}

type Option func(*Issuer)

func WithTTL(ttl time.Duration) Option {
	return func(i *Issuer) {
		i.ttl = ttl
	}
}

func WithClock(clock func() time.Time) Option {
	return func(i *Issuer) {
		i.clock = clock
	}
}

func NewIssuer(signingKey string, opts ...Option) (*Issuer, error) {
	if signingKey == "" {
		return nil, fmt.Errorf("signing key is required")
	}

	iss := &Issuer{
		signingKey: []byte(signingKey),
		ttl:        models.DefaultMagicLinkTTL,
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(iss)
	}
	return iss, nil
}

// NewNonce returns a fresh URL-safe random nonce. The caller hashes it with
// models.HashCode before persisting the challenge.
func NewNonce() (string, error) {
	b := make([]byte, nonceBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate link nonce: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Issue signs a token for the challenge carrying the raw nonce.
func (i *Issuer) Issue(challengeID, nonce string) (string, error) {
	if challengeID == "" || nonce == "" {
		return "", dErrors.New(dErrors.CodeValidation, "challenge id and nonce are required")
	}

	now := i.clock()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, LinkClaims{
		ChallengeID: challengeID,
		Nonce:       nonce,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	})

	signed, err := token.SignedString(i.signingKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign magic link token")
	}
	return signed, nil
}

// Parse validates the signature, expiry and issuer, returning the claims.
// Expired tokens surface as CodeChallengeExpired, everything else invalid
// as CodeVerificationFailed, so callers never leak why a link was refused.
func (i *Issuer) Parse(raw string) (*LinkClaims, error) {
	claims := &LinkClaims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(token *jwt.Token) (any, error) {
			return i.signingKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.clock),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.Wrap(err, dErrors.CodeChallengeExpired, "magic link expired")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeVerificationFailed, "invalid magic link token")
	}

	if claims.ChallengeID == "" || claims.Nonce == "" {
		return nil, dErrors.New(dErrors.CodeVerificationFailed, "invalid magic link token")
	}
	return claims, nil
}
