package models

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
	"github.com/mssola/useragent"
)

// DeviceFingerprint derives a stable hash from client attributes for device
// binding. The hash covers every attribute; the loose match tolerates drift
// in the minor attributes (language, screen, entropy).
type DeviceFingerprint struct {
	ID               string `json:"id"`
	Hash             string `json:"hash"`
	UserAgent        string `json:"userAgent"`
	Platform         string `json:"platform"`
	Timezone         string `json:"timezone"`
	Language         string `json:"language,omitempty"`
	ScreenResolution string `json:"screenResolution,omitempty"`
	Entropy          string `json:"entropy,omitempty"`
}

// DeviceAttributes are the raw client attributes a fingerprint is derived from.
type DeviceAttributes struct {
	ID               string
	UserAgent        string
	Platform         string
	Timezone         string
	Language         string
	ScreenResolution string
	Entropy          string
}

// NewDeviceFingerprint builds a fingerprint from client attributes.
// A fresh opaque ID is generated when none is supplied.
func NewDeviceFingerprint(attrs DeviceAttributes) DeviceFingerprint {
	id := attrs.ID
	if id == "" {
		id = uuid.NewString()
	}
	return DeviceFingerprint{
		ID:               id,
		Hash:             fingerprintHash(attrs),
		UserAgent:        attrs.UserAgent,
		Platform:         attrs.Platform,
		Timezone:         attrs.Timezone,
		Language:         attrs.Language,
		ScreenResolution: attrs.ScreenResolution,
		Entropy:          attrs.Entropy,
	}
}

// fingerprintHash is SHA-256 over the pipe-joined attributes. The attribute
// order is part of the persisted format and must not change.
func fingerprintHash(attrs DeviceAttributes) string {
	joined := strings.Join([]string{
		attrs.UserAgent,
		attrs.Platform,
		attrs.Timezone,
		attrs.Language,
		attrs.ScreenResolution,
		attrs.Entropy,
	}, "|")
	sum := sha256.Sum256([]byte(joined))
	return hex.EncodeToString(sum[:])
}

// Matches compares fingerprints. Strict mode compares the full hash in
// constant time. Loose mode compares only the (userAgent, platform, timezone)
// triple, tolerating drift in the remaining attributes.
func (f DeviceFingerprint) Matches(other DeviceFingerprint, strict bool) bool {
	if strict {
		return subtle.ConstantTimeCompare([]byte(f.Hash), []byte(other.Hash)) == 1
	}
	return f.UserAgent == other.UserAgent &&
		f.Platform == other.Platform &&
		f.Timezone == other.Timezone
}

// DisplayName extracts a human-readable device name from the user agent,
// in the form "Browser on OS" (e.g. "Chrome on macOS").
func (f DeviceFingerprint) DisplayName() string {
	if f.UserAgent == "" {
		return "Unknown Device"
	}

	ua := useragent.New(f.UserAgent)
	browser, _ := ua.Browser()
	os := ua.OS()

	if ua.Mobile() {
		if platform := ua.Platform(); platform != "" {
			return strings.TrimSpace(browser + " on " + platform)
		}
	}

	if browser == "" {
		browser = "Unknown Browser"
	}
	if os == "" {
		os = "Unknown OS"
	}
	return strings.TrimSpace(browser + " on " + os)
}
