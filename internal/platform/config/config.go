package config

import (
	"os"
	"time"
)

// Engine captures process-level configuration for the challenge engine.
// Component-specific tuning (rate rules, abuse weights, bounce thresholds)
// lives in the owning package's config struct and is constructor-injected;
// nothing here is hidden process-wide state.
type Engine struct {
	DatabaseURL         string
	RedisAddr           string
	RedisPassword       string
	MagicLinkSigningKey string
	OTPTTL              time.Duration
	MagicLinkTTL        time.Duration
	CleanupInterval     time.Duration
}

var (
	defaultOTPTTL          = 5 * time.Minute
	defaultMagicLinkTTL    = 15 * time.Minute
	defaultCleanupInterval = time.Minute
)

// FromEnv builds an Engine config from environment variables so main stays lean.
func FromEnv() Engine {
	cfg := Engine{
		DatabaseURL:         os.Getenv("SESAME_DATABASE_URL"),
		RedisAddr:           os.Getenv("SESAME_REDIS_ADDR"),
		RedisPassword:       os.Getenv("SESAME_REDIS_PASSWORD"),
		MagicLinkSigningKey: os.Getenv("SESAME_MAGIC_LINK_KEY"),
		OTPTTL:              defaultOTPTTL,
		MagicLinkTTL:        defaultMagicLinkTTL,
		CleanupInterval:     defaultCleanupInterval,
	}
	if cfg.RedisAddr == "" {
		cfg.RedisAddr = "localhost:6379"
	}
	if cfg.MagicLinkSigningKey == "" {
		// Development fallback - must be overridden in production
		cfg.MagicLinkSigningKey = "dev-secret-key-change-in-production"
	}
	if d := durationEnv("SESAME_OTP_TTL"); d > 0 {
		cfg.OTPTTL = d
	}
	if d := durationEnv("SESAME_MAGIC_LINK_TTL"); d > 0 {
		cfg.MagicLinkTTL = d
	}
	if d := durationEnv("SESAME_CLEANUP_INTERVAL"); d > 0 {
		cfg.CleanupInterval = d
	}
	return cfg
}

func durationEnv(key string) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0
	}
	return d
}
