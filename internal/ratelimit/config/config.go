package config

import (
	"time"

	"sesame/internal/ratelimit/models"
)

// Config holds fixed-window rate limiting rules per scope.
type Config struct {
	Rules map[models.Scope]models.Rule
}

// DefaultConfig returns the default challenge-issuance limits: an identifier
// may start at most 5 challenges per hour, an IP 10, and the whole deployment
// 1000. All overridable by the caller.
func DefaultConfig() *Config {
	return &Config{
		Rules: map[models.Scope]models.Rule{
			models.ScopeIdentifier: {MaxAttempts: 5, Window: time.Hour},
			models.ScopeIP:         {MaxAttempts: 10, Window: time.Hour},
			models.ScopeGlobal:     {MaxAttempts: 1000, Window: time.Hour},
		},
	}
}

// GetRule returns the rule for a scope, if configured.
func (c *Config) GetRule(scope models.Scope) (models.Rule, bool) {
	rule, ok := c.Rules[scope]
	return rule, ok
}
