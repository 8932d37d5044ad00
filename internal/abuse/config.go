package abuse

import "time"

// Config holds the thresholds, weights and decision cut-offs for abuse
// scoring. IPVelocityWeight is a single named constant on purpose: the IP
// signal must score identically at every call site.
type Config struct {
	Window time.Duration

	VelocityThreshold int
	VelocityWeight    float64

	GeoVelocityThreshold int
	GeoVelocityWeight    float64

	IPVelocityThreshold int
	IPVelocityWeight    float64

	SuspiciousUAWeight float64

	BlockThreshold     float64
	ChallengeThreshold float64
}

func DefaultConfig() *Config {
	return &Config{
		Window:               time.Hour,
		VelocityThreshold:    10,
		VelocityWeight:       0.3,
		GeoVelocityThreshold: 5,
		GeoVelocityWeight:    0.2,
		IPVelocityThreshold:  20,
		IPVelocityWeight:     0.2,
		SuspiciousUAWeight:   0.1,
		BlockThreshold:       0.8,
		ChallengeThreshold:   0.5,
	}
}
