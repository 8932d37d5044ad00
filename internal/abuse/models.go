// Package abuse scores challenge-start requests against velocity counters
// and user agent heuristics. It is deliberately a deterministic heuristic
// over the counters it reads, not a learned model.
package abuse

// Action is the decision derived from a risk score.
type Action string

const (
	ActionAllow     Action = "allow"
	ActionChallenge Action = "challenge"
	ActionBlock     Action = "block"
)

// Signal names, used in assessments, logs and metrics labels.
const (
	SignalVelocity     = "identifier_velocity"
	SignalGeoVelocity  = "geo_velocity"
	SignalIPVelocity   = "ip_velocity"
	SignalSuspiciousUA = "suspicious_user_agent"
)

// Signal is one contributing risk factor that fired.
type Signal struct {
	Name      string  `json:"name"`
	Weight    float64 `json:"weight"`
	Count     int     `json:"count,omitempty"`
	Threshold int     `json:"threshold,omitempty"`
}

// Assessment is the outcome of an abuse check.
type Assessment struct {
	RiskScore  float64  `json:"riskScore"`
	Action     Action   `json:"action"`
	Suspicious bool     `json:"suspicious"`
	Signals    []Signal `json:"signals,omitempty"`
}

// Input carries the request attributes the detector evaluates. UserAgent and
// GeoCountry are optional; their signals are skipped when absent.
type Input struct {
	IdentifierHash string
	IP             string
	UserAgent      string
	GeoCountry     string
}
