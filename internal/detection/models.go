// Package detection evaluates behavioral anomaly signals against tourist
// profiles and the geofence registry. Each evaluator is independent and
// deterministic; candidates carry a confidence score and a severity band
// derived from fixed threshold rules.
package detection

import "time"

// Type identifies an anomaly signal.
type Type string

const (
	TypeRouteDeviation    Type = "route_deviation"
	TypeInactivity        Type = "inactivity"
	TypeSpeedAnomaly      Type = "speed_anomaly"
	TypeZoneBreach        Type = "zone_breach"
	TypeCommunicationLoss Type = "communication_loss"
	TypePanicPattern      Type = "panic_pattern"
)

// Severity bands an anomaly's urgency.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Candidate is an ephemeral detection result pending deduplication by
// the alert lifecycle manager. At most one per signal type per cycle.
type Candidate struct {
	Type        Type
	TouristID   string
	Lat         float64
	Lng         float64
	Description string
	Confidence  float64
	Severity    Severity
	DetectedAt  time.Time
}
