// Package profile maintains the per-tourist behavioral profiles that
// anomaly signals are measured against.
package profile

import (
	"errors"
	"time"
)

// Store errors.
var (
	// ErrStaleLocation is returned for a sample older than the last
	// accepted one. The sample is dropped; nothing is mutated.
	ErrStaleLocation = errors.New("location sample is older than last recorded sample")

	// ErrUnknownTourist is returned for operations referencing a tourist
	// with no active profile.
	ErrUnknownTourist = errors.New("no active profile for tourist")
)

// ActivityPattern classifies how frequently a tourist has been reporting
// locations over the recent sliding window.
type ActivityPattern string

const (
	ActivityActive   ActivityPattern = "active"
	ActivityModerate ActivityPattern = "moderate"
	ActivityInactive ActivityPattern = "inactive"
)

// LocationPoint is a single normalized position sample. Immutable once
// recorded.
type LocationPoint struct {
	Lat            float64
	Lng            float64
	Timestamp      time.Time
	AccuracyMeters float64
	SpeedKmh       *float64
	HeadingDegrees *float64
}

// Profile is the evolving behavioral baseline for one tourist. Created
// on the first location sample, archived when the tourist exits
// monitoring.
type Profile struct {
	TouristID                     string
	BaselineSpeedKmh              float64
	PreferredRouteIDs             []string
	ActivityPattern               ActivityPattern
	RiskLevel                     int
	LastActivityAt                time.Time
	LastCommunicationAt           time.Time
	CommunicationFrequencyPerHour float64
	Recent                        []LocationPoint
	CreatedAt                     time.Time
	UpdatedAt                     time.Time
}

// LastLocation returns the most recent sample, or nil if none recorded.
func (p *Profile) LastLocation() *LocationPoint {
	if len(p.Recent) == 0 {
		return nil
	}
	pt := p.Recent[len(p.Recent)-1]
	return &pt
}
