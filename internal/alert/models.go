// Package alert persists accepted anomalies and drives their operator
// lifecycle: deduplication on intake, then a strictly forward state
// machine from new to resolved.
package alert

import (
	"errors"
	"time"

	"github.com/safetrail/safetrail/internal/detection"
)

// Package errors.
var (
	// ErrAlertNotFound is returned for operations on an unknown alert ID.
	ErrAlertNotFound = errors.New("alert not found")

	// ErrInvalidTransition is returned for an out-of-order status change.
	// The alert is left untouched.
	ErrInvalidTransition = errors.New("invalid alert status transition")
)

// Status is the lifecycle state of an alert.
type Status string

const (
	StatusNew           Status = "new"
	StatusAcknowledged  Status = "acknowledged"
	StatusInvestigating Status = "investigating"
	StatusResolved      Status = "resolved"
)

// Alert is a persisted, stateful record of an accepted anomaly.
// Type, TouristID and DetectedAt never change after creation; Status is
// the only externally settable field.
type Alert struct {
	ID          string
	Type        detection.Type
	TouristID   string
	Severity    detection.Severity
	Lat         float64
	Lng         float64
	Description string
	Confidence  float64
	DetectedAt  time.Time
	Status      Status
	UpdatedAt   time.Time
}

// next is the forward transition table. Resolved is terminal.
var next = map[Status]Status{
	StatusNew:           StatusAcknowledged,
	StatusAcknowledged:  StatusInvestigating,
	StatusInvestigating: StatusResolved,
}

// canTransition reports whether from → to is the single allowed forward
// step.
func canTransition(from, to Status) bool {
	return next[from] == to
}
