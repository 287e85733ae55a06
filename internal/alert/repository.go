package alert

import (
	"context"
	"time"

	"github.com/safetrail/safetrail/internal/detection"
)

// ListOptions filters alert listings.
type ListOptions struct {
	TouristID string
	Status    Status
	Limit     int
}

// Repository defines the interface for alert persistence.
type Repository interface {
	// Get retrieves an alert by ID. Returns ErrAlertNotFound if absent.
	Get(ctx context.Context, id string) (*Alert, error)

	// List retrieves alerts, newest first.
	List(ctx context.Context, opts ListOptions) ([]*Alert, error)

	// Create stores a new alert.
	Create(ctx context.Context, a *Alert) error

	// UpdateStatus persists a status change.
	UpdateStatus(ctx context.Context, id string, status Status, updatedAt time.Time) error

	// LatestOpen returns the most recent non-resolved alert for the
	// given tourist and type, or ErrAlertNotFound when none exists.
	LatestOpen(ctx context.Context, touristID string, typ detection.Type) (*Alert, error)
}
