package geofence

import "context"

// Repository defines the interface for zone persistence.
type Repository interface {
	// Get retrieves a zone by ID. Returns ErrZoneNotFound if absent.
	Get(ctx context.Context, id string) (*Zone, error)

	// List retrieves all zones.
	List(ctx context.Context) ([]*Zone, error)

	// Upsert creates or replaces a zone.
	Upsert(ctx context.Context, zone *Zone) error

	// Remove deletes a zone by ID. Returns ErrZoneNotFound if absent.
	Remove(ctx context.Context, id string) error
}
