package geofence

import (
	"context"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository. Used
// when the service runs without Postgres, and in tests.
type InMemoryRepository struct {
	mu    sync.RWMutex
	zones map[string]*Zone
}

// NewInMemoryRepository creates a new in-memory zone repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		zones: make(map[string]*Zone),
	}
}

// Get retrieves a zone by ID.
func (r *InMemoryRepository) Get(_ context.Context, id string) (*Zone, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	z, ok := r.zones[id]
	if !ok {
		return nil, ErrZoneNotFound
	}

	cpy := copyZone(z)
	return &cpy, nil
}

// List retrieves all zones.
func (r *InMemoryRepository) List(_ context.Context) ([]*Zone, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	zones := make([]*Zone, 0, len(r.zones))
	for _, z := range r.zones {
		cpy := copyZone(z)
		zones = append(zones, &cpy)
	}
	return zones, nil
}

// Upsert creates or replaces a zone.
func (r *InMemoryRepository) Upsert(_ context.Context, zone *Zone) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cpy := copyZone(zone)
	r.zones[zone.ID] = &cpy
	return nil
}

// Remove deletes a zone by ID.
func (r *InMemoryRepository) Remove(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.zones[id]; !ok {
		return ErrZoneNotFound
	}
	delete(r.zones, id)
	return nil
}

func copyZone(z *Zone) Zone {
	cpy := *z
	cpy.RiskFactors = append([]string(nil), z.RiskFactors...)
	return cpy
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
