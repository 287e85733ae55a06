package alert

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/safetrail/safetrail/internal/detection"
)

// InMemoryRepository is an in-memory implementation of Repository. Used
// when the service runs without Postgres, and in tests.
type InMemoryRepository struct {
	mu     sync.RWMutex
	alerts map[string]*Alert
}

// NewInMemoryRepository creates a new in-memory alert repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		alerts: make(map[string]*Alert),
	}
}

// Get retrieves an alert by ID.
func (r *InMemoryRepository) Get(_ context.Context, id string) (*Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.alerts[id]
	if !ok {
		return nil, ErrAlertNotFound
	}

	cpy := *a
	return &cpy, nil
}

// List retrieves alerts, newest first.
func (r *InMemoryRepository) List(_ context.Context, opts ListOptions) ([]*Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var alerts []*Alert
	for _, a := range r.alerts {
		if opts.TouristID != "" && a.TouristID != opts.TouristID {
			continue
		}
		if opts.Status != "" && a.Status != opts.Status {
			continue
		}
		cpy := *a
		alerts = append(alerts, &cpy)
	}

	sort.Slice(alerts, func(i, j int) bool {
		return alerts[i].DetectedAt.After(alerts[j].DetectedAt)
	})

	if opts.Limit > 0 && len(alerts) > opts.Limit {
		alerts = alerts[:opts.Limit]
	}
	return alerts, nil
}

// Create stores a new alert.
func (r *InMemoryRepository) Create(_ context.Context, a *Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cpy := *a
	r.alerts[a.ID] = &cpy
	return nil
}

// UpdateStatus persists a status change.
func (r *InMemoryRepository) UpdateStatus(_ context.Context, id string, status Status, updatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.alerts[id]
	if !ok {
		return ErrAlertNotFound
	}
	a.Status = status
	a.UpdatedAt = updatedAt
	return nil
}

// LatestOpen returns the most recent non-resolved alert for the tourist
// and type.
func (r *InMemoryRepository) LatestOpen(_ context.Context, touristID string, typ detection.Type) (*Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *Alert
	for _, a := range r.alerts {
		if a.TouristID != touristID || a.Type != typ || a.Status == StatusResolved {
			continue
		}
		if latest == nil || a.DetectedAt.After(latest.DetectedAt) {
			latest = a
		}
	}
	if latest == nil {
		return nil, ErrAlertNotFound
	}

	cpy := *latest
	return &cpy, nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
