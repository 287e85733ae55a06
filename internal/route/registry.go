// Package route maintains the preferred-route corridors that tourists
// are expected to stay near. Corridors are stored as encoded polylines
// and queried for perpendicular distance by the detection engine.
package route

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/safetrail/safetrail/pkg/polyline"
)

// Registry errors.
var (
	ErrRouteNotFound = errors.New("route not found")
	ErrInvalidRoute  = errors.New("invalid route")
)

// Route is a named corridor polyline.
type Route struct {
	ID          string
	Name        string
	Polyline    string
	coords      []polyline.Coordinate
	LastUpdated time.Time
}

// Coordinates returns the decoded corridor coordinates.
func (r *Route) Coordinates() []polyline.Coordinate {
	return r.coords
}

// Registry holds all known route corridors. Safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	routes map[string]*Route
	now    func() time.Time
}

// NewRegistry creates an empty route registry.
func NewRegistry() *Registry {
	return &Registry{
		routes: make(map[string]*Route),
		now:    time.Now,
	}
}

// Upsert validates, decodes and stores a route corridor.
func (g *Registry) Upsert(_ context.Context, id, name, encoded string) (*Route, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidRoute)
	}

	coords := polyline.Decode(encoded)
	if len(coords) < 2 {
		return nil, fmt.Errorf("%w: polyline must contain at least two points", ErrInvalidRoute)
	}

	r := &Route{
		ID:          id,
		Name:        name,
		Polyline:    encoded,
		coords:      coords,
		LastUpdated: g.now(),
	}

	g.mu.Lock()
	g.routes[id] = r
	g.mu.Unlock()

	cpy := *r
	return &cpy, nil
}

// Remove deletes a route. Returns ErrRouteNotFound for an unknown ID.
func (g *Registry) Remove(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.routes[id]; !ok {
		return ErrRouteNotFound
	}
	delete(g.routes, id)
	return nil
}

// Get retrieves a route by ID.
func (g *Registry) Get(_ context.Context, id string) (*Route, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	r, ok := g.routes[id]
	if !ok {
		return nil, ErrRouteNotFound
	}
	cpy := *r
	return &cpy, nil
}

// List retrieves all routes.
func (g *Registry) List(_ context.Context) []*Route {
	g.mu.RLock()
	defer g.mu.RUnlock()

	routes := make([]*Route, 0, len(g.routes))
	for _, r := range g.routes {
		cpy := *r
		routes = append(routes, &cpy)
	}
	return routes
}

// DistanceFrom returns the minimum perpendicular distance in meters from
// the point to any of the named corridors, and whether at least one of
// the IDs resolved to a known route. Unknown IDs are skipped.
func (g *Registry) DistanceFrom(_ context.Context, routeIDs []string, lat, lng float64) (float64, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	best := math.Inf(1)
	found := false
	for _, id := range routeIDs {
		r, ok := g.routes[id]
		if !ok {
			continue
		}
		found = true
		if d := polyline.DistanceTo(r.coords, lat, lng); d < best {
			best = d
		}
	}
	return best, found
}
