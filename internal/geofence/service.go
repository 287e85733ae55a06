package geofence

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/safetrail/safetrail/pkg/geo"
)

// Service errors.
var (
	ErrInvalidZone = errors.New("invalid zone")
)

var validSafetyLevels = map[SafetyLevel]bool{
	SafetySafe:      true,
	SafetyModerate:  true,
	SafetyDangerous: true,
}

var validZoneTypes = map[ZoneType]bool{
	ZoneTourist:      true,
	ZoneResidential:  true,
	ZoneCommercial:   true,
	ZoneConstruction: true,
	ZoneTraffic:      true,
	ZoneIndustrial:   true,
	ZoneMedical:      true,
	ZonePolice:       true,
}

// Service provides zone registry operations.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a new geofence service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Upsert validates and stores a zone.
func (s *Service) Upsert(ctx context.Context, zone *Zone) error {
	if err := validateZone(zone); err != nil {
		return err
	}

	zone.LastUpdated = s.now()
	return s.repo.Upsert(ctx, zone)
}

// Remove deletes a zone. Returns ErrZoneNotFound for an unknown ID.
func (s *Service) Remove(ctx context.Context, id string) error {
	return s.repo.Remove(ctx, id)
}

// Get retrieves a zone by ID.
func (s *Service) Get(ctx context.Context, id string) (*Zone, error) {
	return s.repo.Get(ctx, id)
}

// List retrieves all zones.
func (s *Service) List(ctx context.Context) ([]*Zone, error) {
	return s.repo.List(ctx)
}

// ZonesContaining returns every zone whose radius covers the given point,
// ordered by ascending distance to center. Zones may overlap; callers
// pick the most restrictive match.
func (s *Service) ZonesContaining(ctx context.Context, lat, lng float64) ([]Match, error) {
	zones, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	var matches []Match
	for _, z := range zones {
		d := geo.Haversine(lat, lng, z.CenterLat, z.CenterLng)
		if d <= z.RadiusMeters {
			matches = append(matches, Match{Zone: *z, DistanceMeters: d})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].DistanceMeters < matches[j].DistanceMeters
	})
	return matches, nil
}

// MostRestrictive returns the match with the strictest safety level,
// dangerous over moderate over safe. Ties resolve to the nearest center.
// Returns nil for an empty slice.
func MostRestrictive(matches []Match) *Match {
	rank := map[SafetyLevel]int{
		SafetyDangerous: 2,
		SafetyModerate:  1,
		SafetySafe:      0,
	}

	var best *Match
	for i := range matches {
		m := &matches[i]
		if best == nil || rank[m.Zone.SafetyLevel] > rank[best.Zone.SafetyLevel] {
			best = m
		}
	}
	return best
}

func validateZone(zone *Zone) error {
	switch {
	case zone.ID == "":
		return fmt.Errorf("%w: id is required", ErrInvalidZone)
	case zone.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidZone)
	case zone.RadiusMeters <= 0:
		return fmt.Errorf("%w: radiusMeters must be positive", ErrInvalidZone)
	case zone.CenterLat < -90 || zone.CenterLat > 90:
		return fmt.Errorf("%w: center latitude must be between -90 and 90", ErrInvalidZone)
	case zone.CenterLng < -180 || zone.CenterLng > 180:
		return fmt.Errorf("%w: center longitude must be between -180 and 180", ErrInvalidZone)
	case !validSafetyLevels[zone.SafetyLevel]:
		return fmt.Errorf("%w: unknown safety level %q", ErrInvalidZone, zone.SafetyLevel)
	case !validZoneTypes[zone.ZoneType]:
		return fmt.Errorf("%w: unknown zone type %q", ErrInvalidZone, zone.ZoneType)
	}
	return nil
}
