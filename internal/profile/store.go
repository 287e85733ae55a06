package profile

import (
	"context"
	"sync"
	"time"

	"github.com/safetrail/safetrail/pkg/geo"
)

// Config holds the profile math knobs.
type Config struct {
	// Smoothing is the EWMA factor for baseline speed updates.
	// Default: 0.2
	Smoothing float64

	// WindowSize is the number of recent samples retained per tourist.
	// Default: 100
	WindowSize int

	// ActivityWindow is the sliding window for the activity cadence.
	// Default: 6 hours
	ActivityWindow time.Duration

	// CommWindow is the sliding window for communication frequency.
	// Default: 1 hour
	CommWindow time.Duration
}

// DefaultConfig returns the documented profile defaults.
func DefaultConfig() Config {
	return Config{
		Smoothing:      0.2,
		WindowSize:     100,
		ActivityWindow: 6 * time.Hour,
		CommWindow:     time.Hour,
	}
}

func (c Config) withDefaults() Config {
	if c.Smoothing <= 0 || c.Smoothing > 1 {
		c.Smoothing = 0.2
	}
	if c.WindowSize <= 0 {
		c.WindowSize = 100
	}
	if c.ActivityWindow <= 0 {
		c.ActivityWindow = 6 * time.Hour
	}
	if c.CommWindow <= 0 {
		c.CommWindow = time.Hour
	}
	return c
}

// record is the mutable per-tourist state. Its mutex gives each tourist
// an exclusive update path; distinct tourists never contend.
type record struct {
	mu      sync.Mutex
	profile Profile
	comms   []time.Time
}

// Store owns all behavioral profiles. Safe for concurrent use.
type Store struct {
	cfg Config
	now func() time.Time

	mu       sync.RWMutex
	active   map[string]*record
	archived map[string]*Profile
}

// NewStore creates a profile store with the given configuration.
func NewStore(cfg Config) *Store {
	return &Store{
		cfg:      cfg.withDefaults(),
		now:      time.Now,
		active:   make(map[string]*record),
		archived: make(map[string]*Profile),
	}
}

// WithClock overrides the store's clock. Intended for tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// RecordLocation ingests a location sample for a tourist, creating the
// profile on first contact. Samples must be monotonically non-decreasing
// in timestamp; an out-of-order sample fails with ErrStaleLocation and
// mutates nothing. Returns a snapshot of the updated profile.
func (s *Store) RecordLocation(_ context.Context, touristID string, pt LocationPoint) (*Profile, error) {
	rec := s.getOrCreate(touristID, pt.Timestamp)

	rec.mu.Lock()
	defer rec.mu.Unlock()

	p := &rec.profile
	if last := p.LastLocation(); last != nil && pt.Timestamp.Before(last.Timestamp) {
		return nil, ErrStaleLocation
	}

	if prev := p.LastLocation(); prev != nil {
		if speed, ok := sampleSpeedKmh(prev, pt); ok {
			if p.BaselineSpeedKmh == 0 {
				p.BaselineSpeedKmh = speed
			} else {
				p.BaselineSpeedKmh = s.cfg.Smoothing*speed + (1-s.cfg.Smoothing)*p.BaselineSpeedKmh
			}
		}
	} else if pt.SpeedKmh != nil {
		p.BaselineSpeedKmh = *pt.SpeedKmh
	}

	p.Recent = append(p.Recent, pt)
	if len(p.Recent) > s.cfg.WindowSize {
		p.Recent = p.Recent[len(p.Recent)-s.cfg.WindowSize:]
	}

	p.LastActivityAt = pt.Timestamp
	p.ActivityPattern = s.cadence(p.Recent, pt.Timestamp)
	p.UpdatedAt = s.now()

	snap := snapshot(p)
	return &snap, nil
}

// RecordCommunication notes an inbound communication ping and refreshes
// the hourly communication frequency.
func (s *Store) RecordCommunication(_ context.Context, touristID string, ts time.Time) error {
	rec := s.lookup(touristID)
	if rec == nil {
		return ErrUnknownTourist
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	rec.comms = append(rec.comms, ts)
	cutoff := ts.Add(-s.cfg.CommWindow)
	kept := rec.comms[:0]
	for _, c := range rec.comms {
		if c.After(cutoff) {
			kept = append(kept, c)
		}
	}
	rec.comms = kept

	p := &rec.profile
	if ts.After(p.LastCommunicationAt) {
		p.LastCommunicationAt = ts
	}
	p.CommunicationFrequencyPerHour = float64(len(rec.comms))
	p.UpdatedAt = s.now()
	return nil
}

// Get returns a consistent snapshot of a tourist's profile.
func (s *Store) Get(_ context.Context, touristID string) (*Profile, error) {
	rec := s.lookup(touristID)
	if rec == nil {
		return nil, ErrUnknownTourist
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	snap := snapshot(&rec.profile)
	return &snap, nil
}

// SetPreferredRoutes replaces a tourist's preferred route corridors.
func (s *Store) SetPreferredRoutes(_ context.Context, touristID string, routeIDs []string) error {
	rec := s.lookup(touristID)
	if rec == nil {
		return ErrUnknownTourist
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	rec.profile.PreferredRouteIDs = append([]string(nil), routeIDs...)
	rec.profile.UpdatedAt = s.now()
	return nil
}

// RaiseRisk bumps the tourist's risk score, clamped to [0, 100].
func (s *Store) RaiseRisk(_ context.Context, touristID string, points int) error {
	rec := s.lookup(touristID)
	if rec == nil {
		return ErrUnknownTourist
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	rec.profile.RiskLevel += points
	if rec.profile.RiskLevel > 100 {
		rec.profile.RiskLevel = 100
	}
	if rec.profile.RiskLevel < 0 {
		rec.profile.RiskLevel = 0
	}
	rec.profile.UpdatedAt = s.now()
	return nil
}

// Archive moves a tourist out of active monitoring. Archived profiles
// are retained but no longer evaluated or updated.
func (s *Store) Archive(_ context.Context, touristID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.active[touristID]
	if !ok {
		return ErrUnknownTourist
	}

	rec.mu.Lock()
	snap := snapshot(&rec.profile)
	rec.mu.Unlock()

	s.archived[touristID] = &snap
	delete(s.active, touristID)
	return nil
}

// TrackedIDs returns the tourists currently under active monitoring.
func (s *Store) TrackedIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.active))
	for id := range s.active {
		ids = append(ids, id)
	}
	return ids
}

func (s *Store) lookup(touristID string) *record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active[touristID]
}

func (s *Store) getOrCreate(touristID string, firstSeen time.Time) *record {
	if rec := s.lookup(touristID); rec != nil {
		return rec
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.active[touristID]; ok {
		return rec
	}

	rec := &record{
		profile: Profile{
			TouristID:       touristID,
			ActivityPattern: ActivityActive,
			CreatedAt:       s.now(),
			LastActivityAt:  firstSeen,
		},
	}
	s.active[touristID] = rec
	return rec
}

// cadence derives the activity pattern from sample density over the
// sliding activity window ending at now: one sample per 30 minutes or
// better is active, one per 2 hours is moderate, anything sparser is
// inactive.
func (s *Store) cadence(recent []LocationPoint, now time.Time) ActivityPattern {
	cutoff := now.Add(-s.cfg.ActivityWindow)
	count := 0
	for i := len(recent) - 1; i >= 0; i-- {
		if recent[i].Timestamp.Before(cutoff) {
			break
		}
		count++
	}

	activeMin := int(s.cfg.ActivityWindow / (30 * time.Minute))
	moderateMin := int(s.cfg.ActivityWindow / (2 * time.Hour))
	switch {
	case count >= activeMin:
		return ActivityActive
	case count >= moderateMin:
		return ActivityModerate
	default:
		return ActivityInactive
	}
}

// sampleSpeedKmh returns the speed for the current sample, preferring
// the reported speed and falling back to displacement over elapsed time.
func sampleSpeedKmh(prev *LocationPoint, cur LocationPoint) (float64, bool) {
	if cur.SpeedKmh != nil {
		return *cur.SpeedKmh, true
	}

	dt := cur.Timestamp.Sub(prev.Timestamp).Seconds()
	if dt <= 0 {
		return 0, false
	}
	meters := geo.Haversine(prev.Lat, prev.Lng, cur.Lat, cur.Lng)
	return meters / dt * 3.6, true
}

// snapshot deep-copies a profile so callers never observe later writes.
func snapshot(p *Profile) Profile {
	cpy := *p
	cpy.PreferredRouteIDs = append([]string(nil), p.PreferredRouteIDs...)
	cpy.Recent = append([]LocationPoint(nil), p.Recent...)
	return cpy
}
