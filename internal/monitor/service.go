// Package monitor ties the tracking pipeline together: location intake
// feeds the profile store, every accepted sample is evaluated for
// anomalies, and accepted candidates become alerts.
package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/safetrail/safetrail/internal/alert"
	"github.com/safetrail/safetrail/internal/detection"
	"github.com/safetrail/safetrail/internal/profile"
)

// Service orchestrates intake, detection and alert creation.
type Service struct {
	profiles *profile.Store
	engine   *detection.Engine
	alerts   *alert.Service
	logger   zerolog.Logger
}

// NewService creates a monitoring service.
func NewService(profiles *profile.Store, engine *detection.Engine, alerts *alert.Service, logger zerolog.Logger) *Service {
	return &Service{
		profiles: profiles,
		engine:   engine,
		alerts:   alerts,
		logger:   logger.With().Str("component", "monitor").Logger(),
	}
}

// IngestLocation records a location sample for the tourist and runs the
// detection cycle on the updated profile. A location update also counts
// as device contact for communication-loss tracking. It returns the
// refreshed profile and any alerts the cycle created; a stale sample is
// rejected with profile.ErrStaleLocation and nothing is evaluated.
func (s *Service) IngestLocation(ctx context.Context, touristID string, pt profile.LocationPoint) (*profile.Profile, []*alert.Alert, error) {
	p, err := s.profiles.RecordLocation(ctx, touristID, pt)
	if err != nil {
		return nil, nil, err
	}
	if err := s.profiles.RecordCommunication(ctx, touristID, pt.Timestamp); err != nil {
		return nil, nil, fmt.Errorf("recording contact: %w", err)
	}

	created, err := s.runDetection(ctx, p)
	if err != nil {
		return nil, nil, err
	}
	return p, created, nil
}

// IngestCommunicationPing records device contact without a position fix
// (heartbeats, check-in messages).
func (s *Service) IngestCommunicationPing(ctx context.Context, touristID string, ts time.Time) error {
	return s.profiles.RecordCommunication(ctx, touristID, ts)
}

// EvaluateTourist runs a detection cycle against the tourist's current
// profile without new input. The sweep worker uses this to catch
// time-driven anomalies (inactivity, communication loss) for tourists
// who have gone quiet.
func (s *Service) EvaluateTourist(ctx context.Context, touristID string) ([]*alert.Alert, error) {
	p, err := s.profiles.Get(ctx, touristID)
	if err != nil {
		return nil, err
	}
	return s.runDetection(ctx, p)
}

// TrackedTourists lists the IDs of all tourists with an active profile.
func (s *Service) TrackedTourists() []string {
	return s.profiles.TrackedIDs()
}

func (s *Service) runDetection(ctx context.Context, p *profile.Profile) ([]*alert.Alert, error) {
	candidates := s.engine.Evaluate(ctx, p)
	if len(candidates) == 0 {
		return nil, nil
	}

	var created []*alert.Alert
	for _, c := range candidates {
		a, isNew, err := s.alerts.Ingest(ctx, c)
		if err != nil {
			return created, fmt.Errorf("ingesting %s candidate: %w", c.Type, err)
		}
		if isNew {
			created = append(created, a)
		}
	}

	if len(created) > 0 {
		s.logger.Info().
			Str("tourist_id", p.TouristID).
			Int("alerts", len(created)).
			Msg("detection cycle raised alerts")
	}
	return created, nil
}
