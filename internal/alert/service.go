package alert

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/safetrail/safetrail/internal/detection"
)

// Notifier receives lifecycle events after they are persisted. Calls
// must not block the intake path.
type Notifier interface {
	AlertCreated(ctx context.Context, a *Alert)
	AlertStatusChanged(ctx context.Context, a *Alert, previous Status)
}

// NopNotifier discards all events.
type NopNotifier struct{}

func (NopNotifier) AlertCreated(context.Context, *Alert)               {}
func (NopNotifier) AlertStatusChanged(context.Context, *Alert, Status) {}

// Config holds alert lifecycle settings.
type Config struct {
	// SuppressionWindow is how long after an alert's detection time
	// further candidates of the same type for the same tourist are
	// dropped. Defaults to 5 minutes.
	SuppressionWindow time.Duration
}

func (c Config) withDefaults() Config {
	if c.SuppressionWindow <= 0 {
		c.SuppressionWindow = 5 * time.Minute
	}
	return c
}

// Service manages alert intake and lifecycle.
type Service struct {
	cfg      Config
	repo     Repository
	notifier Notifier
	logger   zerolog.Logger
	now      func() time.Time

	// mu serializes intake so the dedup check and the create are
	// atomic with respect to concurrent candidates.
	mu sync.Mutex
}

// NewService creates a new alert service.
func NewService(cfg Config, repo Repository, notifier Notifier, logger zerolog.Logger) *Service {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Service{
		cfg:      cfg.withDefaults(),
		repo:     repo,
		notifier: notifier,
		logger:   logger.With().Str("component", "alert").Logger(),
		now:      time.Now,
	}
}

// WithClock overrides the time source. For tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Ingest accepts a detection candidate. It returns the stored alert and
// true when a new alert was created, or the existing open alert and
// false when the candidate fell inside the suppression window for the
// same tourist and type.
func (s *Service) Ingest(ctx context.Context, c detection.Candidate) (*Alert, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.repo.LatestOpen(ctx, c.TouristID, c.Type)
	if err != nil && !errors.Is(err, ErrAlertNotFound) {
		return nil, false, fmt.Errorf("checking open alerts: %w", err)
	}
	if existing != nil && c.DetectedAt.Sub(existing.DetectedAt) < s.cfg.SuppressionWindow {
		s.logger.Debug().
			Str("tourist_id", c.TouristID).
			Str("type", string(c.Type)).
			Str("alert_id", existing.ID).
			Msg("candidate suppressed by open alert")
		return existing, false, nil
	}

	a := &Alert{
		ID:          "alr_" + uuid.New().String()[:22],
		Type:        c.Type,
		TouristID:   c.TouristID,
		Severity:    c.Severity,
		Lat:         c.Lat,
		Lng:         c.Lng,
		Description: c.Description,
		Confidence:  c.Confidence,
		DetectedAt:  c.DetectedAt,
		Status:      StatusNew,
		UpdatedAt:   c.DetectedAt,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, false, fmt.Errorf("creating alert: %w", err)
	}

	s.logger.Info().
		Str("alert_id", a.ID).
		Str("tourist_id", a.TouristID).
		Str("type", string(a.Type)).
		Str("severity", string(a.Severity)).
		Float64("confidence", a.Confidence).
		Msg("alert created")

	s.notifier.AlertCreated(ctx, a)
	return a, true, nil
}

// Get retrieves an alert by ID.
func (s *Service) Get(ctx context.Context, id string) (*Alert, error) {
	return s.repo.Get(ctx, id)
}

// List retrieves alerts, newest first.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]*Alert, error) {
	return s.repo.List(ctx, opts)
}

// Acknowledge moves an alert from new to acknowledged.
func (s *Service) Acknowledge(ctx context.Context, id string) (*Alert, error) {
	return s.transition(ctx, id, StatusAcknowledged)
}

// Investigate moves an alert from acknowledged to investigating.
func (s *Service) Investigate(ctx context.Context, id string) (*Alert, error) {
	return s.transition(ctx, id, StatusInvestigating)
}

// Resolve moves an alert from investigating to resolved.
func (s *Service) Resolve(ctx context.Context, id string) (*Alert, error) {
	return s.transition(ctx, id, StatusResolved)
}

func (s *Service) transition(ctx context.Context, id string, to Status) (*Alert, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canTransition(a.Status, to) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, a.Status, to)
	}

	previous := a.Status
	updatedAt := s.now().UTC()
	if err := s.repo.UpdateStatus(ctx, id, to, updatedAt); err != nil {
		return nil, fmt.Errorf("updating alert status: %w", err)
	}
	a.Status = to
	a.UpdatedAt = updatedAt

	s.logger.Info().
		Str("alert_id", a.ID).
		Str("from", string(previous)).
		Str("to", string(to)).
		Msg("alert status changed")

	s.notifier.AlertStatusChanged(ctx, a, previous)
	return a, nil
}
