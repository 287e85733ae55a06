// Package sos runs the panic-button countdown. Triggering starts a
// short grace window during which the tourist can cancel; when it
// elapses an emergency dispatch is emitted with the last known
// position and the session is torn down, returning the tourist to
// idle. Cancellation always wins unless dispatch already happened.
package sos

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/safetrail/safetrail/internal/profile"
)

// State is the per-tourist SOS lifecycle state.
type State string

const (
	StateIdle         State = "idle"
	StateCountingDown State = "countingDown"
)

// Countdown bounds. A configured countdown outside this range is
// clamped so a misconfiguration can neither fire instantly nor hang.
const (
	DefaultCountdown = 5 * time.Second
	MinCountdown     = 3 * time.Second
	MaxCountdown     = 10 * time.Second
)

// Dispatcher receives the emergency once the countdown elapses.
type Dispatcher interface {
	EmergencyDispatched(ctx context.Context, touristID string, lat, lng float64, at time.Time)
}

// Config holds SOS controller settings.
type Config struct {
	// Countdown is the cancellation grace window. Defaults to 5s,
	// clamped to [3s, 10s].
	Countdown time.Duration
}

func (c Config) countdown() time.Duration {
	d := c.Countdown
	if d == 0 {
		d = DefaultCountdown
	}
	if d < MinCountdown {
		d = MinCountdown
	}
	if d > MaxCountdown {
		d = MaxCountdown
	}
	return d
}

// session exists only while a countdown is running. It is removed on
// cancel and on dispatch, so any tourist absent from the map is idle.
type session struct {
	timer *time.Timer
}

// Controller tracks one SOS session per tourist. All methods are safe
// for concurrent use and never return errors: a panic button must not
// fail on the tourist.
type Controller struct {
	countdown  time.Duration
	profiles   *profile.Store
	dispatcher Dispatcher
	logger     zerolog.Logger
	now        func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

// NewController creates an SOS controller.
func NewController(cfg Config, profiles *profile.Store, dispatcher Dispatcher, logger zerolog.Logger) *Controller {
	return &Controller{
		countdown:  cfg.countdown(),
		profiles:   profiles,
		dispatcher: dispatcher,
		logger:     logger.With().Str("component", "sos").Logger(),
		now:        time.Now,
		sessions:   make(map[string]*session),
	}
}

// Trigger starts the countdown for the tourist. A trigger while a
// countdown is already running is a no-op and does not restart the
// clock. A trigger after a dispatch starts a fresh emergency.
func (c *Controller) Trigger(ctx context.Context, touristID string) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.sessions[touristID]; ok {
		return StateCountingDown
	}

	s := &session{}
	s.timer = time.AfterFunc(c.countdown, func() {
		c.dispatch(touristID)
	})
	c.sessions[touristID] = s

	c.logger.Info().
		Str("tourist_id", touristID).
		Dur("countdown", c.countdown).
		Msg("sos triggered")
	return StateCountingDown
}

// Cancel aborts a running countdown. It is a no-op when no countdown is
// running or when the dispatch has already gone out, and reports the
// resulting state.
func (c *Controller) Cancel(ctx context.Context, touristID string) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[touristID]
	if !ok {
		return StateIdle
	}

	s.timer.Stop()
	delete(c.sessions, touristID)

	c.logger.Info().Str("tourist_id", touristID).Msg("sos cancelled")
	return StateIdle
}

// State reports the tourist's current SOS state.
func (c *Controller) State(touristID string) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.sessions[touristID]; ok {
		return StateCountingDown
	}
	return StateIdle
}

func (c *Controller) dispatch(touristID string) {
	c.mu.Lock()
	if _, ok := c.sessions[touristID]; !ok {
		// Cancel won the race.
		c.mu.Unlock()
		return
	}
	// The escalation record is destroyed once dispatch goes out; the
	// tourist is idle again and a new trigger starts fresh.
	delete(c.sessions, touristID)
	at := c.now().UTC()

	var lat, lng float64
	if p, err := c.profiles.Get(context.Background(), touristID); err == nil {
		if loc := p.LastLocation(); loc != nil {
			lat, lng = loc.Lat, loc.Lng
		}
	}
	c.mu.Unlock()

	c.logger.Warn().
		Str("tourist_id", touristID).
		Float64("lat", lat).
		Float64("lng", lng).
		Msg("sos dispatched")

	if c.dispatcher != nil {
		c.dispatcher.EmergencyDispatched(context.Background(), touristID, lat, lng, at)
	}
}
