package detection

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/safetrail/safetrail/internal/geofence"
	"github.com/safetrail/safetrail/internal/profile"
	"github.com/safetrail/safetrail/pkg/geo"
)

// ZoneLocator resolves the zones containing a point, nearest first.
type ZoneLocator interface {
	ZonesContaining(ctx context.Context, lat, lng float64) ([]geofence.Match, error)
}

// CorridorIndex resolves the distance from a point to a tourist's
// preferred route corridors.
type CorridorIndex interface {
	DistanceFrom(ctx context.Context, routeIDs []string, lat, lng float64) (float64, bool)
}

// Engine runs the anomaly evaluators. Stateless between cycles; all
// inputs come from the profile snapshot and the shared registries.
type Engine struct {
	cfg    Config
	zones  ZoneLocator
	routes CorridorIndex
	logger zerolog.Logger
	now    func() time.Time
}

// EngineConfig holds dependencies for creating an Engine.
type EngineConfig struct {
	Config Config
	Zones  ZoneLocator
	Routes CorridorIndex
	Logger zerolog.Logger
}

// NewEngine creates a detection engine.
func NewEngine(cfg EngineConfig) *Engine {
	return &Engine{
		cfg:    cfg.Config.withDefaults(),
		zones:  cfg.Zones,
		routes: cfg.Routes,
		logger: cfg.Logger,
		now:    time.Now,
	}
}

// WithClock overrides the engine's clock. Intended for tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Evaluate runs one detection cycle against a profile snapshot and
// returns zero or more candidates, one per firing signal. A cycle needs
// at least two ordered samples; with fewer the cycle is skipped.
// Evaluators never merge results; severity disagreements between signals
// are left to the alert lifecycle manager.
func (e *Engine) Evaluate(ctx context.Context, p *profile.Profile) []Candidate {
	if len(p.Recent) < 2 {
		return nil
	}

	now := e.now()
	var candidates []Candidate
	for _, eval := range []func(context.Context, *profile.Profile, time.Time) *Candidate{
		e.evaluateRouteDeviation,
		e.evaluateInactivity,
		e.evaluateSpeedAnomaly,
		e.evaluateZoneBreach,
		e.evaluateCommunicationLoss,
		e.evaluatePanicPattern,
	} {
		if c := eval(ctx, p, now); c != nil {
			candidates = append(candidates, *c)
		}
	}

	if len(candidates) > 0 {
		e.logger.Debug().
			Str("tourist_id", p.TouristID).
			Int("candidates", len(candidates)).
			Msg("detection cycle produced candidates")
	}
	return candidates
}

// evaluateRouteDeviation flags when the current point strays beyond the
// deviation threshold from the nearest preferred-route corridor.
func (e *Engine) evaluateRouteDeviation(ctx context.Context, p *profile.Profile, now time.Time) *Candidate {
	cur := p.LastLocation()
	dist, ok := e.routes.DistanceFrom(ctx, p.PreferredRouteIDs, cur.Lat, cur.Lng)
	if !ok || dist <= e.cfg.RouteDeviationMeters {
		return nil
	}

	severity := SeverityLow
	switch {
	case dist > 500:
		severity = SeverityHigh
	case dist > 300:
		severity = SeverityMedium
	}

	confidence := clamp(0.6+0.1*dist/e.cfg.RouteDeviationMeters, 0.7, 1.0)

	return &Candidate{
		Type:        TypeRouteDeviation,
		TouristID:   p.TouristID,
		Lat:         cur.Lat,
		Lng:         cur.Lng,
		Description: fmt.Sprintf("tourist is %.0fm from the nearest preferred route", dist),
		Confidence:  confidence,
		Severity:    severity,
		DetectedAt:  now,
	}
}

// evaluateInactivity flags prolonged silence. Time-based signals are
// deterministic, so confidence is fixed.
func (e *Engine) evaluateInactivity(_ context.Context, p *profile.Profile, now time.Time) *Candidate {
	silence := now.Sub(p.LastActivityAt)
	if silence <= e.cfg.InactivityWarn {
		return nil
	}

	severity := SeverityMedium
	if silence > e.cfg.InactivityEscalate {
		severity = SeverityHigh
	}

	cur := p.LastLocation()
	return &Candidate{
		Type:        TypeInactivity,
		TouristID:   p.TouristID,
		Lat:         cur.Lat,
		Lng:         cur.Lng,
		Description: fmt.Sprintf("no activity for %s", silence.Round(time.Minute)),
		Confidence:  0.9,
		Severity:    severity,
		DetectedAt:  now,
	}
}

// evaluateSpeedAnomaly flags when the current speed deviates from the
// tourist's baseline by more than the configured ratio. The comparison
// runs against the baseline as updated by the current sample's EWMA.
func (e *Engine) evaluateSpeedAnomaly(_ context.Context, p *profile.Profile, now time.Time) *Candidate {
	if p.BaselineSpeedKmh <= 0 {
		return nil
	}

	cur := p.LastLocation()
	speed, ok := currentSpeedKmh(p.Recent)
	if !ok {
		return nil
	}

	deviation := speed - p.BaselineSpeedKmh
	if deviation < 0 {
		deviation = -deviation
	}
	if deviation <= e.cfg.SpeedRatio*p.BaselineSpeedKmh {
		return nil
	}

	severity := SeverityMedium
	if deviation > e.cfg.SpeedEscalateRatio*p.BaselineSpeedKmh {
		severity = SeverityHigh
	}

	return &Candidate{
		Type:      TypeSpeedAnomaly,
		TouristID: p.TouristID,
		Lat:       cur.Lat,
		Lng:       cur.Lng,
		Description: fmt.Sprintf("speed %.1f km/h deviates from baseline %.1f km/h",
			speed, p.BaselineSpeedKmh),
		Confidence: 0.85,
		Severity:   severity,
		DetectedAt: now,
	}
}

// evaluateZoneBreach flags presence inside a dangerous geofence zone.
// The membership test is geometric, so confidence is 1.0.
func (e *Engine) evaluateZoneBreach(ctx context.Context, p *profile.Profile, now time.Time) *Candidate {
	cur := p.LastLocation()
	matches, err := e.zones.ZonesContaining(ctx, cur.Lat, cur.Lng)
	if err != nil {
		e.logger.Error().Err(err).Str("tourist_id", p.TouristID).Msg("zone lookup failed")
		return nil
	}

	most := geofence.MostRestrictive(matches)
	if most == nil || most.Zone.SafetyLevel != geofence.SafetyDangerous {
		return nil
	}

	severity := SeverityHigh
	if len(most.Zone.RiskFactors) >= e.cfg.ZoneCriticalRiskFactors {
		severity = SeverityCritical
	}

	return &Candidate{
		Type:        TypeZoneBreach,
		TouristID:   p.TouristID,
		Lat:         cur.Lat,
		Lng:         cur.Lng,
		Description: fmt.Sprintf("tourist entered dangerous zone %q", most.Zone.Name),
		Confidence:  1.0,
		Severity:    severity,
		DetectedAt:  now,
	}
}

// evaluateCommunicationLoss flags a device gone quiet while the tourist
// is still moving, distinguishing connectivity failure from inactivity.
func (e *Engine) evaluateCommunicationLoss(_ context.Context, p *profile.Profile, now time.Time) *Candidate {
	if p.ActivityPattern != profile.ActivityActive {
		return nil
	}

	ref := p.LastCommunicationAt
	if ref.IsZero() {
		ref = p.CreatedAt
	}
	if now.Sub(ref) <= e.cfg.CommLossGrace {
		return nil
	}

	cur := p.LastLocation()
	return &Candidate{
		Type:        TypeCommunicationLoss,
		TouristID:   p.TouristID,
		Lat:         cur.Lat,
		Lng:         cur.Lng,
		Description: fmt.Sprintf("no communication for %s while tourist is active", now.Sub(ref).Round(time.Minute)),
		Confidence:  0.8,
		Severity:    SeverityMedium,
		DetectedAt:  now,
	}
}

// evaluatePanicPattern flags the struggle/distress motion signature:
// rapid repeated direction reversals or erratic speed oscillation within
// a short window. Critical by construction.
func (e *Engine) evaluatePanicPattern(_ context.Context, p *profile.Profile, now time.Time) *Candidate {
	cur := p.LastLocation()
	window := recentWindow(p.Recent, cur.Timestamp.Add(-e.cfg.PanicWindow))
	if len(window) < 3 {
		return nil
	}

	reversals := headingReversals(window, e.cfg.PanicReversalDegrees)
	oscillating := speedOscillation(window)
	if reversals < e.cfg.PanicReversalCount && !oscillating {
		return nil
	}

	desc := fmt.Sprintf("%d direction reversals within %s", reversals, e.cfg.PanicWindow)
	if oscillating && reversals < e.cfg.PanicReversalCount {
		desc = fmt.Sprintf("erratic speed oscillation within %s", e.cfg.PanicWindow)
	}

	return &Candidate{
		Type:        TypePanicPattern,
		TouristID:   p.TouristID,
		Lat:         cur.Lat,
		Lng:         cur.Lng,
		Description: desc,
		Confidence:  0.95,
		Severity:    SeverityCritical,
		DetectedAt:  now,
	}
}

// recentWindow returns the suffix of samples at or after cutoff.
func recentWindow(samples []profile.LocationPoint, cutoff time.Time) []profile.LocationPoint {
	start := len(samples)
	for start > 0 && !samples[start-1].Timestamp.Before(cutoff) {
		start--
	}
	return samples[start:]
}

// headingReversals counts successive heading changes at or above the
// reversal threshold. Headings come from the samples when reported and
// from the segment bearing otherwise.
func headingReversals(window []profile.LocationPoint, thresholdDeg float64) int {
	headings := make([]float64, 0, len(window))
	for i := 1; i < len(window); i++ {
		prev, cur := window[i-1], window[i]
		if cur.HeadingDegrees != nil {
			headings = append(headings, *cur.HeadingDegrees)
			continue
		}
		if prev.Lat == cur.Lat && prev.Lng == cur.Lng {
			continue
		}
		headings = append(headings, geo.Bearing(prev.Lat, prev.Lng, cur.Lat, cur.Lng))
	}

	reversals := 0
	for i := 1; i < len(headings); i++ {
		if geo.HeadingDelta(headings[i-1], headings[i]) >= thresholdDeg {
			reversals++
		}
	}
	return reversals
}

// speedOscillation reports erratic speed swings: with at least four
// samples in the window, a max-min spread above 1.5x the mean.
func speedOscillation(window []profile.LocationPoint) bool {
	var speeds []float64
	for i := 1; i < len(window); i++ {
		if s, ok := segmentSpeedKmh(window[i-1], window[i]); ok {
			speeds = append(speeds, s)
		}
	}
	if len(speeds) < 4 {
		return false
	}

	minS, maxS, sum := speeds[0], speeds[0], 0.0
	for _, s := range speeds {
		if s < minS {
			minS = s
		}
		if s > maxS {
			maxS = s
		}
		sum += s
	}
	mean := sum / float64(len(speeds))
	return mean > 0 && maxS-minS > 1.5*mean
}

// currentSpeedKmh returns the speed of the most recent sample.
func currentSpeedKmh(samples []profile.LocationPoint) (float64, bool) {
	n := len(samples)
	if n == 0 {
		return 0, false
	}
	if n == 1 {
		if samples[0].SpeedKmh != nil {
			return *samples[0].SpeedKmh, true
		}
		return 0, false
	}
	return segmentSpeedKmh(samples[n-2], samples[n-1])
}

// segmentSpeedKmh returns the speed over one segment, preferring the
// reported sample speed.
func segmentSpeedKmh(prev, cur profile.LocationPoint) (float64, bool) {
	if cur.SpeedKmh != nil {
		return *cur.SpeedKmh, true
	}
	dt := cur.Timestamp.Sub(prev.Timestamp).Seconds()
	if dt <= 0 {
		return 0, false
	}
	return geo.Haversine(prev.Lat, prev.Lng, cur.Lat, cur.Lng) / dt * 3.6, true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
