package detection_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/safetrail/safetrail/internal/detection"
	"github.com/safetrail/safetrail/internal/geofence"
	"github.com/safetrail/safetrail/internal/profile"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// stubRoutes returns a fixed corridor distance.
type stubRoutes struct {
	dist  float64
	known bool
}

func (s stubRoutes) DistanceFrom(_ context.Context, _ []string, _, _ float64) (float64, bool) {
	return s.dist, s.known
}

// stubZones returns fixed zone matches.
type stubZones struct {
	matches []geofence.Match
}

func (s stubZones) ZonesContaining(_ context.Context, _, _ float64) ([]geofence.Match, error) {
	return s.matches, nil
}

func newEngine(cfg detection.Config, zones detection.ZoneLocator, routes detection.CorridorIndex) *detection.Engine {
	return detection.NewEngine(detection.EngineConfig{
		Config: cfg,
		Zones:  zones,
		Routes: routes,
		Logger: zerolog.Nop(),
	}).WithClock(func() time.Time { return now })
}

func walkingProfile(lastSeen time.Time) *profile.Profile {
	return &profile.Profile{
		TouristID:         "t1",
		BaselineSpeedKmh:  5,
		PreferredRouteIDs: []string{"r1"},
		ActivityPattern:   profile.ActivityActive,
		LastActivityAt:    lastSeen,
		CreatedAt:         lastSeen.Add(-time.Hour),
		LastCommunicationAt: lastSeen,
		Recent: []profile.LocationPoint{
			{Lat: 30.7340, Lng: 79.0669, Timestamp: lastSeen.Add(-time.Minute)},
			{Lat: 30.7346, Lng: 79.0669, Timestamp: lastSeen},
		},
	}
}

func candidateOf(cands []detection.Candidate, typ detection.Type) *detection.Candidate {
	for i := range cands {
		if cands[i].Type == typ {
			return &cands[i]
		}
	}
	return nil
}

func TestEngine_SkipsWithFewerThanTwoSamples(t *testing.T) {
	e := newEngine(detection.Config{}, stubZones{}, stubRoutes{})
	p := walkingProfile(now)
	p.Recent = p.Recent[:1]

	if cands := e.Evaluate(context.Background(), p); cands != nil {
		t.Errorf("expected no cycle with one sample, got %v", cands)
	}
}

func TestEngine_RouteDeviation(t *testing.T) {
	tests := []struct {
		name         string
		dist         float64
		wantFlag     bool
		wantSeverity detection.Severity
	}{
		{"exactly at threshold not flagged", 200, false, ""},
		{"just past threshold flags low", 201, true, detection.SeverityLow},
		{"300m is still low", 300, true, detection.SeverityLow},
		{"400m is medium", 400, true, detection.SeverityMedium},
		{"600m is high", 600, true, detection.SeverityHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(detection.Config{}, stubZones{}, stubRoutes{dist: tt.dist, known: true})
			cands := e.Evaluate(context.Background(), walkingProfile(now))

			c := candidateOf(cands, detection.TypeRouteDeviation)
			if !tt.wantFlag {
				if c != nil {
					t.Fatalf("expected no route deviation, got %+v", c)
				}
				return
			}
			if c == nil {
				t.Fatal("expected a route deviation candidate")
			}
			if c.Severity != tt.wantSeverity {
				t.Errorf("expected severity %s, got %s", tt.wantSeverity, c.Severity)
			}
			if c.Confidence < 0.7 || c.Confidence > 1.0 {
				t.Errorf("confidence out of [0.7, 1.0]: %f", c.Confidence)
			}
		})
	}
}

func TestEngine_RouteDeviation_ConfidenceMonotonic(t *testing.T) {
	prev := 0.0
	for _, dist := range []float64{201, 300, 500, 900, 2000} {
		e := newEngine(detection.Config{}, stubZones{}, stubRoutes{dist: dist, known: true})
		c := candidateOf(e.Evaluate(context.Background(), walkingProfile(now)), detection.TypeRouteDeviation)
		if c == nil {
			t.Fatalf("expected candidate at %f", dist)
		}
		if c.Confidence < prev {
			t.Errorf("confidence not monotonic at %fm: %f < %f", dist, c.Confidence, prev)
		}
		prev = c.Confidence
	}
	if prev != 1.0 {
		t.Errorf("expected confidence to reach 1.0 for extreme deviation, got %f", prev)
	}
}

func TestEngine_NoRouteDeviationWithoutCorridors(t *testing.T) {
	e := newEngine(detection.Config{}, stubZones{}, stubRoutes{known: false})
	if c := candidateOf(e.Evaluate(context.Background(), walkingProfile(now)), detection.TypeRouteDeviation); c != nil {
		t.Errorf("expected no candidate without known corridors, got %+v", c)
	}
}

func TestEngine_Inactivity(t *testing.T) {
	tests := []struct {
		name         string
		silence      time.Duration
		wantFlag     bool
		wantSeverity detection.Severity
	}{
		{"1h59m not flagged", time.Hour + 59*time.Minute, false, ""},
		{"2h01m is medium", 2*time.Hour + time.Minute, true, detection.SeverityMedium},
		{"4h01m is high", 4*time.Hour + time.Minute, true, detection.SeverityHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(detection.Config{}, stubZones{}, stubRoutes{})
			p := walkingProfile(now.Add(-tt.silence))
			p.ActivityPattern = profile.ActivityInactive

			c := candidateOf(e.Evaluate(context.Background(), p), detection.TypeInactivity)
			if !tt.wantFlag {
				if c != nil {
					t.Fatalf("expected no inactivity candidate, got %+v", c)
				}
				return
			}
			if c == nil {
				t.Fatal("expected an inactivity candidate")
			}
			if c.Severity != tt.wantSeverity {
				t.Errorf("expected severity %s, got %s", tt.wantSeverity, c.Severity)
			}
			if c.Confidence != 0.9 {
				t.Errorf("expected fixed confidence 0.9, got %f", c.Confidence)
			}
		})
	}
}

func TestEngine_SpeedAnomaly(t *testing.T) {
	speed := func(kmh float64) *float64 { return &kmh }

	tests := []struct {
		name         string
		baseline     float64
		current      float64
		wantFlag     bool
		wantSeverity detection.Severity
	}{
		{"within band", 20, 28, false, ""},
		{"medium deviation", 25, 45, true, detection.SeverityMedium},
		{"high deviation", 10, 30, true, detection.SeverityHigh},
		{"slowdown flags too", 20, 5, true, detection.SeverityMedium},
		{"zero baseline never flags", 0, 50, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(detection.Config{}, stubZones{}, stubRoutes{})
			p := walkingProfile(now)
			p.BaselineSpeedKmh = tt.baseline
			p.Recent[1].SpeedKmh = speed(tt.current)

			c := candidateOf(e.Evaluate(context.Background(), p), detection.TypeSpeedAnomaly)
			if !tt.wantFlag {
				if c != nil {
					t.Fatalf("expected no speed candidate, got %+v", c)
				}
				return
			}
			if c == nil {
				t.Fatal("expected a speed anomaly candidate")
			}
			if c.Severity != tt.wantSeverity {
				t.Errorf("expected severity %s, got %s", tt.wantSeverity, c.Severity)
			}
			if c.Confidence != 0.85 {
				t.Errorf("expected fixed confidence 0.85, got %f", c.Confidence)
			}
		})
	}
}

func TestEngine_ZoneBreach(t *testing.T) {
	dangerous := geofence.Zone{
		ID: "z1", Name: "Collapsed Bridge", SafetyLevel: geofence.SafetyDangerous,
		RiskFactors: []string{"structural damage"},
	}

	t.Run("dangerous zone flags high with confidence 1.0", func(t *testing.T) {
		e := newEngine(detection.Config{}, stubZones{matches: []geofence.Match{{Zone: dangerous}}}, stubRoutes{})
		c := candidateOf(e.Evaluate(context.Background(), walkingProfile(now)), detection.TypeZoneBreach)
		if c == nil {
			t.Fatal("expected a zone breach candidate")
		}
		if c.Severity != detection.SeverityHigh {
			t.Errorf("expected high severity, got %s", c.Severity)
		}
		if c.Confidence != 1.0 {
			t.Errorf("expected confidence 1.0, got %f", c.Confidence)
		}
	})

	t.Run("three or more risk factors escalate to critical", func(t *testing.T) {
		z := dangerous
		z.RiskFactors = []string{"landslide", "no lighting", "no cell coverage"}
		e := newEngine(detection.Config{}, stubZones{matches: []geofence.Match{{Zone: z}}}, stubRoutes{})
		c := candidateOf(e.Evaluate(context.Background(), walkingProfile(now)), detection.TypeZoneBreach)
		if c == nil || c.Severity != detection.SeverityCritical {
			t.Errorf("expected critical severity, got %+v", c)
		}
	})

	t.Run("safe and moderate zones never flag", func(t *testing.T) {
		for _, lvl := range []geofence.SafetyLevel{geofence.SafetySafe, geofence.SafetyModerate} {
			z := dangerous
			z.SafetyLevel = lvl
			e := newEngine(detection.Config{}, stubZones{matches: []geofence.Match{{Zone: z}}}, stubRoutes{})
			if c := candidateOf(e.Evaluate(context.Background(), walkingProfile(now)), detection.TypeZoneBreach); c != nil {
				t.Errorf("%s zone should not flag, got %+v", lvl, c)
			}
		}
	})
}

func TestEngine_CommunicationLoss(t *testing.T) {
	t.Run("active tourist with silent device flags", func(t *testing.T) {
		e := newEngine(detection.Config{}, stubZones{}, stubRoutes{})
		p := walkingProfile(now)
		p.LastCommunicationAt = now.Add(-45 * time.Minute)

		c := candidateOf(e.Evaluate(context.Background(), p), detection.TypeCommunicationLoss)
		if c == nil {
			t.Fatal("expected a communication loss candidate")
		}
		if c.Severity != detection.SeverityMedium {
			t.Errorf("expected medium severity, got %s", c.Severity)
		}
	})

	t.Run("inactive tourist does not flag", func(t *testing.T) {
		e := newEngine(detection.Config{}, stubZones{}, stubRoutes{})
		p := walkingProfile(now)
		p.ActivityPattern = profile.ActivityInactive
		p.LastCommunicationAt = now.Add(-45 * time.Minute)

		if c := candidateOf(e.Evaluate(context.Background(), p), detection.TypeCommunicationLoss); c != nil {
			t.Errorf("inactivity should not double as communication loss, got %+v", c)
		}
	})

	t.Run("inside grace period does not flag", func(t *testing.T) {
		e := newEngine(detection.Config{}, stubZones{}, stubRoutes{})
		p := walkingProfile(now)
		p.LastCommunicationAt = now.Add(-10 * time.Minute)

		if c := candidateOf(e.Evaluate(context.Background(), p), detection.TypeCommunicationLoss); c != nil {
			t.Errorf("expected no candidate inside grace period, got %+v", c)
		}
	})
}

func TestEngine_PanicPattern(t *testing.T) {
	heading := func(deg float64) *float64 { return &deg }

	t.Run("repeated direction reversals flag critical", func(t *testing.T) {
		e := newEngine(detection.Config{}, stubZones{}, stubRoutes{})
		p := walkingProfile(now)
		p.Recent = nil
		// Five samples a few seconds apart, heading flipping ~180 each step.
		for i, h := range []float64{10, 190, 5, 185, 15} {
			p.Recent = append(p.Recent, profile.LocationPoint{
				Lat: 30.7346, Lng: 79.0669,
				Timestamp:      now.Add(time.Duration(i-4) * 10 * time.Second),
				HeadingDegrees: heading(h),
			})
		}

		c := candidateOf(e.Evaluate(context.Background(), p), detection.TypePanicPattern)
		if c == nil {
			t.Fatal("expected a panic pattern candidate")
		}
		if c.Severity != detection.SeverityCritical {
			t.Errorf("panic pattern must be critical, got %s", c.Severity)
		}
	})

	t.Run("steady walk does not flag", func(t *testing.T) {
		e := newEngine(detection.Config{}, stubZones{}, stubRoutes{})
		p := walkingProfile(now)
		p.Recent = nil
		for i := 0; i < 5; i++ {
			p.Recent = append(p.Recent, profile.LocationPoint{
				Lat: 30.7346 + float64(i)*0.0001, Lng: 79.0669,
				Timestamp:      now.Add(time.Duration(i-4) * 10 * time.Second),
				HeadingDegrees: heading(0),
			})
		}

		if c := candidateOf(e.Evaluate(context.Background(), p), detection.TypePanicPattern); c != nil {
			t.Errorf("steady walk should not flag panic, got %+v", c)
		}
	})

	t.Run("erratic speed oscillation flags", func(t *testing.T) {
		e := newEngine(detection.Config{}, stubZones{}, stubRoutes{})
		speed := func(kmh float64) *float64 { return &kmh }
		p := walkingProfile(now)
		p.Recent = nil
		for i, s := range []float64{2, 30, 1, 28, 2} {
			p.Recent = append(p.Recent, profile.LocationPoint{
				Lat: 30.7346, Lng: 79.0669,
				Timestamp: now.Add(time.Duration(i-4) * 10 * time.Second),
				SpeedKmh:  speed(s),
			})
		}

		c := candidateOf(e.Evaluate(context.Background(), p), detection.TypePanicPattern)
		if c == nil {
			t.Fatal("expected a panic pattern candidate from speed oscillation")
		}
	})
}

func TestEngine_IndependentSignalsFireTogether(t *testing.T) {
	dangerous := geofence.Zone{ID: "z1", Name: "Washout", SafetyLevel: geofence.SafetyDangerous}
	e := newEngine(detection.Config{},
		stubZones{matches: []geofence.Match{{Zone: dangerous}}},
		stubRoutes{dist: 600, known: true})

	speed := 45.0
	p := walkingProfile(now)
	p.BaselineSpeedKmh = 10
	p.Recent[1].SpeedKmh = &speed

	cands := e.Evaluate(context.Background(), p)
	for _, typ := range []detection.Type{
		detection.TypeRouteDeviation,
		detection.TypeSpeedAnomaly,
		detection.TypeZoneBreach,
	} {
		if candidateOf(cands, typ) == nil {
			t.Errorf("expected %s to fire independently", typ)
		}
	}
}
