package profile_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/safetrail/safetrail/internal/profile"
)

var base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func point(ts time.Time, lat, lng float64, speedKmh float64) profile.LocationPoint {
	return profile.LocationPoint{
		Lat:            lat,
		Lng:            lng,
		Timestamp:      ts,
		AccuracyMeters: 10,
		SpeedKmh:       &speedKmh,
	}
}

func TestStore_RecordLocation_CreatesProfile(t *testing.T) {
	store := profile.NewStore(profile.DefaultConfig())
	ctx := context.Background()

	p, err := store.RecordLocation(ctx, "t1", point(base, 30.7346, 79.0669, 18))
	if err != nil {
		t.Fatalf("record location: %v", err)
	}

	if p.TouristID != "t1" {
		t.Errorf("expected tourist t1, got %q", p.TouristID)
	}
	if !p.LastActivityAt.Equal(base) {
		t.Errorf("expected lastActivityAt %v, got %v", base, p.LastActivityAt)
	}
	if p.BaselineSpeedKmh != 18 {
		t.Errorf("expected baseline 18, got %f", p.BaselineSpeedKmh)
	}
}

func TestStore_RecordLocation_RejectsStaleSample(t *testing.T) {
	store := profile.NewStore(profile.DefaultConfig())
	ctx := context.Background()

	if _, err := store.RecordLocation(ctx, "t1", point(base, 30.7346, 79.0669, 20)); err != nil {
		t.Fatalf("record location: %v", err)
	}

	_, err := store.RecordLocation(ctx, "t1", point(base.Add(-time.Minute), 30.7, 79.0, 90))
	if !errors.Is(err, profile.ErrStaleLocation) {
		t.Fatalf("expected ErrStaleLocation, got %v", err)
	}

	// The rejected sample must not have touched anything.
	p, err := store.Get(ctx, "t1")
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if !p.LastActivityAt.Equal(base) {
		t.Errorf("lastActivityAt mutated by stale sample: %v", p.LastActivityAt)
	}
	if p.BaselineSpeedKmh != 20 {
		t.Errorf("baseline mutated by stale sample: %f", p.BaselineSpeedKmh)
	}
	if len(p.Recent) != 1 {
		t.Errorf("recent window mutated by stale sample: %d points", len(p.Recent))
	}
}

func TestStore_RecordLocation_EqualTimestampAccepted(t *testing.T) {
	store := profile.NewStore(profile.DefaultConfig())
	ctx := context.Background()

	if _, err := store.RecordLocation(ctx, "t1", point(base, 30.7346, 79.0669, 20)); err != nil {
		t.Fatalf("record location: %v", err)
	}
	if _, err := store.RecordLocation(ctx, "t1", point(base, 30.7346, 79.0669, 20)); err != nil {
		t.Fatalf("equal timestamp should be accepted, got %v", err)
	}
}

func TestStore_RecordLocation_EWMABaseline(t *testing.T) {
	store := profile.NewStore(profile.DefaultConfig())
	ctx := context.Background()

	if _, err := store.RecordLocation(ctx, "t1", point(base, 30.7346, 79.0669, 20)); err != nil {
		t.Fatalf("record location: %v", err)
	}
	p, err := store.RecordLocation(ctx, "t1", point(base.Add(time.Minute), 30.7356, 79.0669, 45))
	if err != nil {
		t.Fatalf("record location: %v", err)
	}

	// 0.2*45 + 0.8*20 = 25
	if p.BaselineSpeedKmh < 24.999 || p.BaselineSpeedKmh > 25.001 {
		t.Errorf("expected EWMA baseline 25, got %f", p.BaselineSpeedKmh)
	}
}

func TestStore_RecordLocation_DerivesSpeedFromDisplacement(t *testing.T) {
	store := profile.NewStore(profile.DefaultConfig())
	ctx := context.Background()

	first := profile.LocationPoint{Lat: 30.0, Lng: 79.0, Timestamp: base, AccuracyMeters: 5}
	if _, err := store.RecordLocation(ctx, "t1", first); err != nil {
		t.Fatalf("record location: %v", err)
	}

	// ~1112 meters north in 10 minutes: ~6.7 km/h.
	second := profile.LocationPoint{Lat: 30.01, Lng: 79.0, Timestamp: base.Add(10 * time.Minute), AccuracyMeters: 5}
	p, err := store.RecordLocation(ctx, "t1", second)
	if err != nil {
		t.Fatalf("record location: %v", err)
	}

	if p.BaselineSpeedKmh < 6 || p.BaselineSpeedKmh > 7.5 {
		t.Errorf("expected derived baseline ~6.7 km/h, got %f", p.BaselineSpeedKmh)
	}
}

func TestStore_ActivityPattern(t *testing.T) {
	tests := []struct {
		name     string
		interval time.Duration
		samples  int
		want     profile.ActivityPattern
	}{
		{"every 20 minutes is active", 20 * time.Minute, 18, profile.ActivityActive},
		{"every 90 minutes is moderate", 90 * time.Minute, 4, profile.ActivityModerate},
		{"two samples six hours apart is inactive", 5 * time.Hour, 2, profile.ActivityInactive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := profile.NewStore(profile.DefaultConfig())
			ctx := context.Background()

			ts := base
			for i := 0; i < tt.samples; i++ {
				if _, err := store.RecordLocation(ctx, "t1", point(ts, 30.7, 79.0, 5)); err != nil {
					t.Fatalf("record location: %v", err)
				}
				ts = ts.Add(tt.interval)
			}

			p, err := store.Get(ctx, "t1")
			if err != nil {
				t.Fatalf("get profile: %v", err)
			}
			if p.ActivityPattern != tt.want {
				t.Errorf("expected %s, got %s", tt.want, p.ActivityPattern)
			}
		})
	}
}

func TestStore_RecentWindowBounded(t *testing.T) {
	store := profile.NewStore(profile.Config{WindowSize: 5})
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		pt := point(base.Add(time.Duration(i)*time.Minute), 30.7, 79.0, 5)
		if _, err := store.RecordLocation(ctx, "t1", pt); err != nil {
			t.Fatalf("record location: %v", err)
		}
	}

	p, err := store.Get(ctx, "t1")
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if len(p.Recent) != 5 {
		t.Fatalf("expected window of 5, got %d", len(p.Recent))
	}
	// Oldest evicted: the first retained sample is minute 5.
	if !p.Recent[0].Timestamp.Equal(base.Add(5 * time.Minute)) {
		t.Errorf("expected oldest retained sample at +5m, got %v", p.Recent[0].Timestamp)
	}
}

func TestStore_RecordCommunication(t *testing.T) {
	store := profile.NewStore(profile.DefaultConfig())
	ctx := context.Background()

	if err := store.RecordCommunication(ctx, "ghost", base); !errors.Is(err, profile.ErrUnknownTourist) {
		t.Fatalf("expected ErrUnknownTourist, got %v", err)
	}

	if _, err := store.RecordLocation(ctx, "t1", point(base, 30.7, 79.0, 5)); err != nil {
		t.Fatalf("record location: %v", err)
	}

	// Three pings inside the hour, one outside.
	for _, offset := range []time.Duration{0, 10 * time.Minute, 20 * time.Minute, 90 * time.Minute} {
		if err := store.RecordCommunication(ctx, "t1", base.Add(offset)); err != nil {
			t.Fatalf("record communication: %v", err)
		}
	}

	p, err := store.Get(ctx, "t1")
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	// The last ping at +90m pushed the first (at +0) out of the window.
	if p.CommunicationFrequencyPerHour != 3 {
		t.Errorf("expected 3 pings/hour, got %f", p.CommunicationFrequencyPerHour)
	}
	if !p.LastCommunicationAt.Equal(base.Add(90 * time.Minute)) {
		t.Errorf("unexpected lastCommunicationAt %v", p.LastCommunicationAt)
	}
}

func TestStore_Archive(t *testing.T) {
	store := profile.NewStore(profile.DefaultConfig())
	ctx := context.Background()

	if _, err := store.RecordLocation(ctx, "t1", point(base, 30.7, 79.0, 5)); err != nil {
		t.Fatalf("record location: %v", err)
	}

	if err := store.Archive(ctx, "t1"); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if _, err := store.Get(ctx, "t1"); !errors.Is(err, profile.ErrUnknownTourist) {
		t.Errorf("expected ErrUnknownTourist after archive, got %v", err)
	}
	if err := store.Archive(ctx, "t1"); !errors.Is(err, profile.ErrUnknownTourist) {
		t.Errorf("expected ErrUnknownTourist on double archive, got %v", err)
	}
	if ids := store.TrackedIDs(); len(ids) != 0 {
		t.Errorf("expected no tracked tourists, got %v", ids)
	}
}

func TestStore_SnapshotIsolation(t *testing.T) {
	store := profile.NewStore(profile.DefaultConfig())
	ctx := context.Background()

	if _, err := store.RecordLocation(ctx, "t1", point(base, 30.7, 79.0, 5)); err != nil {
		t.Fatalf("record location: %v", err)
	}

	snap, err := store.Get(ctx, "t1")
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}

	if _, err := store.RecordLocation(ctx, "t1", point(base.Add(time.Minute), 30.71, 79.0, 6)); err != nil {
		t.Fatalf("record location: %v", err)
	}

	if len(snap.Recent) != 1 {
		t.Errorf("snapshot mutated by later write: %d points", len(snap.Recent))
	}
}
