package alert

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safetrail/safetrail/internal/detection"
)

type recordingNotifier struct {
	mu       sync.Mutex
	created  []string
	changed  []string
	previous []Status
}

func (n *recordingNotifier) AlertCreated(_ context.Context, a *Alert) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.created = append(n.created, a.ID)
}

func (n *recordingNotifier) AlertStatusChanged(_ context.Context, a *Alert, prev Status) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changed = append(n.changed, a.ID)
	n.previous = append(n.previous, prev)
}

func newTestService(t *testing.T) (*Service, *recordingNotifier) {
	t.Helper()
	notifier := &recordingNotifier{}
	svc := NewService(Config{}, NewInMemoryRepository(), notifier, zerolog.Nop())
	return svc, notifier
}

func candidateAt(touristID string, typ detection.Type, at time.Time) detection.Candidate {
	return detection.Candidate{
		Type:        typ,
		TouristID:   touristID,
		Lat:         35.0116,
		Lng:         135.7681,
		Description: "distance from corridor exceeds threshold",
		Confidence:  0.85,
		Severity:    detection.SeverityMedium,
		DetectedAt:  at,
	}
}

func TestServiceIngestCreatesAlert(t *testing.T) {
	svc, notifier := newTestService(t)
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	a, created, err := svc.Ingest(context.Background(), candidateAt("t-1", detection.TypeRouteDeviation, now))
	require.NoError(t, err)
	require.True(t, created)

	assert.NotEmpty(t, a.ID)
	assert.Equal(t, StatusNew, a.Status)
	assert.Equal(t, detection.TypeRouteDeviation, a.Type)
	assert.Equal(t, "t-1", a.TouristID)
	assert.Equal(t, now, a.DetectedAt)
	assert.Equal(t, []string{a.ID}, notifier.created)
}

// wrappingRepository decorates LatestOpen errors the way a persistence
// layer adding query context would.
type wrappingRepository struct {
	Repository
}

func (r wrappingRepository) LatestOpen(ctx context.Context, touristID string, typ detection.Type) (*Alert, error) {
	a, err := r.Repository.LatestOpen(ctx, touristID, typ)
	if err != nil {
		return nil, fmt.Errorf("querying open alerts: %w", err)
	}
	return a, nil
}

func TestServiceIngestHandlesWrappedNotFound(t *testing.T) {
	svc := NewService(Config{}, wrappingRepository{NewInMemoryRepository()}, nil, zerolog.Nop())
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	a, created, err := svc.Ingest(context.Background(), candidateAt("t-1", detection.TypeInactivity, now))
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotNil(t, a)
}

func TestServiceIngestSuppressesWithinWindow(t *testing.T) {
	svc, notifier := newTestService(t)
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	first, created, err := svc.Ingest(context.Background(), candidateAt("t-1", detection.TypeInactivity, now))
	require.NoError(t, err)
	require.True(t, created)

	// Same tourist and type four minutes later collapses into the
	// open alert.
	second, created, err := svc.Ingest(context.Background(), candidateAt("t-1", detection.TypeInactivity, now.Add(4*time.Minute)))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, notifier.created, 1)

	// Past the window a fresh alert is created.
	third, created, err := svc.Ingest(context.Background(), candidateAt("t-1", detection.TypeInactivity, now.Add(5*time.Minute)))
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, third.ID)
}

func TestServiceIngestDoesNotSuppressAcrossTypesOrTourists(t *testing.T) {
	svc, _ := newTestService(t)
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	_, created, err := svc.Ingest(context.Background(), candidateAt("t-1", detection.TypeInactivity, now))
	require.NoError(t, err)
	require.True(t, created)

	_, created, err = svc.Ingest(context.Background(), candidateAt("t-1", detection.TypeSpeedAnomaly, now.Add(time.Minute)))
	require.NoError(t, err)
	assert.True(t, created, "different type should not be suppressed")

	_, created, err = svc.Ingest(context.Background(), candidateAt("t-2", detection.TypeInactivity, now.Add(time.Minute)))
	require.NoError(t, err)
	assert.True(t, created, "different tourist should not be suppressed")
}

func TestServiceIngestResolvedAlertDoesNotSuppress(t *testing.T) {
	svc, _ := newTestService(t)
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	a, _, err := svc.Ingest(context.Background(), candidateAt("t-1", detection.TypeZoneBreach, now))
	require.NoError(t, err)

	_, err = svc.Acknowledge(context.Background(), a.ID)
	require.NoError(t, err)
	_, err = svc.Investigate(context.Background(), a.ID)
	require.NoError(t, err)
	_, err = svc.Resolve(context.Background(), a.ID)
	require.NoError(t, err)

	_, created, err := svc.Ingest(context.Background(), candidateAt("t-1", detection.TypeZoneBreach, now.Add(time.Minute)))
	require.NoError(t, err)
	assert.True(t, created, "resolved alert should not suppress new candidates")
}

func TestServiceForwardTransitions(t *testing.T) {
	svc, notifier := newTestService(t)
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	a, _, err := svc.Ingest(context.Background(), candidateAt("t-1", detection.TypePanicPattern, now))
	require.NoError(t, err)

	ack, err := svc.Acknowledge(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusAcknowledged, ack.Status)

	inv, err := svc.Investigate(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusInvestigating, inv.Status)

	res, err := svc.Resolve(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusResolved, res.Status)

	assert.Equal(t, []Status{StatusNew, StatusAcknowledged, StatusInvestigating}, notifier.previous)
}

func TestServiceRejectsSkippedAndBackwardTransitions(t *testing.T) {
	svc, _ := newTestService(t)
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	ctx := context.Background()

	a, _, err := svc.Ingest(ctx, candidateAt("t-1", detection.TypeCommunicationLoss, now))
	require.NoError(t, err)

	// new → investigating and new → resolved skip a step.
	_, err = svc.Investigate(ctx, a.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = svc.Resolve(ctx, a.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// The failed attempts left the alert untouched.
	got, err := svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusNew, got.Status)

	_, err = svc.Acknowledge(ctx, a.ID)
	require.NoError(t, err)
	_, err = svc.Investigate(ctx, a.ID)
	require.NoError(t, err)
	_, err = svc.Resolve(ctx, a.ID)
	require.NoError(t, err)

	// Resolved is terminal.
	for _, call := range []func(context.Context, string) (*Alert, error){svc.Acknowledge, svc.Investigate, svc.Resolve} {
		_, err = call(ctx, a.ID)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	}
}

func TestServiceTransitionUnknownAlert(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Acknowledge(context.Background(), "alr_missing")
	assert.ErrorIs(t, err, ErrAlertNotFound)
}

func TestServiceConcurrentIngestDeduplicates(t *testing.T) {
	svc, _ := newTestService(t)
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	var mu sync.Mutex
	createdCount := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, created, err := svc.Ingest(context.Background(), candidateAt("t-1", detection.TypeRouteDeviation, now))
			require.NoError(t, err)
			if created {
				mu.Lock()
				createdCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, createdCount)
}
