package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safetrail/safetrail/internal/alert"
	"github.com/safetrail/safetrail/internal/detection"
)

func testEvent() Event {
	return Event{
		Kind:       KindAlertCreated,
		OccurredAt: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		TouristID:  "t-1",
		AlertID:    "alr_test",
		AlertType:  string(detection.TypeZoneBreach),
		Severity:   string(detection.SeverityHigh),
		Status:     string(alert.StatusNew),
		Lat:        35.0116,
		Lng:        135.7681,
		Confidence: 1.0,
	}
}

func TestWebhookSinkDelivers(t *testing.T) {
	var got atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var e Event
		require.NoError(t, json.NewDecoder(r.Body).Decode(&e))
		got.Store(e)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	sink := NewWebhookSink(WebhookConfig{URL: server.URL}, zerolog.Nop())
	sink.Deliver(context.Background(), testEvent())
	sink.Flush()

	e, ok := got.Load().(Event)
	require.True(t, ok, "endpoint should have received the event")
	assert.Equal(t, KindAlertCreated, e.Kind)
	assert.Equal(t, "t-1", e.TouristID)
	assert.Equal(t, "alr_test", e.AlertID)
}

func TestWebhookSinkRetriesOn5xx(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sink := NewWebhookSink(WebhookConfig{
		URL:             server.URL,
		MaxRetries:      5,
		InitialInterval: 5 * time.Millisecond,
		MaxInterval:     20 * time.Millisecond,
	}, zerolog.Nop())
	sink.Deliver(context.Background(), testEvent())
	sink.Flush()

	assert.Equal(t, int32(3), attempts.Load())
}

func TestWebhookSinkDoesNotRetry4xx(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	sink := NewWebhookSink(WebhookConfig{
		URL:             server.URL,
		InitialInterval: 5 * time.Millisecond,
	}, zerolog.Nop())
	sink.Deliver(context.Background(), testEvent())
	sink.Flush()

	assert.Equal(t, int32(1), attempts.Load())
}

type recordingSink struct {
	events []Event
}

func (s *recordingSink) Deliver(_ context.Context, e Event) {
	s.events = append(s.events, e)
}

func TestNotifierFansOutAlertEvents(t *testing.T) {
	sink := &recordingSink{}
	notifier := New(sink)

	a := &alert.Alert{
		ID:         "alr_1",
		Type:       detection.TypeInactivity,
		TouristID:  "t-9",
		Severity:   detection.SeverityMedium,
		Lat:        48.8584,
		Lng:        2.2945,
		Confidence: 0.9,
		DetectedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Status:     alert.StatusNew,
	}

	notifier.AlertCreated(context.Background(), a)
	a.Status = alert.StatusAcknowledged
	a.UpdatedAt = a.DetectedAt.Add(time.Minute)
	notifier.AlertStatusChanged(context.Background(), a, alert.StatusNew)
	notifier.EmergencyDispatched(context.Background(), "t-9", 48.8584, 2.2945, a.UpdatedAt)

	require.Len(t, sink.events, 3)
	assert.Equal(t, KindAlertCreated, sink.events[0].Kind)
	assert.Equal(t, KindAlertStatusChanged, sink.events[1].Kind)
	assert.Equal(t, string(alert.StatusNew), sink.events[1].PreviousStatus)
	assert.Equal(t, KindEmergencyDispatched, sink.events[2].Kind)
	assert.Equal(t, "t-9", sink.events[2].TouristID)
}
