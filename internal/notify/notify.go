// Package notify pushes alert lifecycle and emergency dispatch events to
// downstream responders. Delivery is asynchronous and best effort: a slow
// or failing channel never blocks detection or SOS handling.
package notify

import (
	"context"
	"time"

	"github.com/safetrail/safetrail/internal/alert"
)

// Event kinds carried on every channel.
const (
	KindAlertCreated        = "alert.created"
	KindAlertStatusChanged  = "alert.status_changed"
	KindEmergencyDispatched = "emergency.dispatched"
)

// Event is the wire payload delivered to webhooks and Pub/Sub.
type Event struct {
	Kind           string    `json:"kind"`
	OccurredAt     time.Time `json:"occurred_at"`
	TouristID      string    `json:"tourist_id"`
	AlertID        string    `json:"alert_id,omitempty"`
	AlertType      string    `json:"alert_type,omitempty"`
	Severity       string    `json:"severity,omitempty"`
	Status         string    `json:"status,omitempty"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	Lat            float64   `json:"lat"`
	Lng            float64   `json:"lng"`
	Confidence     float64   `json:"confidence,omitempty"`
	Description    string    `json:"description,omitempty"`
}

// Sink delivers events to one downstream channel.
type Sink interface {
	Deliver(ctx context.Context, e Event)
}

// Notifier fans alert and dispatch events out to its sinks. It satisfies
// both the alert service's notifier and the SOS controller's dispatcher.
type Notifier struct {
	sinks []Sink
}

// New creates a notifier over the given sinks.
func New(sinks ...Sink) *Notifier {
	return &Notifier{sinks: sinks}
}

// AlertCreated publishes an alert.created event.
func (n *Notifier) AlertCreated(ctx context.Context, a *alert.Alert) {
	n.deliver(ctx, Event{
		Kind:        KindAlertCreated,
		OccurredAt:  a.DetectedAt,
		TouristID:   a.TouristID,
		AlertID:     a.ID,
		AlertType:   string(a.Type),
		Severity:    string(a.Severity),
		Status:      string(a.Status),
		Lat:         a.Lat,
		Lng:         a.Lng,
		Confidence:  a.Confidence,
		Description: a.Description,
	})
}

// AlertStatusChanged publishes an alert.status_changed event.
func (n *Notifier) AlertStatusChanged(ctx context.Context, a *alert.Alert, previous alert.Status) {
	n.deliver(ctx, Event{
		Kind:           KindAlertStatusChanged,
		OccurredAt:     a.UpdatedAt,
		TouristID:      a.TouristID,
		AlertID:        a.ID,
		AlertType:      string(a.Type),
		Severity:       string(a.Severity),
		Status:         string(a.Status),
		PreviousStatus: string(previous),
		Lat:            a.Lat,
		Lng:            a.Lng,
	})
}

// EmergencyDispatched publishes an emergency.dispatched event with the
// tourist's last known position.
func (n *Notifier) EmergencyDispatched(ctx context.Context, touristID string, lat, lng float64, at time.Time) {
	n.deliver(ctx, Event{
		Kind:       KindEmergencyDispatched,
		OccurredAt: at,
		TouristID:  touristID,
		Lat:        lat,
		Lng:        lng,
	})
}

func (n *Notifier) deliver(ctx context.Context, e Event) {
	for _, s := range n.sinks {
		s.Deliver(ctx, e)
	}
}

var _ alert.Notifier = (*Notifier)(nil)
