package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// LogSink writes every event to the structured log. Always configured,
// so operators see the event stream even with no external channel.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink creates a log sink.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger.With().Str("component", "notify").Logger()}
}

// Deliver logs the event.
func (s *LogSink) Deliver(_ context.Context, e Event) {
	evt := s.logger.Info().
		Str("kind", e.Kind).
		Str("tourist_id", e.TouristID).
		Float64("lat", e.Lat).
		Float64("lng", e.Lng).
		Time("occurred_at", e.OccurredAt)
	if e.AlertID != "" {
		evt = evt.Str("alert_id", e.AlertID).
			Str("alert_type", e.AlertType).
			Str("severity", e.Severity).
			Str("status", e.Status)
	}
	evt.Msg("event")
}

var _ Sink = (*LogSink)(nil)
