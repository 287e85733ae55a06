package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/safetrail/safetrail/internal/monitor"
	"github.com/safetrail/safetrail/internal/profile"
)

// PubSubHandler handles Pub/Sub messages for the worker. It lets the
// scheduler or the console trigger sweeps out of band of the interval
// loop, and it feeds relayed telemetry into the worker's profile store
// so those sweeps have tourists to evaluate.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	sweepJob         *SweepJob
	monitor          *monitor.Service
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	SweepJob         *SweepJob
	Monitor          *monitor.Service
	Logger           zerolog.Logger
}

// SweepMessage represents a worker job message. Sweep jobs carry only
// the job type, evaluate_tourist names the tourist, and
// location_sample carries one relayed telemetry fix.
type SweepMessage struct {
	JobType   string `json:"job_type"`
	TouristID string `json:"tourist_id,omitempty"`

	Lat            float64   `json:"lat,omitempty"`
	Lng            float64   `json:"lng,omitempty"`
	Timestamp      time.Time `json:"timestamp,omitzero"`
	AccuracyMeters float64   `json:"accuracy_meters,omitempty"`
	SpeedKmh       *float64  `json:"speed_kmh,omitempty"`
	HeadingDegrees *float64  `json:"heading_degrees,omitempty"`
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// Configure receive settings.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 10
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		sweepJob:         cfg.SweepJob,
		monitor:          cfg.Monitor,
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	startTime := time.Now()

	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	logger.Debug().Msg("received pubsub message")

	var sweepMsg SweepMessage
	if err := json.Unmarshal(msg.Data, &sweepMsg); err != nil {
		logger.Error().Err(err).Msg("failed to parse message")
		msg.Nack()
		return
	}

	var err error
	switch sweepMsg.JobType {
	case "detection_sweep":
		err = h.handleSweep(ctx)
	case "evaluate_tourist":
		err = h.handleEvaluateTourist(ctx, sweepMsg)
	case "location_sample":
		err = h.handleLocationSample(ctx, sweepMsg)
	default:
		logger.Warn().Str("job_type", sweepMsg.JobType).Msg("unknown job type")
		msg.Ack() // Ack unknown messages to prevent redelivery
		return
	}

	if err != nil {
		logger.Error().Err(err).Msg("job failed")
		msg.Nack()
		return
	}

	duration := time.Since(startTime)
	logger.Info().
		Str("job_type", sweepMsg.JobType).
		Dur("duration", duration).
		Msg("job completed successfully")

	msg.Ack()
}

func (h *PubSubHandler) handleSweep(ctx context.Context) error {
	result := h.sweepJob.Run(ctx)

	// A sweep where most evaluations failed should be redelivered.
	if result.Failed > result.Evaluated-result.Failed {
		return fmt.Errorf("too many sweep failures: %d/%d", result.Failed, result.Evaluated)
	}
	return nil
}

func (h *PubSubHandler) handleEvaluateTourist(ctx context.Context, msg SweepMessage) error {
	if msg.TouristID == "" {
		// Nothing to evaluate; redelivery would not help.
		h.logger.Warn().Msg("evaluate_tourist message without tourist_id")
		return nil
	}

	created, err := h.monitor.EvaluateTourist(ctx, msg.TouristID)
	if errors.Is(err, profile.ErrUnknownTourist) {
		// Archived or never tracked; redelivery would not help.
		h.logger.Warn().Str("tourist_id", msg.TouristID).Msg("tourist not tracked")
		return nil
	}
	if err != nil {
		return fmt.Errorf("evaluating tourist %s: %w", msg.TouristID, err)
	}

	h.logger.Info().
		Str("tourist_id", msg.TouristID).
		Int("alerts_raised", len(created)).
		Msg("tourist evaluated")
	return nil
}

func (h *PubSubHandler) handleLocationSample(ctx context.Context, msg SweepMessage) error {
	if msg.TouristID == "" {
		// No profile to attach the fix to; redelivery would not help.
		h.logger.Warn().Msg("location_sample message without tourist_id")
		return nil
	}

	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	_, created, err := h.monitor.IngestLocation(ctx, msg.TouristID, profile.LocationPoint{
		Lat:            msg.Lat,
		Lng:            msg.Lng,
		Timestamp:      ts,
		AccuracyMeters: msg.AccuracyMeters,
		SpeedKmh:       msg.SpeedKmh,
		HeadingDegrees: msg.HeadingDegrees,
	})
	if errors.Is(err, profile.ErrStaleLocation) {
		// Out-of-order delivery; a newer sample already won.
		h.logger.Debug().Str("tourist_id", msg.TouristID).Msg("stale location sample dropped")
		return nil
	}
	if err != nil {
		return fmt.Errorf("ingesting location for %s: %w", msg.TouristID, err)
	}

	h.logger.Info().
		Str("tourist_id", msg.TouristID).
		Int("alerts_raised", len(created)).
		Msg("location sample ingested")
	return nil
}
