package notify

import (
	"context"
	"encoding/json"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// PubSubConfig holds settings for the Pub/Sub event channel.
type PubSubConfig struct {
	ProjectID string
	TopicName string
}

// PubSubSink publishes events to a Pub/Sub topic for downstream
// consumers (dashboards, case management, the sweep worker).
type PubSubSink struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
	logger    zerolog.Logger
}

// NewPubSubSink creates a Pub/Sub sink.
func NewPubSubSink(ctx context.Context, cfg PubSubConfig, logger zerolog.Logger) (*PubSubSink, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, err
	}

	return &PubSubSink{
		client:    client,
		publisher: client.Publisher(cfg.TopicName),
		logger:    logger.With().Str("component", "notify_pubsub").Logger(),
	}, nil
}

// Deliver publishes the event. Publish batches internally; failures are
// logged when the result resolves.
func (s *PubSubSink) Deliver(ctx context.Context, e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		s.logger.Error().Err(err).Str("kind", e.Kind).Msg("encoding event")
		return
	}

	result := s.publisher.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"kind":       e.Kind,
			"tourist_id": e.TouristID,
		},
	})

	go func() {
		if _, err := result.Get(context.Background()); err != nil {
			s.logger.Error().Err(err).
				Str("kind", e.Kind).
				Str("tourist_id", e.TouristID).
				Msg("pubsub publish failed")
		}
	}()
}

// Close stops the publisher and releases the client.
func (s *PubSubSink) Close() error {
	s.publisher.Stop()
	return s.client.Close()
}

var _ Sink = (*PubSubSink)(nil)
