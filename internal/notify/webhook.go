package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// ErrWebhookCircuitOpen is returned internally when the responder
// endpoint has been failing and deliveries are being shed.
var ErrWebhookCircuitOpen = errors.New("webhook circuit breaker is open")

// WebhookConfig holds settings for the responder webhook channel.
type WebhookConfig struct {
	// URL is the responder endpoint. Required.
	URL string

	// Timeout is the per-request timeout. Default: 10 seconds.
	Timeout time.Duration

	// MaxRetries is the number of retry attempts per event. Default: 3.
	MaxRetries uint64

	// InitialInterval is the first retry backoff. Default: 100ms.
	InitialInterval time.Duration

	// MaxInterval caps the retry backoff. Default: 5 seconds.
	MaxInterval time.Duration
}

func (c WebhookConfig) withDefaults() WebhookConfig {
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.InitialInterval == 0 {
		c.InitialInterval = 100 * time.Millisecond
	}
	if c.MaxInterval == 0 {
		c.MaxInterval = 5 * time.Second
	}
	return c
}

// WebhookSink POSTs events to a responder endpoint. Deliveries run on
// their own goroutine with retry and a circuit breaker, so intake never
// waits on the network.
type WebhookSink struct {
	cfg        WebhookConfig
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	logger     zerolog.Logger
	metrics    *DeliveryMetrics
	wg         sync.WaitGroup
}

// NewWebhookSink creates a webhook sink.
func NewWebhookSink(cfg WebhookConfig, logger zerolog.Logger) *WebhookSink {
	cfg = cfg.withDefaults()

	breaker := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "responder-webhook",
		MaxRequests: 1,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.5
		},
	})

	return &WebhookSink{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    breaker,
		logger:     logger.With().Str("component", "notify_webhook").Logger(),
	}
}

// WithMetrics records delivery outcomes on the given instruments.
func (s *WebhookSink) WithMetrics(m *DeliveryMetrics) *WebhookSink {
	s.metrics = m
	return s
}

// Deliver queues the event for asynchronous delivery.
func (s *WebhookSink) Deliver(_ context.Context, e Event) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		start := time.Now()
		err := s.post(e)
		s.metrics.Record("webhook", e.Kind, time.Since(start), err)
		if err != nil {
			s.logger.Error().Err(err).
				Str("kind", e.Kind).
				Str("tourist_id", e.TouristID).
				Msg("webhook delivery failed")
		}
	}()
}

// Flush waits for in-flight deliveries. For shutdown and tests.
func (s *WebhookSink) Flush() {
	s.wg.Wait()
}

func (s *WebhookSink) post(e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.cfg.InitialInterval
	bo.MaxInterval = s.cfg.MaxInterval
	bo.MaxElapsedTime = 0

	operation := func() error {
		resp, err := s.breaker.Execute(func() (*http.Response, error) {
			ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
			defer cancel()

			req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(body))
			if err != nil {
				return nil, err
			}
			req.Header.Set("Content-Type", "application/json")

			r, err := s.httpClient.Do(req)
			if err != nil {
				return nil, err
			}
			defer r.Body.Close()

			if r.StatusCode >= 500 {
				return nil, fmt.Errorf("responder returned %d", r.StatusCode)
			}
			return r, nil
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(ErrWebhookCircuitOpen)
			}
			return err
		}
		if resp.StatusCode >= 400 {
			// Client errors are not retryable.
			return backoff.Permanent(fmt.Errorf("responder rejected event: %d", resp.StatusCode))
		}
		return nil
	}

	return backoff.Retry(operation, backoff.WithMaxRetries(bo, s.cfg.MaxRetries))
}

var _ Sink = (*WebhookSink)(nil)
