package notify

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/safetrail/safetrail/internal/notify"

// DeliveryMetrics holds metrics for outbound notification deliveries.
type DeliveryMetrics struct {
	deliveryDuration metric.Float64Histogram
	deliveryTotal    metric.Int64Counter
}

// NewDeliveryMetrics creates metrics for monitoring notification sinks.
func NewDeliveryMetrics() (*DeliveryMetrics, error) {
	meter := otel.Meter(meterName)

	deliveryDuration, err := meter.Float64Histogram(
		"notify.delivery.duration",
		metric.WithDescription("Duration of notification deliveries in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	deliveryTotal, err := meter.Int64Counter(
		"notify.delivery.total",
		metric.WithDescription("Total number of notification deliveries"),
		metric.WithUnit("{delivery}"),
	)
	if err != nil {
		return nil, err
	}

	return &DeliveryMetrics{
		deliveryDuration: deliveryDuration,
		deliveryTotal:    deliveryTotal,
	}, nil
}

// Record records one delivery attempt. Safe on a nil receiver so sinks
// can run without metrics wired.
func (m *DeliveryMetrics) Record(sink, kind string, duration time.Duration, err error) {
	if m == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("sink", sink),
		attribute.String("event.kind", kind),
	}
	if err != nil {
		attrs = append(attrs, attribute.Bool("error", true))
	}

	// Deliveries outlive request contexts, so record against background.
	ctx := context.Background()
	m.deliveryDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.deliveryTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}
