package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds notification dispatch instrumentation.
type Metrics struct {
	notificationsDispatchedTotal metric.Int64Counter
	duplicatesSkippedTotal       metric.Int64Counter
	deliveryDuration             metric.Float64Histogram
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.notificationsDispatchedTotal, err = meter.Int64Counter(
		"notifications_dispatched_total",
		metric.WithDescription("Total notifications reaching a terminal delivery state"),
		metric.WithUnit("{notification}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create notifications_dispatched_total counter: %w", err)
	}

	m.duplicatesSkippedTotal, err = meter.Int64Counter(
		"notification_duplicates_skipped_total",
		metric.WithDescription("Redelivered events absorbed by the idempotency check"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create notification_duplicates_skipped_total counter: %w", err)
	}

	m.deliveryDuration, err = meter.Float64Histogram(
		"notification_delivery_duration_seconds",
		metric.WithDescription("Notification delivery attempt duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create notification_delivery_duration histogram: %w", err)
	}

	return m, nil
}

func (m *Metrics) RecordDispatched(ctx context.Context, topic string, success bool) {
	m.notificationsDispatchedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("topic", topic),
		attribute.String("status", statusLabel(success)),
	))
}

func (m *Metrics) RecordDuplicateSkipped(ctx context.Context, topic string) {
	m.duplicatesSkippedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("topic", topic),
	))
}

func (m *Metrics) RecordDeliveryDuration(ctx context.Context, topic string, durationSeconds float64) {
	m.deliveryDuration.Record(ctx, durationSeconds, metric.WithAttributes(
		attribute.String("topic", topic),
	))
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
