package bus

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records bus-level instrumentation shared by all publisher
// implementations.
type Metrics struct {
	publishLatency metric.Float64Histogram
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.publishLatency, err = meter.Float64Histogram(
		"bus_publish_latency_seconds",
		metric.WithDescription("Event bus publish latency"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create bus_publish_latency histogram: %w", err)
	}

	return m, nil
}

func (m *Metrics) RecordPublish(ctx context.Context, topic Topic, durationSeconds float64, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.publishLatency.Record(ctx, durationSeconds, metric.WithAttributes(
		attribute.String("topic", string(topic)),
		attribute.String("status", status),
	))
}
