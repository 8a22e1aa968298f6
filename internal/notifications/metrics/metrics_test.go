package metrics

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := mp.Meter("test")

	metrics, err := NewMetrics(meter)
	if err != nil {
		t.Fatalf("NewMetrics() failed: %v", err)
	}
	return metrics, reader
}

func TestInitializeMetrics(t *testing.T) {
	t.Run("initializes all metric instruments successfully", func(t *testing.T) {
		metrics, _ := newTestMetrics(t)

		if metrics.notificationsDispatchedTotal == nil {
			t.Error("notificationsDispatchedTotal is nil")
		}
		if metrics.duplicatesSkippedTotal == nil {
			t.Error("duplicatesSkippedTotal is nil")
		}
		if metrics.deliveryDuration == nil {
			t.Error("deliveryDuration is nil")
		}
	})
}

func TestRecordDispatched(t *testing.T) {
	t.Run("records dispatched count with topic and status labels", func(t *testing.T) {
		metrics, reader := newTestMetrics(t)
		ctx := context.Background()

		metrics.RecordDispatched(ctx, "order.created", true)
		metrics.RecordDispatched(ctx, "order.created", false)

		var rm metricdata.ResourceMetrics
		if err := reader.Collect(ctx, &rm); err != nil {
			t.Fatalf("Failed to collect metrics: %v", err)
		}

		found := false
		for _, sm := range rm.ScopeMetrics {
			for _, m := range sm.Metrics {
				if m.Name == "notifications_dispatched_total" {
					found = true
					sum, ok := m.Data.(metricdata.Sum[int64])
					if !ok {
						t.Fatal("Expected Sum[int64] data type")
					}
					if len(sum.DataPoints) != 2 {
						t.Errorf("Expected 2 data points, got %d", len(sum.DataPoints))
					}
				}
			}
		}

		if !found {
			t.Error("notifications_dispatched_total metric not found")
		}
	})
}

func TestRecordDeliveryDuration(t *testing.T) {
	t.Run("records delivery duration", func(t *testing.T) {
		metrics, reader := newTestMetrics(t)
		ctx := context.Background()

		metrics.RecordDeliveryDuration(ctx, "order.confirmed", 1.1)

		var rm metricdata.ResourceMetrics
		if err := reader.Collect(ctx, &rm); err != nil {
			t.Fatalf("Failed to collect metrics: %v", err)
		}

		found := false
		for _, sm := range rm.ScopeMetrics {
			for _, m := range sm.Metrics {
				if m.Name == "notification_delivery_duration_seconds" {
					found = true
					histogram, ok := m.Data.(metricdata.Histogram[float64])
					if !ok {
						t.Fatal("Expected Histogram[float64] data type")
					}
					if histogram.DataPoints[0].Count != 1 {
						t.Errorf("Expected count=1, got %d", histogram.DataPoints[0].Count)
					}
				}
			}
		}

		if !found {
			t.Error("notification_delivery_duration_seconds metric not found")
		}
	})
}
