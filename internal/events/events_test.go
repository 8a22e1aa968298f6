package events_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/dejobratic/orderflow/internal/events"
)

func TestNewEnvelope(t *testing.T) {
	t.Run("keys the envelope by order id", func(t *testing.T) {
		payload := events.OrderCreated{
			OrderID:          "order-1",
			CustomerEmail:    "test@example.com",
			TotalAmountCents: 2500,
		}

		env, err := events.NewEnvelope(events.TopicOrderCreated, payload.OrderID, payload)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}

		if env.Key != "order-1" {
			t.Errorf("expected key order-1, got %s", env.Key)
		}
		if env.Topic != events.TopicOrderCreated {
			t.Errorf("expected topic %s, got %s", events.TopicOrderCreated, env.Topic)
		}
		if env.ID == "" {
			t.Error("expected envelope ID to be generated")
		}
		if env.OccurredAt.IsZero() {
			t.Error("expected occurred_at to be set")
		}
	})
}

func TestDecode(t *testing.T) {
	t.Run("decodes order created payload", func(t *testing.T) {
		payload := events.OrderCreated{
			OrderID:          "order-1",
			CustomerName:     "Test Customer",
			CustomerEmail:    "test@example.com",
			TotalAmountCents: 2500,
			Items: []events.Item{
				{ProductID: "A", ProductName: "Widget", Quantity: 2, UnitPriceCents: 1000},
			},
			Status:    "pending",
			CreatedAt: time.Now().UTC(),
		}

		env, err := events.NewEnvelope(events.TopicOrderCreated, payload.OrderID, payload)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}

		decoded, err := events.Decode(env)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}

		created, ok := decoded.(events.OrderCreated)
		if !ok {
			t.Fatalf("expected OrderCreated, got %T", decoded)
		}
		if created.OrderID != payload.OrderID {
			t.Errorf("expected order id %s, got %s", payload.OrderID, created.OrderID)
		}
		if created.TotalAmountCents != 2500 {
			t.Errorf("expected total 2500, got %d", created.TotalAmountCents)
		}
		if len(created.Items) != 1 {
			t.Fatalf("expected 1 item, got %d", len(created.Items))
		}
	})

	t.Run("decodes order confirmed payload", func(t *testing.T) {
		payload := events.OrderConfirmed{
			OrderID:       "order-2",
			CustomerEmail: "test@example.com",
			Status:        "confirmed",
		}

		env, err := events.NewEnvelope(events.TopicOrderConfirmed, payload.OrderID, payload)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}

		decoded, err := events.Decode(env)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}

		if _, ok := decoded.(events.OrderConfirmed); !ok {
			t.Fatalf("expected OrderConfirmed, got %T", decoded)
		}
	})

	t.Run("returns ErrUnknownTopic for topics outside the schema set", func(t *testing.T) {
		env := events.Envelope{
			ID:      "evt-1",
			Topic:   "order.shipped",
			Key:     "order-3",
			Payload: json.RawMessage(`{}`),
		}

		_, err := events.Decode(env)
		if !errors.Is(err, events.ErrUnknownTopic) {
			t.Fatalf("expected ErrUnknownTopic, got: %v", err)
		}
	})

	t.Run("returns error for malformed payload", func(t *testing.T) {
		env := events.Envelope{
			ID:      "evt-2",
			Topic:   events.TopicOrderCreated,
			Key:     "order-4",
			Payload: json.RawMessage(`{not json`),
		}

		if _, err := events.Decode(env); err == nil {
			t.Fatal("expected error, got nil")
		}
	})
}
