package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dejobratic/orderflow/internal/notifications/adapters/memory"
	"github.com/dejobratic/orderflow/internal/notifications/domain"
	"github.com/dejobratic/orderflow/internal/notifications/ports"
)

func testNotification(id, orderID, topic string) domain.Notification {
	return domain.Notification{
		ID:        id,
		OrderID:   orderID,
		Topic:     topic,
		Channel:   domain.ChannelEmail,
		Recipient: "jane@example.com",
		Subject:   "Your order has been received",
		Body:      "Hi Jane",
		Status:    domain.StatusPending,
		CreatedAt: time.Now().UTC(),
	}
}

func TestRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("create and find by dedup key", func(t *testing.T) {
		repo := memory.NewRepository()

		if err := repo.Create(ctx, testNotification("n-1", "order-1", "order.created")); err != nil {
			t.Fatalf("create: %v", err)
		}

		found, err := repo.FindByDedupKey(ctx, "order-1", "order.created")
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if found.ID != "n-1" {
			t.Errorf("expected n-1, got %s", found.ID)
		}
	})

	t.Run("create rejects duplicate dedup key", func(t *testing.T) {
		repo := memory.NewRepository()

		if err := repo.Create(ctx, testNotification("n-1", "order-1", "order.created")); err != nil {
			t.Fatalf("create: %v", err)
		}

		err := repo.Create(ctx, testNotification("n-2", "order-1", "order.created"))
		if !errors.Is(err, ports.ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got: %v", err)
		}
	})

	t.Run("find by unknown dedup key returns not found", func(t *testing.T) {
		repo := memory.NewRepository()

		_, err := repo.FindByDedupKey(ctx, "missing", "order.created")
		if !errors.Is(err, ports.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got: %v", err)
		}
	})

	t.Run("mark sent sets terminal state and timestamp", func(t *testing.T) {
		repo := memory.NewRepository()

		if err := repo.Create(ctx, testNotification("n-1", "order-1", "order.created")); err != nil {
			t.Fatalf("create: %v", err)
		}

		sentAt := time.Now().UTC()
		if err := repo.MarkSent(ctx, "n-1", sentAt); err != nil {
			t.Fatalf("mark sent: %v", err)
		}

		found, err := repo.FindByDedupKey(ctx, "order-1", "order.created")
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if found.Status != domain.StatusSent {
			t.Errorf("expected sent, got %s", found.Status)
		}
		if found.SentAt == nil || !found.SentAt.Equal(sentAt) {
			t.Errorf("expected sent_at %v, got %v", sentAt, found.SentAt)
		}
	})

	t.Run("mark failed records reason", func(t *testing.T) {
		repo := memory.NewRepository()

		if err := repo.Create(ctx, testNotification("n-1", "order-1", "order.created")); err != nil {
			t.Fatalf("create: %v", err)
		}

		if err := repo.MarkFailed(ctx, "n-1", "provider rejected message"); err != nil {
			t.Fatalf("mark failed: %v", err)
		}

		found, err := repo.FindByDedupKey(ctx, "order-1", "order.created")
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if found.Status != domain.StatusFailed {
			t.Errorf("expected failed, got %s", found.Status)
		}
		if found.FailureReason != "provider rejected message" {
			t.Errorf("unexpected reason: %s", found.FailureReason)
		}
	})

	t.Run("mark on unknown id returns not found", func(t *testing.T) {
		repo := memory.NewRepository()

		if err := repo.MarkSent(ctx, "missing", time.Now().UTC()); !errors.Is(err, ports.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got: %v", err)
		}
		if err := repo.MarkFailed(ctx, "missing", "x"); !errors.Is(err, ports.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got: %v", err)
		}
	})

	t.Run("find by order id returns all topics for the order", func(t *testing.T) {
		repo := memory.NewRepository()

		created := testNotification("n-1", "order-1", "order.created")
		confirmed := testNotification("n-2", "order-1", "order.confirmed")
		confirmed.CreatedAt = created.CreatedAt.Add(time.Second)
		other := testNotification("n-3", "order-2", "order.created")

		for _, n := range []domain.Notification{created, confirmed, other} {
			if err := repo.Create(ctx, n); err != nil {
				t.Fatalf("create: %v", err)
			}
		}

		found, err := repo.FindByOrderID(ctx, "order-1")
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if len(found) != 2 {
			t.Fatalf("expected 2 notifications, got %d", len(found))
		}
		if found[0].ID != "n-1" || found[1].ID != "n-2" {
			t.Errorf("expected creation order, got %s then %s", found[0].ID, found[1].ID)
		}
	})

	t.Run("list returns everything ordered by creation time", func(t *testing.T) {
		repo := memory.NewRepository()

		first := testNotification("n-1", "order-1", "order.created")
		second := testNotification("n-2", "order-2", "order.created")
		second.CreatedAt = first.CreatedAt.Add(time.Second)

		if err := repo.Create(ctx, second); err != nil {
			t.Fatalf("create: %v", err)
		}
		if err := repo.Create(ctx, first); err != nil {
			t.Fatalf("create: %v", err)
		}

		all, err := repo.List(ctx)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(all) != 2 || all[0].ID != "n-1" {
			t.Errorf("expected n-1 first, got %+v", all)
		}
	})
}
