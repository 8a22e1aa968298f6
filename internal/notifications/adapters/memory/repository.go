package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dejobratic/orderflow/internal/notifications/domain"
	"github.com/dejobratic/orderflow/internal/notifications/ports"
)

// Repository keeps notifications in memory, indexed by id and dedup key.
type Repository struct {
	mu      sync.RWMutex
	byID    map[string]domain.Notification
	byDedup map[string]string
}

func NewRepository() *Repository {
	return &Repository{
		byID:    make(map[string]domain.Notification),
		byDedup: make(map[string]string),
	}
}

func (r *Repository) Create(_ context.Context, notification domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := notification.DedupKey()
	if _, taken := r.byDedup[key]; taken {
		return ports.ErrAlreadyExists
	}

	r.byID[notification.ID] = notification
	r.byDedup[key] = notification.ID
	return nil
}

func (r *Repository) MarkSent(_ context.Context, id string, sentAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	notification, ok := r.byID[id]
	if !ok {
		return ports.ErrNotFound
	}

	notification.Status = domain.StatusSent
	notification.SentAt = &sentAt
	notification.FailureReason = ""
	r.byID[id] = notification
	return nil
}

func (r *Repository) MarkFailed(_ context.Context, id string, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	notification, ok := r.byID[id]
	if !ok {
		return ports.ErrNotFound
	}

	notification.Status = domain.StatusFailed
	notification.FailureReason = reason
	r.byID[id] = notification
	return nil
}

func (r *Repository) List(_ context.Context) ([]domain.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Notification, 0, len(r.byID))
	for _, notification := range r.byID {
		result = append(result, notification)
	}

	sortByCreatedAt(result)
	return result, nil
}

func (r *Repository) FindByOrderID(_ context.Context, orderID string) ([]domain.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []domain.Notification
	for _, notification := range r.byID {
		if notification.OrderID == orderID {
			result = append(result, notification)
		}
	}

	sortByCreatedAt(result)
	return result, nil
}

func (r *Repository) FindByDedupKey(_ context.Context, orderID, topic string) (*domain.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byDedup[domain.DedupKey(orderID, topic)]
	if !ok {
		return nil, ports.ErrNotFound
	}

	notification := r.byID[id]
	return &notification, nil
}

func sortByCreatedAt(notifications []domain.Notification) {
	sort.Slice(notifications, func(i, j int) bool {
		return notifications[i].CreatedAt.Before(notifications[j].CreatedAt)
	})
}
