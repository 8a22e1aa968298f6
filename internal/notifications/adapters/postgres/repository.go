package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dejobratic/orderflow/internal/notifications/domain"
	"github.com/dejobratic/orderflow/internal/notifications/ports"
)

const uniqueViolationCode = "23505"

// Repository persists notifications in postgres. The unique index on
// (order_id, topic) is what enforces the one-notification-per-event-kind
// invariant across dispatcher instances.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, notification domain.Notification) error {
	query := `
		INSERT INTO notifications (id, order_id, topic, channel, recipient, subject, body, status, failure_reason, created_at, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.pool.Exec(ctx, query,
		notification.ID,
		notification.OrderID,
		notification.Topic,
		notification.Channel,
		notification.Recipient,
		notification.Subject,
		notification.Body,
		notification.Status,
		notification.FailureReason,
		notification.CreatedAt,
		notification.SentAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return ports.ErrAlreadyExists
		}
		return fmt.Errorf("insert notification: %w", err)
	}

	return nil
}

func (r *Repository) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	query := `
		UPDATE notifications
		SET status = $1, sent_at = $2, failure_reason = ''
		WHERE id = $3
	`

	tag, err := r.pool.Exec(ctx, query, domain.StatusSent, sentAt, id)
	if err != nil {
		return fmt.Errorf("mark notification sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrNotFound
	}

	return nil
}

func (r *Repository) MarkFailed(ctx context.Context, id string, reason string) error {
	query := `
		UPDATE notifications
		SET status = $1, failure_reason = $2
		WHERE id = $3
	`

	tag, err := r.pool.Exec(ctx, query, domain.StatusFailed, reason, id)
	if err != nil {
		return fmt.Errorf("mark notification failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrNotFound
	}

	return nil
}

func (r *Repository) List(ctx context.Context) ([]domain.Notification, error) {
	query := selectColumns + `
		FROM notifications
		ORDER BY created_at
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	return collectNotifications(rows)
}

func (r *Repository) FindByOrderID(ctx context.Context, orderID string) ([]domain.Notification, error) {
	query := selectColumns + `
		FROM notifications
		WHERE order_id = $1
		ORDER BY created_at
	`

	rows, err := r.pool.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("query notifications by order: %w", err)
	}
	defer rows.Close()

	return collectNotifications(rows)
}

func (r *Repository) FindByDedupKey(ctx context.Context, orderID, topic string) (*domain.Notification, error) {
	query := selectColumns + `
		FROM notifications
		WHERE order_id = $1 AND topic = $2
	`

	notification, err := scanNotification(r.pool.QueryRow(ctx, query, orderID, topic))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("select notification: %w", err)
	}

	return notification, nil
}

const selectColumns = `
		SELECT id, order_id, topic, channel, recipient, subject, body, status, failure_reason, created_at, sent_at`

func collectNotifications(rows pgx.Rows) ([]domain.Notification, error) {
	var notifications []domain.Notification
	for rows.Next() {
		notification, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, *notification)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}

	return notifications, nil
}

func scanNotification(row pgx.Row) (*domain.Notification, error) {
	var notification domain.Notification
	if err := row.Scan(
		&notification.ID,
		&notification.OrderID,
		&notification.Topic,
		&notification.Channel,
		&notification.Recipient,
		&notification.Subject,
		&notification.Body,
		&notification.Status,
		&notification.FailureReason,
		&notification.CreatedAt,
		&notification.SentAt,
	); err != nil {
		return nil, err
	}

	return &notification, nil
}
