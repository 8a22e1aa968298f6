package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dejobratic/orderflow/internal/orders/domain"
	"github.com/dejobratic/orderflow/internal/orders/ports"
)

// Repository persists orders in postgres. Line items are stored as a jsonb
// snapshot since they are immutable after creation and never queried
// individually.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, order domain.Order) error {
	items, err := json.Marshal(order.LineItems)
	if err != nil {
		return fmt.Errorf("marshal line items: %w", err)
	}

	query := `
		INSERT INTO orders (id, customer_name, customer_email, line_items, total_amount_cents, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = r.pool.Exec(ctx, query,
		order.ID,
		order.CustomerName,
		order.CustomerEmail,
		items,
		order.TotalAmountCents,
		order.Status,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	return nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	query := `
		SELECT id, customer_name, customer_email, line_items, total_amount_cents, status, created_at, updated_at
		FROM orders
		WHERE id = $1
	`

	order, err := scanOrder(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("select order: %w", err)
	}

	return order, nil
}

func (r *Repository) List(ctx context.Context, filter ports.ListFilter) ([]domain.Order, error) {
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	query := `
		SELECT id, customer_name, customer_email, line_items, total_amount_cents, status, created_at, updated_at
		FROM orders
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	var statusFilter *string
	if filter.Status != nil {
		s := string(*filter.Status)
		statusFilter = &s
	}

	offset := (page - 1) * pageSize

	rows, err := r.pool.Query(ctx, query, statusFilter, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}

	return orders, nil
}

// TransitionStatus performs the compare-and-set in a single statement, so a
// concurrent transition on the same order cannot slip between read and write.
func (r *Repository) TransitionStatus(ctx context.Context, id string, from, to domain.OrderStatus) (*domain.Order, error) {
	query := `
		UPDATE orders
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
		RETURNING id, customer_name, customer_email, line_items, total_amount_cents, status, created_at, updated_at
	`

	order, err := scanOrder(r.pool.QueryRow(ctx, query, to, time.Now().UTC(), id, from))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Either the order does not exist or its status moved on.
			if _, getErr := r.GetByID(ctx, id); getErr != nil {
				return nil, getErr
			}
			return nil, ports.ErrStatusConflict
		}
		return nil, fmt.Errorf("update order status: %w", err)
	}

	return order, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var order domain.Order
	var items []byte
	if err := row.Scan(
		&order.ID,
		&order.CustomerName,
		&order.CustomerEmail,
		&items,
		&order.TotalAmountCents,
		&order.Status,
		&order.CreatedAt,
		&order.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(items, &order.LineItems); err != nil {
		return nil, fmt.Errorf("unmarshal line items: %w", err)
	}

	return &order, nil
}
