package domain

import (
	"fmt"
	"strings"
	"time"
)

// OrderStatus captures the lifecycle of an order in the system.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusConfirmed OrderStatus = "confirmed"
	StatusShipped   OrderStatus = "shipped"
	StatusDelivered OrderStatus = "delivered"
	StatusCancelled OrderStatus = "cancelled"
)

// transitions encodes the legal state machine edges.
var transitions = map[OrderStatus][]OrderStatus{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusShipped, StatusCancelled},
	StatusShipped:   {StatusDelivered},
}

// LineItem is a single product position on an order.
type LineItem struct {
	ProductID      string `json:"product_id"`
	ProductName    string `json:"product_name"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

// Order represents a purchase request managed by the system.
type Order struct {
	ID               string      `json:"id"`
	CustomerName     string      `json:"customer_name"`
	CustomerEmail    string      `json:"customer_email"`
	LineItems        []LineItem  `json:"line_items"`
	TotalAmountCents int64       `json:"total_amount_cents"`
	Status           OrderStatus `json:"status"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// ValidationError reports input that violates business constraints. It is
// returned before any state is mutated.
type ValidationError string

func (e ValidationError) Error() string { return string(e) }

// InvalidTransitionError reports a requested transition the current status
// forbids. The order is left unchanged.
type InvalidTransitionError struct {
	OrderID string
	From    OrderStatus
	To      OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("order %s: cannot transition from %s to %s", e.OrderID, e.From, e.To)
}

// Validate ensures the order adheres to business constraints.
func (o Order) Validate() error {
	if strings.TrimSpace(o.CustomerName) == "" {
		return ValidationError("customer_name is required")
	}
	if strings.TrimSpace(o.CustomerEmail) == "" {
		return ValidationError("customer_email is required")
	}
	if !strings.Contains(o.CustomerEmail, "@") {
		return ValidationError("customer_email must be valid")
	}
	if len(o.LineItems) == 0 {
		return ValidationError("line_items must not be empty")
	}
	for i, item := range o.LineItems {
		if strings.TrimSpace(item.ProductID) == "" {
			return ValidationError(fmt.Sprintf("line_items[%d].product_id is required", i))
		}
		if item.Quantity < 1 {
			return ValidationError(fmt.Sprintf("line_items[%d].quantity must be at least 1", i))
		}
		if item.UnitPriceCents < 0 {
			return ValidationError(fmt.Sprintf("line_items[%d].unit_price_cents must not be negative", i))
		}
	}
	if o.TotalAmountCents != TotalAmount(o.LineItems) {
		return ValidationError("total_amount_cents must equal the sum of line item totals")
	}
	return nil
}

// TotalAmount derives the order total from its line items. The total is fixed
// at creation and never recomputed afterwards.
func TotalAmount(items []LineItem) int64 {
	var total int64
	for _, item := range items {
		total += int64(item.Quantity) * item.UnitPriceCents
	}
	return total
}

// CanTransitionTo reports whether the state machine permits moving to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal indicates whether the order is in a terminal state.
func (o Order) IsTerminal() bool {
	switch o.Status {
	case StatusDelivered, StatusCancelled:
		return true
	default:
		return false
	}
}
