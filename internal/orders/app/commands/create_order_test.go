package commands_test

import (
	"context"
	"errors"
	"testing"

	"github.com/dejobratic/orderflow/internal/orders/app/commands"
	"github.com/dejobratic/orderflow/internal/orders/domain"
	"github.com/dejobratic/orderflow/internal/orders/ports"
)

type mockRepository struct {
	createFn     func(ctx context.Context, order domain.Order) error
	getByIDFn    func(ctx context.Context, id string) (*domain.Order, error)
	transitionFn func(ctx context.Context, id string, from, to domain.OrderStatus) (*domain.Order, error)
}

func (m *mockRepository) Create(ctx context.Context, order domain.Order) error {
	if m.createFn != nil {
		return m.createFn(ctx, order)
	}
	return nil
}

func (m *mockRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, ports.ErrNotFound
}

func (m *mockRepository) List(ctx context.Context, filter ports.ListFilter) ([]domain.Order, error) {
	return nil, nil
}

func (m *mockRepository) TransitionStatus(ctx context.Context, id string, from, to domain.OrderStatus) (*domain.Order, error) {
	if m.transitionFn != nil {
		return m.transitionFn(ctx, id, from, to)
	}
	return nil, ports.ErrNotFound
}

type mockPublisher struct {
	publishCreatedFn   func(ctx context.Context, order domain.Order) error
	publishConfirmedFn func(ctx context.Context, order domain.Order) error

	createdCalls   int
	confirmedCalls int
}

func (m *mockPublisher) PublishOrderCreated(ctx context.Context, order domain.Order) error {
	m.createdCalls++
	if m.publishCreatedFn != nil {
		return m.publishCreatedFn(ctx, order)
	}
	return nil
}

func (m *mockPublisher) PublishOrderConfirmed(ctx context.Context, order domain.Order) error {
	m.confirmedCalls++
	if m.publishConfirmedFn != nil {
		return m.publishConfirmedFn(ctx, order)
	}
	return nil
}

func validCommand() commands.CreateOrderCommand {
	return commands.CreateOrderCommand{
		CustomerName:  "Test Customer",
		CustomerEmail: "test@example.com",
		LineItems: []domain.LineItem{
			{ProductID: "A", ProductName: "Widget", Quantity: 2, UnitPriceCents: 1000},
			{ProductID: "B", ProductName: "Gadget", Quantity: 1, UnitPriceCents: 500},
		},
	}
}

func TestCreateOrder(t *testing.T) {
	t.Run("creates pending order with derived total", func(t *testing.T) {
		repo := &mockRepository{}
		events := &mockPublisher{}
		handler := commands.NewCreateOrderCommandHandler(repo, events)

		cmd := validCommand()

		order, err := handler.Handle(context.Background(), cmd)

		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if order == nil {
			t.Fatal("expected order to be returned, got nil")
		}
		if order.TotalAmountCents != 2500 {
			t.Errorf("expected total 2500, got %d", order.TotalAmountCents)
		}
		if order.Status != domain.StatusPending {
			t.Errorf("expected status %s, got %s", domain.StatusPending, order.Status)
		}
		if order.ID == "" {
			t.Error("expected order ID to be generated")
		}
		if events.createdCalls != 1 {
			t.Errorf("expected exactly one order.created publish, got %d", events.createdCalls)
		}
	})

	t.Run("returns validation error when email is empty", func(t *testing.T) {
		repo := &mockRepository{}
		events := &mockPublisher{}
		handler := commands.NewCreateOrderCommandHandler(repo, events)

		cmd := validCommand()
		cmd.CustomerEmail = ""

		order, err := handler.Handle(context.Background(), cmd)

		var vErr domain.ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got: %v", err)
		}
		if order != nil {
			t.Errorf("expected nil order, got %+v", order)
		}
		if events.createdCalls != 0 {
			t.Errorf("expected no publish on validation failure, got %d", events.createdCalls)
		}
	})

	t.Run("returns validation error when line items are empty", func(t *testing.T) {
		repo := &mockRepository{}
		events := &mockPublisher{}
		handler := commands.NewCreateOrderCommandHandler(repo, events)

		cmd := validCommand()
		cmd.LineItems = nil

		order, err := handler.Handle(context.Background(), cmd)

		var vErr domain.ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got: %v", err)
		}
		if order != nil {
			t.Errorf("expected nil order, got %+v", order)
		}
	})

	t.Run("returns validation error when quantity is zero", func(t *testing.T) {
		repo := &mockRepository{}
		events := &mockPublisher{}
		handler := commands.NewCreateOrderCommandHandler(repo, events)

		cmd := validCommand()
		cmd.LineItems[0].Quantity = 0

		order, err := handler.Handle(context.Background(), cmd)

		var vErr domain.ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got: %v", err)
		}
		if order != nil {
			t.Errorf("expected nil order, got %+v", order)
		}
	})

	t.Run("returns validation error when unit price is negative", func(t *testing.T) {
		repo := &mockRepository{}
		events := &mockPublisher{}
		handler := commands.NewCreateOrderCommandHandler(repo, events)

		cmd := validCommand()
		cmd.LineItems[1].UnitPriceCents = -500

		order, err := handler.Handle(context.Background(), cmd)

		var vErr domain.ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got: %v", err)
		}
		if order != nil {
			t.Errorf("expected nil order, got %+v", order)
		}
	})

	t.Run("returns error when repository fails", func(t *testing.T) {
		repoErr := errors.New("database connection failed")
		repo := &mockRepository{
			createFn: func(ctx context.Context, order domain.Order) error {
				return repoErr
			},
		}
		events := &mockPublisher{}
		handler := commands.NewCreateOrderCommandHandler(repo, events)

		order, err := handler.Handle(context.Background(), validCommand())

		if !errors.Is(err, repoErr) {
			t.Errorf("expected error to wrap repository error, got: %v", err)
		}
		if order != nil {
			t.Errorf("expected nil order, got %+v", order)
		}
		if events.createdCalls != 0 {
			t.Errorf("expected no publish when persistence fails, got %d", events.createdCalls)
		}
	})

	t.Run("returns committed order alongside publish error", func(t *testing.T) {
		eventErr := errors.New("bus unavailable")
		repo := &mockRepository{}
		events := &mockPublisher{
			publishCreatedFn: func(ctx context.Context, order domain.Order) error {
				return eventErr
			},
		}
		handler := commands.NewCreateOrderCommandHandler(repo, events)

		order, err := handler.Handle(context.Background(), validCommand())

		if !errors.Is(err, eventErr) {
			t.Fatalf("expected publish error, got: %v", err)
		}
		if order == nil {
			t.Fatal("expected committed order to be returned even on publish error")
		}
		if order.Status != domain.StatusPending {
			t.Errorf("expected status %s, got %s", domain.StatusPending, order.Status)
		}
	})
}
