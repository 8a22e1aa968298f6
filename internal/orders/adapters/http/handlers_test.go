package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	orderhttp "github.com/dejobratic/orderflow/internal/orders/adapters/http"
	"github.com/dejobratic/orderflow/internal/orders/adapters/memory"
	"github.com/dejobratic/orderflow/internal/orders/app"
	"github.com/dejobratic/orderflow/internal/orders/domain"
	"github.com/dejobratic/orderflow/internal/orders/metrics"
)

type stubPublisher struct {
	createdCalls   int
	confirmedCalls int
}

func (p *stubPublisher) PublishOrderCreated(context.Context, domain.Order) error {
	p.createdCalls++
	return nil
}

func (p *stubPublisher) PublishOrderConfirmed(context.Context, domain.Order) error {
	p.confirmedCalls++
	return nil
}

func newTestServer(t *testing.T) (*httptest.Server, *stubPublisher) {
	t.Helper()

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	orderMetrics, err := metrics.NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics() failed: %v", err)
	}

	publisher := &stubPublisher{}
	service := app.NewService(memory.NewRepository(), publisher, logger, orderMetrics)

	mux := http.NewServeMux()
	orderhttp.NewHandler(service).Register(mux)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return server, publisher
}

func createOrderPayload() []byte {
	payload := map[string]any{
		"customer_name":  "Jane Doe",
		"customer_email": "jane@example.com",
		"line_items": []map[string]any{
			{"product_id": "prod-1", "product_name": "Widget", "quantity": 2, "unit_price_cents": 1000},
		},
	}
	body, _ := json.Marshal(payload)
	return body
}

func createOrder(t *testing.T, server *httptest.Server) domain.Order {
	t.Helper()

	resp, err := http.Post(server.URL+"/v1/orders", "application/json", bytes.NewReader(createOrderPayload()))
	if err != nil {
		t.Fatalf("create request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var result struct {
		Order domain.Order `json:"order"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return result.Order
}

func TestCreateOrderEndpoint(t *testing.T) {
	t.Run("creates order and publishes event", func(t *testing.T) {
		server, publisher := newTestServer(t)

		order := createOrder(t, server)

		if order.ID == "" {
			t.Error("expected generated order id")
		}
		if order.Status != domain.StatusPending {
			t.Errorf("expected pending status, got %s", order.Status)
		}
		if order.TotalAmountCents != 2000 {
			t.Errorf("expected total 2000, got %d", order.TotalAmountCents)
		}
		if publisher.createdCalls != 1 {
			t.Errorf("expected one order.created publish, got %d", publisher.createdCalls)
		}
	})

	t.Run("rejects invalid JSON", func(t *testing.T) {
		server, _ := newTestServer(t)

		resp, err := http.Post(server.URL+"/v1/orders", "application/json", bytes.NewReader([]byte("{not json")))
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", resp.StatusCode)
		}
	})

	t.Run("rejects order without line items", func(t *testing.T) {
		server, publisher := newTestServer(t)

		body, _ := json.Marshal(map[string]any{
			"customer_name":  "Jane Doe",
			"customer_email": "jane@example.com",
		})
		resp, err := http.Post(server.URL+"/v1/orders", "application/json", bytes.NewReader(body))
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", resp.StatusCode)
		}
		if publisher.createdCalls != 0 {
			t.Errorf("expected no publish on validation failure, got %d", publisher.createdCalls)
		}
	})
}

func TestGetOrderEndpoint(t *testing.T) {
	t.Run("returns order by id", func(t *testing.T) {
		server, _ := newTestServer(t)
		order := createOrder(t, server)

		resp, err := http.Get(server.URL + "/v1/orders/" + order.ID)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}

		var result struct {
			Order domain.Order `json:"order"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if result.Order.ID != order.ID {
			t.Errorf("expected order %s, got %s", order.ID, result.Order.ID)
		}
	})

	t.Run("returns 404 for unknown order", func(t *testing.T) {
		server, _ := newTestServer(t)

		resp, err := http.Get(server.URL + "/v1/orders/missing")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("expected 404, got %d", resp.StatusCode)
		}
	})
}

func TestListOrdersEndpoint(t *testing.T) {
	t.Run("filters by status", func(t *testing.T) {
		server, _ := newTestServer(t)
		order := createOrder(t, server)
		createOrder(t, server)

		resp, err := http.Post(server.URL+"/v1/orders/"+order.ID+"/confirm", "application/json", nil)
		if err != nil {
			t.Fatalf("confirm request failed: %v", err)
		}
		resp.Body.Close()

		resp, err = http.Get(server.URL + "/v1/orders?status=confirmed")
		if err != nil {
			t.Fatalf("list request failed: %v", err)
		}
		defer resp.Body.Close()

		var result struct {
			Orders []domain.Order `json:"orders"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if len(result.Orders) != 1 {
			t.Fatalf("expected 1 confirmed order, got %d", len(result.Orders))
		}
		if result.Orders[0].ID != order.ID {
			t.Errorf("expected order %s, got %s", order.ID, result.Orders[0].ID)
		}
	})
}

func TestConfirmOrderEndpoint(t *testing.T) {
	t.Run("confirms pending order", func(t *testing.T) {
		server, publisher := newTestServer(t)
		order := createOrder(t, server)

		resp, err := http.Post(server.URL+"/v1/orders/"+order.ID+"/confirm", "application/json", nil)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}

		var result struct {
			Order domain.Order `json:"order"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if result.Order.Status != domain.StatusConfirmed {
			t.Errorf("expected confirmed status, got %s", result.Order.Status)
		}
		if publisher.confirmedCalls != 1 {
			t.Errorf("expected one order.confirmed publish, got %d", publisher.confirmedCalls)
		}
	})

	t.Run("returns 409 when already confirmed", func(t *testing.T) {
		server, _ := newTestServer(t)
		order := createOrder(t, server)

		resp, err := http.Post(server.URL+"/v1/orders/"+order.ID+"/confirm", "application/json", nil)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()

		resp, err = http.Post(server.URL+"/v1/orders/"+order.ID+"/confirm", "application/json", nil)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusConflict {
			t.Errorf("expected 409, got %d", resp.StatusCode)
		}
	})

	t.Run("returns 404 for unknown order", func(t *testing.T) {
		server, _ := newTestServer(t)

		resp, err := http.Post(server.URL+"/v1/orders/missing/confirm", "application/json", nil)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("expected 404, got %d", resp.StatusCode)
		}
	})
}

func TestCancelOrderEndpoint(t *testing.T) {
	t.Run("cancels pending order without publishing", func(t *testing.T) {
		server, publisher := newTestServer(t)
		order := createOrder(t, server)

		resp, err := http.Post(server.URL+"/v1/orders/"+order.ID+"/cancel", "application/json", nil)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}

		var result struct {
			Order domain.Order `json:"order"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if result.Order.Status != domain.StatusCancelled {
			t.Errorf("expected cancelled status, got %s", result.Order.Status)
		}
		if publisher.confirmedCalls != 0 {
			t.Errorf("expected no event for cancellation, got %d", publisher.confirmedCalls)
		}
	})

	t.Run("returns 409 when order is cancelled already", func(t *testing.T) {
		server, _ := newTestServer(t)
		order := createOrder(t, server)

		resp, err := http.Post(server.URL+"/v1/orders/"+order.ID+"/cancel", "application/json", nil)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()

		resp, err = http.Post(server.URL+"/v1/orders/"+order.ID+"/cancel", "application/json", nil)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusConflict {
			t.Errorf("expected 409, got %d", resp.StatusCode)
		}
	})
}
