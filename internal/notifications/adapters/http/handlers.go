package http

import (
	"encoding/json"
	"net/http"

	"github.com/dejobratic/orderflow/internal/notifications/app"
)

// Handler exposes the notification read endpoints.
type Handler struct {
	service *app.Service
}

func NewHandler(service *app.Service) *Handler {
	return &Handler{service: service}
}

// Register binds the notification handlers to the provided ServeMux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/v1/notifications", h.listNotifications)
}

func (h *Handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	ctx := r.Context()
	orderID := r.URL.Query().Get("order_id")

	var (
		notifications any
		err           error
	)
	if orderID != "" {
		notifications, err = h.service.NotificationsByOrder(ctx, orderID)
	} else {
		notifications, err = h.service.ListNotifications(ctx)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"notifications": notifications})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
