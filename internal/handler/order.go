package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/resumeup/backend/internal/contextkeys"
	"github.com/resumeup/backend/internal/domain"
	"github.com/resumeup/backend/internal/service"
)

// OrderHandler handles order listing and user-initiated status changes.
type OrderHandler struct {
	orders *service.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orders *service.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// List handles GET /api/orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(contextkeys.UserID).(string)
	if !ok || userID == "" {
		JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	orders, err := h.orders.ListOrders(r.Context(), userID)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, orders)
}

// UpdateStatus handles POST /api/orders/{id}/status. The only reachable
// targets are cancelled and pending, and only for the order's owner.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(contextkeys.UserID).(string)
	if !ok || userID == "" {
		JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var req domain.OrderStatusRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}

	if err := h.orders.UpdateStatus(r.Context(), chi.URLParam(r, "id"), userID, &req); err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"success": true})
}
