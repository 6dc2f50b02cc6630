package handler

import (
	"net/http"

	"github.com/resumeup/backend/internal/domain"
	"github.com/resumeup/backend/internal/service"
)

// SchemeHandler serves the public plan catalog.
type SchemeHandler struct {
	orders *service.OrderService
}

// NewSchemeHandler creates a new SchemeHandler.
func NewSchemeHandler(orders *service.OrderService) *SchemeHandler {
	return &SchemeHandler{orders: orders}
}

// List handles GET /api/schemes.
func (h *SchemeHandler) List(w http.ResponseWriter, r *http.Request) {
	schemes, err := h.orders.ListSchemes(r.Context())
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, schemes)
}

// Upsert handles PUT /api/admin/schemes. Admin-gated.
func (h *SchemeHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req domain.SchemeUpsertRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}

	scheme, err := h.orders.UpsertScheme(r.Context(), &req)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, scheme)
}
