package handler

import (
	"context"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/resumeup/backend/internal/contextkeys"
	"github.com/resumeup/backend/internal/domain"
	"github.com/resumeup/backend/internal/service"
	"github.com/resumeup/backend/pkg/payment"
)

// Activator is the slice of the membership service the callback needs.
type Activator interface {
	ActivateOrder(ctx context.Context, orderID string, now time.Time) (*domain.User, error)
	GetEntitlement(ctx context.Context, userID string) (*domain.User, error)
}

// PaymentHandler handles checkout, the gateway callback, and entitlement
// reads.
type PaymentHandler struct {
	membership Activator
	orders     *service.OrderService
	gateway    payment.Gateway
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(membership Activator, orders *service.OrderService, gateway payment.Gateway) *PaymentHandler {
	return &PaymentHandler{membership: membership, orders: orders, gateway: gateway}
}

// CreateCheckout handles POST /api/payment/checkout.
func (h *PaymentHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(contextkeys.UserID).(string)
	if !ok || userID == "" {
		JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var req domain.CheckoutRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}

	resp, err := h.orders.CreateCheckout(r.Context(), userID, &req, time.Now())
	if err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusOK, resp)
}

// Callback handles POST /api/payment/callback, the gateway's asynchronous
// payment notification. Once the signature verifies, the response is always
// an acknowledgement: the gateway cannot fix a downstream activation
// failure, and refusing the ack would only cause a retry storm. Activation
// failures are logged for manual reconciliation instead.
func (h *PaymentHandler) Callback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		JSON(w, http.StatusBadRequest, map[string]string{"code": "FAIL", "message": "failed to read body"})
		return
	}

	signature := r.Header.Get("X-Pay-Signature")
	if !h.gateway.VerifySignature(body, signature) {
		log.Printf("[PayCallback] signature verification failed")
		JSON(w, http.StatusUnauthorized, map[string]string{"code": "FAIL", "message": "signature verification failed"})
		return
	}

	event, err := h.gateway.DecodeEvent(body)
	if err != nil {
		log.Printf("[PayCallback] undecodable event: %v", err)
		JSON(w, http.StatusBadRequest, map[string]string{"code": "FAIL", "message": "invalid event payload"})
		return
	}

	if event.TradeState == payment.TradeStateSuccess {
		if _, err := h.membership.ActivateOrder(r.Context(), event.OrderID, time.Now()); err != nil {
			log.Printf("[PayCallback] activation failed for order %s: %v (needs manual reconciliation)", event.OrderID, err)
		}
	}

	JSON(w, http.StatusOK, map[string]string{"code": "SUCCESS", "message": "OK"})
}

// GetMembership handles GET /api/membership.
func (h *PaymentHandler) GetMembership(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(contextkeys.UserID).(string)
	if !ok || userID == "" {
		JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	user, err := h.membership.GetEntitlement(r.Context(), userID)
	if err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusOK, user.Membership)
}
