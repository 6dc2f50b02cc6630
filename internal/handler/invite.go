package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/resumeup/backend/internal/contextkeys"
	"github.com/resumeup/backend/internal/domain"
)

// Redeemer is the slice of the membership service redemption needs.
type Redeemer interface {
	RedeemInviteCode(ctx context.Context, inviteeID, targetCode string, now time.Time) error
}

// InviteHandler handles invite-code redemption.
type InviteHandler struct {
	membership Redeemer
}

// NewInviteHandler creates a new InviteHandler.
func NewInviteHandler(membership Redeemer) *InviteHandler {
	return &InviteHandler{membership: membership}
}

// Redeem handles POST /api/invite/redeem. Expected business outcomes such as
// already claimed, invalid code, and self invite are 200 responses with
// success=false, never HTTP errors; clients retry blindly on timeouts and
// must be able to tell "no" from "broken".
func (h *InviteHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(contextkeys.UserID).(string)
	if !ok || userID == "" {
		JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var req domain.RedeemInviteRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}

	err := h.membership.RedeemInviteCode(r.Context(), userID, req.TargetInviteCode, time.Now())
	if err != nil {
		if msg, expected := businessOutcome(err); expected {
			JSON(w, http.StatusOK, domain.RedeemInviteResponse{Success: false, Message: msg})
			return
		}
		Error(w, err)
		return
	}

	JSON(w, http.StatusOK, domain.RedeemInviteResponse{
		Success: true,
		Message: fmt.Sprintf("invite accepted: both accounts received %d days of membership and %d points",
			domain.InviteRewardDays, domain.InviteRewardPoints),
	})
}

// businessOutcome maps sentinel errors to user-readable refusal messages.
func businessOutcome(err error) (string, bool) {
	switch {
	case errors.Is(err, domain.ErrParamMissing):
		return "missing invite code", true
	case errors.Is(err, domain.ErrAlreadyClaimed):
		return "this account has already been invited and cannot claim the reward again", true
	case errors.Is(err, domain.ErrInvalidInviteCode):
		return "invalid invite code", true
	case errors.Is(err, domain.ErrSelfInvite):
		return "you cannot use your own invite code", true
	default:
		return "", false
	}
}
