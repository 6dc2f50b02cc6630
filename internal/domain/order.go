package domain

import "time"

// Order statuses. An order is created pending by checkout and is terminal
// once paid or cancelled; paid orders are never reopened. The pending→paid
// transition happens exactly once, enforced by a conditional write.
const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusCancelled = "cancelled"
)

// OrderTypeUpgrade marks orders priced as a tier-difference upgrade rather
// than a plain purchase of the scheme's own type.
const OrderTypeUpgrade = "upgrade"

// Order is a single purchase of a scheme by a user.
type Order struct {
	ID        string     `json:"id"`
	UserID    *string    `json:"userId,omitempty"`  // primary owner reference
	Identity  string     `json:"identity"`          // fallback owner reference (legacy orders)
	SchemeID  int        `json:"schemeId"`
	OrderType string     `json:"orderType"`
	Amount    int64      `json:"amount"` // minor currency units
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"createdAt"`
	PaidAt    *time.Time `json:"paidAt,omitempty"`
}

// CheckoutRequest is the validated input for creating a pending order.
type CheckoutRequest struct {
	SchemeID int `json:"schemeId" validate:"required,min=1"`
}

// CheckoutResponse returns the pending order and where to pay for it.
type CheckoutResponse struct {
	OrderID    string `json:"orderId"`
	PaymentURL string `json:"paymentUrl"`
	PayAmount  int64  `json:"payAmount"`
	OrderType  string `json:"orderType"`
}

// OrderStatusRequest is the validated input for a user-initiated status
// change. Only cancelled and pending are reachable this way.
type OrderStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=cancelled pending"`
}

// RedeemInviteRequest is the validated input for redeeming a peer's code.
type RedeemInviteRequest struct {
	TargetInviteCode string `json:"targetInviteCode" validate:"required,min=1,max=64"`
}

// RedeemInviteResponse is the business outcome of a redemption attempt.
// Expected failures (already claimed, bad code, self invite) are reported
// here with success=false, not as HTTP errors.
type RedeemInviteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
