package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/resumeup/backend/internal/domain"
	"github.com/resumeup/backend/pkg/payment"
)

// CheckoutOrderStore is the slice of the order repository checkout needs.
type CheckoutOrderStore interface {
	Create(ctx context.Context, o *domain.Order) error
	UpdateStatusOwned(ctx context.Context, id, userID, status string) (bool, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Order, error)
}

// CatalogStore is the catalog access checkout pricing needs.
type CatalogStore interface {
	FindBySchemeID(ctx context.Context, schemeID int) (*domain.Scheme, error)
	FindByLevelAndType(ctx context.Context, level int, typ string) (*domain.Scheme, error)
	ListAll(ctx context.Context) ([]domain.Scheme, error)
	Upsert(ctx context.Context, req *domain.SchemeUpsertRequest) error
}

// OrderService prices target schemes and creates pending orders for the
// payment gateway to settle. It never mutates memberships; activation is
// MembershipService's job, triggered by the gateway callback.
type OrderService struct {
	orders   CheckoutOrderStore
	schemes  CatalogStore
	users    UserStore
	gateway  payment.Gateway
	validate *validator.Validate
}

// NewOrderService creates a new OrderService.
func NewOrderService(orders CheckoutOrderStore, schemes CatalogStore, users UserStore, gateway payment.Gateway) *OrderService {
	return &OrderService{
		orders:   orders,
		schemes:  schemes,
		users:    users,
		gateway:  gateway,
		validate: validator.New(),
	}
}

// CreateCheckout quotes the price for the target scheme against the user's
// current entitlement, records a pending order, and returns the payment link.
func (s *OrderService) CreateCheckout(ctx context.Context, userID string, req *domain.CheckoutRequest, now time.Time) (*domain.CheckoutResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, domain.ErrInternal("failed to load user", err)
	}
	if user == nil {
		return nil, domain.ErrNotFound("user not found")
	}

	target, err := s.schemes.FindBySchemeID(ctx, req.SchemeID)
	if err != nil {
		return nil, domain.ErrInternal("failed to load scheme", err)
	}
	if target == nil {
		return nil, domain.ErrBadRequest("unknown scheme")
	}

	// The current scheme only matters for upgrade pricing, so a miss here is
	// not an error: pricing falls back to full price.
	var current *domain.Scheme
	if user.Membership.ActiveAt(now) && user.Membership.Level > 0 {
		current, err = s.schemes.FindByLevelAndType(ctx, user.Membership.Level, user.Membership.Type)
		if err != nil {
			return nil, domain.ErrInternal("failed to load current scheme", err)
		}
	}

	quote := domain.Price(user, *target, current, now)

	order := &domain.Order{
		ID:        uuid.New().String(),
		UserID:    &user.ID,
		Identity:  user.Identity,
		SchemeID:  target.SchemeID,
		OrderType: quote.OrderType,
		Amount:    quote.PayAmount,
		Status:    domain.OrderStatusPending,
		CreatedAt: now,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, domain.ErrInternal("failed to create order", err)
	}

	link, err := s.gateway.CreatePaymentLink(user.ID, target.SchemeID, order.ID, quote.PayAmount)
	if err != nil {
		return nil, domain.ErrInternal("failed to create payment link", err)
	}

	return &domain.CheckoutResponse{
		OrderID:    order.ID,
		PaymentURL: link,
		PayAmount:  quote.PayAmount,
		OrderType:  quote.OrderType,
	}, nil
}

// UpdateStatus applies a user-initiated order status change. Only cancelled
// and pending are accepted, and only by the order's owner; paid orders are
// terminal and never reopened.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID, userID string, req *domain.OrderStatusRequest) error {
	if orderID == "" {
		return domain.ErrParamMissing
	}
	if err := s.validate.Struct(req); err != nil {
		return domain.ErrValidation(err.Error())
	}

	ok, err := s.orders.UpdateStatusOwned(ctx, orderID, userID, req.Status)
	if err != nil {
		return domain.ErrInternal("failed to update order", err)
	}
	if !ok {
		return domain.ErrNotFound("order not found or not yours")
	}
	return nil
}

// ListOrders returns the caller's orders, newest first.
func (s *OrderService) ListOrders(ctx context.Context, userID string) ([]*domain.Order, error) {
	orders, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, domain.ErrInternal("failed to list orders", err)
	}
	return orders, nil
}

// UpsertScheme creates or replaces a catalog row and returns it with the
// duration fallback already resolved. Route-gated to admins.
func (s *OrderService) UpsertScheme(ctx context.Context, req *domain.SchemeUpsertRequest) (*domain.Scheme, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	if err := s.schemes.Upsert(ctx, req); err != nil {
		return nil, domain.ErrInternal("failed to upsert scheme", err)
	}
	return s.schemes.FindBySchemeID(ctx, req.SchemeID)
}

// ListSchemes returns the plan catalog.
func (s *OrderService) ListSchemes(ctx context.Context) ([]domain.Scheme, error) {
	schemes, err := s.schemes.ListAll(ctx)
	if err != nil {
		return nil, domain.ErrInternal("failed to list schemes", err)
	}
	return schemes, nil
}
