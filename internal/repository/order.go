package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/resumeup/backend/internal/domain"
)

const orderColumns = `id, user_id, identity, scheme_id, order_type, amount, status, created_at, paid_at`

// OrderRepository handles database operations for orders. The status column
// doubles as the CAS token for activation claims.
type OrderRepository struct {
	db *pgxpool.Pool
}

// NewOrderRepository creates a new OrderRepository.
func NewOrderRepository(db *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{db: db}
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(&o.ID, &o.UserID, &o.Identity, &o.SchemeID, &o.OrderType, &o.Amount, &o.Status, &o.CreatedAt, &o.PaidAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}
	return &o, nil
}

// Create inserts a new pending order.
func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) error {
	query := `
		INSERT INTO orders (id, user_id, identity, scheme_id, order_type, amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	`
	_, err := r.db.Exec(ctx, query,
		o.ID, o.UserID, o.Identity, o.SchemeID, o.OrderType, o.Amount, o.Status, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// FindByID returns an order by ID, or nil if absent.
func (r *OrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	return scanOrder(r.db.QueryRow(ctx, query, id))
}

// ClaimPaid atomically flips an order from pending to paid and returns the
// claimed order. This is the sole concurrency-control point for activation:
// at most one caller per order gets a non-nil result. A nil result with a nil
// error means the claim was lost (the order is missing, already paid, or in
// another status) and the caller must re-read to distinguish those.
func (r *OrderRepository) ClaimPaid(ctx context.Context, id string, paidAt time.Time) (*domain.Order, error) {
	query := `
		UPDATE orders
		SET status = $3, paid_at = $2, updated_at = NOW()
		WHERE id = $1 AND status = $4
		RETURNING ` + orderColumns
	order, err := scanOrder(r.db.QueryRow(ctx, query, id, paidAt, domain.OrderStatusPaid, domain.OrderStatusPending))
	if err != nil {
		return nil, fmt.Errorf("failed to claim order %s: %w", id, err)
	}
	return order, nil
}

// UpdateStatusOwned applies a user-initiated status change, gated on
// ownership and on the order not being terminal-paid. Returns false when
// nothing matched (wrong owner, unknown order, or already paid).
func (r *OrderRepository) UpdateStatusOwned(ctx context.Context, id, userID, status string) (bool, error) {
	query := `
		UPDATE orders
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND status <> $4
	`
	tag, err := r.db.Exec(ctx, query, id, userID, status, domain.OrderStatusPaid)
	if err != nil {
		return false, fmt.Errorf("failed to update order status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListByUser returns a user's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}
