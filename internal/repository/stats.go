package repository

import (
	"context"
	"fmt"

	"github.com/orderbuddy/orderbuddy/internal/domain"
)

func (r *Repository) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

func (r *Repository) CountShopsByOwner(ctx context.Context, ownerID string) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM shops WHERE owner_id = $1`, ownerID)
}

func (r *Repository) CountProductsByOwner(ctx context.Context, ownerID string) (int, error) {
	return r.count(ctx,
		`SELECT COUNT(*) FROM products p JOIN shops s ON s.id = p.shop_id WHERE s.owner_id = $1`, ownerID)
}

func (r *Repository) CountOrdersByOwner(ctx context.Context, ownerID string) (int, error) {
	return r.count(ctx,
		`SELECT COUNT(*) FROM orders o JOIN shops s ON s.id = o.shop_id WHERE s.owner_id = $1`, ownerID)
}

func (r *Repository) CountOrdersByCustomer(ctx context.Context, customerID string) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM orders WHERE customer_id = $1`, customerID)
}

func (r *Repository) CountCartItems(ctx context.Context, customerID string) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM cart_items WHERE customer_id = $1`, customerID)
}

// CountDeliveries counts orders assigned to deliveryPersonID, restricted to
// statuses when any are given.
func (r *Repository) CountDeliveries(ctx context.Context, deliveryPersonID string, statuses []domain.OrderStatus) (int, error) {
	query := `SELECT COUNT(*) FROM orders WHERE delivery_person_id = $1`
	args := []any{deliveryPersonID}
	if len(statuses) > 0 {
		for _, st := range statuses {
			args = append(args, string(st))
		}
		query += ` AND status IN (` + placeholders(2, len(statuses)) + `)`
	}
	return r.count(ctx, query, args...)
}
