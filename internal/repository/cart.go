package repository

import (
	"context"
	"fmt"

	"github.com/orderbuddy/orderbuddy/internal/domain"
)

// AddCartItem inserts item or, if the customer already has the product in the
// cart, adds item.Quantity to the existing line.
func (r *Repository) AddCartItem(ctx context.Context, item *domain.CartItem) error {
	query := `INSERT INTO cart_items (id, customer_id, product_id, quantity, created_at)
	          VALUES ($1, $2, $3, $4, $5)
	          ON CONFLICT (customer_id, product_id)
	          DO UPDATE SET quantity = cart_items.quantity + excluded.quantity`

	_, err := r.db.ExecContext(ctx, query,
		item.ID,
		item.CustomerID,
		item.ProductID,
		item.Quantity,
		item.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert cart item: %w", err)
	}
	return nil
}

func (r *Repository) GetCartItems(ctx context.Context, customerID string) ([]domain.CartItem, error) {
	query := `SELECT id, customer_id, product_id, quantity, created_at
	          FROM cart_items WHERE customer_id = $1 ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart items: %w", err)
	}
	defer rows.Close()

	items := []domain.CartItem{}
	for rows.Next() {
		var it domain.CartItem
		if err := rows.Scan(&it.ID, &it.CustomerID, &it.ProductID, &it.Quantity, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		items = append(items, it)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return items, nil
}

func (r *Repository) RemoveCartItem(ctx context.Context, customerID, itemID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM cart_items WHERE id = $1 AND customer_id = $2`, itemID, customerID)
	if err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("cart item %s: %w", itemID, domain.ErrNotFound)
	}
	return nil
}
