package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/orderbuddy/orderbuddy/internal/domain"
)

const orderColumns = `o.id, o.customer_id, o.shop_id, o.delivery_person_id, o.items, o.total_amount, o.status,
	o.delivery_address, o.district, o.otp, o.created_at, o.updated_at, o.delivered_at`

// DeliveryQuery selects the orders a delivery person can see: orders of shops in
// District whose status is in Statuses and that are unassigned or assigned to
// DeliveryPersonID.
type DeliveryQuery struct {
	District         string
	Statuses         []domain.OrderStatus
	DeliveryPersonID string
}

// Transition is a compare-and-set of an order's status from From to To.
type Transition struct {
	OrderID string
	From    domain.OrderStatus
	To      domain.OrderStatus
	ActorID string
	// AssignTo, when set, assigns the order to this delivery person. The update
	// fails if the order is assigned to someone else.
	AssignTo string
	At       time.Time
	Event    *domain.OutboxEvent
}

// PlaceOrder persists order in one transaction: the cart lines the order was
// built from are deleted, stock of every item is decremented only if enough is
// left, and the order, its first history row and the outbox event are
// inserted. Nothing is written if any step fails.
//
// Each cart line is deleted only if its id and quantity are still those in
// cart. ErrConflict reports a cart that changed or was already ordered since
// it was read.
func (r *Repository) PlaceOrder(ctx context.Context, order *domain.Order, cart []domain.CartItem,
	event *domain.OutboxEvent) error {
	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal order items: %w", err)
	}

	return r.withTx(ctx, func(tx *sql.Tx) error {
		if err := consumeCart(ctx, tx, order.CustomerID, cart); err != nil {
			return err
		}

		for _, it := range order.Items {
			res, err := tx.ExecContext(ctx,
				`UPDATE products SET stock_quantity = stock_quantity - $1
				 WHERE id = $2 AND stock_quantity >= $1 AND is_active = $3`,
				it.Quantity, it.ProductID, true)
			if err != nil {
				return fmt.Errorf("decrement stock for %s: %w", it.ProductID, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			if n == 0 {
				return fmt.Errorf("%w: %s", domain.ErrOutOfStock, it.Name)
			}
		}

		query := `INSERT INTO orders (id, customer_id, shop_id, delivery_person_id, items, total_amount, status,
		          delivery_address, district, otp, created_at, updated_at, delivered_at)
		          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NULL)`
		_, err := tx.ExecContext(ctx, query,
			order.ID,
			order.CustomerID,
			order.ShopID,
			nullString(order.DeliveryPersonID),
			string(itemsJSON),
			order.TotalAmount.StringFixed(2),
			string(order.Status),
			order.DeliveryAddress,
			order.District,
			order.OTP,
			order.CreatedAt.UTC(),
			order.UpdatedAt.UTC(),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: order %s already exists", domain.ErrConflict, order.ID)
			}
			return fmt.Errorf("insert order: %w", err)
		}

		if err := insertHistory(ctx, tx, domain.StatusChange{
			OrderID:   order.ID,
			To:        order.Status,
			ChangedBy: order.CustomerID,
			CreatedAt: order.CreatedAt,
		}); err != nil {
			return err
		}

		if event != nil {
			if err := insertOutboxEvent(ctx, tx, event); err != nil {
				return err
			}
		}

		return nil
	})
}

func consumeCart(ctx context.Context, tx *sql.Tx, customerID string, cart []domain.CartItem) error {
	var deleted int64
	for _, line := range cart {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM cart_items WHERE id = $1 AND customer_id = $2 AND quantity = $3`,
			line.ID, customerID, line.Quantity)
		if err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		deleted += n
	}
	if deleted != int64(len(cart)) {
		return fmt.Errorf("%w: cart changed during checkout", domain.ErrConflict)
	}
	return nil
}

func (r *Repository) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders o WHERE o.id = $1`, id)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (r *Repository) ListOrdersByCustomer(ctx context.Context, customerID string) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders o WHERE o.customer_id = $1 ORDER BY o.created_at DESC, o.id`
	return r.queryOrders(ctx, query, customerID)
}

// ListOrdersByOwner returns orders placed against any shop owned by ownerID.
func (r *Repository) ListOrdersByOwner(ctx context.Context, ownerID string) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + `
	          FROM orders o JOIN shops s ON s.id = o.shop_id
	          WHERE s.owner_id = $1
	          ORDER BY o.created_at DESC, o.id`
	return r.queryOrders(ctx, query, ownerID)
}

func (r *Repository) ListOrdersForDelivery(ctx context.Context, q DeliveryQuery) ([]*domain.Order, error) {
	if len(q.Statuses) == 0 {
		return []*domain.Order{}, nil
	}
	args := []any{q.District, q.DeliveryPersonID}
	for _, st := range q.Statuses {
		args = append(args, string(st))
	}
	query := `SELECT ` + orderColumns + `
	          FROM orders o
	          WHERE o.district = $1
	            AND (o.delivery_person_id IS NULL OR o.delivery_person_id = $2)
	            AND o.status IN (` + placeholders(3, len(q.Statuses)) + `)
	          ORDER BY o.created_at DESC, o.id`
	return r.queryOrders(ctx, query, args...)
}

// TransitionOrder moves the order from t.From to t.To only if its status is
// still t.From. ErrConflict reports that the order changed underneath.
func (r *Repository) TransitionOrder(ctx context.Context, t Transition) error {
	at := t.At.UTC()
	return r.withTx(ctx, func(tx *sql.Tx) error {
		args := []any{string(t.To), at}
		set := "status = $1, updated_at = $2"
		if t.To == domain.OrderStatusDelivered {
			args = append(args, at)
			set += fmt.Sprintf(", delivered_at = $%d", len(args))
		}
		where := ""
		if t.AssignTo != "" {
			args = append(args, t.AssignTo)
			n := len(args)
			set += fmt.Sprintf(", delivery_person_id = $%d", n)
			where = fmt.Sprintf(" AND (delivery_person_id IS NULL OR delivery_person_id = $%d)", n)
		}
		args = append(args, t.OrderID, string(t.From))
		query := fmt.Sprintf("UPDATE orders SET %s WHERE id = $%d AND status = $%d%s",
			set, len(args)-1, len(args), where)

		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("update order status: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return orderMissingOrMoved(ctx, tx, t.OrderID)
		}

		if err := insertHistory(ctx, tx, domain.StatusChange{
			OrderID:   t.OrderID,
			From:      t.From,
			To:        t.To,
			ChangedBy: t.ActorID,
			CreatedAt: at,
		}); err != nil {
			return err
		}
		if t.Event != nil {
			return insertOutboxEvent(ctx, tx, t.Event)
		}
		return nil
	})
}

// ClaimOrder assigns an undelivered, unassigned order to deliveryPersonID.
// Claiming an order already assigned to the same person succeeds.
func (r *Repository) ClaimOrder(ctx context.Context, orderID, deliveryPersonID string, at time.Time) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE orders SET delivery_person_id = $1, updated_at = $2
			 WHERE id = $3 AND status <> $4
			   AND (delivery_person_id IS NULL OR delivery_person_id = $1)`,
			deliveryPersonID, at.UTC(), orderID, string(domain.OrderStatusDelivered))
		if err != nil {
			return fmt.Errorf("claim order: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return orderMissingOrMoved(ctx, tx, orderID)
		}
		return nil
	})
}

func (r *Repository) ListStatusHistory(ctx context.Context, orderID string) ([]domain.StatusChange, error) {
	query := `SELECT order_id, from_status, to_status, changed_by, created_at
	          FROM order_status_history WHERE order_id = $1 ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query status history: %w", err)
	}
	defer rows.Close()

	history := []domain.StatusChange{}
	for rows.Next() {
		var c domain.StatusChange
		var from, to string
		if err := rows.Scan(&c.OrderID, &from, &to, &c.ChangedBy, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan status change: %w", err)
		}
		c.From, c.To = domain.OrderStatus(from), domain.OrderStatus(to)
		history = append(history, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return history, nil
}

func orderMissingOrMoved(ctx context.Context, tx *sql.Tx, orderID string) error {
	var status string
	err := tx.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = $1`, orderID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("query order status: %w", err)
	}
	return fmt.Errorf("%w: order %s changed concurrently (now %s)", domain.ErrConflict, orderID, status)
}

func insertHistory(ctx context.Context, tx *sql.Tx, c domain.StatusChange) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO order_status_history (order_id, from_status, to_status, changed_by, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		c.OrderID, string(c.From), string(c.To), c.ChangedBy, c.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert status history: %w", err)
	}
	return nil
}

func (r *Repository) queryOrders(ctx context.Context, query string, args ...any) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders := []*domain.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return orders, nil
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		o           domain.Order
		status      string
		deliveryID  sql.NullString
		itemsJSON   []byte
		deliveredAt sql.NullTime
	)
	err := row.Scan(
		&o.ID,
		&o.CustomerID,
		&o.ShopID,
		&deliveryID,
		&itemsJSON,
		&o.TotalAmount,
		&status,
		&o.DeliveryAddress,
		&o.District,
		&o.OTP,
		&o.CreatedAt,
		&o.UpdatedAt,
		&deliveredAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan order row: %w", err)
	}

	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	o.Status = domain.OrderStatus(status)
	o.DeliveryPersonID = deliveryID.String
	if deliveredAt.Valid {
		t := deliveredAt.Time
		o.DeliveredAt = &t
	}
	return &o, nil
}
