package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventOrderPlaced        = "OrderPlaced"
	EventOrderStatusChanged = "OrderStatusChanged"
)

type OutboxEvent struct {
	ID          uuid.UUID
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

type OrderPlacedPayload struct {
	OrderID     string      `json:"order_id"`
	CustomerID  string      `json:"customer_id"`
	ShopID      string      `json:"shop_id"`
	TotalAmount string      `json:"total_amount"`
	Items       []OrderItem `json:"items"`
	PlacedAt    time.Time   `json:"placed_at"`
}

type OrderStatusChangedPayload struct {
	OrderID   string      `json:"order_id"`
	From      OrderStatus `json:"from_status"`
	To        OrderStatus `json:"to_status"`
	ChangedBy string      `json:"changed_by"`
	ChangedAt time.Time   `json:"changed_at"`
}

// Stats holds the role specific dashboard counters. Fields not relevant to the
// role are omitted.
type Stats struct {
	TotalShops        *int `json:"total_shops,omitempty"`
	TotalProducts     *int `json:"total_products,omitempty"`
	TotalOrders       *int `json:"total_orders,omitempty"`
	CartItems         *int `json:"cart_items,omitempty"`
	TotalDeliveries   *int `json:"total_deliveries,omitempty"`
	PendingDeliveries *int `json:"pending_deliveries,omitempty"`
}
