package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// SumItems is the order total: the sum of price x quantity over items.
func SumItems(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total
}

type Order struct {
	ID               string          `json:"id"`
	CustomerID       string          `json:"customer_id"`
	ShopID           string          `json:"shop_id"`
	DeliveryPersonID string          `json:"delivery_person_id,omitempty"`
	Items            []OrderItem     `json:"items"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	Status           OrderStatus     `json:"status"`
	DeliveryAddress  string          `json:"delivery_address"`
	District         string          `json:"district"`
	OTP              string          `json:"otp,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	DeliveredAt      *time.Time      `json:"delivered_at,omitempty"`
}

// StatusChange is one row of an order's audit trail.
type StatusChange struct {
	OrderID   string      `json:"order_id"`
	From      OrderStatus `json:"from_status,omitempty"`
	To        OrderStatus `json:"to_status"`
	ChangedBy string      `json:"changed_by"`
	CreatedAt time.Time   `json:"created_at"`
}

// OrderView is an order together with what the viewing actor may do to it.
type OrderView struct {
	Order
	AllowedActions []OrderStatus `json:"allowed_actions"`
}
