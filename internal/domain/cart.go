package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type CartItem struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customer_id"`
	ProductID  string    `json:"product_id"`
	Quantity   int       `json:"quantity"`
	CreatedAt  time.Time `json:"created_at"`
}

// CartLine is a cart item joined with the live product it references.
type CartLine struct {
	CartItem
	Product  Product         `json:"product"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// CartView is the cart as shown to the customer; Total is computed on read.
type CartView struct {
	CustomerID string          `json:"customer_id"`
	Items      []CartLine      `json:"items"`
	Total      decimal.Decimal `json:"total"`
}

// NewCartView joins items with products, skipping items whose product is gone.
func NewCartView(customerID string, items []CartItem, products map[string]*Product) *CartView {
	view := &CartView{
		CustomerID: customerID,
		Items:      make([]CartLine, 0, len(items)),
		Total:      decimal.Zero,
	}
	for _, item := range items {
		p, ok := products[item.ProductID]
		if !ok {
			continue
		}
		subtotal := p.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		view.Items = append(view.Items, CartLine{CartItem: item, Product: *p, Subtotal: subtotal})
		view.Total = view.Total.Add(subtotal)
	}
	return view
}
