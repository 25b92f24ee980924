package client

import (
	"context"
	"fmt"

	"github.com/orderbuddy/orderbuddy/internal/assistant"
	"github.com/orderbuddy/orderbuddy/internal/domain"
	"github.com/orderbuddy/orderbuddy/internal/service"
)

// The views below restrict a logged in Client to what one role may do. Each
// is obtained from the Client and fails with ErrForbidden for another role.

func (c *Client) roleView(role domain.Role) error {
	s, ok := c.Session()
	if !ok {
		return ErrNoSession
	}
	if s.User.Role != role {
		return fmt.Errorf("%w: session role is %s, not %s", domain.ErrForbidden, s.User.Role, role)
	}
	return nil
}

type CustomerView struct {
	c *Client
}

func (c *Client) CustomerView() (*CustomerView, error) {
	if err := c.roleView(domain.RoleCustomer); err != nil {
		return nil, err
	}
	return &CustomerView{c: c}, nil
}

// NearbyShops lists shops in the customer's own village or city.
func (v *CustomerView) NearbyShops(ctx context.Context) ([]domain.Shop, error) {
	s, _ := v.c.Session()
	return v.c.ListShops(ctx, s.User.Location)
}

func (v *CustomerView) Products(ctx context.Context, shopID string) ([]domain.Product, error) {
	return v.c.ListProducts(ctx, shopID)
}

func (v *CustomerView) Search(ctx context.Context, q domain.ProductQuery) ([]domain.Product, error) {
	return v.c.SearchProducts(ctx, q)
}

func (v *CustomerView) Cart(ctx context.Context) (*domain.CartView, error) {
	return v.c.GetCart(ctx)
}

func (v *CustomerView) AddToCart(ctx context.Context, productID string, quantity int) (*domain.CartView, error) {
	return v.c.AddToCart(ctx, productID, quantity)
}

func (v *CustomerView) RemoveFromCart(ctx context.Context, itemID string) (*domain.CartView, error) {
	return v.c.RemoveFromCart(ctx, itemID)
}

func (v *CustomerView) Checkout(ctx context.Context, shopID string) (*domain.Order, error) {
	return v.c.CreateOrder(ctx, shopID)
}

func (v *CustomerView) Orders(ctx context.Context) ([]domain.Order, error) {
	return v.c.ListOrders(ctx)
}

func (v *CustomerView) Ask(ctx context.Context, message string) (*assistant.Response, error) {
	return v.c.Ask(ctx, message, "customer dashboard")
}

type ShopOwnerView struct {
	c *Client
}

func (c *Client) ShopOwnerView() (*ShopOwnerView, error) {
	if err := c.roleView(domain.RoleShopOwner); err != nil {
		return nil, err
	}
	return &ShopOwnerView{c: c}, nil
}

func (v *ShopOwnerView) CreateShop(ctx context.Context, in service.ShopInput) (*domain.Shop, error) {
	return v.c.CreateShop(ctx, in)
}

func (v *ShopOwnerView) Shops(ctx context.Context) ([]domain.Shop, error) {
	return v.c.MyShops(ctx)
}

func (v *ShopOwnerView) SetOpen(ctx context.Context, shopID string, open bool) (*domain.Shop, error) {
	return v.c.SetShopOpen(ctx, shopID, open)
}

func (v *ShopOwnerView) AddProduct(ctx context.Context, shopID string, in service.ProductInput) (*domain.Product, error) {
	return v.c.CreateProduct(ctx, shopID, in)
}

func (v *ShopOwnerView) Orders(ctx context.Context) ([]domain.OrderView, error) {
	return v.c.DashboardView(ctx)
}

// Pack moves a pending order to packed.
func (v *ShopOwnerView) Pack(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	return v.c.UpdateOrderStatus(ctx, order, domain.OrderStatusPacked)
}

// Dispatch moves a packed order to on_the_way.
func (v *ShopOwnerView) Dispatch(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	return v.c.UpdateOrderStatus(ctx, order, domain.OrderStatusOnTheWay)
}

func (v *ShopOwnerView) Stats(ctx context.Context) (*domain.Stats, error) {
	return v.c.DashboardStats(ctx)
}

type DeliveryView struct {
	c *Client
}

func (c *Client) DeliveryView() (*DeliveryView, error) {
	if err := c.roleView(domain.RoleDeliveryPerson); err != nil {
		return nil, err
	}
	return &DeliveryView{c: c}, nil
}

func (v *DeliveryView) Orders(ctx context.Context) ([]domain.OrderView, error) {
	return v.c.DashboardView(ctx)
}

func (v *DeliveryView) Claim(ctx context.Context, orderID string) (*domain.Order, error) {
	return v.c.ClaimOrder(ctx, orderID)
}

func (v *DeliveryView) MarkDelivered(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	return v.c.UpdateOrderStatus(ctx, order, domain.OrderStatusDelivered)
}

func (v *DeliveryView) Stats(ctx context.Context) (*domain.Stats, error) {
	return v.c.DashboardStats(ctx)
}
