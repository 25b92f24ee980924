package http

import (
	"context"

	"github.com/orderbuddy/orderbuddy/internal/assistant"
	"github.com/orderbuddy/orderbuddy/internal/domain"
	"github.com/orderbuddy/orderbuddy/internal/location"
	"github.com/orderbuddy/orderbuddy/internal/service"
)

// Authenticator resolves bearer tokens for AuthMiddleware.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.Session, error)
}

type AuthService interface {
	Authenticator
	Register(ctx context.Context, req service.RegisterRequest) (*domain.Session, error)
	Login(ctx context.Context, email, password string) (*domain.Session, error)
	Logout(ctx context.Context, session *domain.Session) error
}

type CatalogService interface {
	Locations() map[string]location.District
	CreateShop(ctx context.Context, actor *domain.User, in service.ShopInput) (*domain.Shop, error)
	ListShops(ctx context.Context, filter domain.Location) ([]*domain.Shop, error)
	MyShops(ctx context.Context, actor *domain.User) ([]*domain.Shop, error)
	SetShopOpen(ctx context.Context, actor *domain.User, shopID string, open bool) (*domain.Shop, error)
	CreateProduct(ctx context.Context, actor *domain.User, shopID string, in service.ProductInput) (*domain.Product, error)
	ListProducts(ctx context.Context, shopID string) ([]*domain.Product, error)
	SearchProducts(ctx context.Context, q domain.ProductQuery) ([]*domain.Product, error)
}

type CartService interface {
	AddItem(ctx context.Context, actor *domain.User, productID string, quantity int) (*domain.CartView, error)
	GetCart(ctx context.Context, actor *domain.User) (*domain.CartView, error)
	RemoveItem(ctx context.Context, actor *domain.User, itemID string) (*domain.CartView, error)
}

type OrderService interface {
	PlaceOrder(ctx context.Context, actor *domain.User, req service.PlaceOrderRequest) (*domain.Order, error)
	ListOrders(ctx context.Context, actor *domain.User) ([]*domain.Order, error)
	GetOrder(ctx context.Context, actor *domain.User, id string) (*domain.Order, error)
	UpdateStatus(ctx context.Context, actor *domain.User, id string, to domain.OrderStatus) (*domain.Order, error)
	Claim(ctx context.Context, actor *domain.User, id string) (*domain.Order, error)
	History(ctx context.Context, actor *domain.User, id string) ([]domain.StatusChange, error)
}

type DashboardService interface {
	Stats(ctx context.Context, actor *domain.User) (*domain.Stats, error)
	View(ctx context.Context, actor *domain.User) ([]domain.OrderView, error)
}

type Assistant interface {
	Ask(ctx context.Context, user *domain.User, req assistant.Request) (*assistant.Response, error)
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}
