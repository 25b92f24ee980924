package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/orderbuddy/orderbuddy/internal/auth"
	"github.com/orderbuddy/orderbuddy/internal/cache"
	"github.com/orderbuddy/orderbuddy/internal/domain"
	"github.com/orderbuddy/orderbuddy/internal/location"
	"github.com/orderbuddy/orderbuddy/internal/logger"
	"github.com/orderbuddy/orderbuddy/internal/repository"
)

var (
	adyar     = domain.Location{District: "Chennai", Taluk: "Chennai South", VillageCity: "Adyar"}
	guindy    = domain.Location{District: "Chennai", Taluk: "Chennai South", VillageCity: "Guindy"}
	vadipatti = domain.Location{District: "Madurai", Taluk: "Melur", VillageCity: "Vadipatti"}
)

type testEnv struct {
	repo      *repository.Repository
	auth      *AuthService
	catalog   *CatalogService
	cart      *CartService
	orders    *OrderService
	dashboard *DashboardService
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	repo, err := repository.NewRepository(&repository.Credentials{Driver: repository.DriverSQLite, Path: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, repo.RunMigrations("../repository/migrations"))
	t.Cleanup(func() { repo.Close() })

	log := logger.Discard()
	locations := location.Default()
	cart := NewCartService(repo, repo, cache.NopCache{}, log)
	orders := NewOrderService(repo, cart, domain.OrderStatusPacked, log)
	return &testEnv{
		repo:      repo,
		auth:      NewAuthService(repo, auth.NewTokenIssuer("test-secret", time.Hour), auth.NewMemoryRevocationList(), locations, log),
		catalog:   NewCatalogService(repo, repo, locations, log),
		cart:      cart,
		orders:    orders,
		dashboard: NewDashboardService(repo, orders),
	}
}

func (e *testEnv) register(t *testing.T, role domain.Role, loc domain.Location) *domain.User {
	t.Helper()
	s, err := e.auth.Register(context.Background(), RegisterRequest{
		Email:    uuid.NewString() + "@example.com",
		Password: "secret1",
		Name:     string(role),
		Role:     role,
		Location: loc,
	})
	require.NoError(t, err)
	return &s.User
}

func (e *testEnv) shop(t *testing.T, owner *domain.User, loc domain.Location) *domain.Shop {
	t.Helper()
	s, err := e.catalog.CreateShop(context.Background(), owner, ShopInput{Name: "Shop " + loc.VillageCity, Location: loc})
	require.NoError(t, err)
	return s
}

func (e *testEnv) product(t *testing.T, owner *domain.User, shopID, name string, price string, stock int) *domain.Product {
	t.Helper()
	p, err := e.catalog.CreateProduct(context.Background(), owner, shopID, ProductInput{
		Name:          name,
		Price:         decimal.RequireFromString(price),
		Category:      "Grocery",
		StockQuantity: stock,
	})
	require.NoError(t, err)
	return p
}

// recordingInvalidator counts invalidations per customer.
type recordingInvalidator struct {
	mu    sync.Mutex
	calls map[string]int
}

func (r *recordingInvalidator) Invalidate(customerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.calls == nil {
		r.calls = map[string]int{}
	}
	r.calls[customerID]++
}

func (r *recordingInvalidator) count(customerID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[customerID]
}
