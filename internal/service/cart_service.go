package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/orderbuddy/orderbuddy/internal/cache"
	"github.com/orderbuddy/orderbuddy/internal/domain"
	"github.com/orderbuddy/orderbuddy/internal/repository"
)

const maxLineQuantity = 99

type CartService struct {
	carts    repository.CartRepository
	products repository.ProductRepository
	cache    cache.CartCache
	sfg      singleflight.Group // Prevents cache stampede
	log      *slog.Logger
	now      func() time.Time

	// fillMu orders cache fills against invalidations. A read that started
	// before the latest invalidation does not write its lines to the cache.
	fillMu sync.Mutex
	epoch  atomic.Uint64
}

func NewCartService(carts repository.CartRepository, products repository.ProductRepository,
	cache cache.CartCache, log *slog.Logger) *CartService {
	return &CartService{
		carts:    carts,
		products: products,
		cache:    cache,
		log:      log.With("component", "cart_service"),
		now:      time.Now,
	}
}

// AddItem adds quantity of the product to the customer's cart. The cumulative
// quantity must not exceed the product's current stock; nothing is reserved.
func (s *CartService) AddItem(ctx context.Context, actor *domain.User, productID string, quantity int) (*domain.CartView, error) {
	if err := requireCustomer(actor); err != nil {
		return nil, err
	}
	if quantity < 1 || quantity > maxLineQuantity {
		return nil, domain.Validationf("quantity must be between 1 and %d", maxLineQuantity)
	}

	product, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, fmt.Errorf("product %s: %w", productID, domain.ErrNotFound)
	}

	items, err := s.carts.GetCartItems(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	total := quantity
	for _, it := range items {
		if it.ProductID == productID {
			total += it.Quantity
		}
	}
	if total > maxLineQuantity {
		return nil, domain.Validationf("quantity must be between 1 and %d", maxLineQuantity)
	}
	if total > product.StockQuantity {
		return nil, fmt.Errorf("%w: %s has %d left", domain.ErrOutOfStock, product.Name, product.StockQuantity)
	}

	err = s.carts.AddCartItem(ctx, &domain.CartItem{
		ID:         uuid.NewString(),
		CustomerID: actor.ID,
		ProductID:  productID,
		Quantity:   quantity,
		CreatedAt:  s.now().UTC(),
	})
	if err != nil {
		s.log.ErrorContext(ctx, "repo add item error", "customer_id", actor.ID, "error", err)
		return nil, err
	}

	s.Invalidate(actor.ID)
	return s.GetCart(ctx, actor)
}

// GetCart returns the cart joined with live product data. The total is
// computed on every read.
func (s *CartService) GetCart(ctx context.Context, actor *domain.User) (*domain.CartView, error) {
	if err := requireCustomer(actor); err != nil {
		return nil, err
	}

	items, err := s.cartItems(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	products, err := s.products.GetProducts(ctx, ids)
	if err != nil {
		return nil, err
	}
	return domain.NewCartView(actor.ID, items, products), nil
}

func (s *CartService) RemoveItem(ctx context.Context, actor *domain.User, itemID string) (*domain.CartView, error) {
	if err := requireCustomer(actor); err != nil {
		return nil, err
	}
	if err := s.carts.RemoveCartItem(ctx, actor.ID, itemID); err != nil {
		return nil, err
	}

	s.Invalidate(actor.ID)
	return s.GetCart(ctx, actor)
}

// Invalidate drops the cached cart lines of a customer. Reads in flight are
// forgotten so the next GetCart sees the repository as it is now.
func (s *CartService) Invalidate(customerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	s.fillMu.Lock()
	defer s.fillMu.Unlock()
	s.epoch.Add(1)
	s.sfg.Forget(customerID)
	if err := s.cache.Delete(ctx, customerID); err != nil {
		s.log.Warn("cache invalidate error", "customer_id", customerID, "error", err)
	}
}

func (s *CartService) cartItems(ctx context.Context, customerID string) ([]domain.CartItem, error) {
	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(customerID, func() (any, error) {
		epoch := s.epoch.Load()
		items, err := s.cache.Get(ctx, customerID)
		if err == nil {
			return items, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.WarnContext(ctx, "cache get error", "customer_id", customerID, "error", err)
		}

		items, err = s.carts.GetCartItems(ctx, customerID)
		if err != nil {
			return nil, err
		}

		s.fillMu.Lock()
		defer s.fillMu.Unlock()
		if s.epoch.Load() != epoch {
			return items, nil
		}
		if err := s.cache.Set(ctx, customerID, items); err != nil {
			s.log.WarnContext(ctx, "cache set error", "customer_id", customerID, "error", err)
		}
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.CartItem), nil
}

func requireCustomer(actor *domain.User) error {
	if actor.Role != domain.RoleCustomer {
		return fmt.Errorf("%w: only customers have a cart", domain.ErrForbidden)
	}
	return nil
}
