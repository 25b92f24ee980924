package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/orderbuddy/orderbuddy/internal/domain"
	"github.com/orderbuddy/orderbuddy/internal/location"
	"github.com/orderbuddy/orderbuddy/internal/repository"
)

const (
	defaultOpeningTime = "09:00"
	defaultClosingTime = "21:00"
)

type ShopInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	domain.Location
	OpeningTime string `json:"opening_time"`
	ClosingTime string `json:"closing_time"`
}

type ProductInput struct {
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	Category      string          `json:"category"`
	StockQuantity int             `json:"stock_quantity"`
	ImageURL      string          `json:"image_url"`
}

type CatalogService struct {
	shops     repository.ShopRepository
	products  repository.ProductRepository
	locations *location.Hierarchy
	log       *slog.Logger
	now       func() time.Time
}

func NewCatalogService(shops repository.ShopRepository, products repository.ProductRepository,
	locations *location.Hierarchy, log *slog.Logger) *CatalogService {
	return &CatalogService{
		shops:     shops,
		products:  products,
		locations: locations,
		log:       log.With("component", "catalog_service"),
		now:       time.Now,
	}
}

func (s *CatalogService) Locations() map[string]location.District {
	return s.locations.Map()
}

func (s *CatalogService) CreateShop(ctx context.Context, actor *domain.User, in ShopInput) (*domain.Shop, error) {
	if actor.Role != domain.RoleShopOwner {
		return nil, fmt.Errorf("%w: only shop owners can create shops", domain.ErrForbidden)
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, domain.Validationf("shop name is required")
	}
	if err := s.locations.Validate(in.Location); err != nil {
		return nil, err
	}
	opening, err := clockTime(in.OpeningTime, defaultOpeningTime)
	if err != nil {
		return nil, err
	}
	closing, err := clockTime(in.ClosingTime, defaultClosingTime)
	if err != nil {
		return nil, err
	}

	shop := &domain.Shop{
		ID:          uuid.NewString(),
		OwnerID:     actor.ID,
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Location:    in.Location,
		IsOpen:      true,
		OpeningTime: opening,
		ClosingTime: closing,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.shops.CreateShop(ctx, shop); err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "shop created", "shop_id", shop.ID, "owner_id", actor.ID)
	return shop, nil
}

// ListShops returns shops whose location matches every level set in filter.
func (s *CatalogService) ListShops(ctx context.Context, filter domain.Location) ([]*domain.Shop, error) {
	if err := s.locations.ValidatePartial(filter); err != nil {
		return nil, err
	}
	return s.shops.ListShops(ctx, filter)
}

func (s *CatalogService) MyShops(ctx context.Context, actor *domain.User) ([]*domain.Shop, error) {
	if actor.Role != domain.RoleShopOwner {
		return nil, fmt.Errorf("%w: only shop owners have shops", domain.ErrForbidden)
	}
	return s.shops.ListShopsByOwner(ctx, actor.ID)
}

func (s *CatalogService) SetShopOpen(ctx context.Context, actor *domain.User, shopID string, open bool) (*domain.Shop, error) {
	shop, err := s.ownedShop(ctx, actor, shopID)
	if err != nil {
		return nil, err
	}
	if err := s.shops.SetShopOpen(ctx, shop.ID, open); err != nil {
		return nil, err
	}
	shop.IsOpen = open
	return shop, nil
}

func (s *CatalogService) CreateProduct(ctx context.Context, actor *domain.User, shopID string, in ProductInput) (*domain.Product, error) {
	shop, err := s.ownedShop(ctx, actor, shopID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, domain.Validationf("product name is required")
	}
	if in.Price.IsNegative() {
		return nil, domain.Validationf("price must not be negative")
	}
	if in.StockQuantity < 0 {
		return nil, domain.Validationf("stock_quantity must not be negative")
	}

	p := &domain.Product{
		ID:            uuid.NewString(),
		ShopID:        shop.ID,
		Name:          strings.TrimSpace(in.Name),
		Description:   in.Description,
		Price:         in.Price.Round(2),
		Category:      strings.TrimSpace(in.Category),
		StockQuantity: in.StockQuantity,
		ImageURL:      in.ImageURL,
		IsActive:      true,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.products.CreateProduct(ctx, p); err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "product created", "product_id", p.ID, "shop_id", shop.ID)
	return p, nil
}

func (s *CatalogService) ListProducts(ctx context.Context, shopID string) ([]*domain.Product, error) {
	if _, err := s.shops.GetShop(ctx, shopID); err != nil {
		return nil, err
	}
	return s.products.ListProductsByShop(ctx, shopID)
}

func (s *CatalogService) SearchProducts(ctx context.Context, q domain.ProductQuery) ([]*domain.Product, error) {
	q.Text = strings.TrimSpace(q.Text)
	if err := s.locations.ValidatePartial(domain.Location{District: q.District, Taluk: q.Taluk}); err != nil {
		return nil, err
	}
	return s.products.SearchProducts(ctx, q)
}

func (s *CatalogService) ownedShop(ctx context.Context, actor *domain.User, shopID string) (*domain.Shop, error) {
	if actor.Role != domain.RoleShopOwner {
		return nil, fmt.Errorf("%w: only shop owners can manage shops", domain.ErrForbidden)
	}
	shop, err := s.shops.GetShop(ctx, shopID)
	if err != nil {
		return nil, err
	}
	if shop.OwnerID != actor.ID {
		return nil, fmt.Errorf("%w: shop %s belongs to another owner", domain.ErrForbidden, shopID)
	}
	return shop, nil
}

// clockTime validates an "HH:MM" value, substituting def when empty.
func clockTime(v, def string) (string, error) {
	if v == "" {
		return def, nil
	}
	if _, err := time.Parse("15:04", v); err != nil {
		return "", domain.Validationf("invalid time %q, expected HH:MM", v)
	}
	return v, nil
}
