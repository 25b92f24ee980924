package cache

import (
	"context"
	"errors"

	"github.com/orderbuddy/orderbuddy/internal/domain"
)

// CartCache holds the raw cart lines of a customer. Product data is never
// cached; it is joined on every read.
type CartCache interface {
	Get(ctx context.Context, customerID string) ([]domain.CartItem, error)
	Set(ctx context.Context, customerID string, items []domain.CartItem) error
	Delete(ctx context.Context, customerID string) error
}

var ErrCacheMiss = errors.New("cache miss")

// NopCache is used when no redis is configured. Every Get misses.
type NopCache struct{}

func (NopCache) Get(context.Context, string) ([]domain.CartItem, error) {
	return nil, ErrCacheMiss
}

func (NopCache) Set(context.Context, string, []domain.CartItem) error {
	return nil
}

func (NopCache) Delete(context.Context, string) error {
	return nil
}
