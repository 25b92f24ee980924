package service

import (
	"context"
	"fmt"

	"github.com/orderbuddy/orderbuddy/internal/domain"
	"github.com/orderbuddy/orderbuddy/internal/repository"
)

type DashboardService struct {
	stats  repository.StatsRepository
	orders *OrderService
}

func NewDashboardService(stats repository.StatsRepository, orders *OrderService) *DashboardService {
	return &DashboardService{stats: stats, orders: orders}
}

// Stats returns the counters shown on the actor's dashboard.
func (s *DashboardService) Stats(ctx context.Context, actor *domain.User) (*domain.Stats, error) {
	var (
		out domain.Stats
		err error
	)
	count := func(dst **int, f func() (int, error)) {
		if err != nil {
			return
		}
		var n int
		if n, err = f(); err == nil {
			*dst = &n
		}
	}

	switch actor.Role {
	case domain.RoleShopOwner:
		count(&out.TotalShops, func() (int, error) { return s.stats.CountShopsByOwner(ctx, actor.ID) })
		count(&out.TotalProducts, func() (int, error) { return s.stats.CountProductsByOwner(ctx, actor.ID) })
		count(&out.TotalOrders, func() (int, error) { return s.stats.CountOrdersByOwner(ctx, actor.ID) })
	case domain.RoleCustomer:
		count(&out.TotalOrders, func() (int, error) { return s.stats.CountOrdersByCustomer(ctx, actor.ID) })
		count(&out.CartItems, func() (int, error) { return s.stats.CountCartItems(ctx, actor.ID) })
	case domain.RoleDeliveryPerson:
		count(&out.TotalDeliveries, func() (int, error) { return s.stats.CountDeliveries(ctx, actor.ID, nil) })
		count(&out.PendingDeliveries, func() (int, error) {
			return s.stats.CountDeliveries(ctx, actor.ID,
				[]domain.OrderStatus{domain.OrderStatusPacked, domain.OrderStatusOnTheWay})
		})
	default:
		return nil, fmt.Errorf("%w: unknown role %q", domain.ErrForbidden, actor.Role)
	}
	if err != nil {
		return nil, fmt.Errorf("dashboard stats: %w", err)
	}
	return &out, nil
}

// View is the role-scoped order board: every visible order with the actions
// the actor may take on it.
func (s *DashboardService) View(ctx context.Context, actor *domain.User) ([]domain.OrderView, error) {
	return s.orders.Views(ctx, actor)
}
