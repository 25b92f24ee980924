package service

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/orderbuddy/orderbuddy/internal/domain"
	"github.com/orderbuddy/orderbuddy/internal/repository"
)

// CartInvalidator drops cached cart state after the cart changed outside the
// cart service.
type CartInvalidator interface {
	Invalidate(customerID string)
}

type PlaceOrderRequest struct {
	// ShopID is optional. When set, the cart must belong to this shop.
	ShopID string `json:"shop_id"`
}

type OrderService struct {
	orders      repository.OrderRepository
	carts       repository.CartRepository
	products    repository.ProductRepository
	shops       repository.ShopRepository
	invalidator CartInvalidator
	visibleFrom domain.OrderStatus
	log         *slog.Logger
	now         func() time.Time
	otp         func() (string, error)
}

func NewOrderService(store repository.Store, invalidator CartInvalidator, visibleFrom domain.OrderStatus,
	log *slog.Logger) *OrderService {
	return &OrderService{
		orders:      store,
		carts:       store,
		products:    store,
		shops:       store,
		invalidator: invalidator,
		visibleFrom: visibleFrom,
		log:         log.With("component", "order_service"),
		now:         time.Now,
		otp:         newOTP,
	}
}

// PlaceOrder turns the customer's cart into a pending order. Prices and names
// are copied from the live products, the total is frozen, and stock decrement,
// order insert and cart clear commit together or not at all.
func (s *OrderService) PlaceOrder(ctx context.Context, actor *domain.User, req PlaceOrderRequest) (*domain.Order, error) {
	if actor.Role != domain.RoleCustomer {
		return nil, fmt.Errorf("%w: only customers can place orders", domain.ErrForbidden)
	}

	cart, err := s.carts.GetCartItems(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if len(cart) == 0 {
		return nil, domain.ErrEmptyCart
	}

	ids := make([]string, 0, len(cart))
	for _, it := range cart {
		ids = append(ids, it.ProductID)
	}
	products, err := s.products.GetProducts(ctx, ids)
	if err != nil {
		return nil, err
	}

	shopID := ""
	items := make([]domain.OrderItem, 0, len(cart))
	for _, it := range cart {
		p, ok := products[it.ProductID]
		if !ok || !p.IsActive {
			return nil, fmt.Errorf("product %s in cart: %w", it.ProductID, domain.ErrNotFound)
		}
		if shopID == "" {
			shopID = p.ShopID
		} else if p.ShopID != shopID {
			return nil, domain.ErrMixedShopCart
		}
		items = append(items, domain.OrderItem{
			ProductID: p.ID,
			Name:      p.Name,
			Quantity:  it.Quantity,
			Price:     p.Price,
		})
	}
	if req.ShopID != "" && req.ShopID != shopID {
		return nil, domain.Validationf("cart belongs to shop %s, not %s", shopID, req.ShopID)
	}

	shop, err := s.shops.GetShop(ctx, shopID)
	if err != nil {
		return nil, err
	}

	otp, err := s.otp()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrOrderCreation, err)
	}

	now := s.now().UTC()
	order := &domain.Order{
		ID:              uuid.NewString(),
		CustomerID:      actor.ID,
		ShopID:          shopID,
		Items:           items,
		TotalAmount:     domain.SumItems(items),
		Status:          domain.OrderStatusPending,
		DeliveryAddress: actor.Location.String(),
		District:        shop.District,
		OTP:             otp,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	event, err := newEvent(order.ID, domain.EventOrderPlaced, now, domain.OrderPlacedPayload{
		OrderID:     order.ID,
		CustomerID:  order.CustomerID,
		ShopID:      order.ShopID,
		TotalAmount: order.TotalAmount.StringFixed(2),
		Items:       order.Items,
		PlacedAt:    now,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrOrderCreation, err)
	}

	if err := s.orders.PlaceOrder(ctx, order, cart, event); err != nil {
		if isDomainError(err) {
			return nil, err
		}
		s.log.ErrorContext(ctx, "failed to place order", "customer_id", actor.ID, "error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrOrderCreation, err)
	}

	s.invalidator.Invalidate(actor.ID)
	s.log.InfoContext(ctx, "order placed", "order_id", order.ID, "shop_id", shopID,
		"total", order.TotalAmount.StringFixed(2))
	return order, nil
}

// ListOrders returns the orders the actor can see.
func (s *OrderService) ListOrders(ctx context.Context, actor *domain.User) ([]*domain.Order, error) {
	switch actor.Role {
	case domain.RoleCustomer:
		return s.orders.ListOrdersByCustomer(ctx, actor.ID)
	case domain.RoleShopOwner:
		return s.orders.ListOrdersByOwner(ctx, actor.ID)
	case domain.RoleDeliveryPerson:
		return s.orders.ListOrdersForDelivery(ctx, repository.DeliveryQuery{
			District:         actor.District,
			Statuses:         domain.StatusesFrom(s.visibleFrom),
			DeliveryPersonID: actor.ID,
		})
	}
	return nil, fmt.Errorf("%w: unknown role %q", domain.ErrForbidden, actor.Role)
}

// GetOrder returns ErrNotFound both for missing orders and for orders the
// actor cannot see.
func (s *OrderService) GetOrder(ctx context.Context, actor *domain.User, id string) (*domain.Order, error) {
	order, _, err := s.visibleOrder(ctx, actor, id)
	return order, err
}

// UpdateStatus applies one step of the lifecycle. The write is a
// compare-and-set on the status read here, so a concurrent change makes it
// fail with ErrConflict instead of being overwritten.
func (s *OrderService) UpdateStatus(ctx context.Context, actor *domain.User, id string, to domain.OrderStatus) (*domain.Order, error) {
	order, ownsShop, err := s.visibleOrder(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := domain.AuthorizeTransition(actor, order, to, ownsShop); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	event, err := newEvent(order.ID, domain.EventOrderStatusChanged, now, domain.OrderStatusChangedPayload{
		OrderID:   order.ID,
		From:      order.Status,
		To:        to,
		ChangedBy: actor.ID,
		ChangedAt: now,
	})
	if err != nil {
		return nil, err
	}

	t := repository.Transition{
		OrderID: order.ID,
		From:    order.Status,
		To:      to,
		ActorID: actor.ID,
		At:      now,
		Event:   event,
	}
	if actor.Role == domain.RoleDeliveryPerson {
		t.AssignTo = actor.ID
	}
	if err := s.orders.TransitionOrder(ctx, t); err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "order status changed", "order_id", order.ID,
		"from", order.Status, "to", to, "actor_id", actor.ID)
	return s.orders.GetOrder(ctx, order.ID)
}

// Claim assigns a visible, undelivered order to the calling delivery person.
func (s *OrderService) Claim(ctx context.Context, actor *domain.User, id string) (*domain.Order, error) {
	if actor.Role != domain.RoleDeliveryPerson {
		return nil, fmt.Errorf("%w: only delivery personnel can claim orders", domain.ErrForbidden)
	}
	order, _, err := s.visibleOrder(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if order.Status.IsTerminal() {
		return nil, &domain.TransitionError{
			From: order.Status, To: order.Status, Role: actor.Role, Reason: "order is already delivered",
		}
	}
	if err := s.orders.ClaimOrder(ctx, order.ID, actor.ID, s.now()); err != nil {
		return nil, err
	}
	return s.orders.GetOrder(ctx, order.ID)
}

func (s *OrderService) History(ctx context.Context, actor *domain.User, id string) ([]domain.StatusChange, error) {
	if _, _, err := s.visibleOrder(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.orders.ListStatusHistory(ctx, id)
}

// Views pairs each visible order with the transitions the actor may apply.
func (s *OrderService) Views(ctx context.Context, actor *domain.User) ([]domain.OrderView, error) {
	orders, err := s.ListOrders(ctx, actor)
	if err != nil {
		return nil, err
	}
	// owners only ever list orders of their own shops
	ownsShop := actor.Role == domain.RoleShopOwner
	views := make([]domain.OrderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, domain.OrderView{
			Order:          *o,
			AllowedActions: domain.AllowedActions(actor, o, ownsShop),
		})
	}
	return views, nil
}

// visibleOrder loads the order and reports whether actor owns its shop.
func (s *OrderService) visibleOrder(ctx context.Context, actor *domain.User, id string) (*domain.Order, bool, error) {
	order, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		return nil, false, err
	}
	notFound := fmt.Errorf("order %s: %w", id, domain.ErrNotFound)

	switch actor.Role {
	case domain.RoleCustomer:
		if order.CustomerID != actor.ID {
			return nil, false, notFound
		}
		return order, false, nil
	case domain.RoleShopOwner:
		shop, err := s.shops.GetShop(ctx, order.ShopID)
		if err != nil {
			return nil, false, err
		}
		if shop.OwnerID != actor.ID {
			return nil, false, notFound
		}
		return order, true, nil
	case domain.RoleDeliveryPerson:
		if order.District != actor.District ||
			order.Status.Rank() < s.visibleFrom.Rank() ||
			(order.DeliveryPersonID != "" && order.DeliveryPersonID != actor.ID) {
			return nil, false, notFound
		}
		return order, false, nil
	}
	return nil, false, notFound
}

func newEvent(aggregateID, eventType string, at time.Time, payload any) (*domain.OutboxEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return &domain.OutboxEvent{
		ID:          uuid.New(),
		AggregateID: aggregateID,
		EventType:   eventType,
		Payload:     data,
		CreatedAt:   at,
	}, nil
}

// newOTP returns a 4 digit delivery confirmation code.
func newOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%04d", n.Int64()), nil
}

func isDomainError(err error) bool {
	for _, target := range []error{
		domain.ErrOutOfStock, domain.ErrConflict, domain.ErrNotFound, domain.ErrValidation,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
