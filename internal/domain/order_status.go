package domain

import "fmt"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPacked    OrderStatus = "packed"
	OrderStatusOnTheWay  OrderStatus = "on_the_way"
	OrderStatusDelivered OrderStatus = "delivered"
)

var statusOrder = []OrderStatus{
	OrderStatusPending,
	OrderStatusPacked,
	OrderStatusOnTheWay,
	OrderStatusDelivered,
}

// transitions is the authoritative table of forward steps and the only role
// allowed to perform each.
var transitions = map[OrderStatus]struct {
	to   OrderStatus
	role Role
}{
	OrderStatusPending:  {OrderStatusPacked, RoleShopOwner},
	OrderStatusPacked:   {OrderStatusOnTheWay, RoleShopOwner},
	OrderStatusOnTheWay: {OrderStatusDelivered, RoleDeliveryPerson},
}

func ParseOrderStatus(s string) (OrderStatus, error) {
	st := OrderStatus(s)
	if st.Rank() < 0 {
		return "", Validationf("unknown order status %q", s)
	}
	return st, nil
}

// Rank is the position of s in the lifecycle, or -1 for an unknown status.
func (s OrderStatus) Rank() int {
	for i, st := range statusOrder {
		if st == s {
			return i
		}
	}
	return -1
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered
}

// String representation (for logging)
func (s OrderStatus) String() string {
	return string(s)
}

// Next returns the single status reachable from s.
func (s OrderStatus) Next() (OrderStatus, bool) {
	t, ok := transitions[s]
	return t.to, ok
}

func (s OrderStatus) CanTransitionTo(to OrderStatus) bool {
	t, ok := transitions[s]
	return ok && t.to == to
}

// StatusesFrom lists s and every status after it.
func StatusesFrom(s OrderStatus) []OrderStatus {
	r := s.Rank()
	if r < 0 {
		return nil
	}
	out := make([]OrderStatus, len(statusOrder)-r)
	copy(out, statusOrder[r:])
	return out
}

// TransitionRule returns the role permitted to move an order from -> to.
func TransitionRule(from, to OrderStatus) (Role, bool) {
	t, ok := transitions[from]
	if !ok || t.to != to {
		return "", false
	}
	return t.role, true
}

// AuthorizeTransition checks the transition table and the actor's scope over
// the order. ownsShop tells whether the actor owns order.ShopID.
func AuthorizeTransition(actor *User, order *Order, to OrderStatus, ownsShop bool) error {
	from := order.Status
	deny := func(reason string) error {
		return &TransitionError{From: from, To: to, Role: actor.Role, Reason: reason}
	}

	if to.Rank() < 0 {
		return deny(fmt.Sprintf("unknown status %q", to))
	}
	if from.IsTerminal() {
		return deny("order is already " + from.String())
	}
	role, ok := TransitionRule(from, to)
	if !ok {
		return deny("not a permitted step")
	}
	if actor.Role != role {
		return deny("requires " + role.String())
	}

	switch role {
	case RoleShopOwner:
		if !ownsShop {
			return deny("order belongs to another shop")
		}
	case RoleDeliveryPerson:
		if order.DeliveryPersonID != "" && order.DeliveryPersonID != actor.ID {
			return deny("order is assigned to another delivery person")
		}
	}
	return nil
}

// AllowedActions lists the statuses actor may move order to right now.
func AllowedActions(actor *User, order *Order, ownsShop bool) []OrderStatus {
	next, ok := order.Status.Next()
	if !ok {
		return []OrderStatus{}
	}
	if AuthorizeTransition(actor, order, next, ownsShop) != nil {
		return []OrderStatus{}
	}
	return []OrderStatus{next}
}
