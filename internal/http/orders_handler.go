package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/orderbuddy/orderbuddy/internal/domain"
	"github.com/orderbuddy/orderbuddy/internal/service"
)

type OrdersHandler struct {
	orders OrderService
	log    *slog.Logger
}

func NewOrdersHandler(orders OrderService, log *slog.Logger) *OrdersHandler {
	return &OrdersHandler{orders: orders, log: log}
}

type StatusUpdateRequestDTO struct {
	Status string `json:"status"`
}

// redact hides the delivery code from everyone but the customer who has to
// hand it over at the door.
func redact(actor *domain.User, o *domain.Order) *domain.Order {
	if actor.Role == domain.RoleCustomer || o.OTP == "" {
		return o
	}
	cp := *o
	cp.OTP = ""
	return &cp
}

// POST /api/orders
func (h *OrdersHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	// the body is optional: an empty one orders the whole cart
	var req service.PlaceOrderRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}

	order, err := h.orders.PlaceOrder(r.Context(), actor, req)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, redact(actor, order))
}

// GET /api/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	orders, err := h.orders.ListOrders(r.Context(), actor)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	out := make([]*domain.Order, 0, len(orders))
	for _, o := range orders {
		out = append(out, redact(actor, o))
	}
	respondJSON(w, http.StatusOK, out)
}

// GET /api/orders/{order_id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	order, err := h.orders.GetOrder(r.Context(), actor, chi.URLParam(r, "order_id"))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, redact(actor, order))
}

// PATCH /api/orders/{order_id}/status
func (h *OrdersHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req StatusUpdateRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Status == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "status is required")
		return
	}

	// unknown targets are rejected by the lifecycle as invalid transitions
	order, err := h.orders.UpdateStatus(r.Context(), actor, chi.URLParam(r, "order_id"), domain.OrderStatus(req.Status))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, redact(actor, order))
}

// POST /api/orders/{order_id}/claim
func (h *OrdersHandler) Claim(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	order, err := h.orders.Claim(r.Context(), actor, chi.URLParam(r, "order_id"))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, redact(actor, order))
}

// GET /api/orders/{order_id}/history
func (h *OrdersHandler) History(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	changes, err := h.orders.History(r.Context(), actor, chi.URLParam(r, "order_id"))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(changes))
}
