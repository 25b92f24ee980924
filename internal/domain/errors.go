package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrEmptyCart         = errors.New("cart is empty, nothing to order")
	ErrOutOfStock        = errors.New("insufficient stock")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrOrderCreation     = errors.New("order creation failed")

	ErrMixedShopCart = fmt.Errorf("%w: cart contains products from more than one shop", ErrValidation)
)

// Validationf returns an error wrapping ErrValidation with a formatted detail.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// TransitionError describes a rejected order status change.
type TransitionError struct {
	From   OrderStatus
	To     OrderStatus
	Role   Role
	Reason string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s for %s: %s", e.From, e.To, e.Role, e.Reason)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
