package client

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/orderbuddy/orderbuddy/internal/domain"
)

// ErrNetwork wraps every transport failure. Calls are never retried.
var ErrNetwork = errors.New("network error")

// ErrNoSession is returned by calls that need a login when none is active.
var ErrNoSession = fmt.Errorf("%w: no active session", domain.ErrUnauthorized)

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    string
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.StatusCode, e.Code, e.Details)
	}
	return fmt.Sprintf("api error %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

var codeSentinels = map[string][]error{
	"validation_error":      {domain.ErrValidation},
	"invalid_request":       {domain.ErrValidation},
	"invalid_quantity":      {domain.ErrValidation},
	"invalid_product_id":    {domain.ErrValidation},
	"mixed_shop_cart":       {domain.ErrMixedShopCart, domain.ErrValidation},
	"empty_cart":            {domain.ErrEmptyCart},
	"unauthorized":          {domain.ErrUnauthorized},
	"forbidden":             {domain.ErrForbidden},
	"not_found":             {domain.ErrNotFound},
	"invalid_transition":    {domain.ErrInvalidTransition},
	"out_of_stock":          {domain.ErrOutOfStock},
	"conflict":              {domain.ErrConflict},
	"order_creation_failed": {domain.ErrOrderCreation},
}

// Is lets callers test API errors against the domain sentinels, falling back
// to the HTTP status when the code is unknown.
func (e *APIError) Is(target error) bool {
	if sentinels, ok := codeSentinels[e.Code]; ok {
		for _, s := range sentinels {
			if s == target {
				return true
			}
		}
		return false
	}
	switch e.StatusCode {
	case http.StatusBadRequest:
		return target == domain.ErrValidation
	case http.StatusUnauthorized:
		return target == domain.ErrUnauthorized
	case http.StatusForbidden:
		return target == domain.ErrForbidden
	case http.StatusNotFound:
		return target == domain.ErrNotFound
	case http.StatusConflict:
		return target == domain.ErrConflict
	}
	return false
}
