package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Failure kinds returned by order placement. Callers branch on them with
// errors.Is; the detailed types below are reachable with errors.As.
var (
	ErrInvalidRequest        = errors.New("invalid request")
	ErrCustomerNotFound      = errors.New("customer not found")
	ErrNoProductsFound       = errors.New("no products found")
	ErrProductNotFound       = errors.New("product not found")
	ErrInsufficientStock     = errors.New("insufficient stock")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	ErrPersistenceFailure    = errors.New("persistence failure")
)

// ProductNotFoundError names every requested product id the catalog did not
// return, in request order.
type ProductNotFoundError struct {
	ProductIDs []string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product not found: %s", strings.Join(e.ProductIDs, ", "))
}

func (e *ProductNotFoundError) Unwrap() error { return ErrProductNotFound }

type Shortage struct {
	ProductID string `json:"product_id"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// InsufficientStockError reports all products whose requested total exceeds
// the stock observed at lookup time.
type InsufficientStockError struct {
	Shortages []Shortage
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, len(e.Shortages))
	for i, s := range e.Shortages {
		parts[i] = fmt.Sprintf("%s (requested %d, available %d)", s.ProductID, s.Requested, s.Available)
	}
	return "insufficient stock: " + strings.Join(parts, ", ")
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// Kind returns a stable machine-readable name for err, or "UNKNOWN".
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidRequest):
		return "INVALID_REQUEST"
	case errors.Is(err, ErrCustomerNotFound):
		return "CUSTOMER_NOT_FOUND"
	case errors.Is(err, ErrNoProductsFound):
		return "NO_PRODUCTS_FOUND"
	case errors.Is(err, ErrProductNotFound):
		return "PRODUCT_NOT_FOUND"
	case errors.Is(err, ErrInsufficientStock):
		return "INSUFFICIENT_STOCK"
	case errors.Is(err, ErrDependencyUnavailable):
		return "DEPENDENCY_UNAVAILABLE"
	case errors.Is(err, ErrPersistenceFailure):
		return "PERSISTENCE_FAILURE"
	default:
		return "UNKNOWN"
	}
}
