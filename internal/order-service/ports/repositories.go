// Package ports declares the collaborators order placement depends on.
// Storage adapters implement them; the app package only sees these
// interfaces, so the backend can be swapped for Postgres, SQLite or the
// in-memory store used in tests.
package ports

import (
	"context"
	"errors"

	"github.com/jcmexdev/ecommerce-orders/internal/order-service/domain"
)

var (
	// ErrNotFound is returned by lookups when the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable marks backend failures that happen before any work is
	// done (connection refused, pool exhausted, begin failed).
	ErrUnavailable = errors.New("backend unavailable")
)

type CustomerDirectory interface {
	// Lookup returns ErrNotFound when no customer has the given id.
	Lookup(ctx context.Context, id string) (domain.Customer, error)
}

type ProductCatalog interface {
	// LookupMany returns the products matching ids. Missing ids are simply
	// absent from the result; a partial miss is not an error.
	LookupMany(ctx context.Context, ids []string) ([]domain.Product, error)

	// UpdateQuantities sets each product's quantity to the given absolute value.
	UpdateQuantities(ctx context.Context, updates []domain.StockUpdate) error
}

type OrderStore interface {
	Create(ctx context.Context, customer domain.Customer, lines []domain.OrderLine) (*domain.Order, error)
	FindByID(ctx context.Context, id string) (*domain.Order, error)
}

// Repositories are the collaborators bound to a single unit of work.
// A ProductCatalog obtained here holds the rows it reads locked until the
// unit of work ends.
type Repositories struct {
	Products ProductCatalog
	Orders   OrderStore
}

// Transactor runs fn atomically. If fn returns an error every write made
// through repos is discarded and that error is returned unchanged.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
