// Package seed loads customers and products from a JSON fixture into a
// store at startup.
//
//	{
//	  "customers": [{"id": "cust-1", "name": "Ana", "email": "ana@example.com"}],
//	  "products":  [{"id": "A", "name": "Lamp", "price": "19.90", "quantity": 5}]
//	}
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jcmexdev/ecommerce-orders/internal/order-service/domain"
)

// Target is implemented by every store adapter.
type Target interface {
	SaveCustomer(ctx context.Context, c domain.Customer) error
	SaveProduct(ctx context.Context, p domain.Product) error
}

type Fixture struct {
	Customers []domain.Customer `json:"customers"`
	Products  []domain.Product  `json:"products"`
}

// Decode reads a fixture and rejects entries a store would refuse.
func Decode(r io.Reader) (*Fixture, error) {
	var f Fixture
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("seed: decode: %w", err)
	}
	for i, c := range f.Customers {
		if c.ID == "" {
			return nil, fmt.Errorf("seed: customer %d: id is required", i)
		}
	}
	for i, p := range f.Products {
		if p.ID == "" {
			return nil, fmt.Errorf("seed: product %d: id is required", i)
		}
		if p.Quantity < 0 {
			return nil, fmt.Errorf("seed: product %s: negative quantity %d", p.ID, p.Quantity)
		}
		if p.Price.IsNegative() {
			return nil, fmt.Errorf("seed: product %s: negative price %s", p.ID, p.Price)
		}
	}
	return &f, nil
}

// Apply upserts every customer and product of f into t.
func Apply(ctx context.Context, t Target, f *Fixture) error {
	for _, c := range f.Customers {
		if err := t.SaveCustomer(ctx, c); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}
	for _, p := range f.Products {
		if err := t.SaveProduct(ctx, p); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}
	return nil
}

// LoadFile decodes the fixture at path and applies it to t.
func LoadFile(ctx context.Context, t Target, path string) (*Fixture, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("seed: open %q: %w", path, err)
	}
	defer fh.Close()

	f, err := Decode(fh)
	if err != nil {
		return nil, err
	}
	return f, Apply(ctx, t, f)
}
