package app

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/jcmexdev/ecommerce-orders/internal/order-service/adapters/memory"
	"github.com/jcmexdev/ecommerce-orders/internal/order-service/domain"
)

// TestPlaceOrder_StockConservation checks, for arbitrary catalogs and
// requests, that a placement either decrements exactly the requested
// quantities and records the catalog prices, or changes nothing at all.
func TestPlaceOrder_StockConservation(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		store := memory.NewStore()
		store.AddCustomer(domain.Customer{ID: testCustomerID})

		nProducts := rapid.IntRange(1, 5).Draw(rt, "products")
		catalog := make(map[string]domain.Product, nProducts)
		for i := 0; i < nProducts; i++ {
			p := domain.Product{
				ID:       fmt.Sprintf("p%d", i),
				Price:    decimal.New(rapid.Int64Range(1, 1_000_000).Draw(rt, "cents"), -2),
				Quantity: rapid.IntRange(0, 10).Draw(rt, "stock"),
			}
			store.AddProduct(p)
			catalog[p.ID] = p
		}

		nLines := rapid.IntRange(1, 6).Draw(rt, "lines")
		lines := make([]domain.LineRequest, nLines)
		requested := make(map[string]int)
		anyKnown, anyMissing, short := false, false, false
		for i := range lines {
			idx := rapid.IntRange(0, nProducts).Draw(rt, "product")
			id := "missing"
			if idx < nProducts {
				id = fmt.Sprintf("p%d", idx)
			}
			lines[i] = domain.LineRequest{ProductID: id, Quantity: rapid.IntRange(1, 6).Draw(rt, "quantity")}
			requested[id] += lines[i].Quantity
		}
		for id, q := range requested {
			p, ok := catalog[id]
			if !ok {
				anyMissing = true
				continue
			}
			anyKnown = true
			if p.Quantity < q {
				short = true
			}
		}

		svc := NewPlacementService(store, store)
		order, err := svc.PlaceOrder(context.Background(), domain.PlaceOrderRequest{CustomerID: testCustomerID, Lines: lines})

		switch {
		case !anyKnown:
			require.ErrorIs(rt, err, domain.ErrNoProductsFound)
		case anyMissing:
			require.ErrorIs(rt, err, domain.ErrProductNotFound)
		case short:
			require.ErrorIs(rt, err, domain.ErrInsufficientStock)
		default:
			require.NoError(rt, err)
		}

		if err != nil {
			assert.Nil(rt, order)
			assert.Equal(rt, 0, store.OrderCount())
			for id, p := range catalog {
				got, _ := store.Stock(id)
				assert.Equal(rt, p.Quantity, got, "stock of %s", id)
			}
			return
		}

		require.Len(rt, order.Lines, nLines)
		for i, l := range order.Lines {
			assert.Equal(rt, lines[i].ProductID, l.ProductID)
			assert.Equal(rt, lines[i].Quantity, l.Quantity)
			assert.True(rt, catalog[l.ProductID].Price.Equal(l.Price))
		}
		for id, p := range catalog {
			got, _ := store.Stock(id)
			assert.Equal(rt, p.Quantity-requested[id], got, "stock of %s", id)
			assert.GreaterOrEqual(rt, got, 0)
		}
	})
}
