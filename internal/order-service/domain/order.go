package domain

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// PriceScale is the number of fractional digits kept for every price.
const PriceScale = 2

// MaxQuantity bounds a single line and the total requested of one product.
// It matches the INTEGER quantity columns of the SQL stores.
const MaxQuantity = math.MaxInt32

type Customer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Product struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// LineRequest is one (product, quantity) pair as supplied by the caller.
type LineRequest struct {
	ProductID string `json:"id"`
	Quantity  int    `json:"quantity"`
}

type PlaceOrderRequest struct {
	CustomerID string        `json:"customer_id"`
	Lines      []LineRequest `json:"products"`
}

// OrderLine is a persisted line item. Price is the catalog price captured
// when the order was placed, not a live reference to the product.
type OrderLine struct {
	ID        string
	ProductID string
	Quantity  int
	Price     decimal.Decimal
}

func (l OrderLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Order struct {
	ID         string
	CustomerID string
	Lines      []OrderLine
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (o *Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range o.Lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// StockUpdate carries the new absolute quantity for a product.
type StockUpdate struct {
	ProductID string
	Quantity  int
}

// RoundPrice normalises a price to PriceScale fractional digits.
func RoundPrice(p decimal.Decimal) decimal.Decimal {
	return p.Round(PriceScale)
}
