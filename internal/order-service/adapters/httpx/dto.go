package httpx

import "encoding/json"

type PlaceOrderRequest struct {
	CustomerID string           `json:"customer_id"`
	Products   []OrderLineInput `json:"products"`
}

type OrderLineInput struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
}

// Prices and totals are decimal strings with two fractional digits.
type OrderResponse struct {
	ID         string              `json:"id"`
	CustomerID string              `json:"customer_id"`
	Total      string              `json:"total"`
	Lines      []OrderLineResponse `json:"lines"`
	CreatedAt  string              `json:"created_at"`
	UpdatedAt  string              `json:"updated_at"`
}

type OrderLineResponse struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
}

type ErrorResponse struct {
	Error      string          `json:"error"`
	Message    string          `json:"message,omitempty"`
	ProductIDs []string        `json:"product_ids,omitempty"`
	Shortages  []ShortageEntry `json:"shortages,omitempty"`
}

type ShortageEntry struct {
	ProductID string `json:"product_id"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// PlacementResponse is one placement log entry. Request echoes the body
// the attempt was made with.
type PlacementResponse struct {
	OrderID        string          `json:"order_id,omitempty"`
	CustomerID     string          `json:"customer_id"`
	Status         string          `json:"status"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	Reason         string          `json:"reason,omitempty"`
	Detail         string          `json:"detail,omitempty"`
	Request        json.RawMessage `json:"request,omitempty"`
	TraceID        string          `json:"trace_id,omitempty"`
	RecordedAt     string          `json:"recorded_at"`
}
