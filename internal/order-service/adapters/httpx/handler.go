package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jcmexdev/ecommerce-orders/internal/order-service/app"
	"github.com/jcmexdev/ecommerce-orders/internal/order-service/domain"
	"github.com/jcmexdev/ecommerce-orders/internal/order-service/ports"
	"github.com/jcmexdev/ecommerce-orders/internal/placementlog"
)

// maxBodyBytes caps the size of a placement request body.
const maxBodyBytes = 1 << 20

// OrderFinder reads back a placed order.
type OrderFinder interface {
	FindByID(ctx context.Context, id string) (*domain.Order, error)
}

// PlacementHistory reads back the placement attempts of a customer.
type PlacementHistory interface {
	Latest(ctx context.Context, customerID string) (*placementlog.Entry, error)
	ListByCustomer(ctx context.Context, customerID string, limit int) ([]*placementlog.Entry, error)
}

type Handler struct {
	placer  app.Placer
	orders  OrderFinder
	history PlacementHistory
}

// NewHandler builds the HTTP handler. history may be nil when no placement
// log is configured.
func NewHandler(placer app.Placer, orders OrderFinder, history PlacementHistory) *Handler {
	return &Handler{placer: placer, orders: orders, history: history}
}

// PlaceOrder decodes the request and hands it to the placement use case.
// Validation of the lines happens there, so a malformed body is the only
// thing rejected here.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_json", Message: err.Error()})
		return
	}

	lines := make([]domain.LineRequest, len(req.Products))
	for i, p := range req.Products {
		lines[i] = domain.LineRequest{ProductID: p.ID, Quantity: p.Quantity}
	}

	order, err := h.placer.PlaceOrder(r.Context(), domain.PlaceOrderRequest{
		CustomerID: req.CustomerID,
		Lines:      lines,
	})
	if err != nil {
		status, body := errorResponse(err)
		if status >= http.StatusInternalServerError {
			slog.ErrorContext(r.Context(), "place order failed", "customer_id", req.CustomerID, "error", err)
		} else {
			slog.InfoContext(r.Context(), "order rejected", "customer_id", req.CustomerID, "reason", body.Error)
		}
		writeError(w, status, body)
		return
	}

	slog.InfoContext(r.Context(), "order placed",
		"order_id", order.ID,
		"customer_id", order.CustomerID,
		"lines", len(order.Lines),
	)
	w.Header().Set("Location", "/orders/"+order.ID)
	writeJSON(w, http.StatusCreated, mapOrderToResponse(order))
}

func (h *Handler) GetOrderByID(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	order, err := h.orders.FindByID(r.Context(), orderID)
	if errors.Is(err, ports.ErrNotFound) {
		writeError(w, http.StatusNotFound, ErrorResponse{Error: "order_not_found", Message: orderID})
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "find order failed", "order_id", orderID, "error", err)
		writeError(w, http.StatusServiceUnavailable, ErrorResponse{Error: "dependency_unavailable"})
		return
	}

	writeJSON(w, http.StatusOK, mapOrderToResponse(order))
}

// ListPlacements returns a customer's placement attempts, newest first.
// The optional limit query parameter bounds the result.
func (h *Handler) ListPlacements(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "id")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	entries, err := h.history.ListByCustomer(r.Context(), customerID, limit)
	if err != nil {
		slog.ErrorContext(r.Context(), "list placements failed", "customer_id", customerID, "error", err)
		writeError(w, http.StatusServiceUnavailable, ErrorResponse{Error: "dependency_unavailable"})
		return
	}

	resp := make([]PlacementResponse, len(entries))
	for i, e := range entries {
		resp[i] = mapPlacementToResponse(e)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) LatestPlacement(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "id")

	entry, err := h.history.Latest(r.Context(), customerID)
	if errors.Is(err, placementlog.ErrNotFound) {
		writeError(w, http.StatusNotFound, ErrorResponse{Error: "placement_not_found", Message: customerID})
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "latest placement failed", "customer_id", customerID, "error", err)
		writeError(w, http.StatusServiceUnavailable, ErrorResponse{Error: "dependency_unavailable"})
		return
	}

	writeJSON(w, http.StatusOK, mapPlacementToResponse(entry))
}

// errorResponse maps a placement error onto a status code and body.
func errorResponse(err error) (int, ErrorResponse) {
	body := ErrorResponse{Error: kindCode(domain.Kind(err)), Message: err.Error()}

	var missing *domain.ProductNotFoundError
	var short *domain.InsufficientStockError
	switch {
	case errors.As(err, &missing):
		body.ProductIDs = missing.ProductIDs
	case errors.As(err, &short):
		for _, s := range short.Shortages {
			body.Shortages = append(body.Shortages, ShortageEntry{
				ProductID: s.ProductID,
				Requested: s.Requested,
				Available: s.Available,
			})
		}
	}

	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest, body
	case errors.Is(err, domain.ErrCustomerNotFound),
		errors.Is(err, domain.ErrNoProductsFound),
		errors.Is(err, domain.ErrProductNotFound):
		return http.StatusNotFound, body
	case errors.Is(err, domain.ErrInsufficientStock):
		return http.StatusConflict, body
	case errors.Is(err, domain.ErrDependencyUnavailable):
		return http.StatusServiceUnavailable, body
	}

	// Persistence failures and anything unclassified: hide internals.
	body.Message = ""
	return http.StatusInternalServerError, body
}

func kindCode(kind string) string {
	if kind == "UNKNOWN" {
		return "internal_error"
	}
	return strings.ToLower(kind)
}

func mapOrderToResponse(order *domain.Order) OrderResponse {
	lines := make([]OrderLineResponse, len(order.Lines))
	for i, l := range order.Lines {
		lines[i] = OrderLineResponse{
			ID:        l.ID,
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			Price:     l.Price.StringFixed(domain.PriceScale),
		}
	}
	return OrderResponse{
		ID:         order.ID,
		CustomerID: order.CustomerID,
		Total:      order.Total().StringFixed(domain.PriceScale),
		Lines:      lines,
		CreatedAt:  order.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:  order.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func mapPlacementToResponse(e *placementlog.Entry) PlacementResponse {
	resp := PlacementResponse{
		OrderID:        e.OrderID,
		CustomerID:     e.CustomerID,
		Status:         string(e.Status),
		IdempotencyKey: e.IdempotencyKey,
		Reason:         e.Reason,
		Detail:         e.Detail,
		TraceID:        e.TraceID,
		RecordedAt:     e.RecordedAt.UTC().Format(time.RFC3339Nano),
	}
	if json.Valid([]byte(e.Payload)) {
		resp.Request = json.RawMessage(e.Payload)
	}
	// Same rule as a failed POST: server-side failures keep their detail private.
	if e.Reason == "PERSISTENCE_FAILURE" || e.Reason == "UNKNOWN" {
		resp.Detail = ""
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, body ErrorResponse) {
	writeJSON(w, status, body)
}
