package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jcmexdev/ecommerce-orders/internal/order-service/domain"
	"github.com/jcmexdev/ecommerce-orders/internal/order-service/ports"
)

// Placer is the use case exposed to transport adapters.
type Placer interface {
	PlaceOrder(ctx context.Context, req domain.PlaceOrderRequest) (*domain.Order, error)
}

// PlacementService validates a request against the customer directory and
// the product catalog, then creates the order and decrements stock in one
// unit of work.
type PlacementService struct {
	customers ports.CustomerDirectory
	tx        ports.Transactor
	tracer    trace.Tracer
}

var _ Placer = (*PlacementService)(nil)

func NewPlacementService(customers ports.CustomerDirectory, tx ports.Transactor) *PlacementService {
	return &PlacementService{
		customers: customers,
		tx:        tx,
		tracer:    otel.Tracer("github.com/jcmexdev/ecommerce-orders/internal/order-service/app"),
	}
}

// PlaceOrder runs validate -> price -> commit. It returns the created order
// or an error wrapping one of the domain.Err* kinds.
func (s *PlacementService) PlaceOrder(ctx context.Context, req domain.PlaceOrderRequest) (order *domain.Order, err error) {
	ctx, span := s.tracer.Start(ctx, "PlacementService.PlaceOrder", trace.WithAttributes(
		attribute.String("customer.id", req.CustomerID),
		attribute.Int("order.requested_lines", len(req.Lines)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, domain.Kind(err))
		} else {
			span.SetAttributes(attribute.String("order.id", order.ID))
		}
		span.End()
	}()

	if err := validate(req); err != nil {
		return nil, err
	}

	customer, err := s.customers.Lookup(ctx, req.CustomerID)
	if errors.Is(err, ports.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", domain.ErrCustomerNotFound, req.CustomerID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: customer lookup: %w", domain.ErrDependencyUnavailable, err)
	}

	totals, ids := aggregate(req.Lines)

	err = s.tx.WithinTx(ctx, func(ctx context.Context, repos ports.Repositories) error {
		products, err := repos.Products.LookupMany(ctx, ids)
		if err != nil {
			return fmt.Errorf("%w: product lookup: %w", domain.ErrDependencyUnavailable, err)
		}
		if len(products) == 0 {
			return fmt.Errorf("%w: %s", domain.ErrNoProductsFound, strings.Join(ids, ", "))
		}

		stock := make(map[string]domain.Product, len(products))
		for _, p := range products {
			stock[p.ID] = p
		}

		if err := checkAvailability(ids, totals, stock); err != nil {
			return err
		}

		lines := priceLines(req.Lines, stock)

		created, err := repos.Orders.Create(ctx, customer, lines)
		if err != nil {
			return writeFailure(ctx, "create order", err)
		}

		updates := make([]domain.StockUpdate, 0, len(ids))
		for _, id := range ids {
			updates = append(updates, domain.StockUpdate{
				ProductID: id,
				Quantity:  stock[id].Quantity - totals[id],
			})
		}
		if err := repos.Products.UpdateQuantities(ctx, updates); err != nil {
			return writeFailure(ctx, "update quantities", err)
		}

		order = created
		return nil
	})
	if err != nil {
		return nil, classify(ctx, err)
	}

	return order, nil
}

func validate(req domain.PlaceOrderRequest) error {
	if strings.TrimSpace(req.CustomerID) == "" {
		return fmt.Errorf("%w: customer id is required", domain.ErrInvalidRequest)
	}
	if len(req.Lines) == 0 {
		return fmt.Errorf("%w: at least one product is required", domain.ErrInvalidRequest)
	}
	totals := make(map[string]int, len(req.Lines))
	for i, l := range req.Lines {
		if strings.TrimSpace(l.ProductID) == "" {
			return fmt.Errorf("%w: line %d: product id is required", domain.ErrInvalidRequest, i)
		}
		if l.Quantity <= 0 {
			return fmt.Errorf("%w: line %d: quantity must be positive, got %d", domain.ErrInvalidRequest, i, l.Quantity)
		}
		if l.Quantity > domain.MaxQuantity-totals[l.ProductID] {
			return fmt.Errorf("%w: line %d: total quantity of %s exceeds %d", domain.ErrInvalidRequest, i, l.ProductID, domain.MaxQuantity)
		}
		totals[l.ProductID] += l.Quantity
	}
	return nil
}

// aggregate sums requested quantities per product and returns the distinct
// product ids in first-seen order.
func aggregate(lines []domain.LineRequest) (map[string]int, []string) {
	totals := make(map[string]int, len(lines))
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		if _, seen := totals[l.ProductID]; !seen {
			ids = append(ids, l.ProductID)
		}
		totals[l.ProductID] += l.Quantity
	}
	return totals, ids
}

func checkAvailability(ids []string, totals map[string]int, stock map[string]domain.Product) error {
	var missing []string
	for _, id := range ids {
		if _, ok := stock[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return &domain.ProductNotFoundError{ProductIDs: missing}
	}

	var shortages []domain.Shortage
	for _, id := range ids {
		if p := stock[id]; p.Quantity < totals[id] {
			shortages = append(shortages, domain.Shortage{
				ProductID: id,
				Requested: totals[id],
				Available: p.Quantity,
			})
		}
	}
	if len(shortages) > 0 {
		return &domain.InsufficientStockError{Shortages: shortages}
	}
	return nil
}

func priceLines(req []domain.LineRequest, stock map[string]domain.Product) []domain.OrderLine {
	lines := make([]domain.OrderLine, len(req))
	for i, l := range req {
		lines[i] = domain.OrderLine{
			ID:        uuid.NewString(),
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			Price:     domain.RoundPrice(stock[l.ProductID].Price),
		}
	}
	return lines
}

func writeFailure(ctx context.Context, op string, err error) error {
	if unavailable(ctx, err) {
		return fmt.Errorf("%w: %s: %w", domain.ErrDependencyUnavailable, op, err)
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrPersistenceFailure, op, err)
}

func unavailable(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, ports.ErrUnavailable) ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

// classify maps errors surfacing from the unit of work onto domain kinds.
// Errors produced inside the callback already carry a kind; anything else
// came from begin/commit.
func classify(ctx context.Context, err error) error {
	if domain.Kind(err) != "UNKNOWN" {
		return err
	}
	if unavailable(ctx, err) {
		return fmt.Errorf("%w: %w", domain.ErrDependencyUnavailable, err)
	}
	return fmt.Errorf("%w: %w", domain.ErrPersistenceFailure, err)
}
