package app

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/jcmexdev/ecommerce-orders/internal/order-service/domain"
	"github.com/jcmexdev/ecommerce-orders/internal/pkg/requestctx"
	"github.com/jcmexdev/ecommerce-orders/internal/placementlog"
)

// AuditedPlacer records every placement attempt in a placement log. Writing
// the log entry happens after the outcome is decided and its failure is only
// logged; the caller always gets the wrapped Placer's result.
type AuditedPlacer struct {
	next Placer
	log  placementlog.Repository
}

var _ Placer = (*AuditedPlacer)(nil)

func NewAuditedPlacer(next Placer, log placementlog.Repository) *AuditedPlacer {
	return &AuditedPlacer{next: next, log: log}
}

func (a *AuditedPlacer) PlaceOrder(ctx context.Context, req domain.PlaceOrderRequest) (*domain.Order, error) {
	order, err := a.next.PlaceOrder(ctx, req)

	payload, mErr := json.Marshal(req)
	if mErr != nil {
		slog.WarnContext(ctx, "placement log: encode request", "error", mErr)
	}

	var entry *placementlog.Entry
	if err != nil {
		entry = placementlog.NewEntry(ctx, placementlog.StatusRejected, req.CustomerID, "", string(payload))
		entry.Reason = domain.Kind(err)
		entry.Detail = err.Error()
	} else {
		entry = placementlog.NewEntry(ctx, placementlog.StatusCommitted, req.CustomerID, order.ID, string(payload))
	}
	entry.IdempotencyKey = requestctx.IdempotencyKey(ctx)

	// The request context may already be cancelled; the audit row is still wanted.
	if sErr := a.log.Save(context.WithoutCancel(ctx), entry); sErr != nil {
		slog.ErrorContext(ctx, "placement log: save entry",
			"customer_id", req.CustomerID,
			"status", entry.Status,
			"error", sErr,
		)
	}

	return order, err
}
