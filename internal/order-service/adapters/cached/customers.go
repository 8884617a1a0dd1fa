// Package cached decorates order-service ports with a read-through cache.
package cached

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/jcmexdev/ecommerce-orders/internal/order-service/domain"
	"github.com/jcmexdev/ecommerce-orders/internal/order-service/ports"
	"github.com/jcmexdev/ecommerce-orders/internal/pkg/cache"
)

const customerOp = "customer"

// Directory is the customer source behind the cache. Customer writes go
// through it so the cache can drop what they replace.
type Directory interface {
	ports.CustomerDirectory
	SaveCustomer(ctx context.Context, c domain.Customer) error
}

// CustomerDirectory serves customer lookups from the cache and falls back to
// the wrapped directory on a miss. Only found customers are cached. A cache
// that errors is bypassed, never surfaced.
type CustomerDirectory struct {
	next  Directory
	cache cache.Cache
	ttl   time.Duration
}

var _ ports.CustomerDirectory = (*CustomerDirectory)(nil)

func NewCustomerDirectory(next Directory, c cache.Cache, ttl time.Duration) *CustomerDirectory {
	return &CustomerDirectory{next: next, cache: c, ttl: ttl}
}

func (d *CustomerDirectory) Lookup(ctx context.Context, id string) (domain.Customer, error) {
	key := d.cache.GenerateKey(customerOp, id)

	raw, err := d.cache.Get(ctx, key)
	switch {
	case err == nil:
		var c domain.Customer
		uErr := json.Unmarshal([]byte(raw), &c)
		if uErr == nil {
			return c, nil
		}
		slog.WarnContext(ctx, "customer cache: corrupt entry", "key", key, "error", uErr)
	case !errors.Is(err, cache.ErrMiss):
		slog.WarnContext(ctx, "customer cache: get failed", "key", key, "error", err)
	}

	c, err := d.next.Lookup(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}

	if b, mErr := json.Marshal(c); mErr == nil {
		if sErr := d.cache.Set(ctx, key, b, d.ttl); sErr != nil {
			slog.WarnContext(ctx, "customer cache: set failed", "key", key, "error", sErr)
		}
	}
	return c, nil
}

// SaveCustomer writes c to the wrapped directory and then drops its cached
// copy. A failed invalidation is logged; the entry expires with its TTL.
func (d *CustomerDirectory) SaveCustomer(ctx context.Context, c domain.Customer) error {
	if err := d.next.SaveCustomer(ctx, c); err != nil {
		return err
	}
	if err := d.Invalidate(ctx, c.ID); err != nil {
		slog.WarnContext(ctx, "customer cache: invalidate failed", "customer_id", c.ID, "error", err)
	}
	return nil
}

// Invalidate drops a cached customer.
func (d *CustomerDirectory) Invalidate(ctx context.Context, id string) error {
	return d.cache.Delete(ctx, d.cache.GenerateKey(customerOp, id))
}
