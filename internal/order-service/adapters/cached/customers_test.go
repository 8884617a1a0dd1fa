package cached

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/ecommerce-orders/internal/order-service/adapters/memory"
	"github.com/jcmexdev/ecommerce-orders/internal/order-service/domain"
	"github.com/jcmexdev/ecommerce-orders/internal/order-service/ports"
	"github.com/jcmexdev/ecommerce-orders/internal/pkg/cache"
)

type fakeCache struct {
	mu     sync.Mutex
	data   map[string]string
	ttls   map[string]time.Duration
	getErr error
	delErr error
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeCache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	default:
		f.data[key] = fmt.Sprint(v)
	}
	f.ttls[key] = ttl
	return nil
}

func (f *fakeCache) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return "", f.getErr
	}
	v, ok := f.data[key]
	if !ok {
		return "", cache.ErrMiss
	}
	return v, nil
}

func (f *fakeCache) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.delErr != nil {
		return f.delErr
	}
	delete(f.data, key)
	return nil
}

func (f *fakeCache) GenerateKey(operation, key string) string {
	return "test:" + operation + ":" + key
}

func (f *fakeCache) Close() error { return nil }

type countingDirectory struct {
	*memory.Store
	calls int
}

func (c *countingDirectory) Lookup(ctx context.Context, id string) (domain.Customer, error) {
	c.calls++
	return c.Store.Lookup(ctx, id)
}

func setup() (*CustomerDirectory, *countingDirectory, *fakeCache) {
	store := memory.NewStore()
	store.AddCustomer(domain.Customer{ID: "cust-1", Name: "Ana", Email: "ana@example.com"})
	next := &countingDirectory{Store: store}
	fc := newFakeCache()
	return NewCustomerDirectory(next, fc, time.Minute), next, fc
}

func TestLookup_ReadThrough(t *testing.T) {
	dir, next, fc := setup()
	ctx := context.Background()

	first, err := dir.Lookup(ctx, "cust-1")
	require.NoError(t, err)
	second, err := dir.Lookup(ctx, "cust-1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "ana@example.com", second.Email)
	assert.Equal(t, 1, next.calls)
	assert.Equal(t, time.Minute, fc.ttls["test:customer:cust-1"])
}

func TestLookup_NotFoundIsNotCached(t *testing.T) {
	dir, next, fc := setup()
	ctx := context.Background()

	_, err := dir.Lookup(ctx, "ghost")
	assert.ErrorIs(t, err, ports.ErrNotFound)
	_, err = dir.Lookup(ctx, "ghost")
	assert.ErrorIs(t, err, ports.ErrNotFound)

	assert.Equal(t, 2, next.calls)
	assert.Empty(t, fc.data)
}

func TestLookup_CacheFailureFallsBack(t *testing.T) {
	dir, next, fc := setup()
	fc.getErr = errors.New("dial tcp 127.0.0.1:6379: connection refused")

	c, err := dir.Lookup(context.Background(), "cust-1")
	require.NoError(t, err)
	assert.Equal(t, "Ana", c.Name)
	assert.Equal(t, 1, next.calls)
}

func TestLookup_CorruptEntryIsIgnored(t *testing.T) {
	dir, next, fc := setup()
	fc.data["test:customer:cust-1"] = "{not json"

	c, err := dir.Lookup(context.Background(), "cust-1")
	require.NoError(t, err)
	assert.Equal(t, "Ana", c.Name)
	assert.Equal(t, 1, next.calls)
}

func TestInvalidate(t *testing.T) {
	dir, next, _ := setup()
	ctx := context.Background()

	_, err := dir.Lookup(ctx, "cust-1")
	require.NoError(t, err)
	require.NoError(t, dir.Invalidate(ctx, "cust-1"))
	_, err = dir.Lookup(ctx, "cust-1")
	require.NoError(t, err)

	assert.Equal(t, 2, next.calls)
}

func TestSaveCustomer_DropsStaleEntry(t *testing.T) {
	dir, next, _ := setup()
	ctx := context.Background()

	_, err := dir.Lookup(ctx, "cust-1")
	require.NoError(t, err)

	require.NoError(t, dir.SaveCustomer(ctx, domain.Customer{ID: "cust-1", Name: "Ana", Email: "ana@new.example.com"}))

	c, err := dir.Lookup(ctx, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, "ana@new.example.com", c.Email)
	assert.Equal(t, 2, next.calls)
}

func TestSaveCustomer_InvalidateFailureIsNotFatal(t *testing.T) {
	dir, next, fc := setup()
	fc.delErr = errors.New("dial tcp 127.0.0.1:6379: connection refused")
	ctx := context.Background()

	require.NoError(t, dir.SaveCustomer(ctx, domain.Customer{ID: "cust-2", Name: "Luis"}))

	c, err := next.Store.Lookup(ctx, "cust-2")
	require.NoError(t, err)
	assert.Equal(t, "Luis", c.Name)
}
