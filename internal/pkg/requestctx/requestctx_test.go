package requestctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundTrip(t *testing.T) {
	ctx := WithIdempotencyKey(WithRequestID(context.Background(), "req-1"), "idem-9")

	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Equal(t, "idem-9", IdempotencyKey(ctx))
}

func TestMissingValues(t *testing.T) {
	ctx := context.WithValue(context.Background(), "x-request-id", "plain string key")

	assert.Empty(t, RequestID(ctx))
	assert.Empty(t, IdempotencyKey(context.Background()))
}
