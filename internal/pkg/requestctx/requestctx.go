// Package requestctx carries per-request identifiers through a context.
package requestctx

import "context"

// contextKey prevents collisions with keys from other packages that use the
// same underlying string.
type contextKey string

const (
	HeaderXRequestID      = "X-Request-Id"
	HeaderXIdempotencyKey = "X-Idempotency-Key"

	keyRequestID      contextKey = "x-request-id"
	keyIdempotencyKey contextKey = "x-idempotency-key"
)

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyRequestID, id)
}

// RequestID returns the request id stored in ctx, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(keyRequestID).(string)
	return id
}

func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, keyIdempotencyKey, key)
}

// IdempotencyKey returns the caller-supplied idempotency key, or "".
func IdempotencyKey(ctx context.Context) string {
	key, _ := ctx.Value(keyIdempotencyKey).(string)
	return key
}
