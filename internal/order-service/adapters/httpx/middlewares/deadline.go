package middlewares

import (
	"context"
	"net/http"
	"time"
)

// Deadline bounds the request context by d. It never writes a response:
// handlers map an expired context onto their own status, which keeps a
// single WriteHeader per request.
func Deadline(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
