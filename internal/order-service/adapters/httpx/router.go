package httpx

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jcmexdev/ecommerce-orders/internal/order-service/adapters/httpx/middlewares"
)

// NewRouter wires the order routes. requestTimeout bounds the context handed
// to each handler; zero disables it. The placement history routes are only
// mounted when the handler has a history to read from.
func NewRouter(handler *Handler, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middlewares.AttachRequestMetadata)
	r.Use(middlewares.Trace)
	r.Use(middlewares.AccessLog)
	r.Use(middleware.Recoverer)
	if requestTimeout > 0 {
		r.Use(middlewares.Deadline(requestTimeout))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Post("/orders", handler.PlaceOrder)
	r.Get("/orders/{id}", handler.GetOrderByID)

	if handler.history != nil {
		r.Route("/customers/{id}/placements", func(r chi.Router) {
			r.Get("/", handler.ListPlacements)
			r.Get("/latest", handler.LatestPlacement)
		})
	}
	return r
}
