package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tradeforge/settlement/internal/application"
	"github.com/tradeforge/settlement/internal/ports"
)

// Handler is the HTTP adapter entrypoint for settlement use-cases.
// Keeping only application and verifier dependencies here preserves clean
// adapter boundaries.
type Handler struct {
	service  *application.Service
	verifier ports.TokenVerifier
}

// NewHandler constructs an HTTP handler bound to the application service.
func NewHandler(service *application.Service, verifier ports.TokenVerifier) *Handler {
	return &Handler{service: service, verifier: verifier}
}

// NewRouter registers settlement HTTP routes and the middleware stack.
// Centralizing routes here ensures consistent auth and error behavior across
// endpoints.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(observeMiddleware)
	r.Use(recoverMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusOK, "ok")
	})
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusOK, "ready")
	})
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/swagger/", http.StatusMovedPermanently)
	})
	r.Get("/swagger/", handler.swaggerUI)
	r.Get("/swagger/openapi.yaml", handler.swaggerSpec)

	r.Route("/settlement/v1", func(r chi.Router) {
		// Order status is readable without credentials: the hash alone
		// carries no authority.
		r.Get("/orders/{order_hash}", handler.orderStatus)

		r.Group(func(r chi.Router) {
			r.Use(handler.authMiddleware)
			r.Post("/orders/fulfill", handler.fulfillOrder)
			r.Post("/orders/cancel", handler.cancelOrder)
			r.Post("/orders/fulfill-with-voucher", handler.fulfillOrderWithVoucher)
		})
	})

	return r
}
