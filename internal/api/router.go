/**
 * @description
 * This file sets up the HTTP router for the marketplace core. It defines the
 * API endpoints, associates them with their corresponding handlers, and
 * applies the middleware stack: logging, panic recovery, timeouts, CORS,
 * metrics, bearer auth for user routes and the shared key for admin routes.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS middleware.
 * - github.com/prometheus/client_golang: the /metrics endpoint.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/souqly/marketplace-core/internal/app"
	"github.com/souqly/marketplace-core/internal/config"
)

// Routes creates and returns the router for the marketplace core service.
func Routes(h *Handlers, limiter *app.RedisRateLimiter, cfg config.Config) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Internal-Api-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(MetricsMiddleware)

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// Group routes that require user authentication.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.JWTSecret))

		r.Get("/wallet/balance", h.GetBalanceHandler)
		r.Get("/wallet/transactions", h.ListTransactionsHandler)
		r.With(RateLimitMiddleware(limiter, "deposit", cfg.DepositRateLimitPerMinute)).
			Post("/wallet/deposits", h.DepositHandler)
		r.With(RateLimitMiddleware(limiter, "transfer", cfg.TransferRateLimitPerMinute)).
			Post("/wallet/transfers", h.TransferHandler)

		r.With(RateLimitMiddleware(limiter, "checkout", cfg.CheckoutRateLimitPerMinute)).
			Post("/orders/checkout", h.CheckoutHandler)
		r.Get("/orders/{orderID}", h.GetOrderHandler)
		r.Post("/orders/{orderID}/status", h.UpdateOrderStatusHandler)
		r.Post("/orders/{orderID}/cancel", h.CancelOrderHandler)

		r.Post("/offers", h.CreateOfferHandler)
		r.Get("/offers/{offerID}", h.GetOfferHandler)
		r.Post("/offers/{offerID}/respond", h.RespondToOfferHandler)

		r.Post("/returns", h.RequestReturnHandler)
		r.Get("/returns/{requestID}", h.GetReturnHandler)
	})

	// Internal/admin surface behind the shared API key.
	r.Group(func(r chi.Router) {
		r.Use(InternalAuthMiddleware(cfg.InternalAPIKey))

		r.Post("/accounts", h.CreateAccountHandler)
		r.Get("/admin/deposits/pending", h.ListPendingDepositsHandler)
		r.Post("/admin/deposits/{txID}/approve", h.ApproveDepositHandler)
		r.Post("/admin/deposits/{txID}/reject", h.RejectDepositHandler)
		r.Post("/admin/returns/{requestID}/resolve", h.ResolveReturnHandler)
		r.Post("/admin/returns/{requestID}/refund", h.IssueRefundHandler)
	})

	return r
}
