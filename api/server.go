/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Wires URLs to handlers. chi router with the usual middleware stack
  (logger, recoverer, request id) and CORS for the console frontend.
  /metrics serves Prometheus; everything under /api requires a token,
  and /api/admin additionally requires the configured admin email.
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates the router with all routes configured.
func NewRouter(h *Handler, tokens *TokenService, adminEmail string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(tokens.Authenticate)

		// Self-service routes
		r.Post("/orders", h.AddOwnOrder)
		r.Get("/me", h.GetOwnView)

		// Admin console routes
		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireAdmin(adminEmail))

			r.Get("/clients", h.SearchClients)
			r.Get("/clients/{id}", h.GetClientSummary)
			r.Post("/clients/{id}/orders", h.AddClientOrder)
			r.Post("/clients/{id}/redemptions", h.RedeemClient)
			r.Get("/ledger", h.GetGroupedLedger)
		})
	})

	return r
}
