/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

AUTH:
  /api/customers/register and /api/customers/login are public. Every
  other route requires a bearer token; auth.Service.Middleware resolves
  it to a subject and puts it on the request context, from which
  handlers resolve the acting customer.

ROUTE GROUPS:
  POST /api/customers/register          Register
  POST /api/customers/login             Log in, returns token
  GET  /api/customers/transactions      List own transactions
  POST /api/customers/transactions      Add transaction
  PUT  /api/customers/transactions/{id} Edit transaction
  DEL  /api/customers/transactions/{id} Delete transaction
  GET  /api/customers/points/{year}/{month}  One bucket's points
  GET  /api/customers/points            All buckets

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/warp/loyalty-engine/auth"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, identity *auth.Service) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api/customers", func(r chi.Router) {
		// Public routes
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)

		// Everything else requires a valid bearer token
		r.Group(func(r chi.Router) {
			r.Use(identity.Middleware)

			r.Route("/transactions", func(r chi.Router) {
				r.Get("/", h.ListTransactions)
				r.Post("/", h.AddTransaction)
				r.Put("/{id}", h.EditTransaction)
				r.Delete("/{id}", h.DeleteTransaction)
			})

			r.Route("/points", func(r chi.Router) {
				r.Get("/", h.GetAllRewardPoints)
				r.Get("/{year}/{month}", h.GetRewardPoints)
			})
		})
	})

	return r
}
