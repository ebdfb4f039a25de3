/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to
  handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the storefront

ROUTE GROUPS:
  /api/programs/*   Program administration
  /api/accounts/*   Gift card / e-wallet issuance and history
  /api/codes/*      Redemption-code claiming
  /api/orders/*     Evaluate and commit
  /api/catalog/*    Product and carrier identities
  /api/scenarios/*  Demo scenarios

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Program administration
		r.Route("/programs", func(r chi.Router) {
			r.Get("/", h.ListPrograms)
			r.Post("/", h.CreateProgram)
			r.Get("/{id}", h.GetProgram)
			r.Post("/{id}/activate", h.SetProgramActive)
		})

		// Point accounts
		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", h.ListAccounts)
			r.Post("/", h.IssueAccount)
			r.Get("/{id}/entries", h.GetAccountEntries)
		})

		// Redemption codes
		r.Post("/codes/claim", h.ClaimCode)

		// Order evaluation
		r.Route("/orders", func(r chi.Router) {
			r.Post("/evaluate", h.EvaluateOrder)
			r.Post("/commit", h.CommitOrder)
		})

		// Catalog
		r.Route("/catalog", func(r chi.Router) {
			r.Post("/products", h.CreateProduct)
			r.Post("/carriers", h.CreateCarrier)
		})

		// Scenarios
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}
