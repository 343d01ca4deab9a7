/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for admin frontends

ROUTE GROUPS:
  /api/accounts/*       Chart of accounts
  /api/entries/*        Journal entries and posting
  /api/reversals/*      Reversal cancellation
  /api/fiscal-years/*   Posting calendar
  /api/periods/*        Period closing
  /api/reports/*        General ledger + trial balance
  /api/seed             Demo data (dev only)

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
func NewRouter(h *Handler) *chi.Mux {
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

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Chart of accounts
		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", h.ListAccounts)
			r.Post("/", h.CreateAccount)
			r.Get("/{id}", h.GetAccount)
			r.Post("/{id}/deactivate", h.DeactivateAccount)
			r.Delete("/{id}", h.DeleteAccount)
		})

		// Journal entries
		r.Route("/entries", func(r chi.Router) {
			r.Get("/", h.ListEntries)
			r.Post("/", h.CreateEntry)
			r.Post("/reverse-batch", h.ReverseBatch)
			r.Get("/{id}", h.GetEntry)
			r.Put("/{id}", h.UpdateEntry)
			r.Delete("/{id}", h.DeleteEntry)
			r.Post("/{id}/post", h.PostEntry)
			r.Post("/{id}/reverse", h.ReverseEntry)
		})

		// Reversal cancellation (draft reversals only)
		r.Route("/reversals", func(r chi.Router) {
			r.Delete("/{id}", h.CancelReversal)
		})

		// Posting calendar
		r.Route("/fiscal-years", func(r chi.Router) {
			r.Get("/", h.ListFiscalYears)
			r.Post("/", h.CreateFiscalYear)
			r.Post("/{id}/close", h.CloseFiscalYear)
		})
		r.Route("/periods", func(r chi.Router) {
			r.Get("/", h.ListPeriods)
			r.Post("/{id}/close", h.ClosePeriod)
		})

		// Reports
		r.Route("/reports", func(r chi.Router) {
			r.Get("/general-ledger", h.GetGeneralLedger)
			r.Get("/trial-balance", h.GetTrialBalance)
		})

		// Demo data
		r.Post("/seed", h.LoadSeed)
	})

	return r
}
