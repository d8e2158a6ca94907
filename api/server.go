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
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/discounts      Active discount listing
  /api/products/*     Per-store price lookups
  /api/basket/*       Basket optimization
  /api/alerts/*       Price alerts
  /api/ingest/*       Manual ingestion trigger
  /metrics            Prometheus scrape endpoint

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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates a new router with all routes configured. The registry
// backs the /metrics endpoint; pass nil to disable it.
func NewRouter(h *Handler, reg *prometheus.Registry) *chi.Mux {
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
		r.Get("/discounts", h.ListDiscounts)

		r.Route("/products", func(r chi.Router) {
			r.Get("/{id}/prices", h.GetProductPrices)
		})

		r.Route("/basket", func(r chi.Router) {
			r.Post("/optimize", h.OptimizeBasket)
		})

		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", h.ListAlerts)
			r.Post("/", h.CreateAlert)
			r.Post("/check", h.CheckAlerts)
			r.Get("/{id}", h.GetAlert)
			r.Delete("/{id}", h.DeleteAlert)
		})

		r.Route("/ingest", func(r chi.Router) {
			r.Post("/run", h.RunIngestion)
		})
	})

	if reg != nil {
		r.Get("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP)
	}

	return r
}
