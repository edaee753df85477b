/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address behind a proxy
  3. Logger:     Request logging
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for the fleet UI

ROUTE GROUPS:
  /health               Liveness
  /api/fuel/*           Fuel planning
  /api/batch/*          Batch preview and creation
  /api/calendar/*       Work calendar queries
  /api/waybills/*       Status changes
  /api/audit            Consistency audit
  /api/scenarios/*      Demo data (dev only)

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

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
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.Health)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Post("/fuel/plan", h.PlanFuel)

		r.Route("/batch", func(r chi.Router) {
			r.Post("/preview", h.PreviewBatch)
			r.Post("/run", h.RunBatch)
		})

		r.Route("/calendar", func(r chi.Router) {
			r.Get("/working-day", h.WorkingDay)
			r.Get("/week", h.WeekRange)
		})

		r.Route("/waybills/{id}", func(r chi.Router) {
			r.Get("/", h.GetWaybill)
			r.Delete("/", h.DeleteWaybill)
			r.Post("/status", h.ChangeStatus)
			r.Get("/transitions", h.Transitions)
		})

		r.Get("/audit", h.RunAudit)
		r.Get("/audit/last", h.LastAudit)

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r
}
