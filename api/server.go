/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address behind proxies
  3. hlog:       zerolog request logger with the request id attached
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for frontends
  6. Metrics:    Prometheus request count and latency

ROUTE GROUPS:
  /api/drivers/*        Driver catalog
  /api/scenarios/*      Scenario lifecycle, overrides, evaluation, costs
  /api/compare          Scenario comparison
  /api/costs/system     Multi-plant roll-up
  /api/demo/*           Demo data sets
  /health               Liveness
  /metrics              Prometheus scrape endpoint

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/fuelcast/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// RouterOptions tunes the middleware stack.
type RouterOptions struct {
	CORSOrigins []string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(h.Logger))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		level := zerolog.InfoLevel
		if status >= http.StatusInternalServerError {
			level = zerolog.ErrorLevel
		}
		hlog.FromRequest(r).WithLevel(level).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	}))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))
	r.Use(h.Metrics.Middleware)

	r.Get("/health", h.Health)
	r.Method(http.MethodGet, "/metrics", h.Metrics.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Driver catalog
		r.Route("/drivers", func(r chi.Router) {
			r.Get("/", h.ListDrivers)
			r.Get("/{driver}", h.GetDriver)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/", h.CreateScenario)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetScenario)
				r.Delete("/", h.DeleteScenario)
				r.Post("/clone", h.CloneScenario)
				r.Post("/roll-forward", h.RollForward)
				r.Post("/lock", h.LockScenario)
				r.Get("/lineage", h.GetLineage)
				r.Get("/history", h.GetHistory)

				r.Get("/overrides", h.ListOverrides)
				r.Put("/overrides", h.SetOverride)
				r.Delete("/overrides/{driver}/{period}", h.ClearOverride)

				r.Get("/periods/{period}", h.EvaluatePeriod)
				r.Get("/projection", h.Project)
				r.Get("/costs", h.HorizonCosts)
				r.Get("/costs/{period}", h.PeriodCosts)

				r.Get("/export", h.ExportScenario)
				r.Post("/import", h.ImportScenario)
			})
		})

		r.Get("/compare", h.CompareScenarios)
		r.Get("/costs/system", h.SystemCosts)

		// Demo routes
		r.Route("/demo", func(r chi.Router) {
			r.Get("/", h.ListDemos)
			r.Post("/load", h.LoadDemo)
		})
	})

	return r
}
