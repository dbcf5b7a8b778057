/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request, echoed in access logs
  2. Logger:     zap access log (method, path, status, duration)
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the studio dashboard

ROUTE GROUPS:
  /api/completions         Booking completion events
  /api/studios/{studioID}  Studio-scoped rules, settings, ledger, periods
  /api/rules/{id}          Rule administration
  /api/commissions/{id}    Ledger rows
  /api/periods/{id}        Pay period lifecycle and reports
  /api/scenarios           Demo data loaders
  /healthz                 Liveness

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// DefaultCORSOrigins are used when the configuration names none.
var DefaultCORSOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, corsOrigins []string) *chi.Mux {
	if len(corsOrigins) == 0 {
		corsOrigins = DefaultCORSOrigins
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Health)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Post("/completions", h.RecordCompletion)

		r.Route("/studios/{studioID}", func(r chi.Router) {
			r.Get("/rules", h.ListRules)
			r.Post("/rules", h.CreateRule)
			r.Put("/artists/{artistID}/rule", h.AssignArtistRule)

			r.Get("/settings", h.GetSettings)
			r.Put("/settings", h.PutSettings)

			r.Get("/commissions", h.ListCommissions)

			r.Get("/periods", h.ListPeriods)
			r.Post("/periods", h.CreatePeriod)
			r.Post("/settle", h.Settle)
		})

		r.Route("/rules/{id}", func(r chi.Router) {
			r.Get("/", h.GetRule)
			r.Put("/", h.UpdateRule)
			r.Delete("/", h.DeleteRule)
		})

		r.Get("/commissions/{id}", h.GetCommission)

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})

		r.Route("/periods/{id}", func(r chi.Router) {
			r.Get("/", h.GetPeriod)
			r.Post("/assign", h.AssignCommissions)
			r.Post("/close", h.ClosePeriod)
			r.Post("/mark-paid", h.MarkPeriodPaid)
			r.Get("/artists", h.PeriodBreakdown)
			r.Get("/export.csv", h.ExportPeriod)
		})
	})

	return r
}

// requestLogger writes one access log line per request.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				logger.Info("http request",
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
