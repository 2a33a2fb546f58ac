/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging through the process logger
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for frontend
  5. Locale:     Accept-Language (or ?lang=) picks the label locale

ROUTE GROUPS:
  /api/owners/{owner}/*   Per-owner entries, plans, leave
  /api/holidays/{year}    Holiday reference
  /api/presets            Editor choices
  /api/health             Liveness

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/warp/hours-ledger/i18n"
)

// DefaultOrigins are allowed when no origins are configured.
var DefaultOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = DefaultOrigins
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  h.Log.StandardLog(log.StandardLogOptions{ForceLevel: log.InfoLevel}),
		NoColor: true,
	}))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Language", "Content-Type"},
		AllowCredentials: true,
	}))
	r.Use(h.localeMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Get("/presets", h.Presets)
		r.Get("/holidays/{year}", h.ListHolidays)

		r.Route("/owners/{owner}", func(r chi.Router) {
			r.Get("/entries/{date}", h.GetEntry)
			r.Put("/entries/{date}", h.SaveEntry)

			r.Route("/months/{month}", func(r chi.Router) {
				r.Get("/entries", h.MonthEntries)
				r.Get("/summary", h.MonthSummary)
				r.Get("/summary/stream", h.StreamSummary)
				r.Post("/apply-plan", h.ApplyPlan)
			})

			r.Route("/bulk-plan", func(r chi.Router) {
				r.Get("/", h.GetBulkPlan)
				r.Put("/", h.PutBulkPlan)
				r.Post("/reset", h.ResetBulkPlan)
			})

			r.Route("/leave", func(r chi.Router) {
				r.Get("/", h.LeaveBalance)
				r.Get("/stream", h.StreamLeave)
				r.Get("/settings", h.GetLeaveSettings)
				r.Put("/settings", h.PutLeaveSettings)
			})
		})
	})

	return r
}

// localeMiddleware stores the request locale in the context.
func (h *Handler) localeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Accept-Language")
		if lang := r.URL.Query().Get("lang"); lang != "" {
			header = lang
		}
		ctx := i18n.WithLocale(r.Context(), h.Translator.Match(header))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
