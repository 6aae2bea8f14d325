package gamificationhandlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"
)

// RouteConfig configures the query surface middleware.
type RouteConfig struct {
	AllowedOrigins []string
	RateLimit      float64
	RateBurst      int
}

// RegisterRoutes mounts the query surface on r.
func RegisterRoutes(r chi.Router, handlers Handlers, cfg RouteConfig) {
	r.Get("/healthz", handlers.HandleHTTPHealth)

	budgets := newClientBudgets(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	r.Group(func(r chi.Router) {
		r.Use(withCORS(cfg.AllowedOrigins))
		r.Use(limitByClient(budgets))

		r.Get("/leaders", handlers.HandleHTTPLeaders)
		r.Get("/stats", handlers.HandleHTTPStats)
		// Preflight is answered by withCORS.
		r.Options("/leaders", noContent)
		r.Options("/stats", noContent)
	})
}

func noContent(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
