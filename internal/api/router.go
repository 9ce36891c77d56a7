package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"offer-config-engine/internal/observability"
)

type Handlers struct {
	Config        *ConfigHandler
	Notifications *NotificationHandler
	BundleURLs    *BundleURLHandler
	Health        *HealthHandler
	Docs          *Docs
}

type RouterOptions struct {
	Limiter     LimiterStore
	AdminAPIKey string
	Timeout     time.Duration
}

func Router(h Handlers, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(observability.Measure)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-API-Key"},
		MaxAge:         86400,
	}))
	if opts.Timeout > 0 {
		r.Use(middleware.Timeout(opts.Timeout))
	}

	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusNotFound, "Not found")
	})

	r.Route("/api/v1", func(r chi.Router) {
		if opts.Limiter != nil {
			r.Use(RateLimit(opts.Limiter))
		}
		r.Post("/config", h.Config.Config)
		r.Get("/offers/{bundleID}/{attributionID}", h.Config.Offer)

		r.Group(func(r chi.Router) {
			r.Use(RequireAPIKey(opts.AdminAPIKey))
			if h.Notifications != nil {
				r.Post("/notifications/send", h.Notifications.Send)
				r.Post("/notifications/bulk", h.Notifications.Bulk)
				r.Get("/notifications/stats", h.Notifications.Stats)
			}
			if h.BundleURLs != nil {
				r.Get("/bundle-urls", h.BundleURLs.List)
				r.Put("/bundle-urls/{bundleID}", h.BundleURLs.Put)
			}
		})
	})

	if h.Health != nil {
		r.Get("/health", h.Health.Health)
		r.Get("/health/ready", h.Health.Ready)
		r.Get("/health/live", h.Health.Live)
	}
	if h.Docs != nil {
		r.Get("/docs", h.Docs.Index)
		r.Get("/docs/openapi.json", h.Docs.JSON)
		r.Get("/docs/openapi.yaml", h.Docs.YAML)
	}
	r.Handle("/metrics", observability.MetricsHandler())

	return r
}
