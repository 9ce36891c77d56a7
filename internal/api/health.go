package api

import (
	"context"
	"net/http"
	"time"
)

const Version = "1.0.0"

type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports dependency status. Only the database gates
// readiness; the edge cache and relay degrade gracefully.
type HealthHandler struct {
	environment string
	db          Pinger
	cache       Pinger
	relay       string
	now         func() time.Time
}

func NewHealthHandler(environment string, db, cache Pinger, relay string) *HealthHandler {
	return &HealthHandler{environment: environment, db: db, cache: cache, relay: relay, now: time.Now}
}

type serviceStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func check(ctx context.Context, p Pinger) serviceStatus {
	if p == nil {
		return serviceStatus{Status: "disabled"}
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		return serviceStatus{Status: "unhealthy", Error: err.Error()}
	}
	return serviceStatus{Status: "healthy"}
}

func (h *HealthHandler) services(ctx context.Context) map[string]serviceStatus {
	return map[string]serviceStatus{
		"database":      check(ctx, h.db),
		"cache":         check(ctx, h.cache),
		"notifications": {Status: "healthy"},
	}
}

// Health handles GET /health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	services := h.services(r.Context())
	status := "healthy"
	for _, s := range services {
		if s.Status == "unhealthy" {
			status = "degraded"
		}
	}
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      status,
		"timestamp":   h.now().UTC().Format(time.RFC3339),
		"environment": h.environment,
		"version":     Version,
		"relay":       h.relay,
		"services":    services,
	})
}

// Ready handles GET /health/ready.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	db := check(r.Context(), h.db)
	ready := db.Status != "unhealthy"
	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"ready":     ready,
		"timestamp": h.now().UTC().Format(time.RFC3339),
		"services":  map[string]serviceStatus{"database": db},
	})
}

// Live handles GET /health/live.
func (h *HealthHandler) Live(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"alive":     true,
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}
