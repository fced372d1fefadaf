package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/BradenHooton/loginguard/internal/services"
	pkghttp "github.com/BradenHooton/loginguard/pkg/http"
)

// HealthCheck reports whether one dependency is reachable
type HealthCheck func(ctx context.Context) error

// StatsSource reports absorbed limiter store failures
type StatsSource interface {
	Stats() services.DegradationStats
}

// HealthHandler reports dependency health and limiter degradation
type HealthHandler struct {
	checks map[string]HealthCheck
	stats  StatsSource
}

// NewHealthHandler creates a HealthHandler. checks is keyed by dependency name.
func NewHealthHandler(checks map[string]HealthCheck, stats StatsSource) *HealthHandler {
	return &HealthHandler{checks: checks, stats: stats}
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status       string                    `json:"status"`
	Dependencies map[string]string         `json:"dependencies"`
	RateLimiter  services.DegradationStats `json:"rate_limiter"`
}

// Health reports 503 when any dependency is down. The limiter fails open, so
// degradation counters are informational and never make the service unhealthy.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "healthy", Dependencies: make(map[string]string, len(h.checks))}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			resp.Dependencies[name] = "down"
			resp.Status = "unhealthy"
			continue
		}
		resp.Dependencies[name] = "up"
	}
	if h.stats != nil {
		resp.RateLimiter = h.stats.Stats()
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	pkghttp.WriteJSON(w, status, resp)
}
