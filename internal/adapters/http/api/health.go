// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"net/http"

	"github.com/velatorre/crossline/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthHandler handles health check requests.
type HealthHandler struct{}

// NewHealthHandler creates a new health handler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// HandleHealth handles GET /healthz requests. Liveness doubles as the
// scrape endpoint: a 200 with the exposition from the service's custom
// registry (checkpoint, pipeline, provider and queue series).
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}).ServeHTTP(w, r)
}
