// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"net/http"

	service "github.com/velatorre/crossline/internal/app"
)

// StatsProvider reports the runtime snapshot served on the stats endpoint.
type StatsProvider interface {
	GetStats() service.Stats
}

// StatsHandler handles stats requests.
type StatsHandler struct {
	statsProvider StatsProvider
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(statsProvider StatsProvider) *StatsHandler {
	return &StatsHandler{statsProvider: statsProvider}
}

// HandleGetStats handles GET /stats requests.
func (h *StatsHandler) HandleGetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.statsProvider.GetStats())
}
