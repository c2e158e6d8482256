// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	service "github.com/velatorre/crossline/internal/app"
	"github.com/velatorre/crossline/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Accept runs the synchronous webhook path: dedup and task submit.
	// service.ErrBackpressure surfaces as 429.
	Accept(ctx context.Context, ev model.CheckpointEvent) (service.AcceptResult, error)

	// Status looks up the dedup entry and its story by queue key.
	Status(ctx context.Context, key string) (service.StatusResult, error)
}

// Server wires HTTP routes for the ingestion API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	checkpointsHandler *CheckpointsHandler
	statusHandler      *StatusHandler
}

// ServerOption applies a configuration option to the Server.
type ServerOption func(*Server)

// WithSharedKey sets the shared key expected on inbound webhooks. An
// empty key disables authentication.
func WithSharedKey(key string) ServerOption {
	return func(s *Server) {
		s.checkpointsHandler.sharedKey = key
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...ServerOption) *Server {
	s := &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		checkpointsHandler: NewCheckpointsHandler(deps),
		statusHandler:      NewStatusHandler(deps),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the chi router with all routes attached.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Method(http.MethodPost, "/webhooks/checkpoint", MetricsMiddleware(s.checkpointsHandler.HandleWebhook, "webhook_checkpoint"))
	r.Method(http.MethodGet, "/queue/{key}", MetricsMiddleware(s.statusHandler.HandleGetStatus, "queue_status"))
	r.Method(http.MethodGet, "/stats", MetricsMiddleware(s.statsHandler.HandleGetStats, "stats"))
	r.Method(http.MethodGet, "/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))

	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
