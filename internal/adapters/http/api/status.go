// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/velatorre/crossline/internal/domain/dedupe"
)

// StatusHandler handles queue status lookups.
type StatusHandler struct {
	deps Dependencies
}

// NewStatusHandler creates a new status handler.
func NewStatusHandler(deps Dependencies) *StatusHandler {
	return &StatusHandler{deps: deps}
}

// HandleGetStatus handles GET /queue/{key} requests.
func (h *StatusHandler) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	const op = "api.queue_status"

	key := chi.URLParam(r, "key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	res, err := h.deps.Status(r.Context(), key)
	if err != nil {
		if errors.Is(err, dedupe.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", NewKind(op, ErrNotFound))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}
