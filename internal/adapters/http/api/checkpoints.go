// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	service "github.com/velatorre/crossline/internal/app"
	"github.com/velatorre/crossline/internal/domain/model"
)

// webhookRequest is the inbound checkpoint payload. The timing provider
// nests the point/location labels under extraData.
type webhookRequest struct {
	CompetitionID string `json:"competitionId"`
	ParticipantID string `json:"participantId"`
	Type          string `json:"type"` // detection | modification
	Key           string `json:"key,omitempty"`
	// CopernicoID is the explicit timing-provider slug. Some senders use
	// the generic providerSlug alias instead; copernicoId wins when both
	// are present.
	CopernicoID    string           `json:"copernicoId,omitempty"`
	ProviderSlug   string           `json:"providerSlug,omitempty"`
	CheckpointType string           `json:"checkpointType,omitempty"`
	RawTime        int64            `json:"rawTime,omitempty"` // unix ms
	ExtraData      webhookExtraData `json:"extraData"`
}

type webhookExtraData struct {
	Point    string `json:"point"`
	Location string `json:"location"`
	Event    string `json:"event,omitempty"` // named sub-event
}

// validate checks the required fields only. extraData is entirely
// optional: a point-less checkpoint still dedups (empty components
// normalize to NA) and classifies as an intermediate split.
func (r webhookRequest) validate() error {
	switch {
	case strings.TrimSpace(r.CompetitionID) == "":
		return errors.New("missing competitionId")
	case strings.TrimSpace(r.ParticipantID) == "":
		return errors.New("missing participantId")
	case !model.EventKind(r.Type).Valid():
		return errors.New("type must be detection or modification")
	}
	return nil
}

func (r webhookRequest) event() model.CheckpointEvent {
	location := r.ExtraData.Location
	if location == "" {
		// Single-label payloads carry the point only; the location
		// mirrors it for stream resolution.
		location = r.ExtraData.Point
	}
	slug := r.CopernicoID
	if slug == "" {
		slug = r.ProviderSlug
	}
	return model.CheckpointEvent{
		CompetitionID:  r.CompetitionID,
		ParticipantID:  r.ParticipantID,
		Kind:           model.EventKind(r.Type),
		Point:          r.ExtraData.Point,
		Location:       location,
		EventName:      r.ExtraData.Event,
		ProviderSlug:   slug,
		CheckpointType: r.CheckpointType,
		RawTimeMS:      r.RawTime,
	}
}

// CheckpointsHandler handles the checkpoint webhook.
type CheckpointsHandler struct {
	deps      Dependencies
	sharedKey string
}

// NewCheckpointsHandler creates a new checkpoints handler.
func NewCheckpointsHandler(deps Dependencies) *CheckpointsHandler {
	return &CheckpointsHandler{deps: deps}
}

// HandleWebhook handles POST /webhooks/checkpoint requests. Duplicates
// are answered 200 like fresh accepts: the sender retries on non-2xx,
// so a duplicate must never look like a failure.
func (h *CheckpointsHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	const op = "api.webhook_checkpoint"

	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if !h.authorized(r, req.Key) {
		writeError(w, http.StatusUnauthorized, "unauthorized", NewKind(op, ErrUnauthorized))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	res, err := h.deps.Accept(r.Context(), req.event())
	if err != nil {
		if errors.Is(err, service.ErrBackpressure) {
			writeError(w, http.StatusTooManyRequests, "backpressure", NewKind(op, ErrBackpressure))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// authorized checks the shared key from the X-Api-Key header or the
// payload key field, in constant time.
func (h *CheckpointsHandler) authorized(r *http.Request, bodyKey string) bool {
	if h.sharedKey == "" {
		return true
	}
	for _, candidate := range []string{r.Header.Get("X-Api-Key"), bodyKey} {
		if candidate == "" {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(h.sharedKey)) == 1 {
			return true
		}
	}
	return false
}
