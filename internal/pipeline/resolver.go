// Package pipeline contains the background checkpoint pipeline: location
// resolution, enrichment, story/participant writes and the coordinator
// that sequences them per accepted webhook.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/velatorre/crossline/internal/adapters/repository"
	"github.com/velatorre/crossline/internal/domain/model"
	"github.com/velatorre/crossline/internal/domain/textenc"
	"github.com/velatorre/crossline/pkg/logger"
)

// Resolver searches the tenant hierarchy (race -> app -> event) for event
// records matching a competition identifier.
type Resolver struct {
	store repository.Store
	log   logger.Logger
}

// NewResolver creates a resolver over the catalog store.
func NewResolver(store repository.Store, log logger.Logger) *Resolver {
	return &Resolver{store: store, log: log.Named("resolver")}
}

// ResolveByName returns every event matching both the competition id and
// the requested event name. Name comparison considers both the raw
// inbound form and its mojibake-repaired form, since provider payloads
// are sometimes double-encoded.
func (r *Resolver) ResolveByName(ctx context.Context, competitionID, eventName string) ([]model.EventLocation, error) {
	repaired := textenc.Repair(eventName)
	return r.scan(ctx, competitionID, func(ev model.EventRecord) bool {
		return matchesName(ev, eventName, repaired)
	})
}

// ResolveByCompetition returns every event matching the competition id
// regardless of name. Used as the fallback when a named resolve finds
// nothing.
func (r *Resolver) ResolveByCompetition(ctx context.Context, competitionID string) ([]model.EventLocation, error) {
	return r.scan(ctx, competitionID, func(model.EventRecord) bool { return true })
}

// scan walks the full tenant hierarchy. Intentionally permissive: the
// competition test is an OR across five identifier fields, because
// provider identifiers are inconsistently populated across tenants.
func (r *Resolver) scan(ctx context.Context, competitionID string, nameFilter func(model.EventRecord) bool) ([]model.EventLocation, error) {
	races, err := r.store.RaceIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list races: %w", err)
	}

	var out []model.EventLocation
	distinct := make(map[string]struct{})
	for _, raceID := range races {
		apps, err := r.store.AppIDs(ctx, raceID)
		if err != nil {
			return nil, fmt.Errorf("list apps for race %s: %w", raceID, err)
		}
		for _, appID := range apps {
			events, err := r.store.Events(ctx, raceID, appID)
			if err != nil {
				return nil, fmt.Errorf("list events for %s/%s: %w", raceID, appID, err)
			}
			for _, ev := range events {
				if !matchesCompetition(raceID, ev, competitionID) || !nameFilter(ev) {
					continue
				}
				out = append(out, model.EventLocation{RaceID: raceID, AppID: appID, Event: ev})
				distinct[ev.ID] = struct{}{}
			}
		}
	}

	// Multiple distinct events matching one competition id can mask a
	// genuine mismatch; flag it for review but keep all matches, since
	// mirrored competitions legitimately resolve to several locations.
	if len(distinct) > 1 {
		ids := make([]string, 0, len(distinct))
		for id := range distinct {
			ids = append(ids, id)
		}
		r.log.Warn(ctx, "ambiguous competition match",
			logger.String("competitionId", competitionID),
			logger.Any("eventIds", ids),
		)
	}
	return out, nil
}

// matchesCompetition is the five-way identifier test: event id,
// competitionId, raceId, externalId, or the tenant race path id.
func matchesCompetition(raceID string, ev model.EventRecord, competitionID string) bool {
	if competitionID == "" {
		return false
	}
	return ev.ID == competitionID ||
		ev.CompetitionID == competitionID ||
		ev.RaceID == competitionID ||
		ev.ExternalID == competitionID ||
		raceID == competitionID
}

// matchesName tests the event id and name against the raw requested name
// and its repaired form.
func matchesName(ev model.EventRecord, raw, repaired string) bool {
	if raw == "" {
		return false
	}
	for _, candidate := range []string{raw, repaired} {
		if ev.ID == candidate {
			return true
		}
		if strings.EqualFold(ev.Name, candidate) {
			return true
		}
	}
	return false
}
