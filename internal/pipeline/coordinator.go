package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	mqueue "github.com/velatorre/crossline/internal/adapters/mq/queue"
	"github.com/velatorre/crossline/internal/adapters/providers/clips"
	"github.com/velatorre/crossline/internal/adapters/providers/streams"
	"github.com/velatorre/crossline/internal/adapters/providers/timing"
	"github.com/velatorre/crossline/internal/adapters/repository"
	"github.com/velatorre/crossline/internal/domain/dedupe"
	"github.com/velatorre/crossline/internal/domain/model"
	"github.com/velatorre/crossline/internal/domain/ranking"
	"github.com/velatorre/crossline/pkg/logger"
	"github.com/velatorre/crossline/pkg/metrics"
)

// LocationResult is the per-location outcome of one pipeline run. A
// failed location never aborts its siblings; the error is recorded here.
type LocationResult struct {
	Location model.EventLocation
	StoryID  string
	Err      error
}

// Coordinator sequences the background pipeline per accepted checkpoint:
// resolve locations, enrich from the timing provider, then fan out per
// location to write the participant, generate the clip and link splits.
// It runs entirely off the request/response path.
type Coordinator struct {
	dq       dedupe.Queue
	resolver *Resolver
	writer   *Writer
	store    repository.Store
	timing   timing.Client
	streams  streams.Client
	clips    clips.Client
	log      logger.Logger
	now      func() time.Time
}

// CoordinatorOption applies a configuration option to the Coordinator.
type CoordinatorOption func(*Coordinator)

// WithClock overrides the wall-clock source used for last-resort
// checkpoint instants and processing stamps.
func WithClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCoordinator wires the pipeline. All collaborators are injected;
// nothing here reaches for shared global state.
func NewCoordinator(
	store repository.Store,
	dq dedupe.Queue,
	timingClient timing.Client,
	streamsClient streams.Client,
	clipsClient clips.Client,
	log logger.Logger,
	opts ...CoordinatorOption,
) *Coordinator {
	c := &Coordinator{
		dq:       dq,
		resolver: NewResolver(store, log),
		writer:   NewWriter(store, log),
		store:    store,
		timing:   timingClient,
		streams:  streamsClient,
		clips:    clipsClient,
		log:      log.Named("coordinator"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Process runs the full pipeline for one accepted task and writes the
// terminal state last, so a crash mid-pipeline leaves the entry in
// processing, which the freshness window treats as reprocessable.
func (c *Coordinator) Process(ctx context.Context, t mqueue.Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline panic: %v", r)
			c.failEntry(ctx, t.Key, err)
		}
	}()

	if markErr := c.dq.MarkProcessing(ctx, t.Key); markErr != nil {
		// Entry superseded or swept between accept and pickup; the work
		// is still worth doing, but note it.
		c.log.Warn(ctx, "queue entry not found at pickup", logger.String("queueKey", t.Key))
	}

	locs, err := c.resolveLocations(ctx, t.Event)
	if err != nil {
		c.failEntry(ctx, t.Key, err)
		return err
	}
	if len(locs) == 0 {
		// No matching event is a valid terminal outcome, not an error.
		metrics.RecordPipelineOutcome(string(model.StatusCompletedNoEvents))
		if cErr := c.dq.Complete(ctx, t.Key, model.StatusCompletedNoEvents); cErr != nil {
			c.log.Warn(ctx, "completing no-events entry", logger.String("queueKey", t.Key), logger.Error(cErr))
		}
		return nil
	}

	payload := c.fetchParticipant(ctx, t.Event)
	sel := ranking.Pick(payload, t.Event.Point)

	var streamMap map[string]string
	if t.Event.Kind == model.KindDetection {
		m, sErr := c.streams.FetchStreams(ctx, t.Event.CompetitionID)
		if sErr != nil {
			c.log.Warn(ctx, "stream discovery unavailable, stories will carry no clip",
				logger.String("competitionId", t.Event.CompetitionID),
				logger.Error(sErr),
			)
		} else {
			streamMap = m
		}
	}

	// Fan out per resolved location. Each location's write/clip/link
	// sequence is independent and order-insensitive.
	results := make([]LocationResult, len(locs))
	var wg sync.WaitGroup
	for i, loc := range locs {
		wg.Add(1)
		go func(i int, loc model.EventLocation) {
			defer wg.Done()
			results[i] = c.processLocation(ctx, loc, t, payload, sel, streamMap)
		}(i, loc)
	}
	wg.Wait()

	for _, res := range results {
		if res.Err != nil {
			c.log.Error(ctx, "location pipeline step failed",
				logger.String("queueKey", t.Key),
				logger.String("location", res.Location.Path()),
				logger.Error(res.Err),
			)
		}
	}

	metrics.RecordPipelineOutcome(string(model.StatusCompleted))
	if cErr := c.dq.Complete(ctx, t.Key, model.StatusCompleted); cErr != nil {
		c.log.Warn(ctx, "completing entry", logger.String("queueKey", t.Key), logger.Error(cErr))
	}
	return nil
}

// resolveLocations tries the named resolver first when the webhook names
// a sub-event, then falls back to the competition-only scan.
func (c *Coordinator) resolveLocations(ctx context.Context, ev model.CheckpointEvent) ([]model.EventLocation, error) {
	if ev.EventName != "" {
		locs, err := c.resolver.ResolveByName(ctx, ev.CompetitionID, ev.EventName)
		if err != nil {
			return nil, err
		}
		if len(locs) > 0 {
			return locs, nil
		}
	}
	return c.resolver.ResolveByCompetition(ctx, ev.CompetitionID)
}

// fetchParticipant returns the provider payload, or nil when the provider
// fails; the caller then synthesizes a fallback participant. Degradation
// never aborts the pipeline.
func (c *Coordinator) fetchParticipant(ctx context.Context, ev model.CheckpointEvent) *ranking.Payload {
	slug := c.resolveSlug(ctx, ev)
	payload, err := c.timing.FetchParticipant(ctx, slug, ev.ParticipantID)
	if err != nil {
		metrics.RecordProviderFallback()
		c.log.Warn(ctx, "timing provider fetch failed, using fallback participant",
			logger.String("slug", slug),
			logger.String("participantId", ev.ParticipantID),
			logger.Error(err),
		)
		return nil
	}
	return payload
}

// resolveSlug picks the provider slug: explicit from the webhook, else a
// stored mapping for the competition, else the raw competition id.
func (c *Coordinator) resolveSlug(ctx context.Context, ev model.CheckpointEvent) string {
	if ev.ProviderSlug != "" {
		return ev.ProviderSlug
	}
	if slug, ok, err := c.store.ProviderSlug(ctx, ev.CompetitionID); err == nil && ok {
		return slug
	}
	return ev.CompetitionID
}

// processLocation runs the per-location sequence: participant upsert,
// then (detections only) story create, clip generate, story finalize and
// split link.
func (c *Coordinator) processLocation(ctx context.Context, loc model.EventLocation, t mqueue.Task, payload *ranking.Payload, sel *ranking.Selection, streamMap map[string]string) LocationResult {
	res := LocationResult{Location: loc}

	participant := buildParticipant(t.Event, payload, sel, c.now())
	participant, err := c.writer.UpsertParticipant(ctx, loc, participant)
	if err != nil {
		res.Err = err
		return res
	}

	if t.Event.Kind != model.KindDetection {
		// Modifications only refresh the participant snapshot.
		return res
	}

	streamID, hasStream := streams.ResolveStreamID(t.Event.Location, streamMap)
	storyRec, err := c.writer.CreateStory(ctx, loc, t.RequestID, t.Event, participant.Name, hasStream)
	if err != nil {
		res.Err = err
		return res
	}
	res.StoryID = storyRec.ID
	if !hasStream {
		return res
	}

	instant := c.checkpointInstant(ctx, t.Event, payload)
	clip, genErr := c.clips.Generate(ctx, streamID, instant)
	if err := c.writer.FinalizeStory(ctx, loc, storyRec.ID, clip.URL, genErr); err != nil {
		res.Err = err
		return res
	}
	if genErr != nil {
		// Recorded on the story; the location itself succeeded.
		return res
	}

	if err := c.writer.LinkSplitClip(ctx, loc, t.Event.Point, clip.URL, streamID, t.Event.ParticipantID, time.UnixMilli(instant)); err != nil {
		res.Err = err
	}
	return res
}

// checkpointInstant resolves the clip anchor: webhook raw time, then the
// provider's raw split timestamp matched by point name, then wall clock
// as a logged last resort.
func (c *Coordinator) checkpointInstant(ctx context.Context, ev model.CheckpointEvent, payload *ranking.Payload) int64 {
	if ev.RawTimeMS > 0 {
		return ev.RawTimeMS
	}
	for key, split := range payload.EffectiveRankings() {
		if split.RawTimeMS > 0 && strings.EqualFold(key, ev.Point) {
			return split.RawTimeMS
		}
	}
	c.log.Warn(ctx, "no checkpoint timestamp available, clip window degrades to wall clock",
		logger.String("point", ev.Point),
		logger.String("participantId", ev.ParticipantID),
	)
	return c.now().UnixMilli()
}

func (c *Coordinator) failEntry(ctx context.Context, key string, err error) {
	metrics.RecordPipelineOutcome(string(model.StatusFailed))
	if fErr := c.dq.Fail(ctx, key, err.Error()); fErr != nil {
		c.log.Error(ctx, "recording pipeline failure", logger.String("queueKey", key), logger.Error(fErr))
	}
}

// buildParticipant assembles the record to upsert: the enriched snapshot
// when the provider answered, or the degraded fallback stub otherwise.
func buildParticipant(ev model.CheckpointEvent, payload *ranking.Payload, sel *ranking.Selection, processedAt time.Time) model.ParticipantRecord {
	var rec model.ParticipantRecord
	if payload == nil {
		rec = timing.Fallback(ev.ParticipantID)
	} else {
		rec = model.ParticipantRecord{
			ExternalID: ev.ParticipantID,
			Name:       strings.TrimSpace(payload.Name + " " + payload.Surname),
			Dorsal:     payload.Dorsal,
			DataSource: model.SourceProvider,
			Times:      payload.EffectiveTimes(),
			Raw:        payload.Raw,
		}
		if sel != nil {
			if pos := ranking.NormalizePosition(sel.Data, ranking.Overall); pos != nil {
				rec.Rankings = map[string]int{sel.SplitKey: *pos}
			}
		}
	}
	rec.LastCheckpoint = model.Checkpoint{
		Point:       ev.Point,
		Location:    ev.Location,
		ProcessedAt: processedAt,
		RawTimeMS:   ev.RawTimeMS,
	}
	return rec
}
