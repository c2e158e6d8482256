package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/velatorre/crossline/internal/adapters/repository"
	"github.com/velatorre/crossline/internal/domain/model"
	"github.com/velatorre/crossline/internal/domain/story"
	"github.com/velatorre/crossline/internal/domain/textenc"
	"github.com/velatorre/crossline/pkg/logger"
	"github.com/velatorre/crossline/pkg/metrics"
)

// Writer persists participant, story and split-index records for one
// resolved location. All writes are idempotent: participants merge by
// external id, split clips merge by split name.
type Writer struct {
	store repository.Store
	log   logger.Logger
}

// NewWriter creates a writer over the record store.
func NewWriter(store repository.Store, log logger.Logger) *Writer {
	return &Writer{store: store, log: log.Named("writer")}
}

// UpsertParticipant merge-writes the participant at loc.
func (w *Writer) UpsertParticipant(ctx context.Context, loc model.EventLocation, p model.ParticipantRecord) (model.ParticipantRecord, error) {
	rec, err := w.store.UpsertParticipant(ctx, loc, p)
	if err != nil {
		return model.ParticipantRecord{}, fmt.Errorf("upsert participant %s at %s: %w", p.ExternalID, loc.Path(), err)
	}
	return rec, nil
}

// CreateStory classifies and persists the story for a detection. The
// generation status starts as pending_generation, or no_stream_available
// when no stream could be resolved for the location.
func (w *Writer) CreateStory(ctx context.Context, loc model.EventLocation, requestID string, ev model.CheckpointEvent, participantName string, hasStream bool) (model.StoryRecord, error) {
	typ := story.Classify(ev.CheckpointType, ev.Point, ev.Location)
	status := model.GenPending
	if !hasStream {
		status = model.GenNoStream
	}

	rec, err := w.store.CreateStory(ctx, loc, model.StoryRecord{
		RequestID:     requestID,
		ParticipantID: ev.ParticipantID,
		Type:          typ,
		Description:   story.Describe(typ, participantName, ev.Point),
		Point:         ev.Point,
		Location:      ev.Location,
		Generation:    model.GenerationInfo{Status: status},
	})
	if err != nil {
		return model.StoryRecord{}, fmt.Errorf("create story at %s: %w", loc.Path(), err)
	}
	metrics.RecordStoryCreated()
	return rec, nil
}

// FinalizeStory applies the single post-creation mutation a story gets:
// the clip outcome.
func (w *Writer) FinalizeStory(ctx context.Context, loc model.EventLocation, storyID, clipURL string, genErr error) error {
	gen := model.GenerationInfo{Status: model.GenCompleted, ClipURL: clipURL}
	if genErr != nil {
		gen = model.GenerationInfo{Status: model.GenFailed, Error: genErr.Error()}
		metrics.RecordClipFailure()
	}
	if err := w.store.UpdateStoryGeneration(ctx, loc, storyID, gen); err != nil {
		return fmt.Errorf("finalize story %s at %s: %w", storyID, loc.Path(), err)
	}
	return nil
}

// LinkSplitClip cross-references the checkpoint name against the event's
// declared split list and, on a match, merge-writes the denormalized
// lookup record. A checkpoint absent from the split list is not an error.
func (w *Writer) LinkSplitClip(ctx context.Context, loc model.EventLocation, checkpointName, clipURL, streamID, participantID string, ts time.Time) error {
	split, ok := findSplit(loc.Event, checkpointName)
	if !ok {
		return nil
	}
	err := w.store.PutSplitClip(ctx, loc, model.SplitClipIndex{
		SplitName:     split.Name,
		SplitIndex:    split.Index,
		ClipURL:       clipURL,
		ParticipantID: participantID,
		StreamID:      streamID,
		Timestamp:     ts,
	})
	if err != nil {
		return fmt.Errorf("link split clip %q at %s: %w", split.Name, loc.Path(), err)
	}
	return nil
}

// findSplit matches a checkpoint name against the event's split list,
// case-folded and mojibake-repaired on both sides.
func findSplit(ev model.EventRecord, checkpointName string) (model.SplitDef, bool) {
	candidates := []string{checkpointName, textenc.Repair(checkpointName)}
	for _, s := range ev.SplitNames() {
		stored := textenc.Repair(s.Name)
		for _, c := range candidates {
			if strings.EqualFold(stored, c) || strings.EqualFold(s.Name, c) {
				return s, true
			}
		}
	}
	return model.SplitDef{}, false
}
