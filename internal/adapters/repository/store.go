// Package repository defines the catalog/participant/story store interface
// and an in-memory implementation. The production document store is an
// external collaborator; everything here is scoped per resolved location,
// which is why no cross-request coordination is needed.
package repository

import (
	"context"

	"github.com/velatorre/crossline/internal/domain/model"
)

// Store provides read access to the tenant catalog and write access to
// participant, story and split-index records.
type Store interface {
	// Catalog reads used by the location resolver.
	RaceIDs(ctx context.Context) ([]string, error)
	AppIDs(ctx context.Context, raceID string) ([]string, error)
	Events(ctx context.Context, raceID, appID string) ([]model.EventRecord, error)

	// ProviderSlug returns the stored timing-provider slug for a
	// competition, if one was ever mapped.
	ProviderSlug(ctx context.Context, competitionID string) (string, bool, error)

	// UpsertParticipant creates or merge-updates a participant keyed by
	// the provider external id. Replaying a webhook never duplicates.
	UpsertParticipant(ctx context.Context, loc model.EventLocation, p model.ParticipantRecord) (model.ParticipantRecord, error)
	Participant(ctx context.Context, loc model.EventLocation, externalID string) (model.ParticipantRecord, error)

	// CreateStory persists a new story under the participant; the returned
	// record carries the assigned id.
	CreateStory(ctx context.Context, loc model.EventLocation, s model.StoryRecord) (model.StoryRecord, error)
	// UpdateStoryGeneration is the single post-creation mutation a story
	// receives, once clip generation resolves.
	UpdateStoryGeneration(ctx context.Context, loc model.EventLocation, storyID string, gen model.GenerationInfo) error
	// StoryByRequestID returns the first story stamped with requestID,
	// searched across locations; used by the status endpoint.
	StoryByRequestID(ctx context.Context, requestID string) (model.StoryRecord, bool, error)
	// StoriesByParticipant lists stories for one participant at loc.
	StoriesByParticipant(ctx context.Context, loc model.EventLocation, participantID string) ([]model.StoryRecord, error)

	// PutSplitClip merge-writes the denormalized split clip lookup,
	// keyed by split name. Idempotent, safe to repeat.
	PutSplitClip(ctx context.Context, loc model.EventLocation, idx model.SplitClipIndex) error
	SplitClip(ctx context.Context, loc model.EventLocation, splitName string) (model.SplitClipIndex, bool, error)
}
