// Package model contains domain models passed between layers.
package model

import (
	"encoding/json"
	"time"
)

// EventKind distinguishes fresh detections from corrections.
type EventKind string

// Kinds accepted on the webhook.
const (
	KindDetection    EventKind = "detection"
	KindModification EventKind = "modification"
)

// Valid reports whether k is a kind this service accepts.
func (k EventKind) Valid() bool {
	return k == KindDetection || k == KindModification
}

// CheckpointEvent is the inbound webhook payload after validation.
// It is transient: it only survives as the payload of a QueueEntry.
type CheckpointEvent struct {
	CompetitionID  string    `json:"competitionId"`
	ParticipantID  string    `json:"participantId"` // provider external id
	Kind           EventKind `json:"kind"`
	Point          string    `json:"point"`
	Location       string    `json:"location"`
	EventName      string    `json:"eventName,omitempty"`      // optional named sub-event
	ProviderSlug   string    `json:"providerSlug,omitempty"`   // explicit timing-provider slug
	CheckpointType string    `json:"checkpointType,omitempty"` // explicit story classification
	RawTimeMS      int64     `json:"rawTime,omitempty"`        // unix ms; 0 when absent
}

// QueueStatus is the lifecycle state of a dedup queue entry.
type QueueStatus string

// Queue entry states. queued and processing are live; the rest are terminal.
const (
	StatusQueued            QueueStatus = "queued"
	StatusProcessing        QueueStatus = "processing"
	StatusCompleted         QueueStatus = "completed"
	StatusCompletedNoEvents QueueStatus = "completed_no_events"
	StatusFailed            QueueStatus = "failed"
)

// Terminal reports whether the status is a final state.
func (s QueueStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCompletedNoEvents, StatusFailed:
		return true
	default:
		return false
	}
}

// QueueEntry is the persistent dedup record for one physical checkpoint.
type QueueEntry struct {
	Key           string          `json:"key"`
	RequestID     string          `json:"requestId"`
	CompetitionID string          `json:"competitionId"`
	ParticipantID string          `json:"participantId"`
	Kind          EventKind       `json:"kind"`
	Payload       CheckpointEvent `json:"payload"`
	Status        QueueStatus     `json:"status"`
	Error         string          `json:"error,omitempty"`
	Attempts      int             `json:"attempts"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
	// ExpiresAt is zero until the entry reaches a terminal state. Expired
	// entries are swept by an external retention job.
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

// SplitDef is one declared timing point on an event.
type SplitDef struct {
	Name  string `json:"name" koanf:"name"`
	Index int    `json:"index" koanf:"index"`
}

// EventRecord is one event under a race/app tenant path. Provider identifiers
// are inconsistently populated across tenants, which is why the resolver
// matches on several of these fields.
type EventRecord struct {
	ID            string `json:"id" koanf:"id"`
	Name          string `json:"name" koanf:"name"`
	CompetitionID string `json:"competitionId" koanf:"competition_id"`
	RaceID        string `json:"raceId" koanf:"race_id"`
	ExternalID    string `json:"externalId" koanf:"external_id"`
	ProviderSlug  string `json:"providerSlug" koanf:"provider_slug"`

	// The declared split list may live under any of three legacy fields,
	// depending on when the event was configured.
	Splits       []SplitDef `json:"splits,omitempty" koanf:"splits"`
	TimingPoints []string   `json:"timingPoints,omitempty" koanf:"timing_points"`
	Checkpoints  []string   `json:"checkpoints,omitempty" koanf:"checkpoints"`
}

// SplitNames flattens the three legacy split fields into one ordered list.
// The first populated field wins; they were never mixed in practice.
func (e EventRecord) SplitNames() []SplitDef {
	if len(e.Splits) > 0 {
		return e.Splits
	}
	if len(e.TimingPoints) > 0 {
		out := make([]SplitDef, len(e.TimingPoints))
		for i, n := range e.TimingPoints {
			out[i] = SplitDef{Name: n, Index: i}
		}
		return out
	}
	if len(e.Checkpoints) > 0 {
		out := make([]SplitDef, len(e.Checkpoints))
		for i, n := range e.Checkpoints {
			out[i] = SplitDef{Name: n, Index: i}
		}
		return out
	}
	return nil
}

// EventLocation is a fully resolved tenant path for one matching event.
// A competition mirrored across apps resolves to multiple locations.
type EventLocation struct {
	RaceID string      `json:"raceId"`
	AppID  string      `json:"appId"`
	Event  EventRecord `json:"event"`
}

// Path returns the race/app/event path, used as a store partition key.
func (l EventLocation) Path() string {
	return l.RaceID + "/" + l.AppID + "/" + l.Event.ID
}

// Checkpoint is the last processed crossing stamped onto a participant.
type Checkpoint struct {
	Point       string    `json:"point"`
	Location    string    `json:"location"`
	ProcessedAt time.Time `json:"processedAt"`
	RawTimeMS   int64     `json:"rawTime,omitempty"`
}

// Data sources for participant records.
const (
	SourceProvider = "provider"
	SourceFallback = "fallback"
)

// ParticipantRecord is owned per EventLocation and keyed by the provider's
// external participant id, which is what makes the upsert idempotent.
type ParticipantRecord struct {
	ExternalID     string          `json:"externalId"`
	Name           string          `json:"name"`
	Dorsal         string          `json:"dorsal,omitempty"`
	DataSource     string          `json:"dataSource"`
	Times          map[string]string `json:"times,omitempty"`
	Rankings       map[string]int    `json:"rankings,omitempty"`
	Raw            json.RawMessage   `json:"raw,omitempty"`
	LastCheckpoint Checkpoint        `json:"lastCheckpoint"`
	CreatedAt      time.Time         `json:"createdAt"`
	RegisterDate   time.Time         `json:"registerDate"`
}

// StoryType classifies a generated story.
type StoryType string

// Story classifications.
const (
	StoryStarted  StoryType = "ATHLETE_STARTED"
	StoryFinished StoryType = "ATHLETE_FINISHED"
	StorySplit    StoryType = "ATHLETE_CROSSED_TIMING_SPLIT"
)

// GenerationStatus is the clip-generation state on a story.
type GenerationStatus string

// Clip generation states. A story is created as pending_generation or
// no_stream_available and mutated exactly once more when generation resolves.
const (
	GenPending   GenerationStatus = "pending_generation"
	GenNoStream  GenerationStatus = "no_stream_available"
	GenCompleted GenerationStatus = "completed"
	GenFailed    GenerationStatus = "failed"
)

// GenerationInfo records the clip outcome on a story.
type GenerationInfo struct {
	Status  GenerationStatus `json:"status"`
	ClipURL string           `json:"clipUrl,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// StoryRecord is the user-visible media post for one detection.
type StoryRecord struct {
	ID            string         `json:"id"`
	RequestID     string         `json:"requestId"`
	ParticipantID string         `json:"participantId"`
	Type          StoryType      `json:"type"`
	Description   string         `json:"description"`
	Point         string         `json:"point"`
	Location      string         `json:"location"`
	Generation    GenerationInfo `json:"generationInfo"`
	CreatedAt     time.Time      `json:"createdAt"`
}

// SplitClipIndex is a denormalized per-split clip lookup, merge-keyed by
// split name. Purely a read optimization, never a source of truth.
type SplitClipIndex struct {
	SplitName     string    `json:"splitName"`
	SplitIndex    int       `json:"splitIndex"`
	ClipURL       string    `json:"clipUrl"`
	ParticipantID string    `json:"participantId"`
	StreamID      string    `json:"streamId"`
	Timestamp     time.Time `json:"timestamp"`
}
