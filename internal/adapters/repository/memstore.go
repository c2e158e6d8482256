package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/velatorre/crossline/internal/domain/model"
)

// MemStore implements Store with mutex-guarded maps, partitioned the way
// the document store partitions: race -> app -> event -> records.
type MemStore struct {
	mu sync.RWMutex

	// race id -> app id -> event id -> event record, insertion ordered.
	raceOrder []string
	apps      map[string][]string
	events    map[string][]model.EventRecord // keyed by raceID+"/"+appID

	providerSlugs map[string]string

	participants map[string]map[string]model.ParticipantRecord // loc path -> external id
	stories      map[string][]model.StoryRecord                // loc path, append ordered
	splitClips   map[string]map[string]model.SplitClipIndex    // loc path -> split name

	now   func() time.Time
	newID func() string
}

// NewMemStore creates an empty in-memory store with configuration options.
func NewMemStore(opts ...StoreOption) *MemStore {
	s := &MemStore{
		apps:          make(map[string][]string),
		events:        make(map[string][]model.EventRecord),
		providerSlugs: make(map[string]string),
		participants:  make(map[string]map[string]model.ParticipantRecord),
		stories:       make(map[string][]model.StoryRecord),
		splitClips:    make(map[string]map[string]model.SplitClipIndex),
		now:           time.Now,
		newID:         func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddEvent registers an event under a race/app path, creating the tenants
// as needed. Used by the catalog loader and by tests.
func (s *MemStore) AddEvent(raceID, appID string, ev model.EventRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apps[raceID]; !ok {
		s.raceOrder = append(s.raceOrder, raceID)
		s.apps[raceID] = nil
	}
	found := false
	for _, a := range s.apps[raceID] {
		if a == appID {
			found = true
			break
		}
	}
	if !found {
		s.apps[raceID] = append(s.apps[raceID], appID)
	}
	key := raceID + "/" + appID
	s.events[key] = append(s.events[key], ev)
}

// SetProviderSlug stores a competition -> provider slug mapping.
func (s *MemStore) SetProviderSlug(competitionID, slug string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.providerSlugs[competitionID] = slug
}

// RaceIDs implements Store.
func (s *MemStore) RaceIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.raceOrder))
	copy(out, s.raceOrder)
	return out, nil
}

// AppIDs implements Store.
func (s *MemStore) AppIDs(ctx context.Context, raceID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	apps := s.apps[raceID]
	out := make([]string, len(apps))
	copy(out, apps)
	return out, nil
}

// Events implements Store.
func (s *MemStore) Events(ctx context.Context, raceID, appID string) ([]model.EventRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	evs := s.events[raceID+"/"+appID]
	out := make([]model.EventRecord, len(evs))
	copy(out, evs)
	return out, nil
}

// ProviderSlug implements Store.
func (s *MemStore) ProviderSlug(ctx context.Context, competitionID string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	slug, ok := s.providerSlugs[competitionID]
	return slug, ok, nil
}

// UpsertParticipant implements Store. Zero-value fields on p never erase
// previously enriched data; a fallback write after a provider write keeps
// the provider snapshot.
func (s *MemStore) UpsertParticipant(ctx context.Context, loc model.EventLocation, p model.ParticipantRecord) (model.ParticipantRecord, error) {
	if p.ExternalID == "" {
		return model.ParticipantRecord{}, ErrMissingExternalID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path := loc.Path()
	if _, ok := s.participants[path]; !ok {
		s.participants[path] = make(map[string]model.ParticipantRecord)
	}

	existing, ok := s.participants[path][p.ExternalID]
	if !ok {
		now := s.now()
		p.CreatedAt = now
		if p.RegisterDate.IsZero() {
			p.RegisterDate = now
		}
		s.participants[path][p.ExternalID] = p
		return p, nil
	}

	// A fallback stub never downgrades an enriched identity; its only
	// contribution then is the checkpoint stamp below.
	degraded := p.DataSource == model.SourceFallback && existing.DataSource == model.SourceProvider

	merged := existing
	if p.Name != "" && !degraded {
		merged.Name = p.Name
	}
	if p.Dorsal != "" && !degraded {
		merged.Dorsal = p.Dorsal
	}
	if p.DataSource != "" && !degraded {
		merged.DataSource = p.DataSource
	}
	if len(p.Times) > 0 {
		merged.Times = p.Times
	}
	if len(p.Rankings) > 0 {
		merged.Rankings = p.Rankings
	}
	if len(p.Raw) > 0 {
		merged.Raw = p.Raw
	}
	if !p.LastCheckpoint.ProcessedAt.IsZero() {
		merged.LastCheckpoint = p.LastCheckpoint
	}
	s.participants[path][p.ExternalID] = merged
	return merged, nil
}

// Participant implements Store.
func (s *MemStore) Participant(ctx context.Context, loc model.EventLocation, externalID string) (model.ParticipantRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.participants[loc.Path()][externalID]
	if !ok {
		return model.ParticipantRecord{}, ErrNotFound
	}
	return p, nil
}

// CreateStory implements Store.
func (s *MemStore) CreateStory(ctx context.Context, loc model.EventLocation, story model.StoryRecord) (model.StoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if story.ID == "" {
		story.ID = s.newID()
	}
	if story.CreatedAt.IsZero() {
		story.CreatedAt = s.now()
	}
	path := loc.Path()
	s.stories[path] = append(s.stories[path], story)
	return story, nil
}

// UpdateStoryGeneration implements Store.
func (s *MemStore) UpdateStoryGeneration(ctx context.Context, loc model.EventLocation, storyID string, gen model.GenerationInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stories := s.stories[loc.Path()]
	for i := range stories {
		if stories[i].ID == storyID {
			stories[i].Generation = gen
			return nil
		}
	}
	return ErrNotFound
}

// StoryByRequestID implements Store.
func (s *MemStore) StoryByRequestID(ctx context.Context, requestID string) (model.StoryRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, stories := range s.stories {
		for _, st := range stories {
			if st.RequestID == requestID {
				return st, true, nil
			}
		}
	}
	return model.StoryRecord{}, false, nil
}

// StoriesByParticipant implements Store.
func (s *MemStore) StoriesByParticipant(ctx context.Context, loc model.EventLocation, participantID string) ([]model.StoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.StoryRecord
	for _, st := range s.stories[loc.Path()] {
		if st.ParticipantID == participantID {
			out = append(out, st)
		}
	}
	return out, nil
}

// PutSplitClip implements Store.
func (s *MemStore) PutSplitClip(ctx context.Context, loc model.EventLocation, idx model.SplitClipIndex) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	path := loc.Path()
	if _, ok := s.splitClips[path]; !ok {
		s.splitClips[path] = make(map[string]model.SplitClipIndex)
	}
	s.splitClips[path][idx.SplitName] = idx
	return nil
}

// SplitClip implements Store.
func (s *MemStore) SplitClip(ctx context.Context, loc model.EventLocation, splitName string) (model.SplitClipIndex, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.splitClips[loc.Path()][splitName]
	return idx, ok, nil
}
