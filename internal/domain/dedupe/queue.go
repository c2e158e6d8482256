package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/velatorre/crossline/internal/domain/model"
	"github.com/velatorre/crossline/pkg/metrics"
)

// Default lifecycle windows.
const (
	// defaultFreshness is how long an existing entry suppresses duplicates.
	// An entry older than this is assumed stalled and may be superseded.
	defaultFreshness = time.Minute
	// defaultRetention is how long terminal entries stay queryable before
	// the external sweeper may delete them.
	defaultRetention = 15 * time.Minute
)

// EnqueueResult tells the accept path what happened to its key.
type EnqueueResult struct {
	AlreadyQueued bool
	Entry         model.QueueEntry
}

// Queue is the persistent request-dedup record store. At most one entry
// per key is live (queued/processing) within the freshness window.
type Queue interface {
	// Enqueue registers a fresh entry for key, or reports the existing one.
	// The caller must treat AlreadyQueued as a success: the webhook sender
	// retries on non-2xx, so duplicates must look like fresh accepts.
	Enqueue(ctx context.Context, entry model.QueueEntry) (EnqueueResult, error)

	// MarkProcessing transitions the entry to processing.
	MarkProcessing(ctx context.Context, key string) error

	// Complete writes a terminal success state (completed or
	// completed_no_events) and stamps the retention expiry.
	Complete(ctx context.Context, key string, status model.QueueStatus) error

	// Fail records a terminal failure with its message, bumping the
	// attempt counter. No retry is scheduled here; a later redelivery
	// past the freshness window re-opens the key.
	Fail(ctx context.Context, key string, msg string) error

	// Get returns the entry for key.
	Get(ctx context.Context, key string) (model.QueueEntry, error)

	// Size returns the number of tracked entries.
	Size() int64
}

// InMemoryQueue implements Queue with a mutex-guarded map. The document
// store backing the production deployment is an external collaborator;
// this implementation carries the same lifecycle semantics.
type InMemoryQueue struct {
	mu        sync.RWMutex
	entries   map[string]*model.QueueEntry
	freshness time.Duration
	retention time.Duration
	now       func() time.Time
	size      atomic.Int64
}

// NewInMemoryQueue creates a queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		entries:   make(map[string]*model.QueueEntry),
		freshness: defaultFreshness,
		retention: defaultRetention,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue implements Queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, entry model.QueueEntry) (EnqueueResult, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	if existing, ok := q.entries[entry.Key]; ok {
		expired := existing.Status.Terminal() && !existing.ExpiresAt.IsZero() && now.After(existing.ExpiresAt)
		fresh := now.Sub(existing.CreatedAt) < q.freshness

		switch {
		case fresh:
			// Within the freshness window every redelivery collapses,
			// regardless of state.
			metrics.RecordCheckpointDuplicate()
			return EnqueueResult{AlreadyQueued: true, Entry: *existing}, nil
		case existing.Status.Terminal() && !expired:
			// Terminal entries are never resurrected before retention runs
			// out; the work already happened.
			metrics.RecordCheckpointDuplicate()
			return EnqueueResult{AlreadyQueued: true, Entry: *existing}, nil
		default:
			// Stale live entry (prior processing stalled or crashed) or an
			// expired terminal one: supersede it and start a new cycle.
			delete(q.entries, entry.Key)
			q.size.Add(-1)
		}
	}

	e := entry
	e.Status = model.StatusQueued
	e.CreatedAt = now
	e.UpdatedAt = now
	e.ExpiresAt = time.Time{}
	e.Attempts = 0
	e.Error = ""
	q.entries[e.Key] = &e
	q.size.Add(1)
	metrics.UpdateDedupeEntries(int(q.size.Load()))
	return EnqueueResult{Entry: e}, nil
}

// MarkProcessing implements Queue.
func (q *InMemoryQueue) MarkProcessing(ctx context.Context, key string) error {
	return q.update(key, func(e *model.QueueEntry) {
		e.Status = model.StatusProcessing
	})
}

// Complete implements Queue.
func (q *InMemoryQueue) Complete(ctx context.Context, key string, status model.QueueStatus) error {
	if status != model.StatusCompleted && status != model.StatusCompletedNoEvents {
		return ErrInvalidTransition
	}
	return q.update(key, func(e *model.QueueEntry) {
		e.Status = status
		e.ExpiresAt = q.now().Add(q.retention)
	})
}

// Fail implements Queue.
func (q *InMemoryQueue) Fail(ctx context.Context, key string, msg string) error {
	return q.update(key, func(e *model.QueueEntry) {
		e.Status = model.StatusFailed
		e.Error = msg
		e.Attempts++
		e.ExpiresAt = q.now().Add(q.retention)
	})
}

// Get implements Queue.
func (q *InMemoryQueue) Get(ctx context.Context, key string) (model.QueueEntry, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	e, ok := q.entries[key]
	if !ok {
		return model.QueueEntry{}, ErrNotFound
	}
	return *e, nil
}

// Size implements Queue.
func (q *InMemoryQueue) Size() int64 {
	return q.size.Load()
}

func (q *InMemoryQueue) update(key string, fn func(*model.QueueEntry)) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.entries[key]
	if !ok {
		return ErrNotFound
	}
	fn(e)
	e.UpdatedAt = q.now()
	return nil
}
