// Package service wires the checkpoint ingestion system together and
// implements the dependencies required by the HTTP API: webhook accept
// with dedup, queue status lookup, and lifecycle management of the
// background worker pool.
package service

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	taskqueue "github.com/velatorre/crossline/internal/adapters/mq/queue"
	workerpool "github.com/velatorre/crossline/internal/adapters/mq/worker"
	"github.com/velatorre/crossline/internal/adapters/providers/clips"
	"github.com/velatorre/crossline/internal/adapters/providers/streams"
	"github.com/velatorre/crossline/internal/adapters/providers/timing"
	"github.com/velatorre/crossline/internal/adapters/repository"
	"github.com/velatorre/crossline/internal/domain/dedupe"
	"github.com/velatorre/crossline/internal/domain/model"
	"github.com/velatorre/crossline/internal/pipeline"
	"github.com/velatorre/crossline/pkg/logger"
	"github.com/velatorre/crossline/pkg/metrics"
)

// ErrBackpressure is returned by Accept when the task queue cannot take
// another task. The dedup entry is marked failed first, so the sender's
// retry past the freshness window re-opens the key.
var ErrBackpressure = errors.New("task queue full")

// Accept outcomes reported to the webhook sender.
const (
	AcceptQueued        = "queued"
	AcceptAlreadyQueued = "already_queued"
)

// AcceptResult is what the webhook handler returns to the sender.
type AcceptResult struct {
	Status    string `json:"status"`
	RequestID string `json:"requestId"`
	QueueKey  string `json:"queueKey"`
}

// StatusResult is the queue status lookup response: the dedup entry plus
// the story it produced, when one exists.
type StatusResult struct {
	Entry model.QueueEntry   `json:"entry"`
	Story *model.StoryRecord `json:"story,omitempty"`
}

// Service owns the ingestion components: the dedup queue, the bounded
// task queue, the pipeline coordinator and its worker pool.
type Service struct {
	mu sync.RWMutex

	store       repository.Store
	dedupeQueue dedupe.Queue
	taskQueue   taskqueue.Queue
	workerPool  *workerpool.Pool

	timingClient  timing.Client
	streamsClient streams.Client
	clipsClient   clips.Client

	workerCount   int
	taskQueueSize int
	freshness     time.Duration
	retention     time.Duration

	started bool

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of pipeline workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithTaskQueueSize sets the task queue capacity.
func WithTaskQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.taskQueueSize = size
		}
	}
}

// WithFreshnessWindow sets how long a dedup entry suppresses duplicates.
func WithFreshnessWindow(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.freshness = d
		}
	}
}

// WithRetention sets how long terminal dedup entries stay queryable.
func WithRetention(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.retention = d
		}
	}
}

// WithStore injects the catalog/record store. Defaults to the in-memory
// store when unset.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithTimingClient injects the timing-provider client.
func WithTimingClient(c timing.Client) Option {
	return func(s *Service) {
		if c != nil {
			s.timingClient = c
		}
	}
}

// WithStreamsClient injects the stream-discovery client.
func WithStreamsClient(c streams.Client) Option {
	return func(s *Service) {
		if c != nil {
			s.streamsClient = c
		}
	}
}

// WithClipsClient injects the clip-generation client.
func WithClipsClient(c clips.Client) Option {
	return func(s *Service) {
		if c != nil {
			s.clipsClient = c
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:   runtime.NumCPU() * 2,
		taskQueueSize: 10_000,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}
	s.logger.Info(ctx, "starting checkpoint ingestion service...")

	if s.store == nil {
		s.store = repository.NewMemStore()
	}
	// Unconfigured clients degrade cleanly: their calls return
	// not-configured errors and the pipeline falls back.
	if s.timingClient == nil {
		s.timingClient = timing.NewHTTPClient("")
	}
	if s.streamsClient == nil {
		s.streamsClient = streams.NewHTTPClient("")
	}
	if s.clipsClient == nil {
		s.clipsClient = clips.NewHTTPClient("")
	}
	var dedupeOpts []dedupe.Option
	if s.freshness > 0 {
		dedupeOpts = append(dedupeOpts, dedupe.WithFreshnessWindow(s.freshness))
	}
	if s.retention > 0 {
		dedupeOpts = append(dedupeOpts, dedupe.WithRetention(s.retention))
	}
	s.dedupeQueue = dedupe.NewInMemoryQueue(dedupeOpts...)
	s.taskQueue = taskqueue.NewInMemoryQueue(
		taskqueue.WithCapacity(s.taskQueueSize),
	)

	coordinator := pipeline.NewCoordinator(
		s.store,
		s.dedupeQueue,
		s.timingClient,
		s.streamsClient,
		s.clipsClient,
		s.logger,
	)
	s.workerPool = workerpool.NewPool(s.workerCount, s.taskQueue, coordinator)
	s.workerPool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "checkpoint ingestion service started",
		logger.Int("workers", s.workerCount),
		logger.Int("taskQueueSize", s.taskQueueSize),
	)
	return nil
}

// Stop gracefully shuts down the service: intake closes first, pending
// tasks drain to the workers, then the pool stops.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping checkpoint ingestion service...")

	if s.workerPool != nil {
		_ = s.workerPool.Shutdown(ctx)
		s.workerPool.Stop()
	}

	s.started = false
	s.logger.Info(ctx, "checkpoint ingestion service stopped")
}

// Store exposes the record store, used at bootstrap to seed the catalog.
func (s *Service) Store() repository.Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store
}

// Accept runs the near-constant-time webhook path: derive the dedup key,
// register or collapse the entry, and hand the task to the pipeline. A
// duplicate is reported as a success carrying the original request id.
func (s *Service) Accept(ctx context.Context, ev model.CheckpointEvent) (AcceptResult, error) {
	metrics.RecordCheckpointReceived()

	key := dedupe.Key(ev.CompetitionID, ev.ParticipantID, ev.Kind, ev.Point, ev.Location)
	requestID := uuid.NewString()

	res, err := s.dedupeQueue.Enqueue(ctx, model.QueueEntry{
		Key:           key,
		RequestID:     requestID,
		CompetitionID: ev.CompetitionID,
		ParticipantID: ev.ParticipantID,
		Kind:          ev.Kind,
		Payload:       ev,
	})
	if err != nil {
		return AcceptResult{}, err
	}
	if res.AlreadyQueued {
		s.logger.Debug(ctx, "duplicate checkpoint collapsed",
			logger.String("queueKey", key),
			logger.String("requestId", res.Entry.RequestID),
			logger.String("status", string(res.Entry.Status)),
		)
		return AcceptResult{
			Status:    AcceptAlreadyQueued,
			RequestID: res.Entry.RequestID,
			QueueKey:  key,
		}, nil
	}

	if !s.taskQueue.Submit(ctx, taskqueue.Task{Key: key, RequestID: requestID, Event: ev}) {
		// The entry must not stay queued with no task behind it.
		if fErr := s.dedupeQueue.Fail(ctx, key, ErrBackpressure.Error()); fErr != nil {
			s.logger.Error(ctx, "failing backpressured entry", logger.String("queueKey", key), logger.Error(fErr))
		}
		s.logger.Warn(ctx, "task queue full, rejecting checkpoint",
			logger.String("queueKey", key),
			logger.Int("queueLength", s.taskQueue.Len(ctx)),
		)
		return AcceptResult{}, ErrBackpressure
	}

	return AcceptResult{
		Status:    AcceptQueued,
		RequestID: requestID,
		QueueKey:  key,
	}, nil
}

// Status looks up the dedup entry for key, plus the story stamped with
// the entry's request id once the pipeline produced one.
func (s *Service) Status(ctx context.Context, key string) (StatusResult, error) {
	entry, err := s.dedupeQueue.Get(ctx, key)
	if err != nil {
		return StatusResult{}, err
	}

	out := StatusResult{Entry: entry}
	story, ok, err := s.store.StoryByRequestID(ctx, entry.RequestID)
	if err != nil {
		s.logger.Warn(ctx, "story lookup failed", logger.String("requestId", entry.RequestID), logger.Error(err))
		return out, nil
	}
	if ok {
		out.Story = &story
	}
	return out, nil
}

// Stats is a point-in-time snapshot of the ingestion runtime, served on
// the stats endpoint and used to refresh the queue/worker gauges.
type Stats struct {
	Started       bool  `json:"started"`
	WorkerCount   int   `json:"workerCount"`
	TaskQueueSize int   `json:"taskQueueSize"`
	QueueLength   int   `json:"queueLength"`
	DedupeEntries int64 `json:"dedupeEntries"`
}

// GetStats returns the current runtime snapshot.
func (s *Service) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		Started:       s.started,
		WorkerCount:   s.workerCount,
		TaskQueueSize: s.taskQueueSize,
	}
	if !s.started {
		return stats
	}

	ctx := context.Background()
	stats.QueueLength = s.taskQueue.Len(ctx)
	stats.DedupeEntries = s.dedupeQueue.Size()

	metrics.UpdateTaskQueueSize(stats.QueueLength)
	metrics.UpdateDedupeEntries(int(stats.DedupeEntries))
	metrics.UpdateWorkerCount(stats.WorkerCount)
	return stats
}
