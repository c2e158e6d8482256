// Package queue defines the contract for submitting and consuming
// background pipeline tasks.
//
// The accept path must stay near-constant-time, so it only performs one
// dedup read/write and a non-blocking submit here; all pipeline work
// happens on the consumer side.
package queue

import (
	"context"
	"sync"

	"github.com/velatorre/crossline/internal/domain/model"
	"github.com/velatorre/crossline/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultCapacity = 10_000
)

// Task is one accepted checkpoint handed to the pipeline workers.
type Task struct {
	Key       string
	RequestID string
	Event     model.CheckpointEvent
}

// Queue provides non-blocking submit and channel-based consume semantics.
type Queue interface {
	// Submit adds a task. Returns false when the queue is full or closed;
	// the caller surfaces that as backpressure.
	Submit(ctx context.Context, t Task) bool

	// Consume returns a channel receiving tasks as they become available.
	// The channel closes when the queue closes.
	Consume(ctx context.Context) <-chan Task

	// Len returns the current number of pending tasks.
	Len(ctx context.Context) int

	// Close stops intake; pending tasks still drain to consumers.
	Close() error

	// IsClosed reports whether the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	tasks    chan Task
	capacity int
	mu       sync.RWMutex
	closed   bool
}

// NewInMemoryQueue creates a bounded task queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultCapacity,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.tasks = make(chan Task, q.capacity)

	metrics.UpdateTaskQueueCapacity(q.capacity)
	metrics.UpdateTaskQueueSize(0)
	return q
}

// Submit implements Queue.
func (q *InMemoryQueue) Submit(ctx context.Context, t Task) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordTaskSubmitError("closed")
		return false
	}

	select {
	case q.tasks <- t:
		metrics.RecordTaskSubmit()
		metrics.UpdateTaskQueueSize(len(q.tasks))
		return true
	case <-ctx.Done():
		metrics.RecordTaskSubmitError("context_cancelled")
		return false
	default:
		metrics.RecordTaskSubmitError("queue_full")
		return false
	}
}

// Consume implements Queue.
func (q *InMemoryQueue) Consume(ctx context.Context) <-chan Task {
	out := make(chan Task)
	go func() {
		defer close(out)
		for t := range q.tasks {
			select {
			case out <- t:
				metrics.RecordTaskConsume()
				metrics.UpdateTaskQueueSize(len(q.tasks))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len implements Queue.
func (q *InMemoryQueue) Len(ctx context.Context) int {
	size := len(q.tasks)
	metrics.UpdateTaskQueueSize(size)
	return size
}

// Close implements Queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.tasks)
	q.closed = true
	return nil
}

// IsClosed implements Queue.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
