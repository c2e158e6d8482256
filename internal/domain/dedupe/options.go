package dedupe

import "time"

// Option applies a configuration option to the InMemoryQueue.
type Option func(*InMemoryQueue)

// WithFreshnessWindow sets how long an existing entry suppresses duplicates.
func WithFreshnessWindow(d time.Duration) Option {
	return func(q *InMemoryQueue) {
		if d > 0 {
			q.freshness = d
		}
	}
}

// WithRetention sets how long terminal entries stay before expiry.
func WithRetention(d time.Duration) Option {
	return func(q *InMemoryQueue) {
		if d > 0 {
			q.retention = d
		}
	}
}

// WithClock overrides the time source; tests use this to step through the
// freshness and retention windows.
func WithClock(now func() time.Time) Option {
	return func(q *InMemoryQueue) {
		if now != nil {
			q.now = now
		}
	}
}
