package repository

import "time"

// StoreOption applies a configuration option to the MemStore.
type StoreOption func(*MemStore)

// WithClock overrides the time source used for created/register stamps.
func WithClock(now func() time.Time) StoreOption {
	return func(s *MemStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides story id generation; tests use this for
// deterministic ids.
func WithIDGenerator(fn func() string) StoreOption {
	return func(s *MemStore) {
		if fn != nil {
			s.newID = fn
		}
	}
}
