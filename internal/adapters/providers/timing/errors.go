package timing

import "errors"

// Sentinel kinds for timing provider errors.
var (
	ErrNotConfigured = errors.New("timing provider not configured")
	ErrUnavailable   = errors.New("timing provider unavailable")
	ErrProvider      = errors.New("timing provider error")
)
