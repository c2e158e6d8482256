package dedupe

import "errors"

// Sentinel kinds for dedup queue errors.
var (
	ErrNotFound          = errors.New("queue entry not found")
	ErrInvalidTransition = errors.New("invalid queue entry transition")
)
