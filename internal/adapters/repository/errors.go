package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound          = errors.New("record not found")
	ErrMissingExternalID = errors.New("participant external id is required")
	ErrLoadCatalog       = errors.New("load catalog failed")
)
