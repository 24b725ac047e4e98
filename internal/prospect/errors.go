package prospect

import "errors"

// Sentinel errors shared across the store and controller boundaries.
var (
	// ErrNotFound is returned for unknown job IDs. Stores also convert
	// corrupt or truncated records to ErrNotFound so that a damaged
	// file is indistinguishable from an absent one.
	ErrNotFound = errors.New("job not found")

	// ErrDuplicateJob is returned when creating a job whose ID already
	// has a record.
	ErrDuplicateJob = errors.New("job already exists")
)
