package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrConflict is returned when a write was based on a stale revision.
	ErrConflict = errors.New("persistence: revision conflict")
	// ErrCorrupt is returned when a stored value no longer matches its checksum.
	ErrCorrupt = errors.New("persistence: checksum mismatch")
)
