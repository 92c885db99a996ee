package ingest

import "errors"

// Run-aborting error categories. Per-chunk anomalies (empty or oversized
// text) are not errors: those chunks are skipped with a warning and the run
// continues.
var (
	// ErrSourceFetch indicates the repository clone failed
	ErrSourceFetch = errors.New("source fetch failed")

	// ErrFilesystem indicates an unreadable directory or file during
	// collection
	ErrFilesystem = errors.New("filesystem error")

	// ErrNameCollision indicates the space name is already taken
	ErrNameCollision = errors.New("name collision")

	// ErrRemoteService indicates an embedding or vector-store call failed
	ErrRemoteService = errors.New("remote service error")
)
