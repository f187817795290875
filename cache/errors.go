package cache

import "errors"

var (
	// ErrNotFound is returned when a container or child is unknown.
	// Stale and corrupt results wrap it too, so callers that only care
	// about absence can test for this one sentinel.
	ErrNotFound = errors.New("not found")

	// ErrStale marks a hash mismatch or an expired entry. The stale
	// entry is purged as a side effect before the error is returned.
	ErrStale = errors.New("stale")

	// ErrCorrupt marks a child the document cannot derive even though
	// its own inventory lists it. Scoped to the one key; the rest of
	// the container stays valid.
	ErrCorrupt = errors.New("corrupt index")
)
