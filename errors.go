package bcsymbols

import (
	"errors"
	"fmt"

	"github.com/ThaSiouL/bc-symbols-mcp/cache"
	"github.com/ThaSiouL/bc-symbols-mcp/partition"
)

var (
	// ErrNotFound is returned when a container or child is not found.
	// Every recoverable failure in this package satisfies it: callers
	// that only care about presence need a single check.
	ErrNotFound = errors.New("not found")

	// ErrStale is returned when a container was present but no longer
	// valid (content hash changed or TTL expired). The stale entry has
	// been purged as a side effect. Stale errors also satisfy
	// ErrNotFound.
	ErrStale = errors.New("stale container")

	// ErrCorruptIndex is returned when a child is listed in its
	// container's index but cannot be derived from the document. Only
	// that key is affected; the rest of the container stays valid.
	// Corrupt-index errors also satisfy ErrNotFound.
	ErrCorruptIndex = errors.New("corrupt index")

	// ErrClosed is returned by operations on a closed engine.
	ErrClosed = errors.New("engine closed")
)

func translateError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, cache.ErrStale):
		return fmt.Errorf("%w: %w: %w", ErrNotFound, ErrStale, err)
	case errors.Is(err, cache.ErrCorrupt):
		return fmt.Errorf("%w: %w: %w", ErrNotFound, ErrCorruptIndex, err)
	case errors.Is(err, cache.ErrNotFound), errors.Is(err, partition.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	return err
}
