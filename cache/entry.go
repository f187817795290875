package cache

import (
	"time"

	"github.com/ThaSiouL/bc-symbols-mcp/symbol"
)

// entry is one admitted container. The entry exclusively owns its
// manifest, its document and its materialized-child map; callers only
// ever see clones.
type entry struct {
	identity  symbol.Identity
	manifest  symbol.Manifest
	ref       *symbol.Reference
	inventory *symbol.Inventory
	children  map[symbol.Key]symbol.Object

	createdAt   time.Time
	lastAccess  time.Time
	accessCount uint64

	// footprint is the serialized-size estimate; reserved is the part
	// of it actually registered with the resource controller.
	footprint int64
	reserved  int64
}

func (e *entry) expired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(e.createdAt) > ttl
}

func (e *entry) touch(now time.Time) {
	e.lastAccess = now
	e.accessCount++
}
