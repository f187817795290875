package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ThaSiouL/bc-symbols-mcp/codec"
	"github.com/ThaSiouL/bc-symbols-mcp/eviction"
	"github.com/ThaSiouL/bc-symbols-mcp/internal/resource"
	"github.com/ThaSiouL/bc-symbols-mcp/symbol"
)

// Config configures a Store.
type Config struct {
	// TTL bounds entry age, measured from admission. 0 disables expiry.
	TTL time.Duration

	// Ceiling caps the estimated footprint in bytes. 0 disables
	// memory-triggered eviction.
	Ceiling int64

	// Strategy picks eviction victims. nil falls back to Recency.
	Strategy eviction.Strategy

	// Codec measures footprints. nil falls back to codec.Default.
	Codec codec.Codec

	// Resources, when set, mirrors footprints into the process-wide
	// resource controller.
	Resources *resource.Controller

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Store is the container cache. All methods are safe for concurrent
// use.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry

	ttl     time.Duration
	cdc     codec.Codec
	evictor *eviction.Controller
	rc      *resource.Controller
	now     func() time.Time

	group singleflight.Group

	hits        atomic.Int64
	misses      atomic.Int64
	derivations atomic.Int64
	evictions   atomic.Int64
	stalePurges atomic.Int64
}

// New creates an empty Store from cfg.
func New(cfg Config) *Store {
	cdc := cfg.Codec
	if cdc == nil {
		cdc = codec.Default
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		entries: make(map[string]*entry),
		ttl:     cfg.TTL,
		cdc:     cdc,
		evictor: eviction.NewController(cfg.Strategy, cfg.Ceiling),
		rc:      cfg.Resources,
		now:     now,
	}
}

// Admit indexes and stores one decoded container, replacing any entry
// under the same locator, then evicts until the store fits its
// ceiling. It reports how many entries were evicted. The store takes
// ownership of manifest and ref.
func (s *Store) Admit(identity symbol.Identity, manifest symbol.Manifest, ref *symbol.Reference) int {
	inventory := symbol.BuildInventory(ref)
	footprint := s.sizeOf(manifest) + s.sizeOf(ref)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[identity.Locator]; ok {
		s.removeLocked(identity.Locator)
	}

	now := s.now()
	e := &entry{
		identity:   identity,
		manifest:   manifest,
		ref:        ref,
		inventory:  inventory,
		children:   make(map[symbol.Key]symbol.Object),
		createdAt:  now,
		lastAccess: now,
		footprint:  footprint,
	}
	s.reserveLocked(e, footprint)
	s.entries[identity.Locator] = e

	evicted := s.evictor.Run(lockedTable{s})
	s.evictions.Add(int64(evicted))
	return evicted
}

// Metadata returns the container's manifest. The entry must exist,
// carry the expected hash and be within its TTL; a stale entry is
// purged and reported as such.
func (s *Store) Metadata(locator, hash string) (symbol.Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.entryLocked(locator, hash)
	if err != nil {
		return symbol.Manifest{}, err
	}
	return e.manifest.Clone(), nil
}

// Descriptors lists the container's children filtered by kind, id and
// name; zero values leave a dimension unfiltered. The Materialized
// flag reflects the child map at call time.
func (s *Store) Descriptors(locator, hash string, kind symbol.Kind, id uint64, name string) ([]symbol.Descriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.entryLocked(locator, hash)
	if err != nil {
		return nil, err
	}

	out := make([]symbol.Descriptor, 0)
	for _, d := range e.inventory.Descriptors {
		if kind != symbol.KindInvalid && d.Kind != kind {
			continue
		}
		if id != 0 && d.ID != id {
			continue
		}
		if name != "" && d.Name != name {
			continue
		}
		_, d.Materialized = e.children[d.Key()]
		out = append(out, d)
	}
	return out, nil
}

// Materialize returns the full child value for (kind, id, name),
// deriving it from the retained document on first request and serving
// the child map afterwards. Concurrent requests for the same key share
// one derivation. A child the inventory lists but the document cannot
// produce is corrupt: reported as absent for that key only.
func (s *Store) Materialize(ctx context.Context, locator, hash string, kind symbol.Kind, id uint64, name string) (symbol.Object, error) {
	key := symbol.Key{Kind: kind, ID: id, Name: name}

	s.mu.Lock()
	e, err := s.entryLocked(locator, hash)
	if err != nil {
		s.mu.Unlock()
		return symbol.Object{}, err
	}
	if obj, ok := e.children[key]; ok {
		s.mu.Unlock()
		return obj.Clone(), nil
	}
	if !e.inventory.Contains(key) {
		s.mu.Unlock()
		return symbol.Object{}, fmt.Errorf("%w: child %s in container %q", ErrNotFound, key, locator)
	}
	s.mu.Unlock()

	flight := locator + "\x00" + hash + "\x00" + key.String()
	ch := s.group.DoChan(flight, func() (any, error) {
		return s.derive(locator, hash, key)
	})

	select {
	case <-ctx.Done():
		return symbol.Object{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return symbol.Object{}, res.Err
		}
		return res.Val.(symbol.Object).Clone(), nil
	}
}

// derive runs inside the single-flight group: exactly one derivation
// per key is in flight at a time.
func (s *Store) derive(locator, hash string, key symbol.Key) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[locator]
	if !ok || e.identity.Hash != hash {
		return nil, fmt.Errorf("%w: container %q", ErrNotFound, locator)
	}
	if obj, ok := e.children[key]; ok {
		return obj, nil
	}

	obj, ok := symbol.Materialize(e.ref, key)
	if !ok {
		return nil, fmt.Errorf("%w: %w: child %s listed but not derivable", ErrNotFound, ErrCorrupt, key)
	}
	s.derivations.Add(1)
	e.children[key] = obj

	grow := s.sizeOf(obj)
	e.footprint += grow
	s.reserveLocked(e, grow)

	return obj, nil
}

// Sweep removes every expired entry, independent of memory pressure.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ttl <= 0 {
		return 0
	}
	now := s.now()
	removed := 0
	for locator, e := range s.entries {
		if e.expired(now, s.ttl) {
			s.removeLocked(locator)
			s.stalePurges.Add(1)
			removed++
		}
	}
	return removed
}

// LoadingStats reports how much of the container is materialized.
type LoadingStats struct {
	Total      int     `json:"total"`
	Loaded     int     `json:"loaded"`
	Percentage float64 `json:"percentage"`
}

// LoadingStats reports materialization progress for one container.
func (s *Store) LoadingStats(locator, hash string) (LoadingStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.entryLocked(locator, hash)
	if err != nil {
		return LoadingStats{}, err
	}

	ls := LoadingStats{Total: e.inventory.Total, Loaded: len(e.children)}
	if ls.Total > 0 {
		ls.Percentage = 100 * float64(ls.Loaded) / float64(ls.Total)
	} else {
		ls.Percentage = 100
	}
	return ls, nil
}

// Stats is a point-in-time snapshot of the store.
type Stats struct {
	Containers           int     `json:"containers"`
	TotalChildren        int     `json:"totalChildren"`
	MaterializedChildren int     `json:"materializedChildren"`
	FootprintBytes       int64   `json:"footprintBytes"`
	Hits                 int64   `json:"hits"`
	Misses               int64   `json:"misses"`
	HitRate              float64 `json:"hitRate"`
	Derivations          int64   `json:"derivations"`
	Evictions            int64   `json:"evictions"`
	StalePurges          int64   `json:"stalePurges"`
}

// Stats snapshots the store.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		Containers:  len(s.entries),
		Hits:        s.hits.Load(),
		Misses:      s.misses.Load(),
		Derivations: s.derivations.Load(),
		Evictions:   s.evictions.Load(),
		StalePurges: s.stalePurges.Load(),
	}
	for _, e := range s.entries {
		st.TotalChildren += e.inventory.Total
		st.MaterializedChildren += len(e.children)
		st.FootprintBytes += e.footprint
	}
	if lookups := st.Hits + st.Misses; lookups > 0 {
		st.HitRate = float64(st.Hits) / float64(lookups)
	}
	return st
}

// Ceiling reports the configured footprint ceiling in bytes.
func (s *Store) Ceiling() int64 {
	return s.evictor.Ceiling()
}

// entryLocked resolves and validates (locator, hash), purging stale
// entries as a side effect and keeping the hit/miss counters. Callers
// hold mu.
func (s *Store) entryLocked(locator, hash string) (*entry, error) {
	e, ok := s.entries[locator]
	if !ok {
		s.misses.Add(1)
		return nil, fmt.Errorf("%w: container %q", ErrNotFound, locator)
	}

	now := s.now()
	if e.expired(now, s.ttl) {
		s.removeLocked(locator)
		s.stalePurges.Add(1)
		s.misses.Add(1)
		return nil, fmt.Errorf("%w: %w: container %q expired", ErrNotFound, ErrStale, locator)
	}
	if e.identity.Hash != hash {
		s.removeLocked(locator)
		s.stalePurges.Add(1)
		s.misses.Add(1)
		return nil, fmt.Errorf("%w: %w: container %q content changed", ErrNotFound, ErrStale, locator)
	}

	e.touch(now)
	s.hits.Add(1)
	return e, nil
}

// removeLocked drops the entry and returns its reserved bytes to the
// resource controller. Callers hold mu.
func (s *Store) removeLocked(locator string) bool {
	e, ok := s.entries[locator]
	if !ok {
		return false
	}
	if e.reserved > 0 {
		s.rc.Release(e.reserved)
	}
	delete(s.entries, locator)
	return true
}

// reserveLocked registers n freshly estimated bytes. Registration is
// best effort: the entry is kept either way, only the controller view
// differs. Callers hold mu.
func (s *Store) reserveLocked(e *entry, n int64) {
	if n <= 0 {
		return
	}
	if err := s.rc.Reserve(n); err == nil {
		e.reserved += n
	}
}

func (s *Store) sizeOf(v any) int64 {
	b, err := s.cdc.Marshal(v)
	if err != nil {
		return 0
	}
	return int64(len(b))
}

// usageLocked sums entry footprints. Callers hold mu.
func (s *Store) usageLocked() int64 {
	var sum int64
	for _, e := range s.entries {
		sum += e.footprint
	}
	return sum
}

// lockedTable adapts the entry map for the eviction controller. Admit
// holds mu across the whole eviction run, so these methods must not
// lock again.
type lockedTable struct{ s *Store }

func (t lockedTable) Usage() int64 {
	return t.s.usageLocked()
}

func (t lockedTable) Candidates() []eviction.Candidate {
	out := make([]eviction.Candidate, 0, len(t.s.entries))
	for locator, e := range t.s.entries {
		out = append(out, eviction.Candidate{
			Key:         locator,
			Footprint:   e.footprint,
			LastAccess:  e.lastAccess,
			AccessCount: e.accessCount,
		})
	}
	return out
}

func (t lockedTable) Evict(key string) bool {
	return t.s.removeLocked(key)
}
