package partition

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tidwall/btree"

	"github.com/ThaSiouL/bc-symbols-mcp/codec"
	"github.com/ThaSiouL/bc-symbols-mcp/compress"
	"github.com/ThaSiouL/bc-symbols-mcp/eviction"
	"github.com/ThaSiouL/bc-symbols-mcp/internal/resource"
	"github.com/ThaSiouL/bc-symbols-mcp/symbol"
)

// ErrNotFound is returned when no payload is stored under the
// requested bucket.
var ErrNotFound = errors.New("not found")

// keySep joins container and kind into one eviction key. It cannot
// occur in either part.
const keySep = "\x1f"

// defaultTopN bounds the largest-blob list in Stats.
const defaultTopN = 10

// Config configures a Store.
type Config struct {
	// Ceiling caps stored child-blob bytes. 0 disables eviction.
	Ceiling int64

	// Strategy picks eviction victims among child blobs. nil falls
	// back to Recency.
	Strategy eviction.Strategy

	// Codec encodes payloads. nil falls back to codec.Default.
	Codec codec.Codec

	// Compressor transforms encoded payloads. nil stores them as-is.
	Compressor compress.Compressor

	// TopN bounds the largest-blob list in Stats. 0 means 10.
	TopN int

	// Resources, when set, mirrors stored bytes into the process-wide
	// resource controller.
	Resources *resource.Controller

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// blob is one stored payload.
type blob struct {
	data        []byte
	rawSize     int64
	count       int
	lastAccess  time.Time
	accessCount uint64
	reserved    int64
}

func (b *blob) storedSize() int64 { return int64(len(b.data)) }

// Store keeps container metadata and per-kind child payloads in
// separate buckets. All methods are safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	meta     map[string]*blob
	children map[string]map[symbol.Kind]*blob

	// sizes orders child blobs by stored size for the top-N stat. Keys
	// sort ascending, so a reverse scan yields the largest first.
	sizes      *btree.Map[string, BlobInfo]
	childBytes int64

	cdc     codec.Codec
	comp    compress.Compressor
	evictor *eviction.Controller
	topN    int
	rc      *resource.Controller
	now     func() time.Time

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// New creates an empty Store from cfg.
func New(cfg Config) *Store {
	cdc := cfg.Codec
	if cdc == nil {
		cdc = codec.Default
	}
	comp := cfg.Compressor
	if comp == nil {
		comp = compress.None{}
	}
	topN := cfg.TopN
	if topN <= 0 {
		topN = defaultTopN
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		meta:     make(map[string]*blob),
		children: make(map[string]map[symbol.Kind]*blob),
		sizes:    btree.NewMap[string, BlobInfo](0),
		cdc:      cdc,
		comp:     comp,
		evictor:  eviction.NewController(cfg.Strategy, cfg.Ceiling),
		topN:     topN,
		rc:       cfg.Resources,
		now:      now,
	}
}

// SetMetadata stores the container's metadata, replacing any previous
// payload. Metadata is never evicted.
func (s *Store) SetMetadata(containerID string, m symbol.Manifest) error {
	b, err := s.encode(m)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.meta[containerID]; ok {
		s.releaseLocked(old)
	}
	s.reserveLocked(b)
	s.meta[containerID] = b
	return nil
}

// Metadata returns the container's stored metadata.
func (s *Store) Metadata(containerID string) (symbol.Manifest, error) {
	s.mu.Lock()
	b, ok := s.meta[containerID]
	if !ok {
		s.misses.Add(1)
		s.mu.Unlock()
		return symbol.Manifest{}, fmt.Errorf("%w: metadata %q", ErrNotFound, containerID)
	}
	b.lastAccess = s.now()
	b.accessCount++
	s.hits.Add(1)
	data := b.data
	s.mu.Unlock()

	var m symbol.Manifest
	if err := s.decode(data, &m); err != nil {
		return symbol.Manifest{}, err
	}
	return m, nil
}

// SetChildren stores the full child set for (containerID, kind),
// replacing any previous payload, then evicts child blobs until the
// store fits its ceiling.
func (s *Store) SetChildren(containerID string, kind symbol.Kind, objs []symbol.Object) error {
	if !kind.Valid() {
		return fmt.Errorf("partition: invalid kind %d", kind)
	}
	b, err := s.encode(objs)
	if err != nil {
		return err
	}
	b.count = len(objs)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.setChildLocked(containerID, kind, b)
	evicted := s.evictor.Run(childTable{s})
	s.evictions.Add(int64(evicted))
	return nil
}

// Children returns the stored child set for (containerID, kind).
func (s *Store) Children(containerID string, kind symbol.Kind) ([]symbol.Object, error) {
	s.mu.Lock()
	var b *blob
	if kinds, ok := s.children[containerID]; ok {
		b = kinds[kind]
	}
	if b == nil {
		s.misses.Add(1)
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: children %q/%s", ErrNotFound, containerID, kind)
	}
	b.lastAccess = s.now()
	b.accessCount++
	s.hits.Add(1)
	data := b.data
	s.mu.Unlock()

	var objs []symbol.Object
	if err := s.decode(data, &objs); err != nil {
		return nil, err
	}
	return objs, nil
}

// Drop removes the container's metadata and every kind's payload. It
// reports whether anything was stored.
func (s *Store) Drop(containerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := false
	if old, ok := s.meta[containerID]; ok {
		s.releaseLocked(old)
		delete(s.meta, containerID)
		dropped = true
	}
	for kind := range s.children[containerID] {
		s.removeChildLocked(containerID, kind)
		dropped = true
	}
	return dropped
}

// KindStats aggregates one kind's child blobs.
type KindStats struct {
	Blobs       int   `json:"blobs"`
	Objects     int   `json:"objects"`
	StoredBytes int64 `json:"storedBytes"`
	RawBytes    int64 `json:"rawBytes"`
}

// BlobInfo identifies one stored child blob and its size.
type BlobInfo struct {
	ContainerID string      `json:"containerId"`
	Kind        symbol.Kind `json:"kind"`
	StoredBytes int64       `json:"storedBytes"`
}

// Stats is a point-in-time snapshot of the store.
type Stats struct {
	Containers       int                       `json:"containers"`
	Blobs            int                       `json:"blobs"`
	StoredBytes      int64                     `json:"storedBytes"`
	RawBytes         int64                     `json:"rawBytes"`
	MetadataBytes    int64                     `json:"metadataBytes"`
	PerKind          map[symbol.Kind]KindStats `json:"perKind"`
	TopLargest       []BlobInfo                `json:"topLargest"`
	CompressionRatio float64                   `json:"compressionRatio"`
	Hits             int64                     `json:"hits"`
	Misses           int64                     `json:"misses"`
	Evictions        int64                     `json:"evictions"`
}

// Stats snapshots the store. TopLargest is ordered by stored size
// descending and bounded by the configured TopN.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		Containers: len(s.meta),
		PerKind:    make(map[symbol.Kind]KindStats),
		Hits:       s.hits.Load(),
		Misses:     s.misses.Load(),
		Evictions:  s.evictions.Load(),
	}
	for _, kinds := range s.children {
		for kind, b := range kinds {
			st.Blobs++
			st.StoredBytes += b.storedSize()
			st.RawBytes += b.rawSize
			ks := st.PerKind[kind]
			ks.Blobs++
			ks.Objects += b.count
			ks.StoredBytes += b.storedSize()
			ks.RawBytes += b.rawSize
			st.PerKind[kind] = ks
		}
	}
	for _, b := range s.meta {
		st.MetadataBytes += b.storedSize()
	}

	st.TopLargest = make([]BlobInfo, 0, s.topN)
	s.sizes.Reverse(func(_ string, info BlobInfo) bool {
		st.TopLargest = append(st.TopLargest, info)
		return len(st.TopLargest) < s.topN
	})

	if st.StoredBytes > 0 {
		st.CompressionRatio = float64(st.RawBytes) / float64(st.StoredBytes)
	} else {
		st.CompressionRatio = 1
	}
	return st
}

// Ceiling reports the configured child-blob ceiling in bytes.
func (s *Store) Ceiling() int64 {
	return s.evictor.Ceiling()
}

func (s *Store) encode(v any) (*blob, error) {
	encoded, err := s.cdc.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("partition: encode: %w", err)
	}
	stored, err := s.comp.Compress(encoded)
	if err != nil {
		return nil, fmt.Errorf("partition: compress: %w", err)
	}
	return &blob{
		data:       stored,
		rawSize:    int64(len(encoded)),
		lastAccess: s.now(),
	}, nil
}

func (s *Store) decode(data []byte, v any) error {
	encoded, err := s.comp.Decompress(data)
	if err != nil {
		return fmt.Errorf("partition: decompress: %w", err)
	}
	if err := s.cdc.Unmarshal(encoded, v); err != nil {
		return fmt.Errorf("partition: decode: %w", err)
	}
	return nil
}

// setChildLocked replaces the (containerID, kind) payload. Callers
// hold mu.
func (s *Store) setChildLocked(containerID string, kind symbol.Kind, b *blob) {
	kinds, ok := s.children[containerID]
	if !ok {
		kinds = make(map[symbol.Kind]*blob)
		s.children[containerID] = kinds
	}
	if old, ok := kinds[kind]; ok {
		s.releaseLocked(old)
		s.childBytes -= old.storedSize()
		s.sizes.Delete(sizeKey(old.storedSize(), containerID, kind))
	}
	s.reserveLocked(b)
	kinds[kind] = b
	s.childBytes += b.storedSize()
	s.sizes.Set(sizeKey(b.storedSize(), containerID, kind), BlobInfo{
		ContainerID: containerID,
		Kind:        kind,
		StoredBytes: b.storedSize(),
	})
}

// removeChildLocked drops one (containerID, kind) payload. Callers
// hold mu.
func (s *Store) removeChildLocked(containerID string, kind symbol.Kind) bool {
	kinds, ok := s.children[containerID]
	if !ok {
		return false
	}
	b, ok := kinds[kind]
	if !ok {
		return false
	}
	s.releaseLocked(b)
	s.childBytes -= b.storedSize()
	s.sizes.Delete(sizeKey(b.storedSize(), containerID, kind))
	delete(kinds, kind)
	if len(kinds) == 0 {
		delete(s.children, containerID)
	}
	return true
}

func (s *Store) reserveLocked(b *blob) {
	n := b.storedSize()
	if n <= 0 {
		return
	}
	if err := s.rc.Reserve(n); err == nil {
		b.reserved = n
	}
}

func (s *Store) releaseLocked(b *blob) {
	if b.reserved > 0 {
		s.rc.Release(b.reserved)
		b.reserved = 0
	}
}

func sizeKey(stored int64, containerID string, kind symbol.Kind) string {
	return fmt.Sprintf("%020d%s%s%s%s", stored, keySep, containerID, keySep, kind)
}

// childTable adapts the child-blob buckets for the eviction
// controller. SetChildren holds mu across the whole eviction run, so
// these methods must not lock again.
type childTable struct{ s *Store }

func (t childTable) Usage() int64 {
	return t.s.childBytes
}

func (t childTable) Candidates() []eviction.Candidate {
	out := make([]eviction.Candidate, 0, len(t.s.children))
	for containerID, kinds := range t.s.children {
		for kind, b := range kinds {
			out = append(out, eviction.Candidate{
				Key:         containerID + keySep + kind.String(),
				Footprint:   b.storedSize(),
				LastAccess:  b.lastAccess,
				AccessCount: b.accessCount,
			})
		}
	}
	return out
}

func (t childTable) Evict(key string) bool {
	containerID, kindName, ok := strings.Cut(key, keySep)
	if !ok {
		return false
	}
	return t.s.removeChildLocked(containerID, symbol.ParseKind(kindName))
}
