// Package bcsymbols provides an embedded metadata engine for decoded
// Business Central symbol packages.
//
// An admitted container (app identity plus its decoded symbol document)
// is indexed once into lightweight descriptors; full child objects are
// materialized lazily, on demand, from the retained document. The
// engine keeps three coordinated views:
//
//   - A lazy container cache with TTL, content-hash validation and
//     byte-budget eviction (cache package).
//   - A partitioned store that keeps container metadata apart from
//     per-kind child payloads, with transparent compression and
//     kind-scoped memory stats (partition package).
//   - A multi-attribute search index over all admitted children, with
//     roaring-bitmap secondaries, dependency reverse lookup and fuzzy
//     name suggestions (search package).
//
// A progressive loader (loader package) materializes whole containers
// in batches, priority kinds first, with progress and ETA reporting.
//
// # Quick Start
//
//	eng, err := bcsymbols.New(
//	    bcsymbols.WithTTL(time.Hour),
//	    bcsymbols.WithCacheCeiling(256<<20),
//	)
//	if err != nil {
//	    panic(err)
//	}
//	defer eng.Close()
//
//	ctx := context.Background()
//	if err := eng.Admit(ctx, identity, manifest, document); err != nil {
//	    panic(err)
//	}
//
//	obj, err := eng.MaterializeChild(ctx, identity.Locator, identity.Hash,
//	    symbol.KindTable, 18, "Customer")
//
//	entries, _ := eng.Search(ctx, search.Filter{
//	    Kinds:    []symbol.Kind{symbol.KindTable},
//	    Keywords: []string{"customer"},
//	})
//
// Every failure degrades to absence: check errors.Is(err, ErrNotFound).
package bcsymbols

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ThaSiouL/bc-symbols-mcp/cache"
	"github.com/ThaSiouL/bc-symbols-mcp/internal/resource"
	"github.com/ThaSiouL/bc-symbols-mcp/loader"
	"github.com/ThaSiouL/bc-symbols-mcp/partition"
	"github.com/ThaSiouL/bc-symbols-mcp/search"
	"github.com/ThaSiouL/bc-symbols-mcp/symbol"
)

// Engine coordinates the lazy cache, the partitioned store, the search
// index and the progressive loader behind one surface.
type Engine struct {
	closed atomic.Bool

	cache     *cache.Store
	partition *partition.Store
	index     *search.Index
	loader    *loader.Loader
	resources *resource.Controller

	metrics MetricsCollector
	logger  *Logger
}

// New creates an Engine. See the With* options for tuning; the zero
// configuration runs with a 30m TTL, a 100 MiB cache ceiling, a 64 MiB
// partition ceiling and recency eviction.
func New(optFns ...Option) (*Engine, error) {
	opts := applyOptions(optFns)

	if opts.ttl < 0 {
		return nil, errors.New("bcsymbols: TTL must not be negative")
	}
	if opts.cacheCeiling < 0 || opts.partitionCeiling < 0 || opts.memoryLimit < 0 {
		return nil, errors.New("bcsymbols: memory budgets must not be negative")
	}
	if opts.batchSize < 0 {
		return nil, errors.New("bcsymbols: batch size must not be negative")
	}

	rc := resource.NewController(resource.Config{
		MemoryLimitBytes: opts.memoryLimit,
		BackgroundSlots:  opts.slots,
	})
	cacheStore := cache.New(cache.Config{
		TTL:       opts.ttl,
		Ceiling:   opts.cacheCeiling,
		Strategy:  opts.strategy,
		Codec:     opts.codec,
		Resources: rc,
		Now:       opts.now,
	})
	partitionStore := partition.New(partition.Config{
		Ceiling:    opts.partitionCeiling,
		Strategy:   opts.strategy,
		Codec:      opts.codec,
		Compressor: opts.compressor,
		Resources:  rc,
		Now:        opts.now,
	})

	return &Engine{
		cache:     cacheStore,
		partition: partitionStore,
		index:     search.New(),
		loader: loader.New(loader.Config{
			Source:      cacheStore,
			BatchSize:   opts.batchSize,
			Parallelism: opts.parallelism,
			Pause:       opts.pause,
			Resources:   rc,
			Now:         opts.now,
		}),
		resources: rc,
		metrics:   opts.metricsCollector,
		logger:    opts.logger,
	}, nil
}

// Admit stores a decoded container: the cache builds its descriptor
// inventory, the partitioned store records its metadata, and the
// search index is populated from the document. Admitting the same
// locator again replaces the previous entry; search entries for the
// locator are deduplicated, not doubled. The engine takes ownership of
// manifest and ref.
func (e *Engine) Admit(ctx context.Context, identity symbol.Identity, manifest symbol.Manifest, ref *symbol.Reference) error {
	start := time.Now()
	if e.closed.Load() {
		return ErrClosed
	}

	evicted := e.cache.Admit(identity, manifest, ref)
	if err := e.partition.SetMetadata(identity.Locator, manifest); err != nil {
		e.logger.WithContainer(identity.Locator).Warn("partition metadata write failed", "error", err)
	}
	added := e.index.Add(identity.Locator, collectChildren(ref))

	e.metrics.RecordAdmit(time.Since(start), evicted)
	e.logger.LogAdmit(ctx, identity.Locator, added)
	if evicted > 0 {
		e.logger.LogEvict(ctx, "cache", evicted)
	}
	return nil
}

// GetContainerMetadata returns the container's manifest if it is still
// valid for the given content hash.
func (e *Engine) GetContainerMetadata(ctx context.Context, locator, hash string) (symbol.Manifest, error) {
	if e.closed.Load() {
		return symbol.Manifest{}, ErrClosed
	}
	m, err := e.cache.Metadata(locator, hash)
	return m, translateError(err)
}

// GetChildDescriptors lists the container's children without
// materializing them. A zero kind, id or name acts as a wildcard.
func (e *Engine) GetChildDescriptors(ctx context.Context, locator, hash string, kind symbol.Kind, id uint64, name string) ([]symbol.Descriptor, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	descs, err := e.cache.Descriptors(locator, hash, kind, id, name)
	return descs, translateError(err)
}

// MaterializeChild derives the full value of one child from the
// container's retained document. Repeated calls return equal values;
// concurrent calls for the same key share one derivation.
func (e *Engine) MaterializeChild(ctx context.Context, locator, hash string, kind symbol.Kind, id uint64, name string) (symbol.Object, error) {
	start := time.Now()
	if e.closed.Load() {
		return symbol.Object{}, ErrClosed
	}
	obj, err := e.cache.Materialize(ctx, locator, hash, kind, id, name)
	err = translateError(err)
	e.metrics.RecordMaterialize(time.Since(start), err)
	e.logger.LogMaterialize(ctx, locator, symbol.Key{Kind: kind, ID: id, Name: name}, err)
	return obj, err
}

// GetChildrenByCategory materializes every child of the given kind and
// mirrors the result into the partitioned store. Children whose
// derivation fails with a corrupt index are skipped; the rest of the
// kind is still returned.
func (e *Engine) GetChildrenByCategory(ctx context.Context, locator, hash string, kind symbol.Kind) ([]symbol.Object, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	descs, err := e.cache.Descriptors(locator, hash, kind, 0, "")
	if err != nil {
		return nil, translateError(err)
	}

	objs := make([]symbol.Object, 0, len(descs))
	for _, d := range descs {
		obj, err := e.cache.Materialize(ctx, locator, hash, d.Kind, d.ID, d.Name)
		if err != nil {
			if errors.Is(err, cache.ErrCorrupt) {
				e.logger.LogMaterialize(ctx, locator, d.Key(), translateError(err))
				continue
			}
			return nil, translateError(err)
		}
		objs = append(objs, obj)
	}

	if len(objs) > 0 {
		if err := e.partition.SetChildren(locator, kind, objs); err != nil {
			e.logger.WithContainer(locator).WithKind(kind).Warn("partition mirror failed", "error", err)
		}
	}
	return objs, nil
}

// GetLoadingStats reports how much of the container has been
// materialized so far.
func (e *Engine) GetLoadingStats(locator, hash string) (cache.LoadingStats, error) {
	if e.closed.Load() {
		return cache.LoadingStats{}, ErrClosed
	}
	ls, err := e.cache.LoadingStats(locator, hash)
	return ls, translateError(err)
}

// IndexContainer adds the given children to the search index under the
// container id and returns the number of new entries. Admit already
// indexes the whole document; this is for callers that assemble or
// amend children themselves.
func (e *Engine) IndexContainer(containerID string, children []symbol.Object) int {
	if e.closed.Load() {
		return 0
	}
	return e.index.Add(containerID, children)
}

// RetractContainer removes the container's entries from the search
// index only. The cache and the partitioned store are not touched;
// conversely, cache eviction never retracts.
func (e *Engine) RetractContainer(ctx context.Context, containerID string) int {
	if e.closed.Load() {
		return 0
	}
	removed := e.index.Retract(containerID)
	e.logger.LogRetract(ctx, containerID, removed)
	return removed
}

// Search evaluates the filter against the search index.
func (e *Engine) Search(ctx context.Context, f search.Filter) ([]search.Entry, error) {
	start := time.Now()
	if e.closed.Load() {
		return nil, ErrClosed
	}
	entries := e.index.Search(f)
	e.metrics.RecordSearch(len(entries), time.Since(start), nil)
	e.logger.LogSearch(ctx, len(entries), nil)
	return entries, nil
}

// FindDependents returns every indexed child that declares a
// dependency on the given key.
func (e *Engine) FindDependents(ctx context.Context, key symbol.Key) ([]search.Entry, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	return e.index.Dependents(key.String()), nil
}

// SuggestNames fuzzy-matches the pattern against the distinct object
// names in the search index.
func (e *Engine) SuggestNames(pattern string, limit int) []search.Suggestion {
	if e.closed.Load() {
		return nil
	}
	return e.index.Suggest(pattern, limit)
}

// LoadContainer materializes the whole container synchronously,
// priority kinds first.
func (e *Engine) LoadContainer(ctx context.Context, req loader.Request) (loader.Report, error) {
	if e.closed.Load() {
		return loader.Report{}, ErrClosed
	}
	report, err := e.loader.Run(ctx, e.instrumented(ctx, req))
	err = translateError(err)
	e.metrics.RecordLoad(report.Loaded, report.Failed, report.Duration)
	e.logger.LogLoadDone(ctx, report.TaskID.String(), report.Loaded, report.Failed, report.Canceled, err)
	return report, err
}

// StartLoad launches a background load task. At most the configured
// number of background slots run at once; completion is observable via
// the progress callback and ActiveLoads.
func (e *Engine) StartLoad(ctx context.Context, req loader.Request) (uuid.UUID, error) {
	if e.closed.Load() {
		return uuid.Nil, ErrClosed
	}
	id, err := e.loader.Start(ctx, e.instrumented(ctx, req))
	return id, translateError(err)
}

// CancelLoad prevents the task's next batch from being scheduled. The
// batch in flight still completes.
func (e *Engine) CancelLoad(id uuid.UUID) bool {
	if e.closed.Load() {
		return false
	}
	return e.loader.Cancel(id)
}

// ActiveLoads returns the ids of running load tasks.
func (e *Engine) ActiveLoads() []uuid.UUID {
	if e.closed.Load() {
		return nil
	}
	return e.loader.Active()
}

// Sweep purges every expired container from the cache and returns how
// many were removed. Search entries are left alone: retraction is
// always explicit.
func (e *Engine) Sweep(ctx context.Context) int {
	start := time.Now()
	if e.closed.Load() {
		return 0
	}
	removed := e.cache.Sweep()
	e.metrics.RecordSweep(removed, time.Since(start))
	e.logger.LogSweep(ctx, removed)
	return removed
}

// GetCacheStats snapshots the lazy cache.
func (e *Engine) GetCacheStats() cache.Stats {
	if e.closed.Load() {
		return cache.Stats{}
	}
	return e.cache.Stats()
}

// GetMemoryStats snapshots the partitioned store: per-kind footprints,
// the largest blobs and the observed compression ratio.
func (e *Engine) GetMemoryStats() partition.Stats {
	if e.closed.Load() {
		return partition.Stats{}
	}
	return e.partition.Stats()
}

// MemoryUsed returns the bytes currently tracked by the resource
// controller across both stores.
func (e *Engine) MemoryUsed() int64 {
	return e.resources.MemoryUsed()
}

// Close marks the engine closed. Operations after Close return
// ErrClosed or empty results. Close is idempotent.
func (e *Engine) Close() error {
	if e == nil {
		return nil
	}
	e.closed.Store(true)
	return nil
}

// instrumented wraps the request's progress callback with batch
// logging.
func (e *Engine) instrumented(ctx context.Context, req loader.Request) loader.Request {
	userCb := req.OnProgress
	req.OnProgress = func(p loader.Progress) {
		e.logger.LogLoadBatch(ctx, p.TaskID.String(), string(p.Phase), p.Loaded, p.Total)
		if userCb != nil {
			userCb(p)
		}
	}
	return req
}

// collectChildren flattens the document's category arrays, stamping
// each object with its array's kind.
func collectChildren(ref *symbol.Reference) []symbol.Object {
	var out []symbol.Object
	ref.ForEach(func(k symbol.Kind, objs []symbol.Object) {
		for i := range objs {
			o := objs[i]
			o.Kind = k
			out = append(out, o)
		}
	})
	return out
}
