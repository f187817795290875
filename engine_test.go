package bcsymbols

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ThaSiouL/bc-symbols-mcp/cache"
	"github.com/ThaSiouL/bc-symbols-mcp/loader"
	"github.com/ThaSiouL/bc-symbols-mcp/partition"
	"github.com/ThaSiouL/bc-symbols-mcp/search"
	"github.com/ThaSiouL/bc-symbols-mcp/symbol"
	"github.com/ThaSiouL/bc-symbols-mcp/testutil"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testIdentity() symbol.Identity {
	return symbol.Identity{
		Locator: "memory://apps/base.app",
		Hash:    "4f6a2c8d9b1e3a70",
	}
}

func testManifest() symbol.Manifest {
	return symbol.Manifest{
		AppID:     "63ca2fa4-4f03-4f0b-a546-beef00000001",
		Name:      "Base Application",
		Publisher: "Contoso",
		Version:   "24.0.0.0",
	}
}

func testRef() *symbol.Reference {
	return &symbol.Reference{
		Tables: []symbol.Object{
			{
				ID:         18,
				Name:       "Customer",
				Namespace:  "Microsoft.Sales",
				Properties: map[string]string{"DataPerCompany": "true"},
				Members: []symbol.Member{
					{ID: 1, Name: "No.", Type: "Code[20]"},
					{ID: 2, Name: "Name", Type: "Text[100]"},
				},
			},
			{ID: 36, Name: "Sales Header", Namespace: "Microsoft.Sales"},
		},
		Pages: []symbol.Object{
			{ID: 21, Name: "CustomerCard", Dependencies: []string{"table:18:Customer"}},
		},
		Codeunits: []symbol.Object{
			{ID: 80, Name: "SalesPost", Dependencies: []string{"table:36:Sales Header"}},
		},
	}
}

func newTestEngine(t *testing.T, optFns ...Option) *Engine {
	t.Helper()
	eng, err := New(optFns...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

func loaderRequest(identity symbol.Identity) loader.Request {
	return loader.Request{Locator: identity.Locator, Hash: identity.Hash}
}

func TestNew_RejectsInvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"negative ttl", WithTTL(-time.Second)},
		{"negative cache ceiling", WithCacheCeiling(-1)},
		{"negative partition ceiling", WithPartitionCeiling(-1)},
		{"negative memory limit", WithMemoryLimit(-1)},
		{"negative batch size", WithBatchSize(-1)},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opt)
			assert.Error(t, err)
		})
	}
}

func TestEngine_AdmitAndQuery(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()
	identity := testIdentity()

	require.NoError(t, eng.Admit(ctx, identity, testManifest(), testRef()))

	m, err := eng.GetContainerMetadata(ctx, identity.Locator, identity.Hash)
	require.NoError(t, err)
	assert.Equal(t, "Base Application", m.Name)

	descs, err := eng.GetChildDescriptors(ctx, identity.Locator, identity.Hash, symbol.KindInvalid, 0, "")
	require.NoError(t, err)
	assert.Len(t, descs, 4)

	tables, err := eng.GetChildDescriptors(ctx, identity.Locator, identity.Hash, symbol.KindTable, 0, "")
	require.NoError(t, err)
	assert.Len(t, tables, 2)

	obj, err := eng.MaterializeChild(ctx, identity.Locator, identity.Hash, symbol.KindTable, 18, "Customer")
	require.NoError(t, err)
	assert.Equal(t, "Customer", obj.Name)
	assert.Len(t, obj.Members, 2)

	ls, err := eng.GetLoadingStats(identity.Locator, identity.Hash)
	require.NoError(t, err)
	assert.Equal(t, 4, ls.Total)
	assert.Equal(t, 1, ls.Loaded)
}

func TestEngine_UnknownContainerIsNotFound(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.GetContainerMetadata(ctx, "memory://apps/ghost.app", "00")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrStale)
}

func TestEngine_HashMismatchIsStaleAndNotFound(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()
	identity := testIdentity()

	require.NoError(t, eng.Admit(ctx, identity, testManifest(), testRef()))

	_, err := eng.GetContainerMetadata(ctx, identity.Locator, "deadbeef00000000")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, ErrStale)

	// The stale entry was purged: the original hash is gone too.
	_, err = eng.GetContainerMetadata(ctx, identity.Locator, identity.Hash)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEngine_TTLExpiryIsStale(t *testing.T) {
	clock := newFakeClock()
	eng := newTestEngine(t, WithClock(clock.Now))
	ctx := context.Background()
	identity := testIdentity()

	require.NoError(t, eng.Admit(ctx, identity, testManifest(), testRef()))
	clock.Advance(DefaultTTL + time.Second)

	_, err := eng.GetContainerMetadata(ctx, identity.Locator, identity.Hash)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, ErrStale)
}

func TestEngine_CorruptChildScopedToKey(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()
	identity := testIdentity()

	ref := testRef()
	require.NoError(t, eng.Admit(ctx, identity, testManifest(), ref))

	// Break the retained document behind the index's back: the page
	// stays listed but can no longer be derived.
	ref.Pages = nil

	_, err := eng.MaterializeChild(ctx, identity.Locator, identity.Hash, symbol.KindPage, 21, "CustomerCard")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, ErrCorruptIndex)

	// The rest of the container is untouched.
	obj, err := eng.MaterializeChild(ctx, identity.Locator, identity.Hash, symbol.KindTable, 18, "Customer")
	require.NoError(t, err)
	assert.Equal(t, "Customer", obj.Name)
}

func TestTranslateError(t *testing.T) {
	staleErr := fmt.Errorf("%w: %w: container expired", cache.ErrNotFound, cache.ErrStale)
	corruptErr := fmt.Errorf("%w: %w: child listed but not derivable", cache.ErrNotFound, cache.ErrCorrupt)
	plainErr := errors.New("disk on fire")

	tests := []struct {
		name   string
		in     error
		wantIs []error
		notIs  []error
	}{
		{"nil", nil, nil, []error{ErrNotFound}},
		{"stale", staleErr, []error{ErrNotFound, ErrStale}, []error{ErrCorruptIndex}},
		{"corrupt", corruptErr, []error{ErrNotFound, ErrCorruptIndex}, []error{ErrStale}},
		{"cache miss", cache.ErrNotFound, []error{ErrNotFound}, []error{ErrStale, ErrCorruptIndex}},
		{"partition miss", partition.ErrNotFound, []error{ErrNotFound}, nil},
		{"unknown passthrough", plainErr, nil, []error{ErrNotFound}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := translateError(tt.in)
			if tt.in == nil {
				assert.NoError(t, got)
				return
			}
			for _, want := range tt.wantIs {
				assert.ErrorIs(t, got, want)
			}
			for _, not := range tt.notIs {
				assert.NotErrorIs(t, got, not)
			}
		})
	}
}

func TestEngine_SearchAfterAdmit(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, eng.Admit(ctx, testIdentity(), testManifest(), testRef()))

	entries, err := eng.Search(ctx, search.Filter{
		Kinds:    []symbol.Kind{symbol.KindPage},
		Keywords: []string{"customer", "card"},
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "CustomerCard", entries[0].Name)
	assert.Equal(t, testIdentity().Locator, entries[0].ContainerID)
}

func TestEngine_SearchTableByKeyword(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	ref := &symbol.Reference{
		Tables:    []symbol.Object{{ID: 50, Name: "CustomerCard"}},
		Pages:     []symbol.Object{{ID: 51, Name: "ItemList"}},
		Codeunits: []symbol.Object{{ID: 52, Name: "PostingRoutine"}},
	}
	require.NoError(t, eng.Admit(ctx, testIdentity(), testManifest(), ref))

	entries, err := eng.Search(ctx, search.Filter{
		Kinds:    []symbol.Kind{symbol.KindTable},
		Keywords: []string{"customer"},
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "CustomerCard", entries[0].Name)
	assert.Equal(t, symbol.KindTable, entries[0].Kind)
	assert.Equal(t, uint64(50), entries[0].ChildID)
}

func TestEngine_AdmitTwiceDoesNotDoubleIndex(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, eng.Admit(ctx, testIdentity(), testManifest(), testRef()))
	require.NoError(t, eng.Admit(ctx, testIdentity(), testManifest(), testRef()))

	entries, err := eng.Search(ctx, search.Filter{Names: []string{"Customer"}})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestEngine_FindDependentsAndRetract(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()
	identity := testIdentity()

	require.NoError(t, eng.Admit(ctx, identity, testManifest(), testRef()))

	deps, err := eng.FindDependents(ctx, symbol.Key{Kind: symbol.KindTable, ID: 18, Name: "Customer"})
	require.NoError(t, err)
	require.Len(t, deps, 1)
	assert.Equal(t, "CustomerCard", deps[0].Name)

	removed := eng.RetractContainer(ctx, identity.Locator)
	assert.Equal(t, 4, removed)

	// Former children no longer answer dependency lookups.
	deps, err = eng.FindDependents(ctx, symbol.Key{Kind: symbol.KindTable, ID: 18, Name: "Customer"})
	require.NoError(t, err)
	assert.Empty(t, deps)

	// The cache is not touched by retraction.
	_, err = eng.GetContainerMetadata(ctx, identity.Locator, identity.Hash)
	assert.NoError(t, err)
}

func TestEngine_IndexContainerManually(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	added := eng.IndexContainer("adhoc", []symbol.Object{
		{Kind: symbol.KindTable, ID: 1, Name: "Ledger"},
	})
	assert.Equal(t, 1, added)

	entries, err := eng.Search(ctx, search.Filter{ContainerIDs: []string{"adhoc"}})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestEngine_SuggestNames(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, eng.Admit(ctx, testIdentity(), testManifest(), testRef()))

	got := eng.SuggestNames("custcard", 5)
	require.NotEmpty(t, got)
	assert.Equal(t, "CustomerCard", got[0].Name)
}

func TestEngine_GetChildrenByCategoryMirrorsPartition(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()
	identity := testIdentity()

	require.NoError(t, eng.Admit(ctx, identity, testManifest(), testRef()))

	objs, err := eng.GetChildrenByCategory(ctx, identity.Locator, identity.Hash, symbol.KindTable)
	require.NoError(t, err)
	require.Len(t, objs, 2)

	stats := eng.GetMemoryStats()
	require.Contains(t, stats.PerKind, symbol.KindTable)
	assert.Equal(t, 1, stats.PerKind[symbol.KindTable].Blobs)
	assert.Equal(t, 2, stats.PerKind[symbol.KindTable].Objects)

	// Materializations are now visible in the loading stats.
	ls, err := eng.GetLoadingStats(identity.Locator, identity.Hash)
	require.NoError(t, err)
	assert.Equal(t, 2, ls.Loaded)
}

func TestEngine_LoadContainer(t *testing.T) {
	eng := newTestEngine(t, WithBatchSize(10))
	ctx := context.Background()

	rng := testutil.NewRNG(11)
	identity := rng.Identity("base")
	require.NoError(t, eng.Admit(ctx, identity, rng.Manifest("base"), rng.TablesReference(25)))

	report, err := eng.LoadContainer(ctx, loaderRequest(identity))
	require.NoError(t, err)
	assert.Equal(t, 25, report.Loaded)
	assert.Equal(t, 0, report.Failed)

	ls, err := eng.GetLoadingStats(identity.Locator, identity.Hash)
	require.NoError(t, err)
	assert.Equal(t, 100.0, ls.Percentage)
}

func TestEngine_StartLoadCompletes(t *testing.T) {
	eng := newTestEngine(t, WithBatchSize(5))
	ctx := context.Background()

	rng := testutil.NewRNG(12)
	identity := rng.Identity("bg")
	require.NoError(t, eng.Admit(ctx, identity, rng.Manifest("bg"), rng.TablesReference(12)))

	id, err := eng.StartLoad(ctx, loaderRequest(identity))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(eng.ActiveLoads()) == 0
	}, 2*time.Second, time.Millisecond)
	assert.False(t, eng.CancelLoad(id))

	ls, err := eng.GetLoadingStats(identity.Locator, identity.Hash)
	require.NoError(t, err)
	assert.Equal(t, 100.0, ls.Percentage)
}

func TestEngine_SweepLeavesSearchAlone(t *testing.T) {
	clock := newFakeClock()
	eng := newTestEngine(t, WithClock(clock.Now))
	ctx := context.Background()
	identity := testIdentity()

	require.NoError(t, eng.Admit(ctx, identity, testManifest(), testRef()))
	clock.Advance(DefaultTTL + time.Minute)

	assert.Equal(t, 1, eng.Sweep(ctx))
	assert.Equal(t, 0, eng.GetCacheStats().Containers)

	// Retraction is explicit: the index still answers.
	entries, err := eng.Search(ctx, search.Filter{ContainerIDs: []string{identity.Locator}})
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}

func TestEngine_MetricsCollected(t *testing.T) {
	metrics := &BasicMetricsCollector{}
	eng := newTestEngine(t, WithMetricsCollector(metrics))
	ctx := context.Background()
	identity := testIdentity()

	require.NoError(t, eng.Admit(ctx, identity, testManifest(), testRef()))
	_, err := eng.MaterializeChild(ctx, identity.Locator, identity.Hash, symbol.KindTable, 18, "Customer")
	require.NoError(t, err)
	_, err = eng.Search(ctx, search.Filter{})
	require.NoError(t, err)
	eng.Sweep(ctx)

	stats := metrics.GetStats()
	assert.Equal(t, int64(1), stats.AdmitCount)
	assert.Equal(t, int64(1), stats.MaterializeCount)
	assert.Equal(t, int64(0), stats.MaterializeErrors)
	assert.Equal(t, int64(1), stats.SearchCount)
	assert.Equal(t, int64(1), stats.SweepCount)
}

func TestEngine_CacheStats(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()
	identity := testIdentity()

	require.NoError(t, eng.Admit(ctx, identity, testManifest(), testRef()))
	_, err := eng.GetContainerMetadata(ctx, identity.Locator, identity.Hash)
	require.NoError(t, err)
	_, err = eng.GetContainerMetadata(ctx, "memory://apps/ghost.app", "00")
	require.Error(t, err)

	stats := eng.GetCacheStats()
	assert.Equal(t, 1, stats.Containers)
	assert.Equal(t, 4, stats.TotalChildren)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 0.5, stats.HitRate, 1e-9)
	assert.Greater(t, stats.FootprintBytes, int64(0))
}
