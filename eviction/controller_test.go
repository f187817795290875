package eviction

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTable struct {
	entries map[string]Candidate
	victims []string
}

func newFakeTable(cands ...Candidate) *fakeTable {
	t := &fakeTable{entries: make(map[string]Candidate, len(cands))}
	for _, c := range cands {
		t.entries[c.Key] = c
	}
	return t
}

func (f *fakeTable) Usage() int64 {
	var sum int64
	for _, c := range f.entries {
		sum += c.Footprint
	}
	return sum
}

func (f *fakeTable) Candidates() []Candidate {
	out := make([]Candidate, 0, len(f.entries))
	for _, c := range f.entries {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (f *fakeTable) Evict(key string) bool {
	if _, ok := f.entries[key]; !ok {
		return false
	}
	delete(f.entries, key)
	f.victims = append(f.victims, key)
	return true
}

func TestRunEvictsUntilCeiling(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	table := newFakeTable(
		Candidate{Key: "old", Footprint: 400, LastAccess: base},
		Candidate{Key: "mid", Footprint: 400, LastAccess: base.Add(time.Minute)},
		Candidate{Key: "new", Footprint: 400, LastAccess: base.Add(2 * time.Minute)},
	)

	evicted := NewController(Recency{}, 500).Run(table)

	assert.Equal(t, 2, evicted)
	assert.Equal(t, []string{"old", "mid"}, table.victims)
	assert.Equal(t, int64(400), table.Usage())
}

func TestRunKeepsLastEntry(t *testing.T) {
	table := newFakeTable(
		Candidate{Key: "huge", Footprint: 1 << 20, LastAccess: time.Now()},
	)

	evicted := NewController(Recency{}, 100).Run(table)

	assert.Zero(t, evicted)
	assert.Len(t, table.entries, 1)
}

func TestRunStopsAtSingleSurvivor(t *testing.T) {
	base := time.Now()
	table := newFakeTable(
		Candidate{Key: "a", Footprint: 600, LastAccess: base},
		Candidate{Key: "b", Footprint: 600, LastAccess: base.Add(time.Second)},
	)

	evicted := NewController(Recency{}, 100).Run(table)

	assert.Equal(t, 1, evicted)
	assert.Len(t, table.entries, 1)
	assert.Contains(t, table.entries, "b")
}

func TestRunNoCeilingIsNoop(t *testing.T) {
	table := newFakeTable(
		Candidate{Key: "a", Footprint: 1 << 30, LastAccess: time.Now()},
		Candidate{Key: "b", Footprint: 1 << 30, LastAccess: time.Now()},
	)

	assert.Zero(t, NewController(Recency{}, 0).Run(table))
	assert.Zero(t, (*Controller)(nil).Run(table))
	assert.Len(t, table.entries, 2)
}

func TestRunAlreadyUnderCeiling(t *testing.T) {
	table := newFakeTable(
		Candidate{Key: "a", Footprint: 10, LastAccess: time.Now()},
	)
	assert.Zero(t, NewController(SizeDescending{}, 100).Run(table))
}

func TestRunSizeDescendingFreesLargestFirst(t *testing.T) {
	base := time.Now()
	table := newFakeTable(
		Candidate{Key: "small", Footprint: 100, LastAccess: base},
		Candidate{Key: "large", Footprint: 900, LastAccess: base.Add(time.Hour)},
		Candidate{Key: "medium", Footprint: 300, LastAccess: base.Add(2 * time.Hour)},
	)

	evicted := NewController(SizeDescending{}, 450).Run(table)

	assert.Equal(t, 1, evicted)
	assert.Equal(t, []string{"large"}, table.victims)
}

// Convergence: whatever the strategy and whatever the load, Run always
// leaves the table at or under the ceiling, or with a single entry.
func TestRunConvergence(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for _, strategy := range []Strategy{Recency{}, Frequency{}, SizeDescending{}} {
		strategy := strategy
		t.Run(strategy.Name(), func(t *testing.T) {
			for trial := 0; trial < 50; trial++ {
				n := 1 + rng.Intn(40)
				cands := make([]Candidate, 0, n)
				for i := 0; i < n; i++ {
					cands = append(cands, Candidate{
						Key:         fmt.Sprintf("c%03d", i),
						Footprint:   int64(1 + rng.Intn(4096)),
						LastAccess:  base.Add(time.Duration(rng.Intn(86400)) * time.Second),
						AccessCount: uint64(rng.Intn(100)),
					})
				}
				table := newFakeTable(cands...)
				ceiling := int64(1 + rng.Intn(8192))

				NewController(strategy, ceiling).Run(table)

				if table.Usage() > ceiling {
					require.Len(t, table.entries, 1,
						"usage %d above ceiling %d with more than one entry", table.Usage(), ceiling)
				}
			}
		})
	}
}
