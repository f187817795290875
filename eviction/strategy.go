package eviction

import (
	"fmt"
	"time"
)

// Candidate is the eviction-relevant view of one stored entry.
type Candidate struct {
	Key         string
	Footprint   int64
	LastAccess  time.Time
	AccessCount uint64
}

// Strategy picks the next victim among candidates. Pick returns the
// index of the victim, or -1 when there is nothing to evict.
type Strategy interface {
	Name() string
	Pick(cands []Candidate) int
}

// Recency evicts the entry with the oldest access first.
type Recency struct{}

func (Recency) Name() string { return "recency" }

func (Recency) Pick(cands []Candidate) int {
	victim := -1
	for i, c := range cands {
		if victim < 0 || c.LastAccess.Before(cands[victim].LastAccess) {
			victim = i
		}
	}
	return victim
}

// Frequency evicts the least-accessed entry first. Ties fall back to
// the oldest access so repeated runs stay deterministic.
type Frequency struct{}

func (Frequency) Name() string { return "frequency" }

func (Frequency) Pick(cands []Candidate) int {
	victim := -1
	for i, c := range cands {
		if victim < 0 {
			victim = i
			continue
		}
		v := cands[victim]
		if c.AccessCount < v.AccessCount ||
			(c.AccessCount == v.AccessCount && c.LastAccess.Before(v.LastAccess)) {
			victim = i
		}
	}
	return victim
}

// SizeDescending evicts the largest entry first, freeing the most
// bytes per eviction. Ties fall back to the oldest access.
type SizeDescending struct{}

func (SizeDescending) Name() string { return "size-descending" }

func (SizeDescending) Pick(cands []Candidate) int {
	victim := -1
	for i, c := range cands {
		if victim < 0 {
			victim = i
			continue
		}
		v := cands[victim]
		if c.Footprint > v.Footprint ||
			(c.Footprint == v.Footprint && c.LastAccess.Before(v.LastAccess)) {
			victim = i
		}
	}
	return victim
}

// ByName resolves a strategy from its configuration name.
func ByName(name string) (Strategy, error) {
	switch name {
	case "", "recency", "lru":
		return Recency{}, nil
	case "frequency", "lfu":
		return Frequency{}, nil
	case "size", "size-descending":
		return SizeDescending{}, nil
	default:
		return nil, fmt.Errorf("eviction: unknown strategy %q", name)
	}
}
