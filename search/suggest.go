package search

import (
	"sort"

	"github.com/sahilm/fuzzy"
)

// Suggestion is one fuzzy name completion.
type Suggestion struct {
	Name  string
	Score int
}

// Suggest fuzzy-matches the pattern against the distinct object names
// in the index and returns up to limit suggestions, best score first.
// A non-positive limit means no cap.
func (ix *Index) Suggest(pattern string, limit int) []Suggestion {
	if pattern == "" {
		return nil
	}
	names := ix.distinctNames()
	if len(names) == 0 {
		return nil
	}

	matches := fuzzy.Find(pattern, names)
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	out := make([]Suggestion, 0, len(matches))
	for _, m := range matches {
		out = append(out, Suggestion{Name: names[m.Index], Score: m.Score})
	}
	return out
}

// distinctNames collects the display names of all live entries, one
// per distinct name, in deterministic order.
func (ix *Index) distinctNames() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	seen := make(map[string]struct{})
	var names []string
	it := ix.live.Iterator()
	for it.HasNext() {
		e, ok := ix.entries[it.Next()]
		if !ok {
			continue
		}
		if _, dup := seen[e.Name]; dup {
			continue
		}
		seen[e.Name] = struct{}{}
		names = append(names, e.Name)
	}
	sort.Strings(names)
	return names
}
