package search

import (
	"sort"
	"strings"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/ThaSiouL/bc-symbols-mcp/symbol"
)

// Entry is one indexed child. Entries are owned by the index; Search
// and Dependents return copies.
type Entry struct {
	ContainerID  string
	Kind         symbol.Kind
	ChildID      uint64
	Name         string
	Namespace    string
	Keywords     []string
	Dependencies []string
	Properties   map[string]string
}

// Key returns the child key the entry was indexed under.
func (e *Entry) Key() symbol.Key {
	return symbol.Key{Kind: e.Kind, ID: e.ChildID, Name: e.Name}
}

func (e *Entry) clone() Entry {
	c := *e
	if e.Keywords != nil {
		c.Keywords = append([]string(nil), e.Keywords...)
	}
	if e.Dependencies != nil {
		c.Dependencies = append([]string(nil), e.Dependencies...)
	}
	if e.Properties != nil {
		c.Properties = make(map[string]string, len(e.Properties))
		for k, v := range e.Properties {
			c.Properties[k] = v
		}
	}
	return c
}

// Index is an in-memory multi-index over container children. A flat
// arena holds the entries; five inverted secondaries map field values
// to roaring bitmaps over arena ids. Ids are never reused, so a
// retracted container leaves no trace behind.
type Index struct {
	mu      sync.RWMutex
	entries map[uint32]*Entry
	live    *roaring.Bitmap
	next    uint32

	byContainer map[string]*roaring.Bitmap
	byKind      map[symbol.Kind]*roaring.Bitmap
	byName      map[string]*roaring.Bitmap
	byKeyword   map[string]*roaring.Bitmap
	byDep       map[string]*roaring.Bitmap
}

// New creates an empty index.
func New() *Index {
	return &Index{
		entries:     make(map[uint32]*Entry),
		live:        roaring.New(),
		byContainer: make(map[string]*roaring.Bitmap),
		byKind:      make(map[symbol.Kind]*roaring.Bitmap),
		byName:      make(map[string]*roaring.Bitmap),
		byKeyword:   make(map[string]*roaring.Bitmap),
		byDep:       make(map[string]*roaring.Bitmap),
	}
}

// Add indexes the children of one container and returns how many
// entries were created. Children without a usable identity (empty
// name and zero id) are skipped, and children already indexed for the
// container are not indexed twice. Objects with an unknown kind are
// filed under KindOther.
func (ix *Index) Add(containerID string, children []symbol.Object) int {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	seen := make(map[symbol.Key]struct{})
	if bm, ok := ix.byContainer[containerID]; ok {
		it := bm.Iterator()
		for it.HasNext() {
			if e, ok := ix.entries[it.Next()]; ok {
				seen[e.Key()] = struct{}{}
			}
		}
	}

	added := 0
	for i := range children {
		child := &children[i]
		if child.Name == "" && child.ID == 0 {
			continue
		}
		kind := child.Kind
		if !kind.Valid() {
			kind = symbol.KindOther
		}
		key := symbol.Key{Kind: kind, ID: child.ID, Name: child.Name}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		e := &Entry{
			ContainerID: containerID,
			Kind:        kind,
			ChildID:     child.ID,
			Name:        child.Name,
			Namespace:   child.Namespace,
			Keywords:    Tokenize(child.Name),
		}
		if len(child.Dependencies) > 0 {
			e.Dependencies = append([]string(nil), child.Dependencies...)
		}
		if len(child.Properties) > 0 {
			e.Properties = make(map[string]string, len(child.Properties))
			for k, v := range child.Properties {
				e.Properties[k] = v
			}
		}

		id := ix.next
		ix.next++
		ix.entries[id] = e
		ix.live.Add(id)
		ix.addToSecondariesLocked(id, e)
		added++
	}
	return added
}

func (ix *Index) addToSecondariesLocked(id uint32, e *Entry) {
	addTo(ix.byContainer, e.ContainerID, id)
	addToKind(ix.byKind, e.Kind, id)
	addTo(ix.byName, strings.ToLower(e.Name), id)
	for _, kw := range e.Keywords {
		addTo(ix.byKeyword, kw, id)
	}
	for _, dep := range e.Dependencies {
		addTo(ix.byDep, dep, id)
	}
}

func (ix *Index) removeFromSecondariesLocked(id uint32, e *Entry) {
	removeFrom(ix.byContainer, e.ContainerID, id)
	removeFromKind(ix.byKind, e.Kind, id)
	removeFrom(ix.byName, strings.ToLower(e.Name), id)
	for _, kw := range e.Keywords {
		removeFrom(ix.byKeyword, kw, id)
	}
	for _, dep := range e.Dependencies {
		removeFrom(ix.byDep, dep, id)
	}
}

// Retract removes every entry of the given container from the arena
// and all secondaries, returning how many entries were dropped.
func (ix *Index) Retract(containerID string) int {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	bm, ok := ix.byContainer[containerID]
	if !ok {
		return 0
	}
	ids := bm.ToArray()
	for _, id := range ids {
		e, ok := ix.entries[id]
		if !ok {
			continue
		}
		ix.removeFromSecondariesLocked(id, e)
		ix.live.Remove(id)
		delete(ix.entries, id)
	}
	return len(ids)
}

// Search evaluates the filter against the index. Bitmap-backed
// dimensions narrow a working set by intersection; within kinds,
// names, containers and dependencies listed values union, while every
// keyword must match on its own. Scalar dimensions are applied to the
// survivors. Results are ordered by kind, child id and name, with the
// container id as the final tiebreak.
func (ix *Index) Search(f Filter) []Entry {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.live.IsEmpty() {
		return nil
	}
	acc := ix.live.Clone()

	if len(f.Kinds) > 0 {
		dim := roaring.New()
		for _, k := range f.Kinds {
			if bm, ok := ix.byKind[k]; ok {
				dim.Or(bm)
			}
		}
		acc.And(dim)
		if acc.IsEmpty() {
			return nil
		}
	}
	if len(f.Names) > 0 {
		dim := roaring.New()
		for _, name := range f.Names {
			if bm, ok := ix.byName[strings.ToLower(name)]; ok {
				dim.Or(bm)
			}
		}
		acc.And(dim)
		if acc.IsEmpty() {
			return nil
		}
	}
	if len(f.ContainerIDs) > 0 {
		dim := roaring.New()
		for _, cid := range f.ContainerIDs {
			if bm, ok := ix.byContainer[cid]; ok {
				dim.Or(bm)
			}
		}
		acc.And(dim)
		if acc.IsEmpty() {
			return nil
		}
	}
	for _, kw := range f.Keywords {
		bm, ok := ix.byKeyword[strings.ToLower(kw)]
		if !ok {
			return nil
		}
		acc.And(bm)
		if acc.IsEmpty() {
			return nil
		}
	}
	if len(f.Dependencies) > 0 {
		dim := roaring.New()
		for _, dep := range f.Dependencies {
			if bm, ok := ix.byDep[dep]; ok {
				dim.Or(bm)
			}
		}
		acc.And(dim)
		if acc.IsEmpty() {
			return nil
		}
	}

	var out []Entry
	it := acc.Iterator()
	for it.HasNext() {
		e, ok := ix.entries[it.Next()]
		if !ok {
			continue
		}
		if !f.matchesScalars(e) {
			continue
		}
		out = append(out, e.clone())
	}
	sortEntries(out)
	return out
}

// Dependents returns every entry that declares a dependency on the
// given child key, ordered like Search results.
func (ix *Index) Dependents(key string) []Entry {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	bm, ok := ix.byDep[key]
	if !ok {
		return nil
	}
	var out []Entry
	it := bm.Iterator()
	for it.HasNext() {
		if e, ok := ix.entries[it.Next()]; ok {
			out = append(out, e.clone())
		}
	}
	sortEntries(out)
	return out
}

// Containers returns the ids of all containers with live entries.
func (ix *Index) Containers() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	out := make([]string, 0, len(ix.byContainer))
	for cid := range ix.byContainer {
		out = append(out, cid)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of live entries.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return int(ix.live.GetCardinality())
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := &entries[i], &entries[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.ChildID != b.ChildID {
			return a.ChildID < b.ChildID
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ContainerID < b.ContainerID
	})
}

func addTo(m map[string]*roaring.Bitmap, key string, id uint32) {
	bm, ok := m[key]
	if !ok {
		bm = roaring.New()
		m[key] = bm
	}
	bm.Add(id)
}

func removeFrom(m map[string]*roaring.Bitmap, key string, id uint32) {
	bm, ok := m[key]
	if !ok {
		return
	}
	bm.Remove(id)
	if bm.IsEmpty() {
		delete(m, key)
	}
}

func addToKind(m map[symbol.Kind]*roaring.Bitmap, k symbol.Kind, id uint32) {
	bm, ok := m[k]
	if !ok {
		bm = roaring.New()
		m[k] = bm
	}
	bm.Add(id)
}

func removeFromKind(m map[symbol.Kind]*roaring.Bitmap, k symbol.Kind, id uint32) {
	bm, ok := m[k]
	if !ok {
		return
	}
	bm.Remove(id)
	if bm.IsEmpty() {
		delete(m, k)
	}
}
