package symbol

// Inventory is the output of one indexing pass over a reference document:
// one descriptor per object, in category order, plus per-kind totals.
type Inventory struct {
	Descriptors []Descriptor
	Totals      map[Kind]int
	Total       int
}

// BuildInventory scans a decoded reference once and emits one descriptor
// per object. The scan is a pure function of the document: it neither
// mutates nor retains it. A nil or malformed document degrades to an empty
// inventory rather than an error.
//
// Objects that carry neither a name nor an ID cannot be addressed later
// and are skipped. Duplicate (kind, id, name) keys collapse to the first
// occurrence.
func BuildInventory(ref *Reference) *Inventory {
	inv := &Inventory{Totals: make(map[Kind]int)}
	if ref == nil {
		return inv
	}

	seen := make(map[Key]struct{}, ref.ObjectCount())
	ref.ForEach(func(k Kind, objs []Object) {
		for i := range objs {
			o := &objs[i]
			if o.Name == "" && o.ID == 0 {
				continue
			}
			// The category array is authoritative for the kind; the
			// object's own field may be unset in adapter output.
			key := Key{Kind: k, ID: o.ID, Name: o.Name}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			inv.Descriptors = append(inv.Descriptors, Descriptor{
				Kind:      k,
				ID:        o.ID,
				Name:      o.Name,
				Namespace: o.Namespace,
			})
			inv.Totals[k]++
			inv.Total++
		}
	})
	return inv
}

// DescriptorsByKind returns the inventory's descriptors for one kind, in
// inventory order.
func (inv *Inventory) DescriptorsByKind(k Kind) []Descriptor {
	if inv == nil || inv.Totals[k] == 0 {
		return nil
	}
	out := make([]Descriptor, 0, inv.Totals[k])
	for _, d := range inv.Descriptors {
		if d.Kind == k {
			out = append(out, d)
		}
	}
	return out
}

// Contains reports whether the inventory lists the key.
func (inv *Inventory) Contains(key Key) bool {
	if inv == nil {
		return false
	}
	for _, d := range inv.Descriptors {
		if d.Kind == key.Kind && d.ID == key.ID && d.Name == key.Name {
			return true
		}
	}
	return false
}

// Materialize derives the full value for key from the retained document.
// The result is an owned deep copy with the kind stamped from the category
// array. ok is false when the document has no matching object.
//
// Materialization is a pure function of the document: calling it twice for
// the same key yields equal values.
func Materialize(ref *Reference, key Key) (Object, bool) {
	if ref == nil {
		return Object{}, false
	}
	objs := ref.objects(key.Kind)
	for i := range objs {
		if objs[i].ID == key.ID && objs[i].Name == key.Name {
			o := objs[i].Clone()
			o.Kind = key.Kind
			return o, true
		}
	}
	return Object{}, false
}
