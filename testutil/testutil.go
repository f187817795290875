package testutil

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/ThaSiouL/bc-symbols-mcp/symbol"
)

// RNG encapsulates a seeded random number generator. It is
// thread-safe and reproducible: the same seed yields the same
// fixtures.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Uint64 returns a pseudo-random uint64.
func (r *RNG) Uint64() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Uint64()
}

var (
	namePrefixes = []string{
		"Customer", "Vendor", "Item", "Sales", "Purchase", "Gen",
		"Bank", "Warehouse", "Service", "Job", "Resource", "Cash",
		"Dimension", "Currency", "Inventory",
	}
	nameSuffixes = []string{
		"Card", "List", "Header", "Line", "Entry", "Setup",
		"Journal", "Posting", "Ledger", "Mgt", "Buffer", "Statistics",
	}
	namespaces = []string{
		"", "Microsoft.Sales", "Microsoft.Purchases", "Microsoft.Inventory",
		"Microsoft.Finance",
	}
	memberTypes = []string{
		"Code[20]", "Text[100]", "Integer", "Decimal", "Boolean", "Date",
	}
)

// ObjectName returns the deterministic camel-cased object name for
// index i. Names repeat after len(prefixes)*len(suffixes) indices, so
// callers that need uniqueness should also vary the ID.
func ObjectName(i int) string {
	p := namePrefixes[i%len(namePrefixes)]
	s := nameSuffixes[(i/len(namePrefixes))%len(nameSuffixes)]
	n := i / (len(namePrefixes) * len(nameSuffixes))
	if n > 0 {
		return fmt.Sprintf("%s%s%d", p, s, n)
	}
	return p + s
}

// Objects generates n objects of one kind with IDs 1..n, deterministic
// names and randomized payload fields. Roughly a third of the objects
// declare a dependency on an earlier table key.
func (r *RNG) Objects(kind symbol.Kind, n int) []symbol.Object {
	r.mu.Lock()
	defer r.mu.Unlock()

	objs := make([]symbol.Object, 0, n)
	for i := 0; i < n; i++ {
		o := symbol.Object{
			Kind:      kind,
			ID:        uint64(i + 1),
			Name:      ObjectName(i),
			Namespace: namespaces[r.rand.Intn(len(namespaces))],
			Properties: map[string]string{
				"DataClassification": "CustomerContent",
			},
		}
		o.Caption = o.Name
		if r.rand.Intn(2) == 0 {
			o.Properties["Access"] = "Public"
		}
		members := 1 + r.rand.Intn(3)
		for m := 0; m < members; m++ {
			o.Members = append(o.Members, symbol.Member{
				ID:   uint64(m + 1),
				Name: fmt.Sprintf("Field%d", m+1),
				Type: memberTypes[r.rand.Intn(len(memberTypes))],
			})
		}
		if i > 0 && r.rand.Intn(3) == 0 {
			j := r.rand.Intn(i)
			dep := symbol.Key{Kind: symbol.KindTable, ID: uint64(j + 1), Name: ObjectName(j)}
			o.Dependencies = append(o.Dependencies, dep.String())
		}
		objs = append(objs, o)
	}
	return objs
}

// Reference generates a reference document with the given number of
// objects per kind.
func (r *RNG) Reference(counts map[symbol.Kind]int) *symbol.Reference {
	ref := &symbol.Reference{}
	for _, k := range symbol.Kinds() {
		n := counts[k]
		if n == 0 {
			continue
		}
		objs := r.Objects(k, n)
		switch k {
		case symbol.KindTable:
			ref.Tables = objs
		case symbol.KindTableExtension:
			ref.TableExtensions = objs
		case symbol.KindPage:
			ref.Pages = objs
		case symbol.KindPageExtension:
			ref.PageExtensions = objs
		case symbol.KindCodeunit:
			ref.Codeunits = objs
		case symbol.KindReport:
			ref.Reports = objs
		case symbol.KindQuery:
			ref.Queries = objs
		case symbol.KindEnum:
			ref.Enums = objs
		case symbol.KindEnumExtension:
			ref.EnumExtensions = objs
		case symbol.KindXMLPort:
			ref.XMLPorts = objs
		case symbol.KindInterface:
			ref.Interfaces = objs
		case symbol.KindPermissionSet:
			ref.PermissionSets = objs
		case symbol.KindControlAddIn:
			ref.ControlAddIns = objs
		case symbol.KindOther:
			ref.Others = objs
		}
	}
	return ref
}

// TablesReference generates a reference holding only n tables.
func (r *RNG) TablesReference(n int) *symbol.Reference {
	return r.Reference(map[symbol.Kind]int{symbol.KindTable: n})
}

// Identity generates a container identity with a random content hash.
func (r *RNG) Identity(name string) symbol.Identity {
	return symbol.Identity{
		Locator: "memory://apps/" + name + ".app",
		Hash:    fmt.Sprintf("%016x", r.Uint64()),
	}
}

// Manifest generates a plausible app manifest.
func (r *RNG) Manifest(name string) symbol.Manifest {
	return symbol.Manifest{
		AppID:     fmt.Sprintf("%08x-0000-0000-0000-%012x", r.Uint64()>>32, r.Uint64()&0xffffffffffff),
		Name:      name,
		Publisher: "Contoso",
		Version:   fmt.Sprintf("1.%d.0.0", r.Intn(50)),
		Runtime:   "11.0",
		IDRanges:  []symbol.IDRange{{From: 50000, To: 59999}},
	}
}
