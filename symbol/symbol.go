package symbol

import (
	"strconv"
	"strings"
)

// Kind identifies the category of an AL object.
type Kind uint8

const (
	// KindInvalid represents an invalid kind.
	KindInvalid Kind = iota
	// KindTable represents a table object.
	KindTable
	// KindTableExtension represents a table extension object.
	KindTableExtension
	// KindPage represents a page object.
	KindPage
	// KindPageExtension represents a page extension object.
	KindPageExtension
	// KindCodeunit represents a codeunit object.
	KindCodeunit
	// KindReport represents a report object.
	KindReport
	// KindQuery represents a query object.
	KindQuery
	// KindEnum represents an enum type object.
	KindEnum
	// KindEnumExtension represents an enum extension object.
	KindEnumExtension
	// KindXMLPort represents an XML port object.
	KindXMLPort
	// KindInterface represents an interface object.
	KindInterface
	// KindPermissionSet represents a permission set object.
	KindPermissionSet
	// KindControlAddIn represents a control add-in object.
	KindControlAddIn
	// KindOther collects objects whose category is not part of the
	// closed set above.
	KindOther
)

// KindSetVersion is the revision of the closed kind set. Bump it whenever
// a kind is added so stored payloads can be told apart from older ones.
const KindSetVersion = 1

var kindNames = map[Kind]string{
	KindTable:          "table",
	KindTableExtension: "tableextension",
	KindPage:           "page",
	KindPageExtension:  "pageextension",
	KindCodeunit:       "codeunit",
	KindReport:         "report",
	KindQuery:          "query",
	KindEnum:           "enum",
	KindEnumExtension:  "enumextension",
	KindXMLPort:        "xmlport",
	KindInterface:      "interface",
	KindPermissionSet:  "permissionset",
	KindControlAddIn:   "controladdin",
	KindOther:          "other",
}

// String returns the canonical lowercase name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "invalid"
}

// Valid reports whether k is part of the closed kind set.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// ParseKind maps a category name to its Kind. Matching is
// case-insensitive. Unknown names map to KindOther, never to an error:
// the set is closed, not a gate.
func ParseKind(s string) Kind {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == s {
			return k
		}
	}
	return KindOther
}

// Kinds returns all known kinds in canonical order.
func Kinds() []Kind {
	return []Kind{
		KindTable, KindTableExtension, KindPage, KindPageExtension,
		KindCodeunit, KindReport, KindQuery, KindEnum, KindEnumExtension,
		KindXMLPort, KindInterface, KindPermissionSet, KindControlAddIn,
		KindOther,
	}
}

// Identity names one admitted container. Two identities refer to the same
// container iff both the locator and the content hash match; a hash
// mismatch means the underlying source changed.
type Identity struct {
	Locator string
	Hash    string
}

// String returns a short representation for logging.
func (id Identity) String() string {
	h := id.Hash
	if len(h) > 8 {
		h = h[:8]
	}
	return id.Locator + "@" + h
}

// IDRange is an object-ID range claimed by an app.
type IDRange struct {
	From uint64 `json:"from"`
	To   uint64 `json:"to"`
}

// Dependency names another app a manifest depends on.
type Dependency struct {
	AppID     string `json:"appId"`
	Name      string `json:"name"`
	Publisher string `json:"publisher,omitempty"`
	Version   string `json:"version,omitempty"`
}

// Manifest is the container-level metadata of an app. A cache entry owns
// its manifest exclusively.
type Manifest struct {
	AppID        string       `json:"appId"`
	Name         string       `json:"name"`
	Publisher    string       `json:"publisher"`
	Version      string       `json:"version"`
	Runtime      string       `json:"runtime,omitempty"`
	Platform     string       `json:"platform,omitempty"`
	IDRanges     []IDRange    `json:"idRanges,omitempty"`
	Dependencies []Dependency `json:"dependencies,omitempty"`
}

// Clone returns a deep copy. Metadata handed to callers must not alias
// the entry-owned slices.
func (m Manifest) Clone() Manifest {
	c := m
	if m.IDRanges != nil {
		c.IDRanges = append([]IDRange(nil), m.IDRanges...)
	}
	if m.Dependencies != nil {
		c.Dependencies = append([]Dependency(nil), m.Dependencies...)
	}
	return c
}

// Member is one sub-record of an object: a table field, a page control,
// an enum value or a procedure. Type carries the member's declared type
// or signature as text.
type Member struct {
	ID   uint64 `json:"id,omitempty"`
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// Object is the full value of one AL object.
type Object struct {
	Kind         Kind              `json:"kind"`
	ID           uint64            `json:"id"`
	Name         string            `json:"name"`
	Namespace    string            `json:"namespace,omitempty"`
	Caption      string            `json:"caption,omitempty"`
	Properties   map[string]string `json:"properties,omitempty"`
	Dependencies []string          `json:"dependencies,omitempty"`
	Members      []Member          `json:"members,omitempty"`
}

// Key returns the object's identity within its container.
func (o Object) Key() Key {
	return Key{Kind: o.Kind, ID: o.ID, Name: o.Name}
}

// Clone returns a deep copy. Materialized values handed to callers must
// not alias the document-owned maps and slices.
func (o Object) Clone() Object {
	c := o
	if o.Properties != nil {
		c.Properties = make(map[string]string, len(o.Properties))
		for k, v := range o.Properties {
			c.Properties[k] = v
		}
	}
	if o.Dependencies != nil {
		c.Dependencies = append([]string(nil), o.Dependencies...)
	}
	if o.Members != nil {
		c.Members = append([]Member(nil), o.Members...)
	}
	return c
}

// Key identifies one object within a container.
type Key struct {
	Kind Kind
	ID   uint64
	Name string
}

// String returns the canonical "kind:id:name" form, e.g. "table:18:Customer".
func (k Key) String() string {
	return k.Kind.String() + ":" + strconv.FormatUint(k.ID, 10) + ":" + k.Name
}

// Descriptor is the lightweight projection of one object, emitted once per
// object during indexing. All fields except Materialized are immutable.
type Descriptor struct {
	Kind         Kind   `json:"kind"`
	ID           uint64 `json:"id"`
	Name         string `json:"name"`
	Namespace    string `json:"namespace,omitempty"`
	Materialized bool   `json:"materialized"`
}

// Key returns the descriptor's object key.
func (d Descriptor) Key() Key {
	return Key{Kind: d.Kind, ID: d.ID, Name: d.Name}
}

// Reference is the decoded symbol document: one array per known kind plus
// Others for objects outside the closed set. Consumers treat it as opaque
// and go through the indexer.
type Reference struct {
	Tables          []Object `json:"tables,omitempty"`
	TableExtensions []Object `json:"tableExtensions,omitempty"`
	Pages           []Object `json:"pages,omitempty"`
	PageExtensions  []Object `json:"pageExtensions,omitempty"`
	Codeunits       []Object `json:"codeunits,omitempty"`
	Reports         []Object `json:"reports,omitempty"`
	Queries         []Object `json:"queries,omitempty"`
	Enums           []Object `json:"enums,omitempty"`
	EnumExtensions  []Object `json:"enumExtensions,omitempty"`
	XMLPorts        []Object `json:"xmlPorts,omitempty"`
	Interfaces      []Object `json:"interfaces,omitempty"`
	PermissionSets  []Object `json:"permissionSets,omitempty"`
	ControlAddIns   []Object `json:"controlAddIns,omitempty"`
	Others          []Object `json:"others,omitempty"`
}

// objects returns the category array for k.
func (r *Reference) objects(k Kind) []Object {
	switch k {
	case KindTable:
		return r.Tables
	case KindTableExtension:
		return r.TableExtensions
	case KindPage:
		return r.Pages
	case KindPageExtension:
		return r.PageExtensions
	case KindCodeunit:
		return r.Codeunits
	case KindReport:
		return r.Reports
	case KindQuery:
		return r.Queries
	case KindEnum:
		return r.Enums
	case KindEnumExtension:
		return r.EnumExtensions
	case KindXMLPort:
		return r.XMLPorts
	case KindInterface:
		return r.Interfaces
	case KindPermissionSet:
		return r.PermissionSets
	case KindControlAddIn:
		return r.ControlAddIns
	case KindOther:
		return r.Others
	default:
		return nil
	}
}

// ForEach visits the category arrays in canonical kind order. The callback
// must not mutate the objects; the document stays owned by its entry.
func (r *Reference) ForEach(fn func(Kind, []Object)) {
	if r == nil {
		return
	}
	for _, k := range Kinds() {
		if objs := r.objects(k); len(objs) > 0 {
			fn(k, objs)
		}
	}
}

// ObjectCount returns the number of objects across all category arrays.
func (r *Reference) ObjectCount() int {
	n := 0
	r.ForEach(func(_ Kind, objs []Object) { n += len(objs) })
	return n
}
