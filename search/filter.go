package search

import (
	"strings"

	"github.com/ThaSiouL/bc-symbols-mcp/symbol"
)

// Filter selects entries. Dimensions are independent and conjunctive:
// every present dimension must match, an empty dimension matches
// everything. Within Kinds, Names, ContainerIDs and Dependencies any
// one listed value suffices; Keywords require every listed token.
type Filter struct {
	Kinds        []symbol.Kind
	Names        []string
	ContainerIDs []string
	Keywords     []string
	Dependencies []string

	// IDMin and IDMax bound the child ID inclusively. Zero means
	// unbounded on that side.
	IDMin uint64
	IDMax uint64

	// Namespace, when set, must equal the entry's namespace.
	Namespace string

	// Properties lists key/value pairs that must all be present.
	Properties map[string]string
}

// Empty reports whether no dimension is set, which matches everything.
func (f Filter) Empty() bool {
	return len(f.Kinds) == 0 && len(f.Names) == 0 && len(f.ContainerIDs) == 0 &&
		len(f.Keywords) == 0 && len(f.Dependencies) == 0 &&
		f.IDMin == 0 && f.IDMax == 0 && f.Namespace == "" && len(f.Properties) == 0
}

// Matches evaluates the filter against one entry by direct
// inspection. The index answers queries through its secondaries; this
// is the reference predicate those answers must agree with.
func (f Filter) Matches(e *Entry) bool {
	if len(f.Kinds) > 0 && !containsKind(f.Kinds, e.Kind) {
		return false
	}
	if len(f.Names) > 0 && !containsFold(f.Names, e.Name) {
		return false
	}
	if len(f.ContainerIDs) > 0 && !containsString(f.ContainerIDs, e.ContainerID) {
		return false
	}
	for _, kw := range f.Keywords {
		if !containsString(e.Keywords, strings.ToLower(kw)) {
			return false
		}
	}
	if len(f.Dependencies) > 0 {
		any := false
		for _, dep := range f.Dependencies {
			if containsString(e.Dependencies, dep) {
				any = true
				break
			}
		}
		if !any {
			return false
		}
	}
	return f.matchesScalars(e)
}

// matchesScalars applies the dimensions no secondary index backs.
func (f Filter) matchesScalars(e *Entry) bool {
	if f.IDMin > 0 && e.ChildID < f.IDMin {
		return false
	}
	if f.IDMax > 0 && e.ChildID > f.IDMax {
		return false
	}
	if f.Namespace != "" && e.Namespace != f.Namespace {
		return false
	}
	for k, v := range f.Properties {
		if e.Properties[k] != v {
			return false
		}
	}
	return true
}

func containsKind(kinds []symbol.Kind, k symbol.Kind) bool {
	for _, kk := range kinds {
		if kk == k {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
