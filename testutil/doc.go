// Package testutil provides testing helpers for the symbol engine.
//
// This package is intended for use in tests and benchmarks only. It
// provides a seeded, thread-safe RNG and generators for synthetic
// symbol documents: deterministic object names with Business
// Central-style camel casing, per-kind object arrays, manifests and
// container identities.
//
//	rng := testutil.NewRNG(42)
//	ref := rng.Reference(map[symbol.Kind]int{symbol.KindTable: 1000})
//	id := rng.Identity("base")
package testutil
