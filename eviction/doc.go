// Package eviction enforces byte ceilings on the object stores.
//
// A Controller pairs one Strategy with one ceiling. After every
// admission or write the owning store calls Run, which evicts a single
// victim at a time and re-snapshots between victims, so each eviction
// sees the footprint left by the previous one. Run stops as soon as
// the store fits the ceiling, and never removes the last remaining
// entry: a single oversized container stays resident rather than
// leaving the store empty.
//
// Strategies only rank candidates. They never touch the store, which
// keeps them trivial to test and lets both the container cache and the
// partitioned store share them.
package eviction
