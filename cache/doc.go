// Package cache holds admitted containers and materializes their
// children on demand.
//
// A Store keys entries by locator. Every entry owns its manifest, its
// decoded symbol document and a lazily growing map of materialized
// children; nothing else in the process may keep a long-lived reference
// to those. Reads validate the caller's content hash and the entry's
// age before answering: a mismatching hash or an expired entry is
// purged on the spot and reported as stale.
//
// Materialization derives a child from the retained document exactly
// once per key. Concurrent requests for the same key share one
// in-flight derivation; later requests hit the per-entry child map.
// A document that cannot produce a child its own inventory lists is
// reported as corrupt for that key only, the entry stays valid for
// every other key.
//
// After every admission the configured eviction controller runs until
// the estimated footprint fits the ceiling or a single entry remains.
package cache
