// Package partition stores container payloads split by kind.
//
// Metadata lives in its own bucket, child payloads in one blob per
// (container, kind) pair. The split keeps per-kind memory statistics
// cheap and lets eviction remove one kind's blob without touching any
// other kind. Payloads are codec-encoded and optionally compressed on
// the way in; both transforms are reversed transparently on the way
// out. A payload that does not shrink is stored raw, the blob framing
// records which form it is in.
//
// Child blobs are evicted after every write until the store fits its
// ceiling. Metadata blobs are exempt: they are tiny and evicting them
// would break the metadata/children separation the store exists for.
package partition
