// Package symbol defines the decoded model of a Business Central symbol
// package: the app manifest, the symbol reference document with its
// per-kind object arrays, and the lightweight descriptors emitted by the
// indexer.
//
// The kind set is closed and versioned. Inputs that name an unknown kind
// are mapped to KindOther instead of being dropped, so a document can
// always be inventoried even when it was produced by a newer toolchain.
package symbol
