// Package resource provides centralized resource accounting for the
// engine. A single Controller coordinates three concerns:
//
//   - Memory accounting: every byte held by the cache or the
//     partitioned store is registered with the Controller so that
//     eviction decisions and diagnostics see one number, not three.
//     With a configured limit the Controller admits or rejects
//     reservations via a weighted semaphore; with limit 0 it degrades
//     to pure tracking and never rejects.
//
//   - Background work slots: progressive loads run on a bounded pool
//     of slots so a burst of container admissions cannot spawn an
//     unbounded number of decode goroutines.
//
//   - Pacing: an optional token-bucket limiter spaces out
//     materialization batches, keeping foreground lookups responsive
//     while a large container streams in.
//
// All methods are safe for concurrent use. A nil *Controller is valid
// and disables every mechanism, which keeps call sites free of guards.
package resource
