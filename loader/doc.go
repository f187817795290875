// Package loader materializes container children in batches. Priority
// kinds load first, progress is reported after every batch, and a task
// can run synchronously or in the background under a load-slot budget.
// Cancellation is advisory: it prevents the next batch, never the one
// in flight.
package loader
