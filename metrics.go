package bcsymbols

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordAdmit is called after each container admission.
	// evicted is the number of entries evicted to make room,
	// duration is the total time taken.
	RecordAdmit(duration time.Duration, evicted int)

	// RecordMaterialize is called after each child materialization.
	// err is nil if successful.
	RecordMaterialize(duration time.Duration, err error)

	// RecordSearch is called after each search operation.
	// results is the number of entries returned.
	RecordSearch(results int, duration time.Duration, err error)

	// RecordLoad is called after each progressive-load task.
	// loaded and failed count children, duration is the task wall time.
	RecordLoad(loaded, failed int, duration time.Duration)

	// RecordSweep is called after each sweep.
	// removed is the number of expired containers purged.
	RecordSweep(removed int, duration time.Duration)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordAdmit(time.Duration, int)         {}
func (NoopMetricsCollector) RecordMaterialize(time.Duration, error) {}
func (NoopMetricsCollector) RecordSearch(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordLoad(int, int, time.Duration)     {}
func (NoopMetricsCollector) RecordSweep(int, time.Duration)         {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	AdmitCount            atomic.Int64
	AdmitEvictions        atomic.Int64
	MaterializeCount      atomic.Int64
	MaterializeErrors     atomic.Int64
	MaterializeTotalNanos atomic.Int64
	SearchCount           atomic.Int64
	SearchErrors          atomic.Int64
	SearchTotalNanos      atomic.Int64
	LoadCount             atomic.Int64
	LoadChildren          atomic.Int64
	LoadFailed            atomic.Int64
	SweepCount            atomic.Int64
	SweepRemoved          atomic.Int64
}

// RecordAdmit implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAdmit(duration time.Duration, evicted int) {
	b.AdmitCount.Add(1)
	b.AdmitEvictions.Add(int64(evicted))
}

// RecordMaterialize implements MetricsCollector.
func (b *BasicMetricsCollector) RecordMaterialize(duration time.Duration, err error) {
	b.MaterializeCount.Add(1)
	b.MaterializeTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.MaterializeErrors.Add(1)
	}
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(results int, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SearchErrors.Add(1)
	}
}

// RecordLoad implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLoad(loaded, failed int, duration time.Duration) {
	b.LoadCount.Add(1)
	b.LoadChildren.Add(int64(loaded))
	b.LoadFailed.Add(int64(failed))
}

// RecordSweep implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSweep(removed int, duration time.Duration) {
	b.SweepCount.Add(1)
	b.SweepRemoved.Add(int64(removed))
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		AdmitCount:          b.AdmitCount.Load(),
		AdmitEvictions:      b.AdmitEvictions.Load(),
		MaterializeCount:    b.MaterializeCount.Load(),
		MaterializeErrors:   b.MaterializeErrors.Load(),
		MaterializeAvgNanos: b.avgMaterializeNanos(),
		SearchCount:         b.SearchCount.Load(),
		SearchErrors:        b.SearchErrors.Load(),
		SearchAvgNanos:      b.avgSearchNanos(),
		LoadCount:           b.LoadCount.Load(),
		LoadChildren:        b.LoadChildren.Load(),
		LoadFailed:          b.LoadFailed.Load(),
		SweepCount:          b.SweepCount.Load(),
		SweepRemoved:        b.SweepRemoved.Load(),
	}
}

func (b *BasicMetricsCollector) avgMaterializeNanos() int64 {
	count := b.MaterializeCount.Load()
	if count == 0 {
		return 0
	}
	return b.MaterializeTotalNanos.Load() / count
}

func (b *BasicMetricsCollector) avgSearchNanos() int64 {
	count := b.SearchCount.Load()
	if count == 0 {
		return 0
	}
	return b.SearchTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	AdmitCount          int64
	AdmitEvictions      int64
	MaterializeCount    int64
	MaterializeErrors   int64
	MaterializeAvgNanos int64
	SearchCount         int64
	SearchErrors        int64
	SearchAvgNanos      int64
	LoadCount           int64
	LoadChildren        int64
	LoadFailed          int64
	SweepCount          int64
	SweepRemoved        int64
}
