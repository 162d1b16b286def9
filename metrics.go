package condset

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordBuild is called once the neighbor table sweep finished.
	// groups is the number of site groups, err is nil if successful.
	RecordBuild(groups int, duration time.Duration, err error)

	// RecordJob is called after each Job.Make. windows is the number of
	// windows built, states the total number of states over all windows.
	RecordJob(windows, states int, duration time.Duration, err error)

	// RecordIBD2 is called with the number of IBD2 pairs removed by a job.
	RecordIBD2(pairs int)

	// RecordFallback is called with the number of windows a job filled
	// with random states.
	RecordFallback(windows int)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordBuild(int, time.Duration, error)    {}
func (NoopMetricsCollector) RecordJob(int, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordIBD2(int)                           {}
func (NoopMetricsCollector) RecordFallback(int)                       {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	BuildCount      atomic.Int64
	BuildErrors     atomic.Int64
	BuildTotalNanos atomic.Int64
	Groups          atomic.Int64
	JobCount        atomic.Int64
	JobErrors       atomic.Int64
	JobTotalNanos   atomic.Int64
	Windows         atomic.Int64
	States          atomic.Int64
	IBD2Pairs       atomic.Int64
	FallbackWindows atomic.Int64
}

// RecordBuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBuild(groups int, duration time.Duration, err error) {
	b.BuildCount.Add(1)
	b.BuildTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.BuildErrors.Add(1)
		return
	}
	b.Groups.Store(int64(groups))
}

// RecordJob implements MetricsCollector.
func (b *BasicMetricsCollector) RecordJob(windows, states int, duration time.Duration, err error) {
	b.JobCount.Add(1)
	b.JobTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.JobErrors.Add(1)
		return
	}
	b.Windows.Add(int64(windows))
	b.States.Add(int64(states))
}

// RecordIBD2 implements MetricsCollector.
func (b *BasicMetricsCollector) RecordIBD2(pairs int) {
	b.IBD2Pairs.Add(int64(pairs))
}

// RecordFallback implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFallback(windows int) {
	b.FallbackWindows.Add(int64(windows))
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		BuildCount:      b.BuildCount.Load(),
		BuildErrors:     b.BuildErrors.Load(),
		Groups:          b.Groups.Load(),
		JobCount:        b.JobCount.Load(),
		JobErrors:       b.JobErrors.Load(),
		JobAvgNanos:     b.getAvgJobNanos(),
		Windows:         b.Windows.Load(),
		States:          b.States.Load(),
		IBD2Pairs:       b.IBD2Pairs.Load(),
		FallbackWindows: b.FallbackWindows.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgJobNanos() int64 {
	count := b.JobCount.Load()
	if count == 0 {
		return 0
	}
	return b.JobTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	BuildCount      int64
	BuildErrors     int64
	Groups          int64
	JobCount        int64
	JobErrors       int64
	JobAvgNanos     int64
	Windows         int64
	States          int64
	IBD2Pairs       int64
	FallbackWindows int64
}
