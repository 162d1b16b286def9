// Package resource governs memory and progress reporting for
// index builds and per-individual jobs.
//
// The Controller provides centralized management of two concerns:
//
//   - Memory: account the neighbor table and job scratch buffers against an
//     optional hard limit (non-blocking, fail-fast)
//   - Progress: throttle progress callbacks to at most one per interval
//
// # Memory Management
//
// Memory tracking uses a weighted semaphore for hard limits and atomic
// counters for usage tracking. AcquireMemory is non-blocking and returns
// ErrMemoryLimitExceeded immediately if the limit would be exceeded:
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes: 1 << 30, // 1GB limit
//	})
//
//	if err := rc.AcquireMemory(tableBytes); err != nil {
//	    // ErrMemoryLimitExceeded - fail the build
//	}
//	defer rc.ReleaseMemory(tableBytes)
//
// # Progress
//
// With a ProgressInterval, Progress runs the first callback and then at most
// one per interval. Without one, every callback runs:
//
//	rc.Progress(func() { logger.LogProgress(ctx, done, total, elapsed) })
//
// A nil *Controller is valid and imposes no limits.
package resource
