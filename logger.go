package condset

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with condset-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithIndividual adds the target individual to the logger.
func (l *Logger) WithIndividual(ind int, name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("individual", ind, "sample", name),
	}
}

// WithWindow adds a window index field to the logger.
func (l *Logger) WithWindow(w int) *Logger {
	return &Logger{
		Logger: l.Logger.With("window", w),
	}
}

// LogInitialize logs the site selection summary.
func (l *Logger) LogInitialize(ctx context.Context, evaluated, groups, selected int, elapsed time.Duration) {
	l.InfoContext(ctx, "PBWT initialization",
		"eval", evaluated,
		"groups", groups,
		"select", selected,
		"elapsed", elapsed,
	)
}

// LogBuild logs the neighbor table sweep.
func (l *Logger) LogBuild(ctx context.Context, groups, depth int, elapsed time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "PBWT sweep failed",
			"groups", groups,
			"depth", depth,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "PBWT sweep completed",
			"groups", groups,
			"depth", depth,
			"elapsed", elapsed,
		)
	}
}

// LogIBD2 logs a banned IBD2 pair. Use with WithIndividual and WithWindow.
func (l *Logger) LogIBD2(ctx context.Context, other string, overlap float64) {
	l.DebugContext(ctx, "IBD2 pair removed",
		"other", other,
		"het_overlap", overlap,
	)
}

// LogFallback logs a window that had to be filled with random states.
func (l *Logger) LogFallback(ctx context.Context, states int) {
	l.WarnContext(ctx, "no PBWT states found, using random states",
		"states", states,
	)
}

// LogProgress logs runner progress.
func (l *Logger) LogProgress(ctx context.Context, done, total int, elapsed time.Duration) {
	l.InfoContext(ctx, "jobs progress",
		"done", done,
		"total", total,
		"elapsed", elapsed,
	)
}
