package bcsymbols

import (
	"context"
	"log/slog"
	"os"

	"github.com/ThaSiouL/bc-symbols-mcp/symbol"
)

// Logger wraps slog.Logger with engine-specific context.
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

// WithContainer adds a container locator field to the logger.
func (l *Logger) WithContainer(locator string) *Logger {
	return &Logger{
		Logger: l.Logger.With("container", locator),
	}
}

// WithKind adds an object kind field to the logger.
func (l *Logger) WithKind(kind symbol.Kind) *Logger {
	return &Logger{
		Logger: l.Logger.With("kind", kind.String()),
	}
}

// LogAdmit logs a container admission.
func (l *Logger) LogAdmit(ctx context.Context, locator string, children int) {
	l.DebugContext(ctx, "container admitted",
		"container", locator,
		"children", children,
	)
}

// LogEvict logs entries evicted to fit a store's memory ceiling.
func (l *Logger) LogEvict(ctx context.Context, store string, evicted int) {
	l.InfoContext(ctx, "entries evicted",
		"store", store,
		"evicted", evicted,
	)
}

// LogMaterialize logs a child materialization.
func (l *Logger) LogMaterialize(ctx context.Context, locator string, key symbol.Key, err error) {
	if err != nil {
		l.ErrorContext(ctx, "materialize failed",
			"container", locator,
			"key", key.String(),
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "materialize completed",
			"container", locator,
			"key", key.String(),
		)
	}
}

// LogSearch logs a search operation.
func (l *Logger) LogSearch(ctx context.Context, results int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "search completed",
			"results", results,
		)
	}
}

// LogRetract logs a container retraction from the search index.
func (l *Logger) LogRetract(ctx context.Context, containerID string, entries int) {
	l.DebugContext(ctx, "container retracted",
		"container", containerID,
		"entries", entries,
	)
}

// LogSweep logs a sweep of expired containers.
func (l *Logger) LogSweep(ctx context.Context, removed int) {
	if removed > 0 {
		l.InfoContext(ctx, "sweep removed expired containers",
			"removed", removed,
		)
	} else {
		l.DebugContext(ctx, "sweep found nothing to remove")
	}
}

// LogLoadBatch logs one progressive-load batch.
func (l *Logger) LogLoadBatch(ctx context.Context, taskID string, phase string, loaded, total int) {
	l.DebugContext(ctx, "load batch completed",
		"task", taskID,
		"phase", phase,
		"loaded", loaded,
		"total", total,
	)
}

// LogLoadDone logs a finished load task.
func (l *Logger) LogLoadDone(ctx context.Context, taskID string, loaded, failed int, canceled bool, err error) {
	switch {
	case err != nil:
		l.ErrorContext(ctx, "load failed",
			"task", taskID,
			"loaded", loaded,
			"failed", failed,
			"error", err,
		)
	case canceled:
		l.InfoContext(ctx, "load canceled",
			"task", taskID,
			"loaded", loaded,
		)
	case failed > 0:
		l.WarnContext(ctx, "load completed with failures",
			"task", taskID,
			"loaded", loaded,
			"failed", failed,
		)
	default:
		l.InfoContext(ctx, "load completed",
			"task", taskID,
			"loaded", loaded,
		)
	}
}
