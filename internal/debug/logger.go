// Package debug provides debug logging for the compiler stages using log/slog.
package debug

import (
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

var (
	// logger is the global debug logger instance
	logger *slog.Logger
	// enabled indicates if debug logging is enabled
	enabled bool
	// mu protects the logger and enabled flag
	mu sync.RWMutex
)

func init() {
	// Library callers that never call Init still get a usable, silent logger.
	Init(false)
}

// Init initializes the debug logger on stderr.
// If enable is false, debug logs are silently discarded.
func Init(enable bool) {
	InitWriter(os.Stderr, enable)
}

// InitWriter initializes the debug logger on w.
func InitWriter(w io.Writer, enable bool) {
	mu.Lock()
	defer mu.Unlock()

	enabled = enable

	level := slog.LevelDebug
	if !enable {
		// Higher than any level actually logged.
		level = slog.LevelError + 1
	}
	logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Enabled returns whether debug logging is enabled
func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

func current() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Debug logs a debug message
func Debug(msg string, args ...any) { current().Debug(msg, args...) }

// Info logs an info message
func Info(msg string, args ...any) { current().Info(msg, args...) }

// Warn logs a warning message
func Warn(msg string, args ...any) { current().Warn(msg, args...) }

// Error logs an error message
func Error(msg string, args ...any) { current().Error(msg, args...) }

// With returns a logger with the given attributes
func With(args ...any) *slog.Logger { return current().With(args...) }

// Logger returns the underlying slog.Logger instance
func Logger() *slog.Logger { return current() }

// Stage logs the start of a compiler stage and returns a function that logs
// its completion with the elapsed time and any extra attributes.
func Stage(name string, args ...any) func(args ...any) {
	start := time.Now()
	l := current().With("stage", name)
	l.Debug("stage started", args...)
	return func(done ...any) {
		l.Debug("stage finished", append(done, "elapsed", time.Since(start))...)
	}
}
