package logging

import (
	"log/slog"
	"sync/atomic"
)

var traceOn atomic.Bool

// SetTrace toggles the very chatty per-condition and per-poll logs.
func SetTrace(on bool) {
	traceOn.Store(on)
}

// Trace logs at DEBUG, but only while tracing is on.
func Trace(logger *slog.Logger, msg string, args ...any) {
	if traceOn.Load() {
		logger.Debug(msg, args...)
	}
}

// TraceDefault is Trace on the default logger.
func TraceDefault(msg string, args ...any) {
	if traceOn.Load() {
		slog.Debug(msg, args...)
	}
}
