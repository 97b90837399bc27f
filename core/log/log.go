// Package log defines the minimal structured logging interface shared by all
// servex packages.
//
// Overview:
//   - Responsibility: Stable logging contract decoupled from any log backend
//   - Key Types: Logger interface with structured key-value logging
//   - Concurrency Model: Logger implementations must be safe for concurrent use
//   - Error Semantics: Error method accepts the error as first parameter
//   - Performance Notes: Field helpers allocate one small pair slice each
//
// Usage:
//
//	logger.Info("listener bound", log.Str("addr", addr), log.Int("port", 5000))
package log

import "time"

// Logger is the structured logging contract. Implementations must be safe
// for concurrent use.
type Logger interface {
	// With returns a Logger that attaches the given key-value pairs to
	// every record it emits.
	With(kv ...any) Logger

	// Debug logs a debug message with optional key-value pairs.
	Debug(msg string, kv ...any)

	// Info logs an informational message with optional key-value pairs.
	Info(msg string, kv ...any)

	// Warn logs a warning message with optional key-value pairs.
	Warn(msg string, kv ...any)

	// Error logs an error message. The error may be nil when only the
	// message and fields matter.
	Error(err error, msg string, kv ...any)
}

// Str creates a string key-value pair.
func Str(k, v string) any {
	return []any{k, v}
}

// Int creates an integer key-value pair.
func Int(k string, v int) any {
	return []any{k, v}
}

// Bool creates a boolean key-value pair.
func Bool(k string, v bool) any {
	return []any{k, v}
}

// Dur creates a duration key-value pair.
func Dur(k string, v time.Duration) any {
	return []any{k, v}
}

// Any creates a key-value pair for an arbitrary value.
func Any(k string, v any) any {
	return []any{k, v}
}

// Nop returns a Logger that discards every record. Useful as a default when
// callers do not supply a logger.
func Nop() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) With(kv ...any) Logger             { return nopLogger{} }
func (nopLogger) Debug(msg string, kv ...any)       {}
func (nopLogger) Info(msg string, kv ...any)        {}
func (nopLogger) Warn(msg string, kv ...any)        {}
func (nopLogger) Error(e error, msg string, kv ...any) {}
