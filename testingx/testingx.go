// Package testingx provides shared test helpers: a recording logger and
// assertions over coded errors.
//
// Usage:
//
//	logger := testingx.NewRecordingLogger()
//	testingx.AssertError(t, err, errors.CodeCycleDetected)
package testingx

import (
	"strings"
	"sync"
	"testing"

	"go.eggybyte.com/servex/core/errors"
	"go.eggybyte.com/servex/core/log"
)

// Entry is one captured log record.
type Entry struct {
	Level   string
	Message string
	Fields  []any
	Err     error
}

// RecordingLogger implements log.Logger and captures every record for later
// inspection. Derived loggers from With share the same sink. Safe for
// concurrent use.
type RecordingLogger struct {
	sink   *recordSink
	fields []any
}

type recordSink struct {
	mu      sync.Mutex
	entries []Entry
}

// NewRecordingLogger creates an empty recording logger.
func NewRecordingLogger() *RecordingLogger {
	return &RecordingLogger{sink: &recordSink{}}
}

// With returns a derived logger sharing the same recording sink.
func (l *RecordingLogger) With(kv ...any) log.Logger {
	fields := make([]any, 0, len(l.fields)+len(kv))
	fields = append(fields, l.fields...)
	fields = append(fields, kv...)
	return &RecordingLogger{sink: l.sink, fields: fields}
}

func (l *RecordingLogger) Debug(msg string, kv ...any) { l.record("DEBUG", msg, nil, kv) }
func (l *RecordingLogger) Info(msg string, kv ...any)  { l.record("INFO", msg, nil, kv) }
func (l *RecordingLogger) Warn(msg string, kv ...any)  { l.record("WARN", msg, nil, kv) }

func (l *RecordingLogger) Error(err error, msg string, kv ...any) {
	l.record("ERROR", msg, err, kv)
}

func (l *RecordingLogger) record(level, msg string, err error, kv []any) {
	fields := make([]any, 0, len(l.fields)+len(kv))
	fields = append(fields, l.fields...)
	fields = append(fields, kv...)

	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.entries = append(l.sink.entries, Entry{Level: level, Message: msg, Fields: fields, Err: err})
}

// Entries returns a copy of every record captured so far.
func (l *RecordingLogger) Entries() []Entry {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	out := make([]Entry, len(l.sink.entries))
	copy(out, l.sink.entries)
	return out
}

// Logged reports whether a record at the given level contains substr in its
// message.
func (l *RecordingLogger) Logged(level, substr string) bool {
	for _, e := range l.Entries() {
		if e.Level == level && strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

// AssertError fails the test unless err carries the expected code.
func AssertError(t *testing.T, err error, want errors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s, got nil", want)
	}
	if got := errors.CodeOf(err); got != want {
		t.Errorf("error code = %s, want %s (err: %v)", got, want, err)
	}
}

// AssertNoError fails the test when err is non-nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
