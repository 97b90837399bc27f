package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"go.eggybyte.com/servex/core/log"
	"go.eggybyte.com/servex/core/peer"
)

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WithWriter(&buf), WithColor(false))

	logger.Info("test message", "key", "value")

	output := buf.String()
	if !strings.Contains(output, "level=INFO") {
		t.Errorf("expected level=INFO, got: %s", output)
	}
	if !strings.Contains(output, `msg="test message"`) {
		t.Errorf("expected msg in output, got: %s", output)
	}
	if !strings.Contains(output, `key="value"`) {
		t.Errorf("expected key=\"value\" in output, got: %s", output)
	}
}

func TestFieldSorting(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WithWriter(&buf), WithColor(false))

	logger.Info("test", "zebra", "z", "alpha", "a", "beta", "b")

	output := buf.String()
	alphaPos := strings.Index(output, `alpha="a"`)
	betaPos := strings.Index(output, `beta="b"`)
	zebraPos := strings.Index(output, `zebra="z"`)

	if alphaPos == -1 || betaPos == -1 || zebraPos == -1 {
		t.Fatalf("missing fields in output: %s", output)
	}

	if alphaPos > betaPos || betaPos > zebraPos {
		t.Errorf("fields not sorted correctly: alpha=%d, beta=%d, zebra=%d\nOutput: %s",
			alphaPos, betaPos, zebraPos, output)
	}
}

func TestColorization(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WithWriter(&buf), WithColor(true))

	logger.Info("test")

	output := buf.String()
	if !strings.Contains(output, "\033[") {
		t.Errorf("expected ANSI color codes in output, got: %s", output)
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WithWriter(&buf), WithFormat(FormatJSON))

	logger.Info("json message", "key", "value")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not valid JSON: %v\nOutput: %s", err, buf.String())
	}
	if record["level"] != "INFO" {
		t.Errorf("expected level INFO, got: %v", record["level"])
	}
	if record["msg"] != "json message" {
		t.Errorf("expected msg, got: %v", record["msg"])
	}
	if record["key"] != "value" {
		t.Errorf("expected key in record, got: %v", record)
	}
}

func TestWithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WithWriter(&buf), WithColor(false))

	childLogger := logger.With("service", "test")
	childLogger.Info("message", "key", "value")

	output := buf.String()
	if !strings.Contains(output, `service="test"`) {
		t.Errorf("expected service=\"test\" in output: %s", output)
	}
	if !strings.Contains(output, `key="value"`) {
		t.Errorf("expected key=\"value\" in output: %s", output)
	}
}

func TestFieldHelpers(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WithWriter(&buf), WithColor(false))

	logger.Info("helpers", log.Str("name", "a"), log.Int("count", 3), log.Bool("ok", true))

	output := buf.String()
	if !strings.Contains(output, `name="a"`) {
		t.Errorf("expected name=\"a\" in output: %s", output)
	}
	if !strings.Contains(output, "count=3") {
		t.Errorf("expected count=3 in output: %s", output)
	}
	if !strings.Contains(output, "ok=true") {
		t.Errorf("expected ok=true in output: %s", output)
	}
}

func TestErrorLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WithWriter(&buf), WithColor(false))

	logger.Error(errors.New("boom"), "operation failed", "op", "test")

	output := buf.String()
	if !strings.Contains(output, "level=ERROR") {
		t.Errorf("expected level=ERROR in output: %s", output)
	}
	if !strings.Contains(output, `error="boom"`) {
		t.Errorf("expected error=\"boom\" in output: %s", output)
	}
	if !strings.Contains(output, `op="test"`) {
		t.Errorf("expected op=\"test\" in output: %s", output)
	}
}

func TestLogLevels(t *testing.T) {
	tests := []struct {
		name     string
		logLevel slog.Level
		logFunc  func(logger *Logger)
		expected string
	}{
		{
			name:     "debug disabled at info level",
			logLevel: slog.LevelInfo,
			logFunc:  func(l *Logger) { l.Debug("debug msg") },
			expected: "",
		},
		{
			name:     "info enabled at info level",
			logLevel: slog.LevelInfo,
			logFunc:  func(l *Logger) { l.Info("info msg") },
			expected: "level=INFO",
		},
		{
			name:     "warn enabled at info level",
			logLevel: slog.LevelInfo,
			logFunc:  func(l *Logger) { l.Warn("warn msg") },
			expected: "level=WARN",
		},
		{
			name:     "error enabled at info level",
			logLevel: slog.LevelInfo,
			logFunc:  func(l *Logger) { l.Error(nil, "error msg") },
			expected: "level=ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := New(
				WithWriter(&buf),
				WithColor(false),
				WithLevel(tt.logLevel),
			).(*Logger)

			tt.logFunc(logger)

			output := buf.String()
			if tt.expected == "" {
				if output != "" {
					t.Errorf("expected no output, got: %s", output)
				}
			} else {
				if !strings.Contains(output, tt.expected) {
					t.Errorf("expected %q in output, got: %s", tt.expected, output)
				}
			}
		})
	}
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	baseLogger := New(WithWriter(&buf), WithColor(false))

	ctx := peer.WithInfo(context.Background(), &peer.Info{
		RemoteAddr: "10.0.0.1:4242",
		RequestID:  "req-abc",
	})

	ctxLogger := FromContext(ctx, baseLogger)
	ctxLogger.Info("test message")

	output := buf.String()
	if !strings.Contains(output, `remote_addr="10.0.0.1:4242"`) {
		t.Errorf("expected remote_addr in output: %s", output)
	}
	if !strings.Contains(output, `request_id="req-abc"`) {
		t.Errorf("expected request_id in output: %s", output)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.expected {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func BenchmarkLogger(b *testing.B) {
	logger := New(WithWriter(&bytes.Buffer{}), WithColor(false))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.Info("benchmark", "iteration", i)
	}
}
