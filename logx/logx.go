// Package logx provides the slog-based implementation of the core/log
// contract.
//
// Overview:
//   - Responsibility: Structured logging with logfmt/JSON output and sorted fields
//   - Key Types: Options and functional Option configuration, log.Logger implementation
//   - Concurrency Model: Loggers are safe for concurrent use
//   - Error Semantics: No errors returned; logging failures are dropped
//   - Performance Notes: Fields are sorted once per record at emit time
//
// Usage:
//
//	logger := logx.New(logx.WithFormat(logx.FormatJSON), logx.WithLevel(slog.LevelDebug))
//	logger.Info("server ready", log.Str("addr", ":5000"))
package logx

import (
	"context"
	"io"
	"log/slog"
	"os"

	"go.eggybyte.com/servex/core/log"
	"go.eggybyte.com/servex/core/peer"
	"go.eggybyte.com/servex/logx/internal"
)

// Format selects the output encoding.
type Format string

const (
	// FormatLogfmt emits key=value pairs, one record per line.
	FormatLogfmt Format = "logfmt"
	// FormatJSON emits one JSON object per line.
	FormatJSON Format = "json"
)

// Options configures logger behavior.
type Options struct {
	Format           Format     // Output format: logfmt or json
	Level            slog.Level // Minimum level emitted
	Color            bool       // Colorize the level field (terminals only)
	Writer           io.Writer  // Output writer (default: os.Stderr)
	DisableTimestamp bool       // Omit the timestamp field
}

// Option mutates Options.
type Option func(*Options)

// WithFormat sets the output format.
func WithFormat(format Format) Option {
	return func(o *Options) { o.Format = format }
}

// WithLevel sets the minimum log level.
func WithLevel(level slog.Level) Option {
	return func(o *Options) { o.Level = level }
}

// WithColor enables level-field colorization.
func WithColor(enabled bool) Option {
	return func(o *Options) { o.Color = enabled }
}

// WithWriter sets the output writer.
func WithWriter(w io.Writer) Option {
	return func(o *Options) { o.Writer = w }
}

// WithTimestamp re-enables the timestamp field. Timestamps are off by
// default because container runtimes already prepend one.
func WithTimestamp(enabled bool) Option {
	return func(o *Options) { o.DisableTimestamp = !enabled }
}

// Logger implements core/log.Logger on top of the internal handler.
type Logger struct {
	handler *internal.Handler
	attrs   []slog.Attr
}

// New creates a Logger with the given options.
func New(opts ...Option) log.Logger {
	options := Options{
		Format:           FormatLogfmt,
		Level:            slog.LevelInfo,
		Writer:           os.Stderr,
		DisableTimestamp: true,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Writer == nil {
		options.Writer = os.Stderr
	}

	return &Logger{
		handler: internal.NewHandler(internal.Options{
			Format:           string(options.Format),
			Level:            options.Level,
			Color:            options.Color,
			DisableTimestamp: options.DisableTimestamp,
		}, options.Writer),
	}
}

// With returns a Logger carrying the given key-value pairs on every record.
func (l *Logger) With(kv ...any) log.Logger {
	attrs := make([]slog.Attr, 0, len(l.attrs)+len(kv))
	attrs = append(attrs, l.attrs...)
	attrs = append(attrs, internal.PairsToAttrs(kv)...)
	return &Logger{handler: l.handler, attrs: attrs}
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, kv ...any) {
	l.emit(slog.LevelDebug, msg, nil, kv)
}

// Info logs at info level.
func (l *Logger) Info(msg string, kv ...any) {
	l.emit(slog.LevelInfo, msg, nil, kv)
}

// Warn logs at warn level.
func (l *Logger) Warn(msg string, kv ...any) {
	l.emit(slog.LevelWarn, msg, nil, kv)
}

// Error logs at error level with the causing error, which may be nil.
func (l *Logger) Error(err error, msg string, kv ...any) {
	l.emit(slog.LevelError, msg, err, kv)
}

func (l *Logger) emit(level slog.Level, msg string, err error, kv []any) {
	attrs := make([]slog.Attr, 0, len(l.attrs)+len(kv)/2+1)
	attrs = append(attrs, l.attrs...)
	attrs = append(attrs, internal.PairsToAttrs(kv)...)
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	l.handler.Emit(level, msg, attrs)
}

// FromContext returns a logger enriched with peer information carried by the
// context. The base logger is returned unchanged when the context carries no
// peer info.
func FromContext(ctx context.Context, base log.Logger) log.Logger {
	info, ok := peer.FromContext(ctx)
	if !ok {
		return base
	}

	kv := make([]any, 0, 6)
	if info.RequestID != "" {
		kv = append(kv, "request_id", info.RequestID)
	}
	if info.RemoteAddr != "" {
		kv = append(kv, "remote_addr", info.RemoteAddr)
	}
	if len(kv) == 0 {
		return base
	}
	return base.With(kv...)
}

// ParseLevel converts a level string ("debug", "info", "warn", "error") to a
// slog.Level, defaulting to info for unknown values.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug", "DEBUG":
		return slog.LevelDebug
	case "warn", "WARN":
		return slog.LevelWarn
	case "error", "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
