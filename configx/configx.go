// Package configx provides unified configuration management with hot reloading.
//
// Overview:
//   - Responsibility: Manage configuration from multiple sources with hot updates
//   - Key Types: Source interface, Manager interface, Options for configuration
//   - Concurrency Model: Manager is safe for concurrent use, sources must be thread-safe
//   - Error Semantics: Functions return errors for initialization and binding failures
//   - Performance Notes: Supports debouncing and efficient configuration merging
//
// Usage:
//
//	sources := []configx.Source{
//	  configx.NewEnvSource(configx.EnvOptions{}),
//	  configx.NewFileSource("config.json", configx.FileOptions{}),
//	}
//	manager, err := configx.NewManager(ctx, configx.Options{
//	  Logger: logger,
//	  Sources: sources,
//	  Debounce: 200 * time.Millisecond,
//	})
//	var cfg ServerConfig
//	err = manager.Bind(&cfg)
package configx

import (
	"context"
	"fmt"
	"time"

	"go.eggybyte.com/servex/configx/internal"
	"go.eggybyte.com/servex/core/log"
)

// Source describes a configuration source that can load and watch for updates.
// Implementations must be thread-safe and honor context cancellation.
type Source interface {
	// Load reads the current configuration snapshot for initial merge.
	// Returns a map of key-value pairs.
	Load(ctx context.Context) (map[string]string, error)

	// Watch starts monitoring for updates and publishes snapshots via the returned channel.
	// The channel should be closed when the context is cancelled to avoid goroutine leaks.
	Watch(ctx context.Context) (<-chan map[string]string, error)
}

// Manager manages multiple configuration sources and provides unified access.
// The manager merges configurations with later sources taking precedence.
type Manager interface {
	// Snapshot returns a copy of the current merged configuration.
	Snapshot() map[string]string

	// Value returns the value for a key and whether it exists.
	Value(key string) (string, bool)

	// Bind decodes the configuration into a struct with env tags and default values.
	Bind(target any, opts ...BindOption) error

	// OnUpdate subscribes to configuration update events.
	// Returns an unsubscribe function.
	OnUpdate(fn func(snapshot map[string]string)) (unsubscribe func())
}

// Options holds configuration for the manager.
type Options struct {
	Logger   log.Logger    // Logger for configuration operations
	Sources  []Source      // Configuration sources (later sources override earlier ones)
	Debounce time.Duration // Debounce duration for updates (default: 200ms)
}

// BindOption configures binding behavior.
type BindOption interface {
	apply(*bindConfig)
}

type bindConfig struct {
	onUpdate func()
}

type bindOptionFunc func(*bindConfig)

func (f bindOptionFunc) apply(cfg *bindConfig) {
	f(cfg)
}

// WithUpdateCallback sets a callback to be invoked when configuration changes.
func WithUpdateCallback(fn func()) BindOption {
	return bindOptionFunc(func(cfg *bindConfig) {
		cfg.onUpdate = fn
	})
}

// manager wraps the internal manager implementation.
type manager struct {
	impl *internal.ManagerImpl
}

// NewManager creates a new configuration manager.
//
// Parameters:
//   - ctx: context for manager initialization
//   - opts: manager configuration options
//
// Returns:
//   - Manager: initialized manager instance
//   - error: initialization error if any
//
// Concurrency:
//   - Safe to call from multiple goroutines
func NewManager(ctx context.Context, opts Options) (Manager, error) {
	if opts.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if len(opts.Sources) == 0 {
		return nil, fmt.Errorf("at least one source is required")
	}

	internalSources := make([]internal.Source, len(opts.Sources))
	for i, src := range opts.Sources {
		internalSources[i] = src
	}

	debounce := opts.Debounce
	if debounce == 0 {
		debounce = 200 * time.Millisecond
	}

	impl, err := internal.NewManager(opts.Logger, internalSources, debounce)
	if err != nil {
		return nil, err
	}

	if err := impl.Initialize(ctx); err != nil {
		return nil, err
	}

	return &manager{impl: impl}, nil
}

// Snapshot returns a copy of the current configuration.
func (m *manager) Snapshot() map[string]string {
	return m.impl.Snapshot()
}

// Value returns the value for a key and whether it exists.
func (m *manager) Value(key string) (string, bool) {
	return m.impl.Value(key)
}

// Bind decodes the configuration into a struct.
func (m *manager) Bind(target any, opts ...BindOption) error {
	if target == nil {
		return fmt.Errorf("target cannot be nil")
	}

	var cfg bindConfig
	for _, opt := range opts {
		opt.apply(&cfg)
	}

	return m.impl.Bind(target, internal.BindConfig{
		OnUpdate: cfg.onUpdate,
	})
}

// OnUpdate subscribes to configuration update events.
func (m *manager) OnUpdate(fn func(snapshot map[string]string)) func() {
	return m.impl.OnUpdate(fn)
}

// --- Public wrappers for source constructors (delegating to internal) ---

// NewEnvSource creates an environment variable configuration source.
func NewEnvSource(opts EnvOptions) Source {
	return internal.NewEnvSource(internal.EnvOptions{
		Prefix:    opts.Prefix,
		Lowercase: opts.Lowercase,
		Uppercase: opts.Uppercase,
	})
}

// NewFileSource creates a file-based configuration source.
func NewFileSource(path string, opts FileOptions) Source {
	return internal.NewFileSource(path, internal.FileOptions{
		Watch:    opts.Watch,
		Format:   opts.Format,
		Interval: opts.Interval,
	})
}

// NewStaticSource creates a source backed by a fixed map, useful for tests
// and programmatic overrides.
func NewStaticSource(values map[string]string) Source {
	return internal.NewStaticSource(values)
}

// DefaultManager creates a configuration manager reading environment
// variables only.
func DefaultManager(ctx context.Context, logger log.Logger) (Manager, error) {
	return NewManager(ctx, Options{
		Logger:   logger,
		Sources:  []Source{NewEnvSource(EnvOptions{})},
		Debounce: 200 * time.Millisecond,
	})
}

// EnvOptions configures environment variable source behavior.
type EnvOptions struct {
	Prefix    string
	Lowercase bool
	Uppercase bool
}

// FileOptions configures file source behavior.
type FileOptions struct {
	Watch    bool
	Format   string
	Interval time.Duration
}
