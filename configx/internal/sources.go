// Package internal provides internal implementation details for configx.
//
// Overview:
//   - Responsibility: Implement configuration sources (Env, File, Static)
//   - Key Types: EnvSource, FileSource, StaticSource
//   - Concurrency Model: All sources are safe for concurrent use
//   - Error Semantics: Sources return errors for initialization and loading failures
//   - Performance Notes: File watching uses modification-time polling
package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.eggybyte.com/servex/core/log"
)

// Source describes a configuration source that can load and watch for updates.
type Source interface {
	Load(ctx context.Context) (map[string]string, error)
	Watch(ctx context.Context) (<-chan map[string]string, error)
}

// EnvOptions configures environment variable source behavior.
type EnvOptions struct {
	Prefix    string // Prefix for environment variables (e.g., "APP_")
	Lowercase bool   // Convert keys to lowercase
	Uppercase bool   // Convert keys to uppercase
}

// EnvSource loads configuration from environment variables.
type EnvSource struct {
	prefix    string
	lowercase bool
	uppercase bool
}

// NewEnvSource creates a new environment variable source.
func NewEnvSource(opts EnvOptions) Source {
	return &EnvSource{
		prefix:    opts.Prefix,
		lowercase: opts.Lowercase,
		uppercase: opts.Uppercase,
	}
}

// Load reads configuration from environment variables.
func (s *EnvSource) Load(ctx context.Context) (map[string]string, error) {
	config := make(map[string]string)

	for _, env := range os.Environ() {
		parts := strings.SplitN(env, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := parts[0]
		value := parts[1]

		if s.prefix != "" && !strings.HasPrefix(key, s.prefix) {
			continue
		}

		if s.prefix != "" {
			key = strings.TrimPrefix(key, s.prefix)
		}

		if s.lowercase {
			key = strings.ToLower(key)
		} else if s.uppercase {
			key = strings.ToUpper(key)
		}

		config[key] = value
	}

	return config, nil
}

// Watch provides a channel that never sends updates. Environment variables
// are static during process lifetime.
func (s *EnvSource) Watch(ctx context.Context) (<-chan map[string]string, error) {
	ch := make(chan map[string]string)
	go func() {
		defer close(ch)
		<-ctx.Done()
	}()
	return ch, nil
}

// FileOptions configures file source behavior.
type FileOptions struct {
	Watch    bool          // Watch file for changes
	Format   string        // File format: "json" (default: auto-detect)
	Interval time.Duration // Polling interval for file watching (default: 1s)
}

// FileSource loads configuration from a file.
type FileSource struct {
	path     string
	format   string
	watch    bool
	interval time.Duration
	logger   log.Logger
}

// NewFileSource creates a new file source.
func NewFileSource(path string, opts FileOptions) Source {
	format := opts.Format
	if format == "" {
		format = detectFileFormat(path)
	}

	interval := opts.Interval
	if interval == 0 {
		interval = time.Second
	}

	return &FileSource{
		path:     path,
		format:   format,
		watch:    opts.Watch,
		interval: interval,
		logger:   log.Nop(),
	}
}

// Load reads configuration from the file. A missing file yields an empty
// snapshot so file sources can be optional.
func (s *FileSource) Load(ctx context.Context) (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, fmt.Errorf("failed to read file %s: %w", s.path, err)
	}

	return parseConfigFile(data, s.format)
}

// Watch monitors the file for changes by polling its modification time.
func (s *FileSource) Watch(ctx context.Context) (<-chan map[string]string, error) {
	if !s.watch {
		ch := make(chan map[string]string)
		go func() {
			defer close(ch)
			<-ctx.Done()
		}()
		return ch, nil
	}

	ch := make(chan map[string]string)
	go func() {
		defer close(ch)

		var lastModTime time.Time
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				info, err := os.Stat(s.path)
				if err != nil {
					if !os.IsNotExist(err) {
						s.logger.Error(err, "failed to stat file", log.Str("path", s.path))
					}
					continue
				}

				if info.ModTime().After(lastModTime) {
					lastModTime = info.ModTime()

					config, err := s.Load(ctx)
					if err != nil {
						s.logger.Error(err, "failed to load file", log.Str("path", s.path))
						continue
					}

					select {
					case ch <- config:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return ch, nil
}

// StaticSource serves a fixed snapshot. Useful for tests and programmatic
// overrides.
type StaticSource struct {
	values map[string]string
}

// NewStaticSource creates a source backed by the given map.
func NewStaticSource(values map[string]string) Source {
	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return &StaticSource{values: copied}
}

// Load returns a copy of the static snapshot.
func (s *StaticSource) Load(ctx context.Context) (map[string]string, error) {
	snapshot := make(map[string]string, len(s.values))
	for k, v := range s.values {
		snapshot[k] = v
	}
	return snapshot, nil
}

// Watch provides a channel that never sends updates.
func (s *StaticSource) Watch(ctx context.Context) (<-chan map[string]string, error) {
	ch := make(chan map[string]string)
	go func() {
		defer close(ch)
		<-ctx.Done()
	}()
	return ch, nil
}

// detectFileFormat detects file format from extension.
func detectFileFormat(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		return "json"
	default:
		return "json" // Default to JSON
	}
}

// parseConfigFile parses configuration file content.
func parseConfigFile(data []byte, format string) (map[string]string, error) {
	switch format {
	case "json":
		return parseJSONConfig(data)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// parseJSONConfig parses a JSON object into a flat key-value map. Nested
// objects are flattened with "." separators; scalar values are stringified.
func parseJSONConfig(data []byte) (map[string]string, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON config: %w", err)
	}

	config := make(map[string]string)
	flattenJSON("", raw, config)
	return config, nil
}

func flattenJSON(prefix string, value map[string]any, out map[string]string) {
	for k, v := range value {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}

		switch typed := v.(type) {
		case map[string]any:
			flattenJSON(key, typed, out)
		case string:
			out[key] = typed
		case float64:
			if typed == float64(int64(typed)) {
				out[key] = strconv.FormatInt(int64(typed), 10)
			} else {
				out[key] = strconv.FormatFloat(typed, 'f', -1, 64)
			}
		case bool:
			out[key] = strconv.FormatBool(typed)
		case nil:
			// Null values are skipped.
		default:
			out[key] = fmt.Sprintf("%v", typed)
		}
	}
}
