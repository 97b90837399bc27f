// Package storex provides storage interfaces and a connection registry whose
// lifetime is tied to the server's shutdown hooks.
//
// Overview:
//   - Responsibility: Define storage interfaces and manage connection health and closure
//   - Key Types: Store interface, GORMStore interface, Registry for management
//   - Concurrency Model: Registry is safe for concurrent use
//   - Error Semantics: Functions return errors for failure cases
//   - Performance Notes: Health checks fan out with a shared timeout
//
// Usage:
//
//	registry := storex.NewRegistry()
//	registry.Register("main", store)
//	server.RegisterShutdownHook(func(ctx context.Context) error {
//	  return registry.Close()
//	}, hookx.WithName("database"))
package storex

import (
	"context"
	"time"

	"gorm.io/gorm"

	"go.eggybyte.com/servex/core/log"
	"go.eggybyte.com/servex/storex/internal"
)

// Store defines the interface for storage backends.
// Implementations must be safe for concurrent use.
type Store interface {
	// Ping checks if the storage backend is healthy.
	Ping(ctx context.Context) error

	// Close closes the storage connection.
	Close() error
}

// GORMStore extends Store with access to the underlying GORM handle.
type GORMStore interface {
	Store
	// GetDB returns the underlying GORM database instance, safe for
	// concurrent use.
	GetDB() *gorm.DB
}

// Registry manages multiple storage connections and their health.
type Registry struct {
	impl *internal.Registry
}

// NewRegistry creates a new storage registry.
func NewRegistry() *Registry {
	return &Registry{impl: internal.NewRegistry()}
}

// Register registers a storage backend with the given name.
func (r *Registry) Register(name string, store Store) error {
	return r.impl.Register(name, store)
}

// Unregister removes a storage backend from the registry.
func (r *Registry) Unregister(name string) error {
	return r.impl.Unregister(name)
}

// Ping performs health checks on all registered storage backends.
func (r *Registry) Ping(ctx context.Context) error {
	return r.impl.Ping(ctx)
}

// Close closes all registered storage connections.
func (r *Registry) Close() error {
	return r.impl.Close()
}

// List returns the names of all registered stores.
func (r *Registry) List() []string {
	return r.impl.List()
}

// Get returns a registered store by name.
func (r *Registry) Get(name string) (Store, bool) {
	return r.impl.Get(name)
}

// GORMOptions holds configuration for GORM database connections.
type GORMOptions struct {
	DSN             string        // Database connection string
	Driver          string        // Database driver (mysql, postgres, sqlite)
	MaxIdleConns    int           // Maximum number of idle connections
	MaxOpenConns    int           // Maximum number of open connections
	ConnMaxLifetime time.Duration // Maximum connection lifetime
	Logger          log.Logger    // Logger for database operations
}

// NewGORMStore creates a new GORM store with the given options.
func NewGORMStore(opts GORMOptions) (GORMStore, error) {
	return internal.NewGORMStoreFromOptions(internal.GORMOptions{
		DSN:             opts.DSN,
		Driver:          opts.Driver,
		MaxIdleConns:    opts.MaxIdleConns,
		MaxOpenConns:    opts.MaxOpenConns,
		ConnMaxLifetime: opts.ConnMaxLifetime,
		Logger:          opts.Logger,
	})
}

// NewMySQLStore creates a new MySQL store with the given DSN.
func NewMySQLStore(dsn string, logger log.Logger) (GORMStore, error) {
	return NewGORMStore(GORMOptions{DSN: dsn, Driver: "mysql", Logger: logger})
}

// NewPostgresStore creates a new PostgreSQL store with the given DSN.
func NewPostgresStore(dsn string, logger log.Logger) (GORMStore, error) {
	return NewGORMStore(GORMOptions{DSN: dsn, Driver: "postgres", Logger: logger})
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
func NewSQLiteStore(dsn string, logger log.Logger) (GORMStore, error) {
	return NewGORMStore(GORMOptions{DSN: dsn, Driver: "sqlite", Logger: logger})
}
