// Package internal provides internal implementation details for storex.
package internal

import (
	"context"
	"sync"
	"time"

	"go.eggybyte.com/servex/core/errors"
)

// Store defines the interface for storage backends.
type Store interface {
	Ping(ctx context.Context) error
	Close() error
}

// Registry manages multiple storage connections and their health. Safe for
// concurrent use; shutdown hooks and health probes may race.
type Registry struct {
	mu     sync.RWMutex
	stores map[string]Store
}

// NewRegistry creates a new storage registry.
func NewRegistry() *Registry {
	return &Registry{
		stores: make(map[string]Store),
	}
}

// Register registers a storage backend with the given name.
func (r *Registry) Register(name string, store Store) error {
	if name == "" {
		return errors.New(errors.CodeInvalidArgument, "store name is required")
	}
	if store == nil {
		return errors.New(errors.CodeInvalidArgument, "store cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.stores[name]; exists {
		return errors.Newf(errors.CodeAlreadyExists, "store %s already registered", name)
	}

	r.stores[name] = store
	return nil
}

// Unregister removes a storage backend from the registry.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.stores[name]; !exists {
		return errors.Newf(errors.CodeNotFound, "store %s not found", name)
	}

	delete(r.stores, name)
	return nil
}

// Ping performs health checks on all registered storage backends with a
// shared timeout.
func (r *Registry) Ping(ctx context.Context) error {
	r.mu.RLock()
	stores := make(map[string]Store, len(r.stores))
	for name, store := range r.stores {
		stores[name] = store
	}
	r.mu.RUnlock()

	if len(stores) == 0 {
		return nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var errs []error
	for name, store := range stores {
		if err := store.Ping(pingCtx); err != nil {
			errs = append(errs, errors.Wrapf(errors.CodeUnavailable, "storex.Ping", err, "store %s ping failed", name))
		}
	}

	return errors.Join(errs...)
}

// Close closes all registered storage connections.
func (r *Registry) Close() error {
	r.mu.Lock()
	stores := r.stores
	r.stores = make(map[string]Store)
	r.mu.Unlock()

	var errs []error
	for name, store := range stores {
		if err := store.Close(); err != nil {
			errs = append(errs, errors.Wrapf(errors.CodeInternal, "storex.Close", err, "store %s close failed", name))
		}
	}

	return errors.Join(errs...)
}

// List returns the names of all registered stores.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.stores))
	for name := range r.stores {
		names = append(names, name)
	}
	return names
}

// Get returns a registered store by name.
func (r *Registry) Get(name string) (Store, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	store, exists := r.stores[name]
	return store, exists
}
