package storex

import (
	"context"
	"testing"

	"go.eggybyte.com/servex/core/errors"
)

type fakeStore struct {
	pingErr error
	closed  bool
}

func (f *fakeStore) Ping(ctx context.Context) error { return f.pingErr }
func (f *fakeStore) Close() error                   { f.closed = true; return nil }

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry()

	if err := r.Register("primary", &fakeStore{}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := r.Register("primary", &fakeStore{}); !errors.IsCode(err, errors.CodeAlreadyExists) {
		t.Errorf("duplicate Register() error = %v, want ALREADY_EXISTS", err)
	}
	if err := r.Register("", &fakeStore{}); !errors.IsCode(err, errors.CodeInvalidArgument) {
		t.Errorf("empty name Register() error = %v, want INVALID_ARGUMENT", err)
	}
	if err := r.Register("nil-store", nil); !errors.IsCode(err, errors.CodeInvalidArgument) {
		t.Errorf("nil Register() error = %v, want INVALID_ARGUMENT", err)
	}

	if got := r.List(); len(got) != 1 || got[0] != "primary" {
		t.Errorf("List() = %v, want [primary]", got)
	}
}

func TestRegistryUnregister(t *testing.T) {
	r := NewRegistry()
	if err := r.Unregister("missing"); !errors.IsCode(err, errors.CodeNotFound) {
		t.Errorf("Unregister() error = %v, want NOT_FOUND", err)
	}

	r.Register("primary", &fakeStore{})
	if err := r.Unregister("primary"); err != nil {
		t.Fatalf("Unregister() error = %v", err)
	}
	if _, ok := r.Get("primary"); ok {
		t.Error("Get() after unregister should report missing")
	}
}

func TestRegistryPing(t *testing.T) {
	r := NewRegistry()
	r.Register("healthy", &fakeStore{})
	if err := r.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}

	r.Register("broken", &fakeStore{pingErr: errors.New(errors.CodeInternal, "connection refused")})
	if err := r.Ping(context.Background()); !errors.IsCode(err, errors.CodeUnavailable) {
		t.Errorf("Ping() error = %v, want UNAVAILABLE", err)
	}
}

func TestRegistryClose(t *testing.T) {
	r := NewRegistry()
	a := &fakeStore{}
	b := &fakeStore{}
	r.Register("a", a)
	r.Register("b", b)

	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !a.closed || !b.closed {
		t.Error("Close() did not close all stores")
	}
	if got := r.List(); len(got) != 0 {
		t.Errorf("List() after Close = %v, want empty", got)
	}

	// Second close is a no-op.
	if err := r.Close(); err != nil {
		t.Errorf("repeated Close() error = %v", err)
	}
}
