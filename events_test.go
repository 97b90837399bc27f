package servex

import (
	"context"
	"net"
	"sync"
	"testing"

	"go.eggybyte.com/servex/core/errors"
	"go.eggybyte.com/servex/core/log"
)

// eventRecorder collects events across goroutines; observers may fire from
// the stop path of another goroutine.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) observe(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

func TestEventSequence(t *testing.T) {
	srv, err := New(Options{Logger: log.Nop()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	rec := &eventRecorder{}
	srv.Subscribe(rec.observe)

	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := srv.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	want := []EventKind{EventStart, EventReady, EventStopping, EventStop}
	got := rec.kinds()
	if len(got) != len(want) {
		t.Fatalf("event kinds = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.events[1].Addr == nil {
		t.Error("ready event should carry the bound address")
	}
	if rec.events[2].Addr == nil {
		t.Error("stopping event should carry the bound address")
	}
}

func TestStoppingEventPrecedesShutdownSignal(t *testing.T) {
	srv, err := New(Options{Logger: log.Nop()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	flippedAt := make(map[EventKind]bool)
	srv.Subscribe(func(ev Event) {
		select {
		case <-srv.ShutdownSignal():
			flippedAt[ev.Kind] = true
		default:
			flippedAt[ev.Kind] = false
		}
	})

	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := srv.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	// Observers of the stopping event see the signal still open; by the stop
	// event it has flipped.
	if flippedAt[EventStopping] {
		t.Error("shutdown signal flipped before the stopping event fired")
	}
	if !flippedAt[EventStop] {
		t.Error("shutdown signal not flipped by the stop event")
	}
}

func TestEventErrorOnBindFailure(t *testing.T) {
	blocker, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to occupy a port: %v", err)
	}
	defer blocker.Close()

	srv, err := New(Options{
		Logger: log.Nop(),
		Host:   "127.0.0.1",
		Port:   blocker.Addr().(*net.TCPAddr).Port,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	rec := &eventRecorder{}
	srv.Subscribe(rec.observe)

	startErr := srv.Start(context.Background())
	if startErr == nil {
		t.Fatal("Start() should fail on an occupied port")
	}

	kinds := rec.kinds()
	if len(kinds) != 2 || kinds[0] != EventStart || kinds[1] != EventError {
		t.Fatalf("event kinds = %v, want [start error]", kinds)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if !errors.IsCode(rec.events[1].Err, errors.CodeBindFailed) {
		t.Errorf("error event Err = %v, want BIND_FAILED", rec.events[1].Err)
	}
}

func TestUnsubscribe(t *testing.T) {
	srv, err := New(Options{Logger: log.Nop()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	rec := &eventRecorder{}
	unsubscribe := srv.Subscribe(rec.observe)
	unsubscribe()

	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer srv.Stop(context.Background())

	if got := rec.kinds(); len(got) != 0 {
		t.Errorf("unsubscribed observer received events: %v", got)
	}
}

func TestObserverPanicDoesNotCorruptTransitions(t *testing.T) {
	srv, err := New(Options{Logger: log.Nop()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	srv.Subscribe(func(ev Event) {
		panic("observer bug")
	})
	rec := &eventRecorder{}
	srv.Subscribe(rec.observe)

	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if srv.State() != StateRunning {
		t.Fatalf("State() = %v, want %v", srv.State(), StateRunning)
	}
	if err := srv.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if srv.State() != StateStopped {
		t.Fatalf("State() = %v, want %v", srv.State(), StateStopped)
	}

	// The well-behaved observer still saw the full sequence.
	if got := rec.kinds(); len(got) != 4 {
		t.Errorf("event kinds = %v, want 4 events", got)
	}
}
