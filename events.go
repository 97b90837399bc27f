package servex

import (
	"fmt"
	"net"
	"sort"
)

// EventKind identifies a lifecycle transition.
type EventKind string

const (
	// EventStart fires when the server enters Starting.
	EventStart EventKind = "start"

	// EventReady fires once the listener is bound and the state is Running.
	EventReady EventKind = "ready"

	// EventStopping fires when shutdown begins, before the drain.
	EventStopping EventKind = "stopping"

	// EventStop fires when the server reaches Stopped.
	EventStop EventKind = "stop"

	// EventError fires when a start or stop operation fails; Err carries the
	// triggering failure. The same error is also returned to the caller.
	EventError EventKind = "error"
)

// Event is the payload delivered to lifecycle observers.
type Event struct {
	Kind  EventKind
	State State
	Addr  net.Addr // Bound address, when one exists at emission time
	Err   error    // Non-nil only for EventError and failed EventStop
}

// Subscribe registers a lifecycle observer and returns an unsubscribe
// function. Observers are invoked synchronously in registration order;
// a panicking observer is recovered and logged so it cannot corrupt the
// state machine's transition.
func (s *Server) Subscribe(fn func(Event)) func() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	return func() {
		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		delete(s.subs, id)
	}
}

// emit delivers an event to all observers, recovering per-observer panics.
func (s *Server) emit(ev Event) {
	s.subsMu.RLock()
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	observers := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		observers = append(observers, s.subs[id])
	}
	s.subsMu.RUnlock()

	for _, fn := range observers {
		s.notifyObserver(fn, ev)
	}
}

func (s *Server) notifyObserver(fn func(Event), ev Event) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error(fmt.Errorf("panic: %v", r), "lifecycle observer panicked",
				"event", string(ev.Kind),
			)
		}
	}()
	fn(ev)
}
