// Package trackx provides a tracked network listener for graceful and forced
// shutdown.
//
// Overview:
//   - Responsibility: Bind a listener, serve HTTP/Connect traffic, and track every accepted session so shutdown can drain or force-close them
//   - Key Types: Tracker wrapping net.Listener and http.Server, Config for bind parameters
//   - Concurrency Model: All methods are safe for concurrent use; the session set is guarded against concurrent accept/close events and termination sweeps
//   - Error Semantics: Listen returns BIND_FAILED when the address cannot be bound; Close without a listener is a caller error
//   - Performance Notes: Session tracking is one map operation per connection state change
//
// Usage:
//
//	tracker := trackx.New(trackx.WithLogger(logger))
//	err := tracker.Listen(handler, trackx.Config{Host: "0.0.0.0", Port: 5000})
//	...
//	err = tracker.Close()          // graceful drain
//	tracker.DestroyAllSessions()   // forced termination
//	tracker.Dispose()              // release the handle
package trackx

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"go.eggybyte.com/servex/core/errors"
	"go.eggybyte.com/servex/core/log"
)

// Config holds bind parameters for one Listen call.
type Config struct {
	// Host is the bind host. Empty means all interfaces.
	Host string

	// Port is the bind port. Zero asks the OS for an ephemeral port.
	Port int

	// TLS enables TLS termination when non-nil.
	TLS *tls.Config

	// HandshakeTimeout bounds how long a new connection may take to present
	// its request headers. Zero disables the limit.
	HandshakeTimeout time.Duration

	// EnableH2C serves HTTP/2 over cleartext so gRPC and Connect clients
	// work without TLS. Ignored when TLS is configured, where HTTP/2 is
	// negotiated via ALPN.
	EnableH2C bool
}

// Tracker owns one listener and the set of sessions accepted through it.
type Tracker struct {
	logger log.Logger

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	addr     net.Addr
	sessions map[net.Conn]struct{}
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets the logger used for serve-loop diagnostics.
func WithLogger(logger log.Logger) Option {
	return func(t *Tracker) { t.logger = logger }
}

// New creates a Tracker with no listener.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		logger:   log.Nop(),
		sessions: make(map[net.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Listen binds host:port, installs session tracking, and serves the handler
// in a background goroutine. It returns once the OS has confirmed the bind;
// the resolved local address is cached for Addr. Bind failures return a
// BIND_FAILED error and leave the tracker unchanged.
//
// Sessions are tracked from TCP accept; a connection mid-TLS-handshake is
// already in the set, and forcing it closed is harmless.
func (t *Tracker) Listen(handler http.Handler, cfg Config) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.server != nil {
		return errors.New(errors.CodeInvalidTransition, "listener already active")
	}

	bindAddr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	listener, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return errors.Wrapf(errors.CodeBindFailed, "trackx.Listen", err, "bind %s failed", bindAddr)
	}

	if cfg.TLS != nil {
		listener = tls.NewListener(listener, cfg.TLS)
	} else if cfg.EnableH2C {
		handler = h2c.NewHandler(handler, &http2.Server{})
	}

	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: cfg.HandshakeTimeout,
		ConnState:         t.trackConn,
	}

	t.server = server
	t.listener = listener
	t.addr = listener.Addr()

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			t.logger.Error(err, "serve loop ended unexpectedly", log.Str("addr", bindAddr))
		}
	}()

	t.logger.Debug("listener bound", log.Str("addr", t.addr.String()), log.Bool("tls", cfg.TLS != nil))
	return nil
}

// trackConn maintains the live-session set from connection state events.
func (t *Tracker) trackConn(conn net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		t.mu.Lock()
		t.sessions[conn] = struct{}{}
		t.mu.Unlock()
	case http.StateClosed, http.StateHijacked:
		t.mu.Lock()
		delete(t.sessions, conn)
		t.mu.Unlock()
	}
}

// Close gracefully closes the listener: it stops accepting new connections
// and waits for in-flight sessions to finish on their own. The listener
// handle, cached address, and session set are not cleared; only Dispose does
// that. Calling Close with no active listener is a caller error.
func (t *Tracker) Close() error {
	t.mu.Lock()
	server := t.server
	t.mu.Unlock()

	if server == nil {
		return errors.New(errors.CodeInvalidTransition, "no active listener to close")
	}

	return server.Shutdown(context.Background())
}

// DestroyAllSessions forcibly terminates every tracked session immediately,
// regardless of in-flight work, and clears the set. Idempotent.
func (t *Tracker) DestroyAllSessions() {
	t.mu.Lock()
	conns := make([]net.Conn, 0, len(t.sessions))
	for conn := range t.sessions {
		conns = append(conns, conn)
	}
	t.sessions = make(map[net.Conn]struct{})
	t.mu.Unlock()

	for _, conn := range conns {
		conn.Close()
	}

	if len(conns) > 0 {
		t.logger.Warn("sessions force-closed", log.Int("sessions", len(conns)))
	}
}

// Dispose releases the listener handle and clears the cached address and
// session set, returning the tracker to its pre-Listen shape. Idempotent.
func (t *Tracker) Dispose() {
	t.mu.Lock()
	server := t.server
	t.server = nil
	t.listener = nil
	t.addr = nil
	t.sessions = make(map[net.Conn]struct{})
	t.mu.Unlock()

	if server != nil {
		server.Close()
	}
}

// Active reports whether a listener is currently held.
func (t *Tracker) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.server != nil
}

// Addr returns the resolved bound address, or nil when not bound.
func (t *Tracker) Addr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.addr
}

// Sessions returns the number of currently tracked sessions.
func (t *Tracker) Sessions() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}
