package servex

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"connectrpc.com/connect"

	"go.eggybyte.com/servex/connectx"
	"go.eggybyte.com/servex/core/errors"
	"go.eggybyte.com/servex/core/log"
	"go.eggybyte.com/servex/hookx"
	"go.eggybyte.com/servex/internal"
	"go.eggybyte.com/servex/logx"
	"go.eggybyte.com/servex/obsx"
	"go.eggybyte.com/servex/storex"
	"go.eggybyte.com/servex/trackx"
)

// Server is the lifecycle controller. It owns the state machine, the session
// tracker, the shutdown hook executor, and the optional database and metrics
// providers. A Server goes through its lifecycle exactly once; create a new
// one for every start.
type Server struct {
	opts   Options
	logger log.Logger

	state atomic.Int32

	mu           sync.Mutex
	routes       []Route
	interceptors []connect.Interceptor
	protocols    []Protocol
	stopDone     chan struct{}
	stopErr      error

	hooks   *hookx.Executor
	tracker *trackx.Tracker
	app     *App

	// shutdown is closed when Stop begins. Request handlers observe it via
	// the drain interceptor; callers via ShutdownSignal.
	shutdown chan struct{}

	subsMu  sync.RWMutex
	subs    map[int]func(Event)
	nextSub int

	watcher  *signalWatcher
	otel     *obsx.Provider
	registry *storex.Registry
	store    storex.GORMStore
}

// New creates a Server from an immutable snapshot of opts. The returned
// server is in the Created state.
func New(opts Options) (*Server, error) {
	opts.applyDefaults()

	logger := opts.Logger
	if logger == nil {
		logger = logx.New(logx.WithFormat(logx.FormatLogfmt))
	}
	logger = logger.With(log.Str("service", opts.ServiceName))

	s := &Server{
		opts:     opts,
		logger:   logger,
		hooks:    hookx.New(hookx.WithLogger(logger)),
		tracker:  trackx.New(trackx.WithLogger(logger)),
		shutdown: make(chan struct{}),
		subs:     make(map[int]func(Event)),
		registry: storex.NewRegistry(),
	}
	s.state.Store(int32(StateCreated))
	return s, nil
}

// State returns the current lifecycle state.
func (s *Server) State() State {
	return State(s.state.Load())
}

// Addr returns the bound address, or nil outside Running and Stopping.
func (s *Server) Addr() net.Addr {
	return s.tracker.Addr()
}

// ShutdownSignal returns a channel closed when Stop begins. Long-lived
// request handlers receive the same channel through their context.
func (s *Server) ShutdownSignal() <-chan struct{} {
	return s.shutdown
}

// App returns the composer built during Start, or nil before it. Useful for
// resolving container-provided dependencies after startup.
func (s *Server) App() *App {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.app
}

// AddRoute appends a route registration function. Legal only while Created.
func (s *Server) AddRoute(route Route) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st := s.State(); st != StateCreated {
		return errors.Newf(errors.CodeInvalidTransition, "cannot add route in state %s, expected %s", st, StateCreated)
	}
	s.routes = append(s.routes, route)
	return nil
}

// AddInterceptor appends a Connect interceptor after the built-in stack.
// Legal only while Created.
func (s *Server) AddInterceptor(interceptor connect.Interceptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st := s.State(); st != StateCreated {
		return errors.Newf(errors.CodeInvalidTransition, "cannot add interceptor in state %s, expected %s", st, StateCreated)
	}
	s.interceptors = append(s.interceptors, interceptor)
	return nil
}

// AddProtocol appends an auxiliary protocol mounted after all routes. Legal
// only while Created.
func (s *Server) AddProtocol(protocol Protocol) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st := s.State(); st != StateCreated {
		return errors.Newf(errors.CodeInvalidTransition, "cannot add protocol in state %s, expected %s", st, StateCreated)
	}
	s.protocols = append(s.protocols, protocol)
	return nil
}

// Routes returns a copy of the registered route functions.
func (s *Server) Routes() []Route {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Route, len(s.routes))
	copy(out, s.routes)
	return out
}

// Interceptors returns a copy of the user-registered interceptors.
func (s *Server) Interceptors() []connect.Interceptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]connect.Interceptor, len(s.interceptors))
	copy(out, s.interceptors)
	return out
}

// Protocols returns a copy of the registered protocols.
func (s *Server) Protocols() []Protocol {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Protocol, len(s.protocols))
	copy(out, s.protocols)
	return out
}

// RegisterShutdownHook registers a shutdown action with the hook executor.
// Legal in every state except Stopped. Hooks run during phase four of the
// shutdown, after the drain has resolved.
func (s *Server) RegisterShutdownHook(action hookx.Action, opts ...hookx.RegisterOption) error {
	if s.State() == StateStopped {
		return errors.New(errors.CodeAlreadyStopped, "cannot register shutdown hook after the server has stopped")
	}
	return s.hooks.Register(action, opts...)
}

// Start binds the listener and transitions the server to Running. Legal only
// from Created. On failure the server transitions directly to Stopped, the
// error event fires, and the error is returned.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if st := s.State(); st != StateCreated {
		s.mu.Unlock()
		return errors.Newf(errors.CodeInvalidTransition, "cannot start in state %s, expected %s", st, StateCreated)
	}
	s.state.Store(int32(StateStarting))
	s.mu.Unlock()

	s.emit(Event{Kind: EventStart, State: StateStarting})

	handler, err := s.buildHandler(ctx)
	if err != nil {
		return s.failStart(ctx, err)
	}

	var tlsConf *tls.Config
	if s.opts.TLS != nil {
		tlsConf, err = s.opts.TLS.load()
		if err != nil {
			return s.failStart(ctx, err)
		}
	}

	err = s.tracker.Listen(handler, trackx.Config{
		Host:             s.opts.Host,
		Port:             s.opts.Port,
		TLS:              tlsConf,
		HandshakeTimeout: s.opts.HandshakeTimeout,
		EnableH2C:        tlsConf == nil && s.opts.AllowLegacy,
	})
	if err != nil {
		return s.failStart(ctx, err)
	}

	s.mu.Lock()
	s.state.Store(int32(StateRunning))
	s.mu.Unlock()

	if s.opts.AutoShutdown {
		s.watcher = watchSignals(s.opts.Signals, s.logger, s.stopOnSignal)
	}

	addr := s.tracker.Addr()
	s.logger.Info("server ready", log.Str("addr", addr.String()), log.Bool("tls", tlsConf != nil))
	s.emit(Event{Kind: EventReady, State: StateRunning, Addr: addr})
	return nil
}

// failStart releases anything the partial start acquired, moves the server
// to Stopped, and reports the failure on both channels.
func (s *Server) failStart(ctx context.Context, err error) error {
	if hookErr := s.hooks.RunAll(ctx); hookErr != nil {
		s.logger.Error(hookErr, "shutdown hooks failed during start rollback")
	}

	s.mu.Lock()
	s.state.Store(int32(StateStopped))
	s.mu.Unlock()

	s.logger.Error(err, "server start failed")
	s.emit(Event{Kind: EventError, State: StateStopped, Err: err})
	return err
}

// Stop drains the server and transitions it to Stopped. Legal only from
// Running; a Stop issued while another is in flight joins it and returns the
// same result. The terminal transition to Stopped happens even when the
// shutdown sequence fails.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	switch st := s.State(); st {
	case StateStopping:
		done := s.stopDone
		s.mu.Unlock()
		<-done
		return s.stopErr

	case StateRunning:
		s.state.Store(int32(StateStopping))
		s.stopDone = make(chan struct{})
		done := s.stopDone
		s.mu.Unlock()

		err := s.runShutdown(ctx)

		s.mu.Lock()
		s.stopErr = err
		s.state.Store(int32(StateStopped))
		s.mu.Unlock()
		close(done)

		if err != nil {
			s.emit(Event{Kind: EventError, State: StateStopped, Err: err})
		}
		s.emit(Event{Kind: EventStop, State: StateStopped, Err: err})
		s.logger.Info("server stopped")
		return err

	default:
		s.mu.Unlock()
		return errors.Newf(errors.CodeInvalidTransition, "cannot stop in state %s, expected %s", st, StateRunning)
	}
}

// runShutdown disarms the signal watcher and delegates to the orchestrator.
// The stopping event fires before the cancellation signal flips, so an
// observer of the event sees the signal still open.
func (s *Server) runShutdown(ctx context.Context) error {
	if s.watcher != nil {
		s.watcher.stop()
		s.watcher = nil
	}

	orch := &orchestrator{
		logger:     s.logger,
		tracker:    s.tracker,
		hooks:      s.hooks,
		timeout:    s.opts.ShutdownTimeout,
		forceClose: s.opts.ForceCloseOnTimeout,
		notify: func() {
			s.emit(Event{Kind: EventStopping, State: StateStopping, Addr: s.tracker.Addr()})
			close(s.shutdown)
		},
	}
	return orch.run(ctx)
}

// buildHandler initializes the database and metrics providers, builds the
// App, runs route and protocol registration, and mounts the built-in
// endpoints.
func (s *Server) buildHandler(ctx context.Context) (http.Handler, error) {
	if err := s.initDatabase(ctx); err != nil {
		return nil, err
	}
	if err := s.initTelemetry(ctx); err != nil {
		return nil, err
	}

	interceptors := connectx.DefaultInterceptors(connectx.Options{
		Logger:            s.logger,
		Otel:              s.otel,
		Headers:           connectx.DefaultHeaderMapping(),
		ShutdownSignal:    s.shutdown,
		RejectWhenDrained: s.opts.RejectWhenDraining,
		SlowRequestMillis: s.opts.SlowRequestMillis,
		DefaultTimeoutMs:  s.opts.DefaultTimeoutMs,
		EnableTimeout:     true,
	})

	s.mu.Lock()
	interceptors = append(interceptors, s.interceptors...)
	routes := make([]Route, len(s.routes))
	copy(routes, s.routes)
	protocols := make([]Protocol, len(s.protocols))
	copy(protocols, s.protocols)
	s.mu.Unlock()

	app := &App{
		mux:          http.NewServeMux(),
		logger:       s.logger,
		interceptors: interceptors,
		container:    internal.NewContainer(),
		legacy:       s.opts.AllowLegacy,
	}
	if s.store != nil {
		app.db = s.store.GetDB()
	}

	for _, route := range routes {
		if err := route(app); err != nil {
			return nil, errors.Wrap(errors.CodeInternal, "servex.buildHandler", err)
		}
	}
	for _, protocol := range protocols {
		if err := protocol.Mount(app); err != nil {
			return nil, errors.Wrap(errors.CodeInternal, "servex.buildHandler", err)
		}
	}

	s.mountBuiltins(app.mux)

	s.mu.Lock()
	s.app = app
	s.mu.Unlock()
	return app.mux, nil
}
