package servex

import (
	"context"

	"go.eggybyte.com/servex/core/errors"
)

// Run is the one-call form: it creates a server with signal-driven shutdown
// enabled, registers the given routes, starts it, and blocks until the
// context is cancelled or a shutdown signal arrives. The returned error is
// the start failure or the shutdown outcome.
func Run(ctx context.Context, opts Options, routes ...Route) error {
	opts.AutoShutdown = true

	srv, err := New(opts)
	if err != nil {
		return err
	}

	for _, route := range routes {
		if err := srv.AddRoute(route); err != nil {
			return err
		}
	}

	if err := srv.Start(ctx); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case <-srv.ShutdownSignal():
		// A signal-initiated stop is already in flight; Stop below joins it.
	}

	err = srv.Stop(context.Background())
	if errors.IsCode(err, errors.CodeInvalidTransition) && srv.State() == StateStopped {
		// The signal-initiated stop finished before we could join it; report
		// its outcome instead of the transition error.
		srv.mu.Lock()
		defer srv.mu.Unlock()
		return srv.stopErr
	}
	return err
}
