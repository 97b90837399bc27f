package servex

import (
	"context"
	"time"

	"go.eggybyte.com/servex/core/errors"
	"go.eggybyte.com/servex/core/log"
	"go.eggybyte.com/servex/hookx"
	"go.eggybyte.com/servex/trackx"
)

// orchestrator runs the four-phase shutdown sequence: notify observers, race
// the graceful close against the shutdown timeout, force-terminate sessions
// when the timer wins and policy allows, then run hooks and dispose the
// tracker. Entered only from Stopping.
type orchestrator struct {
	logger     log.Logger
	tracker    *trackx.Tracker
	hooks      *hookx.Executor
	timeout    time.Duration
	forceClose bool
	notify     func()
}

func (o *orchestrator) run(ctx context.Context) error {
	// Nothing listening means nothing to drain. Not an error, and no
	// phase runs.
	if !o.tracker.Active() {
		return nil
	}

	if o.notify != nil {
		o.notify()
	}

	closed := make(chan error, 1)
	go func() {
		closed <- o.tracker.Close()
	}()

	timer := time.NewTimer(o.timeout)
	defer timer.Stop()

	var closeErr error
	select {
	case err := <-closed:
		// The close won the race; its outcome is the caller's to see.
		closeErr = err
	case <-timer.C:
		o.logger.Warn("graceful close did not finish before the shutdown timeout",
			log.Dur("timeout", o.timeout),
			log.Int("sessions", o.tracker.Sessions()),
			log.Bool("force_close", o.forceClose),
		)
		if o.forceClose {
			o.tracker.DestroyAllSessions()
			// The close resolves shortly after its sessions are gone; its
			// error belongs to a race already decided, so it is only logged.
			go func() {
				if err := <-closed; err != nil {
					o.logger.Warn("listener close failed after forced termination", log.Any("error", err))
				}
			}()
		} else {
			// Policy says wait: shutdown pends on the slow sessions however
			// long they take.
			if err := <-closed; err != nil {
				o.logger.Warn("listener close failed after the timeout elapsed", log.Any("error", err))
			}
		}
	}

	hookErr := o.hooks.RunAll(ctx)
	o.tracker.Dispose()

	return errors.Join(closeErr, hookErr)
}
