package servex

import (
	"context"
	"os"
	"os/signal"

	"go.eggybyte.com/servex/core/log"
)

// signalWatcher owns one instance-scoped OS signal subscription. It is armed
// when the server reaches Running with auto-shutdown enabled and disarmed as
// soon as Stop begins, so a repeated signal cannot trigger a second shutdown.
type signalWatcher struct {
	ch   chan os.Signal
	done chan struct{}
}

func watchSignals(signals []os.Signal, logger log.Logger, onSignal func()) *signalWatcher {
	w := &signalWatcher{
		ch:   make(chan os.Signal, 1),
		done: make(chan struct{}),
	}
	signal.Notify(w.ch, signals...)

	go func() {
		select {
		case sig := <-w.ch:
			logger.Info("received shutdown signal", log.Str("signal", sig.String()))
			onSignal()
		case <-w.done:
		}
	}()

	return w
}

func (w *signalWatcher) stop() {
	signal.Stop(w.ch)
	close(w.done)
}

// stopOnSignal is the watcher callback: it drives a full Stop and logs the
// outcome, since no caller is waiting on it.
func (s *Server) stopOnSignal() {
	if err := s.Stop(context.Background()); err != nil {
		s.logger.Error(err, "signal-initiated shutdown failed")
	}
}
