package servex

import (
	"context"

	"go.eggybyte.com/servex/core/errors"
	"go.eggybyte.com/servex/core/log"
	"go.eggybyte.com/servex/hookx"
	"go.eggybyte.com/servex/storex"
)

// initDatabase opens the configured database, verifies connectivity, and
// registers it with the health registry. Its close runs as the "database"
// shutdown hook.
func (s *Server) initDatabase(ctx context.Context) error {
	cfg := s.opts.Database
	if cfg == nil || cfg.DSN == "" {
		return nil
	}

	s.logger.Info("initializing database", log.Str("driver", cfg.Driver))

	store, err := storex.NewGORMStore(storex.GORMOptions{
		DSN:             cfg.DSN,
		Driver:          cfg.Driver,
		MaxIdleConns:    cfg.MaxIdleConns,
		MaxOpenConns:    cfg.MaxOpenConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		Logger:          s.logger,
	})
	if err != nil {
		return errors.Wrap(errors.CodeUnavailable, "servex.initDatabase", err)
	}

	pingCtx := ctx
	if cfg.PingTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.PingTimeout)
		defer cancel()
	}
	if err := store.Ping(pingCtx); err != nil {
		store.Close()
		return errors.Wrap(errors.CodeUnavailable, "servex.initDatabase", err)
	}

	if err := s.registry.Register("database", store); err != nil {
		store.Close()
		return err
	}
	s.store = store

	return s.hooks.Register(func(ctx context.Context) error {
		return s.registry.Close()
	}, hookx.WithName("database"))
}
