package servex

import (
	"context"
	"net/http"

	"go.eggybyte.com/servex/core/errors"
	"go.eggybyte.com/servex/hookx"
	"go.eggybyte.com/servex/httpx"
	"go.eggybyte.com/servex/obsx"
)

// initTelemetry sets up the OpenTelemetry metrics provider with Prometheus
// export, publishes runtime and lifecycle gauges, and registers the
// "telemetry" shutdown hook. A provider failure is non-fatal: the server
// runs without metrics.
func (s *Server) initTelemetry(ctx context.Context) error {
	if !s.opts.EnableMetrics {
		return nil
	}

	provider, err := obsx.NewProvider(ctx, obsx.Options{
		ServiceName:    s.opts.ServiceName,
		ServiceVersion: s.opts.ServiceVersion,
	})
	if err != nil {
		s.logger.Error(err, "metrics provider init failed, continuing without metrics")
		return nil
	}
	s.otel = provider

	if err := provider.EnableRuntimeMetrics(ctx); err != nil {
		s.logger.Warn("runtime metrics registration failed", "error", err.Error())
	}

	err = provider.RegisterServerMetrics(
		func() int64 { return int64(s.State()) },
		func() int64 { return int64(s.tracker.Sessions()) },
	)
	if err != nil {
		s.logger.Warn("server metrics registration failed", "error", err.Error())
	}

	if s.store != nil {
		if err := provider.RegisterGORMMetrics("database", s.store.GetDB()); err != nil {
			s.logger.Warn("database metrics registration failed", "error", err.Error())
		}
	}

	// Close the provider after the database hook so pool gauges stay live
	// until the handles they watch are gone.
	hookOpts := []hookx.RegisterOption{hookx.WithName("telemetry")}
	if s.store != nil {
		hookOpts = append(hookOpts, hookx.WithDependencies("database"))
	}
	return s.hooks.Register(func(ctx context.Context) error {
		return provider.Shutdown(ctx)
	}, hookOpts...)
}

// mountBuiltins adds the plain-HTTP operational endpoints: liveness,
// readiness, and the Prometheus scrape handler.
func (s *Server) mountBuiltins(mux *http.ServeMux) {
	if s.opts.EnableHealth {
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			if err := s.registry.Ping(r.Context()); err != nil {
				httpx.WriteError(w, err)
				return
			}
			httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
		})

		mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
			if st := s.State(); st != StateRunning {
				httpx.WriteError(w, errors.Newf(errors.CodeUnavailable, "server is %s", st))
				return
			}
			if err := s.registry.Ping(r.Context()); err != nil {
				httpx.WriteError(w, err)
				return
			}
			httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		})
	}

	if s.otel != nil {
		mux.Handle("/metrics", s.otel.PrometheusHandler())
	}
}
