// Package servex provides a lifecycle controller for Connect/gRPC servers
// with dependency-ordered shutdown hooks, session tracking, and graceful
// shutdown with a bounded drain.
//
// Overview:
//   - Responsibility: Own the Created → Starting → Running → Stopping → Stopped
//     state machine for one server instance, including signal handling and a
//     four-phase shutdown sequence
//   - Key Types: Server for the controller, Options for configuration, App for
//     route registration, Protocol for health/reflection services
//   - Concurrency Model: All Server methods are safe for concurrent use;
//     concurrent Stop calls join one shutdown sequence
//   - Error Semantics: Wrong-state calls fail with INVALID_TRANSITION; bind
//     failures with BIND_FAILED; hook failures are aggregated, never dropped
//
// Usage:
//
//	srv, err := servex.New(servex.DefaultOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	srv.AddRoute(func(app *servex.App) error {
//	    path, handler := greetv1connect.NewGreeterServiceHandler(
//	        greeter,
//	        connect.WithInterceptors(app.Interceptors()...),
//	    )
//	    app.Handle(path, handler)
//	    return nil
//	})
//	srv.AddProtocol(servex.Health())
//	srv.AddProtocol(servex.Reflection())
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer srv.Stop(context.Background())
//
// The one-call form servex.Run combines New, Start, and signal-driven Stop.
package servex
