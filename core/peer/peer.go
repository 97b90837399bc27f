// Package peer provides per-request peer metadata and shutdown-signal context
// management.
//
// Overview:
//   - Responsibility: Store and retrieve peer info and the server shutdown signal from context
//   - Key Types: Info for peer data, context accessors for the shutdown signal
//   - Concurrency Model: All functions are safe for concurrent use
//   - Error Semantics: Functions return a boolean to indicate presence of data
//   - Performance Notes: Minimal allocations, context-based storage
//
// Usage:
//
//	ctx := peer.WithInfo(ctx, &peer.Info{RemoteAddr: "10.0.0.1:52114"})
//	if p, ok := peer.FromContext(ctx); ok { ... }
//	select {
//	case <-peer.ShutdownSignal(ctx):
//	    // server is draining; finish up
//	default:
//	}
package peer

import (
	"context"
)

// Info describes the remote end of one request.
type Info struct {
	RemoteAddr string // Client address as reported by the transport
	RequestID  string // Request identifier for correlation, if present
	UserAgent  string // Client user agent string
	TLS        bool   // Whether the connection arrived over TLS
}

type contextKey string

const (
	infoKey   contextKey = "peer"
	signalKey contextKey = "shutdown-signal"
)

// WithInfo stores peer information in the context.
func WithInfo(ctx context.Context, p *Info) context.Context {
	return context.WithValue(ctx, infoKey, p)
}

// FromContext retrieves peer information from the context.
func FromContext(ctx context.Context) (*Info, bool) {
	p, ok := ctx.Value(infoKey).(*Info)
	return p, ok
}

// WithShutdownSignal attaches the server's shutdown signal to the context so
// long-lived handlers can observe a drain request. The signal is advisory:
// nothing is terminated by it.
func WithShutdownSignal(ctx context.Context, signal <-chan struct{}) context.Context {
	return context.WithValue(ctx, signalKey, signal)
}

// ShutdownSignal returns the shutdown signal attached to the context, or a
// nil channel (blocks forever) when none is attached. The returned channel is
// closed once the owning server begins stopping.
func ShutdownSignal(ctx context.Context) <-chan struct{} {
	signal, _ := ctx.Value(signalKey).(<-chan struct{})
	return signal
}

// Draining reports whether the shutdown signal attached to the context has
// already been flipped.
func Draining(ctx context.Context) bool {
	select {
	case <-ShutdownSignal(ctx):
		return true
	default:
		return false
	}
}
