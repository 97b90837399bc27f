// Package internal contains Connect interceptor implementations.
package internal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"connectrpc.com/connect"

	"go.eggybyte.com/servex/core/errors"
	"go.eggybyte.com/servex/core/log"
	"go.eggybyte.com/servex/core/peer"
)

// HeaderMapping defines header to peer-field mapping.
type HeaderMapping struct {
	RequestID    string
	RealIP       string
	ForwardedFor string
	UserAgent    string
}

// LoggingOptions holds configuration for the logging interceptor.
type LoggingOptions struct {
	SlowRequestMillis int64
}

// RecoveryInterceptor converts panics in handlers to INTERNAL errors so a
// panicking RPC cannot take down the serve loop.
func RecoveryInterceptor(logger log.Logger) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (resp connect.AnyResponse, err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error(nil, "panic recovered",
						log.Str("procedure", req.Spec().Procedure),
						log.Str("panic", fmt.Sprintf("%v", r)),
					)
					err = connect.NewError(connect.CodeInternal, fmt.Errorf("internal error"))
				}
			}()
			return next(ctx, req)
		}
	}
}

// TimeoutInterceptor bounds every RPC with a default deadline unless the
// caller already set a shorter one.
func TimeoutInterceptor(defaultTimeoutMs int64) connect.UnaryInterceptorFunc {
	timeout := time.Duration(defaultTimeoutMs) * time.Millisecond
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if _, ok := ctx.Deadline(); !ok && timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			return next(ctx, req)
		}
	}
}

// PeerInterceptor extracts peer information from request headers and the
// transport and injects it into the context for handlers and logging.
func PeerInterceptor(headers HeaderMapping) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			info := &peer.Info{
				RemoteAddr: req.Peer().Addr,
				RequestID:  req.Header().Get(headers.RequestID),
				UserAgent:  req.Header().Get(headers.UserAgent),
			}

			if realIP := req.Header().Get(headers.RealIP); realIP != "" {
				info.RemoteAddr = realIP
			} else if forwardedFor := req.Header().Get(headers.ForwardedFor); forwardedFor != "" {
				if firstIP := strings.TrimSpace(strings.Split(forwardedFor, ",")[0]); firstIP != "" {
					info.RemoteAddr = firstIP
				}
			}

			return next(peer.WithInfo(ctx, info), req)
		}
	}
}

// DrainInterceptor makes the server's shutdown signal observable by handlers
// through the context, so long-lived calls can end early. When reject is set,
// new RPCs arriving after the signal flips fail with UNAVAILABLE instead of
// being served.
func DrainInterceptor(signal <-chan struct{}, reject bool) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if reject {
				select {
				case <-signal:
					return nil, connect.NewError(connect.CodeUnavailable, fmt.Errorf("server is shutting down"))
				default:
				}
			}
			return next(peer.WithShutdownSignal(ctx, signal), req)
		}
	}
}

// ErrorMappingInterceptor converts core/errors codes to Connect error codes
// so clients see meaningful statuses. Errors that are already Connect errors
// pass through unchanged.
func ErrorMappingInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			resp, err := next(ctx, req)
			if err == nil {
				return resp, nil
			}
			if _, ok := err.(*connect.Error); ok {
				return resp, err
			}
			return resp, connect.NewError(connectCodeOf(err), err)
		}
	}
}

// LoggingInterceptor emits one structured record per request, flagging slow
// requests at warn level.
func LoggingInterceptor(logger log.Logger, opts LoggingOptions) connect.UnaryInterceptorFunc {
	slowThreshold := time.Duration(opts.SlowRequestMillis) * time.Millisecond
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			startTime := time.Now()

			resp, err := next(ctx, req)

			duration := time.Since(startTime)
			fields := []any{
				log.Str("procedure", req.Spec().Procedure),
				log.Dur("duration", duration),
			}
			if info, ok := peer.FromContext(ctx); ok && info.RequestID != "" {
				fields = append(fields, log.Str("request_id", info.RequestID))
			}

			switch {
			case err != nil:
				logger.Error(err, "request failed", fields...)
			case slowThreshold > 0 && duration >= slowThreshold:
				logger.Warn("slow request", fields...)
			default:
				logger.Info("request completed", fields...)
			}

			return resp, err
		}
	}
}

// connectCodeOf maps core/errors codes to Connect error codes.
func connectCodeOf(err error) connect.Code {
	switch errors.CodeOf(err) {
	case errors.CodeInvalidArgument, errors.CodeInvalidTransition, errors.CodeCycleDetected:
		return connect.CodeInvalidArgument
	case errors.CodeNotFound:
		return connect.CodeNotFound
	case errors.CodeAlreadyExists:
		return connect.CodeAlreadyExists
	case errors.CodePermissionDenied:
		return connect.CodePermissionDenied
	case errors.CodeUnauthenticated:
		return connect.CodeUnauthenticated
	case errors.CodeUnavailable, errors.CodeAlreadyStopped:
		return connect.CodeUnavailable
	case errors.CodeDeadlineExceeded:
		return connect.CodeDeadlineExceeded
	case errors.CodeUnimplemented:
		return connect.CodeUnimplemented
	default:
		return connect.CodeInternal
	}
}
