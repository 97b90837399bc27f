package internal

import (
	"context"
	"fmt"
	"testing"

	"connectrpc.com/connect"

	"go.eggybyte.com/servex/core/errors"
	"go.eggybyte.com/servex/core/log"
	"go.eggybyte.com/servex/core/peer"
)

type testMessage struct{}

func newTestRequest() connect.AnyRequest {
	return connect.NewRequest(&testMessage{})
}

func TestRecoveryInterceptor(t *testing.T) {
	interceptor := RecoveryInterceptor(log.Nop())

	next := connect.UnaryFunc(func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		panic("handler exploded")
	})

	_, err := interceptor(next)(context.Background(), newTestRequest())
	if err == nil {
		t.Fatal("expected error from recovered panic, got nil")
	}
	var connectErr *connect.Error
	if !errors.As(err, &connectErr) || connectErr.Code() != connect.CodeInternal {
		t.Errorf("expected CodeInternal, got: %v", err)
	}
}

func TestTimeoutInterceptorSetsDeadline(t *testing.T) {
	interceptor := TimeoutInterceptor(5000)

	var hadDeadline bool
	next := connect.UnaryFunc(func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		_, hadDeadline = ctx.Deadline()
		return nil, nil
	})

	if _, err := interceptor(next)(context.Background(), newTestRequest()); err != nil {
		t.Fatalf("interceptor error: %v", err)
	}
	if !hadDeadline {
		t.Error("expected deadline on handler context")
	}
}

func TestPeerInterceptor(t *testing.T) {
	interceptor := PeerInterceptor(HeaderMapping{
		RequestID:    "X-Request-Id",
		RealIP:       "X-Real-IP",
		ForwardedFor: "X-Forwarded-For",
		UserAgent:    "User-Agent",
	})

	req := newTestRequest()
	req.Header().Set("X-Request-Id", "req-42")
	req.Header().Set("X-Real-IP", "10.1.2.3")

	var got *peer.Info
	next := connect.UnaryFunc(func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		got, _ = peer.FromContext(ctx)
		return nil, nil
	})

	if _, err := interceptor(next)(context.Background(), req); err != nil {
		t.Fatalf("interceptor error: %v", err)
	}
	if got == nil {
		t.Fatal("peer info not injected")
	}
	if got.RequestID != "req-42" {
		t.Errorf("RequestID = %q, want req-42", got.RequestID)
	}
	if got.RemoteAddr != "10.1.2.3" {
		t.Errorf("RemoteAddr = %q, want 10.1.2.3", got.RemoteAddr)
	}
}

func TestDrainInterceptorInjectsSignal(t *testing.T) {
	signal := make(chan struct{})
	interceptor := DrainInterceptor(signal, false)

	var draining bool
	next := connect.UnaryFunc(func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		draining = peer.Draining(ctx)
		return nil, nil
	})

	if _, err := interceptor(next)(context.Background(), newTestRequest()); err != nil {
		t.Fatalf("interceptor error: %v", err)
	}
	if draining {
		t.Error("Draining() = true before signal flipped")
	}

	close(signal)
	if _, err := interceptor(next)(context.Background(), newTestRequest()); err != nil {
		t.Fatalf("interceptor error after signal: %v", err)
	}
	if !draining {
		t.Error("Draining() = false after signal flipped")
	}
}

func TestDrainInterceptorRejectsWhenDrained(t *testing.T) {
	signal := make(chan struct{})
	close(signal)
	interceptor := DrainInterceptor(signal, true)

	next := connect.UnaryFunc(func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		t.Error("handler must not run while draining")
		return nil, nil
	})

	_, err := interceptor(next)(context.Background(), newTestRequest())
	var connectErr *connect.Error
	if !errors.As(err, &connectErr) || connectErr.Code() != connect.CodeUnavailable {
		t.Errorf("expected CodeUnavailable, got: %v", err)
	}
}

func TestErrorMappingInterceptor(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected connect.Code
	}{
		{"invalid argument", errors.New(errors.CodeInvalidArgument, "bad input"), connect.CodeInvalidArgument},
		{"not found", errors.New(errors.CodeNotFound, "missing"), connect.CodeNotFound},
		{"already stopped", errors.New(errors.CodeAlreadyStopped, "terminal"), connect.CodeUnavailable},
		{"plain error", fmt.Errorf("boom"), connect.CodeInternal},
	}

	interceptor := ErrorMappingInterceptor()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := connect.UnaryFunc(func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
				return nil, tt.err
			})

			_, err := interceptor(next)(context.Background(), newTestRequest())
			var connectErr *connect.Error
			if !errors.As(err, &connectErr) {
				t.Fatalf("expected connect error, got: %v", err)
			}
			if connectErr.Code() != tt.expected {
				t.Errorf("code = %v, want %v", connectErr.Code(), tt.expected)
			}
		})
	}
}

func TestErrorMappingPassesThroughConnectErrors(t *testing.T) {
	original := connect.NewError(connect.CodeResourceExhausted, fmt.Errorf("quota"))
	next := connect.UnaryFunc(func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		return nil, original
	})

	_, err := ErrorMappingInterceptor()(next)(context.Background(), newTestRequest())
	var connectErr *connect.Error
	if !errors.As(err, &connectErr) || connectErr.Code() != connect.CodeResourceExhausted {
		t.Errorf("connect error was re-mapped: %v", err)
	}
}

func TestParseProcedure(t *testing.T) {
	tests := []struct {
		procedure string
		service   string
		method    string
	}{
		{"/greet.v1.GreeterService/SayHello", "greet.v1.GreeterService", "SayHello"},
		{"/Service/Method", "Service", "Method"},
		{"MethodOnly", "", "MethodOnly"},
	}

	for _, tt := range tests {
		service, method := parseProcedure(tt.procedure)
		if service != tt.service || method != tt.method {
			t.Errorf("parseProcedure(%q) = (%q, %q), want (%q, %q)",
				tt.procedure, service, method, tt.service, tt.method)
		}
	}
}
