// Package httpx provides HTTP helpers for the plain-HTTP edges of a server:
// health endpoints, JSON responses, and CORS for gRPC-web clients.
//
// Overview:
//   - Responsibility: JSON request/response helpers, error responses, CORS
//   - Key Types: ErrorResponse, CORSOptions
//   - Concurrency Model: All functions are safe for concurrent use
//   - Error Semantics: WriteError maps core/errors codes onto HTTP statuses
//
// Usage:
//
//	var req ConfigUpdate
//	if err := httpx.BindAndValidate(r, &req); err != nil {
//	  httpx.WriteError(w, err)
//	  return
//	}
package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"go.eggybyte.com/servex/core/errors"
)

// ErrorResponse represents a standard JSON error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// BindAndValidate binds a JSON request body to the target struct and
// validates it. The target struct should carry `json` and `validate` tags.
func BindAndValidate(r *http.Request, target any) error {
	if r.Body == nil {
		return errors.New(errors.CodeInvalidArgument, "request body is empty")
	}

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(target); err != nil {
		return errors.Wrap(errors.CodeInvalidArgument, "httpx.BindAndValidate", err)
	}

	if err := validator.New().Struct(target); err != nil {
		return errors.Wrap(errors.CodeInvalidArgument, "httpx.BindAndValidate", err)
	}

	return nil
}

// WriteJSON writes a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if data == nil {
		return nil
	}

	return json.NewEncoder(w).Encode(data)
}

// WriteError writes a standard error response, deriving the HTTP status from
// the error's code.
func WriteError(w http.ResponseWriter, err error) error {
	status := StatusOf(err)
	response := ErrorResponse{
		Error:   http.StatusText(status),
		Code:    string(errors.CodeOf(err)),
		Message: err.Error(),
	}

	return WriteJSON(w, status, response)
}

// StatusOf maps core/errors codes onto HTTP status codes.
func StatusOf(err error) int {
	switch errors.CodeOf(err) {
	case errors.CodeInvalidArgument, errors.CodeInvalidTransition, errors.CodeCycleDetected:
		return http.StatusBadRequest
	case errors.CodeNotFound:
		return http.StatusNotFound
	case errors.CodeAlreadyExists:
		return http.StatusConflict
	case errors.CodePermissionDenied:
		return http.StatusForbidden
	case errors.CodeUnauthenticated:
		return http.StatusUnauthorized
	case errors.CodeUnavailable, errors.CodeAlreadyStopped:
		return http.StatusServiceUnavailable
	case errors.CodeDeadlineExceeded:
		return http.StatusGatewayTimeout
	case errors.CodeUnimplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// NotFoundHandler returns a standard 404 JSON response.
func NotFoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusNotFound, ErrorResponse{
			Error:   "Not Found",
			Message: fmt.Sprintf("Path %s not found", r.URL.Path),
		})
	}
}

// CORSOptions configures CORS behavior.
type CORSOptions struct {
	AllowedOrigins   []string // Allowed origins (e.g., ["https://example.com"])
	AllowedMethods   []string // Allowed methods
	AllowedHeaders   []string // Allowed headers
	ExposedHeaders   []string // Exposed headers
	AllowCredentials bool     // Allow credentials
	MaxAge           int      // Preflight cache duration in seconds
}

// DefaultCORSOptions returns CORS options suited to Connect and gRPC-web
// clients.
func DefaultCORSOptions() CORSOptions {
	return CORSOptions{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Connect-Protocol-Version", "Connect-Timeout-Ms", "Grpc-Timeout", "X-Grpc-Web", "X-User-Agent"},
		ExposedHeaders: []string{"Grpc-Status", "Grpc-Message", "Grpc-Status-Details-Bin"},
		MaxAge:         3600,
	}
}

// CORSMiddleware adds CORS headers to responses and answers preflight
// requests.
func CORSMiddleware(opts CORSOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			applyCORSHeaders(w, r, opts)

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func applyCORSHeaders(w http.ResponseWriter, r *http.Request, opts CORSOptions) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}

	allowed := ""
	for _, o := range opts.AllowedOrigins {
		if o == "*" || o == origin {
			allowed = o
			break
		}
	}
	if allowed == "" {
		return
	}

	header := w.Header()
	header.Set("Access-Control-Allow-Origin", allowed)
	if len(opts.AllowedMethods) > 0 {
		header.Set("Access-Control-Allow-Methods", strings.Join(opts.AllowedMethods, ", "))
	}
	if len(opts.AllowedHeaders) > 0 {
		header.Set("Access-Control-Allow-Headers", strings.Join(opts.AllowedHeaders, ", "))
	}
	if len(opts.ExposedHeaders) > 0 {
		header.Set("Access-Control-Expose-Headers", strings.Join(opts.ExposedHeaders, ", "))
	}
	if opts.AllowCredentials {
		header.Set("Access-Control-Allow-Credentials", "true")
	}
	if opts.MaxAge > 0 {
		header.Set("Access-Control-Max-Age", strconv.Itoa(opts.MaxAge))
	}
}
