package servex

import (
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"gorm.io/gorm"

	"go.eggybyte.com/servex/connectx"
	"go.eggybyte.com/servex/core/log"
	"go.eggybyte.com/servex/internal"
)

// Route registers handlers on the App during Start. Registration errors are
// fatal to the start sequence.
type Route func(app *App) error

// App provides access to server components during route registration. It is
// built once per Start and is the only surface routes and protocols see.
type App struct {
	mux          *http.ServeMux
	logger       log.Logger
	interceptors []connect.Interceptor
	container    *internal.Container
	db           *gorm.DB
	legacy       bool
	services     []string
}

// Mux returns the HTTP mux for handler registration.
func (a *App) Mux() *http.ServeMux { return a.mux }

// Logger returns the logger instance.
func (a *App) Logger() log.Logger { return a.logger }

// Interceptors returns the configured Connect interceptors, with the
// server's stack (recovery, timeout, peer, drain, metrics, error mapping,
// logging) first.
func (a *App) Interceptors() []connect.Interceptor { return a.interceptors }

// DB returns the GORM database instance or nil if not configured.
func (a *App) DB() *gorm.DB { return a.db }

// Provide registers a constructor in the DI container.
func (a *App) Provide(constructor any) error { return a.container.Provide(constructor) }

// Resolve resolves a dependency from the DI container.
func (a *App) Resolve(target any) error { return a.container.Resolve(target) }

// Handle mounts a handler on the mux. Connect handler paths of the form
// "/pkg.v1.Service/" have their service name recorded for protocols that
// advertise services (health, reflection).
func (a *App) Handle(path string, handler http.Handler) {
	connectx.Bind(a.mux, path, handler)

	if name := serviceNameFromPath(path); name != "" {
		a.services = append(a.services, name)
	}
}

// Services returns the Connect service names discovered through Handle.
func (a *App) Services() []string {
	out := make([]string, len(a.services))
	copy(out, a.services)
	return out
}

// serviceNameFromPath extracts the fully qualified service name from a
// Connect handler path. Returns "" for paths that are not service mounts.
func serviceNameFromPath(path string) string {
	name := strings.Trim(path, "/")
	if name == "" || strings.Contains(name, "/") || !strings.Contains(name, ".") {
		return ""
	}
	return name
}
