package servex

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"syscall"
	"time"

	"go.eggybyte.com/servex/configx"
	"go.eggybyte.com/servex/core/log"
)

// TLSConfig references the certificate material used to terminate TLS.
// When nil, the server listens in plaintext (h2c for gRPC clients when
// AllowLegacy is set).
type TLSConfig struct {
	CertFile string `env:"TLS_CERT_FILE" default:""`
	KeyFile  string `env:"TLS_KEY_FILE" default:""`
}

func (t *TLSConfig) load() (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(t.CertFile, t.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS key pair: %w", err)
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}}, nil
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Driver          string        `env:"DB_DRIVER" default:"mysql"`
	DSN             string        `env:"DB_DSN" default:""`
	MaxIdleConns    int           `env:"DB_MAX_IDLE" default:"10"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN" default:"100"`
	ConnMaxLifetime time.Duration `env:"DB_MAX_LIFETIME" default:"1h"`
	PingTimeout     time.Duration `env:"DB_PING_TIMEOUT" default:"5s"`
}

// Options holds the configuration snapshot taken by New. The snapshot is
// immutable after construction; routes, interceptors, and protocols are added
// through Server methods while the state is still Created.
//
// Duration fields bind from the environment as either Go duration syntax
// ("30s") or bare integers interpreted as milliseconds ("30000").
type Options struct {
	// Service identification
	ServiceName    string `env:"SERVICE_NAME" default:"server"`
	ServiceVersion string `env:"SERVICE_VERSION" default:"0.0.0"`

	// Bind address
	Host string `env:"HOST" default:""`
	Port int    `env:"PORT" default:"5000"`

	// TLS material (optional)
	TLS *TLSConfig

	// AllowLegacy serves h2c on plaintext listeners and mounts the v1alpha
	// reflection service alongside v1.
	AllowLegacy bool `env:"ALLOW_LEGACY" default:"true"`

	// Timeouts and shutdown policy
	HandshakeTimeout    time.Duration `env:"HANDSHAKE_TIMEOUT_MS" default:"30000"`
	ShutdownTimeout     time.Duration `env:"SHUTDOWN_TIMEOUT_MS" default:"30000"`
	ForceCloseOnTimeout bool          `env:"FORCE_CLOSE_ON_TIMEOUT" default:"true"`

	// Signal-driven shutdown
	AutoShutdown bool        `env:"AUTO_SHUTDOWN" default:"false"`
	Signals      []os.Signal // Defaults to SIGINT and SIGTERM

	// Database (optional)
	Database *DatabaseConfig

	// Observability and built-in endpoints
	EnableMetrics bool `env:"ENABLE_METRICS" default:"false"`
	EnableHealth  bool `env:"ENABLE_HEALTH_CHECK" default:"true"`

	// Connect interceptor options
	SlowRequestMillis  int64 `env:"SLOW_REQUEST_MILLIS" default:"1000"`
	DefaultTimeoutMs   int64 `env:"DEFAULT_TIMEOUT_MS" default:"30000"`
	RejectWhenDraining bool  `env:"REJECT_WHEN_DRAINING" default:"false"`

	// Logger (optional, a default logfmt logger is created if nil)
	Logger log.Logger
}

// DefaultOptions returns the default configuration: port 5000 on all
// interfaces, plaintext with h2c, 30s handshake and shutdown timeouts,
// force-close on timeout, signal shutdown disarmed.
func DefaultOptions() Options {
	return Options{
		ServiceName:         "server",
		ServiceVersion:      "0.0.0",
		Port:                5000,
		AllowLegacy:         true,
		HandshakeTimeout:    30 * time.Second,
		ShutdownTimeout:     30 * time.Second,
		ForceCloseOnTimeout: true,
		Signals:             []os.Signal{syscall.SIGINT, syscall.SIGTERM},
		EnableHealth:        true,
		SlowRequestMillis:   1000,
		DefaultTimeoutMs:    30000,
	}
}

// LoadOptions binds Options from the environment via configx. A database
// section is attached only when DB_DSN is set.
func LoadOptions(ctx context.Context, logger log.Logger) (Options, error) {
	mgr, err := configx.DefaultManager(ctx, logger)
	if err != nil {
		return Options{}, err
	}

	// The lifecycle snapshot is immutable; updates are logged, not applied.
	mgr.OnUpdate(func(snapshot map[string]string) {
		logger.Info("configuration updated", log.Int("keys", len(snapshot)))
	})

	opts := Options{Logger: logger}
	if err := mgr.Bind(&opts); err != nil {
		return Options{}, err
	}

	var db DatabaseConfig
	if err := mgr.Bind(&db); err != nil {
		return Options{}, err
	}
	if db.DSN != "" {
		opts.Database = &db
	}

	var tlsCfg TLSConfig
	if err := mgr.Bind(&tlsCfg); err != nil {
		return Options{}, err
	}
	if tlsCfg.CertFile != "" && tlsCfg.KeyFile != "" {
		opts.TLS = &tlsCfg
	}

	opts.applyDefaults()
	return opts, nil
}

// applyDefaults fills safety defaults for fields the environment cannot
// express or that must never be zero.
func (o *Options) applyDefaults() {
	if o.ServiceName == "" {
		o.ServiceName = "server"
	}
	if o.ServiceVersion == "" {
		o.ServiceVersion = "0.0.0"
	}
	if o.HandshakeTimeout == 0 {
		o.HandshakeTimeout = 30 * time.Second
	}
	if o.ShutdownTimeout == 0 {
		o.ShutdownTimeout = 30 * time.Second
	}
	if o.SlowRequestMillis == 0 {
		o.SlowRequestMillis = 1000
	}
	if o.DefaultTimeoutMs == 0 {
		o.DefaultTimeoutMs = 30000
	}
	if len(o.Signals) == 0 {
		o.Signals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}
}
