// Package internal contains the GORM database adapter implementation.
package internal

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"go.eggybyte.com/servex/core/log"
)

// GORMStore implements the Store interface using GORM.
type GORMStore struct {
	db     *gorm.DB
	logger log.Logger
}

// NewGORMStore creates a new GORM store around an open handle.
func NewGORMStore(db *gorm.DB, logger log.Logger) *GORMStore {
	return &GORMStore{
		db:     db,
		logger: logger,
	}
}

// Ping checks if the database connection is healthy.
func (s *GORMStore) Ping(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *GORMStore) Close() error {
	if s.db == nil {
		return nil // Already closed or never opened
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}

	return nil
}

// GetDB returns the underlying GORM database instance.
func (s *GORMStore) GetDB() *gorm.DB {
	return s.db
}

// GORMOptions holds configuration for GORM database connections.
type GORMOptions struct {
	DSN             string
	Driver          string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	Logger          log.Logger
}

// NewGORMStoreFromOptions opens a database connection and configures its
// pool from options.
func NewGORMStoreFromOptions(opts GORMOptions) (*GORMStore, error) {
	if opts.DSN == "" {
		return nil, fmt.Errorf("DSN is required")
	}

	if opts.Driver == "" {
		return nil, fmt.Errorf("driver is required")
	}

	if opts.MaxIdleConns == 0 {
		opts.MaxIdleConns = 10
	}
	if opts.MaxOpenConns == 0 {
		opts.MaxOpenConns = 100
	}
	if opts.ConnMaxLifetime == 0 {
		opts.ConnMaxLifetime = time.Hour
	}

	var gormLogger logger.Interface
	if opts.Logger != nil {
		gormLogger = &gormLogAdapter{logger: opts.Logger}
	} else {
		gormLogger = logger.Default.LogMode(logger.Silent)
	}

	dialector, err := gormDialector(opts.Driver, opts.DSN)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)

	return NewGORMStore(db, opts.Logger), nil
}

// gormDialector returns the GORM dialector for the given driver name.
func gormDialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "mysql":
		return mysql.Open(dsn), nil
	case "postgres":
		return postgres.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}
}

// gormLogAdapter adapts the core logger to GORM's logger interface.
type gormLogAdapter struct {
	logger log.Logger
}

func (l *gormLogAdapter) LogMode(level logger.LogLevel) logger.Interface {
	return l
}

func (l *gormLogAdapter) Info(ctx context.Context, msg string, data ...interface{}) {
	l.logger.Info(msg, data...)
}

func (l *gormLogAdapter) Warn(ctx context.Context, msg string, data ...interface{}) {
	l.logger.Warn(msg, data...)
}

func (l *gormLogAdapter) Error(ctx context.Context, msg string, data ...interface{}) {
	l.logger.Error(nil, msg, data...)
}

func (l *gormLogAdapter) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	duration := time.Since(begin)
	if err != nil && err != gorm.ErrRecordNotFound {
		l.logger.Debug("database query failed",
			log.Str("error", err.Error()),
			log.Dur("duration", duration))
		return
	}
	if duration > 100*time.Millisecond {
		sql, rows := fc()
		l.logger.Debug("slow database query",
			log.Str("sql", sql),
			log.Int("rows", int(rows)),
			log.Dur("duration", duration))
	}
}
