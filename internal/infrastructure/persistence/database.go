package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/meschain/marketsync/internal/infrastructure/config"
	"github.com/meschain/marketsync/internal/infrastructure/logger"
)

const connectTimeout = 10 * time.Second

// Database is the PostgreSQL pool behind the sync tables
type Database struct {
	DB *gorm.DB

	pool *sql.DB
}

// Open connects with the pool limits of cfg and waits for the first ping.
// SQL is logged through log at cfg.LogLevel; statements slower than
// cfg.SlowThreshold are warnings.
func Open(ctx context.Context, cfg *config.DatabaseConfig, log *zap.Logger) (*Database, error) {
	gl := logger.NewGormLogger(log, logger.ParseGormLevel(cfg.LogLevel), cfg.SlowThreshold)
	gdb, err := gorm.Open(postgres.Open(cfg.DSN()), GormConfig(gl))
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.DBName, err)
	}
	d, err := wrap(gdb)
	if err != nil {
		return nil, err
	}

	d.pool.SetMaxOpenConns(cfg.MaxOpenConns)
	d.pool.SetMaxIdleConns(cfg.MaxIdleConns)
	d.pool.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	d.pool.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := d.Ping(pingCtx); err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("database %s unreachable: %w", cfg.DBName, err)
	}
	return d, nil
}

func wrap(gdb *gorm.DB) (*Database, error) {
	pool, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("database pool: %w", err)
	}
	return &Database{DB: gdb, pool: pool}, nil
}

// GormConfig is shared by the server, synctl and the integration tests.
// TranslateError turns unique violations into gorm.ErrDuplicatedKey, which
// the repositories report as ErrAlreadyExists.
func GormConfig(gl gormlogger.Interface) *gorm.Config {
	return &gorm.Config{
		Logger:                 gl,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
		TranslateError:         true,
	}
}

func (d *Database) Close() error {
	return d.pool.Close()
}

// Ping backs the database readiness check
func (d *Database) Ping(ctx context.Context) error {
	return d.pool.PingContext(ctx)
}

// PoolStats is the pool section of /system/info
type PoolStats struct {
	MaxOpen      int           `json:"max_open"`
	Open         int           `json:"open"`
	InUse        int           `json:"in_use"`
	Idle         int           `json:"idle"`
	WaitCount    int64         `json:"wait_count"`
	WaitDuration time.Duration `json:"wait_duration_ns"`
}

func (d *Database) PoolStats() (PoolStats, error) {
	s := d.pool.Stats()
	return PoolStats{
		MaxOpen:      s.MaxOpenConnections,
		Open:         s.OpenConnections,
		InUse:        s.InUse,
		Idle:         s.Idle,
		WaitCount:    s.WaitCount,
		WaitDuration: s.WaitDuration,
	}, nil
}

// isDuplicateKey reports a unique constraint violation. The sqlite driver
// used by unit tests does not translate errors, so its message is matched.
func isDuplicateKey(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint failed")
}
