// Package migration applies the SQL schema with golang-migrate, from the
// embedded migrations or from a directory on disk.
package migration

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"

	"github.com/meschain/marketsync/migrations"
)

// Source is where migration files come from; an empty Dir means the files
// embedded in the binary
type Source struct {
	Dir string
}

func (s Source) FS() fs.FS {
	if s.Dir == "" {
		return migrations.FS
	}
	return os.DirFS(s.Dir)
}

func (s Source) String() string {
	if s.Dir == "" {
		return "embedded"
	}
	return s.Dir
}

// Migrator runs schema migrations against one PostgreSQL database
type Migrator struct {
	m   *migrate.Migrate
	log *zap.Logger
}

// NewFromURL opens the source and connects to databaseURL (postgres://...)
func NewFromURL(databaseURL string, src Source, log *zap.Logger) (*Migrator, error) {
	files, err := iofs.New(src.FS(), ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations from %s: %w", src, err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", files, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect migrator: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("migrate").With(zap.Stringer("source", src))
	m.Log = migrateLogger{log.Sugar()}
	return &Migrator{m: m, log: log}, nil
}

// migrateLogger routes golang-migrate's own progress lines to zap
type migrateLogger struct {
	s *zap.SugaredLogger
}

func (l migrateLogger) Printf(format string, v ...any) {
	l.s.Debugf(strings.TrimRight(format, "\n"), v...)
}

func (l migrateLogger) Verbose() bool { return false }

// apply runs op; a schema that is already current is not an error
func (m *Migrator) apply(op string, fn func() error) error {
	before, _, _ := m.Version()
	switch err := fn(); {
	case errors.Is(err, migrate.ErrNoChange):
		m.log.Info("Schema unchanged", zap.String("op", op), zap.Uint("version", before))
		return nil
	case err != nil:
		return fmt.Errorf("migrate %s from version %d: %w", op, before, err)
	}
	after, dirty, err := m.Version()
	if err != nil {
		return err
	}
	m.log.Info("Schema migrated",
		zap.String("op", op),
		zap.Uint("from", before),
		zap.Uint("to", after),
		zap.Bool("dirty", dirty),
	)
	return nil
}

// Up applies every pending migration
func (m *Migrator) Up() error { return m.apply("up", m.m.Up) }

// Down rolls back every migration
func (m *Migrator) Down() error { return m.apply("down", m.m.Down) }

// Steps applies n migrations, or rolls back -n when n is negative
func (m *Migrator) Steps(n int) error {
	return m.apply(fmt.Sprintf("steps %+d", n), func() error { return m.m.Steps(n) })
}

// GoTo migrates up or down to version
func (m *Migrator) GoTo(version uint) error {
	return m.apply(fmt.Sprintf("goto %d", version), func() error { return m.m.Migrate(version) })
}

// Version returns the applied version, 0 on an empty database. dirty means
// the last migration failed halfway and needs Force.
func (m *Migrator) Version() (version uint, dirty bool, err error) {
	version, dirty, err = m.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read schema version: %w", err)
	}
	return version, dirty, nil
}

// Force records version as applied without running it, clearing the dirty flag
func (m *Migrator) Force(version int) error {
	m.log.Warn("Forcing schema version", zap.Int("version", version))
	if err := m.m.Force(version); err != nil {
		return fmt.Errorf("force version %d: %w", version, err)
	}
	return nil
}

// Drop removes every table, sync history included
func (m *Migrator) Drop() error {
	m.log.Warn("Dropping all tables")
	if err := m.m.Drop(); err != nil {
		return fmt.Errorf("drop schema: %w", err)
	}
	return nil
}

func (m *Migrator) Close() error {
	srcErr, dbErr := m.m.Close()
	return errors.Join(srcErr, dbErr)
}
