// Package integration runs the repositories against a real PostgreSQL started
// with testcontainers, on the schema built by the embedded migrations.
package integration

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"github.com/meschain/marketsync/internal/infrastructure/config"
	"github.com/meschain/marketsync/internal/infrastructure/migration"
	"github.com/meschain/marketsync/internal/infrastructure/persistence"
)

const postgresImage = "postgres:16-alpine"

// pgServer is one running PostgreSQL container with a migrated schema
type pgServer struct {
	container *tcpostgres.PostgresContainer
	cfg       config.DatabaseConfig
}

var sharedServer struct {
	once   sync.Once
	server *pgServer
	err    error
}

// TestDB is a connection to a migrated database
type TestDB struct {
	DB  *gorm.DB
	DSN string

	database *persistence.Database
}

func startServer(ctx context.Context, dbName string) (*pgServer, error) {
	container, err := tcpostgres.Run(ctx, postgresImage,
		tcpostgres.WithDatabase(dbName),
		tcpostgres.WithUsername("msync"),
		tcpostgres.WithPassword("msync"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		return nil, fmt.Errorf("start %s: %w", postgresImage, err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}
	portNum, _ := strconv.Atoi(port.Port())

	srv := &pgServer{
		container: container,
		cfg: config.DatabaseConfig{
			Host:            host,
			Port:            portNum,
			User:            "msync",
			Password:        "msync",
			DBName:          dbName,
			SSLMode:         "disable",
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5,
			ConnMaxIdleTime: 1,
		},
	}

	m, err := migration.NewFromURL(srv.cfg.DSN(), migration.Source{}, zap.NewNop())
	if err == nil {
		err = m.Up()
		_ = m.Close()
	}
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("migrate test database: %w", err)
	}
	return srv, nil
}

// connect opens the pool through the same constructor the server uses
func (s *pgServer) connect(t *testing.T) *TestDB {
	t.Helper()

	cfg := s.cfg
	cfg.LogLevel, cfg.SlowThreshold = "silent", time.Second
	if os.Getenv("TEST_DB_DEBUG") != "" {
		cfg.LogLevel = "info"
	}
	database, err := persistence.Open(context.Background(), &cfg, zaptest.NewLogger(t))
	require.NoError(t, err, "connect to test database")

	tdb := &TestDB{DB: database.DB, DSN: cfg.DSN(), database: database}
	t.Cleanup(func() { _ = database.Close() })
	return tdb
}

// NewTestDB starts a dedicated container. Use it for tests that change the
// schema.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()
	skipShort(t)

	ctx := context.Background()
	srv, err := startServer(ctx, "msync_schema_test")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := srv.container.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})
	return srv.connect(t)
}

// NewSharedTestDB connects to the package wide container, started on first
// use. The sync tables are emptied before the test runs.
func NewSharedTestDB(t *testing.T) *TestDB {
	t.Helper()
	skipShort(t)

	sharedServer.once.Do(func() {
		sharedServer.server, sharedServer.err = startServer(context.Background(), "msync_test")
	})
	require.NoError(t, sharedServer.err, "shared PostgreSQL container")

	tdb := sharedServer.server.connect(t)
	tdb.truncate(t)
	return tdb
}

func skipShort(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}

// truncate empties every table except the migration bookkeeping
func (tdb *TestDB) truncate(t *testing.T) {
	t.Helper()

	var tables []string
	err := tdb.DB.Raw(`SELECT tablename FROM pg_tables
		WHERE schemaname = 'public' AND tablename <> 'schema_migrations'`).Scan(&tables).Error
	require.NoError(t, err, "list tables")
	if len(tables) == 0 {
		return
	}

	stmt := "TRUNCATE TABLE"
	for i, table := range tables {
		if i > 0 {
			stmt += ","
		}
		stmt += " " + strconv.Quote(table)
	}
	require.NoError(t, tdb.DB.Exec(stmt+" CASCADE").Error, "truncate sync tables")
}

// Ping checks the pool through persistence.Database
func (tdb *TestDB) Ping(ctx context.Context) error {
	return tdb.database.Ping(ctx)
}

// stopSharedServer terminates the shared container; TestMain calls it
func stopSharedServer() {
	if sharedServer.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = sharedServer.server.container.Terminate(ctx)
}
