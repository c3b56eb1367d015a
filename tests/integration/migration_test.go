package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/meschain/marketsync/internal/infrastructure/migration"
	"github.com/meschain/marketsync/migrations"
)

func TestMigrations_DownAndUp(t *testing.T) {
	testDB := NewTestDB(t)
	require.NoError(t, testDB.Ping(context.Background()))

	available, err := migration.ListMigrations(migrations.FS)
	require.NoError(t, err)
	latest := available[len(available)-1].Version

	m, err := migration.NewFromURL(testDB.DSN, migration.Source{}, zap.NewNop())
	require.NoError(t, err)
	defer func() { _ = m.Close() }()

	version, dirty, err := m.Version()
	require.NoError(t, err)
	assert.Equal(t, latest, version)
	assert.False(t, dirty)

	require.NoError(t, m.Up(), "up on a current schema is a no-op")

	require.NoError(t, m.Steps(-1))
	version, _, err = m.Version()
	require.NoError(t, err)
	assert.Equal(t, latest-1, version)

	require.NoError(t, m.Down())
	version, _, err = m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)
	assert.False(t, testDB.DB.Migrator().HasTable("products"))

	require.NoError(t, m.GoTo(latest))
	assert.True(t, testDB.DB.Migrator().HasTable("sync_audit_logs"))
	assert.True(t, testDB.DB.Migrator().HasTable("sync_cursors"))
}
