// Package testutil holds fixtures and helpers shared by the test suites of
// the sync core.
package testutil

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/meschain/marketsync/internal/domain/integration"
)

// MockDB is a GORM postgres connection whose SQL is answered by sqlmock
type MockDB struct {
	DB   *gorm.DB
	Mock sqlmock.Sqlmock
}

// NewMockDB opens a MockDB closed at test cleanup. Statements are not
// prepared, so expectations match the SQL GORM sends directly.
func NewMockDB(t *testing.T) *MockDB {
	t.Helper()

	conn, mock, err := sqlmock.New()
	require.NoError(t, err, "sqlmock")
	t.Cleanup(func() { _ = conn.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: conn, DriverName: "postgres"}), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 gormlogger.Discard,
	})
	require.NoError(t, err, "open gorm on sqlmock")
	return &MockDB{DB: gdb, Mock: mock}
}

// NewProduct returns a valid unsaved product priced 249.90 with 12 in stock
func NewProduct(t *testing.T, sku string) *integration.Product {
	t.Helper()
	p, err := integration.NewProduct(sku, "Product "+sku, decimal.RequireFromString("249.90"), 12, uuid.New())
	require.NoError(t, err)
	return p
}

// NewRemoteOrder returns a pending single line order as an adapter reports it
func NewRemoteOrder(mp integration.MarketplaceCode, remoteID string) *integration.RemoteOrder {
	orderedAt := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	return &integration.RemoteOrder{
		Marketplace:   mp,
		RemoteOrderID: remoteID,
		RemoteStatus:  "Created",
		Status:        integration.OrderStatusPending,
		CustomerName:  "Test Customer",
		TotalAmount:   decimal.RequireFromString("1500.00"),
		Currency:      "TRY",
		Items: []integration.RemoteOrderItem{
			{RemoteLineID: "1", SKU: "SKU-1", Name: "Jacket", Quantity: 1, UnitPrice: decimal.RequireFromString("1500.00")},
		},
		OrderedAt: orderedAt,
		UpdatedAt: orderedAt.Add(time.Minute),
	}
}

// NewSyncJob returns a queued job with five attempts
func NewSyncJob(t *testing.T, mp integration.MarketplaceCode, jobType integration.JobType) *integration.SyncJob {
	t.Helper()
	job, err := integration.NewSyncJob(mp, jobType, 5, "test")
	require.NoError(t, err)
	return job
}
