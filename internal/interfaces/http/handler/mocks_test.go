package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	integrationapp "github.com/meschain/marketsync/internal/application/integration"
	"github.com/meschain/marketsync/internal/domain/integration"
	"github.com/meschain/marketsync/internal/infrastructure/scheduler"
)

// MockWebhookIngester implements WebhookIngester for testing
type MockWebhookIngester struct {
	mock.Mock
}

func (m *MockWebhookIngester) Ingest(ctx context.Context, marketplace integration.MarketplaceCode, headers http.Header, body []byte) (*integrationapp.IngestResult, error) {
	args := m.Called(ctx, marketplace, headers, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integrationapp.IngestResult), args.Error(1)
}

// MockSyncReporter implements SyncReporter for testing
type MockSyncReporter struct {
	mock.Mock
}

func (m *MockSyncReporter) GetSyncStats(ctx context.Context, filter integrationapp.SyncStatsFilter) (*integrationapp.SyncStatsResponse, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integrationapp.SyncStatsResponse), args.Error(1)
}

func (m *MockSyncReporter) GetRecentLogs(ctx context.Context, filter integrationapp.SyncLogFilter) ([]integrationapp.SyncLogResponse, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integrationapp.SyncLogResponse), args.Error(1)
}

func (m *MockSyncReporter) TestConnection(ctx context.Context, marketplace integration.MarketplaceCode) (*integrationapp.ConnectionTestResponse, error) {
	args := m.Called(ctx, marketplace)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integrationapp.ConnectionTestResponse), args.Error(1)
}

// MockJobController implements JobController for testing
type MockJobController struct {
	mock.Mock
}

func (m *MockJobController) Submit(marketplace integration.MarketplaceCode, jobType integration.JobType, trigger string) (*integration.SyncJob, bool, error) {
	args := m.Called(marketplace, jobType, trigger)
	if args.Get(0) == nil {
		return nil, false, args.Error(2)
	}
	return args.Get(0).(*integration.SyncJob), args.Bool(1), args.Error(2)
}

func (m *MockJobController) Job(jobID uuid.UUID) (*integration.SyncJob, error) {
	args := m.Called(jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.SyncJob), args.Error(1)
}

func (m *MockJobController) Cancel(jobID uuid.UUID) error {
	return m.Called(jobID).Error(0)
}

func (m *MockJobController) Resume(ctx context.Context, marketplace integration.MarketplaceCode) error {
	return m.Called(ctx, marketplace).Error(0)
}

func (m *MockJobController) History(limit int) []integration.SyncJob {
	args := m.Called(limit)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]integration.SyncJob)
}

func (m *MockJobController) Stats() scheduler.OrchestratorStats {
	return m.Called().Get(0).(scheduler.OrchestratorStats)
}

// MockCategoryMapper implements CategoryMapper for testing
type MockCategoryMapper struct {
	mock.Mock
}

func (m *MockCategoryMapper) SetManualMapping(ctx context.Context, localCategoryID uuid.UUID, marketplace integration.MarketplaceCode, remoteCategoryID string) (*integration.CategoryMapping, error) {
	args := m.Called(ctx, localCategoryID, marketplace, remoteCategoryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.CategoryMapping), args.Error(1)
}

func (m *MockCategoryMapper) RefreshAutoMappings(ctx context.Context, marketplace integration.MarketplaceCode) (*integrationapp.RefreshResult, error) {
	args := m.Called(ctx, marketplace)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integrationapp.RefreshResult), args.Error(1)
}

func (m *MockCategoryMapper) ListMappings(ctx context.Context, marketplace integration.MarketplaceCode) ([]integration.CategoryMapping, error) {
	args := m.Called(ctx, marketplace)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.CategoryMapping), args.Error(1)
}
