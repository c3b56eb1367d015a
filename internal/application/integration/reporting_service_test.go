package integration

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/meschain/marketsync/internal/domain/integration"
	"github.com/meschain/marketsync/internal/domain/shared"
)

type staticHalts map[integration.MarketplaceCode]bool

func (h staticHalts) Halted(mp integration.MarketplaceCode) bool { return h[mp] }

type linkCountsFunc func(ctx context.Context, mp integration.MarketplaceCode) (map[integration.LinkSyncStatus]int64, error)

func (f linkCountsFunc) CountLinksByStatus(ctx context.Context, mp integration.MarketplaceCode) (map[integration.LinkSyncStatus]int64, error) {
	return f(ctx, mp)
}

func TestGetSyncStats(t *testing.T) {
	ctx := context.Background()
	since := time.Now().Add(-time.Hour)
	lastFailure := time.Now().Add(-10 * time.Minute)

	audits := new(mockAuditRepository)
	audits.On("Stats", ctx, since).Return([]integration.AuditStats{
		{Marketplace: integration.MarketplaceTrendyol, Total: 10, Success: 8, Failure: 2, LastFailureAt: &lastFailure},
	}, nil)

	orders := newMemOrders()
	svc := NewReportingService(ReportingServiceDeps{
		Marketplaces: []integration.MarketplaceCode{integration.MarketplaceTrendyol, integration.MarketplaceAmazon},
		Audits:       audits,
		Links: linkCountsFunc(func(ctx context.Context, mp integration.MarketplaceCode) (map[integration.LinkSyncStatus]int64, error) {
			if mp == integration.MarketplaceTrendyol {
				return map[integration.LinkSyncStatus]int64{integration.LinkStatusSynced: 40, integration.LinkStatusError: 2}, nil
			}
			return map[integration.LinkSyncStatus]int64{}, nil
		}),
		Orders: orders,
		Halts:  staticHalts{integration.MarketplaceAmazon: true},
	})

	resp, err := svc.GetSyncStats(ctx, SyncStatsFilter{Since: &since})
	require.NoError(t, err)
	assert.Equal(t, since, resp.Since)
	require.Len(t, resp.Marketplaces, 2)

	ty := resp.Marketplaces[0]
	assert.Equal(t, integration.MarketplaceTrendyol, ty.Marketplace)
	assert.Equal(t, int64(8), ty.Success)
	assert.Equal(t, int64(2), ty.Failure)
	assert.InDelta(t, 0.8, ty.SuccessRate, 1e-9)
	assert.Equal(t, &lastFailure, ty.LastFailureAt)
	assert.False(t, ty.Halted)
	assert.Equal(t, int64(40), ty.Links[integration.LinkStatusSynced])

	amz := resp.Marketplaces[1]
	assert.Equal(t, int64(0), amz.Total, "marketplaces without records are reported as zero")
	assert.True(t, amz.Halted)
}

func TestGetSyncStats_SingleMarketplace(t *testing.T) {
	ctx := context.Background()
	audits := new(mockAuditRepository)
	audits.On("Stats", ctx, mock.AnythingOfType("time.Time")).Return([]integration.AuditStats{}, nil)

	svc := NewReportingService(ReportingServiceDeps{
		Marketplaces: []integration.MarketplaceCode{integration.MarketplaceTrendyol, integration.MarketplaceN11},
		Audits:       audits,
	})

	resp, err := svc.GetSyncStats(ctx, SyncStatsFilter{Marketplace: integration.MarketplaceN11})
	require.NoError(t, err)
	require.Len(t, resp.Marketplaces, 1)
	assert.Equal(t, integration.MarketplaceN11, resp.Marketplaces[0].Marketplace)
	assert.WithinDuration(t, time.Now().Add(-DefaultStatsWindow), resp.Since, time.Minute)

	_, err = svc.GetSyncStats(ctx, SyncStatsFilter{Marketplace: "ETSY"})
	assert.ErrorIs(t, err, integration.ErrMarketplaceUnknown)
}

func TestGetRecentLogs(t *testing.T) {
	ctx := context.Background()
	jobID := uuid.New()
	record := integration.NewAuditRecord(integration.MarketplaceOzon, OpProductUpsert, integration.AuditOutcomeFailure,
		fmt.Errorf("%w: barcode required", integration.ErrValidation))
	record.EntityID = "OZ-SKU-1"
	record.JobID = &jobID

	audits := new(mockAuditRepository)
	audits.On("FindRecent", ctx, mock.MatchedBy(func(f integration.AuditFilter) bool {
		return f.Limit == MaxLogLimit && f.JobID != nil && *f.JobID == jobID && f.Outcome == integration.AuditOutcomeFailure
	})).Return([]integration.AuditRecord{*record}, nil)

	svc := NewReportingService(ReportingServiceDeps{Audits: audits})

	logs, err := svc.GetRecentLogs(ctx, SyncLogFilter{
		Outcome: integration.AuditOutcomeFailure,
		JobID:   jobID.String(),
		Limit:   10000,
	})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "OZ-SKU-1", logs[0].EntityID)
	assert.Equal(t, string(integration.ErrorKindValidation), logs[0].ErrorKind)
	assert.Contains(t, logs[0].Message, "barcode required")
}

func TestGetRecentLogs_InvalidFilter(t *testing.T) {
	svc := NewReportingService(ReportingServiceDeps{Audits: new(mockAuditRepository)})

	tests := []struct {
		name   string
		filter SyncLogFilter
	}{
		{"unknown outcome", SyncLogFilter{Outcome: "exploded"}},
		{"malformed job id", SyncLogFilter{JobID: "job-42"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.GetRecentLogs(context.Background(), tt.filter)
			var domainErr *shared.DomainError
			require.True(t, errors.As(err, &domainErr))
			assert.Equal(t, shared.CodeInvalidInput, domainErr.Code)
		})
	}
}

func TestTestConnection(t *testing.T) {
	ctx := context.Background()
	expires := time.Now().Add(time.Hour)

	ok := newMockAdapter(integration.MarketplaceEbay)
	ok.On("Authenticate", ctx).Return(&integration.Session{
		Marketplace: integration.MarketplaceEbay,
		AccessToken: "v^1.1#i^1",
		ExpiresAt:   &expires,
		SellerID:    "meschain-store",
	}, nil)
	bad := newMockAdapter(integration.MarketplaceHepsiburada)
	bad.On("Authenticate", ctx).Return(nil, fmt.Errorf("%w: 401 invalid merchant id", integration.ErrAuth))

	audit := &recordingAudit{}
	svc := NewReportingService(ReportingServiceDeps{
		Adapters: integration.NewAdapterRegistry(ok, bad),
		Audit:    audit,
	})

	resp, err := svc.TestConnection(ctx, integration.MarketplaceEbay)
	require.NoError(t, err)
	assert.True(t, resp.OK)
	assert.Equal(t, "meschain-store", resp.SellerID)
	assert.Equal(t, &expires, resp.ExpiresAt)

	resp, err = svc.TestConnection(ctx, integration.MarketplaceHepsiburada)
	require.NoError(t, err, "a failed check is reported, not returned")
	assert.False(t, resp.OK)
	assert.Equal(t, "auth", resp.ErrorKind)
	assert.Contains(t, resp.Message, "401")

	_, err = svc.TestConnection(ctx, integration.MarketplaceOzon)
	assert.ErrorIs(t, err, integration.ErrMarketplaceNotConfigured)

	assert.Len(t, audit.WithOutcome(integration.AuditOutcomeSuccess), 1)
	assert.Len(t, audit.WithOutcome(integration.AuditOutcomeFailure), 1)
}
