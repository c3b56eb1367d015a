package integration

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meschain/marketsync/internal/domain/integration"
	"github.com/meschain/marketsync/internal/domain/shared"
)

// Reporting defaults
const (
	DefaultStatsWindow = 24 * time.Hour
	DefaultLogLimit    = 50
	MaxLogLimit        = 500
)

// LinkStatusCounter counts marketplace links per sync status
type LinkStatusCounter interface {
	CountLinksByStatus(ctx context.Context, marketplace integration.MarketplaceCode) (map[integration.LinkSyncStatus]int64, error)
}

// HaltStatus reports marketplaces halted after an authentication failure
type HaltStatus interface {
	Halted(marketplace integration.MarketplaceCode) bool
}

// ReportingService serves the dashboard: aggregate counts, recent failures
// and connection checks. It reads only.
type ReportingService struct {
	marketplaces []integration.MarketplaceCode
	audits       integration.AuditRepository
	links        LinkStatusCounter
	orders       integration.OrderRepository
	halts        HaltStatus
	adapters     AdapterResolver
	audit        AuditRecorder
	logger       *zap.Logger
}

// ReportingServiceDeps holds the dependencies of the reporting service
type ReportingServiceDeps struct {
	// Marketplaces are the configured marketplaces, reported in this order
	Marketplaces []integration.MarketplaceCode
	Audits       integration.AuditRepository
	Links        LinkStatusCounter
	Orders       integration.OrderRepository
	Halts        HaltStatus
	Adapters     AdapterResolver
	Audit        AuditRecorder
	Logger       *zap.Logger
}

// NewReportingService creates a new ReportingService
func NewReportingService(deps ReportingServiceDeps) *ReportingService {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &ReportingService{
		marketplaces: deps.Marketplaces,
		audits:       deps.Audits,
		links:        deps.Links,
		orders:       deps.Orders,
		halts:        deps.Halts,
		adapters:     deps.Adapters,
		audit:        deps.Audit,
		logger:       log,
	}
}

// GetSyncStats returns success and error counts per marketplace
func (s *ReportingService) GetSyncStats(ctx context.Context, filter SyncStatsFilter) (*SyncStatsResponse, error) {
	since := time.Now().Add(-DefaultStatsWindow)
	if filter.Since != nil {
		since = *filter.Since
	}
	marketplaces := s.marketplaces
	if filter.Marketplace != "" {
		if !filter.Marketplace.IsValid() {
			return nil, fmt.Errorf("%w: %s", integration.ErrMarketplaceUnknown, filter.Marketplace)
		}
		marketplaces = []integration.MarketplaceCode{filter.Marketplace}
	}

	stats, err := s.audits.Stats(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate audit records: %w", err)
	}
	byMarketplace := make(map[integration.MarketplaceCode]integration.AuditStats, len(stats))
	for _, st := range stats {
		byMarketplace[st.Marketplace] = st
	}

	resp := &SyncStatsResponse{Since: since, Marketplaces: make([]MarketplaceStatsResponse, 0, len(marketplaces))}
	for _, mp := range marketplaces {
		st := byMarketplace[mp]
		item := MarketplaceStatsResponse{
			Marketplace:   mp,
			DisplayName:   mp.DisplayName(),
			Total:         st.Total,
			Success:       st.Success,
			Failure:       st.Failure,
			Skipped:       st.Skipped,
			Conflict:      st.Conflict,
			Rejected:      st.Rejected,
			SuccessRate:   st.SuccessRate(),
			LastSuccessAt: st.LastSuccessAt,
			LastFailureAt: st.LastFailureAt,
		}
		if s.halts != nil {
			item.Halted = s.halts.Halted(mp)
		}
		if s.links != nil {
			if item.Links, err = s.links.CountLinksByStatus(ctx, mp); err != nil {
				return nil, fmt.Errorf("failed to count links: %w", err)
			}
		}
		if s.orders != nil {
			if item.Orders, err = s.orders.CountByStatus(ctx, mp); err != nil {
				return nil, fmt.Errorf("failed to count orders: %w", err)
			}
		}
		resp.Marketplaces = append(resp.Marketplaces, item)
	}
	return resp, nil
}

// GetRecentLogs returns the newest audit records matching the filter
func (s *ReportingService) GetRecentLogs(ctx context.Context, filter SyncLogFilter) ([]SyncLogResponse, error) {
	q := integration.AuditFilter{
		Marketplace: filter.Marketplace,
		Outcome:     filter.Outcome,
		Operation:   filter.Operation,
		EntityID:    filter.EntityID,
		Limit:       filter.Limit,
	}
	if q.Limit <= 0 {
		q.Limit = DefaultLogLimit
	}
	if q.Limit > MaxLogLimit {
		q.Limit = MaxLogLimit
	}
	if q.Outcome != "" && !q.Outcome.IsValid() {
		return nil, shared.ErrInvalidInput.WithMessage("unknown outcome %q", q.Outcome)
	}
	if filter.JobID != "" {
		id, err := uuid.Parse(filter.JobID)
		if err != nil {
			return nil, shared.ErrInvalidInput.WithMessage("job_id must be a UUID")
		}
		q.JobID = &id
	}

	records, err := s.audits.FindRecent(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to load audit records: %w", err)
	}
	out := make([]SyncLogResponse, len(records))
	for i := range records {
		out[i] = toSyncLogResponse(&records[i])
	}
	return out, nil
}

// TestConnection authenticates against a marketplace and reports the result.
// A failed check is a result, not an error.
func (s *ReportingService) TestConnection(ctx context.Context, marketplace integration.MarketplaceCode) (*ConnectionTestResponse, error) {
	adapter, err := s.adapters.Get(marketplace)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	session, err := adapter.Authenticate(ctx)
	elapsed := time.Since(start)

	resp := &ConnectionTestResponse{Marketplace: marketplace, LatencyMs: elapsed.Milliseconds()}
	entry := AuditEntry{
		Marketplace: marketplace,
		Operation:   OpConnectionTest,
		EntityType:  EntityJob,
		EntityID:    string(marketplace),
		Outcome:     integration.AuditOutcomeSuccess,
		Err:         err,
		Duration:    elapsed,
	}
	if err != nil {
		entry.Outcome = integration.AuditOutcomeFailure
		resp.ErrorKind = integration.Classify(err).String()
		resp.Message = err.Error()
		s.logger.Warn("Connection test failed", zap.String("marketplace", string(marketplace)), zap.Error(err))
	} else {
		resp.OK = true
		resp.SellerID = session.SellerID
		resp.ExpiresAt = session.ExpiresAt
	}
	if s.audit != nil {
		s.audit.Record(ctx, entry)
	}
	return resp, nil
}
