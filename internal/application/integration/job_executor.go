package integration

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/meschain/marketsync/internal/domain/integration"
	"github.com/meschain/marketsync/internal/infrastructure/logger"
)

// JobExecutor runs sync jobs for the orchestrator by routing each job type to
// its sync service
type JobExecutor struct {
	products *ProductSyncService
	orders   *OrderSyncService
	logger   *zap.Logger
}

// NewJobExecutor creates a new JobExecutor
func NewJobExecutor(products *ProductSyncService, orders *OrderSyncService, log *zap.Logger) *JobExecutor {
	if log == nil {
		log = zap.NewNop()
	}
	return &JobExecutor{products: products, orders: orders, logger: log}
}

// Execute runs one attempt of a job
func (e *JobExecutor) Execute(ctx context.Context, job *integration.SyncJob) (integration.SyncResult, error) {
	ctx = ContextWithJobID(ctx, job.ID)
	ctx, _ = logger.WithSyncJob(ctx, e.logger, job.ID.String(), string(job.Marketplace), string(job.JobType), job.Attempt)

	switch job.JobType {
	case integration.JobTypeProduct:
		return e.products.SyncProducts(ctx, job.Marketplace)
	case integration.JobTypeStock, integration.JobTypePrice:
		return e.products.SyncStockPrice(ctx, job.Marketplace, job.JobType)
	case integration.JobTypeOrder:
		return e.orders.SyncOrders(ctx, job.Marketplace)
	}
	return integration.SyncResult{}, fmt.Errorf("%w: %s", integration.ErrInvalidJobType, job.JobType)
}
