package integration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meschain/marketsync/internal/domain/integration"
	"github.com/meschain/marketsync/internal/infrastructure/logger"
)

// DefaultBatchSize is the number of products handled per page
const DefaultBatchSize = 100

// ProductSyncService pushes the local catalog to marketplaces. Products are
// listed only once their category resolves; stock and price updates are
// issued only for mapped products.
type ProductSyncService struct {
	products   integration.ProductRepository
	categories CategoryResolver
	adapters   AdapterResolver
	reconciler ProductReconciler
	audit      AuditRecorder
	batchSize  int
	logger     *zap.Logger
}

// ProductSyncServiceDeps holds the dependencies of the product sync service
type ProductSyncServiceDeps struct {
	Products   integration.ProductRepository
	Categories CategoryResolver
	Adapters   AdapterResolver
	Reconciler ProductReconciler
	Audit      AuditRecorder
	BatchSize  int
	Logger     *zap.Logger
}

// NewProductSyncService creates a new ProductSyncService
func NewProductSyncService(deps ProductSyncServiceDeps) *ProductSyncService {
	batch := deps.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &ProductSyncService{
		products:   deps.Products,
		categories: deps.Categories,
		adapters:   deps.Adapters,
		reconciler: deps.Reconciler,
		audit:      deps.Audit,
		batchSize:  batch,
		logger:     log,
	}
}

// SyncProducts creates or updates listings for products that are not yet
// synced on the marketplace, then reconciles descriptive fields of linked
// products. An item failure is recorded and the batch goes on; a failure that
// aborts the batch is returned so the job is rescheduled.
func (s *ProductSyncService) SyncProducts(ctx context.Context, marketplace integration.MarketplaceCode) (integration.SyncResult, error) {
	var result integration.SyncResult
	adapter, err := s.adapters.Get(marketplace)
	if err != nil {
		return result, err
	}

	pending, err := s.products.FindPendingProducts(ctx, marketplace, s.batchSize)
	if err != nil {
		return result, fmt.Errorf("failed to load pending products: %w", err)
	}
	for i := range pending {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := result.Tally(pending[i].SKU, s.syncProduct(ctx, adapter, &pending[i])); err != nil {
			return result, err
		}
	}

	err = s.eachLinked(ctx, marketplace, func(p *integration.Product) error {
		link := p.LinkFor(marketplace)
		if link.Synced.Name == p.Name && link.Synced.Description == p.Description {
			return nil
		}
		return s.reconcile(ctx, adapter, p, &result, integration.FieldName, integration.FieldDescription)
	})

	logger.FromContext(ctx).Info("Product sync pass finished",
		zap.String("marketplace", string(marketplace)),
		zap.Int("processed", result.Processed),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped),
	)
	return result, err
}

// syncProduct lists one pending product
func (s *ProductSyncService) syncProduct(
	ctx context.Context,
	adapter integration.MarketplaceAdapter,
	product *integration.Product,
) integration.Result[*integration.RemoteProductRef] {
	marketplace := adapter.Code()
	link, err := product.EnsureLink(marketplace)
	if err != nil {
		return integration.Fail[*integration.RemoteProductRef](err)
	}
	if !link.IsSyncable() {
		return integration.Skip[*integration.RemoteProductRef](nil)
	}
	start := time.Now()

	mapping, err := s.categories.ResolveCategory(ctx, marketplace, product)
	if err != nil {
		return s.itemFailed(ctx, product, link, err, start)
	}
	attrs := s.categories.Attributes(marketplace, product)
	if err := attrs.Err(); err != nil {
		return s.itemFailed(ctx, product, link, err, start)
	}

	link.MarkSyncing()
	ref, err := adapter.UpsertProduct(ctx, product, mapping, attrs.Attributes)
	if err != nil {
		return s.itemFailed(ctx, product, link, err, start)
	}

	link.MarkSynced(ref.RemoteProductID, ref.RevisionHash, product.Snapshot())
	if link.RemoteRevisionHash == "" {
		link.RemoteRevisionHash = integration.RevisionHash(link.Synced)
	}
	if err := s.products.UpsertMarketplaceLink(ctx, link); err != nil {
		return integration.Fail[*integration.RemoteProductRef](fmt.Errorf("failed to save marketplace link: %w", err))
	}

	payload, _ := json.Marshal(struct {
		SKU              string            `json:"sku"`
		RemoteCategoryID string            `json:"remote_category_id"`
		Attributes       map[string]string `json:"attributes"`
		Price            string            `json:"price"`
		Quantity         int               `json:"quantity"`
	}{product.SKU, mapping.RemoteCategoryID, attrs.Attributes, product.Price.String(), product.Quantity})
	s.recordAudit(ctx, AuditEntry{
		Marketplace: marketplace,
		Operation:   OpProductUpsert,
		EntityType:  EntityProduct,
		EntityID:    product.SKU,
		Outcome:     integration.AuditOutcomeSuccess,
		Payload:     payload,
		Duration:    time.Since(start),
	})
	logger.FromContext(ctx).Debug("Product listed",
		zap.String("product_id", product.ID.String()),
		zap.String("remote_id", ref.RemoteProductID),
		zap.String("batch_request_id", ref.BatchRequestID),
	)
	return integration.Ok(ref)
}

// itemFailed marks the link and audits a failed item
func (s *ProductSyncService) itemFailed(
	ctx context.Context,
	product *integration.Product,
	link *integration.MarketplaceLink,
	err error,
	start time.Time,
) integration.Result[*integration.RemoteProductRef] {
	link.MarkError(err)
	if uerr := s.products.UpsertMarketplaceLink(ctx, link); uerr != nil {
		s.logger.Error("Failed to save marketplace link",
			zap.String("product_id", product.ID.String()),
			zap.Error(uerr),
		)
	}

	outcome := integration.AuditOutcomeFailure
	if errors.Is(err, integration.ErrMappingUnresolved) {
		outcome = integration.AuditOutcomeSkipped
	}
	s.recordAudit(ctx, AuditEntry{
		Marketplace: link.Marketplace,
		Operation:   OpProductUpsert,
		EntityType:  EntityProduct,
		EntityID:    product.SKU,
		Outcome:     outcome,
		Err:         err,
		Duration:    time.Since(start),
	})
	return integration.Fail[*integration.RemoteProductRef](err)
}

// SyncStockPrice reconciles quantity (JobTypeStock) or price (JobTypePrice)
// of mapped products. A product is reconciled when its local value moved since
// the last sync or when the marketplace listing reports a revision other than
// the one last agreed, so remote-only edits are pulled in the same pass.
func (s *ProductSyncService) SyncStockPrice(ctx context.Context, marketplace integration.MarketplaceCode, jobType integration.JobType) (integration.SyncResult, error) {
	var result integration.SyncResult
	var field integration.Field
	switch jobType {
	case integration.JobTypeStock:
		field = integration.FieldQuantity
	case integration.JobTypePrice:
		field = integration.FieldPrice
	default:
		return result, fmt.Errorf("%w: %s is not a stock or price job", integration.ErrInvalidJobType, jobType)
	}

	adapter, err := s.adapters.Get(marketplace)
	if err != nil {
		return result, err
	}

	revisions, err := s.remoteRevisions(ctx, adapter)
	if err != nil {
		return result, fmt.Errorf("failed to list remote products: %w", err)
	}

	err = s.eachLinked(ctx, marketplace, func(p *integration.Product) error {
		link := p.LinkFor(marketplace)
		localMoved := link.SyncStatus != integration.LinkStatusSynced ||
			(field == integration.FieldQuantity && link.Synced.Quantity != p.Quantity) ||
			(field == integration.FieldPrice && !link.Synced.Price.Equal(p.Price))
		rev, listed := revisions[link.RemoteProductID]
		remoteMoved := listed && rev != "" && rev != link.RemoteRevisionHash
		if !localMoved && !remoteMoved {
			result.RecordSkip()
			return nil
		}
		return s.reconcile(ctx, adapter, p, &result, integration.StockPriceFields()...)
	})

	logger.FromContext(ctx).Info("Stock/price sync pass finished",
		zap.String("marketplace", string(marketplace)),
		zap.String("job_type", string(jobType)),
		zap.Int("processed", result.Processed),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
		zap.Int("conflicts", result.Conflicts),
	)
	return result, err
}

// remoteRevisions pages the marketplace listing into remote id to revision.
// A failure that aborts the batch is returned. Any other failure ends the
// listing early; products it did not reach are treated as unchanged remotely.
func (s *ProductSyncService) remoteRevisions(ctx context.Context, adapter integration.MarketplaceAdapter) (map[string]string, error) {
	revisions := make(map[string]string)
	cursor := ""
	for pages := 0; ; pages++ {
		if err := ctx.Err(); err != nil {
			return revisions, err
		}
		page, err := adapter.ListProducts(ctx, cursor)
		if err != nil {
			if integration.Classify(err).AbortsBatch() {
				return revisions, err
			}
			logger.FromContext(ctx).Warn("Remote product listing incomplete",
				zap.String("marketplace", string(adapter.Code())),
				zap.Int("pages", pages),
				zap.Int("listed", len(revisions)),
				zap.Error(err),
			)
			return revisions, nil
		}
		for _, rp := range page.Products {
			if rp.RemoteProductID != "" {
				revisions[rp.RemoteProductID] = rp.RevisionHash
			}
		}
		if !page.HasMore() || page.NextCursor == cursor {
			return revisions, nil
		}
		cursor = page.NextCursor
	}
}

// reconcile runs the reconciler for one product and counts the outcome. It
// returns the item error when it aborts the batch.
func (s *ProductSyncService) reconcile(
	ctx context.Context,
	adapter integration.MarketplaceAdapter,
	product *integration.Product,
	result *integration.SyncResult,
	fields ...integration.Field,
) error {
	item := reconcileResult(s.reconciler.Reconcile(ctx, adapter, product, fields...))
	if outcome := item.Value(); outcome != nil {
		result.Conflicts += len(outcome.Conflicts)
	}
	return result.Tally(product.SKU, item)
}

func reconcileResult(outcome *ReconcileOutcome, err error) integration.Result[*ReconcileOutcome] {
	switch {
	case err != nil:
		return integration.Fail[*ReconcileOutcome](err)
	case outcome.NoOp:
		return integration.Skip(outcome)
	default:
		return integration.Ok(outcome)
	}
}

// eachLinked pages through the mapped, enabled products of a marketplace
func (s *ProductSyncService) eachLinked(ctx context.Context, marketplace integration.MarketplaceCode, fn func(*integration.Product) error) error {
	after := uuid.Nil
	for {
		page, err := s.products.FindLinkedProducts(ctx, marketplace, after, s.batchSize)
		if err != nil {
			return fmt.Errorf("failed to load linked products: %w", err)
		}
		for i := range page {
			if err := ctx.Err(); err != nil {
				return err
			}
			p := &page[i]
			if link := p.LinkFor(marketplace); link == nil || !link.IsMapped() || !link.IsSyncable() {
				continue
			}
			if err := fn(p); err != nil {
				return err
			}
		}
		if len(page) < s.batchSize {
			return nil
		}
		after = page[len(page)-1].ID
	}
}

func (s *ProductSyncService) recordAudit(ctx context.Context, entry AuditEntry) {
	if s.audit != nil {
		s.audit.Record(ctx, entry)
	}
}
