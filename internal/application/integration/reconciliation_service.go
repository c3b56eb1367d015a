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
	"github.com/meschain/marketsync/internal/domain/shared"
)

// maxSaveAttempts bounds optimistic-concurrency retries when pulling remote values
const maxSaveAttempts = 3

// ReconcileOutcome describes what reconciling one product did
type ReconcileOutcome struct {
	ProductID       uuid.UUID
	Marketplace     integration.MarketplaceCode
	RemoteProductID string
	NoOp            bool
	Pushed          []integration.Field
	Pulled          []integration.Field
	Conflicts       []integration.Conflict
}

// ReconciliationService applies field-level reconciliation plans: pulled
// values are written to the catalog store, pushed values go to the
// marketplace and every conflict leaves an audit record.
type ReconciliationService struct {
	products integration.ProductRepository
	adapters AdapterResolver
	resolver CategoryResolver
	audit    AuditRecorder
	logger   *zap.Logger
}

// NewReconciliationService creates a new ReconciliationService. The resolver
// is needed only to push descriptive fields.
func NewReconciliationService(
	products integration.ProductRepository,
	adapters AdapterResolver,
	resolver CategoryResolver,
	audit AuditRecorder,
	logger *zap.Logger,
) *ReconciliationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconciliationService{
		products: products,
		adapters: adapters,
		resolver: resolver,
		audit:    audit,
		logger:   logger,
	}
}

// ReconcileProduct reconciles one local product with its listing on a marketplace
func (s *ReconciliationService) ReconcileProduct(ctx context.Context, marketplace integration.MarketplaceCode, productID uuid.UUID) (*ReconcileOutcome, error) {
	adapter, err := s.adapters.Get(marketplace)
	if err != nil {
		return nil, err
	}
	product, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	return s.Reconcile(ctx, adapter, product)
}

// ReconcileRemoteProduct reconciles the local product linked to a remote
// listing, used for product change notifications
func (s *ReconciliationService) ReconcileRemoteProduct(ctx context.Context, marketplace integration.MarketplaceCode, remoteProductID string) (*ReconcileOutcome, error) {
	adapter, err := s.adapters.Get(marketplace)
	if err != nil {
		return nil, err
	}
	product, err := s.products.FindByRemoteProductID(ctx, marketplace, remoteProductID)
	if err != nil {
		return nil, err
	}
	return s.Reconcile(ctx, adapter, product)
}

// Reconcile fetches the remote listing of product, diffs the requested
// fields (limited to what the adapter reads back) and applies the plan.
func (s *ReconciliationService) Reconcile(
	ctx context.Context,
	adapter integration.MarketplaceAdapter,
	product *integration.Product,
	fields ...integration.Field,
) (*ReconcileOutcome, error) {
	marketplace := adapter.Code()
	link := product.LinkFor(marketplace)
	if link == nil || !link.IsMapped() {
		return nil, fmt.Errorf("%w: product %s on %s", integration.ErrLinkNotFound, product.SKU, marketplace)
	}
	if link.Disabled {
		return nil, fmt.Errorf("%w: product %s on %s", integration.ErrLinkDisabled, product.SKU, marketplace)
	}
	fields = comparableFields(adapter, fields)
	start := time.Now()

	remote, err := adapter.GetProduct(ctx, link.RemoteProductID)
	if err != nil {
		return nil, s.fail(ctx, product, link, err, start)
	}

	var plan integration.ProductReconciliation
	for attempt := 1; ; attempt++ {
		plan = integration.ReconcileProduct(product, link, remote, fields...)
		if len(plan.Pulls()) == 0 {
			break
		}
		if err := plan.ApplyPulls(product); err != nil {
			return nil, s.fail(ctx, product, link, err, start)
		}
		err := s.products.Save(ctx, product)
		if err == nil {
			break
		}
		if !errors.Is(err, shared.ErrConcurrencyConflict) {
			return nil, fmt.Errorf("failed to save pulled values of %s: %w", product.SKU, err)
		}
		if attempt >= maxSaveAttempts {
			return nil, fmt.Errorf("%w: %s kept changing locally: %w", integration.ErrConflict, product.SKU, err)
		}
		s.logger.Debug("Product changed concurrently, re-diffing",
			zap.String("product_id", product.ID.String()),
			zap.Int("attempt", attempt),
		)
		if product, err = s.products.GetProduct(ctx, product.ID); err != nil {
			return nil, err
		}
		if link = product.LinkFor(marketplace); link == nil {
			return nil, fmt.Errorf("%w: product %s on %s", integration.ErrLinkNotFound, product.SKU, marketplace)
		}
	}

	outcome := &ReconcileOutcome{
		ProductID:       product.ID,
		Marketplace:     marketplace,
		RemoteProductID: link.RemoteProductID,
		NoOp:            plan.NoOp(),
		Conflicts:       plan.Conflicts,
	}
	for _, c := range plan.Changes {
		if c.Direction == integration.DirectionPull {
			outcome.Pulled = append(outcome.Pulled, c.Field)
		} else {
			outcome.Pushed = append(outcome.Pushed, c.Field)
		}
	}

	revision := remote.RevisionHash
	if plan.PushesStockPrice() {
		ack, err := adapter.UpdateStockPrice(ctx, link.RemoteProductID, plan.Resolved.Quantity, plan.Resolved.Price)
		if err != nil {
			return nil, s.fail(ctx, product, link, err, start)
		}
		if ack.RevisionHash != "" {
			revision = ack.RevisionHash
		}
	}
	if plan.PushesDetails() {
		ref, err := s.pushDetails(ctx, adapter, product)
		if err != nil {
			return nil, s.fail(ctx, product, link, err, start)
		}
		if ref.RevisionHash != "" {
			revision = ref.RevisionHash
		}
	}

	for _, c := range plan.Conflicts {
		s.recordAudit(ctx, AuditEntry{
			Marketplace: marketplace,
			Operation:   OpProductReconcile,
			EntityType:  EntityProduct,
			EntityID:    product.SKU,
			Outcome:     integration.AuditOutcomeConflict,
			Detail: fmt.Sprintf("%s changed on both sides: local %s, remote %s, %s value kept",
				c.Field, c.LocalValue, c.RemoteValue, c.Winner),
		})
	}

	if outcome.NoOp && link.SyncStatus == integration.LinkStatusSynced && link.RemoteRevisionHash == revision {
		return outcome, nil
	}
	link.MarkSynced("", revision, plan.Resolved)
	if err := s.products.UpsertMarketplaceLink(ctx, link); err != nil {
		return nil, fmt.Errorf("failed to save marketplace link: %w", err)
	}

	if !outcome.NoOp {
		payload, _ := json.Marshal(plan.Changes)
		s.recordAudit(ctx, AuditEntry{
			Marketplace: marketplace,
			Operation:   OpProductReconcile,
			EntityType:  EntityProduct,
			EntityID:    product.SKU,
			Outcome:     integration.AuditOutcomeSuccess,
			Payload:     payload,
			Duration:    time.Since(start),
		})
	}
	return outcome, nil
}

func (s *ReconciliationService) pushDetails(ctx context.Context, adapter integration.MarketplaceAdapter, product *integration.Product) (*integration.RemoteProductRef, error) {
	if s.resolver == nil {
		return nil, fmt.Errorf("%w: no category resolver to push details", integration.ErrMappingUnresolved)
	}
	mapping, err := s.resolver.ResolveCategory(ctx, adapter.Code(), product)
	if err != nil {
		return nil, err
	}
	attrs := s.resolver.Attributes(adapter.Code(), product)
	if err := attrs.Err(); err != nil {
		return nil, err
	}
	return adapter.UpsertProduct(ctx, product, mapping, attrs.Attributes)
}

// fail marks the link and audits the failure. Link persistence errors are
// logged; the sync error is returned.
func (s *ReconciliationService) fail(ctx context.Context, product *integration.Product, link *integration.MarketplaceLink, err error, start time.Time) error {
	link.MarkError(err)
	if uerr := s.products.UpsertMarketplaceLink(ctx, link); uerr != nil {
		s.logger.Error("Failed to save marketplace link", zap.String("product_id", product.ID.String()), zap.Error(uerr))
	}
	s.recordAudit(ctx, AuditEntry{
		Marketplace: link.Marketplace,
		Operation:   OpProductReconcile,
		EntityType:  EntityProduct,
		EntityID:    product.SKU,
		Outcome:     integration.AuditOutcomeFailure,
		Err:         err,
		Duration:    time.Since(start),
	})
	return err
}

func (s *ReconciliationService) recordAudit(ctx context.Context, entry AuditEntry) {
	if s.audit != nil {
		s.audit.Record(ctx, entry)
	}
}

// comparableFields limits fields to what the adapter reads back
func comparableFields(adapter integration.MarketplaceAdapter, fields []integration.Field) []integration.Field {
	reported := integration.ReportedFields(adapter)
	if len(fields) == 0 {
		return reported
	}
	out := make([]integration.Field, 0, len(fields))
	for _, f := range fields {
		for _, r := range reported {
			if f == r {
				out = append(out, f)
				break
			}
		}
	}
	return out
}
