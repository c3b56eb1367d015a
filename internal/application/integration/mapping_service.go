package integration

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meschain/marketsync/internal/domain/integration"
	"github.com/meschain/marketsync/internal/domain/shared"
)

// MappingService resolves local categories and attributes onto marketplace
// taxonomies. Stored mappings are reused; missing ones are matched against the
// cached marketplace category tree and persisted when confident.
type MappingService struct {
	mappings   integration.CategoryMappingRepository
	categories integration.LocalCategoryReader
	adapters   AdapterResolver
	treeCache  integration.RemoteCategoryTreeCache
	matcher    *integration.CategoryMatcher
	attributes map[integration.MarketplaceCode]*integration.AttributeTable
	links      ParkedLinkReleaser
	audit      AuditRecorder
	logger     *zap.Logger
}

// ParkedLinkReleaser returns links parked on a missing mapping to the sync queue
type ParkedLinkReleaser interface {
	ReleaseParkedLinks(ctx context.Context, marketplace integration.MarketplaceCode, localCategoryID uuid.UUID) (int64, error)
}

// MappingServiceDeps holds the dependencies of the mapping service
type MappingServiceDeps struct {
	Mappings   integration.CategoryMappingRepository
	Categories integration.LocalCategoryReader
	Adapters   AdapterResolver
	// TreeCache is optional; without it every resolution lists the tree
	TreeCache integration.RemoteCategoryTreeCache
	Matcher   *integration.CategoryMatcher
	// Attributes holds the attribute table per marketplace; a marketplace
	// without a table receives no attributes
	Attributes map[integration.MarketplaceCode]*integration.AttributeTable
	// Links is optional; when set, a new mapping unparks the products of its category
	Links  ParkedLinkReleaser
	Audit  AuditRecorder
	Logger *zap.Logger
}

// NewMappingService creates a new MappingService
func NewMappingService(deps MappingServiceDeps) *MappingService {
	matcher := deps.Matcher
	if matcher == nil {
		matcher = integration.NewCategoryMatcher(integration.DefaultMatchThreshold)
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	attrs := deps.Attributes
	if attrs == nil {
		attrs = make(map[integration.MarketplaceCode]*integration.AttributeTable)
	}
	return &MappingService{
		mappings:   deps.Mappings,
		categories: deps.Categories,
		adapters:   deps.Adapters,
		treeCache:  deps.TreeCache,
		matcher:    matcher,
		attributes: attrs,
		links:      deps.Links,
		audit:      deps.Audit,
		logger:     logger,
	}
}

// Threshold returns the confidence threshold of automatic mappings
func (s *MappingService) Threshold() float64 {
	return s.matcher.Threshold
}

// ResolveCategory returns the mapping of the product category on a
// marketplace. A manual mapping always wins. Without a usable mapping the
// tree is matched; a best score under the threshold fails with
// ErrMappingUnresolved and nothing is persisted.
func (s *MappingService) ResolveCategory(
	ctx context.Context,
	marketplace integration.MarketplaceCode,
	product *integration.Product,
) (*integration.CategoryMapping, error) {
	stored, err := s.mappings.FindForCategory(ctx, product.CategoryID, marketplace)
	switch {
	case err == nil && stored.IsConfident(s.matcher.Threshold):
		return stored, nil
	case err != nil && !errors.Is(err, shared.ErrNotFound):
		return nil, fmt.Errorf("failed to load category mapping: %w", err)
	}

	local, err := s.categories.GetCategory(ctx, product.CategoryID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("%w: product %s has no category", integration.ErrMappingUnresolved, product.SKU)
		}
		return nil, fmt.Errorf("failed to load local category: %w", err)
	}

	tree, err := s.remoteTree(ctx, marketplace)
	if err != nil {
		return nil, err
	}

	return s.match(ctx, marketplace, *local, tree)
}

// match runs the matcher and persists a confident result
func (s *MappingService) match(
	ctx context.Context,
	marketplace integration.MarketplaceCode,
	local integration.LocalCategory,
	tree []integration.RemoteCategory,
) (*integration.CategoryMapping, error) {
	result := s.matcher.Match(local, tree)
	if result.Best == nil || result.NeedsManualMapping {
		err := fmt.Errorf("%w: %q on %s (best score %.2f)",
			integration.ErrMappingUnresolved, local.PathString(), marketplace, result.Score)
		s.recordAudit(ctx, AuditEntry{
			Marketplace: marketplace,
			Operation:   OpCategoryMap,
			EntityType:  EntityCategory,
			EntityID:    local.ID.String(),
			Outcome:     integration.AuditOutcomeSkipped,
			Err:         err,
		})
		return nil, err
	}

	mapping, err := integration.NewCategoryMapping(local.ID, marketplace, *result.Best, result.Score, true)
	if err != nil {
		return nil, err
	}
	mapping.SourceHash = integration.MappingSourceHash(local, tree)

	if err := s.mappings.DeleteAutoMappings(ctx, local.ID, marketplace); err != nil {
		return nil, fmt.Errorf("failed to replace automatic mapping: %w", err)
	}
	if err := s.mappings.Upsert(ctx, mapping); err != nil {
		return nil, fmt.Errorf("failed to save category mapping: %w", err)
	}

	s.logger.Info("Category mapped automatically",
		zap.String("marketplace", string(marketplace)),
		zap.String("local_category", local.PathString()),
		zap.String("remote_category", mapping.RemoteCategoryPath),
		zap.Float64("confidence", mapping.ConfidenceScore),
		zap.Bool("exact", result.Exact),
	)
	s.releaseParked(ctx, marketplace, local.ID)
	s.recordAudit(ctx, AuditEntry{
		Marketplace: marketplace,
		Operation:   OpCategoryMap,
		EntityType:  EntityCategory,
		EntityID:    local.ID.String(),
		Outcome:     integration.AuditOutcomeSuccess,
	})
	return mapping, nil
}

// SetManualMapping records an operator decision for a local category. It
// replaces automatic mappings and unparks products waiting for a mapping.
func (s *MappingService) SetManualMapping(
	ctx context.Context,
	localCategoryID uuid.UUID,
	marketplace integration.MarketplaceCode,
	remoteCategoryID string,
) (*integration.CategoryMapping, error) {
	if _, err := s.categories.GetCategory(ctx, localCategoryID); err != nil {
		return nil, err
	}

	tree, err := s.remoteTree(ctx, marketplace)
	if err != nil {
		return nil, err
	}
	var remote *integration.RemoteCategory
	for i := range tree {
		if tree[i].ID == remoteCategoryID {
			remote = &tree[i]
			break
		}
	}
	if remote == nil {
		return nil, fmt.Errorf("%w: remote category %s does not exist on %s",
			integration.ErrInvalidCategoryMapping, remoteCategoryID, marketplace)
	}

	mapping, err := integration.NewCategoryMapping(localCategoryID, marketplace, *remote, 1.0, false)
	if err != nil {
		return nil, err
	}
	if err := s.mappings.DeleteAutoMappings(ctx, localCategoryID, marketplace); err != nil {
		return nil, err
	}
	if err := s.mappings.Upsert(ctx, mapping); err != nil {
		return nil, err
	}

	s.logger.Info("Manual category mapping recorded",
		zap.String("marketplace", string(marketplace)),
		zap.String("local_category_id", localCategoryID.String()),
		zap.String("remote_category_id", remoteCategoryID),
	)
	s.releaseParked(ctx, marketplace, localCategoryID)
	s.recordAudit(ctx, AuditEntry{
		Marketplace: marketplace,
		Operation:   OpCategoryMap,
		EntityType:  EntityCategory,
		EntityID:    localCategoryID.String(),
		Outcome:     integration.AuditOutcomeSuccess,
		Detail:      "manual mapping to " + remote.PathString(),
	})
	return mapping, nil
}

// releaseParked requeues products that failed for lack of this mapping. The
// mapping is already stored, so a failure here only delays them until the next edit.
func (s *MappingService) releaseParked(ctx context.Context, marketplace integration.MarketplaceCode, localCategoryID uuid.UUID) {
	if s.links == nil {
		return
	}
	released, err := s.links.ReleaseParkedLinks(ctx, marketplace, localCategoryID)
	if err != nil {
		s.logger.Warn("Failed to release parked products",
			zap.String("marketplace", string(marketplace)),
			zap.String("local_category_id", localCategoryID.String()),
			zap.Error(err),
		)
		return
	}
	if released > 0 {
		s.logger.Info("Released parked products",
			zap.String("marketplace", string(marketplace)),
			zap.String("local_category_id", localCategoryID.String()),
			zap.Int64("count", released),
		)
	}
}

// RefreshResult summarizes a re-mapping pass
type RefreshResult struct {
	Unchanged int
	Remapped  int
	Parked    int
}

// RefreshAutoMappings re-runs automatic mapping after the marketplace tree
// changed. Mappings whose source hash still matches are left untouched;
// manual mappings are never revisited.
func (s *MappingService) RefreshAutoMappings(ctx context.Context, marketplace integration.MarketplaceCode) (*RefreshResult, error) {
	if s.treeCache != nil {
		if err := s.treeCache.Invalidate(ctx, marketplace); err != nil {
			s.logger.Warn("Failed to invalidate category tree cache", zap.Error(err))
		}
	}
	tree, err := s.remoteTree(ctx, marketplace)
	if err != nil {
		return nil, err
	}
	mappings, err := s.mappings.ListByMarketplace(ctx, marketplace)
	if err != nil {
		return nil, err
	}

	result := &RefreshResult{}
	for i := range mappings {
		m := &mappings[i]
		if !m.AutoMapped {
			continue
		}
		local, err := s.categories.GetCategory(ctx, m.LocalCategoryID)
		if err != nil {
			s.logger.Warn("Skipping mapping of missing local category",
				zap.String("local_category_id", m.LocalCategoryID.String()),
				zap.Error(err),
			)
			continue
		}
		if integration.MappingSourceHash(*local, tree) == m.SourceHash {
			result.Unchanged++
			continue
		}
		if _, err := s.match(ctx, marketplace, *local, tree); err != nil {
			if !errors.Is(err, integration.ErrMappingUnresolved) {
				return result, err
			}
			if err := s.mappings.DeleteAutoMappings(ctx, m.LocalCategoryID, marketplace); err != nil {
				return result, err
			}
			result.Parked++
			continue
		}
		result.Remapped++
	}
	return result, nil
}

// ListMappings returns the stored mappings of a marketplace
func (s *MappingService) ListMappings(ctx context.Context, marketplace integration.MarketplaceCode) ([]integration.CategoryMapping, error) {
	return s.mappings.ListByMarketplace(ctx, marketplace)
}

// Attributes translates the product attributes for a marketplace. Dropped
// and failed attributes are logged.
func (s *MappingService) Attributes(marketplace integration.MarketplaceCode, product *integration.Product) integration.AttributeMappingResult {
	table, ok := s.attributes[marketplace]
	if !ok {
		return integration.AttributeMappingResult{Attributes: integration.AttributeSet{}}
	}
	result := table.Apply(product.Attributes)
	if len(result.Dropped) > 0 {
		s.logger.Debug("Dropped unmapped attributes",
			zap.String("marketplace", string(marketplace)),
			zap.String("sku", product.SKU),
			zap.Strings("attributes", result.Dropped),
		)
	}
	for key, reason := range result.Failed {
		s.logger.Warn("Attribute transform failed",
			zap.String("marketplace", string(marketplace)),
			zap.String("sku", product.SKU),
			zap.String("attribute", key),
			zap.String("reason", reason),
		)
	}
	return result
}

// remoteTree returns the marketplace category tree, from cache when possible.
// Cache failures fall through to the marketplace.
func (s *MappingService) remoteTree(ctx context.Context, marketplace integration.MarketplaceCode) ([]integration.RemoteCategory, error) {
	if s.treeCache != nil {
		tree, ok, err := s.treeCache.Get(ctx, marketplace)
		if err != nil {
			s.logger.Warn("Category tree cache read failed", zap.String("marketplace", string(marketplace)), zap.Error(err))
		} else if ok {
			return tree, nil
		}
	}

	adapter, err := s.adapters.Get(marketplace)
	if err != nil {
		return nil, err
	}
	tree, err := adapter.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s categories: %w", marketplace, err)
	}

	if s.treeCache != nil {
		if err := s.treeCache.Set(ctx, marketplace, tree); err != nil {
			s.logger.Warn("Category tree cache write failed", zap.String("marketplace", string(marketplace)), zap.Error(err))
		}
	}
	return tree, nil
}

func (s *MappingService) recordAudit(ctx context.Context, entry AuditEntry) {
	if s.audit != nil {
		s.audit.Record(ctx, entry)
	}
}
