package integration

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/meschain/marketsync/internal/domain/integration"
	"github.com/meschain/marketsync/internal/domain/shared"
)

func remoteOf(p *integration.Product, mp integration.MarketplaceCode, price float64, qty int, revision string) *integration.RemoteProduct {
	return &integration.RemoteProduct{
		RemoteProductID: p.LinkFor(mp).RemoteProductID,
		SKU:             p.SKU,
		Name:            p.Name,
		Description:     p.Description,
		Price:           decimal.NewFromFloat(price),
		Quantity:        qty,
		RevisionHash:    revision,
	}
}

func newReconciler(repo *mockProductRepository, adapter *mockAdapter, audit *recordingAudit) *ReconciliationService {
	var recorder AuditRecorder
	if audit != nil {
		recorder = audit
	}
	return NewReconciliationService(repo, integration.NewAdapterRegistry(adapter), nil, recorder, zap.NewNop())
}

func TestReconcile_ConflictRemotePriceWins(t *testing.T) {
	ctx := context.Background()
	mp := integration.MarketplaceTrendyol
	product := linkedProduct(mp, "SKU-C", snapshot(11, 4, "Product SKU-C"), "rev-1")
	require.NoError(t, product.UpdatePrice(decimal.NewFromInt(10)))

	adapter := newMockAdapter(mp)
	adapter.On("GetProduct", ctx, "R-SKU-C").Return(remoteOf(product, mp, 12, 4, "rev-2"), nil)

	repo := new(mockProductRepository)
	var savedPrice decimal.Decimal
	repo.On("Save", ctx, mock.Anything).Run(func(args mock.Arguments) {
		savedPrice = args.Get(1).(*integration.Product).Price
	}).Return(nil)
	var link *integration.MarketplaceLink
	repo.On("UpsertMarketplaceLink", ctx, mock.Anything).Run(func(args mock.Arguments) {
		l := *args.Get(1).(*integration.MarketplaceLink)
		link = &l
	}).Return(nil)

	audit := &recordingAudit{}
	outcome, err := newReconciler(repo, adapter, audit).Reconcile(ctx, adapter, product)
	require.NoError(t, err)

	assert.True(t, savedPrice.Equal(decimal.NewFromInt(12)), "remote price is applied locally")
	assert.True(t, product.Price.Equal(decimal.NewFromInt(12)))
	assert.Equal(t, []integration.Field{integration.FieldPrice}, outcome.Pulled)
	assert.Empty(t, outcome.Pushed)
	adapter.AssertNotCalled(t, "UpdateStockPrice", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	conflicts := audit.WithOutcome(integration.AuditOutcomeConflict)
	require.Len(t, conflicts, 1)
	assert.Equal(t, OpProductReconcile, conflicts[0].Operation)
	assert.Equal(t, "SKU-C", conflicts[0].EntityID)
	assert.Contains(t, conflicts[0].Detail, "local 10")
	assert.Contains(t, conflicts[0].Detail, "remote 12")

	require.NotNil(t, link)
	assert.Equal(t, "rev-2", link.RemoteRevisionHash)
	assert.True(t, link.Synced.Price.Equal(decimal.NewFromInt(12)))
	assert.Equal(t, integration.LinkStatusSynced, link.SyncStatus)
}

func TestReconcile_LocalChangeIsPushed(t *testing.T) {
	ctx := context.Background()
	mp := integration.MarketplaceN11
	product := linkedProduct(mp, "SKU-P", snapshot(10, 4, "Product SKU-P"), "rev-1")
	require.NoError(t, product.UpdateQuantity(9))

	adapter := newMockAdapter(mp)
	adapter.On("GetProduct", ctx, "R-SKU-P").Return(remoteOf(product, mp, 10, 4, "rev-1"), nil)
	adapter.On("UpdateStockPrice", ctx, "R-SKU-P", 9, mock.MatchedBy(func(d decimal.Decimal) bool { return d.Equal(decimal.NewFromInt(10)) })).
		Return(&integration.Ack{RemoteProductID: "R-SKU-P", RevisionHash: "rev-3"}, nil)

	repo := new(mockProductRepository)
	var link *integration.MarketplaceLink
	repo.On("UpsertMarketplaceLink", ctx, mock.Anything).Run(func(args mock.Arguments) {
		l := *args.Get(1).(*integration.MarketplaceLink)
		link = &l
	}).Return(nil)

	audit := &recordingAudit{}
	outcome, err := newReconciler(repo, adapter, audit).Reconcile(ctx, adapter, product, integration.StockPriceFields()...)
	require.NoError(t, err)

	assert.Equal(t, []integration.Field{integration.FieldQuantity}, outcome.Pushed)
	repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	require.NotNil(t, link)
	assert.Equal(t, "rev-3", link.RemoteRevisionHash)
	assert.Equal(t, 9, link.Synced.Quantity)
	assert.Empty(t, audit.WithOutcome(integration.AuditOutcomeConflict))
	assert.Len(t, audit.WithOutcome(integration.AuditOutcomeSuccess), 1)
}

func TestReconcile_NoOpIssuesNoWrites(t *testing.T) {
	ctx := context.Background()
	mp := integration.MarketplaceEbay
	product := linkedProduct(mp, "SKU-N", snapshot(10, 4, "Product SKU-N"), "rev-1")

	adapter := newMockAdapter(mp)
	adapter.On("GetProduct", ctx, "R-SKU-N").Return(remoteOf(product, mp, 10, 4, "rev-1"), nil)
	repo := new(mockProductRepository)
	audit := &recordingAudit{}

	outcome, err := newReconciler(repo, adapter, audit).Reconcile(ctx, adapter, product)
	require.NoError(t, err)

	assert.True(t, outcome.NoOp)
	adapter.AssertNotCalled(t, "UpdateStockPrice", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	adapter.AssertNotCalled(t, "UpsertProduct", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "UpsertMarketplaceLink", mock.Anything, mock.Anything)
	assert.Empty(t, audit.Entries())
}

func TestReconcile_RetriesConcurrentSave(t *testing.T) {
	ctx := context.Background()
	mp := integration.MarketplaceTrendyol
	product := linkedProduct(mp, "SKU-R", snapshot(10, 4, "Product SKU-R"), "rev-1")
	fresh := *product
	fresh.Links = append([]integration.MarketplaceLink(nil), product.Links...)
	fresh.Version = product.Version + 1

	adapter := newMockAdapter(mp)
	adapter.On("GetProduct", ctx, "R-SKU-R").Return(remoteOf(product, mp, 10, 7, "rev-2"), nil)

	repo := new(mockProductRepository)
	repo.On("Save", ctx, mock.Anything).Return(shared.ErrConcurrencyConflict).Once()
	repo.On("Save", ctx, mock.Anything).Return(nil).Once()
	repo.On("GetProduct", ctx, product.ID).Return(&fresh, nil).Once()
	repo.On("UpsertMarketplaceLink", ctx, mock.Anything).Return(nil)

	outcome, err := newReconciler(repo, adapter, &recordingAudit{}).Reconcile(ctx, adapter, product)
	require.NoError(t, err)

	assert.Equal(t, []integration.Field{integration.FieldQuantity}, outcome.Pulled)
	assert.Equal(t, 7, fresh.Quantity)
	repo.AssertNumberOfCalls(t, "Save", 2)
}

func TestReconcile_GivesUpAfterRepeatedConflicts(t *testing.T) {
	ctx := context.Background()
	mp := integration.MarketplaceTrendyol
	product := linkedProduct(mp, "SKU-G", snapshot(10, 4, "Product SKU-G"), "rev-1")

	adapter := newMockAdapter(mp)
	adapter.On("GetProduct", ctx, "R-SKU-G").Return(remoteOf(product, mp, 10, 1, "rev-2"), nil)

	repo := new(mockProductRepository)
	repo.On("Save", ctx, mock.Anything).Return(shared.ErrConcurrencyConflict)
	reload := func() *integration.Product {
		p := *product
		p.Links = append([]integration.MarketplaceLink(nil), product.Links...)
		p.Quantity = 4
		return &p
	}
	repo.On("GetProduct", ctx, product.ID).Return(reload(), nil).Once()
	repo.On("GetProduct", ctx, product.ID).Return(reload(), nil).Once()

	_, err := newReconciler(repo, adapter, &recordingAudit{}).Reconcile(ctx, adapter, product)
	require.ErrorIs(t, err, integration.ErrConflict)
	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	assert.Equal(t, integration.ErrorKindConflict, integration.Classify(err))
	repo.AssertNumberOfCalls(t, "Save", maxSaveAttempts)
}

func TestReconcile_RemoteFailureMarksLink(t *testing.T) {
	ctx := context.Background()
	mp := integration.MarketplaceOzon
	product := linkedProduct(mp, "SKU-F", snapshot(10, 4, "Product SKU-F"), "rev-1")

	adapter := newMockAdapter(mp)
	adapter.On("GetProduct", ctx, "R-SKU-F").Return(nil, fmt.Errorf("%w: 503", integration.ErrTransientNetwork))

	repo := new(mockProductRepository)
	var link *integration.MarketplaceLink
	repo.On("UpsertMarketplaceLink", ctx, mock.Anything).Run(func(args mock.Arguments) {
		l := *args.Get(1).(*integration.MarketplaceLink)
		link = &l
	}).Return(nil)

	audit := &recordingAudit{}
	_, err := newReconciler(repo, adapter, audit).Reconcile(ctx, adapter, product)
	require.ErrorIs(t, err, integration.ErrTransientNetwork)

	require.NotNil(t, link)
	assert.Equal(t, integration.LinkStatusError, link.SyncStatus)
	assert.Equal(t, integration.ErrorKindTransientNetwork, link.LastErrorKind)
	assert.Len(t, audit.WithOutcome(integration.AuditOutcomeFailure), 1)
}

func TestReconcile_RequiresMappedLink(t *testing.T) {
	mp := integration.MarketplaceAmazon
	adapter := newMockAdapter(mp)
	svc := newReconciler(new(mockProductRepository), adapter, nil)

	_, err := svc.Reconcile(context.Background(), adapter, newTestProduct("SKU-U", 1, 1))
	assert.ErrorIs(t, err, integration.ErrLinkNotFound)

	disabled := linkedProduct(mp, "SKU-D", snapshot(1, 1, "Product SKU-D"), "rev-1")
	disabled.LinkFor(mp).Disable()
	_, err = svc.Reconcile(context.Background(), adapter, disabled)
	assert.ErrorIs(t, err, integration.ErrLinkDisabled)
}

// quantityOnly reads back stock alone
type quantityOnly struct {
	*mockAdapter
}

func (quantityOnly) ReportedFields() []integration.Field {
	return []integration.Field{integration.FieldQuantity}
}

func TestReconcile_ComparesOnlyReportedFields(t *testing.T) {
	ctx := context.Background()
	mp := integration.MarketplaceHepsiburada
	product := linkedProduct(mp, "SKU-Q", snapshot(10, 4, "Product SKU-Q"), "rev-1")

	inner := newMockAdapter(mp)
	// the listing read carries no price; a zero price must not be seen as a change
	inner.On("GetProduct", ctx, "R-SKU-Q").Return(remoteOf(product, mp, 0, 4, "rev-1"), nil)
	adapter := quantityOnly{inner}

	repo := new(mockProductRepository)
	outcome, err := NewReconciliationService(repo, integration.NewAdapterRegistry(adapter), nil, nil, nil).
		Reconcile(ctx, adapter, product, integration.StockPriceFields()...)
	require.NoError(t, err)
	assert.True(t, outcome.NoOp)
}

func TestReconciliationService_ReconcileRemoteProduct(t *testing.T) {
	ctx := context.Background()
	mp := integration.MarketplaceTrendyol
	product := linkedProduct(mp, "SKU-W", snapshot(10, 4, "Product SKU-W"), "rev-1")

	adapter := newMockAdapter(mp)
	adapter.On("GetProduct", ctx, "R-SKU-W").Return(remoteOf(product, mp, 10, 4, "rev-1"), nil)
	repo := new(mockProductRepository)
	repo.On("FindByRemoteProductID", ctx, mp, "R-SKU-W").Return(product, nil)
	repo.On("FindByRemoteProductID", ctx, mp, "UNKNOWN").Return(nil, shared.ErrNotFound)

	svc := newReconciler(repo, adapter, nil)
	outcome, err := svc.ReconcileRemoteProduct(ctx, mp, "R-SKU-W")
	require.NoError(t, err)
	assert.Equal(t, product.ID, outcome.ProductID)

	_, err = svc.ReconcileRemoteProduct(ctx, mp, "UNKNOWN")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
