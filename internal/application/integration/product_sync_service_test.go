package integration

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/meschain/marketsync/internal/domain/integration"
	"github.com/meschain/marketsync/internal/domain/shared"
)

type reconcilerFunc func(ctx context.Context, adapter integration.MarketplaceAdapter, p *integration.Product, fields ...integration.Field) (*ReconcileOutcome, error)

func (f reconcilerFunc) Reconcile(ctx context.Context, adapter integration.MarketplaceAdapter, p *integration.Product, fields ...integration.Field) (*ReconcileOutcome, error) {
	return f(ctx, adapter, p, fields...)
}

// listingAdapter returns a mock adapter whose listing is a single page
func listingAdapter(mp integration.MarketplaceCode, listed ...integration.RemoteProduct) *mockAdapter {
	adapter := newMockAdapter(mp)
	adapter.On("ListProducts", mock.Anything, "").Return(&integration.ProductPage{Products: listed}, nil)
	return adapter
}

func TestSyncProducts_NewProductIsListed(t *testing.T) {
	ctx := context.Background()
	mp := integration.MarketplaceTrendyol
	product := newTestProduct("ABC123", 249.90, 12)

	mapping, err := integration.NewCategoryMapping(product.CategoryID, mp,
		integration.RemoteCategory{ID: "411", Name: "Kadın Ayakkabı", Path: []string{"Giyim", "Kadın Ayakkabı"}, Leaf: true}, 0.9, true)
	require.NoError(t, err)

	repo := new(mockProductRepository)
	repo.On("FindPendingProducts", ctx, mp, DefaultBatchSize).Return([]integration.Product{*product}, nil)
	repo.On("FindLinkedProducts", ctx, mp, uuid.Nil, DefaultBatchSize).Return([]integration.Product{}, nil)
	var saved *integration.MarketplaceLink
	repo.On("UpsertMarketplaceLink", ctx, mock.AnythingOfType("*integration.MarketplaceLink")).
		Run(func(args mock.Arguments) {
			l := *args.Get(1).(*integration.MarketplaceLink)
			saved = &l
		}).Return(nil)

	resolver := new(mockCategoryResolver)
	resolver.On("ResolveCategory", ctx, mp, mock.Anything).Return(mapping, nil)

	adapter := newMockAdapter(mp)
	adapter.On("UpsertProduct", ctx, mock.Anything, mapping, mock.Anything).
		Return(&integration.RemoteProductRef{RemoteProductID: "TY-9001", RevisionHash: "rev-1"}, nil)

	audit := &recordingAudit{}
	svc := NewProductSyncService(ProductSyncServiceDeps{
		Products:   repo,
		Categories: resolver,
		Adapters:   integration.NewAdapterRegistry(adapter),
		Audit:      audit,
		Logger:     zap.NewNop(),
	})

	result, err := svc.SyncProducts(ctx, mp)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 0, result.Failed)
	require.NotNil(t, saved)
	assert.Equal(t, integration.LinkStatusSynced, saved.SyncStatus)
	assert.Equal(t, "TY-9001", saved.RemoteProductID)
	assert.Equal(t, "rev-1", saved.RemoteRevisionHash)
	assert.True(t, saved.Synced.Price.Equal(decimal.NewFromFloat(249.90)))
	assert.Equal(t, 12, saved.Synced.Quantity)

	success := audit.WithOutcome(integration.AuditOutcomeSuccess)
	require.Len(t, success, 1)
	assert.Equal(t, OpProductUpsert, success[0].Operation)
	assert.Equal(t, "ABC123", success[0].EntityID)
	assert.NotEmpty(t, success[0].Payload)
	adapter.AssertExpectations(t)
}

func TestSyncProducts_UnmappedCategoryMakesNoRemoteCall(t *testing.T) {
	ctx := context.Background()
	mp := integration.MarketplaceTrendyol
	product := newTestProduct("GARDEN-1", 99, 3)

	// a weak automatic mapping is not trusted and is re-matched
	weak, err := integration.NewCategoryMapping(product.CategoryID, mp,
		integration.RemoteCategory{ID: "900", Name: "Cep Telefonu", Path: []string{"Cep Telefonu"}, Leaf: true}, 0.4, true)
	require.NoError(t, err)

	mappings := new(mockCategoryMappingRepository)
	mappings.On("FindForCategory", ctx, product.CategoryID, mp).Return(weak, nil)
	categories := new(mockLocalCategoryReader)
	categories.On("GetCategory", ctx, product.CategoryID).Return(&integration.LocalCategory{
		ID: product.CategoryID, Name: "Bahçe Mobilyası", Path: []string{"Bahçe Mobilyası"},
	}, nil)

	adapter := newMockAdapter(mp)
	adapter.On("ListCategories", ctx).Return([]integration.RemoteCategory{
		{ID: "411", Name: "Kadın Ayakkabı", Path: []string{"Giyim", "Kadın Ayakkabı"}, Leaf: true},
		{ID: "900", Name: "Cep Telefonu", Path: []string{"Elektronik", "Cep Telefonu"}, Leaf: true},
	}, nil)
	registry := integration.NewAdapterRegistry(adapter)

	audit := &recordingAudit{}
	mapper := NewMappingService(MappingServiceDeps{
		Mappings:   mappings,
		Categories: categories,
		Adapters:   registry,
		Audit:      audit,
	})

	repo := new(mockProductRepository)
	repo.On("FindPendingProducts", ctx, mp, DefaultBatchSize).Return([]integration.Product{*product}, nil)
	repo.On("FindLinkedProducts", ctx, mp, uuid.Nil, DefaultBatchSize).Return([]integration.Product{}, nil)
	var saved *integration.MarketplaceLink
	repo.On("UpsertMarketplaceLink", ctx, mock.Anything).Run(func(args mock.Arguments) {
		l := *args.Get(1).(*integration.MarketplaceLink)
		saved = &l
	}).Return(nil)

	svc := NewProductSyncService(ProductSyncServiceDeps{
		Products:   repo,
		Categories: mapper,
		Adapters:   registry,
		Audit:      audit,
	})

	result, err := svc.SyncProducts(ctx, mp)
	require.NoError(t, err, "an unresolved mapping does not abort the batch")

	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, integration.ErrorKindMappingUnresolved, result.Failures[0].Kind)

	adapter.AssertNotCalled(t, "UpsertProduct", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	adapter.AssertNotCalled(t, "UpdateStockPrice", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	mappings.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)

	require.NotNil(t, saved)
	assert.Equal(t, integration.LinkStatusError, saved.SyncStatus)
	assert.Equal(t, integration.ErrorKindMappingUnresolved, saved.LastErrorKind)
	assert.False(t, saved.IsMapped())

	var productEntries []AuditEntry
	for _, e := range audit.Entries() {
		if e.Operation == OpProductUpsert {
			productEntries = append(productEntries, e)
		}
	}
	require.Len(t, productEntries, 1)
	assert.Equal(t, integration.AuditOutcomeSkipped, productEntries[0].Outcome)
	assert.ErrorIs(t, productEntries[0].Err, integration.ErrMappingUnresolved)
	assert.Equal(t, "GARDEN-1", productEntries[0].EntityID)
}

func TestSyncProducts_RateLimitAbortsBatch(t *testing.T) {
	ctx := context.Background()
	mp := integration.MarketplaceN11
	first := newTestProduct("SKU-1", 10, 1)
	second := newTestProduct("SKU-2", 20, 2)
	mapping := &integration.CategoryMapping{ID: uuid.New(), Marketplace: mp, RemoteCategoryID: "1001", ConfidenceScore: 1}

	repo := new(mockProductRepository)
	repo.On("FindPendingProducts", ctx, mp, DefaultBatchSize).Return([]integration.Product{*first, *second}, nil)
	repo.On("UpsertMarketplaceLink", ctx, mock.Anything).Return(nil)
	resolver := new(mockCategoryResolver)
	resolver.On("ResolveCategory", ctx, mp, mock.Anything).Return(mapping, nil)

	adapter := newMockAdapter(mp)
	adapter.On("UpsertProduct", ctx, mock.Anything, mapping, mock.Anything).
		Return(nil, fmt.Errorf("%w: 429", integration.ErrRateLimited)).Once()

	svc := NewProductSyncService(ProductSyncServiceDeps{
		Products:   repo,
		Categories: resolver,
		Adapters:   integration.NewAdapterRegistry(adapter),
		Audit:      &recordingAudit{},
	})

	result, err := svc.SyncProducts(ctx, mp)
	require.ErrorIs(t, err, integration.ErrRateLimited)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.RetryableFailures)
	adapter.AssertNumberOfCalls(t, "UpsertProduct", 1)
	repo.AssertNotCalled(t, "FindLinkedProducts", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSyncProducts_ValidationFailureContinues(t *testing.T) {
	ctx := context.Background()
	mp := integration.MarketplaceHepsiburada
	first := newTestProduct("SKU-1", 10, 1)
	second := newTestProduct("SKU-2", 20, 2)
	mapping := &integration.CategoryMapping{ID: uuid.New(), Marketplace: mp, RemoteCategoryID: "60001", ConfidenceScore: 1}

	repo := new(mockProductRepository)
	repo.On("FindPendingProducts", ctx, mp, DefaultBatchSize).Return([]integration.Product{*first, *second}, nil)
	repo.On("FindLinkedProducts", ctx, mp, uuid.Nil, DefaultBatchSize).Return([]integration.Product{}, nil)
	repo.On("UpsertMarketplaceLink", ctx, mock.Anything).Return(nil)
	resolver := new(mockCategoryResolver)
	resolver.On("ResolveCategory", ctx, mp, mock.Anything).Return(mapping, nil)

	adapter := newMockAdapter(mp)
	adapter.On("UpsertProduct", ctx, mock.MatchedBy(func(p *integration.Product) bool { return p.SKU == "SKU-1" }), mapping, mock.Anything).
		Return(nil, fmt.Errorf("%w: barcode missing", integration.ErrValidation))
	adapter.On("UpsertProduct", ctx, mock.MatchedBy(func(p *integration.Product) bool { return p.SKU == "SKU-2" }), mapping, mock.Anything).
		Return(&integration.RemoteProductRef{RemoteProductID: "HB-2"}, nil)

	audit := &recordingAudit{}
	svc := NewProductSyncService(ProductSyncServiceDeps{
		Products:   repo,
		Categories: resolver,
		Adapters:   integration.NewAdapterRegistry(adapter),
		Audit:      audit,
	})

	result, err := svc.SyncProducts(ctx, mp)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 0, result.RetryableFailures)

	failures := audit.WithOutcome(integration.AuditOutcomeFailure)
	require.Len(t, failures, 1)
	assert.Equal(t, "SKU-1", failures[0].EntityID)
}

func TestSyncProducts_SkipsDisabledLink(t *testing.T) {
	ctx := context.Background()
	mp := integration.MarketplaceEbay
	product := newTestProduct("SKU-OFF", 10, 1)
	link, err := product.EnsureLink(mp)
	require.NoError(t, err)
	link.Disable()

	repo := new(mockProductRepository)
	repo.On("FindPendingProducts", ctx, mp, DefaultBatchSize).Return([]integration.Product{*product}, nil)
	repo.On("FindLinkedProducts", ctx, mp, uuid.Nil, DefaultBatchSize).Return([]integration.Product{}, nil)
	resolver := new(mockCategoryResolver)
	adapter := newMockAdapter(mp)

	svc := NewProductSyncService(ProductSyncServiceDeps{
		Products:   repo,
		Categories: resolver,
		Adapters:   integration.NewAdapterRegistry(adapter),
	})

	result, err := svc.SyncProducts(ctx, mp)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
	resolver.AssertNotCalled(t, "ResolveCategory", mock.Anything, mock.Anything, mock.Anything)
}

func TestSyncProducts_DetailsPassReconcilesChangedNames(t *testing.T) {
	ctx := context.Background()
	mp := integration.MarketplaceTrendyol
	renamed := linkedProduct(mp, "SKU-A", snapshot(10, 5, "Old name"), "rev-1")
	renamed.Name = "New name"
	same := linkedProduct(mp, "SKU-B", snapshot(10, 5, "Product SKU-B"), "rev-1")

	repo := new(mockProductRepository)
	repo.On("FindPendingProducts", ctx, mp, DefaultBatchSize).Return([]integration.Product{}, nil)
	repo.On("FindLinkedProducts", ctx, mp, uuid.Nil, DefaultBatchSize).Return([]integration.Product{*renamed, *same}, nil)

	var reconciled []string
	var gotFields []integration.Field
	svc := NewProductSyncService(ProductSyncServiceDeps{
		Products: repo,
		Adapters: integration.NewAdapterRegistry(newMockAdapter(mp)),
		Reconciler: reconcilerFunc(func(ctx context.Context, a integration.MarketplaceAdapter, p *integration.Product, fields ...integration.Field) (*ReconcileOutcome, error) {
			reconciled = append(reconciled, p.SKU)
			gotFields = fields
			return &ReconcileOutcome{Pushed: []integration.Field{integration.FieldName}}, nil
		}),
	})

	result, err := svc.SyncProducts(ctx, mp)
	require.NoError(t, err)
	assert.Equal(t, []string{"SKU-A"}, reconciled)
	assert.Equal(t, []integration.Field{integration.FieldName, integration.FieldDescription}, gotFields)
	assert.Equal(t, 1, result.Succeeded)
}

func TestSyncStockPrice(t *testing.T) {
	ctx := context.Background()
	mp := integration.MarketplaceAmazon

	unchanged := linkedProduct(mp, "SKU-SAME", snapshot(10, 5, "Product SKU-SAME"), "rev-1")
	moved := linkedProduct(mp, "SKU-MOVED", snapshot(10, 5, "Product SKU-MOVED"), "rev-1")
	moved.Quantity = 2

	repo := new(mockProductRepository)
	repo.On("FindLinkedProducts", ctx, mp, uuid.Nil, DefaultBatchSize).Return([]integration.Product{*unchanged, *moved}, nil)

	var reconciled []string
	svc := NewProductSyncService(ProductSyncServiceDeps{
		Products: repo,
		Adapters: integration.NewAdapterRegistry(listingAdapter(mp)),
		Reconciler: reconcilerFunc(func(ctx context.Context, a integration.MarketplaceAdapter, p *integration.Product, fields ...integration.Field) (*ReconcileOutcome, error) {
			reconciled = append(reconciled, p.SKU)
			assert.Equal(t, integration.StockPriceFields(), fields)
			return &ReconcileOutcome{
				Pushed:    []integration.Field{integration.FieldQuantity},
				Conflicts: []integration.Conflict{{Field: integration.FieldPrice, Winner: "remote"}},
			}, nil
		}),
	})

	result, err := svc.SyncStockPrice(ctx, mp, integration.JobTypeStock)
	require.NoError(t, err)
	assert.Equal(t, []string{"SKU-MOVED"}, reconciled)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 1, result.Conflicts)
}

func TestSyncStockPrice_Pages(t *testing.T) {
	ctx := context.Background()
	mp := integration.MarketplaceOzon
	a := linkedProduct(mp, "SKU-1", snapshot(10, 5, "Product SKU-1"), "rev-1")
	b := linkedProduct(mp, "SKU-2", snapshot(10, 5, "Product SKU-2"), "rev-1")
	c := linkedProduct(mp, "SKU-3", snapshot(10, 5, "Product SKU-3"), "rev-1")

	repo := new(mockProductRepository)
	repo.On("FindLinkedProducts", ctx, mp, uuid.Nil, 2).Return([]integration.Product{*a, *b}, nil)
	repo.On("FindLinkedProducts", ctx, mp, b.ID, 2).Return([]integration.Product{*c}, nil)

	svc := NewProductSyncService(ProductSyncServiceDeps{
		Products:  repo,
		Adapters:  integration.NewAdapterRegistry(listingAdapter(mp)),
		BatchSize: 2,
	})

	result, err := svc.SyncStockPrice(ctx, mp, integration.JobTypePrice)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Skipped)
	repo.AssertExpectations(t)
}

func TestSyncStockPrice_RejectsOtherJobTypes(t *testing.T) {
	svc := NewProductSyncService(ProductSyncServiceDeps{})
	_, err := svc.SyncStockPrice(context.Background(), integration.MarketplaceN11, integration.JobTypeOrder)
	assert.ErrorIs(t, err, integration.ErrInvalidJobType)
}

func TestSyncStockPrice_ItemErrorsDoNotAbort(t *testing.T) {
	ctx := context.Background()
	mp := integration.MarketplaceTrendyol
	a := linkedProduct(mp, "SKU-1", snapshot(10, 5, "Product SKU-1"), "rev-1")
	a.Price = decimal.NewFromInt(11)
	b := linkedProduct(mp, "SKU-2", snapshot(10, 5, "Product SKU-2"), "rev-1")
	b.Price = decimal.NewFromInt(12)

	repo := new(mockProductRepository)
	repo.On("FindLinkedProducts", ctx, mp, uuid.Nil, DefaultBatchSize).Return([]integration.Product{*a, *b}, nil)

	calls := 0
	svc := NewProductSyncService(ProductSyncServiceDeps{
		Products: repo,
		Adapters: integration.NewAdapterRegistry(listingAdapter(mp)),
		Reconciler: reconcilerFunc(func(ctx context.Context, _ integration.MarketplaceAdapter, p *integration.Product, _ ...integration.Field) (*ReconcileOutcome, error) {
			calls++
			if p.SKU == "SKU-1" {
				return nil, fmt.Errorf("%w: listing removed", shared.ErrNotFound)
			}
			return &ReconcileOutcome{Pushed: []integration.Field{integration.FieldPrice}}, nil
		}),
	})

	result, err := svc.SyncStockPrice(ctx, mp, integration.JobTypePrice)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Succeeded)
}

func TestSyncStockPrice_RemoteOnlyChangeIsPulled(t *testing.T) {
	ctx := context.Background()
	mp := integration.MarketplaceTrendyol
	product := linkedProduct(mp, "SKU", snapshot(10, 5, "Product SKU"), "rev-1")
	quiet := linkedProduct(mp, "SKU-QUIET", snapshot(7, 1, "Product SKU-QUIET"), "rev-9")

	adapter := listingAdapter(mp,
		integration.RemoteProduct{RemoteProductID: "R-SKU", RevisionHash: "rev-2"},
		integration.RemoteProduct{RemoteProductID: "R-SKU-QUIET", RevisionHash: "rev-9"},
	)
	adapter.On("GetProduct", ctx, "R-SKU").Return(remoteOf(product, mp, 12, 5, "rev-2"), nil)

	repo := new(mockProductRepository)
	repo.On("FindLinkedProducts", ctx, mp, uuid.Nil, DefaultBatchSize).Return([]integration.Product{*product, *quiet}, nil)
	var saved *integration.Product
	repo.On("Save", ctx, mock.Anything).Run(func(args mock.Arguments) {
		p := *args.Get(1).(*integration.Product)
		saved = &p
	}).Return(nil)
	repo.On("UpsertMarketplaceLink", ctx, mock.Anything).Return(nil)

	svc := NewProductSyncService(ProductSyncServiceDeps{
		Products:   repo,
		Adapters:   integration.NewAdapterRegistry(adapter),
		Reconciler: newReconciler(repo, adapter, nil),
	})

	result, err := svc.SyncStockPrice(ctx, mp, integration.JobTypePrice)
	require.NoError(t, err)

	require.NotNil(t, saved, "the remote price is written locally")
	assert.Equal(t, "SKU", saved.SKU)
	assert.True(t, saved.Price.Equal(decimal.NewFromInt(12)))
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 1, result.Skipped)
	adapter.AssertNotCalled(t, "GetProduct", mock.Anything, "R-SKU-QUIET")
	adapter.AssertNotCalled(t, "UpdateStockPrice", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSyncStockPrice_Listing(t *testing.T) {
	mp := integration.MarketplaceHepsiburada

	tests := []struct {
		name       string
		setup      func(a *mockAdapter)
		wantErr    error
		wantCalled []string
	}{
		{
			name: "revisions are collected across pages",
			setup: func(a *mockAdapter) {
				a.On("ListProducts", mock.Anything, "").Return(&integration.ProductPage{
					Products:   []integration.RemoteProduct{{RemoteProductID: "R-SKU-1", RevisionHash: "rev-1"}},
					NextCursor: "p2",
				}, nil)
				a.On("ListProducts", mock.Anything, "p2").Return(&integration.ProductPage{
					Products: []integration.RemoteProduct{{RemoteProductID: "R-SKU-2", RevisionHash: "rev-7"}},
				}, nil)
			},
			wantCalled: []string{"SKU-2"},
		},
		{
			name: "a repeated cursor ends the listing",
			setup: func(a *mockAdapter) {
				a.On("ListProducts", mock.Anything, "").Return(&integration.ProductPage{NextCursor: "p2"}, nil).Once()
				a.On("ListProducts", mock.Anything, "p2").Return(&integration.ProductPage{
					Products:   []integration.RemoteProduct{{RemoteProductID: "R-SKU-1", RevisionHash: "rev-5"}},
					NextCursor: "p2",
				}, nil).Once()
			},
			wantCalled: []string{"SKU-1"},
		},
		{
			name: "transient listing failure keeps local detection",
			setup: func(a *mockAdapter) {
				a.On("ListProducts", mock.Anything, "").Return(nil, fmt.Errorf("%w: 503", integration.ErrTransientNetwork))
			},
		},
		{
			name: "auth failure aborts the pass",
			setup: func(a *mockAdapter) {
				a.On("ListProducts", mock.Anything, "").Return(nil, fmt.Errorf("%w: token expired", integration.ErrAuth))
			},
			wantErr: integration.ErrAuth,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			a := linkedProduct(mp, "SKU-1", snapshot(10, 5, "Product SKU-1"), "rev-1")
			b := linkedProduct(mp, "SKU-2", snapshot(10, 5, "Product SKU-2"), "rev-1")
			adapter := newMockAdapter(mp)
			tt.setup(adapter)

			repo := new(mockProductRepository)
			repo.On("FindLinkedProducts", ctx, mp, uuid.Nil, DefaultBatchSize).Return([]integration.Product{*a, *b}, nil)

			var reconciled []string
			svc := NewProductSyncService(ProductSyncServiceDeps{
				Products: repo,
				Adapters: integration.NewAdapterRegistry(adapter),
				Reconciler: reconcilerFunc(func(ctx context.Context, _ integration.MarketplaceAdapter, p *integration.Product, _ ...integration.Field) (*ReconcileOutcome, error) {
					reconciled = append(reconciled, p.SKU)
					return &ReconcileOutcome{Pulled: []integration.Field{integration.FieldPrice}}, nil
				}),
			})

			result, err := svc.SyncStockPrice(ctx, mp, integration.JobTypeStock)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				repo.AssertNotCalled(t, "FindLinkedProducts", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCalled, reconciled)
			assert.Equal(t, 2, result.Processed)
		})
	}
}

func TestSyncStockPrice_OutcomeCounting(t *testing.T) {
	mp := integration.MarketplaceEbay

	tests := []struct {
		name      string
		outcome   *ReconcileOutcome
		err       error
		wantErr   bool
		wantCount func(t *testing.T, r integration.SyncResult)
	}{
		{
			name:    "no-op counts as skipped",
			outcome: &ReconcileOutcome{NoOp: true},
			wantCount: func(t *testing.T, r integration.SyncResult) {
				assert.Equal(t, 2, r.Skipped)
			},
		},
		{
			name:    "conflicts are summed",
			outcome: &ReconcileOutcome{Pulled: []integration.Field{integration.FieldPrice}, Conflicts: []integration.Conflict{{Field: integration.FieldPrice}}},
			wantCount: func(t *testing.T, r integration.SyncResult) {
				assert.Equal(t, 2, r.Succeeded)
				assert.Equal(t, 2, r.Conflicts)
			},
		},
		{
			name: "validation failures continue",
			err:  fmt.Errorf("%w: price below floor", integration.ErrValidation),
			wantCount: func(t *testing.T, r integration.SyncResult) {
				assert.Equal(t, 2, r.Failed)
				assert.Zero(t, r.RetryableFailures)
			},
		},
		{
			name:    "rate limit timeout stops at the first item",
			err:     fmt.Errorf("%w: budget exhausted", integration.ErrRateLimitTimeout),
			wantErr: true,
			wantCount: func(t *testing.T, r integration.SyncResult) {
				assert.Equal(t, 1, r.Processed)
				assert.Equal(t, 1, r.Failed)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			a := linkedProduct(mp, "SKU-1", snapshot(10, 5, "Product SKU-1"), "rev-1")
			a.Quantity = 1
			b := linkedProduct(mp, "SKU-2", snapshot(10, 5, "Product SKU-2"), "rev-1")
			b.Quantity = 2

			repo := new(mockProductRepository)
			repo.On("FindLinkedProducts", ctx, mp, uuid.Nil, DefaultBatchSize).Return([]integration.Product{*a, *b}, nil)
			svc := NewProductSyncService(ProductSyncServiceDeps{
				Products: repo,
				Adapters: integration.NewAdapterRegistry(listingAdapter(mp)),
				Reconciler: reconcilerFunc(func(context.Context, integration.MarketplaceAdapter, *integration.Product, ...integration.Field) (*ReconcileOutcome, error) {
					return tt.outcome, tt.err
				}),
			})

			result, err := svc.SyncStockPrice(ctx, mp, integration.JobTypeStock)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			tt.wantCount(t, result)
		})
	}
}
