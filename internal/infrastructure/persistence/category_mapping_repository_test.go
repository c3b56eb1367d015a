package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meschain/marketsync/internal/domain/integration"
	"github.com/meschain/marketsync/internal/domain/shared"
)

func TestGormCategoryRepository_GetCategory(t *testing.T) {
	db := setupSyncTestDB(t)
	repo := NewGormCategoryRepository(db)
	ctx := context.Background()

	root, err := repo.CreateCategory(ctx, nil, "Giyim")
	require.NoError(t, err)
	mid, err := repo.CreateCategory(ctx, &root, "Erkek")
	require.NoError(t, err)
	leaf, err := repo.CreateCategory(ctx, &mid, " Gomlek ")
	require.NoError(t, err)

	cat, err := repo.GetCategory(ctx, leaf)
	require.NoError(t, err)
	assert.Equal(t, "Gomlek", cat.Name)
	assert.Equal(t, []string{"Giyim", "Erkek", "Gomlek"}, cat.Path)

	_, err = repo.GetCategory(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = repo.CreateCategory(ctx, nil, "  ")
	assert.Error(t, err)
}

func TestGormCategoryRepository_GetCategory_Cycle(t *testing.T) {
	db := setupSyncTestDB(t)
	repo := NewGormCategoryRepository(db)
	ctx := context.Background()

	a, err := repo.CreateCategory(ctx, nil, "A")
	require.NoError(t, err)
	b, err := repo.CreateCategory(ctx, &a, "B")
	require.NoError(t, err)
	require.NoError(t, db.Table("categories").Where("id = ?", a).Update("parent_id", b).Error)

	_, err = repo.GetCategory(ctx, b)
	assert.ErrorIs(t, err, ErrCategoryCycle)
}

func TestGormCategoryMappingRepository(t *testing.T) {
	db := setupSyncTestDB(t)
	repo := NewGormCategoryMappingRepository(db)
	ctx := context.Background()
	local := uuid.New()
	mp := integration.MarketplaceTrendyol

	auto := &integration.CategoryMapping{
		LocalCategoryID: local, Marketplace: mp,
		RemoteCategoryID: "411", RemoteCategoryName: "Gomlek",
		ConfidenceScore: 0.82, AutoMapped: true, SourceHash: "h1",
	}
	better := &integration.CategoryMapping{
		LocalCategoryID: local, Marketplace: mp,
		RemoteCategoryID: "412", RemoteCategoryName: "Erkek Gomlek",
		ConfidenceScore: 0.91, AutoMapped: true, SourceHash: "h1",
	}
	require.NoError(t, repo.Upsert(ctx, auto))
	require.NoError(t, repo.Upsert(ctx, better))

	found, err := repo.FindForCategory(ctx, local, mp)
	require.NoError(t, err)
	assert.Equal(t, "412", found.RemoteCategoryID, "highest confidence wins among automatic mappings")

	manual := &integration.CategoryMapping{
		LocalCategoryID: local, Marketplace: mp,
		RemoteCategoryID: "999", RemoteCategoryName: "Manual pick",
		ConfidenceScore: 0.1, AutoMapped: false,
	}
	require.NoError(t, repo.Upsert(ctx, manual))
	found, err = repo.FindForCategory(ctx, local, mp)
	require.NoError(t, err)
	assert.Equal(t, "999", found.RemoteCategoryID, "manual mappings win regardless of score")

	t.Run("upsert updates in place", func(t *testing.T) {
		createdAt := better.CreatedAt
		again := &integration.CategoryMapping{
			LocalCategoryID: local, Marketplace: mp,
			RemoteCategoryID: "412", RemoteCategoryName: "Erkek Gomlek",
			ConfidenceScore: 0.95, AutoMapped: true, SourceHash: "h2",
			CreatedAt: time.Now(),
		}
		require.NoError(t, repo.Upsert(ctx, again))

		all, err := repo.ListByMarketplace(ctx, mp)
		require.NoError(t, err)
		require.Len(t, all, 3)
		for _, m := range all {
			if m.RemoteCategoryID == "412" {
				assert.InDelta(t, 0.95, m.ConfidenceScore, 1e-9)
				assert.Equal(t, "h2", m.SourceHash)
				assert.WithinDuration(t, createdAt, m.CreatedAt, time.Second)
			}
		}
	})

	t.Run("delete auto mappings keeps manual ones", func(t *testing.T) {
		require.NoError(t, repo.DeleteAutoMappings(ctx, local, mp))
		all, err := repo.ListByMarketplace(ctx, mp)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.False(t, all[0].AutoMapped)
	})

	t.Run("other marketplace", func(t *testing.T) {
		_, err := repo.FindForCategory(ctx, local, integration.MarketplaceEbay)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormSyncCursorRepository(t *testing.T) {
	db := setupSyncTestDB(t)
	repo := NewGormSyncCursorRepository(db)
	ctx := context.Background()

	cursor, err := repo.Get(ctx, integration.MarketplaceAmazon, integration.JobTypeOrder)
	require.NoError(t, err)
	assert.Empty(t, cursor.Cursor)
	assert.Nil(t, cursor.Watermark)

	watermark := time.Date(2026, 4, 2, 8, 30, 0, 0, time.UTC)
	cursor.Observe(watermark)
	cursor.Advance("NextToken-abc")
	require.NoError(t, repo.Save(ctx, cursor))

	cursor.Advance("NextToken-def")
	require.NoError(t, repo.Save(ctx, cursor))

	stored, err := repo.Get(ctx, integration.MarketplaceAmazon, integration.JobTypeOrder)
	require.NoError(t, err)
	assert.Equal(t, "NextToken-def", stored.Cursor)
	require.NotNil(t, stored.Watermark)
	assert.True(t, watermark.Equal(*stored.Watermark))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
