package integration

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trendyolTree() []RemoteCategory {
	return []RemoteCategory{
		{ID: "1", Name: "Giyim", Path: []string{"Giyim"}, Leaf: false},
		{ID: "411", Name: "Kadın Ayakkabı", Path: []string{"Giyim", "Ayakkabı", "Kadın Ayakkabı"}, Leaf: true},
		{ID: "412", Name: "Erkek Ayakkabı", Path: []string{"Giyim", "Ayakkabı", "Erkek Ayakkabı"}, Leaf: true},
		{ID: "900", Name: "Cep Telefonu", Path: []string{"Elektronik", "Telefon", "Cep Telefonu"}, Leaf: true},
	}
}

func TestNormalizeCategoryName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Kadın Ayakkabı & Çanta", "kadin ayakkabi ve canta"},
		{"  ELEKTRONİK  ", "elektronik"},
		{"Ev/Yaşam", "ev yasam"},
		{"Şapka-Bere", "sapka bere"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeCategoryName(tt.in))
		})
	}
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("ayakkabi", "ayakkabi"))
	assert.Equal(t, 0.0, Similarity("", ""))
	assert.InDelta(t, 0.875, Similarity("ayakkabi", "ayakkabu"), 1e-9)
	assert.Equal(t, 0.0, Similarity("abc", ""))
}

func TestCategoryMatcher_ExactPath(t *testing.T) {
	m := NewCategoryMatcher(0)
	local := LocalCategory{ID: uuid.New(), Name: "KADIN AYAKKABI", Path: []string{"giyim", "Ayakkabi", "KADIN AYAKKABI"}}

	res := m.Match(local, trendyolTree())

	require.NotNil(t, res.Best)
	assert.Equal(t, "411", res.Best.ID)
	assert.True(t, res.Exact)
	assert.Equal(t, 1.0, res.Score)
	assert.False(t, res.NeedsManualMapping)
}

func TestCategoryMatcher_Fuzzy(t *testing.T) {
	m := NewCategoryMatcher(0.75)
	local := LocalCategory{ID: uuid.New(), Name: "Kadın Ayakkabıları", Path: []string{"Moda", "Kadın Ayakkabıları"}}

	res := m.Match(local, trendyolTree())

	require.NotNil(t, res.Best)
	assert.Equal(t, "411", res.Best.ID)
	assert.False(t, res.Exact)
	assert.GreaterOrEqual(t, res.Score, 0.75)
	assert.False(t, res.NeedsManualMapping)
}

func TestCategoryMatcher_BelowThreshold(t *testing.T) {
	m := NewCategoryMatcher(0.75)
	local := LocalCategory{ID: uuid.New(), Name: "Bahçe Mobilyası", Path: []string{"Bahçe Mobilyası"}}

	res := m.Match(local, trendyolTree())

	assert.True(t, res.NeedsManualMapping)
	assert.Less(t, res.Score, 0.75)
}

func TestCategoryMatcher_SkipsNonLeaf(t *testing.T) {
	m := NewCategoryMatcher(0.75)
	local := LocalCategory{ID: uuid.New(), Name: "Giyim", Path: []string{"Giyim"}}

	res := m.Match(local, trendyolTree())

	if res.Best != nil {
		assert.NotEqual(t, "1", res.Best.ID)
	}
	assert.True(t, res.NeedsManualMapping)
}

func TestCategoryMatcher_EmptyTree(t *testing.T) {
	res := NewCategoryMatcher(0.75).Match(LocalCategory{Name: "x"}, nil)
	assert.Nil(t, res.Best)
	assert.True(t, res.NeedsManualMapping)
}

func TestMappingSourceHash_StableUnderReorder(t *testing.T) {
	local := LocalCategory{Name: "Kadın Ayakkabı", Path: []string{"Giyim", "Kadın Ayakkabı"}}
	tree := trendyolTree()
	reversed := []RemoteCategory{tree[3], tree[2], tree[1], tree[0]}

	assert.Equal(t, MappingSourceHash(local, tree), MappingSourceHash(local, reversed))
	assert.NotEqual(t, MappingSourceHash(local, tree), MappingSourceHash(local, tree[:2]))
}

func TestCategoryMapping_IsConfident(t *testing.T) {
	remote := RemoteCategory{ID: "411", Name: "Kadın Ayakkabı"}

	auto, err := NewCategoryMapping(uuid.New(), MarketplaceTrendyol, remote, 0.4, true)
	require.NoError(t, err)
	assert.False(t, auto.IsConfident(DefaultMatchThreshold))

	manual, err := NewCategoryMapping(uuid.New(), MarketplaceTrendyol, remote, 0.4, false)
	require.NoError(t, err)
	assert.True(t, manual.IsConfident(DefaultMatchThreshold))

	_, err = NewCategoryMapping(uuid.New(), MarketplaceTrendyol, remote, 1.5, true)
	assert.ErrorIs(t, err, ErrInvalidCategoryMapping)
}
