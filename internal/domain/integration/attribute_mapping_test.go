package integration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAttributeTable_RejectsUnknownTransform(t *testing.T) {
	_, err := NewAttributeTable(MarketplaceN11, []AttributeRule{
		{LocalKey: "color", RemoteKey: "Renk", Transform: "rot13"},
	})
	assert.Error(t, err)

	_, err = NewAttributeTable(MarketplaceN11, []AttributeRule{{LocalKey: "color"}})
	assert.Error(t, err)
}

func TestAttributeTable_Apply(t *testing.T) {
	table, err := NewAttributeTable(MarketplaceTrendyol, []AttributeRule{
		{LocalKey: "color", RemoteKey: "Renk", Transform: "upper", Required: true},
		{LocalKey: "weight_g", RemoteKey: "Ağırlık (kg)", Transform: "grams_to_kg"},
		{LocalKey: "waterproof", RemoteKey: "Su Geçirmez", Transform: "bool_yes_no"},
		{LocalKey: "size", RemoteKey: "Beden", Transform: "prefix:EU "},
	})
	require.NoError(t, err)

	res := table.Apply(map[string]string{
		"color":      "siyah",
		"weight_g":   "1250",
		"waterproof": "maybe",
		"size":       "38",
		"internal":   "x",
	})

	assert.True(t, res.Valid())
	assert.NoError(t, res.Err())
	assert.Equal(t, "SIYAH", res.Attributes["Renk"])
	assert.Equal(t, "1.25", res.Attributes["Ağırlık (kg)"])
	assert.Equal(t, "EU 38", res.Attributes["Beden"])
	assert.NotContains(t, res.Attributes, "Su Geçirmez")
	assert.Contains(t, res.Failed, "waterproof")
	assert.Equal(t, []string{"internal"}, res.Dropped)
}

func TestAttributeTable_MissingRequired(t *testing.T) {
	table, err := NewAttributeTable(MarketplaceHepsiburada, []AttributeRule{
		{LocalKey: "brand", RemoteKey: "Marka", Required: true},
	})
	require.NoError(t, err)

	res := table.Apply(map[string]string{"color": "red"})

	assert.False(t, res.Valid())
	assert.ErrorIs(t, res.Err(), ErrValidation)
	assert.Equal(t, []string{"brand"}, res.MissingRequired)
}
