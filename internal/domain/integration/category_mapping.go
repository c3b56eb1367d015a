package integration

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultMatchThreshold is the minimum confidence for an automatic category mapping
const DefaultMatchThreshold = 0.75

// LocalCategory is a category of the merchant catalog
type LocalCategory struct {
	ID   uuid.UUID
	Name string
	// Path lists category names from the root down to and including Name
	Path []string
}

// PathString joins the path with " > "
func (c LocalCategory) PathString() string {
	return strings.Join(c.Path, " > ")
}

// RemoteCategory is a node of a marketplace category tree
type RemoteCategory struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	Path []string `json:"path"`
	// Leaf is true when products may be listed directly under this category
	Leaf bool `json:"leaf"`
}

// PathString joins the path with " > "
func (c RemoteCategory) PathString() string {
	return strings.Join(c.Path, " > ")
}

// ---------------------------------------------------------------------------
// CategoryMapping Entity
// ---------------------------------------------------------------------------

// CategoryMapping correlates a local category with a marketplace category.
// Unique per (LocalCategoryID, Marketplace, RemoteCategoryID).
type CategoryMapping struct {
	ID                 uuid.UUID
	LocalCategoryID    uuid.UUID
	Marketplace        MarketplaceCode
	RemoteCategoryID   string
	RemoteCategoryName string
	RemoteCategoryPath string
	// ConfidenceScore is 1.0 for exact or manual mappings, the similarity otherwise
	ConfidenceScore float64
	// AutoMapped is false for operator-entered mappings, which always win
	AutoMapped bool
	// SourceHash fingerprints the inputs that produced an automatic mapping
	SourceHash string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewCategoryMapping creates a category mapping
func NewCategoryMapping(
	localCategoryID uuid.UUID,
	marketplace MarketplaceCode,
	remote RemoteCategory,
	confidence float64,
	autoMapped bool,
) (*CategoryMapping, error) {
	if localCategoryID == uuid.Nil || remote.ID == "" {
		return nil, ErrInvalidCategoryMapping
	}
	if !marketplace.IsValid() {
		return nil, ErrMarketplaceUnknown
	}
	if confidence < 0 || confidence > 1 {
		return nil, ErrInvalidCategoryMapping
	}
	now := time.Now()
	return &CategoryMapping{
		ID:                 uuid.New(),
		LocalCategoryID:    localCategoryID,
		Marketplace:        marketplace,
		RemoteCategoryID:   remote.ID,
		RemoteCategoryName: remote.Name,
		RemoteCategoryPath: remote.PathString(),
		ConfidenceScore:    confidence,
		AutoMapped:         autoMapped,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// IsConfident returns true if the mapping may be used for automatic sync
func (m *CategoryMapping) IsConfident(threshold float64) bool {
	if !m.AutoMapped {
		return true
	}
	return m.ConfidenceScore >= threshold
}

// SameTarget returns true if both mappings point at the same remote category
func (m *CategoryMapping) SameTarget(other *CategoryMapping) bool {
	return other != nil &&
		m.LocalCategoryID == other.LocalCategoryID &&
		m.Marketplace == other.Marketplace &&
		m.RemoteCategoryID == other.RemoteCategoryID
}

// MappingSourceHash fingerprints a local category and the candidate tree it
// was matched against. Re-running auto-mapping with the same hash is a no-op.
func MappingSourceHash(local LocalCategory, candidates []RemoteCategory) string {
	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.ID+"="+c.PathString())
	}
	sort.Strings(ids)

	h := sha256.New()
	h.Write([]byte(local.PathString()))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(ids, "\n")))
	return hex.EncodeToString(h.Sum(nil))
}

// ---------------------------------------------------------------------------
// Repository ports
// ---------------------------------------------------------------------------

// CategoryMappingRepository persists category mappings
type CategoryMappingRepository interface {
	// FindForCategory returns the preferred mapping of a local category on a marketplace:
	// manual mappings first, then the highest confidence. shared.ErrNotFound if none.
	FindForCategory(ctx context.Context, localCategoryID uuid.UUID, marketplace MarketplaceCode) (*CategoryMapping, error)

	// ListByMarketplace returns all mappings of a marketplace
	ListByMarketplace(ctx context.Context, marketplace MarketplaceCode) ([]CategoryMapping, error)

	// Upsert creates or updates the mapping identified by
	// (LocalCategoryID, Marketplace, RemoteCategoryID)
	Upsert(ctx context.Context, mapping *CategoryMapping) error

	// DeleteAutoMappings removes automatic mappings of a local category on a marketplace,
	// used when a better automatic match replaces an older one
	DeleteAutoMappings(ctx context.Context, localCategoryID uuid.UUID, marketplace MarketplaceCode) error
}

// LocalCategoryReader reads the merchant category tree
type LocalCategoryReader interface {
	// GetCategory returns the category with its full path, shared.ErrNotFound if missing
	GetCategory(ctx context.Context, id uuid.UUID) (*LocalCategory, error)
}

// RemoteCategoryTreeCache caches marketplace category trees (the api_cache)
type RemoteCategoryTreeCache interface {
	Get(ctx context.Context, marketplace MarketplaceCode) ([]RemoteCategory, bool, error)
	Set(ctx context.Context, marketplace MarketplaceCode, tree []RemoteCategory) error
	Invalidate(ctx context.Context, marketplace MarketplaceCode) error
}
