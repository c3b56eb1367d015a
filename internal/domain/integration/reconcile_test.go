package integration

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReconcileFixture(t *testing.T, local, synced, remote ProductSnapshot, localRev, remoteRev string) (*Product, *MarketplaceLink, *RemoteProduct) {
	t.Helper()
	p, err := NewProduct("ABC123", local.Name, local.Price, local.Quantity, uuid.New())
	require.NoError(t, err)
	p.Description = local.Description

	link, err := p.EnsureLink(MarketplaceTrendyol)
	require.NoError(t, err)
	link.MarkSynced("remote-1", localRev, synced)

	r := &RemoteProduct{
		RemoteProductID: "remote-1",
		Name:            remote.Name,
		Description:     remote.Description,
		Price:           remote.Price,
		Quantity:        remote.Quantity,
		RevisionHash:    remoteRev,
	}
	return p, link, r
}

func snap(price int64, qty int, name string) ProductSnapshot {
	return ProductSnapshot{Price: decimal.NewFromInt(price), Quantity: qty, Name: name, Description: "desc"}
}

func TestReconcileProduct_ConflictRemoteWinsForPrice(t *testing.T) {
	// local moved 9 -> 10, marketplace moved 9 -> 12
	for i := 0; i < 20; i++ {
		p, link, remote := newReconcileFixture(t, snap(10, 5, "Shoe"), snap(9, 5, "Shoe"), snap(12, 5, "Shoe"), "rev-1", "rev-2")

		plan := ReconcileProduct(p, link, remote)

		require.Len(t, plan.Conflicts, 1)
		assert.Equal(t, FieldPrice, plan.Conflicts[0].Field)
		assert.Equal(t, "remote", plan.Conflicts[0].Winner)
		assert.True(t, plan.Resolved.Price.Equal(decimal.NewFromInt(12)))
		require.Len(t, plan.Pulls(), 1)
		assert.Empty(t, plan.Pushes())

		require.NoError(t, plan.ApplyPulls(p))
		assert.True(t, p.Price.Equal(decimal.NewFromInt(12)))
	}
}

func TestReconcileProduct_ConflictWithoutSnapshot(t *testing.T) {
	p, link, remote := newReconcileFixture(t, snap(10, 5, "Shoe"), ProductSnapshot{}, snap(12, 5, "Shoe"), "rev-1", "rev-2")
	p.Description = "desc"
	remote.Description = "desc"

	plan := ReconcileProduct(p, link, remote)

	require.Len(t, plan.Conflicts, 1)
	assert.Equal(t, "12.00", plan.Conflicts[0].RemoteValue)
	assert.True(t, plan.Resolved.Price.Equal(decimal.NewFromInt(12)))
}

func TestReconcileProduct_ConflictLocalWinsForName(t *testing.T) {
	p, link, remote := newReconcileFixture(t, snap(10, 5, "New Shoe"), snap(10, 5, "Shoe"), snap(10, 5, "Remote Shoe"), "rev-1", "rev-2")

	plan := ReconcileProduct(p, link, remote)

	require.Len(t, plan.Conflicts, 1)
	assert.Equal(t, FieldName, plan.Conflicts[0].Field)
	assert.Equal(t, "local", plan.Conflicts[0].Winner)
	assert.Equal(t, "New Shoe", plan.Resolved.Name)
	assert.True(t, plan.PushesDetails())
	assert.False(t, plan.PushesStockPrice())
}

func TestReconcileProduct_NoOpWhenEqual(t *testing.T) {
	s := snap(100, 50, "Shoe")
	p, link, remote := newReconcileFixture(t, s, s, s, "rev-1", "rev-1")

	plan := ReconcileProduct(p, link, remote)

	assert.True(t, plan.NoOp())
	assert.Empty(t, plan.Conflicts)
}

func TestReconcileProduct_Directions(t *testing.T) {
	tests := []struct {
		name      string
		local     ProductSnapshot
		synced    ProductSnapshot
		remote    ProductSnapshot
		remoteRev string
		field     Field
		want      Direction
	}{
		{"local price change is pushed", snap(11, 5, "A"), snap(10, 5, "A"), snap(10, 5, "A"), "rev-1", FieldPrice, DirectionPush},
		{"remote stock change is pulled", snap(10, 5, "A"), snap(10, 5, "A"), snap(10, 3, "A"), "rev-2", FieldQuantity, DirectionPull},
		{"remote name change is overwritten", snap(10, 5, "A"), snap(10, 5, "A"), snap(10, 5, "B"), "rev-2", FieldName, DirectionPush},
		{"drift without revision change is pushed", snap(10, 5, "A"), snap(10, 5, "A"), snap(10, 7, "A"), "rev-1", FieldQuantity, DirectionPush},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, link, remote := newReconcileFixture(t, tt.local, tt.synced, tt.remote, "rev-1", tt.remoteRev)

			plan := ReconcileProduct(p, link, remote)

			require.Len(t, plan.Changes, 1)
			assert.Equal(t, tt.field, plan.Changes[0].Field)
			assert.Equal(t, tt.want, plan.Changes[0].Direction)
			assert.Empty(t, plan.Conflicts)
		})
	}
}

func TestReconcileProduct_FieldSubset(t *testing.T) {
	p, link, remote := newReconcileFixture(t, snap(11, 5, "Local"), snap(10, 5, "A"), snap(10, 5, "Remote"), "rev-1", "rev-1")

	plan := ReconcileProduct(p, link, remote, StockPriceFields()...)

	require.Len(t, plan.Changes, 1)
	assert.Equal(t, FieldPrice, plan.Changes[0].Field)
	assert.Equal(t, "Remote", plan.Resolved.Name)
}

func TestReconcileProduct_FirstSyncPushesLocal(t *testing.T) {
	p, err := NewProduct("ABC123", "Shoe", decimal.NewFromInt(100), 50, uuid.New())
	require.NoError(t, err)
	link, err := p.EnsureLink(MarketplaceTrendyol)
	require.NoError(t, err)
	remote := &RemoteProduct{Name: "Shoe", Price: decimal.NewFromInt(90), Quantity: 50, RevisionHash: "rev-9"}

	plan := ReconcileProduct(p, link, remote)

	require.Len(t, plan.Changes, 1)
	assert.Equal(t, DirectionPush, plan.Changes[0].Direction)
	assert.Empty(t, plan.Conflicts)
}

func TestMarketplaceLink_ParkAndRelease(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantParked bool
	}{
		{"validation rejection parks", ErrValidation, true},
		{"missing mapping parks", ErrMappingUnresolved, true},
		{"transient failure retries", ErrTransientNetwork, false},
		{"rate limit retries", ErrRateLimited, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			link := &MarketplaceLink{Marketplace: MarketplaceN11, SyncStatus: LinkStatusPending}
			link.MarkError(tt.err)
			assert.Equal(t, tt.wantParked, link.IsParked())

			released := link.Release()
			assert.Equal(t, tt.wantParked, released)
			if tt.wantParked {
				assert.Equal(t, LinkStatusPending, link.SyncStatus)
				assert.Empty(t, link.LastError)
				assert.Equal(t, ErrorKindNone, link.LastErrorKind)
			} else {
				assert.Equal(t, LinkStatusError, link.SyncStatus)
			}
		})
	}
}
