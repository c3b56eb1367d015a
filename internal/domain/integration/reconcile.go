package integration

import (
	"strconv"
)

// Field is a synchronizable product field
type Field string

const (
	FieldPrice       Field = "price"
	FieldQuantity    Field = "quantity"
	FieldName        Field = "name"
	FieldDescription Field = "description"
)

// AllFields returns all synchronizable fields
func AllFields() []Field {
	return []Field{FieldPrice, FieldQuantity, FieldName, FieldDescription}
}

// StockPriceFields returns the fields the marketplace is authoritative for
func StockPriceFields() []Field {
	return []Field{FieldPrice, FieldQuantity}
}

// RemoteWins returns true if the marketplace value prevails on conflict.
// Marketplaces are authoritative for price and stock of an accepted listing;
// the merchant catalog is authoritative for descriptive fields.
func (f Field) RemoteWins() bool {
	return f == FieldPrice || f == FieldQuantity
}

// Direction tells which side a field change is written to
type Direction string

const (
	// DirectionPush writes the local value to the marketplace
	DirectionPush Direction = "push"
	// DirectionPull writes the remote value to the catalog store
	DirectionPull Direction = "pull"
)

// FieldChange is one field that differs between local and remote state
type FieldChange struct {
	Field       Field
	LocalValue  string
	RemoteValue string
	Direction   Direction
}

// Conflict records a field both sides changed since the last sync
type Conflict struct {
	Field       Field
	LocalValue  string
	RemoteValue string
	// Winner is "remote" or "local"
	Winner string
}

// ProductReconciliation is the field-level plan for one product on one marketplace
type ProductReconciliation struct {
	Changes   []FieldChange
	Conflicts []Conflict
	// Resolved is the state both sides hold once the plan is applied
	Resolved ProductSnapshot
	// RemoteRevision is the revision the plan was computed against
	RemoteRevision string
}

// NoOp returns true if local and remote agree and no call is needed
func (r *ProductReconciliation) NoOp() bool {
	return len(r.Changes) == 0
}

// Pushes returns the changes to write to the marketplace
func (r *ProductReconciliation) Pushes() []FieldChange {
	return r.filter(DirectionPush)
}

// Pulls returns the changes to write to the catalog store
func (r *ProductReconciliation) Pulls() []FieldChange {
	return r.filter(DirectionPull)
}

func (r *ProductReconciliation) filter(d Direction) []FieldChange {
	var out []FieldChange
	for _, c := range r.Changes {
		if c.Direction == d {
			out = append(out, c)
		}
	}
	return out
}

// PushesStockPrice returns true if price or quantity must be sent
func (r *ProductReconciliation) PushesStockPrice() bool {
	for _, c := range r.Pushes() {
		if c.Field.RemoteWins() {
			return true
		}
	}
	return false
}

// PushesDetails returns true if name or description must be sent
func (r *ProductReconciliation) PushesDetails() bool {
	for _, c := range r.Pushes() {
		if !c.Field.RemoteWins() {
			return true
		}
	}
	return false
}

// ReconcileProduct computes the field-level diff between the local product,
// the state agreed at the last sync (held by the link) and the latest remote
// state. Only the given fields are compared; none means all.
//
// A field changed locally when it differs from the link snapshot. It changed
// remotely when the remote revision differs from the link revision and the
// remote value differs from the snapshot. When both changed, price and
// quantity take the remote value and name and description keep the local
// one; each such field yields one Conflict.
func ReconcileProduct(local *Product, link *MarketplaceLink, remote *RemoteProduct, fields ...Field) ProductReconciliation {
	if len(fields) == 0 {
		fields = AllFields()
	}

	synced := link.Synced
	revisionMoved := link.RemoteRevisionHash != "" && remote.RevisionHash != link.RemoteRevisionHash
	localSnap := local.Snapshot()
	remoteSnap := remote.Snapshot()

	plan := ProductReconciliation{
		Resolved:       localSnap,
		RemoteRevision: remote.RevisionHash,
	}
	// fields outside the comparison keep the remote value, which is what the listing holds
	for _, f := range AllFields() {
		if !containsField(fields, f) {
			setField(&plan.Resolved, f, remoteSnap)
		}
	}

	for _, f := range fields {
		lv, rv, sv := fieldValue(localSnap, f), fieldValue(remoteSnap, f), fieldValue(synced, f)
		if lv == rv {
			continue
		}

		localChanged := lv != sv
		remoteChanged := revisionMoved && rv != sv

		direction := DirectionPush
		switch {
		case localChanged && remoteChanged:
			winner := "local"
			if f.RemoteWins() {
				winner = "remote"
				direction = DirectionPull
			}
			plan.Conflicts = append(plan.Conflicts, Conflict{Field: f, LocalValue: lv, RemoteValue: rv, Winner: winner})
		case remoteChanged && f.RemoteWins():
			direction = DirectionPull
		}

		if direction == DirectionPull {
			setField(&plan.Resolved, f, remoteSnap)
		}
		plan.Changes = append(plan.Changes, FieldChange{Field: f, LocalValue: lv, RemoteValue: rv, Direction: direction})
	}
	return plan
}

// ApplyPulls writes the pulled remote values into the product
func (r *ProductReconciliation) ApplyPulls(p *Product) error {
	for _, c := range r.Pulls() {
		switch c.Field {
		case FieldPrice:
			if err := p.UpdatePrice(r.Resolved.Price); err != nil {
				return err
			}
		case FieldQuantity:
			if err := p.UpdateQuantity(r.Resolved.Quantity); err != nil {
				return err
			}
		case FieldName, FieldDescription:
			if err := p.UpdateDetails(r.Resolved.Name, r.Resolved.Description); err != nil {
				return err
			}
		}
	}
	return nil
}

func containsField(fields []Field, f Field) bool {
	for _, x := range fields {
		if x == f {
			return true
		}
	}
	return false
}

func fieldValue(s ProductSnapshot, f Field) string {
	switch f {
	case FieldPrice:
		return s.Price.StringFixed(2)
	case FieldQuantity:
		return strconv.Itoa(s.Quantity)
	case FieldName:
		return s.Name
	case FieldDescription:
		return s.Description
	}
	return ""
}

func setField(dst *ProductSnapshot, f Field, src ProductSnapshot) {
	switch f {
	case FieldPrice:
		dst.Price = src.Price
	case FieldQuantity:
		dst.Quantity = src.Quantity
	case FieldName:
		dst.Name = src.Name
	case FieldDescription:
		dst.Description = src.Description
	}
}
