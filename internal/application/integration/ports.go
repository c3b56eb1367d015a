package integration

import (
	"context"

	"github.com/meschain/marketsync/internal/domain/integration"
)

// AdapterResolver resolves marketplace adapters. *integration.AdapterRegistry implements it.
type AdapterResolver interface {
	Get(code integration.MarketplaceCode) (integration.MarketplaceAdapter, error)
}

// AuditRecorder writes audit entries. Implementations never fail the caller.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

// CategoryResolver resolves the marketplace category and attributes of a product
type CategoryResolver interface {
	ResolveCategory(ctx context.Context, marketplace integration.MarketplaceCode, product *integration.Product) (*integration.CategoryMapping, error)
	Attributes(marketplace integration.MarketplaceCode, product *integration.Product) integration.AttributeMappingResult
}

// EventQueue accepts normalized webhook events for asynchronous processing
type EventQueue interface {
	SubmitEvent(event *integration.WebhookEvent) error
}

// ProductReconciler reconciles one linked product against its remote listing
type ProductReconciler interface {
	Reconcile(ctx context.Context, adapter integration.MarketplaceAdapter, product *integration.Product, fields ...integration.Field) (*ReconcileOutcome, error)
}
