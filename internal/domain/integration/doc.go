// Package integration contains the marketplace synchronization bounded context.
// It models how the merchant catalog is kept in step with external marketplaces
// (Trendyol, Amazon, N11, eBay, Hepsiburada, Ozon).
//
// Key concepts:
//   - MarketplaceAdapter: Port interface every marketplace adapter implements
//   - Product / MarketplaceLink: local catalog entry and its per-marketplace identity and sync state
//   - CategoryMapping: local category to remote category correlation, scored by the CategoryMatcher
//   - Order / OrderLink: orders pulled or pushed from marketplaces, with monotonic status
//   - SyncJob: a unit of synchronization work for one marketplace and one job type
//   - AuditRecord: append-only record of every sync attempt and outcome
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
//
// Mapping (CategoryMatcher, AttributeTable) and reconciliation (ReconcileProduct)
// are pure computations and live here as well; they never perform I/O.
package integration
