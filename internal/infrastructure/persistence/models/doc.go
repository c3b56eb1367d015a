// Package models contains the GORM models of the sync tables. They are kept
// apart from the domain entities; each model converts to and from its entity
// with ToDomain and a ...FromDomain constructor.
//
// Structure:
// - catalog.go: products, marketplace links and local categories
// - integration.go: category mappings, orders, audit log and sync cursors
//
// The schema itself is owned by the SQL migrations. AllModels is used by
// AutoMigrate in tests against SQLite.
package models
