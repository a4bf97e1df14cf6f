// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Structure:
// - base.go: BaseModel and LedgerModel
// - venture.go: ventures and devices
// - ledger.go: daily device allocations, parts and usages
// - price.go: usage types and prices, extra cost types and extra costs
//
// The column types are portable between PostgreSQL and SQLite so the same
// models back both production and repository tests. The SQL migrations under
// migrations/ remain the source of truth for the PostgreSQL schema.
package models
