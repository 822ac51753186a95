// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Structure:
// - base.go: BaseModel and AggregateModel
// - catalog.go: products, product units, expiry discount rules, suppliers
// - inventory.go: batches, inventory stocks, commit markers, stock movements
// - trade.go: orders, order lines, line allocations
package models
