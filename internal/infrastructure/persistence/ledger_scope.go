package persistence

import (
	"github.com/pricing/backend/internal/domain/pricing"
	"gorm.io/gorm"
)

// activeRows restricts a ledger query to rows that take part in aggregations.
// Every ledger finder goes through it; deprecated rows are only reachable by
// the deprecation updates themselves.
func activeRows(db *gorm.DB) *gorm.DB {
	return db.Where("state = ?", pricing.RowStateActive)
}

// inRange restricts a ledger query to an inclusive range of days
func inRange(r pricing.DateRange) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("date >= ? AND date <= ?", r.Start, r.End)
	}
}
