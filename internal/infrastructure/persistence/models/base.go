package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/pricing/backend/internal/domain/pricing"
	"github.com/pricing/backend/internal/domain/shared"
)

// BaseModel provides common persistence fields for all models.
// It maps to the domain's BaseEntity.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// ToDomain converts BaseModel to domain BaseEntity
func (m *BaseModel) ToDomain() shared.BaseEntity {
	return shared.BaseEntity{
		ID:        m.ID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// FromDomainBaseEntity populates BaseModel from domain BaseEntity
func (m *BaseModel) FromDomainBaseEntity(e shared.BaseEntity) {
	m.ID = e.ID
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
}

// LedgerModel provides the fields shared by daily ledger tables. Uniqueness
// of ledger rows is only enforced among active rows, so each ledger table
// declares partial unique indexes on its own key columns.
type LedgerModel struct {
	BaseModel
	State pricing.RowState `gorm:"type:varchar(20);not null;default:'active';index"`
}

// ToDomain converts LedgerModel to domain LedgerRow
func (m *LedgerModel) ToDomain(date time.Time) pricing.LedgerRow {
	return pricing.LedgerRow{
		BaseEntity: m.BaseModel.ToDomain(),
		Date:       pricing.Day(date),
		State:      m.State,
	}
}

// FromDomainLedgerRow populates LedgerModel from domain LedgerRow
func (m *LedgerModel) FromDomainLedgerRow(r pricing.LedgerRow) {
	m.FromDomainBaseEntity(r.BaseEntity)
	m.State = r.State
}
