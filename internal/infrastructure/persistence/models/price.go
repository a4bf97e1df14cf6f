package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/pricing/backend/internal/domain/pricing"
	"github.com/shopspring/decimal"
)

// UsageTypeModel is the persistence model for UsageType.
type UsageTypeModel struct {
	BaseModel
	Name string `gorm:"type:varchar(255);not null;uniqueIndex"`
}

// TableName returns the table name for GORM
func (UsageTypeModel) TableName() string {
	return "usage_types"
}

// ToDomain converts the persistence model to a domain UsageType.
func (m *UsageTypeModel) ToDomain() *pricing.UsageType {
	return &pricing.UsageType{BaseEntity: m.BaseModel.ToDomain(), Name: m.Name}
}

// UsageTypeModelFromDomain creates a persistence model from a domain UsageType.
func UsageTypeModelFromDomain(t *pricing.UsageType) *UsageTypeModel {
	m := &UsageTypeModel{Name: t.Name}
	m.FromDomainBaseEntity(t.BaseEntity)
	return m
}

// UsagePriceModel is the persistence model for UsagePrice.
type UsagePriceModel struct {
	BaseModel
	TypeID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uq_usage_prices_start;uniqueIndex:uq_usage_prices_end"`
	Start  time.Time       `gorm:"column:start_date;type:date;not null;uniqueIndex:uq_usage_prices_start"`
	End    time.Time       `gorm:"column:end_date;type:date;not null;uniqueIndex:uq_usage_prices_end"`
	Price  decimal.Decimal `gorm:"type:decimal(16,6);not null"`
}

// TableName returns the table name for GORM
func (UsagePriceModel) TableName() string {
	return "usage_prices"
}

// ToDomain converts the persistence model to a domain UsagePrice.
func (m *UsagePriceModel) ToDomain() *pricing.UsagePrice {
	return &pricing.UsagePrice{
		BaseEntity: m.BaseModel.ToDomain(),
		TypeID:     m.TypeID,
		Price:      m.Price,
		Start:      pricing.Day(m.Start),
		End:        pricing.Day(m.End),
	}
}

// UsagePriceModelFromDomain creates a persistence model from a domain UsagePrice.
func UsagePriceModelFromDomain(p *pricing.UsagePrice) *UsagePriceModel {
	m := &UsagePriceModel{
		TypeID: p.TypeID,
		Start:  pricing.Day(p.Start),
		End:    pricing.Day(p.End),
		Price:  p.Price,
	}
	m.FromDomainBaseEntity(p.BaseEntity)
	return m
}

// ExtraCostTypeModel is the persistence model for ExtraCostType.
type ExtraCostTypeModel struct {
	BaseModel
	Name string `gorm:"type:varchar(255);not null;uniqueIndex"`
}

// TableName returns the table name for GORM
func (ExtraCostTypeModel) TableName() string {
	return "extra_cost_types"
}

// ExtraCostModel is the persistence model for ExtraCost.
type ExtraCostModel struct {
	BaseModel
	TypeID           uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uq_extra_costs_start;uniqueIndex:uq_extra_costs_end"`
	PricingVentureID uuid.UUID       `gorm:"type:uuid;not null;index;uniqueIndex:uq_extra_costs_start;uniqueIndex:uq_extra_costs_end"`
	Start            time.Time       `gorm:"column:start_date;type:date;not null;uniqueIndex:uq_extra_costs_start"`
	End              time.Time       `gorm:"column:end_date;type:date;not null;uniqueIndex:uq_extra_costs_end"`
	Price            decimal.Decimal `gorm:"type:decimal(16,6);not null"`
}

// TableName returns the table name for GORM
func (ExtraCostModel) TableName() string {
	return "extra_costs"
}

// ToDomain converts the persistence model to a domain ExtraCost.
func (m *ExtraCostModel) ToDomain() *pricing.ExtraCost {
	return &pricing.ExtraCost{
		BaseEntity:       m.BaseModel.ToDomain(),
		TypeID:           m.TypeID,
		PricingVentureID: m.PricingVentureID,
		Price:            m.Price,
		Start:            pricing.Day(m.Start),
		End:              pricing.Day(m.End),
	}
}

// ExtraCostModelFromDomain creates a persistence model from a domain ExtraCost.
func ExtraCostModelFromDomain(c *pricing.ExtraCost) *ExtraCostModel {
	m := &ExtraCostModel{
		TypeID:           c.TypeID,
		PricingVentureID: c.PricingVentureID,
		Start:            pricing.Day(c.Start),
		End:              pricing.Day(c.End),
		Price:            c.Price,
	}
	m.FromDomainBaseEntity(c.BaseEntity)
	return m
}

// AllModels lists every model for AutoMigrate in tests and development
func AllModels() []any {
	return []any{
		&VentureModel{},
		&DeviceModel{},
		&DeviceAddressModel{},
		&DailyDevicePartModel{},
		&DailyDeviceAllocationModel{},
		&DailyUsageModel{},
		&UsageTypeModel{},
		&UsagePriceModel{},
		&ExtraCostTypeModel{},
		&ExtraCostModel{},
	}
}
