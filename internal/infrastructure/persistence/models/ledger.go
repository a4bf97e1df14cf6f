package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/pricing/backend/internal/domain/pricing"
	"github.com/shopspring/decimal"
)

// DailyDevicePartModel is the persistence model for DailyDevicePart.
type DailyDevicePartModel struct {
	LedgerModel
	Date            time.Time       `gorm:"type:date;not null;uniqueIndex:uq_daily_parts_active,where:state = 'active'"`
	AssetID         int             `gorm:"not null;uniqueIndex:uq_daily_parts_active,where:state = 'active'"`
	Name            string          `gorm:"type:varchar(255);not null;default:''"`
	PricingDeviceID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Price           decimal.Decimal `gorm:"type:decimal(16,6);not null"`
}

// TableName returns the table name for GORM
func (DailyDevicePartModel) TableName() string {
	return "daily_parts"
}

// ToDomain converts the persistence model to a domain DailyDevicePart.
func (m *DailyDevicePartModel) ToDomain() *pricing.DailyDevicePart {
	return &pricing.DailyDevicePart{
		LedgerRow:       m.LedgerModel.ToDomain(m.Date),
		Name:            m.Name,
		PricingDeviceID: m.PricingDeviceID,
		AssetID:         m.AssetID,
		Price:           m.Price,
	}
}

// DailyDevicePartModelFromDomain creates a persistence model from a domain DailyDevicePart.
func DailyDevicePartModelFromDomain(p *pricing.DailyDevicePart) *DailyDevicePartModel {
	m := &DailyDevicePartModel{
		Date:            pricing.Day(p.Date),
		AssetID:         p.AssetID,
		Name:            p.Name,
		PricingDeviceID: p.PricingDeviceID,
		Price:           p.Price,
	}
	m.FromDomainLedgerRow(p.LedgerRow)
	return m
}

// DailyDeviceAllocationModel is the persistence model for DailyDeviceAllocation.
type DailyDeviceAllocationModel struct {
	LedgerModel
	Date             time.Time       `gorm:"type:date;not null;index;uniqueIndex:uq_daily_devices_active,where:state = 'active'"`
	PricingDeviceID  uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uq_daily_devices_active,where:state = 'active'"`
	Name             string          `gorm:"type:varchar(255);not null;default:''"`
	ParentDeviceID   *uuid.UUID      `gorm:"type:uuid"`
	Price            decimal.Decimal `gorm:"type:decimal(16,6);not null"`
	PricingVentureID *uuid.UUID      `gorm:"type:uuid;index"`
}

// TableName returns the table name for GORM
func (DailyDeviceAllocationModel) TableName() string {
	return "daily_devices"
}

// ToDomain converts the persistence model to a domain DailyDeviceAllocation.
func (m *DailyDeviceAllocationModel) ToDomain() *pricing.DailyDeviceAllocation {
	return &pricing.DailyDeviceAllocation{
		LedgerRow:        m.LedgerModel.ToDomain(m.Date),
		Name:             m.Name,
		PricingDeviceID:  m.PricingDeviceID,
		ParentDeviceID:   m.ParentDeviceID,
		Price:            m.Price,
		PricingVentureID: m.PricingVentureID,
	}
}

// DailyDeviceAllocationModelFromDomain creates a persistence model from a domain DailyDeviceAllocation.
func DailyDeviceAllocationModelFromDomain(a *pricing.DailyDeviceAllocation) *DailyDeviceAllocationModel {
	m := &DailyDeviceAllocationModel{
		Date:             pricing.Day(a.Date),
		PricingDeviceID:  a.PricingDeviceID,
		Name:             a.Name,
		ParentDeviceID:   a.ParentDeviceID,
		Price:            a.Price,
		PricingVentureID: a.PricingVentureID,
	}
	m.FromDomainLedgerRow(a.LedgerRow)
	return m
}

// DailyUsageModel is the persistence model for DailyUsage.
type DailyUsageModel struct {
	LedgerModel
	Date             time.Time  `gorm:"type:date;not null;index;uniqueIndex:uq_daily_usages_active,where:state = 'active'"`
	PricingDeviceID  *uuid.UUID `gorm:"type:uuid;uniqueIndex:uq_daily_usages_active,where:state = 'active'"`
	TypeID           uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:uq_daily_usages_active,where:state = 'active'"`
	PricingVentureID *uuid.UUID `gorm:"type:uuid;index"`
	Value            float64    `gorm:"not null"`
}

// TableName returns the table name for GORM
func (DailyUsageModel) TableName() string {
	return "daily_usages"
}

// ToDomain converts the persistence model to a domain DailyUsage.
func (m *DailyUsageModel) ToDomain() *pricing.DailyUsage {
	return &pricing.DailyUsage{
		LedgerRow:        m.LedgerModel.ToDomain(m.Date),
		PricingVentureID: m.PricingVentureID,
		PricingDeviceID:  m.PricingDeviceID,
		Value:            m.Value,
		TypeID:           m.TypeID,
	}
}

// DailyUsageModelFromDomain creates a persistence model from a domain DailyUsage.
func DailyUsageModelFromDomain(u *pricing.DailyUsage) *DailyUsageModel {
	m := &DailyUsageModel{
		Date:             pricing.Day(u.Date),
		PricingDeviceID:  u.PricingDeviceID,
		TypeID:           u.TypeID,
		PricingVentureID: u.PricingVentureID,
		Value:            u.Value,
	}
	m.FromDomainLedgerRow(u.LedgerRow)
	return m
}
