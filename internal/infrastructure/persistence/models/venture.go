package models

import (
	"github.com/google/uuid"
	"github.com/pricing/backend/internal/domain/pricing"
)

// VentureModel is the persistence model for the Venture domain entity.
type VentureModel struct {
	BaseModel
	VentureID  int        `gorm:"not null;uniqueIndex"`
	Name       string     `gorm:"type:varchar(255);not null"`
	Department string     `gorm:"type:varchar(255);not null;default:''"`
	ParentID   *uuid.UUID `gorm:"type:uuid;index"`
	Path       string     `gorm:"type:varchar(2000);not null;index"`
	Level      int        `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (VentureModel) TableName() string {
	return "ventures"
}

// ToDomain converts the persistence model to a domain Venture entity.
func (m *VentureModel) ToDomain() *pricing.Venture {
	return &pricing.Venture{
		BaseEntity: m.BaseModel.ToDomain(),
		VentureID:  m.VentureID,
		Name:       m.Name,
		Department: m.Department,
		ParentID:   m.ParentID,
		Path:       m.Path,
		Level:      m.Level,
	}
}

// VentureModelFromDomain creates a new persistence model from a domain Venture entity.
func VentureModelFromDomain(v *pricing.Venture) *VentureModel {
	m := &VentureModel{
		VentureID:  v.VentureID,
		Name:       v.Name,
		Department: v.Department,
		ParentID:   v.ParentID,
		Path:       v.Path,
		Level:      v.Level,
	}
	m.FromDomainBaseEntity(v.BaseEntity)
	return m
}

// DeviceModel is the persistence model for the Device domain entity.
type DeviceModel struct {
	BaseModel
	Name      string  `gorm:"type:varchar(255);not null"`
	DeviceID  int     `gorm:"not null;uniqueIndex"`
	AssetID   *int    `gorm:"uniqueIndex"`
	IsVirtual bool    `gorm:"not null;default:false"`
	IsBlade   bool    `gorm:"not null;default:false"`
	Slots     float64 `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (DeviceModel) TableName() string {
	return "devices"
}

// ToDomain converts the persistence model to a domain Device entity.
func (m *DeviceModel) ToDomain() *pricing.Device {
	return &pricing.Device{
		BaseEntity: m.BaseModel.ToDomain(),
		Name:       m.Name,
		DeviceID:   m.DeviceID,
		AssetID:    m.AssetID,
		IsVirtual:  m.IsVirtual,
		IsBlade:    m.IsBlade,
		Slots:      m.Slots,
	}
}

// DeviceModelFromDomain creates a new persistence model from a domain Device entity.
func DeviceModelFromDomain(d *pricing.Device) *DeviceModel {
	m := &DeviceModel{
		Name:      d.Name,
		DeviceID:  d.DeviceID,
		AssetID:   d.AssetID,
		IsVirtual: d.IsVirtual,
		IsBlade:   d.IsBlade,
		Slots:     d.Slots,
	}
	m.FromDomainBaseEntity(d.BaseEntity)
	return m
}

// DeviceAddressModel binds an IP address to a device.
type DeviceAddressModel struct {
	BaseModel
	DeviceID uuid.UUID `gorm:"type:uuid;not null;index"`
	Address  string    `gorm:"type:varchar(64);not null;uniqueIndex"`
}

// TableName returns the table name for GORM
func (DeviceAddressModel) TableName() string {
	return "device_addresses"
}
