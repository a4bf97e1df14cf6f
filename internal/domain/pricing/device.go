package pricing

import (
	"strings"

	"github.com/pricing/backend/internal/domain/shared"
)

// Device is a priced piece of infrastructure. DeviceID is the inventory key,
// AssetID links the device to the asset register when it has one.
type Device struct {
	shared.BaseEntity
	Name      string
	DeviceID  int
	AssetID   *int
	IsVirtual bool
	IsBlade   bool
	Slots     float64
}

// NewDevice creates a device with its inventory key
func NewDevice(deviceID int, name string) (*Device, error) {
	if deviceID <= 0 {
		return nil, shared.NewDomainError("INVALID_DEVICE_ID", "Device ID must be positive")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Device name cannot be empty")
	}
	return &Device{
		BaseEntity: shared.NewBaseEntity(),
		Name:       name,
		DeviceID:   deviceID,
	}, nil
}

// SetAssetID links the device to an asset
func (d *Device) SetAssetID(assetID int) error {
	if assetID <= 0 {
		return shared.NewDomainError("INVALID_ASSET_ID", "Asset ID must be positive")
	}
	d.AssetID = &assetID
	d.Touch()
	return nil
}

// SetBlade marks the device as a blade occupying slots of its chassis
func (d *Device) SetBlade(slots float64) error {
	if slots < 0 {
		return shared.NewDomainError("INVALID_SLOTS", "Slots cannot be negative")
	}
	d.IsBlade = true
	d.Slots = slots
	d.Touch()
	return nil
}
