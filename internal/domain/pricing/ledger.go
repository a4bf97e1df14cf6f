package pricing

import (
	"time"

	"github.com/google/uuid"
	"github.com/pricing/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// PriceScale is the number of decimal places kept for prices
const PriceScale = 6

// RowState is the lifecycle state of a ledger row. Rows are never deleted;
// a reprocessed day deprecates the rows it replaces.
type RowState string

const (
	RowStateActive     RowState = "active"
	RowStateDeprecated RowState = "deprecated"
)

// IsValid checks if the state is a known state
func (s RowState) IsValid() bool {
	return s == RowStateActive || s == RowStateDeprecated
}

// LedgerRow holds the fields shared by every daily ledger row
type LedgerRow struct {
	shared.BaseEntity
	Date  time.Time
	State RowState
}

func newLedgerRow(day time.Time) LedgerRow {
	return LedgerRow{
		BaseEntity: shared.NewBaseEntity(),
		Date:       Day(day),
		State:      RowStateActive,
	}
}

// IsActive returns true if the row takes part in aggregations
func (r *LedgerRow) IsActive() bool {
	return r.State == RowStateActive
}

// Deprecate retires the row
func (r *LedgerRow) Deprecate() error {
	if r.State == RowStateDeprecated {
		return ErrAlreadyDeprecated
	}
	r.State = RowStateDeprecated
	r.Touch()
	return nil
}

// DailyDevicePart is the price of one asset part on one day
type DailyDevicePart struct {
	LedgerRow
	Name            string
	PricingDeviceID uuid.UUID
	AssetID         int
	Price           decimal.Decimal
}

// NewDailyDevicePart records the daily price of a part
func NewDailyDevicePart(day time.Time, deviceID uuid.UUID, assetID int, name string, price decimal.Decimal) (*DailyDevicePart, error) {
	if price.IsNegative() {
		return nil, ErrNegativePrice
	}
	return &DailyDevicePart{
		LedgerRow:       newLedgerRow(day),
		Name:            name,
		PricingDeviceID: deviceID,
		AssetID:         assetID,
		Price:           price.Round(PriceScale),
	}, nil
}

// DailyDeviceAllocation attributes one device, and its daily price, to a
// venture on one day
type DailyDeviceAllocation struct {
	LedgerRow
	Name             string
	PricingDeviceID  uuid.UUID
	ParentDeviceID   *uuid.UUID
	Price            decimal.Decimal
	PricingVentureID *uuid.UUID
}

// NewDailyDeviceAllocation records the daily allocation of a device
func NewDailyDeviceAllocation(day time.Time, deviceID uuid.UUID, ventureID *uuid.UUID, name string, price decimal.Decimal) (*DailyDeviceAllocation, error) {
	if price.IsNegative() {
		return nil, ErrNegativePrice
	}
	return &DailyDeviceAllocation{
		LedgerRow:        newLedgerRow(day),
		Name:             name,
		PricingDeviceID:  deviceID,
		Price:            price.Round(PriceScale),
		PricingVentureID: ventureID,
	}, nil
}

// SetParentDevice records the chassis or hypervisor hosting the device
func (a *DailyDeviceAllocation) SetParentDevice(parentID uuid.UUID) error {
	if parentID == a.PricingDeviceID {
		return shared.NewDomainError("INVALID_PARENT", "Device cannot be its own parent")
	}
	a.ParentDeviceID = &parentID
	return nil
}

// DailyUsage is the quantity of one usage type consumed on one day
type DailyUsage struct {
	LedgerRow
	PricingVentureID *uuid.UUID
	PricingDeviceID  *uuid.UUID
	Value            float64
	TypeID           uuid.UUID
}

// NewDailyUsage records a usage quantity
func NewDailyUsage(day time.Time, typeID uuid.UUID, deviceID, ventureID *uuid.UUID, value float64) (*DailyUsage, error) {
	if value < 0 {
		return nil, shared.NewDomainError("NEGATIVE_USAGE", "Usage value cannot be negative")
	}
	return &DailyUsage{
		LedgerRow:        newLedgerRow(day),
		PricingVentureID: ventureID,
		PricingDeviceID:  deviceID,
		Value:            value,
		TypeID:           typeID,
	}, nil
}

// LedgerFilter selects active ledger rows of a set of ventures over a range
type LedgerFilter struct {
	VentureIDs []uuid.UUID
	Range      DateRange
}
