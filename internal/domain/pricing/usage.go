package pricing

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pricing/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// NetworkUsageTypeName is the usage type written by the network collector
const NetworkUsageTypeName = "network"

// UsageType names a kind of consumption (network bytes, cpu hours...)
type UsageType struct {
	shared.BaseEntity
	Name string
}

// NewUsageType creates a usage type
func NewUsageType(name string) (*UsageType, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Usage type name cannot be empty")
	}
	return &UsageType{BaseEntity: shared.NewBaseEntity(), Name: name}, nil
}

// UsagePrice is the unit price of a usage type over an inclusive date range
type UsagePrice struct {
	shared.BaseEntity
	TypeID uuid.UUID
	Price  decimal.Decimal
	Start  time.Time
	End    time.Time
}

// NewUsagePrice creates a dated unit price
func NewUsagePrice(typeID uuid.UUID, price decimal.Decimal, start, end time.Time) (*UsagePrice, error) {
	if price.IsNegative() {
		return nil, ErrNegativePrice
	}
	r, err := NewDateRange(start, end)
	if err != nil {
		return nil, err
	}
	return &UsagePrice{
		BaseEntity: shared.NewBaseEntity(),
		TypeID:     typeID,
		Price:      price.Round(PriceScale),
		Start:      r.Start,
		End:        r.End,
	}, nil
}

// Range returns the validity range of the price
func (p *UsagePrice) Range() DateRange {
	return DateRange{Start: p.Start, End: p.End}
}

// Covers reports whether the price is valid on day
func (p *UsagePrice) Covers(day time.Time) bool {
	return p.Range().Contains(day)
}
