package pricing

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pricing/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ExtraCostType names a recurring cost not tied to devices or usage
type ExtraCostType struct {
	shared.BaseEntity
	Name string
}

// NewExtraCostType creates an extra cost type
func NewExtraCostType(name string) (*ExtraCostType, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Extra cost type name cannot be empty")
	}
	return &ExtraCostType{BaseEntity: shared.NewBaseEntity(), Name: name}, nil
}

// ExtraCost is a price charged to a venture for a whole date range
type ExtraCost struct {
	shared.BaseEntity
	TypeID           uuid.UUID
	PricingVentureID uuid.UUID
	Price            decimal.Decimal
	Start            time.Time
	End              time.Time
}

// NewExtraCost creates an extra cost for a venture
func NewExtraCost(typeID, ventureID uuid.UUID, price decimal.Decimal, start, end time.Time) (*ExtraCost, error) {
	if price.IsNegative() {
		return nil, ErrNegativePrice
	}
	r, err := NewDateRange(start, end)
	if err != nil {
		return nil, err
	}
	return &ExtraCost{
		BaseEntity:       shared.NewBaseEntity(),
		TypeID:           typeID,
		PricingVentureID: ventureID,
		Price:            price.Round(PriceScale),
		Start:            r.Start,
		End:              r.End,
	}, nil
}

// Range returns the range the cost is charged for
func (c *ExtraCost) Range() DateRange {
	return DateRange{Start: c.Start, End: c.End}
}

// ProratedPrice is the part of the price falling inside r, weighted by the
// number of overlapping days.
func (c *ExtraCost) ProratedPrice(r DateRange) decimal.Decimal {
	overlap, ok := c.Range().Overlap(r)
	if !ok {
		return decimal.Zero
	}
	window := c.Range().Days()
	if overlap.Days() == window {
		return c.Price
	}
	return c.Price.
		Mul(decimal.NewFromInt(int64(overlap.Days()))).
		DivRound(decimal.NewFromInt(int64(window)), PriceScale)
}
