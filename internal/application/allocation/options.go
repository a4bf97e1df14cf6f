package allocation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pricing/backend/internal/domain/pricing"
	"github.com/pricing/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
)

// Option adjusts a single engine query
type Option func(*options)

type options struct {
	subventures bool
	billingDays int
}

// WithSubventures extends a query to every descendant of the venture
func WithSubventures() Option {
	return func(o *options) {
		o.subventures = true
	}
}

// WithBillingPeriod normalizes Cost to a period of the given number of days,
// for example 30 for a monthly figure. Non-positive values are ignored.
func WithBillingPeriod(days int) Option {
	return func(o *options) {
		if days > 0 {
			o.billingDays = days
		}
	}
}

// query is a validated engine request
type query struct {
	options
	ventureID uuid.UUID
	targets   []uuid.UUID
	dates     pricing.DateRange
}

func (e *Engine) prepare(ctx context.Context, ventureID uuid.UUID, start, end time.Time, opts []Option) (*query, error) {
	q := &query{ventureID: ventureID}
	for _, opt := range opts {
		opt(&q.options)
	}

	dates, err := pricing.NewDateRange(start, end)
	if err != nil {
		return nil, err
	}
	q.dates = dates

	if q.subventures {
		q.targets, err = e.ventures.SubtreeIDs(ctx, ventureID)
		if err != nil {
			return nil, err
		}
		return q, nil
	}

	v, err := e.ventures.FindByID(ctx, ventureID)
	if err != nil {
		return nil, err
	}
	q.targets = []uuid.UUID{v.ID}
	return q, nil
}

func (q *query) filter() pricing.LedgerFilter {
	return pricing.LedgerFilter{VentureIDs: q.targets, Range: q.dates}
}

// cost spreads price over the billing period, or returns it unchanged
func (q *query) cost(price decimal.Decimal) decimal.Decimal {
	if q.billingDays == 0 {
		return price
	}
	return price.Mul(decimal.NewFromInt(int64(q.billingDays))).
		DivRound(decimal.NewFromInt(int64(q.dates.Days())), pricing.PriceScale)
}

func (q *query) attributes() []any {
	return []any{
		telemetry.SpanAttrVentureID, q.ventureID,
		telemetry.SpanAttrRangeStart, q.dates.Start,
		telemetry.SpanAttrRangeEnd, q.dates.End,
		telemetry.SpanAttrSubventures, q.subventures,
		"targets", len(q.targets),
	}
}
