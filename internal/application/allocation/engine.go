// Package allocation computes what a venture owes over a range of days by
// joining the daily ledgers against the temporal price table.
package allocation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pricing/backend/internal/domain/pricing"
	"github.com/pricing/backend/internal/infrastructure/logger"
	"github.com/pricing/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Engine is the read side of the pricing ledgers. It keeps no state between
// calls and is safe for concurrent use.
type Engine struct {
	ventures    pricing.VentureRepository
	allocations pricing.AllocationLedger
	usages      pricing.UsageLedger
	prices      pricing.UsagePriceRepository
	extraCosts  pricing.ExtraCostRepository
	logger      *zap.Logger
}

// NewEngine creates a new Engine
func NewEngine(
	ventures pricing.VentureRepository,
	allocations pricing.AllocationLedger,
	usages pricing.UsageLedger,
	prices pricing.UsagePriceRepository,
	extraCosts pricing.ExtraCostRepository,
	logger *zap.Logger,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		ventures:    ventures,
		allocations: allocations,
		usages:      usages,
		prices:      prices,
		extraCosts:  extraCosts,
		logger:      logger,
	}
}

// AssetsSummary is the device cost of a venture over a range
type AssetsSummary struct {
	Count int             `json:"count"`
	Price decimal.Decimal `json:"price"`
	Cost  decimal.Decimal `json:"cost"`
}

// UsageSummary is the consumption of one usage type over a range. Price is
// null when Count is positive but no price covers the start of the range.
type UsageSummary struct {
	Count float64             `json:"count"`
	Price decimal.NullDecimal `json:"price"`
}

// Priced reports whether the usage has a known price
func (s UsageSummary) Priced() bool {
	return s.Price.Valid
}

// ExtraCostSummary sums the extra costs overlapping a range
type ExtraCostSummary struct {
	Count    int             `json:"count"`
	Price    decimal.Decimal `json:"price"`
	Prorated decimal.Decimal `json:"prorated"`
}

// DayPrice is the device price of a venture on one day
type DayPrice struct {
	Date    time.Time       `json:"date"`
	Devices int             `json:"devices"`
	Price   decimal.Decimal `json:"price"`
}

// PartsSummary sums the part prices of the devices allocated to a venture
type PartsSummary struct {
	Count int             `json:"count"`
	Price decimal.Decimal `json:"price"`
}

// AssetsCountPriceCost counts the distinct devices allocated to the venture
// over [start, end] and sums their daily prices.
func (e *Engine) AssetsCountPriceCost(ctx context.Context, ventureID uuid.UUID, start, end time.Time, opts ...Option) (AssetsSummary, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "allocation", "assets_count_price_cost")
	defer span.End()

	q, err := e.prepare(ctx, ventureID, start, end, opts)
	if err != nil {
		telemetry.RecordError(span, err)
		return AssetsSummary{}, err
	}
	telemetry.SetAttributes(span, q.attributes()...)

	rows, err := e.allocations.FindAllocations(ctx, q.filter())
	if err != nil {
		telemetry.RecordError(span, err)
		return AssetsSummary{}, fmt.Errorf("failed to load allocations: %w", err)
	}

	devices := make(map[uuid.UUID]struct{}, len(rows))
	price := decimal.Zero
	for _, row := range rows {
		devices[row.PricingDeviceID] = struct{}{}
		price = price.Add(row.Price)
	}

	return AssetsSummary{
		Count: len(devices),
		Price: price,
		Cost:  q.cost(price),
	}, nil
}

// UsagesCountPrice sums the usage of typeID by the venture over [start, end]
// and prices it at the unit price in force on start.
func (e *Engine) UsagesCountPrice(ctx context.Context, ventureID uuid.UUID, start, end time.Time, typeID uuid.UUID, opts ...Option) (UsageSummary, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "allocation", "usages_count_price",
		telemetry.SpanAttrUsageTypeID, typeID)
	defer span.End()

	q, err := e.prepare(ctx, ventureID, start, end, opts)
	if err != nil {
		telemetry.RecordError(span, err)
		return UsageSummary{}, err
	}
	telemetry.SetAttributes(span, q.attributes()...)

	rows, err := e.usages.FindUsages(ctx, q.filter(), typeID)
	if err != nil {
		telemetry.RecordError(span, err)
		return UsageSummary{}, fmt.Errorf("failed to load usages: %w", err)
	}

	var count float64
	for _, row := range rows {
		count += row.Value
	}
	if count == 0 {
		return UsageSummary{Price: decimal.NewNullDecimal(decimal.Zero)}, nil
	}

	unit, ok, err := e.unitPrice(ctx, typeID, q.dates.Start)
	if err != nil {
		telemetry.RecordError(span, err)
		return UsageSummary{}, err
	}
	if !ok {
		telemetry.AddEvent(span, "unpriced_usage", telemetry.SpanAttrDay, q.dates.Start.Format(pricing.DateLayout))
		return UsageSummary{Count: count}, nil
	}

	total := decimal.NewFromFloat(count).Mul(unit).Round(pricing.PriceScale)
	return UsageSummary{Count: count, Price: decimal.NewNullDecimal(total)}, nil
}

// unitPrice resolves the price of typeID on day. Overlapping price entries
// are resolved by PriceTable and logged.
func (e *Engine) unitPrice(ctx context.Context, typeID uuid.UUID, day time.Time) (decimal.Decimal, bool, error) {
	candidates, err := e.prices.FindCovering(ctx, typeID, day)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("failed to load usage prices: %w", err)
	}

	res := pricing.NewPriceTable(candidates).Resolve(day)
	if res.Ambiguous() {
		logger.Ctx(ctx, e.logger).Warn("Overlapping usage prices",
			zap.String("usage_type_id", typeID.String()),
			zap.String("day", day.Format(pricing.DateLayout)),
			zap.Int("candidates", res.Candidates),
			zap.String("chosen", res.Price.ID.String()),
		)
	}
	if !res.Found() {
		return decimal.Zero, false, nil
	}
	return res.Price.Price, true, nil
}

// ExtraCosts sums the extra costs of the venture whose window overlaps
// [start, end], both in full and prorated to the overlapping days.
func (e *Engine) ExtraCosts(ctx context.Context, ventureID uuid.UUID, start, end time.Time, opts ...Option) (ExtraCostSummary, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "allocation", "extra_costs")
	defer span.End()

	q, err := e.prepare(ctx, ventureID, start, end, opts)
	if err != nil {
		telemetry.RecordError(span, err)
		return ExtraCostSummary{}, err
	}
	telemetry.SetAttributes(span, q.attributes()...)

	costs, err := e.extraCosts.FindOverlapping(ctx, q.filter())
	if err != nil {
		telemetry.RecordError(span, err)
		return ExtraCostSummary{}, fmt.Errorf("failed to load extra costs: %w", err)
	}

	summary := ExtraCostSummary{Count: len(costs), Price: decimal.Zero, Prorated: decimal.Zero}
	for _, c := range costs {
		summary.Price = summary.Price.Add(c.Price)
		summary.Prorated = summary.Prorated.Add(c.ProratedPrice(q.dates))
	}
	return summary, nil
}

// DailyDevicePrices breaks the device price of the venture down per day.
// Every day of the range is present, days without allocations at zero.
// Ranges longer than pricing.MaxBreakdownDays are ErrRangeTooLong.
func (e *Engine) DailyDevicePrices(ctx context.Context, ventureID uuid.UUID, start, end time.Time, opts ...Option) ([]DayPrice, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "allocation", "daily_device_prices")
	defer span.End()

	dates, err := pricing.NewDateRange(start, end)
	if err == nil {
		err = dates.CheckBreakdown()
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	q, err := e.prepare(ctx, ventureID, start, end, opts)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span, q.attributes()...)

	rows, err := e.allocations.FindAllocations(ctx, q.filter())
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load allocations: %w", err)
	}

	days := q.dates.EachDay()
	out := make([]DayPrice, len(days))
	index := make(map[time.Time]int, len(days))
	for i, d := range days {
		out[i] = DayPrice{Date: d, Price: decimal.Zero}
		index[d] = i
	}
	for _, row := range rows {
		i, ok := index[pricing.Day(row.Date)]
		if !ok {
			continue
		}
		out[i].Devices++
		out[i].Price = out[i].Price.Add(row.Price)
	}
	return out, nil
}

// PartsCost sums the part prices of the devices allocated to the venture,
// counting a part only on the days its device was allocated there.
func (e *Engine) PartsCost(ctx context.Context, ventureID uuid.UUID, start, end time.Time, opts ...Option) (PartsSummary, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "allocation", "parts_cost")
	defer span.End()

	q, err := e.prepare(ctx, ventureID, start, end, opts)
	if err != nil {
		telemetry.RecordError(span, err)
		return PartsSummary{}, err
	}
	telemetry.SetAttributes(span, q.attributes()...)

	rows, err := e.allocations.FindAllocations(ctx, q.filter())
	if err != nil {
		telemetry.RecordError(span, err)
		return PartsSummary{}, fmt.Errorf("failed to load allocations: %w", err)
	}

	type deviceDay struct {
		device uuid.UUID
		day    time.Time
	}
	allocated := make(map[deviceDay]struct{}, len(rows))
	seen := make(map[uuid.UUID]struct{})
	deviceIDs := make([]uuid.UUID, 0)
	for _, row := range rows {
		allocated[deviceDay{row.PricingDeviceID, pricing.Day(row.Date)}] = struct{}{}
		if _, ok := seen[row.PricingDeviceID]; !ok {
			seen[row.PricingDeviceID] = struct{}{}
			deviceIDs = append(deviceIDs, row.PricingDeviceID)
		}
	}

	parts, err := e.allocations.FindParts(ctx, deviceIDs, q.dates)
	if err != nil {
		telemetry.RecordError(span, err)
		return PartsSummary{}, fmt.Errorf("failed to load parts: %w", err)
	}

	summary := PartsSummary{Price: decimal.Zero}
	assets := make(map[int]struct{})
	for _, p := range parts {
		if _, ok := allocated[deviceDay{p.PricingDeviceID, pricing.Day(p.Date)}]; !ok {
			continue
		}
		assets[p.AssetID] = struct{}{}
		summary.Price = summary.Price.Add(p.Price)
	}
	summary.Count = len(assets)
	return summary, nil
}
