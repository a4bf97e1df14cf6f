package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pricing/backend/internal/application/allocation"
	"github.com/pricing/backend/internal/domain/pricing"
	"github.com/pricing/backend/internal/interfaces/http/dto"
	"github.com/pricing/backend/internal/interfaces/http/middleware"
	"github.com/shopspring/decimal"
)

// CostEngine computes venture costs
type CostEngine interface {
	AssetsCountPriceCost(ctx context.Context, ventureID uuid.UUID, start, end time.Time, opts ...allocation.Option) (allocation.AssetsSummary, error)
	UsagesCountPrice(ctx context.Context, ventureID uuid.UUID, start, end time.Time, typeID uuid.UUID, opts ...allocation.Option) (allocation.UsageSummary, error)
	ExtraCosts(ctx context.Context, ventureID uuid.UUID, start, end time.Time, opts ...allocation.Option) (allocation.ExtraCostSummary, error)
	DailyDevicePrices(ctx context.Context, ventureID uuid.UUID, start, end time.Time, opts ...allocation.Option) ([]allocation.DayPrice, error)
	PartsCost(ctx context.Context, ventureID uuid.UUID, start, end time.Time, opts ...allocation.Option) (allocation.PartsSummary, error)
}

// UsageTypeFinder looks usage types up by ID or name
type UsageTypeFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*pricing.UsageType, error)
	FindByName(ctx context.Context, name string) (*pricing.UsageType, error)
}

// VentureCostHandler serves the cost reports of a venture
type VentureCostHandler struct {
	BaseHandler
	engine     CostEngine
	usageTypes UsageTypeFinder
}

// NewVentureCostHandler creates a new VentureCostHandler
func NewVentureCostHandler(engine CostEngine, usageTypes UsageTypeFinder) *VentureCostHandler {
	return &VentureCostHandler{engine: engine, usageTypes: usageTypes}
}

// RegisterRoutes registers the venture cost routes
func (h *VentureCostHandler) RegisterRoutes(rg *gin.RouterGroup) {
	ventures := rg.Group("/ventures/:id")
	ventures.GET("/assets", h.GetAssets)
	ventures.GET("/usages", h.GetUsages)
	ventures.GET("/extra-costs", h.GetExtraCosts)
	ventures.GET("/daily", h.GetDaily)
	ventures.GET("/parts", h.GetParts)
}

// costRequest is a parsed and validated cost query
type costRequest struct {
	ventureID uuid.UUID
	start     time.Time
	end       time.Time
	opts      []allocation.Option
	period    dto.PeriodResponse
}

// bind parses the venture ID and the range query. It writes the error
// response itself and returns false on invalid input.
func (h *VentureCostHandler) bind(c *gin.Context, q *dto.RangeQuery, target any) (*costRequest, bool) {
	var uri dto.IDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		middleware.HandleValidationError(c, err)
		return nil, false
	}
	if err := c.ShouldBindQuery(target); err != nil {
		middleware.HandleValidationError(c, err)
		return nil, false
	}

	// both dates are validated by the binding tags
	start, _ := pricing.ParseDay(q.Start)
	end, _ := pricing.ParseDay(q.End)
	req := &costRequest{
		ventureID: uuid.MustParse(uri.ID),
		start:     start,
		end:       end,
		period: dto.PeriodResponse{
			VentureID:   uri.ID,
			Start:       q.Start,
			End:         q.End,
			Subventures: q.Subventures,
		},
	}
	if q.Subventures {
		req.opts = append(req.opts, allocation.WithSubventures())
	}
	if q.BillingPeriodDays > 0 {
		req.opts = append(req.opts, allocation.WithBillingPeriod(q.BillingPeriodDays))
	}
	return req, true
}

// GetAssets returns the device count, price and cost of a venture
// GET /api/v1/ventures/:id/assets
func (h *VentureCostHandler) GetAssets(c *gin.Context) {
	var q dto.RangeQuery
	req, ok := h.bind(c, &q, &q)
	if !ok {
		return
	}

	summary, err := h.engine.AssetsCountPriceCost(c.Request.Context(), req.ventureID, req.start, req.end, req.opts...)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.AssetsResponse{
		PeriodResponse: req.period,
		Count:          summary.Count,
		Price:          summary.Price,
		Cost:           summary.Cost,
	})
}

// GetUsages returns the consumption and price of one usage type
// GET /api/v1/ventures/:id/usages
func (h *VentureCostHandler) GetUsages(c *gin.Context) {
	var q dto.UsageQuery
	req, ok := h.bind(c, &q.RangeQuery, &q)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	usageType, err := h.findUsageType(ctx, q.UsageType)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	summary, err := h.engine.UsagesCountPrice(ctx, req.ventureID, req.start, req.end, usageType.ID, req.opts...)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := dto.UsageResponse{
		PeriodResponse: req.period,
		UsageType:      usageType.Name,
		Count:          summary.Count,
		Priced:         summary.Priced(),
	}
	if summary.Priced() {
		price := summary.Price.Decimal
		resp.Price = &price
	}
	h.Success(c, resp)
}

func (h *VentureCostHandler) findUsageType(ctx context.Context, ref string) (*pricing.UsageType, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return h.usageTypes.FindByID(ctx, id)
	}
	return h.usageTypes.FindByName(ctx, ref)
}

// GetExtraCosts returns the extra costs overlapping the range
// GET /api/v1/ventures/:id/extra-costs
func (h *VentureCostHandler) GetExtraCosts(c *gin.Context) {
	var q dto.RangeQuery
	req, ok := h.bind(c, &q, &q)
	if !ok {
		return
	}

	summary, err := h.engine.ExtraCosts(c.Request.Context(), req.ventureID, req.start, req.end, req.opts...)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ExtraCostsResponse{
		PeriodResponse: req.period,
		Count:          summary.Count,
		Price:          summary.Price,
		Prorated:       summary.Prorated,
	})
}

// GetDaily returns the device price of every day of the range. The range
// is capped at pricing.MaxBreakdownDays.
// GET /api/v1/ventures/:id/daily
func (h *VentureCostHandler) GetDaily(c *gin.Context) {
	var q dto.RangeQuery
	req, ok := h.bind(c, &q, &q)
	if !ok {
		return
	}

	if err := (pricing.DateRange{Start: req.start, End: req.end}).CheckBreakdown(); err != nil {
		h.HandleError(c, err)
		return
	}

	days, err := h.engine.DailyDevicePrices(c.Request.Context(), req.ventureID, req.start, req.end, req.opts...)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := dto.DailyResponse{
		PeriodResponse: req.period,
		Days:           make([]dto.DayPriceResponse, len(days)),
		Total:          decimal.Zero,
	}
	for i, d := range days {
		resp.Days[i] = dto.DayPriceResponse{
			Date:    d.Date.Format(pricing.DateLayout),
			Devices: d.Devices,
			Price:   d.Price,
		}
		resp.Total = resp.Total.Add(d.Price)
	}
	h.Success(c, resp)
}

// GetParts returns the part prices of the devices allocated to the venture
// GET /api/v1/ventures/:id/parts
func (h *VentureCostHandler) GetParts(c *gin.Context) {
	var q dto.RangeQuery
	req, ok := h.bind(c, &q, &q)
	if !ok {
		return
	}

	summary, err := h.engine.PartsCost(c.Request.Context(), req.ventureID, req.start, req.end, req.opts...)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.PartsResponse{
		PeriodResponse: req.period,
		Count:          summary.Count,
		Price:          summary.Price,
	})
}
