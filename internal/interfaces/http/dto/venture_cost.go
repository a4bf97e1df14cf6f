package dto

import (
	"github.com/shopspring/decimal"
)

// RangeQuery is the query string shared by the venture cost endpoints
type RangeQuery struct {
	Start             string `form:"start" binding:"required,datetime=2006-01-02"`
	End               string `form:"end" binding:"required,datetime=2006-01-02"`
	Subventures       bool   `form:"subventures"`
	BillingPeriodDays int    `form:"billing_period_days" binding:"omitempty,min=1,max=366"`
}

// UsageQuery selects the usage type by name or ID
type UsageQuery struct {
	RangeQuery
	UsageType string `form:"usage_type" binding:"required,max=255"`
}

// PeriodResponse echoes the requested range
type PeriodResponse struct {
	VentureID   string `json:"venture_id"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Subventures bool   `json:"subventures"`
}

// AssetsResponse is the device cost of a venture
type AssetsResponse struct {
	PeriodResponse
	Count int             `json:"count"`
	Price decimal.Decimal `json:"price"`
	Cost  decimal.Decimal `json:"cost"`
}

// UsageResponse is the consumption of one usage type. Price is null when
// the usage could not be priced.
type UsageResponse struct {
	PeriodResponse
	UsageType string           `json:"usage_type"`
	Count     float64          `json:"count"`
	Price     *decimal.Decimal `json:"price"`
	Priced    bool             `json:"priced"`
}

// ExtraCostsResponse sums the extra costs overlapping the range
type ExtraCostsResponse struct {
	PeriodResponse
	Count    int             `json:"count"`
	Price    decimal.Decimal `json:"price"`
	Prorated decimal.Decimal `json:"prorated"`
}

// DayPriceResponse is the device price of one day
type DayPriceResponse struct {
	Date    string          `json:"date"`
	Devices int             `json:"devices"`
	Price   decimal.Decimal `json:"price"`
}

// DailyResponse is the per-day device price breakdown
type DailyResponse struct {
	PeriodResponse
	Days  []DayPriceResponse `json:"days"`
	Total decimal.Decimal    `json:"total"`
}

// PartsResponse sums the part prices of the allocated devices
type PartsResponse struct {
	PeriodResponse
	Count int             `json:"count"`
	Price decimal.Decimal `json:"price"`
}
