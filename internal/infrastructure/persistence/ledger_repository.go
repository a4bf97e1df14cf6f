package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pricing/backend/internal/domain/pricing"
	"github.com/pricing/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

const ledgerBatchSize = 200

// GormLedgerRepository implements both AllocationLedger and UsageLedger
// using GORM
type GormLedgerRepository struct {
	db *gorm.DB
}

// NewGormLedgerRepository creates a new GormLedgerRepository
func NewGormLedgerRepository(db *gorm.DB) *GormLedgerRepository {
	return &GormLedgerRepository{db: db}
}

// SaveAllocations inserts allocation rows
func (r *GormLedgerRepository) SaveAllocations(ctx context.Context, rows []*pricing.DailyDeviceAllocation) error {
	if len(rows) == 0 {
		return nil
	}
	ms := make([]*models.DailyDeviceAllocationModel, len(rows))
	for i, row := range rows {
		ms[i] = models.DailyDeviceAllocationModelFromDomain(row)
	}
	return r.db.WithContext(ctx).CreateInBatches(ms, ledgerBatchSize).Error
}

// FindAllocations returns the active allocations of the filter's ventures
func (r *GormLedgerRepository) FindAllocations(ctx context.Context, filter pricing.LedgerFilter) ([]*pricing.DailyDeviceAllocation, error) {
	if len(filter.VentureIDs) == 0 {
		return []*pricing.DailyDeviceAllocation{}, nil
	}
	var ms []*models.DailyDeviceAllocationModel
	if err := r.db.WithContext(ctx).
		Scopes(activeRows, inRange(filter.Range)).
		Where("pricing_venture_id IN ?", filter.VentureIDs).
		Order("date ASC").
		Find(&ms).Error; err != nil {
		return nil, err
	}
	out := make([]*pricing.DailyDeviceAllocation, len(ms))
	for i, m := range ms {
		out[i] = m.ToDomain()
	}
	return out, nil
}

// VenturesOfDevices returns the venture each device was allocated to on day.
// Devices without an active allocation, or allocated to no venture, are absent.
func (r *GormLedgerRepository) VenturesOfDevices(ctx context.Context, day time.Time, deviceIDs []uuid.UUID) (map[uuid.UUID]uuid.UUID, error) {
	result := make(map[uuid.UUID]uuid.UUID, len(deviceIDs))
	if len(deviceIDs) == 0 {
		return result, nil
	}
	var ms []*models.DailyDeviceAllocationModel
	if err := r.db.WithContext(ctx).
		Select("pricing_device_id", "pricing_venture_id").
		Scopes(activeRows, inRange(pricing.SingleDay(day))).
		Where("pricing_device_id IN ?", deviceIDs).
		Where("pricing_venture_id IS NOT NULL").
		Find(&ms).Error; err != nil {
		return nil, err
	}
	for _, m := range ms {
		result[m.PricingDeviceID] = *m.PricingVentureID
	}
	return result, nil
}

// ReplaceAllocations deprecates the active allocations of the rows' devices
// on day and inserts the rows, in one transaction
func (r *GormLedgerRepository) ReplaceAllocations(ctx context.Context, day time.Time, rows []*pricing.DailyDeviceAllocation) (int64, error) {
	d := pricing.Day(day)
	deviceIDs := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		if !row.Date.Equal(d) {
			return 0, fmt.Errorf("allocation for %s in replacement of %s: %w",
				row.Date.Format(pricing.DateLayout), d.Format(pricing.DateLayout), pricing.ErrInvalidRange)
		}
		deviceIDs = append(deviceIDs, row.PricingDeviceID)
	}
	if len(deviceIDs) == 0 {
		return 0, nil
	}

	var deprecated int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.DailyDeviceAllocationModel{}).
			Scopes(activeRows, inRange(pricing.SingleDay(d))).
			Where("pricing_device_id IN ?", deviceIDs).
			Updates(map[string]any{"state": pricing.RowStateDeprecated, "updated_at": time.Now()})
		if res.Error != nil {
			return res.Error
		}
		deprecated = res.RowsAffected
		return NewGormLedgerRepository(tx).SaveAllocations(ctx, rows)
	})
	if err != nil {
		return 0, err
	}
	return deprecated, nil
}

// SaveParts inserts part rows
func (r *GormLedgerRepository) SaveParts(ctx context.Context, rows []*pricing.DailyDevicePart) error {
	if len(rows) == 0 {
		return nil
	}
	ms := make([]*models.DailyDevicePartModel, len(rows))
	for i, row := range rows {
		ms[i] = models.DailyDevicePartModelFromDomain(row)
	}
	return r.db.WithContext(ctx).CreateInBatches(ms, ledgerBatchSize).Error
}

// FindParts returns the active parts of the given devices over r
func (r *GormLedgerRepository) FindParts(ctx context.Context, deviceIDs []uuid.UUID, dr pricing.DateRange) ([]*pricing.DailyDevicePart, error) {
	if len(deviceIDs) == 0 {
		return []*pricing.DailyDevicePart{}, nil
	}
	var ms []*models.DailyDevicePartModel
	if err := r.db.WithContext(ctx).
		Scopes(activeRows, inRange(dr)).
		Where("pricing_device_id IN ?", deviceIDs).
		Order("date ASC").
		Find(&ms).Error; err != nil {
		return nil, err
	}
	out := make([]*pricing.DailyDevicePart, len(ms))
	for i, m := range ms {
		out[i] = m.ToDomain()
	}
	return out, nil
}

// SaveUsages inserts usage rows
func (r *GormLedgerRepository) SaveUsages(ctx context.Context, rows []*pricing.DailyUsage) error {
	if len(rows) == 0 {
		return nil
	}
	ms := make([]*models.DailyUsageModel, len(rows))
	for i, row := range rows {
		ms[i] = models.DailyUsageModelFromDomain(row)
	}
	return r.db.WithContext(ctx).CreateInBatches(ms, ledgerBatchSize).Error
}

// FindUsages returns the active usages of typeID for the filter's ventures
func (r *GormLedgerRepository) FindUsages(ctx context.Context, filter pricing.LedgerFilter, typeID uuid.UUID) ([]*pricing.DailyUsage, error) {
	if len(filter.VentureIDs) == 0 {
		return []*pricing.DailyUsage{}, nil
	}
	var ms []*models.DailyUsageModel
	if err := r.db.WithContext(ctx).
		Scopes(activeRows, inRange(filter.Range)).
		Where("type_id = ?", typeID).
		Where("pricing_venture_id IN ?", filter.VentureIDs).
		Order("date ASC").
		Find(&ms).Error; err != nil {
		return nil, err
	}
	out := make([]*pricing.DailyUsage, len(ms))
	for i, m := range ms {
		out[i] = m.ToDomain()
	}
	return out, nil
}

// ReplaceDay deprecates every active row of typeID on day and inserts rows,
// in one transaction
func (r *GormLedgerRepository) ReplaceDay(ctx context.Context, day time.Time, typeID uuid.UUID, rows []*pricing.DailyUsage) (int64, error) {
	d := pricing.Day(day)
	for _, row := range rows {
		if !row.Date.Equal(d) || row.TypeID != typeID {
			return 0, fmt.Errorf("usage row %s does not belong to %s/%s", row.ID, d.Format(pricing.DateLayout), typeID)
		}
	}

	var deprecated int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.DailyUsageModel{}).
			Scopes(activeRows, inRange(pricing.SingleDay(d))).
			Where("type_id = ?", typeID).
			Updates(map[string]any{"state": pricing.RowStateDeprecated, "updated_at": time.Now()})
		if res.Error != nil {
			return res.Error
		}
		deprecated = res.RowsAffected
		return NewGormLedgerRepository(tx).SaveUsages(ctx, rows)
	})
	if err != nil {
		return 0, err
	}
	return deprecated, nil
}

// Ensure GormLedgerRepository implements both ledgers
var (
	_ pricing.AllocationLedger = (*GormLedgerRepository)(nil)
	_ pricing.UsageLedger      = (*GormLedgerRepository)(nil)
)
