package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pricing/backend/internal/domain/pricing"
	"github.com/pricing/backend/internal/domain/shared"
	"github.com/pricing/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormUsageTypeRepository implements UsageTypeRepository using GORM
type GormUsageTypeRepository struct {
	db *gorm.DB
}

// NewGormUsageTypeRepository creates a new GormUsageTypeRepository
func NewGormUsageTypeRepository(db *gorm.DB) *GormUsageTypeRepository {
	return &GormUsageTypeRepository{db: db}
}

// Create saves a new usage type
func (r *GormUsageTypeRepository) Create(ctx context.Context, t *pricing.UsageType) error {
	return r.db.WithContext(ctx).Create(models.UsageTypeModelFromDomain(t)).Error
}

// FindByID finds a usage type by ID
func (r *GormUsageTypeRepository) FindByID(ctx context.Context, id uuid.UUID) (*pricing.UsageType, error) {
	return r.findOne(ctx, "id = ?", id)
}

// FindByName finds a usage type by name
func (r *GormUsageTypeRepository) FindByName(ctx context.Context, name string) (*pricing.UsageType, error) {
	return r.findOne(ctx, "name = ?", name)
}

// FindAll returns every usage type ordered by name
func (r *GormUsageTypeRepository) FindAll(ctx context.Context) ([]*pricing.UsageType, error) {
	var ms []*models.UsageTypeModel
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&ms).Error; err != nil {
		return nil, err
	}
	out := make([]*pricing.UsageType, len(ms))
	for i, m := range ms {
		out[i] = m.ToDomain()
	}
	return out, nil
}

func (r *GormUsageTypeRepository) findOne(ctx context.Context, query string, arg any) (*pricing.UsageType, error) {
	var model models.UsageTypeModel
	if err := r.db.WithContext(ctx).Where(query, arg).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// GormUsagePriceRepository implements UsagePriceRepository using GORM
type GormUsagePriceRepository struct {
	db *gorm.DB
}

// NewGormUsagePriceRepository creates a new GormUsagePriceRepository
func NewGormUsagePriceRepository(db *gorm.DB) *GormUsagePriceRepository {
	return &GormUsagePriceRepository{db: db}
}

// Create saves a new usage price
func (r *GormUsagePriceRepository) Create(ctx context.Context, p *pricing.UsagePrice) error {
	return r.db.WithContext(ctx).Create(models.UsagePriceModelFromDomain(p)).Error
}

// FindCovering returns every price of typeID whose range contains day.
// Picking among several candidates is left to pricing.PriceTable.
func (r *GormUsagePriceRepository) FindCovering(ctx context.Context, typeID uuid.UUID, day time.Time) ([]*pricing.UsagePrice, error) {
	d := pricing.Day(day)
	var ms []*models.UsagePriceModel
	if err := r.db.WithContext(ctx).
		Where("type_id = ?", typeID).
		Where("start_date <= ? AND end_date >= ?", d, d).
		Order("start_date DESC").
		Find(&ms).Error; err != nil {
		return nil, err
	}
	out := make([]*pricing.UsagePrice, len(ms))
	for i, m := range ms {
		out[i] = m.ToDomain()
	}
	return out, nil
}

// Ensure the repositories implement their interfaces
var (
	_ pricing.UsageTypeRepository  = (*GormUsageTypeRepository)(nil)
	_ pricing.UsagePriceRepository = (*GormUsagePriceRepository)(nil)
)
