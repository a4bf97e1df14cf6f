package persistence

import (
	"context"
	"errors"

	"github.com/pricing/backend/internal/domain/pricing"
	"github.com/pricing/backend/internal/domain/shared"
	"github.com/pricing/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormExtraCostRepository implements ExtraCostRepository using GORM
type GormExtraCostRepository struct {
	db *gorm.DB
}

// NewGormExtraCostRepository creates a new GormExtraCostRepository
func NewGormExtraCostRepository(db *gorm.DB) *GormExtraCostRepository {
	return &GormExtraCostRepository{db: db}
}

// CreateType saves a new extra cost type
func (r *GormExtraCostRepository) CreateType(ctx context.Context, t *pricing.ExtraCostType) error {
	m := &models.ExtraCostTypeModel{Name: t.Name}
	m.FromDomainBaseEntity(t.BaseEntity)
	return r.db.WithContext(ctx).Create(m).Error
}

// FindTypeByName finds an extra cost type by name
func (r *GormExtraCostRepository) FindTypeByName(ctx context.Context, name string) (*pricing.ExtraCostType, error) {
	var m models.ExtraCostTypeModel
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &pricing.ExtraCostType{BaseEntity: m.BaseModel.ToDomain(), Name: m.Name}, nil
}

// Create saves a new extra cost
func (r *GormExtraCostRepository) Create(ctx context.Context, c *pricing.ExtraCost) error {
	return r.db.WithContext(ctx).Create(models.ExtraCostModelFromDomain(c)).Error
}

// FindOverlapping returns the costs of the filter's ventures whose range
// overlaps the filter's range
func (r *GormExtraCostRepository) FindOverlapping(ctx context.Context, filter pricing.LedgerFilter) ([]*pricing.ExtraCost, error) {
	if len(filter.VentureIDs) == 0 {
		return []*pricing.ExtraCost{}, nil
	}
	var ms []*models.ExtraCostModel
	if err := r.db.WithContext(ctx).
		Where("pricing_venture_id IN ?", filter.VentureIDs).
		Where("start_date <= ? AND end_date >= ?", filter.Range.End, filter.Range.Start).
		Order("start_date ASC").
		Find(&ms).Error; err != nil {
		return nil, err
	}
	out := make([]*pricing.ExtraCost, len(ms))
	for i, m := range ms {
		out[i] = m.ToDomain()
	}
	return out, nil
}

var _ pricing.ExtraCostRepository = (*GormExtraCostRepository)(nil)
