package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/pricing/backend/internal/domain/pricing"
	"github.com/pricing/backend/internal/domain/shared"
	"github.com/pricing/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormVentureRepository implements VentureRepository using GORM
type GormVentureRepository struct {
	db *gorm.DB
}

// NewGormVentureRepository creates a new GormVentureRepository
func NewGormVentureRepository(db *gorm.DB) *GormVentureRepository {
	return &GormVentureRepository{db: db}
}

// Create saves a new venture. The path is derived from the stored parent.
func (r *GormVentureRepository) Create(ctx context.Context, v *pricing.Venture) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var parent *pricing.Venture
		if v.ParentID != nil {
			p, err := findVenture(tx, *v.ParentID, false)
			if err != nil {
				if errors.Is(err, shared.ErrNotFound) {
					return pricing.ErrDanglingParent
				}
				return err
			}
			parent = p
		}
		if err := v.AttachTo(parent); err != nil {
			return err
		}
		return tx.Create(models.VentureModelFromDomain(v)).Error
	})
}

// FindByID finds a venture by ID
func (r *GormVentureRepository) FindByID(ctx context.Context, id uuid.UUID) (*pricing.Venture, error) {
	return findVenture(r.db.WithContext(ctx), id, false)
}

// FindByVentureID finds a venture by its business key
func (r *GormVentureRepository) FindByVentureID(ctx context.Context, ventureID int) (*pricing.Venture, error) {
	var model models.VentureModel
	if err := r.db.WithContext(ctx).Where("venture_id = ?", ventureID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll returns every venture ordered by depth then name
func (r *GormVentureRepository) FindAll(ctx context.Context) ([]*pricing.Venture, error) {
	var ventureModels []*models.VentureModel
	if err := r.db.WithContext(ctx).
		Order("level ASC, name ASC").
		Find(&ventureModels).Error; err != nil {
		return nil, err
	}
	return venturesToDomain(ventureModels), nil
}

// FindDescendants finds all descendants of a venture (using materialized path)
func (r *GormVentureRepository) FindDescendants(ctx context.Context, v *pricing.Venture) ([]*pricing.Venture, error) {
	var ventureModels []*models.VentureModel
	if err := r.db.WithContext(ctx).
		Where("path LIKE ?", v.Path+"/%").
		Order("level ASC, name ASC").
		Find(&ventureModels).Error; err != nil {
		return nil, err
	}
	return venturesToDomain(ventureModels), nil
}

// SubtreeIDs returns the venture ID followed by the IDs of all its descendants
func (r *GormVentureRepository) SubtreeIDs(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	v, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var ventureModels []*models.VentureModel
	if err := r.db.WithContext(ctx).
		Select("id").
		Where("path LIKE ?", v.Path+"/%").
		Order("level ASC").
		Find(&ventureModels).Error; err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(ventureModels)+1)
	ids = append(ids, v.ID)
	for _, m := range ventureModels {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// Move re-parents a venture and rebases the path and level of every
// descendant inside one transaction
func (r *GormVentureRepository) Move(ctx context.Context, id uuid.UUID, newParentID *uuid.UUID) (*pricing.Venture, error) {
	var moved *pricing.Venture
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		v, err := findVenture(tx, id, true)
		if err != nil {
			return err
		}

		var parent *pricing.Venture
		if newParentID != nil {
			parent, err = findVenture(tx, *newParentID, true)
			if err != nil {
				if errors.Is(err, shared.ErrNotFound) {
					return pricing.ErrDanglingParent
				}
				return err
			}
		}

		oldPath, oldLevel := v.Path, v.Level
		if err := v.AttachTo(parent); err != nil {
			return err
		}

		var descendants []*models.VentureModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("path LIKE ?", oldPath+"/%").
			Find(&descendants).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.VentureModel{}).
			Where("id = ?", v.ID).
			Updates(map[string]any{
				"parent_id":  v.ParentID,
				"path":       v.Path,
				"level":      v.Level,
				"updated_at": v.UpdatedAt,
			}).Error; err != nil {
			return err
		}

		delta := v.Level - oldLevel
		for _, d := range descendants {
			if err := tx.Model(&models.VentureModel{}).
				Where("id = ?", d.ID).
				Updates(map[string]any{
					"path":       pricing.RebasePath(d.Path, oldPath, v.Path),
					"level":      d.Level + delta,
					"updated_at": v.UpdatedAt,
				}).Error; err != nil {
				return fmt.Errorf("rebase venture %d: %w", d.VentureID, err)
			}
		}

		moved = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return moved, nil
}

func findVenture(db *gorm.DB, id uuid.UUID, lock bool) (*pricing.Venture, error) {
	if lock {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var model models.VentureModel
	if err := db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

func venturesToDomain(ms []*models.VentureModel) []*pricing.Venture {
	out := make([]*pricing.Venture, len(ms))
	for i, m := range ms {
		out[i] = m.ToDomain()
	}
	return out
}

// Ensure the repositories implement their interfaces
var (
	_ pricing.VentureRepository = (*GormVentureRepository)(nil)
	_ pricing.DeviceRepository  = (*GormDeviceRepository)(nil)
)
