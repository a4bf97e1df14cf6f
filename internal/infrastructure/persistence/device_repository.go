package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/pricing/backend/internal/domain/pricing"
	"github.com/pricing/backend/internal/domain/shared"
	"github.com/pricing/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormDeviceRepository implements DeviceRepository using GORM
type GormDeviceRepository struct {
	db *gorm.DB
}

// NewGormDeviceRepository creates a new GormDeviceRepository
func NewGormDeviceRepository(db *gorm.DB) *GormDeviceRepository {
	return &GormDeviceRepository{db: db}
}

// Create saves a new device
func (r *GormDeviceRepository) Create(ctx context.Context, d *pricing.Device) error {
	return r.db.WithContext(ctx).Create(models.DeviceModelFromDomain(d)).Error
}

// FindByID finds a device by ID
func (r *GormDeviceRepository) FindByID(ctx context.Context, id uuid.UUID) (*pricing.Device, error) {
	return r.findOne(ctx, "id = ?", id)
}

// FindByDeviceID finds a device by its inventory key
func (r *GormDeviceRepository) FindByDeviceID(ctx context.Context, deviceID int) (*pricing.Device, error) {
	return r.findOne(ctx, "device_id = ?", deviceID)
}

func (r *GormDeviceRepository) findOne(ctx context.Context, query string, arg any) (*pricing.Device, error) {
	var model models.DeviceModel
	if err := r.db.WithContext(ctx).Where(query, arg).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// AssignAddress binds an IP address to a device, moving it if it was bound
// to another device
func (r *GormDeviceRepository) AssignAddress(ctx context.Context, deviceID uuid.UUID, address string) error {
	address = strings.TrimSpace(address)
	if address == "" {
		return shared.NewDomainError("INVALID_ADDRESS", "Address cannot be empty")
	}
	if _, err := r.FindByID(ctx, deviceID); err != nil {
		return err
	}

	m := &models.DeviceAddressModel{DeviceID: deviceID, Address: address}
	m.FromDomainBaseEntity(shared.NewBaseEntity())
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "address"}},
			DoUpdates: clause.AssignmentColumns([]string{"device_id", "updated_at"}),
		}).
		Create(m).Error
}

// FindByAddresses maps each known address to its device
func (r *GormDeviceRepository) FindByAddresses(ctx context.Context, addresses []string) (map[string]*pricing.Device, error) {
	result := make(map[string]*pricing.Device)
	if len(addresses) == 0 {
		return result, nil
	}

	var bindings []models.DeviceAddressModel
	for _, chunk := range chunkStrings(addresses, queryChunkSize) {
		var part []models.DeviceAddressModel
		if err := r.db.WithContext(ctx).Where("address IN ?", chunk).Find(&part).Error; err != nil {
			return nil, err
		}
		bindings = append(bindings, part...)
	}
	if len(bindings) == 0 {
		return result, nil
	}

	ids := make([]uuid.UUID, 0, len(bindings))
	for _, b := range bindings {
		ids = append(ids, b.DeviceID)
	}
	var deviceModels []*models.DeviceModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&deviceModels).Error; err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*pricing.Device, len(deviceModels))
	for _, m := range deviceModels {
		byID[m.ID] = m.ToDomain()
	}
	for _, b := range bindings {
		if d, ok := byID[b.DeviceID]; ok {
			result[b.Address] = d
		}
	}
	return result, nil
}

// queryChunkSize bounds IN lists; collectors can report thousands of addresses
const queryChunkSize = 500

func chunkStrings(in []string, size int) [][]string {
	var out [][]string
	for size < len(in) {
		in, out = in[size:], append(out, in[:size])
	}
	return append(out, in)
}
