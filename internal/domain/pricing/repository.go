package pricing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// VentureRepository defines the interface for venture persistence
type VentureRepository interface {
	// Create saves a new venture; its parent must already exist
	Create(ctx context.Context, v *Venture) error

	// FindByID finds a venture by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Venture, error)

	// FindByVentureID finds a venture by its business key
	FindByVentureID(ctx context.Context, ventureID int) (*Venture, error)

	// FindAll returns every venture
	FindAll(ctx context.Context) ([]*Venture, error)

	// FindDescendants finds all descendants of a venture (using materialized path)
	FindDescendants(ctx context.Context, v *Venture) ([]*Venture, error)

	// SubtreeIDs returns the venture ID followed by the IDs of all its descendants
	SubtreeIDs(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error)

	// Move re-parents a venture and rewrites the paths of its whole subtree
	// atomically. A nil parent makes it a root.
	Move(ctx context.Context, id uuid.UUID, newParentID *uuid.UUID) (*Venture, error)
}

// DeviceRepository defines the interface for device persistence
type DeviceRepository interface {
	Create(ctx context.Context, d *Device) error
	FindByID(ctx context.Context, id uuid.UUID) (*Device, error)
	FindByDeviceID(ctx context.Context, deviceID int) (*Device, error)

	// AssignAddress binds an IP address to a device
	AssignAddress(ctx context.Context, deviceID uuid.UUID, address string) error

	// FindByAddresses maps each known address to its device; unknown
	// addresses are absent from the result
	FindByAddresses(ctx context.Context, addresses []string) (map[string]*Device, error)
}

// AllocationLedger stores daily device allocations and part prices.
// Finders only ever return active rows.
type AllocationLedger interface {
	SaveAllocations(ctx context.Context, rows []*DailyDeviceAllocation) error
	FindAllocations(ctx context.Context, filter LedgerFilter) ([]*DailyDeviceAllocation, error)

	// VenturesOfDevices returns the venture each device was allocated to on day
	VenturesOfDevices(ctx context.Context, day time.Time, deviceIDs []uuid.UUID) (map[uuid.UUID]uuid.UUID, error)

	// ReplaceAllocations deprecates the active allocations of the given
	// rows' devices on day and inserts the rows, in one transaction
	ReplaceAllocations(ctx context.Context, day time.Time, rows []*DailyDeviceAllocation) (int64, error)

	SaveParts(ctx context.Context, rows []*DailyDevicePart) error
	FindParts(ctx context.Context, deviceIDs []uuid.UUID, r DateRange) ([]*DailyDevicePart, error)
}

// UsageLedger stores daily usage quantities. Finders only ever return active rows.
type UsageLedger interface {
	SaveUsages(ctx context.Context, rows []*DailyUsage) error
	FindUsages(ctx context.Context, filter LedgerFilter, typeID uuid.UUID) ([]*DailyUsage, error)

	// ReplaceDay deprecates every active row of typeID on day and inserts
	// rows, in one transaction. It returns the number of deprecated rows.
	ReplaceDay(ctx context.Context, day time.Time, typeID uuid.UUID, rows []*DailyUsage) (int64, error)
}

// UsageTypeRepository defines the interface for usage type persistence
type UsageTypeRepository interface {
	Create(ctx context.Context, t *UsageType) error
	FindByID(ctx context.Context, id uuid.UUID) (*UsageType, error)
	FindByName(ctx context.Context, name string) (*UsageType, error)
	FindAll(ctx context.Context) ([]*UsageType, error)
}

// UsagePriceRepository defines the interface for dated usage prices
type UsagePriceRepository interface {
	Create(ctx context.Context, p *UsagePrice) error

	// FindCovering returns every price of typeID whose range contains day
	FindCovering(ctx context.Context, typeID uuid.UUID, day time.Time) ([]*UsagePrice, error)
}

// ExtraCostRepository defines the interface for extra cost persistence
type ExtraCostRepository interface {
	CreateType(ctx context.Context, t *ExtraCostType) error
	FindTypeByName(ctx context.Context, name string) (*ExtraCostType, error)
	Create(ctx context.Context, c *ExtraCost) error

	// FindOverlapping returns the costs of the filter's ventures whose range
	// overlaps the filter's range
	FindOverlapping(ctx context.Context, filter LedgerFilter) ([]*ExtraCost, error)
}
