package allocation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pricing/backend/internal/domain/pricing"
	"github.com/pricing/backend/internal/infrastructure/persistence"
	"github.com/pricing/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dayX = pricing.Date(2024, 5, 10)

type fixture struct {
	engine   *Engine
	ventures *persistence.GormVentureRepository
	ledger   *persistence.GormLedgerRepository
	prices   *persistence.GormUsagePriceRepository
	costs    *persistence.GormExtraCostRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.AllModels()...))

	f := &fixture{
		ventures: persistence.NewGormVentureRepository(db),
		ledger:   persistence.NewGormLedgerRepository(db),
		prices:   persistence.NewGormUsagePriceRepository(db),
		costs:    persistence.NewGormExtraCostRepository(db),
	}
	f.engine = NewEngine(f.ventures, f.ledger, f.ledger, f.prices, f.costs, zap.NewNop())
	return f
}

func (f *fixture) venture(t *testing.T, id int, name string, parent *pricing.Venture) *pricing.Venture {
	t.Helper()
	v, err := pricing.NewVenture(id, name, "")
	require.NoError(t, err)
	if parent != nil {
		v.ParentID = &parent.ID
	}
	require.NoError(t, f.ventures.Create(context.Background(), v))
	return v
}

func (f *fixture) allocate(t *testing.T, day time.Time, device uuid.UUID, venture *pricing.Venture, price int64) {
	t.Helper()
	a, err := pricing.NewDailyDeviceAllocation(day, device, &venture.ID, "device", decimal.NewFromInt(price))
	require.NoError(t, err)
	require.NoError(t, f.ledger.SaveAllocations(context.Background(), []*pricing.DailyDeviceAllocation{a}))
}

func (f *fixture) use(t *testing.T, day time.Time, typeID uuid.UUID, venture *pricing.Venture, value float64) {
	t.Helper()
	device := uuid.New()
	u, err := pricing.NewDailyUsage(day, typeID, &device, &venture.ID, value)
	require.NoError(t, err)
	require.NoError(t, f.ledger.SaveUsages(context.Background(), []*pricing.DailyUsage{u}))
}

func TestEngine_AssetsCountPriceCost(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	parent := f.venture(t, 1, "parent", nil)
	child := f.venture(t, 2, "child", parent)
	f.allocate(t, dayX, uuid.New(), parent, 1337)
	f.allocate(t, dayX, uuid.New(), child, 833833)

	own, err := f.engine.AssetsCountPriceCost(ctx, parent.ID, dayX, dayX)
	require.NoError(t, err)
	assert.Equal(t, 1, own.Count)
	assert.True(t, decimal.NewFromInt(1337).Equal(own.Price))
	assert.True(t, decimal.NewFromInt(1337).Equal(own.Cost))

	subtree, err := f.engine.AssetsCountPriceCost(ctx, parent.ID, dayX, dayX, WithSubventures())
	require.NoError(t, err)
	assert.Equal(t, 2, subtree.Count)
	assert.True(t, decimal.NewFromInt(835170).Equal(subtree.Price))
	assert.True(t, decimal.NewFromInt(835170).Equal(subtree.Cost))

	t.Run("empty set is zero", func(t *testing.T) {
		res, err := f.engine.AssetsCountPriceCost(ctx, child.ID, dayX.AddDate(0, 0, 1), dayX.AddDate(0, 0, 3))
		require.NoError(t, err)
		assert.Equal(t, 0, res.Count)
		assert.True(t, res.Price.IsZero())
		assert.True(t, res.Cost.IsZero())
	})

	t.Run("deprecated rows are excluded", func(t *testing.T) {
		device := uuid.New()
		f.allocate(t, dayX.AddDate(0, 0, 5), device, child, 50)
		replacement, err := pricing.NewDailyDeviceAllocation(dayX.AddDate(0, 0, 5), device, &parent.ID, "device", decimal.NewFromInt(70))
		require.NoError(t, err)
		_, err = f.ledger.ReplaceAllocations(ctx, dayX.AddDate(0, 0, 5), []*pricing.DailyDeviceAllocation{replacement})
		require.NoError(t, err)

		res, err := f.engine.AssetsCountPriceCost(ctx, child.ID, dayX.AddDate(0, 0, 5), dayX.AddDate(0, 0, 5))
		require.NoError(t, err)
		assert.Equal(t, 0, res.Count)

		res, err = f.engine.AssetsCountPriceCost(ctx, parent.ID, dayX.AddDate(0, 0, 5), dayX.AddDate(0, 0, 5))
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(70).Equal(res.Price))
	})

	t.Run("count is distinct devices and grows with the range", func(t *testing.T) {
		device := uuid.New()
		f.allocate(t, dayX.AddDate(0, 0, 10), device, child, 10)
		f.allocate(t, dayX.AddDate(0, 0, 11), device, child, 10)

		narrow, err := f.engine.AssetsCountPriceCost(ctx, parent.ID, dayX.AddDate(0, 0, 10), dayX.AddDate(0, 0, 10), WithSubventures())
		require.NoError(t, err)
		wide, err := f.engine.AssetsCountPriceCost(ctx, parent.ID, dayX.AddDate(0, 0, 10), dayX.AddDate(0, 0, 11), WithSubventures())
		require.NoError(t, err)
		all, err := f.engine.AssetsCountPriceCost(ctx, parent.ID, dayX, dayX.AddDate(0, 0, 11), WithSubventures())
		require.NoError(t, err)

		assert.Equal(t, 1, narrow.Count)
		assert.Equal(t, 1, wide.Count)
		assert.True(t, decimal.NewFromInt(20).Equal(wide.Price))
		assert.Equal(t, 4, all.Count)
		assert.LessOrEqual(t, narrow.Count, wide.Count)
		assert.LessOrEqual(t, wide.Count, all.Count)
	})

	t.Run("billing period normalizes cost", func(t *testing.T) {
		res, err := f.engine.AssetsCountPriceCost(ctx, child.ID, dayX.AddDate(0, 0, 10), dayX.AddDate(0, 0, 11), WithBillingPeriod(30))
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(20).Equal(res.Price))
		assert.True(t, decimal.NewFromInt(300).Equal(res.Cost))
	})

	t.Run("repeated queries are identical", func(t *testing.T) {
		first, err := f.engine.AssetsCountPriceCost(ctx, parent.ID, dayX, dayX.AddDate(0, 0, 11), WithSubventures())
		require.NoError(t, err)
		second, err := f.engine.AssetsCountPriceCost(ctx, parent.ID, dayX, dayX.AddDate(0, 0, 11), WithSubventures())
		require.NoError(t, err)
		assert.Equal(t, first.Count, second.Count)
		assert.Equal(t, first.Price.String(), second.Price.String())
	})

	t.Run("inverted range", func(t *testing.T) {
		_, err := f.engine.AssetsCountPriceCost(ctx, parent.ID, dayX, dayX.AddDate(0, 0, -1))
		assert.ErrorIs(t, err, pricing.ErrInvalidRange)
	})
}

func TestEngine_UsagesCountPrice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	v := f.venture(t, 1, "web", nil)
	typeID := uuid.New()
	f.use(t, dayX, typeID, v, 32)
	f.use(t, dayX.AddDate(0, 0, -1), typeID, v, 32)

	price, err := pricing.NewUsagePrice(typeID, decimal.NewFromInt(4), dayX, dayX)
	require.NoError(t, err)
	require.NoError(t, f.prices.Create(ctx, price))

	priced, err := f.engine.UsagesCountPrice(ctx, v.ID, dayX, dayX, typeID)
	require.NoError(t, err)
	assert.Equal(t, 32.0, priced.Count)
	require.True(t, priced.Priced())
	assert.True(t, decimal.NewFromInt(128).Equal(priced.Price.Decimal))

	unpriced, err := f.engine.UsagesCountPrice(ctx, v.ID, dayX.AddDate(0, 0, -1), dayX.AddDate(0, 0, -1), typeID)
	require.NoError(t, err)
	assert.Equal(t, 32.0, unpriced.Count)
	assert.False(t, unpriced.Priced())

	empty, err := f.engine.UsagesCountPrice(ctx, v.ID, dayX.AddDate(0, 0, 1), dayX.AddDate(0, 0, 1), typeID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, empty.Count)
	require.True(t, empty.Priced())
	assert.True(t, empty.Price.Decimal.IsZero())

	t.Run("price is anchored at the range start", func(t *testing.T) {
		res, err := f.engine.UsagesCountPrice(ctx, v.ID, dayX.AddDate(0, 0, -1), dayX, typeID)
		require.NoError(t, err)
		assert.Equal(t, 64.0, res.Count)
		assert.False(t, res.Priced())
	})

	t.Run("other types are ignored", func(t *testing.T) {
		res, err := f.engine.UsagesCountPrice(ctx, v.ID, dayX, dayX, uuid.New())
		require.NoError(t, err)
		assert.Equal(t, 0.0, res.Count)
	})
}

func TestEngine_ExtraCosts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	parent := f.venture(t, 1, "parent", nil)
	child := f.venture(t, 2, "child", parent)

	typ, err := pricing.NewExtraCostType("support")
	require.NoError(t, err)
	require.NoError(t, f.costs.CreateType(ctx, typ))

	april, err := pricing.NewExtraCost(typ.ID, parent.ID, decimal.NewFromInt(3000), pricing.Date(2024, 4, 1), pricing.Date(2024, 4, 30))
	require.NoError(t, err)
	require.NoError(t, f.costs.Create(ctx, april))
	childCost, err := pricing.NewExtraCost(typ.ID, child.ID, decimal.NewFromInt(310), pricing.Date(2024, 5, 1), pricing.Date(2024, 5, 31))
	require.NoError(t, err)
	require.NoError(t, f.costs.Create(ctx, childCost))

	own, err := f.engine.ExtraCosts(ctx, parent.ID, pricing.Date(2024, 4, 21), pricing.Date(2024, 5, 5))
	require.NoError(t, err)
	assert.Equal(t, 1, own.Count)
	assert.True(t, decimal.NewFromInt(3000).Equal(own.Price))
	assert.True(t, decimal.NewFromInt(1000).Equal(own.Prorated))

	subtree, err := f.engine.ExtraCosts(ctx, parent.ID, pricing.Date(2024, 4, 21), pricing.Date(2024, 5, 5), WithSubventures())
	require.NoError(t, err)
	assert.Equal(t, 2, subtree.Count)
	assert.True(t, decimal.NewFromInt(3310).Equal(subtree.Price))
	assert.True(t, decimal.NewFromInt(1050).Equal(subtree.Prorated))

	none, err := f.engine.ExtraCosts(ctx, child.ID, pricing.Date(2024, 6, 1), pricing.Date(2024, 6, 30))
	require.NoError(t, err)
	assert.Equal(t, 0, none.Count)
	assert.True(t, none.Price.IsZero())
}

func TestEngine_DailyDevicePrices(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	v := f.venture(t, 1, "web", nil)
	f.allocate(t, dayX, uuid.New(), v, 10)
	f.allocate(t, dayX, uuid.New(), v, 5)
	f.allocate(t, dayX.AddDate(0, 0, 2), uuid.New(), v, 7)

	days, err := f.engine.DailyDevicePrices(ctx, v.ID, dayX, dayX.AddDate(0, 0, 2))
	require.NoError(t, err)
	require.Len(t, days, 3)

	assert.True(t, days[0].Date.Equal(dayX))
	assert.Equal(t, 2, days[0].Devices)
	assert.True(t, decimal.NewFromInt(15).Equal(days[0].Price))
	assert.Equal(t, 0, days[1].Devices)
	assert.True(t, days[1].Price.IsZero())
	assert.True(t, decimal.NewFromInt(7).Equal(days[2].Price))

	t.Run("full leap year is listed", func(t *testing.T) {
		start := pricing.Date(2024, time.January, 1)
		days, err := f.engine.DailyDevicePrices(ctx, v.ID, start, pricing.Date(2024, time.December, 31))
		require.NoError(t, err)
		assert.Len(t, days, pricing.MaxBreakdownDays)
	})

	t.Run("range over the cap is rejected", func(t *testing.T) {
		start := pricing.Date(2024, time.January, 1)
		_, err := f.engine.DailyDevicePrices(ctx, v.ID, start, pricing.Date(2025, time.January, 1))
		assert.ErrorIs(t, err, pricing.ErrRangeTooLong)
		assert.ErrorIs(t, err, pricing.ErrInvalidRange)
	})

	t.Run("whole calendar is rejected", func(t *testing.T) {
		_, err := f.engine.DailyDevicePrices(ctx, v.ID, pricing.Date(1, time.January, 1), pricing.Date(9999, time.December, 31))
		assert.ErrorIs(t, err, pricing.ErrRangeTooLong)
	})
}

func TestEngine_PartsCost(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	v := f.venture(t, 1, "web", nil)
	other := f.venture(t, 2, "db", nil)
	device := uuid.New()
	f.allocate(t, dayX, device, v, 100)
	f.allocate(t, dayX.AddDate(0, 0, 1), device, other, 100)

	for _, day := range []time.Time{dayX, dayX.AddDate(0, 0, 1)} {
		part, err := pricing.NewDailyDevicePart(day, device, 42, "disk", decimal.RequireFromString("2.5"))
		require.NoError(t, err)
		require.NoError(t, f.ledger.SaveParts(ctx, []*pricing.DailyDevicePart{part}))
	}

	res, err := f.engine.PartsCost(ctx, v.ID, dayX, dayX.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)
	assert.True(t, decimal.RequireFromString("2.5").Equal(res.Price))
}
