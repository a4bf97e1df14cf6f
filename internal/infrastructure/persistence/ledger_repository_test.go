package persistence

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/pricing/backend/internal/domain/pricing"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	day1 = pricing.Date(2024, 3, 1)
	day2 = pricing.Date(2024, 3, 2)
	day3 = pricing.Date(2024, 3, 3)
)

func allocation(t *testing.T, day pricing.DateRange, deviceID uuid.UUID, ventureID *uuid.UUID, price string) *pricing.DailyDeviceAllocation {
	t.Helper()
	a, err := pricing.NewDailyDeviceAllocation(day.Start, deviceID, ventureID, "dev", decimal.RequireFromString(price))
	require.NoError(t, err)
	return a
}

func usage(t *testing.T, day pricing.DateRange, typeID uuid.UUID, deviceID, ventureID *uuid.UUID, value float64) *pricing.DailyUsage {
	t.Helper()
	u, err := pricing.NewDailyUsage(day.Start, typeID, deviceID, ventureID, value)
	require.NoError(t, err)
	return u
}

func TestGormLedgerRepository_Allocations(t *testing.T) {
	ctx := context.Background()
	repo := NewGormLedgerRepository(newTestDB(t))

	ventureA, ventureB := uuid.New(), uuid.New()
	dev1, dev2 := uuid.New(), uuid.New()

	require.NoError(t, repo.SaveAllocations(ctx, []*pricing.DailyDeviceAllocation{
		allocation(t, pricing.SingleDay(day1), dev1, &ventureA, "100.5"),
		allocation(t, pricing.SingleDay(day2), dev1, &ventureA, "100.5"),
		allocation(t, pricing.SingleDay(day2), dev2, &ventureB, "20"),
		allocation(t, pricing.SingleDay(day3), dev2, nil, "20"),
	}))

	r, err := pricing.NewDateRange(day1, day2)
	require.NoError(t, err)

	rows, err := repo.FindAllocations(ctx, pricing.LedgerFilter{VentureIDs: []uuid.UUID{ventureA}, Range: r})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, rows[0].Date.Equal(day1))
	assert.True(t, decimal.RequireFromString("100.5").Equal(rows[0].Price))

	empty, err := repo.FindAllocations(ctx, pricing.LedgerFilter{Range: r})
	require.NoError(t, err)
	assert.Empty(t, empty)

	owners, err := repo.VenturesOfDevices(ctx, day2, []uuid.UUID{dev1, dev2, uuid.New()})
	require.NoError(t, err)
	assert.Equal(t, map[uuid.UUID]uuid.UUID{dev1: ventureA, dev2: ventureB}, owners)

	unallocated, err := repo.VenturesOfDevices(ctx, day3, []uuid.UUID{dev2})
	require.NoError(t, err)
	assert.Empty(t, unallocated)
}

func TestGormLedgerRepository_ReplaceAllocations(t *testing.T) {
	ctx := context.Background()
	repo := NewGormLedgerRepository(newTestDB(t))

	ventureA, ventureB := uuid.New(), uuid.New()
	dev := uuid.New()
	require.NoError(t, repo.SaveAllocations(ctx, []*pricing.DailyDeviceAllocation{
		allocation(t, pricing.SingleDay(day1), dev, &ventureA, "10"),
	}))

	deprecated, err := repo.ReplaceAllocations(ctx, day1, []*pricing.DailyDeviceAllocation{
		allocation(t, pricing.SingleDay(day1), dev, &ventureB, "12"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), deprecated)

	owners, err := repo.VenturesOfDevices(ctx, day1, []uuid.UUID{dev})
	require.NoError(t, err)
	assert.Equal(t, ventureB, owners[dev])

	old, err := repo.FindAllocations(ctx, pricing.LedgerFilter{VentureIDs: []uuid.UUID{ventureA}, Range: pricing.SingleDay(day1)})
	require.NoError(t, err)
	assert.Empty(t, old)

	t.Run("rows of another day are rejected", func(t *testing.T) {
		_, err := repo.ReplaceAllocations(ctx, day1, []*pricing.DailyDeviceAllocation{
			allocation(t, pricing.SingleDay(day2), dev, &ventureB, "12"),
		})
		assert.ErrorIs(t, err, pricing.ErrInvalidRange)
	})
}

func TestGormLedgerRepository_Parts(t *testing.T) {
	ctx := context.Background()
	repo := NewGormLedgerRepository(newTestDB(t))

	dev := uuid.New()
	part1, err := pricing.NewDailyDevicePart(day1, dev, 7001, "disk", decimal.NewFromInt(3))
	require.NoError(t, err)
	part2, err := pricing.NewDailyDevicePart(day2, dev, 7001, "disk", decimal.NewFromInt(3))
	require.NoError(t, err)
	require.NoError(t, repo.SaveParts(ctx, []*pricing.DailyDevicePart{part1, part2}))

	rows, err := repo.FindParts(ctx, []uuid.UUID{dev}, pricing.SingleDay(day2))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 7001, rows[0].AssetID)

	duplicate, err := pricing.NewDailyDevicePart(day1, dev, 7001, "disk", decimal.NewFromInt(4))
	require.NoError(t, err)
	assert.Error(t, repo.SaveParts(ctx, []*pricing.DailyDevicePart{duplicate}))
}

func TestGormLedgerRepository_ReplaceDay(t *testing.T) {
	ctx := context.Background()
	repo := NewGormLedgerRepository(newTestDB(t))

	network, disk := uuid.New(), uuid.New()
	venture := uuid.New()
	dev1, dev2 := uuid.New(), uuid.New()
	filter := pricing.LedgerFilter{VentureIDs: []uuid.UUID{venture}, Range: pricing.SingleDay(day1)}

	require.NoError(t, repo.SaveUsages(ctx, []*pricing.DailyUsage{
		usage(t, pricing.SingleDay(day1), network, &dev1, &venture, 10),
		usage(t, pricing.SingleDay(day1), disk, &dev1, &venture, 99),
	}))

	deprecated, err := repo.ReplaceDay(ctx, day1, network, []*pricing.DailyUsage{
		usage(t, pricing.SingleDay(day1), network, &dev1, &venture, 16),
		usage(t, pricing.SingleDay(day1), network, &dev2, &venture, 16),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), deprecated)

	rows, err := repo.FindUsages(ctx, filter, network)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 32.0, rows[0].Value+rows[1].Value)

	other, err := repo.FindUsages(ctx, filter, disk)
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, 99.0, other[0].Value)

	t.Run("failed insert keeps the previous rows", func(t *testing.T) {
		dup := usage(t, pricing.SingleDay(day1), network, &dev1, &venture, 1)
		_, err := repo.ReplaceDay(ctx, day1, network, []*pricing.DailyUsage{dup, dup})
		require.Error(t, err)

		rows, err := repo.FindUsages(ctx, filter, network)
		require.NoError(t, err)
		assert.Len(t, rows, 2)
	})

	t.Run("rows of another type are rejected", func(t *testing.T) {
		_, err := repo.ReplaceDay(ctx, day1, network, []*pricing.DailyUsage{
			usage(t, pricing.SingleDay(day1), disk, &dev1, &venture, 1),
		})
		assert.Error(t, err)
	})

	t.Run("empty replacement deprecates the day", func(t *testing.T) {
		deprecated, err := repo.ReplaceDay(ctx, day1, network, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(2), deprecated)

		rows, err := repo.FindUsages(ctx, filter, network)
		require.NoError(t, err)
		assert.Empty(t, rows)
	})
}

func TestGormLedgerRepository_ReplaceDay_DriverFailure(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()
	repo := NewGormLedgerRepository(db.DB)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "daily_usages" SET`).WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err := repo.ReplaceDay(context.Background(), day1, uuid.New(), nil)
	assert.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormLedgerRepository_FindUsages_DriverFailure(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()
	repo := NewGormLedgerRepository(db.DB)

	mock.ExpectQuery(`SELECT \* FROM "daily_usages"`).WillReturnError(assert.AnError)

	_, err := repo.FindUsages(context.Background(),
		pricing.LedgerFilter{VentureIDs: []uuid.UUID{uuid.New()}, Range: pricing.SingleDay(day1)}, uuid.New())
	assert.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}
