package pricing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowState_IsValid(t *testing.T) {
	assert.True(t, RowStateActive.IsValid())
	assert.True(t, RowStateDeprecated.IsValid())
	assert.False(t, RowState("deleted").IsValid())
}

func TestLedgerRow_Deprecate(t *testing.T) {
	row, err := NewDailyUsage(Date(2013, 4, 25), uuid.New(), nil, nil, 32)
	require.NoError(t, err)
	assert.True(t, row.IsActive())

	require.NoError(t, row.Deprecate())
	assert.False(t, row.IsActive())
	assert.Equal(t, RowStateDeprecated, row.State)

	assert.ErrorIs(t, row.Deprecate(), ErrAlreadyDeprecated)
}

func TestNewDailyDeviceAllocation(t *testing.T) {
	deviceID := uuid.New()
	ventureID := uuid.New()

	t.Run("normalizes the day", func(t *testing.T) {
		a, err := NewDailyDeviceAllocation(time.Date(2013, 4, 25, 13, 0, 0, 0, time.UTC),
			deviceID, &ventureID, "srv-1", decimal.NewFromInt(1337))
		require.NoError(t, err)
		assert.Equal(t, Date(2013, 4, 25), a.Date)
		assert.Equal(t, RowStateActive, a.State)
	})

	t.Run("rejects negative price", func(t *testing.T) {
		_, err := NewDailyDeviceAllocation(Date(2013, 4, 25), deviceID, &ventureID, "srv-1", decimal.NewFromInt(-1))
		assert.ErrorIs(t, err, ErrNegativePrice)
	})

	t.Run("rejects self parent", func(t *testing.T) {
		a, err := NewDailyDeviceAllocation(Date(2013, 4, 25), deviceID, nil, "srv-1", decimal.Zero)
		require.NoError(t, err)
		assert.Error(t, a.SetParentDevice(deviceID))
		require.NoError(t, a.SetParentDevice(uuid.New()))
		assert.NotNil(t, a.ParentDeviceID)
	})
}

func TestNewDailyUsage(t *testing.T) {
	_, err := NewDailyUsage(Date(2013, 4, 25), uuid.New(), nil, nil, -1)
	assert.Error(t, err)
}

func TestNewDailyDevicePart(t *testing.T) {
	p, err := NewDailyDevicePart(Date(2013, 4, 25), uuid.New(), 42, "disk", decimal.RequireFromString("12.5"))
	require.NoError(t, err)
	assert.Equal(t, 42, p.AssetID)
	assert.True(t, p.IsActive())
}
