package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pricing/backend/internal/application/collection"
	"github.com/pricing/backend/internal/domain/pricing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockIngester struct {
	mock.Mock
}

func (m *mockIngester) IngestNetworkUsage(ctx context.Context, day time.Time) (*collection.IngestResult, error) {
	args := m.Called(ctx, day)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*collection.IngestResult), args.Error(1)
}

func testConfig() CollectionSchedulerConfig {
	cfg := DefaultCollectionSchedulerConfig()
	cfg.RetryDelay = time.Millisecond
	return cfg
}

func TestDefaultCollectionSchedulerConfig(t *testing.T) {
	cfg := DefaultCollectionSchedulerConfig()

	assert.True(t, cfg.Enabled)
	assert.Equal(t, 2, cfg.RunHour)
	assert.Equal(t, 30*time.Minute, cfg.JobTimeout)
	assert.Equal(t, 3, cfg.RetryAttempts)
	assert.Equal(t, 5*time.Minute, cfg.RetryDelay)
	assert.NoError(t, cfg.Validate())
}

func TestCollectionSchedulerConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*CollectionSchedulerConfig)
	}{
		{"negative hour", func(c *CollectionSchedulerConfig) { c.RunHour = -1 }},
		{"hour past 23", func(c *CollectionSchedulerConfig) { c.RunHour = 24 }},
		{"zero timeout", func(c *CollectionSchedulerConfig) { c.JobTimeout = 0 }},
		{"negative retries", func(c *CollectionSchedulerConfig) { c.RetryAttempts = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultCollectionSchedulerConfig()
			tt.modify(&cfg)
			_, err := NewCollectionScheduler(&mockIngester{}, nil, cfg)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestCollectionScheduler_NextRun(t *testing.T) {
	s, err := NewCollectionScheduler(&mockIngester{}, zap.NewNop(), testConfig())
	require.NoError(t, err)

	tests := []struct {
		name     string
		now      time.Time
		expected time.Time
	}{
		{
			name:     "before run hour",
			now:      time.Date(2024, 5, 10, 1, 59, 0, 0, time.UTC),
			expected: time.Date(2024, 5, 10, 2, 0, 0, 0, time.UTC),
		},
		{
			name:     "exactly at run hour",
			now:      time.Date(2024, 5, 10, 2, 0, 0, 0, time.UTC),
			expected: time.Date(2024, 5, 11, 2, 0, 0, 0, time.UTC),
		},
		{
			name:     "after run hour",
			now:      time.Date(2024, 5, 31, 13, 0, 0, 0, time.UTC),
			expected: time.Date(2024, 6, 1, 2, 0, 0, 0, time.UTC),
		},
		{
			name:     "other zone",
			now:      time.Date(2024, 5, 10, 3, 0, 0, 0, time.FixedZone("CEST", 2*3600)),
			expected: time.Date(2024, 5, 10, 2, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, s.nextRun(tt.now))
		})
	}
}

func TestCollectionScheduler_Collect(t *testing.T) {
	day := pricing.Date(2024, 5, 10)

	t.Run("success", func(t *testing.T) {
		ing := &mockIngester{}
		ing.On("IngestNetworkUsage", mock.Anything, day).Return(&collection.IngestResult{Day: day, Rows: 3}, nil).Once()
		s, err := NewCollectionScheduler(ing, zap.NewNop(), testConfig())
		require.NoError(t, err)

		assert.NoError(t, s.collect(context.Background(), day.Add(5*time.Hour)))
		ing.AssertExpectations(t)
	})

	t.Run("retries then succeeds", func(t *testing.T) {
		ing := &mockIngester{}
		ing.On("IngestNetworkUsage", mock.Anything, day).Return(nil, errors.New("ssh: handshake failed")).Twice()
		ing.On("IngestNetworkUsage", mock.Anything, day).Return(&collection.IngestResult{Day: day}, nil).Once()
		s, err := NewCollectionScheduler(ing, zap.NewNop(), testConfig())
		require.NoError(t, err)

		assert.NoError(t, s.collect(context.Background(), day))
		ing.AssertNumberOfCalls(t, "IngestNetworkUsage", 3)
	})

	t.Run("gives up after the last attempt", func(t *testing.T) {
		ing := &mockIngester{}
		ing.On("IngestNetworkUsage", mock.Anything, day).Return(nil, errors.New("ssh: handshake failed"))
		cfg := testConfig()
		cfg.RetryAttempts = 2
		s, err := NewCollectionScheduler(ing, zap.NewNop(), cfg)
		require.NoError(t, err)

		err = s.collect(context.Background(), day)
		var collectErr *CollectionError
		require.ErrorAs(t, err, &collectErr)
		assert.Equal(t, 3, collectErr.Attempts)
		assert.EqualError(t, err, "collect 2024-05-10: gave up after 3 attempts: ssh: handshake failed")
		ing.AssertNumberOfCalls(t, "IngestNetworkUsage", 3)
	})

	t.Run("already collected is not retried", func(t *testing.T) {
		ing := &mockIngester{}
		ing.On("IngestNetworkUsage", mock.Anything, day).Return(nil, collection.ErrAlreadyCollected)
		s, err := NewCollectionScheduler(ing, zap.NewNop(), testConfig())
		require.NoError(t, err)

		assert.ErrorIs(t, s.collect(context.Background(), day), collection.ErrAlreadyCollected)
		ing.AssertNumberOfCalls(t, "IngestNetworkUsage", 1)
	})

	t.Run("cancelled context stops retries", func(t *testing.T) {
		ing := &mockIngester{}
		ing.On("IngestNetworkUsage", mock.Anything, day).Return(nil, errors.New("boom"))
		cfg := testConfig()
		cfg.RetryDelay = time.Hour
		s, err := NewCollectionScheduler(ing, zap.NewNop(), cfg)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(10*time.Millisecond, cancel)
		assert.ErrorIs(t, s.collect(ctx, day), context.Canceled)
		ing.AssertNumberOfCalls(t, "IngestNetworkUsage", 1)
	})
}

func TestCollectionScheduler_StartStop(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		cfg := testConfig()
		cfg.Enabled = false
		s, err := NewCollectionScheduler(&mockIngester{}, zap.NewNop(), cfg)
		require.NoError(t, err)

		require.NoError(t, s.Start(context.Background()))
		assert.False(t, s.IsRunning())
		assert.ErrorIs(t, s.TriggerImmediate(context.Background(), time.Now()), ErrSchedulerNotRunning)
	})

	t.Run("trigger runs in background", func(t *testing.T) {
		day := pricing.Date(2024, 5, 10)
		ing := &mockIngester{}
		ing.On("IngestNetworkUsage", mock.Anything, day).Return(&collection.IngestResult{Day: day}, nil).Once()
		s, err := NewCollectionScheduler(ing, zap.NewNop(), testConfig())
		require.NoError(t, err)

		require.NoError(t, s.Start(context.Background()))
		assert.True(t, s.IsRunning())
		require.NoError(t, s.TriggerImmediate(context.Background(), day))

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, s.Stop(ctx))
		assert.False(t, s.IsRunning())
		ing.AssertExpectations(t)
	})
}
