package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pricing/backend/internal/application/collection"
	"github.com/pricing/backend/internal/domain/pricing"
	"github.com/pricing/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Ingester ingests the network usage of one day
type Ingester interface {
	IngestNetworkUsage(ctx context.Context, day time.Time) (*collection.IngestResult, error)
}

// CollectionScheduler runs the network usage ingestion once a day for the
// previous calendar day
type CollectionScheduler struct {
	ingester  Ingester
	logger    *zap.Logger
	config    CollectionSchedulerConfig
	now       func() time.Time
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// CollectionSchedulerConfig holds configuration for the collection scheduler
type CollectionSchedulerConfig struct {
	// Enabled determines if the scheduler is active
	Enabled bool

	// RunHour is the hour (0-23, UTC) when the previous day is collected
	RunHour int

	// JobTimeout is the maximum time for one ingestion attempt
	JobTimeout time.Duration

	// RetryAttempts is the number of extra attempts after a failure
	RetryAttempts int

	// RetryDelay is the delay between attempts
	RetryDelay time.Duration
}

// DefaultCollectionSchedulerConfig returns default configuration
func DefaultCollectionSchedulerConfig() CollectionSchedulerConfig {
	return CollectionSchedulerConfig{
		Enabled:       true,
		RunHour:       2,
		JobTimeout:    30 * time.Minute,
		RetryAttempts: 3,
		RetryDelay:    5 * time.Minute,
	}
}

// Validate checks the configuration
func (c CollectionSchedulerConfig) Validate() error {
	switch {
	case c.RunHour < 0 || c.RunHour > 23:
		return fmt.Errorf("%w: run hour %d outside 0-23", ErrInvalidConfig, c.RunHour)
	case c.JobTimeout <= 0:
		return fmt.Errorf("%w: job timeout must be positive", ErrInvalidConfig)
	case c.RetryAttempts < 0 || c.RetryDelay < 0:
		return fmt.Errorf("%w: negative retry settings", ErrInvalidConfig)
	}
	return nil
}

// NewCollectionScheduler creates a new collection scheduler
func NewCollectionScheduler(
	ingester Ingester,
	logger *zap.Logger,
	config CollectionSchedulerConfig,
) (*CollectionScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CollectionScheduler{
		ingester: ingester,
		logger:   logger,
		config:   config,
		now:      time.Now,
	}, nil
}

// Start starts the collection scheduler
func (s *CollectionScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if !s.config.Enabled {
		s.mu.Unlock()
		s.logger.Info("Collection scheduler is disabled")
		return nil
	}
	s.isRunning = true
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go s.runDaily(ctx)

	s.logger.Info("Collection scheduler started", zap.Int("run_hour", s.config.RunHour))
	return nil
}

// Stop gracefully stops the scheduler
func (s *CollectionScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Collection scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Collection scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the scheduler is running
func (s *CollectionScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// TriggerImmediate collects day in the background
func (s *CollectionScheduler) TriggerImmediate(ctx context.Context, day time.Time) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.wg.Add(1)
	s.mu.Unlock()

	s.logger.Info("Triggering immediate collection", zap.String("day", pricing.Day(day).Format(pricing.DateLayout)))
	go func() {
		defer s.wg.Done()
		_ = s.collect(ctx, day)
	}()
	return nil
}

// nextRun returns the next RunHour after now, in UTC
func (s *CollectionScheduler) nextRun(now time.Time) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), s.config.RunHour, 0, 0, 0, time.UTC)
	if !now.Before(next) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (s *CollectionScheduler) runDaily(ctx context.Context) {
	defer s.wg.Done()

	for {
		next := s.nextRun(s.now())
		delay := next.Sub(s.now())

		s.logger.Info("Daily collection scheduled",
			zap.Time("next_run", next),
			zap.Duration("delay", delay),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Debug("Daily collection loop stopping")
			return
		case <-timer.C:
			_ = s.collect(ctx, next.AddDate(0, 0, -1))
		}
	}
}

// collect ingests day, retrying failed attempts after RetryDelay. A day
// that was already collected is not retried.
func (s *CollectionScheduler) collect(ctx context.Context, day time.Time) error {
	day = pricing.Day(day)
	fields := []zap.Field{zap.String("day", day.Format(pricing.DateLayout))}

	var err error
	for attempt := 0; attempt <= s.config.RetryAttempts; attempt++ {
		if attempt > 0 {
			s.logger.Warn("Retrying collection", append(fields, zap.Int("attempt", attempt), zap.Error(err))...)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.config.RetryDelay):
			}
		}

		var result *collection.IngestResult
		result, err = s.attempt(ctx, day)
		if err == nil {
			s.logger.Info("Daily collection completed", append(fields,
				zap.Int("rows", result.Rows),
				zap.Int("unresolved", result.Unresolved),
			)...)
			return nil
		}
		if errors.Is(err, collection.ErrAlreadyCollected) {
			s.logger.Info("Day already collected", fields...)
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	s.logger.Error("Daily collection failed", append(fields, zap.Error(err))...)
	return &CollectionError{Day: day, Attempts: s.config.RetryAttempts + 1, Err: err}
}

func (s *CollectionScheduler) attempt(ctx context.Context, day time.Time) (*collection.IngestResult, error) {
	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	var (
		result *collection.IngestResult
		err    error
	)
	start := time.Now()
	telemetry.WithProfilingLabels(jobCtx, func(ctx context.Context) {
		result, err = s.ingester.IngestNetworkUsage(ctx, day)
	}, "job", "network_collection", "day", day.Format(pricing.DateLayout))
	s.logger.Debug("Collection attempt finished",
		zap.Duration("duration", time.Since(start)),
		zap.Bool("ok", err == nil),
	)
	return result, err
}
