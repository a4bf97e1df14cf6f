package scheduler

import (
	"errors"
	"fmt"
	"time"

	"github.com/pricing/backend/internal/domain/pricing"
)

var (
	// ErrSchedulerNotRunning is returned when triggering a stopped scheduler
	ErrSchedulerNotRunning = errors.New("scheduler is not running")

	ErrInvalidConfig = errors.New("invalid scheduler configuration")
)

// CollectionError is returned once every attempt to collect a day failed.
// It unwraps to the error of the last attempt.
type CollectionError struct {
	Day      time.Time
	Attempts int
	Err      error
}

func (e *CollectionError) Error() string {
	return fmt.Sprintf("collect %s: gave up after %d attempts: %v",
		e.Day.Format(pricing.DateLayout), e.Attempts, e.Err)
}

func (e *CollectionError) Unwrap() error {
	return e.Err
}
