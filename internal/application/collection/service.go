// Package collection turns raw per-address traffic into daily usage rows.
package collection

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pricing/backend/internal/domain/pricing"
	"github.com/pricing/backend/internal/domain/shared"
	"github.com/pricing/backend/internal/infrastructure/logger"
	"github.com/pricing/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// ErrAlreadyCollected is returned when the day was collected recently
var ErrAlreadyCollected = shared.NewDomainError("ALREADY_COLLECTED", "Usage for this day has already been collected")

// unresolvedLogLimit caps how many unknown addresses are written to the log
const unresolvedLogLimit = 20

// UsageCollector returns the bytes per address for one day
type UsageCollector interface {
	Collect(ctx context.Context, day time.Time) (map[string]int64, error)
}

// Guard keeps a day from being ingested twice at the same time
type Guard interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// Config holds the ingestion settings
type Config struct {
	UsageTypeName string
	GuardTTL      time.Duration
}

// Service ingests network usage
type Service struct {
	collector   UsageCollector
	guard       Guard
	devices     pricing.DeviceRepository
	allocations pricing.AllocationLedger
	usages      pricing.UsageLedger
	usageTypes  pricing.UsageTypeRepository
	cfg         Config
	logger      *zap.Logger
	metrics     *telemetry.CollectionMetrics
}

// NewService creates a new Service
func NewService(
	collector UsageCollector,
	guard Guard,
	devices pricing.DeviceRepository,
	allocations pricing.AllocationLedger,
	usages pricing.UsageLedger,
	usageTypes pricing.UsageTypeRepository,
	cfg Config,
	logger *zap.Logger,
) *Service {
	if cfg.UsageTypeName == "" {
		cfg.UsageTypeName = pricing.NetworkUsageTypeName
	}
	if cfg.GuardTTL <= 0 {
		cfg.GuardTTL = 20 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		collector:   collector,
		guard:       guard,
		devices:     devices,
		allocations: allocations,
		usages:      usages,
		usageTypes:  usageTypes,
		cfg:         cfg,
		logger:      logger,
	}
}

// WithMetrics records every ingestion on m
func (s *Service) WithMetrics(m *telemetry.CollectionMetrics) *Service {
	s.metrics = m
	return s
}

// IngestResult summarizes one ingestion
type IngestResult struct {
	Day        time.Time `json:"day"`
	Addresses  int       `json:"addresses"`
	Resolved   int       `json:"resolved"`
	Unresolved int       `json:"unresolved"`
	Rows       int       `json:"rows"`
	Bytes      int64     `json:"bytes"`
	Deprecated int64     `json:"deprecated"`
}

// IngestNetworkUsage collects the traffic of day and replaces the day's
// network usage rows in one transaction. A failed collection writes nothing.
func (s *Service) IngestNetworkUsage(ctx context.Context, day time.Time) (*IngestResult, error) {
	d := pricing.Day(day)
	ctx, span := telemetry.StartServiceSpan(ctx, "collection", "ingest_network_usage",
		telemetry.SpanAttrDay, d.Format(pricing.DateLayout))
	defer span.End()

	started := time.Now()
	run := telemetry.CollectionRun{UsageType: s.cfg.UsageTypeName, Outcome: telemetry.OutcomeFailure}
	defer func() {
		run.Elapsed = time.Since(started)
		s.metrics.Record(ctx, run)
	}()

	key := s.guardKey(d)
	acquired, err := s.guard.Acquire(ctx, key, s.cfg.GuardTTL)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if !acquired {
		run.Outcome = telemetry.OutcomeSkipped
		return nil, ErrAlreadyCollected
	}

	result, err := s.ingest(ctx, d)
	if err != nil {
		telemetry.RecordError(span, err)
		if rerr := s.guard.Release(context.WithoutCancel(ctx), key); rerr != nil {
			logger.Ctx(ctx, s.logger).Error("Failed to release collection guard", zap.String("key", key), zap.Error(rerr))
		}
		return nil, err
	}

	run.Outcome = telemetry.OutcomeSuccess
	run.Rows, run.Unresolved, run.Bytes = result.Rows, result.Unresolved, result.Bytes
	telemetry.SetAttributes(span, telemetry.SpanAttrRows, result.Rows)
	logger.Ctx(ctx, s.logger).Info("Network usage ingested",
		zap.String("day", d.Format(pricing.DateLayout)),
		zap.Int("addresses", result.Addresses),
		zap.Int("resolved", result.Resolved),
		zap.Int("unresolved", result.Unresolved),
		zap.Int("rows", result.Rows),
		zap.Int64("deprecated", result.Deprecated),
	)
	return result, nil
}

// Recollect drops the guard of day before ingesting it again
func (s *Service) Recollect(ctx context.Context, day time.Time) (*IngestResult, error) {
	if err := s.guard.Release(ctx, s.guardKey(pricing.Day(day))); err != nil {
		return nil, err
	}
	return s.IngestNetworkUsage(ctx, day)
}

func (s *Service) guardKey(day time.Time) string {
	return s.cfg.UsageTypeName + ":" + day.Format(pricing.DateLayout)
}

func (s *Service) ingest(ctx context.Context, day time.Time) (*IngestResult, error) {
	usageType, err := s.ensureUsageType(ctx)
	if err != nil {
		return nil, err
	}

	traffic, err := s.collector.Collect(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("failed to collect network usage: %w", err)
	}

	addresses := make([]string, 0, len(traffic))
	for addr := range traffic {
		addresses = append(addresses, addr)
	}
	sort.Strings(addresses)

	devices, err := s.devices.FindByAddresses(ctx, addresses)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve addresses: %w", err)
	}

	result := &IngestResult{Day: day, Addresses: len(addresses)}
	perDevice := make(map[uuid.UUID]int64)
	var unresolved []string
	for _, addr := range addresses {
		result.Bytes += traffic[addr]
		device, ok := devices[addr]
		if !ok {
			unresolved = append(unresolved, addr)
			continue
		}
		result.Resolved++
		perDevice[device.ID] += traffic[addr]
	}
	result.Unresolved = len(unresolved)
	if len(unresolved) > 0 {
		logger.Ctx(ctx, s.logger).Warn("Traffic from unknown addresses",
			zap.String("day", day.Format(pricing.DateLayout)),
			zap.Int("count", len(unresolved)),
			zap.Strings("sample", unresolved[:min(len(unresolved), unresolvedLogLimit)]),
		)
	}

	deviceIDs := make([]uuid.UUID, 0, len(perDevice))
	for id := range perDevice {
		deviceIDs = append(deviceIDs, id)
	}
	sort.Slice(deviceIDs, func(i, j int) bool { return deviceIDs[i].String() < deviceIDs[j].String() })

	owners, err := s.allocations.VenturesOfDevices(ctx, day, deviceIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve ventures: %w", err)
	}

	rows := make([]*pricing.DailyUsage, 0, len(deviceIDs))
	for _, id := range deviceIDs {
		deviceID := id
		var ventureID *uuid.UUID
		if v, ok := owners[id]; ok {
			ventureID = &v
		} else {
			logger.Ctx(ctx, s.logger).Debug("Device has no venture on day",
				zap.String("device_id", id.String()),
				zap.String("day", day.Format(pricing.DateLayout)),
			)
		}
		row, err := pricing.NewDailyUsage(day, usageType.ID, &deviceID, ventureID, float64(perDevice[id]))
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}

	deprecated, err := s.usages.ReplaceDay(ctx, day, usageType.ID, rows)
	if err != nil {
		return nil, fmt.Errorf("failed to store network usage: %w", err)
	}
	result.Rows = len(rows)
	result.Deprecated = deprecated
	return result, nil
}

func (s *Service) ensureUsageType(ctx context.Context) (*pricing.UsageType, error) {
	t, err := s.usageTypes.FindByName(ctx, s.cfg.UsageTypeName)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	t, err = pricing.NewUsageType(s.cfg.UsageTypeName)
	if err != nil {
		return nil, err
	}
	if err := s.usageTypes.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to create usage type %q: %w", s.cfg.UsageTypeName, err)
	}
	return t, nil
}
