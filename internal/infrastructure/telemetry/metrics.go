package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"
)

const defaultExportInterval = 60 * time.Second

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled           bool
	CollectorEndpoint string
	ExportInterval    time.Duration
	ServiceName       string
	ServiceVersion    string
	Environment       string
	Insecure          bool
}

// MeterOption customizes NewMeterProvider.
type MeterOption func(*meterOptions)

type meterOptions struct {
	readers []sdkmetric.Reader
}

// WithReader collects metrics through r instead of a periodic OTLP export.
func WithReader(r sdkmetric.Reader) MeterOption {
	return func(o *meterOptions) {
		o.readers = append(o.readers, r)
	}
}

// MeterProvider owns the global meter provider of the process.
type MeterProvider struct {
	provider *sdkmetric.MeterProvider
	logger   *zap.Logger
	config   MetricsConfig
}

// NewMeterProvider installs a global meter provider. Disabled metrics leave
// the no-op global provider in place.
func NewMeterProvider(ctx context.Context, cfg MetricsConfig, logger *zap.Logger, opts ...MeterOption) (*MeterProvider, error) {
	mp := &MeterProvider{logger: logger, config: cfg}
	if !cfg.Enabled {
		logger.Info("Metrics disabled")
		return mp, nil
	}

	var o meterOptions
	for _, opt := range opts {
		opt(&o)
	}

	res, err := newResource(Config{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.ServiceVersion,
		Environment:    cfg.Environment,
	})
	if err != nil {
		return nil, err
	}

	interval := cfg.ExportInterval
	if interval <= 0 {
		interval = defaultExportInterval
	}
	readers := o.readers
	if len(readers) == 0 {
		exporterOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.CollectorEndpoint)}
		if cfg.Insecure {
			exporterOpts = append(exporterOpts, otlpmetricgrpc.WithInsecure())
		}
		exporter, err := otlpmetricgrpc.New(ctx, exporterOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
		}
		readers = append(readers, sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval)))
	}

	providerOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	for _, r := range readers {
		providerOpts = append(providerOpts, sdkmetric.WithReader(r))
	}
	mp.provider = sdkmetric.NewMeterProvider(providerOpts...)
	otel.SetMeterProvider(mp.provider)

	logger.Info("Metrics enabled",
		zap.String("collector_endpoint", cfg.CollectorEndpoint),
		zap.Duration("export_interval", interval),
	)
	return mp, nil
}

// Meter returns a named meter, falling back to the global provider when
// metrics are disabled.
func (mp *MeterProvider) Meter(name string) metric.Meter {
	if mp.provider == nil {
		return otel.GetMeterProvider().Meter(name)
	}
	return mp.provider.Meter(name)
}

// Shutdown flushes pending metrics.
func (mp *MeterProvider) Shutdown(ctx context.Context) error {
	if mp.provider == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := mp.provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown meter provider: %w", err)
	}
	mp.logger.Debug("Meter provider shut down")
	return nil
}

func (mp *MeterProvider) IsEnabled() bool {
	return mp.config.Enabled && mp.provider != nil
}

// Collection outcomes recorded on pricing_collection_runs_total.
const (
	OutcomeSuccess = "success"
	OutcomeSkipped = "skipped"
	OutcomeFailure = "failure"
)

var (
	attrUsageType = attribute.Key("usage_type")
	attrOutcome   = attribute.Key("outcome")
)

// collectionDurationBuckets span a quick local run to a slow multi host fetch (seconds).
var collectionDurationBuckets = []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800}

// CollectionMetrics records the daily usage ingestion. A nil
// *CollectionMetrics records nothing.
type CollectionMetrics struct {
	runs       metric.Int64Counter
	rows       metric.Int64Counter
	unresolved metric.Int64Counter
	bytes      metric.Int64Counter
	duration   metric.Float64Histogram
}

// NewCollectionMetrics creates the collection instruments on meter.
func NewCollectionMetrics(meter metric.Meter) (*CollectionMetrics, error) {
	var (
		m   CollectionMetrics
		err error
	)
	if m.runs, err = meter.Int64Counter("pricing_collection_runs_total",
		metric.WithDescription("Usage collection runs by outcome"),
		metric.WithUnit("{run}")); err != nil {
		return nil, fmt.Errorf("failed to create counter pricing_collection_runs_total: %w", err)
	}
	if m.rows, err = meter.Int64Counter("pricing_collection_rows_total",
		metric.WithDescription("Daily usage rows written"),
		metric.WithUnit("{row}")); err != nil {
		return nil, fmt.Errorf("failed to create counter pricing_collection_rows_total: %w", err)
	}
	if m.unresolved, err = meter.Int64Counter("pricing_collection_unresolved_addresses_total",
		metric.WithDescription("Collected addresses that matched no device"),
		metric.WithUnit("{address}")); err != nil {
		return nil, fmt.Errorf("failed to create counter pricing_collection_unresolved_addresses_total: %w", err)
	}
	if m.bytes, err = meter.Int64Counter("pricing_collection_bytes_total",
		metric.WithDescription("Traffic collected"),
		metric.WithUnit("By")); err != nil {
		return nil, fmt.Errorf("failed to create counter pricing_collection_bytes_total: %w", err)
	}
	if m.duration, err = meter.Float64Histogram("pricing_collection_duration_seconds",
		metric.WithDescription("Duration of a usage collection run"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(collectionDurationBuckets...)); err != nil {
		return nil, fmt.Errorf("failed to create histogram pricing_collection_duration_seconds: %w", err)
	}
	return &m, nil
}

// CollectionRun is what one ingestion of one day produced.
type CollectionRun struct {
	UsageType  string
	Outcome    string
	Rows       int
	Unresolved int
	Bytes      int64
	Elapsed    time.Duration
}

// Record adds run to the instruments. Volumes are only counted for
// successful runs since a failed run writes nothing.
func (m *CollectionMetrics) Record(ctx context.Context, run CollectionRun) {
	if m == nil {
		return
	}
	usageType := attrUsageType.String(run.UsageType)
	m.runs.Add(ctx, 1, metric.WithAttributes(usageType, attrOutcome.String(run.Outcome)))
	if run.Outcome == OutcomeSkipped {
		return
	}
	m.duration.Record(ctx, run.Elapsed.Seconds(),
		metric.WithAttributes(usageType, attrOutcome.String(run.Outcome)))
	if run.Outcome != OutcomeSuccess {
		return
	}
	m.rows.Add(ctx, int64(run.Rows), metric.WithAttributes(usageType))
	m.unresolved.Add(ctx, int64(run.Unresolved), metric.WithAttributes(usageType))
	m.bytes.Add(ctx, run.Bytes, metric.WithAttributes(usageType))
}
