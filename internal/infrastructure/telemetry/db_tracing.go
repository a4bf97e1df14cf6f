package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing.
type DBTracingConfig struct {
	Enabled         bool          // Enable database tracing
	LogFullSQL      bool          // Include query variables in spans (dev only)
	SlowQueryThresh time.Duration // Threshold for marking queries as slow
	DBSystem        string        // Database system name
}

// DefaultDBTracingConfig returns default configuration for database tracing.
func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		Enabled:         false,
		LogFullSQL:      false,
		SlowQueryThresh: 200 * time.Millisecond,
		DBSystem:        "postgresql",
	}
}

// DBTracingPlugin wraps the otelgorm plugin with slow query detection.
type DBTracingPlugin struct {
	config DBTracingConfig
	logger *zap.Logger
}

// NewDBTracingPlugin creates a new database tracing plugin.
func NewDBTracingPlugin(cfg DBTracingConfig, logger *zap.Logger) *DBTracingPlugin {
	if cfg.SlowQueryThresh <= 0 {
		cfg.SlowQueryThresh = DefaultDBTracingConfig().SlowQueryThresh
	}
	return &DBTracingPlugin{
		config: cfg,
		logger: logger,
	}
}

type contextKey string

const queryStartTimeKey contextKey = "otel_query_start_time"

// RegisterOtelGorm installs otelgorm on db along with before/after callbacks
// that flag slow queries and errors on the current span.
func (p *DBTracingPlugin) RegisterOtelGorm(db *gorm.DB) error {
	if !p.config.Enabled {
		p.logger.Debug("Database tracing disabled, skipping otelgorm registration")
		return nil
	}

	opts := []otelgorm.Option{
		otelgorm.WithDBName(p.config.DBSystem),
	}
	if !p.config.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	if err := p.registerCallbacks(db); err != nil {
		return err
	}

	p.logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", p.config.LogFullSQL),
		zap.Duration("slow_query_threshold", p.config.SlowQueryThresh),
		zap.String("db_system", p.config.DBSystem),
	)
	return nil
}

func (p *DBTracingPlugin) registerCallbacks(db *gorm.DB) error {
	cb := db.Callback()
	// otel is the operation name otelgorm registers as "otel:before:<otel>"
	// and "otel:after:<otel>"; it differs from gorm's for queries.
	type hook struct {
		op     string
		otel   string
		before func(string, string, func(*gorm.DB)) error
		after  func(string, string, string, func(*gorm.DB)) error
	}
	hooks := []hook{
		{"create", "create",
			func(at, name string, fn func(*gorm.DB)) error { return cb.Create().Before(at).Register(name, fn) },
			func(at, span, name string, fn func(*gorm.DB)) error { return cb.Create().After(at).Before(span).Register(name, fn) }},
		{"query", "select",
			func(at, name string, fn func(*gorm.DB)) error { return cb.Query().Before(at).Register(name, fn) },
			func(at, span, name string, fn func(*gorm.DB)) error { return cb.Query().After(at).Before(span).Register(name, fn) }},
		{"update", "update",
			func(at, name string, fn func(*gorm.DB)) error { return cb.Update().Before(at).Register(name, fn) },
			func(at, span, name string, fn func(*gorm.DB)) error { return cb.Update().After(at).Before(span).Register(name, fn) }},
		{"delete", "delete",
			func(at, name string, fn func(*gorm.DB)) error { return cb.Delete().Before(at).Register(name, fn) },
			func(at, span, name string, fn func(*gorm.DB)) error { return cb.Delete().After(at).Before(span).Register(name, fn) }},
		{"row", "row",
			func(at, name string, fn func(*gorm.DB)) error { return cb.Row().Before(at).Register(name, fn) },
			func(at, span, name string, fn func(*gorm.DB)) error { return cb.Row().After(at).Before(span).Register(name, fn) }},
		{"raw", "raw",
			func(at, name string, fn func(*gorm.DB)) error { return cb.Raw().Before(at).Register(name, fn) },
			func(at, span, name string, fn func(*gorm.DB)) error { return cb.Raw().After(at).Before(span).Register(name, fn) }},
	}

	for _, h := range hooks {
		core := "gorm:" + h.op
		if err := h.before(core, "otel_timing:before_"+h.op, markQueryStart); err != nil {
			return err
		}
		// The span must still be open, so run ahead of otelgorm's own after hook.
		if err := h.after(core, "otel:after:"+h.otel, "otel_slow_query:"+h.op, p.slowQueryCallback); err != nil {
			return err
		}
	}
	return nil
}

func markQueryStart(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, queryStartTimeKey, time.Now())
	}
}

// slowQueryCallback runs after each database operation.
func (p *DBTracingPlugin) slowQueryCallback(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}

	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	if db.Statement.RowsAffected >= 0 {
		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	}
	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}

	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.SetStatus(codes.Error, db.Error.Error())
		span.RecordError(db.Error)
	}

	startTime, ok := ctx.Value(queryStartTimeKey).(time.Time)
	if !ok {
		return
	}
	elapsed := time.Since(startTime)
	if elapsed > p.config.SlowQueryThresh {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
		span.AddEvent("slow_query_warning", trace.WithAttributes(
			attribute.Int64("duration_ms", elapsed.Milliseconds()),
			attribute.Int64("threshold_ms", p.config.SlowQueryThresh.Milliseconds()),
		))
		p.logger.Warn("Slow query",
			zap.String("table", db.Statement.Table),
			zap.Duration("elapsed", elapsed),
		)
	}
}
