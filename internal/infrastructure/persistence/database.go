package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/pricing/backend/internal/infrastructure/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Database owns the connection pool shared by the pricing repositories.
type Database struct {
	DB *gorm.DB
}

// Option adjusts the gorm configuration used by Open.
type Option func(*gorm.Config)

// WithLogger routes SQL logging through l. Without it gorm stays silent.
func WithLogger(l gormlogger.Interface) Option {
	return func(c *gorm.Config) {
		c.Logger = l
	}
}

// WithoutPreparedStatements disables the statement cache, needed behind
// transaction-mode poolers such as pgbouncer.
func WithoutPreparedStatements() Option {
	return func(c *gorm.Config) {
		c.PrepareStmt = false
	}
}

// Open connects to the postgres database described by cfg and verifies the
// connection.
func Open(cfg *config.DatabaseConfig, opts ...Option) (*Database, error) {
	return open(postgres.Open(cfg.DSN()), cfg, opts...)
}

func open(dialector gorm.Dialector, cfg *config.DatabaseConfig, opts ...Option) (*Database, error) {
	gc := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		// Writes that need atomicity (ingestion, venture moves) open their own transaction.
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	}
	for _, opt := range opts {
		opt(gc)
	}

	db, err := gorm.Open(dialector, gc)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Database{DB: db}, nil
}

// Repositories groups the gorm repositories built on one connection pool.
// The ledger repository serves allocations, parts and usages alike.
type Repositories struct {
	Ventures    *GormVentureRepository
	Devices     *GormDeviceRepository
	Ledger      *GormLedgerRepository
	UsageTypes  *GormUsageTypeRepository
	UsagePrices *GormUsagePriceRepository
	ExtraCosts  *GormExtraCostRepository
}

// Repositories builds every repository on d.
func (d *Database) Repositories() Repositories {
	return Repositories{
		Ventures:    NewGormVentureRepository(d.DB),
		Devices:     NewGormDeviceRepository(d.DB),
		Ledger:      NewGormLedgerRepository(d.DB),
		UsageTypes:  NewGormUsageTypeRepository(d.DB),
		UsagePrices: NewGormUsagePriceRepository(d.DB),
		ExtraCosts:  NewGormExtraCostRepository(d.DB),
	}
}

// Ping checks the connection, used by the health endpoint.
func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}
