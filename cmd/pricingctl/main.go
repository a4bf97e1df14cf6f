package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pricing/backend/internal/application/allocation"
	"github.com/pricing/backend/internal/application/collection"
	"github.com/pricing/backend/internal/infrastructure/auth"
	"github.com/pricing/backend/internal/infrastructure/cache"
	"github.com/pricing/backend/internal/infrastructure/collector"
	"github.com/pricing/backend/internal/infrastructure/config"
	"github.com/pricing/backend/internal/infrastructure/logger"
	"github.com/pricing/backend/internal/infrastructure/persistence"
	"github.com/pricing/backend/internal/infrastructure/storage"
	"github.com/pricing/backend/internal/interfaces/cli"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := cli.NewApp(version, load)
	if err := app.Execute(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// load wires the repositories, the engine and, when configured, the
// network collection pipeline, the report bucket and the token signer
func load(ctx context.Context, settings cli.Settings) (*cli.Dependencies, error) {
	var opts []config.LoadOption
	if settings.ConfigFile != "" {
		opts = append(opts, config.WithFile(settings.ConfigFile))
	}
	cfg, err := config.Load(opts...)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	// Logs go to stderr so tables on stdout stay clean
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     "console",
		Output:     "stderr",
		TimeFormat: "15:04:05",
	})
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	db, err := persistence.Open(&cfg.Database,
		persistence.WithLogger(logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))))
	if err != nil {
		return nil, err
	}

	repos := db.Repositories()

	closers := []func() error{db.Close}
	deps := &cli.Dependencies{
		Engine:     allocation.NewEngine(repos.Ventures, repos.Ledger, repos.Ledger, repos.UsagePrices, repos.ExtraCosts, log.Named("allocation")),
		Ventures:   repos.Ventures,
		UsageTypes: repos.UsageTypes,
	}
	if cfg.Auth.Enabled() {
		deps.Tokens = auth.NewTokenService(cfg.Auth)
	}
	if cfg.Export.Bucket != "" {
		reports, err := storage.NewS3ReportStore(ctx, cfg.Export, storage.WithLogger(log.Named("export")))
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		deps.Reports = reports
	}

	nfsen, err := collector.NewNfsenCollector(cfg.Collector, log.Named("collector"))
	switch {
	case errors.Is(err, collector.ErrNotConfigured):
		log.Debug("Network collector not configured", zap.Error(err))
	case err != nil:
		_ = db.Close()
		return nil, err
	default:
		guard, err := cache.NewGuardFactory(cfg.Redis, cache.WithLogger(log)).CreateGuard()
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		closers = append(closers, guard.Close)
		deps.Ingester = collection.NewService(nfsen, guard, repos.Devices, repos.Ledger, repos.Ledger, repos.UsageTypes, collection.Config{
			UsageTypeName: cfg.Collector.UsageTypeName,
			GuardTTL:      cfg.Collector.GuardTTL,
		}, log.Named("collection"))
	}

	deps.Close = func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		_ = log.Sync()
		return errors.Join(errs...)
	}
	return deps, nil
}
