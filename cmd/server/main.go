package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pricing/backend/internal/application/allocation"
	"github.com/pricing/backend/internal/application/collection"
	"github.com/pricing/backend/internal/infrastructure/auth"
	"github.com/pricing/backend/internal/infrastructure/cache"
	"github.com/pricing/backend/internal/infrastructure/collector"
	"github.com/pricing/backend/internal/infrastructure/config"
	"github.com/pricing/backend/internal/infrastructure/logger"
	"github.com/pricing/backend/internal/infrastructure/persistence"
	"github.com/pricing/backend/internal/infrastructure/scheduler"
	"github.com/pricing/backend/internal/infrastructure/telemetry"
	"github.com/pricing/backend/internal/interfaces/http/handler"
	"github.com/pricing/backend/internal/interfaces/http/middleware"
	"github.com/pricing/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	configFile := flag.String("config", "", "configuration file (default: config.toml in ., /etc/pricing or /app)")
	flag.Parse()

	var loadOpts []config.LoadOption
	if *configFile != "" {
		loadOpts = append(loadOpts, config.WithFile(*configFile))
	}
	cfg, err := config.Load(loadOpts...)
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
		Fields: map[string]string{"app": cfg.App.Name, "version": version},
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting pricing service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:           cfg.Profiling.Enabled,
		ServerAddress:     cfg.Profiling.ServerAddress,
		ApplicationName:   cfg.Profiling.ApplicationName,
		BasicAuthUser:     cfg.Profiling.BasicAuthUser,
		BasicAuthPassword: cfg.Profiling.BasicAuthPassword,
		ProfileTypes:      cfg.Profiling.ProfileTypes,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	defer func() {
		if err := profiler.Stop(); err != nil {
			log.Error("Error stopping profiler", zap.Error(err))
		}
	}()

	tp, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Environment:       cfg.App.Env,
		Insecure:          cfg.Telemetry.Insecure,
		SpanProfiles:      profiler.IsEnabled() && cfg.Profiling.SpanProfiles,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	mp, err := telemetry.NewMeterProvider(context.Background(), telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsExportInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Environment:       cfg.App.Env,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}
	defer func() {
		if err := mp.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()

	// validated by config.Load
	exportLevel, _ := zapcore.ParseLevel(cfg.Telemetry.LogsLevel)
	lp, err := telemetry.NewLoggerProvider(context.Background(), telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Environment:       cfg.App.Env,
		Insecure:          cfg.Telemetry.Insecure,
		Level:             exportLevel,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize log export", zap.Error(err))
	}
	defer func() {
		if err := lp.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down logger provider", zap.Error(err))
		}
	}()
	log = lp.Bridge(log)

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh))
	db, err := persistence.Open(&cfg.Database, persistence.WithLogger(gormLog))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBSystem:        "postgresql",
	}, log)
	if err := dbTracing.RegisterOtelGorm(db.DB); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}

	repos := db.Repositories()
	engine := allocation.NewEngine(repos.Ventures, repos.Ledger, repos.Ledger, repos.UsagePrices, repos.ExtraCosts, log.Named("allocation"))

	guard, err := cache.NewGuardFactory(cfg.Redis, cache.WithLogger(log)).CreateGuard()
	if err != nil {
		log.Fatal("Failed to create collection guard", zap.Error(err))
	}
	defer func() {
		if err := guard.Close(); err != nil {
			log.Error("Error closing collection guard", zap.Error(err))
		}
	}()

	// The collector is optional: without hosts the service only serves reports
	collectionMetrics, err := telemetry.NewCollectionMetrics(mp.Meter(telemetry.TracerName))
	if err != nil {
		log.Fatal("Failed to create collection metrics", zap.Error(err))
	}
	collectionScheduler := startCollection(cfg, guard, repos, collectionMetrics, log)
	if collectionScheduler != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := collectionScheduler.Stop(ctx); err != nil {
				log.Error("Error stopping collection scheduler", zap.Error(err))
			}
		}()
	}

	mode := gin.DebugMode
	if cfg.App.Env == "production" {
		mode = gin.ReleaseMode
	}
	tracingCfg := middleware.DefaultTracingConfig()
	tracingCfg.Enabled = cfg.Telemetry.Enabled
	tracingCfg.ServiceName = cfg.Telemetry.ServiceName

	const healthPath = "/api/v1/system/health"
	var authCfg *middleware.AuthConfig
	if cfg.Auth.Enabled() {
		authCfg = &middleware.AuthConfig{
			Validator: auth.NewTokenService(cfg.Auth),
			SkipPaths: []string{healthPath},
		}
	} else {
		log.Warn("Report API is not authenticated, set auth.jwt_secret to require tokens")
	}

	httpEngine, err := router.NewEngine(router.EngineConfig{
		Mode:           mode,
		TrustedProxies: cfg.HTTP.TrustedProxies,
		CORS:           middleware.DefaultCORSConfig(),
		Tracing:        tracingCfg,
		QuietPaths:     []string{healthPath},
		Auth:           authCfg,
	}, log)
	if err != nil {
		log.Fatal("Failed to configure HTTP engine", zap.Error(err))
	}

	systemHandler := handler.NewSystemHandler(version, map[string]handler.HealthCheck{
		"database": db.Ping,
		"guard":    guard.Ping,
	})
	router.NewRouter(httpEngine, router.WithAPIVersion("v1")).
		Register(systemHandler).
		Register(handler.NewVentureCostHandler(engine, repos.UsageTypes)).
		Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        httpEngine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		return
	}

	log.Info("Server exited gracefully")
}

// startCollection builds the network usage pipeline and starts its daily
// scheduler. It returns nil when collection is disabled or not configured.
func startCollection(
	cfg *config.Config,
	guard cache.CollectionGuard,
	repos persistence.Repositories,
	metrics *telemetry.CollectionMetrics,
	log *zap.Logger,
) *scheduler.CollectionScheduler {
	if !cfg.Scheduler.Enabled {
		log.Info("Collection scheduler disabled")
		return nil
	}

	nfsen, err := collector.NewNfsenCollector(cfg.Collector, log.Named("collector"))
	if errors.Is(err, collector.ErrNotConfigured) {
		log.Warn("Network collector not configured, scheduler not started", zap.Error(err))
		return nil
	}
	if err != nil {
		log.Fatal("Failed to create network collector", zap.Error(err))
	}

	service := collection.NewService(nfsen, guard, repos.Devices, repos.Ledger, repos.Ledger, repos.UsageTypes, collection.Config{
		UsageTypeName: cfg.Collector.UsageTypeName,
		GuardTTL:      cfg.Collector.GuardTTL,
	}, log.Named("collection")).WithMetrics(metrics)

	s, err := scheduler.NewCollectionScheduler(service, log.Named("scheduler"), scheduler.CollectionSchedulerConfig{
		Enabled:       cfg.Scheduler.Enabled,
		RunHour:       cfg.Scheduler.RunHour,
		JobTimeout:    cfg.Scheduler.JobTimeout,
		RetryAttempts: cfg.Scheduler.RetryAttempts,
		RetryDelay:    cfg.Scheduler.RetryDelay,
	})
	if err != nil {
		log.Fatal("Invalid scheduler configuration", zap.Error(err))
	}
	if err := s.Start(context.Background()); err != nil {
		log.Fatal("Failed to start collection scheduler", zap.Error(err))
	}
	log.Info("Collection scheduler started",
		zap.Int("run_hour", cfg.Scheduler.RunHour),
		zap.Duration("job_timeout", cfg.Scheduler.JobTimeout),
	)
	return s
}
