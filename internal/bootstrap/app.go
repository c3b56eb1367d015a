// Package bootstrap wires the sync core from configuration. The server and
// the operator CLI build the same component graph through it.
package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	integrationapp "github.com/meschain/marketsync/internal/application/integration"
	"github.com/meschain/marketsync/internal/domain/integration"
	"github.com/meschain/marketsync/internal/domain/shared"
	"github.com/meschain/marketsync/internal/infrastructure/auth"
	"github.com/meschain/marketsync/internal/infrastructure/cache"
	"github.com/meschain/marketsync/internal/infrastructure/config"
	"github.com/meschain/marketsync/internal/infrastructure/ecommerce"
	"github.com/meschain/marketsync/internal/infrastructure/persistence"
	"github.com/meschain/marketsync/internal/infrastructure/ratelimit"
	"github.com/meschain/marketsync/internal/infrastructure/scheduler"
	"github.com/meschain/marketsync/internal/infrastructure/storage"
	"github.com/meschain/marketsync/internal/infrastructure/telemetry"
)

// App holds every long-lived component of the sync core
type App struct {
	Config *config.Config
	Logger *zap.Logger

	Telemetry *telemetry.Provider
	Profiler  *telemetry.Profiler
	Metrics   *telemetry.SyncMetrics
	DB        *persistence.Database
	Caches    *cache.Factory
	Limiter   *ratelimit.Limiter
	Adapters  *integration.AdapterRegistry
	JWT       *auth.JWTService

	Mapping      *integrationapp.MappingService
	Reporting    *integrationapp.ReportingService
	Ingestor     *integrationapp.WebhookIngestor
	Orchestrator *scheduler.Orchestrator
	Cron         *scheduler.CronTrigger
	Archiver     *storage.AuditArchiver

	version string
}

// Version is the build version the application was created with
func (a *App) Version() string { return a.version }

// New builds the component graph. Nothing runs until Start or StartWorkers.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger, version string) (*App, error) {
	app := &App{Config: cfg, Logger: log, version: version}
	if err := app.initTelemetry(ctx); err != nil {
		return nil, err
	}
	if err := app.initDatabase(ctx); err != nil {
		app.Shutdown(ctx)
		return nil, err
	}
	if err := app.initSync(ctx); err != nil {
		app.Shutdown(ctx)
		return nil, err
	}
	if err := app.initArchiver(ctx); err != nil {
		app.Shutdown(ctx)
		return nil, err
	}
	app.JWT = auth.NewJWTService(cfg.JWT)
	return app, nil
}

func (a *App) initTelemetry(ctx context.Context) error {
	tc := a.Config.Telemetry
	provider, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:           tc.Enabled,
		CollectorEndpoint: tc.CollectorEndpoint,
		Insecure:          tc.Insecure,
		ServiceName:       tc.ServiceName,
		ServiceVersion:    a.version,
		SamplingRatio:     tc.SamplingRatio,
		MetricsInterval:   tc.MetricsInterval,
		LogsEnabled:       tc.LogsEnabled,
	}, a.Logger)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	a.Telemetry = provider
	a.Logger = provider.BridgeLogger(a.Logger, zapcore.InfoLevel)

	a.Profiler, err = telemetry.StartProfiler(telemetry.ProfilerConfig{
		Enabled:         tc.ProfilingEnabled,
		ServerAddress:   tc.ProfilingEndpoint,
		ApplicationName: tc.ServiceName,
		Goroutines:      true,
	}, a.Logger)
	if err != nil {
		return fmt.Errorf("profiler: %w", err)
	}
	if a.Profiler.Enabled() && provider.Enabled() {
		if err := provider.EnableSpanProfiles(); err != nil {
			a.Logger.Warn("Span profiles unavailable", zap.Error(err))
		}
	}
	return nil
}

func (a *App) initDatabase(ctx context.Context) error {
	db, err := persistence.Open(ctx, &a.Config.Database, a.Logger)
	if err != nil {
		return err
	}
	a.DB = db
	a.Logger.Info("Database connected successfully")

	if a.Config.Telemetry.DBTraceEnabled {
		if err := telemetry.InstrumentDB(db.DB, telemetry.DBTracingConfig{
			DBName:             a.Config.Database.DBName,
			LogFullSQL:         a.Config.Telemetry.DBLogFullSQL,
			SlowQueryThreshold: a.Config.Telemetry.DBSlowQueryThresh,
		}, a.Logger); err != nil {
			return fmt.Errorf("database tracing: %w", err)
		}
	}
	return nil
}

func (a *App) initSync(ctx context.Context) error {
	cfg := a.Config
	log := a.Logger

	products := persistence.NewGormProductRepository(a.DB.DB)
	categories := persistence.NewGormCategoryRepository(a.DB.DB)
	mappings := persistence.NewGormCategoryMappingRepository(a.DB.DB)
	orders := persistence.NewGormOrderRepository(a.DB.DB)
	cursors := persistence.NewGormSyncCursorRepository(a.DB.DB)
	audits := persistence.NewGormAuditRepository(a.DB.DB)

	metrics, err := telemetry.NewSyncMetrics(telemetry.SyncMetricsConfig{
		Meter:        a.Telemetry.Meter("marketsync"),
		Logger:       log,
		LinkProvider: products,
	})
	if err != nil {
		return fmt.Errorf("sync metrics: %w", err)
	}
	a.Metrics = metrics

	a.Limiter = ratelimit.NewLimiter(cfg.RateLimits(), log)
	a.Limiter.SetObserver(metrics)

	a.Adapters, err = ecommerce.BuildRegistry(cfg.AdapterConfigs(), ecommerce.Deps{
		Limiter: a.Limiter,
		Metrics: metrics,
		Logger:  log,
	})
	if err != nil {
		return fmt.Errorf("marketplace adapters: %w", err)
	}

	a.Caches = cache.NewFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(!cfg.IsProduction()),
	)
	treeCache, err := a.Caches.CategoryTreeCache(ctx, cfg.Sync.CategoryCacheTTL)
	if err != nil {
		return err
	}
	var dedupe shared.IdempotencyStore
	if cfg.Webhook.DedupeEnabled {
		if dedupe, err = a.Caches.IdempotencyStore(ctx, cfg.Webhook.DedupeBackend); err != nil {
			return err
		}
	}

	attributes, err := cfg.AttributeTables()
	if err != nil {
		return err
	}

	audit := integrationapp.NewAuditSink(audits, metrics, log)
	a.Mapping = integrationapp.NewMappingService(integrationapp.MappingServiceDeps{
		Mappings:   mappings,
		Categories: categories,
		Adapters:   a.Adapters,
		TreeCache:  treeCache,
		Matcher:    integration.NewCategoryMatcher(cfg.Sync.MatchThreshold),
		Attributes: attributes,
		Links:      products,
		Audit:      audit,
		Logger:     log,
	})
	reconciliation := integrationapp.NewReconciliationService(products, a.Adapters, a.Mapping, audit, log)
	productSync := integrationapp.NewProductSyncService(integrationapp.ProductSyncServiceDeps{
		Products:   products,
		Categories: a.Mapping,
		Adapters:   a.Adapters,
		Reconciler: reconciliation,
		Audit:      audit,
		BatchSize:  cfg.Sync.BatchSize,
		Logger:     log,
	})
	orderSync := integrationapp.NewOrderSyncService(integrationapp.OrderSyncServiceDeps{
		Orders:   orders,
		Products: products,
		Cursors:  cursors,
		Adapters: a.Adapters,
		Audit:    audit,
		MaxPages: cfg.Sync.OrderMaxPages,
		Overlap:  cfg.Sync.OrderOverlap,
		Logger:   log,
	})

	a.Orchestrator, err = scheduler.NewOrchestrator(scheduler.OrchestratorConfig{
		Marketplaces:         cfg.EnabledMarketplaces(),
		Workers:              cfg.Workers(),
		DefaultWorkers:       cfg.Sync.DefaultWorkers,
		QueueSize:            cfg.Sync.QueueSize,
		EventQueueSize:       cfg.Sync.EventQueueSize,
		MaxAttempts:          cfg.Sync.MaxAttempts,
		JobTimeout:           cfg.Sync.JobTimeout,
		EventTimeout:         cfg.Sync.EventTimeout,
		RetryInitialInterval: cfg.Sync.RetryInitialInterval,
		RetryMaxInterval:     cfg.Sync.RetryMaxInterval,
		HistorySize:          cfg.Sync.HistorySize,
	}, scheduler.OrchestratorDeps{
		Executor:     integrationapp.NewJobExecutor(productSync, orderSync, log),
		EventHandler: integrationapp.NewEventDispatcher(orderSync, reconciliation, log),
		Adapters:     a.Adapters,
		Recorder:     audit,
		Alert:        alertFailedJob(log),
		Metrics:      metrics,
		Logger:       log,
	})
	if err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}

	a.Ingestor = integrationapp.NewWebhookIngestor(a.Adapters, dedupe, a.Orchestrator, audit, shared.IdempotencyConfig{
		Enabled: cfg.Webhook.DedupeEnabled,
		TTL:     cfg.Webhook.DedupeTTL,
	}, log)
	a.Reporting = integrationapp.NewReportingService(integrationapp.ReportingServiceDeps{
		Marketplaces: cfg.EnabledMarketplaces(),
		Audits:       audits,
		Links:        products,
		Orders:       orders,
		Halts:        a.Orchestrator,
		Adapters:     a.Adapters,
		Audit:        audit,
		Logger:       log,
	})
	a.Cron = scheduler.NewCronTrigger(scheduler.CronTriggerConfig{
		Intervals:  cfg.SyncIntervals(),
		JobTypes:   integration.AllJobTypes(),
		RunOnStart: cfg.Sync.RunOnStart,
	}, a.Orchestrator, log)
	return nil
}

func (a *App) initArchiver(ctx context.Context) error {
	if !a.Config.Archive.Enabled {
		return nil
	}
	store, err := storage.NewS3ObjectStore(&a.Config.Storage, storage.WithLogger(a.Logger))
	if err != nil {
		return fmt.Errorf("archive storage: %w", err)
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("archive storage: %w", err)
	}
	a.Archiver = storage.NewAuditArchiver(persistence.NewGormAuditRepository(a.DB.DB), store, storage.ArchiverConfig{
		Interval:  a.Config.Archive.Interval,
		Retention: a.Config.Archive.Retention,
		BatchSize: a.Config.Archive.BatchSize,
		Prefix:    a.Config.Archive.Prefix,
	}, a.Logger)
	return nil
}

// StartWorkers launches the marketplace worker pools only. One-shot commands
// use it to run jobs without the periodic loops.
func (a *App) StartWorkers(ctx context.Context) error {
	if err := a.Orchestrator.Start(ctx); err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}
	return nil
}

// Start launches the worker pools and the periodic loops
func (a *App) Start(ctx context.Context) error {
	if err := a.StartWorkers(ctx); err != nil {
		return err
	}
	if err := a.Cron.Start(ctx); err != nil {
		return fmt.Errorf("cron trigger: %w", err)
	}
	if a.Archiver != nil {
		if err := a.Archiver.Start(ctx); err != nil {
			return fmt.Errorf("audit archiver: %w", err)
		}
	}
	a.Metrics.StartPeriodicCollection(ctx, a.Config.Telemetry.MetricsInterval)
	return nil
}

// Shutdown stops components in reverse dependency order. It is safe to call
// on a partially initialized application.
func (a *App) Shutdown(ctx context.Context) {
	if a.Cron != nil {
		a.Cron.Stop()
	}
	if a.Archiver != nil {
		a.Archiver.Stop()
	}
	if a.Orchestrator != nil && a.Orchestrator.IsRunning() {
		if err := a.Orchestrator.Stop(ctx); err != nil {
			a.Logger.Error("Error stopping orchestrator", zap.Error(err))
		}
	}
	if a.Metrics != nil {
		a.Metrics.Stop()
	}
	if a.Caches != nil {
		if err := a.Caches.Close(); err != nil {
			a.Logger.Error("Error closing redis client", zap.Error(err))
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Error("Error closing database", zap.Error(err))
		}
	}
	if a.Profiler != nil {
		if err := a.Profiler.Stop(); err != nil {
			a.Logger.Error("Error stopping profiler", zap.Error(err))
		}
	}
	if a.Telemetry != nil {
		if err := a.Telemetry.Shutdown(ctx); err != nil {
			a.Logger.Error("Error shutting down telemetry", zap.Error(err))
		}
	}
}

// alertFailedJob reports jobs that exhausted their attempts
func alertFailedJob(log *zap.Logger) scheduler.AlertHook {
	return func(_ context.Context, job *integration.SyncJob) {
		log.Error("Sync job failed permanently",
			zap.String("job_id", job.ID.String()),
			zap.String("marketplace", string(job.Marketplace)),
			zap.String("job_type", string(job.JobType)),
			zap.Int("attempts", job.Attempt),
			zap.String("error", job.LastError),
		)
	}
}
