package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/handlers"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/services/browser"
	"github.com/ternarybob/colligo/internal/services/compliance"
	"github.com/ternarybob/colligo/internal/services/dedup"
	"github.com/ternarybob/colligo/internal/services/embeddings"
	"github.com/ternarybob/colligo/internal/services/events"
	"github.com/ternarybob/colligo/internal/services/fetcher"
	"github.com/ternarybob/colligo/internal/services/normalizer"
	"github.com/ternarybob/colligo/internal/services/pipeline"
	"github.com/ternarybob/colligo/internal/services/scheduler"
	"github.com/ternarybob/colligo/internal/sources"
	"github.com/ternarybob/colligo/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	StorageManager interfaces.StorageManager

	// Services
	EventService      interfaces.EventService
	ComplianceService interfaces.ComplianceService
	EmbeddingService  interfaces.EmbeddingService
	SchedulerService  interfaces.SchedulerService
	Fetcher           *fetcher.Fetcher
	BrowserService    *browser.Service
	Normalizer        *normalizer.Normalizer
	DedupService      *dedup.Service
	Maintenance       *pipeline.Maintenance
	Orchestrator      *pipeline.Orchestrator
	Registry          *sources.Registry

	// HTTP handlers
	StatusHandler     *handlers.StatusHandler
	JobsHandler       *handlers.JobsHandler
	ComplianceHandler *handlers.ComplianceHandler
	SchedulerHandler  *handlers.SchedulerHandler
	WSHandler         *handlers.WebSocketHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initStorage(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	if err := app.initServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	app.initHandlers()

	if cfg.Scheduler.Enabled {
		if err := app.SchedulerService.Start(); err != nil {
			return nil, fmt.Errorf("failed to start scheduler: %w", err)
		}
	} else {
		logger.Info().Msg("Scheduler disabled by configuration")
	}

	logger.Info().
		Int("adapters", len(app.Registry.All())).
		Bool("scheduler", cfg.Scheduler.Enabled).
		Bool("browser", app.BrowserService != nil && app.BrowserService.Available()).
		Msg("Application initialization complete")

	return app, nil
}

// initStorage opens the Badger store
func (a *App) initStorage() error {
	manager, err := badger.NewManager(a.Logger, &a.Config.Storage.Badger)
	if err != nil {
		return err
	}
	a.StorageManager = manager

	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")
	return nil
}

// initServices builds all services in dependency order.
func (a *App) initServices() error {
	ctx := context.Background()

	a.EventService = events.NewService(a.Logger)

	a.ComplianceService = compliance.NewService(
		a.StorageManager.ComplianceStorage(),
		a.EventService,
		a.Config.Compliance.BlockThreshold,
		a.Logger,
	)

	a.Fetcher = fetcher.New(&a.Config.HTTP, a.Logger)

	// Browser pool is optional; scraping falls back to plain HTTP sites
	if a.Config.Browser.Enabled {
		a.BrowserService = browser.NewService(&a.Config.Browser, &a.Config.HTTP, a.Logger)
		if err := a.BrowserService.Start(); err != nil {
			a.Logger.Warn().Err(err).Msg("Browser pool unavailable, rendered sources disabled")
			a.BrowserService = nil
		}
	}

	embedder, err := embeddings.NewService(ctx, &a.Config.Embeddings, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize embedding service: %w", err)
	}
	a.EmbeddingService = embedder

	a.Normalizer = normalizer.New(a.Logger)
	a.DedupService = dedup.NewService(a.StorageManager.JobStorage(), a.Logger)

	a.Maintenance = pipeline.NewMaintenance(
		a.StorageManager,
		a.DedupService,
		a.EmbeddingService,
		a.Fetcher,
		a.EventService,
		a.Config,
		a.Logger,
	)

	a.Registry = sources.New(sources.Deps{
		Config:     a.Config,
		Fetcher:    a.Fetcher,
		Browser:    a.BrowserService,
		Compliance: a.ComplianceService,
		Logger:     a.Logger,
	})
	if err := a.Registry.SeedCompliance(ctx); err != nil {
		return err
	}
	a.Registry.LogStatus()

	a.Orchestrator = pipeline.NewOrchestrator(
		a.Registry.All(),
		a.StorageManager,
		a.Normalizer,
		a.DedupService,
		a.Maintenance,
		a.EventService,
		&a.Config.Ingest,
		a.Logger,
	)

	a.SchedulerService = scheduler.NewService(&a.Config.Scheduler, a.Logger)
	if err := scheduler.RegisterIngestionJobs(
		a.SchedulerService,
		a.Orchestrator,
		a.Maintenance,
		pipeline.NewLogSearchRunner(a.Logger),
		&a.Config.Scheduler,
	); err != nil {
		return fmt.Errorf("failed to register scheduled jobs: %w", err)
	}

	return nil
}

// initHandlers builds the ops surface handlers
func (a *App) initHandlers() {
	a.WSHandler = handlers.NewWebSocketHandler(a.EventService, a.Logger)
	a.StatusHandler = handlers.NewStatusHandler(
		a.Registry,
		a.StorageManager.JobStorage(),
		a.Orchestrator,
		a.BrowserService,
		a.Logger,
	)
	a.JobsHandler = handlers.NewJobsHandler(a.StorageManager.JobStorage(), a.Logger)
	a.ComplianceHandler = handlers.NewComplianceHandler(a.ComplianceService, a.Logger)
	a.SchedulerHandler = handlers.NewSchedulerHandler(a.SchedulerService, a.Logger)
}

// Close closes all application resources
func (a *App) Close() error {
	if a.SchedulerService != nil {
		a.SchedulerService.Stop()
	}

	if a.WSHandler != nil {
		a.WSHandler.Close()
	}

	if a.BrowserService != nil {
		a.BrowserService.Stop()
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
