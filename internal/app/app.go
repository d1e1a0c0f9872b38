package app

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/handlers"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/services/analyzer"
	"github.com/ternarybob/indago/internal/services/docs"
	"github.com/ternarybob/indago/internal/services/events"
	"github.com/ternarybob/indago/internal/services/export"
	"github.com/ternarybob/indago/internal/services/pdf"
	"github.com/ternarybob/indago/internal/services/scheduler"
	"github.com/ternarybob/indago/internal/storage"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	// Event-driven services
	EventService     interfaces.EventService
	LogBridge        *events.LogBridge
	SchedulerService interfaces.SchedulerService

	// Analysis pipeline
	AnalyzerService interfaces.AnalyzerService
	PDFService      interfaces.PDFService
	ExportService   interfaces.ExportService
	DocsService     interfaces.DocsService

	// HTTP handlers
	APIHandler      *handlers.APIHandler
	AnalysisHandler *handlers.AnalysisHandler
	ExportHandler   *handlers.ExportHandler
	StatusHandler   *handlers.StatusHandler
	DocsHandler     *handlers.DocsHandler
	WSHandler       *handlers.WebSocketHandler
	PageHandler     *handlers.PageHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Event bus and WebSocket handler come up before the services so
	// everything initialized later can publish and be heard
	app.EventService = events.NewService(app.Logger)
	app.WSHandler = handlers.NewWebSocketHandler(app.EventService, app.Logger, &app.Config.WebSocket)

	if err := events.SubscribeLoggerToAllEvents(app.EventService, app.Logger); err != nil {
		return nil, fmt.Errorf("failed to subscribe event logger: %w", err)
	}

	// Bridge arbor logs onto the bus so the dashboard can stream them live
	app.LogBridge = events.NewLogBridge(app.EventService, app.Logger, cfg.Logging.MinEventLevel)
	if err := app.LogBridge.Start(); err != nil {
		return nil, fmt.Errorf("failed to start log bridge: %w", err)
	}
	app.Logger.SetChannel("context", app.LogBridge.GetChannel())

	if err := app.initServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	logger.Info().
		Bool("retention_enabled", cfg.Retention.Enabled).
		Bool("in_memory_storage", cfg.Storage.Badger.InMemory).
		Msg("Application initialization complete")

	return app, nil
}

// initDatabase initializes the storage layer (Badger)
func (a *App) initDatabase() error {
	storageManager, err := storage.NewStorageManager(a.Logger, a.Config)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}

	a.StorageManager = storageManager
	a.Logger.Debug().
		Str("storage", "badger").
		Bool("in_memory", a.Config.Storage.Badger.InMemory).
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")

	return nil
}

// initServices initializes all business services in dependency order
func (a *App) initServices() error {
	a.AnalyzerService = analyzer.NewService(a.StorageManager, a.EventService, a.Config, a.Logger)

	a.PDFService = pdf.NewService(a.Logger)
	a.ExportService = export.NewService(a.PDFService, a.Logger)
	a.DocsService = docs.NewService(a.Config, a.Logger)

	a.SchedulerService = scheduler.NewService(a.EventService, a.Logger)
	if a.Config.Retention.Enabled {
		handler := scheduler.NewRetentionJob(a.StorageManager, a.Config, a.Logger)
		description := fmt.Sprintf("Prune analysis runs older than %s, keeping at most %d",
			a.Config.Retention.MaxAge, a.Config.Retention.MaxRuns)
		if err := a.SchedulerService.RegisterJob(scheduler.RetentionJobName, a.Config.Retention.Schedule, description, handler); err != nil {
			return fmt.Errorf("failed to register retention job: %w", err)
		}
	}
	if err := a.SchedulerService.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	a.Logger.Debug().Msg("Services initialized")
	return nil
}

// initHandlers initializes the HTTP handlers
func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler()
	// WSHandler was created in New() so services could stream through it

	a.AnalysisHandler = handlers.NewAnalysisHandler(a.AnalyzerService, a.Config, a.Logger)
	a.ExportHandler = handlers.NewExportHandler(a.AnalyzerService, a.ExportService, a.Config, a.Logger)
	a.StatusHandler = handlers.NewStatusHandler(a.StorageManager, a.Config, a.Logger)
	a.DocsHandler = handlers.NewDocsHandler(a.DocsService, a.Logger)
	a.PageHandler = handlers.NewPageHandler(a.Logger, a.Config.Logging.ClientDebug)

	a.Logger.Debug().Msg("Handlers initialized")
}

// Close shuts down application components in reverse initialization order
func (a *App) Close() error {
	if a.SchedulerService != nil {
		if err := a.SchedulerService.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop scheduler service")
		}
	}

	if a.LogBridge != nil {
		if err := a.LogBridge.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop log bridge")
		}
	}

	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close storage manager")
			return err
		}
	}

	a.Logger.Info().Msg("Application closed")
	return nil
}
