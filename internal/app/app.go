package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"muzzlewatch/internal/config"
	"muzzlewatch/internal/detection"
	"muzzlewatch/internal/handler"
	"muzzlewatch/internal/logger"
	"muzzlewatch/internal/repository"
	"muzzlewatch/internal/repository/jsonfile"
	"muzzlewatch/internal/repository/sqlite"
	"muzzlewatch/internal/route"
	"muzzlewatch/internal/service"
	"muzzlewatch/internal/service/ai"
	"muzzlewatch/internal/service/assets"
	"muzzlewatch/internal/service/inference"
	"muzzlewatch/internal/service/report"
	"muzzlewatch/internal/service/storage"
	hubsvc "muzzlewatch/internal/service/websocket"
)

// ShutdownTimeout bounds how long in-flight requests may run after a stop signal.
const ShutdownTimeout = 10 * time.Second

type App struct {
	config   *config.Config
	logger   *logger.Logger
	history  repository.HistoryRepository
	detector detection.Detector
	checker  handler.HealthChecker
	closers  []func() error
	hub      *hubsvc.HubService
	manager  *service.Manager
}

// NewApp builds every service from cfg. The caller must Close the app.
func NewApp(cfg *config.Config) (*App, error) {
	log, err := logger.NewLogger(cfg.LogDirectory)
	if err != nil {
		return nil, err
	}
	a := &App{config: cfg, logger: log}

	history, err := openHistory(cfg, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.history = history

	images, err := storage.NewImageStore(cfg.UploadDirectory, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	if err := assets.EnsurePlaceholder(cfg.PlaceholderPath); err != nil {
		log.Warning("Could not create placeholder image: %v", err)
	}
	resolver := assets.NewResolver(images, cfg.PlaceholderPath)

	switch cfg.Detector {
	case config.DetectorHTTP:
		client := inference.NewClient(cfg.InferenceURL)
		a.detector = client
		a.checker = client
	default:
		onnx := ai.NewDetectorService(cfg, log)
		a.detector = onnx
		a.closers = append(a.closers, onnx.Close)
	}

	renderer := report.NewRenderer(resolver, cfg.ModelName, log)
	generator := report.NewGenerator(cfg.ReportsDirectory, cfg.FontPath, renderer, log)

	a.hub = hubsvc.NewHubService(log)
	a.manager = service.NewManager(a.detector, history, images, resolver, generator, a.hub, cfg, log)
	return a, nil
}

func openHistory(cfg *config.Config, log *logger.Logger) (repository.HistoryRepository, error) {
	if cfg.HistoryBackend == config.BackendSQLite {
		db, err := sqlite.New(cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open history database: %w", err)
		}
		return sqlite.NewHistoryRepository(db, log), nil
	}
	return jsonfile.Open(cfg.HistoryFile, log)
}

func (a *App) Manager() *service.Manager {
	return a.manager
}

func (a *App) Logger() *logger.Logger {
	return a.logger
}

// Run serves HTTP and the live feed hub until ctx is cancelled or either fails.
func (a *App) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.config.Port),
		Handler:           route.SetupRoutes(a.manager, a.hub, a.checker, a.config, a.logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.hub.Run(ctx)
	})

	g.Go(func() error {
		a.logger.Info("Muzzle detection server listening on http://localhost:%d", a.config.Port)
		a.logger.Info("Uploads: %s, history: %s (%s), detector: %s",
			a.config.UploadDirectory, a.historyLocation(), a.config.HistoryBackend, a.config.Detector)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		a.logger.Info("Shutting down server")
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (a *App) historyLocation() string {
	if a.config.HistoryBackend == config.BackendSQLite {
		return a.config.DatabasePath
	}
	return a.config.HistoryFile
}

// Close releases the detector, the history store and the log files.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	if a.history != nil {
		errs = append(errs, a.history.Close())
	}
	if a.logger != nil {
		errs = append(errs, a.logger.Close())
	}
	return errors.Join(errs...)
}
