package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"detectserver/internal/config"
	"detectserver/internal/logger"
	"detectserver/internal/metrics"
	"detectserver/internal/repository/sqlite"
	"detectserver/internal/route"
	"detectserver/internal/service"
	"detectserver/internal/service/ai"
	"detectserver/internal/service/ai/remote"
	"detectserver/internal/service/storage"
	"detectserver/internal/service/websocket"
	"detectserver/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config        *config.Config
	logger        *logger.Logger
	db            *sqlite.DB
	detector      service.Detector
	detectorClose io.Closer
	artifactStore *storage.ArtifactStore
	hubService    *websocket.HubService
	metrics       *metrics.Metrics
	manager       *service.Manager
	metadata      *service.MetadataProvider
}

// NewApp loads configuration and builds every service. The journal is
// opened only when DB_PATH is set.
func NewApp() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(cfg)
	if err != nil {
		return nil, err
	}

	detector, closer, err := NewDetector(cfg, log)
	if err != nil {
		return nil, err
	}

	a := &App{
		config:        cfg,
		logger:        log,
		detector:      detector,
		detectorClose: closer,
		artifactStore: storage.NewArtifactStore(cfg, log),
		hubService:    websocket.NewHubService(log),
		metrics:       metrics.New(),
		metadata:      service.NewMetadataProvider(cfg.Metadata),
	}

	opts := []service.Option{
		service.WithViewers(a.hubService),
		service.WithRecorder(a.metrics),
		service.WithMaxPixels(cfg.MaxImagePixels),
	}
	if cfg.DatabasePath != "" {
		db, err := OpenJournal(cfg.DatabasePath)
		if err != nil {
			closer.Close()
			return nil, err
		}
		a.db = db
		opts = append(opts, service.WithJournal(sqlite.NewPredictionRepository(db)))
	}

	a.manager = service.NewManager(detector, a.artifactStore, log, opts...)
	return a, nil
}

// NewDetector builds the backend named by cfg.DetectorBackend.
func NewDetector(cfg *config.Config, log *logger.Logger) (service.Detector, io.Closer, error) {
	switch cfg.DetectorBackend {
	case config.BackendOpenCV:
		d := ai.NewOpenCVDetector(cfg, log)
		return d, d, nil
	case config.BackendONNX:
		d, err := ai.NewONNXDetector(cfg, log)
		if err != nil {
			return nil, nil, err
		}
		return d, d, nil
	case config.BackendRemote:
		client := &http.Client{
			Timeout:   time.Minute,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
		d := remote.NewClient(cfg.InferenceURL, client)
		return d, d, nil
	default:
		return nil, nil, fmt.Errorf("unknown detector backend %q", cfg.DetectorBackend)
	}
}

// OpenJournal opens the sqlite journal, creating its directory.
func OpenJournal(path string) (*sqlite.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := sqlite.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open prediction journal: %w", err)
	}
	return db, nil
}

// Handler returns the fully wired HTTP handler.
func (a *App) Handler() http.Handler {
	return route.SetupRoutes(route.Dependencies{
		Config:   a.config,
		Logger:   a.logger,
		Manager:  a.manager,
		Metadata: a.metadata,
		Metrics:  a.metrics,
		Hub:      a.hubService,
	})
}

// Run serves HTTP until SIGINT/SIGTERM, then shuts down gracefully.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer a.Close()

	shutdownTracing, err := telemetry.Init(ctx, a.config.ServiceName, a.config.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			a.logger.Warning("Tracing shutdown failed: %v", err)
		}
	}()

	// Start background services
	go a.hubService.Run(ctx)
	if a.config.ArtifactRetention > 0 {
		go a.artifactStore.Run(ctx, a.config.ArtifactPruneInterval, a.config.ArtifactRetention)
	}
	if client, ok := a.detector.(*remote.Client); ok {
		if err := client.CheckHealth(ctx); err != nil {
			a.logger.Warning("Inference service not reachable yet: %v", err)
		}
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.config.Port),
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.logger.Info("🚀 Object detection server")
	a.logger.Info("📍 URL: http://localhost:%d", a.config.Port)
	a.logger.Info("🤖 Backend: %s", a.config.DetectorBackend)
	a.logger.Info("📁 Artifacts: %s", a.artifactStore.Dir())
	if a.db != nil {
		a.logger.Info("🗃️  Journal: %s", a.config.DatabasePath)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.logger.Info("🛑 Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// Close releases the detector and the journal.
func (a *App) Close() {
	if a.detectorClose != nil {
		if err := a.detectorClose.Close(); err != nil {
			a.logger.Error("Error closing detector: %v", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("Error closing journal: %v", err)
		}
	}
}
