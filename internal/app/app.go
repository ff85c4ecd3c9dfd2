// Package app provides the unified application lifecycle management for
// the Plotforge service.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	apihttp "github.com/plotforge/plotforge/internal/api/http"
	"github.com/plotforge/plotforge/internal/cache"
	"github.com/plotforge/plotforge/internal/catalog"
	"github.com/plotforge/plotforge/internal/config"
	"github.com/plotforge/plotforge/internal/events"
	"github.com/plotforge/plotforge/internal/generate"
	"github.com/plotforge/plotforge/internal/insights"
	"github.com/plotforge/plotforge/internal/observability"
	"github.com/plotforge/plotforge/internal/render"
	"github.com/plotforge/plotforge/internal/retention"
	"github.com/plotforge/plotforge/internal/server"
	"github.com/plotforge/plotforge/internal/storage"
)

// App wires the Plotforge components together and manages their lifecycle.
type App struct {
	cfg *config.Config

	// Shared resources
	storage  storage.ObjectStorage
	catalog  *catalog.SQLiteCatalog
	bus      *events.Bus
	stats    *observability.Stats
	figures  *cache.FigureCache
	shutdown *server.ShutdownManager

	// Service components
	orchestrator   *generate.Orchestrator
	insightService *insights.Service
	retentionD     *retention.Daemon
	httpServer     *http.Server

	// Teardown hooks collected during startup (bus detach, cache close)
	teardown []func()

	// Lifecycle
	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates an App with the given configuration.
func New(cfg *config.Config) (*App, error) {
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}
	return &App{cfg: cfg}, nil
}

// Start initializes shared resources and starts the configured services.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("app is already running")
	}
	a.running = true
	a.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if err := a.initSharedResources(ctx); err != nil {
		a.cleanup()
		return fmt.Errorf("failed to initialize shared resources: %w", err)
	}

	if a.cfg.ShouldRunRetention() {
		if err := a.retentionD.Start(ctx); err != nil {
			a.cleanup()
			return fmt.Errorf("failed to start retention daemon: %w", err)
		}
		log.Printf("Retention daemon started: check_interval=%v, max_idle=%v",
			a.cfg.Retention.CheckInterval, a.cfg.Retention.MaxIdle)
	}

	if a.cfg.ShouldRunAPI() {
		if err := a.startAPIService(); err != nil {
			a.cleanup()
			return fmt.Errorf("failed to start API service: %w", err)
		}
	}

	log.Printf("Plotforge started in %s mode", a.cfg.Mode)
	return nil
}

// initSharedResources builds storage, catalog, event bus, caches, and the
// component graph on top of them.
func (a *App) initSharedResources(ctx context.Context) error {
	var err error

	switch a.cfg.Storage.Type {
	case "local":
		a.storage, err = storage.NewLocalStorage(a.cfg.Storage.Path)
	case "s3":
		s3Cfg := storage.DefaultS3Config()
		if a.cfg.Storage.S3.Region != "" {
			s3Cfg.Region = a.cfg.Storage.S3.Region
		}
		if a.cfg.Storage.S3.Endpoint != "" {
			s3Cfg.Endpoint = a.cfg.Storage.S3.Endpoint
		}
		a.storage, err = storage.NewS3Storage(ctx, a.cfg.Storage.S3.Bucket, s3Cfg)
	default:
		return fmt.Errorf("unsupported storage type: %s", a.cfg.Storage.Type)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	log.Printf("Storage initialized: type=%s", a.cfg.Storage.Type)
	if a.cfg.Storage.Type == "s3" {
		log.Printf("S3 config: bucket=%s, region=%s, endpoint=%s",
			a.cfg.Storage.S3.Bucket, a.cfg.Storage.S3.Region, a.cfg.Storage.S3.Endpoint)
	}

	a.catalog, err = catalog.NewCatalog(a.cfg.CatalogPath())
	if err != nil {
		return fmt.Errorf("failed to initialize catalog: %w", err)
	}
	log.Printf("Catalog initialized: %s", a.cfg.CatalogPath())

	a.bus = events.NewBus(256)

	a.stats = observability.NewStats()
	detachStats := a.stats.AttachBus(a.bus)
	a.teardown = append(a.teardown, detachStats)

	if a.cfg.Cache.MaxBytes > 0 {
		a.figures, err = cache.NewFigureCache(a.cfg.Cache.Dir, a.cfg.Cache.MaxBytes, a.cfg.Cache.TTL)
		if err != nil {
			return fmt.Errorf("failed to initialize figure cache: %w", err)
		}
		a.figures.AttachBus(a.bus)
		a.teardown = append(a.teardown, a.figures.Close)
		log.Printf("Figure cache initialized: dir=%s, max_bytes=%d", a.cfg.Cache.Dir, a.cfg.Cache.MaxBytes)
	}

	renderer := render.NewRenderer(a.storage, render.Options{
		MaxFigureBytes: a.cfg.Render.MaxFigureBytes,
		TopCategories:  a.cfg.Render.MaxCategories,
		HistogramBins:  a.cfg.Render.HistogramBins,
	})
	a.orchestrator = generate.NewOrchestrator(a.catalog, a.storage, renderer, a.bus, generate.Options{
		Workers:       a.cfg.Render.Workers,
		RenderTimeout: a.cfg.Render.Timeout,
	})
	log.Printf("Generation orchestrator initialized: workers=%d, render_timeout=%v",
		a.cfg.Render.Workers, a.cfg.Render.Timeout)

	insightClient := insights.NewClient(insights.ClientOptions{
		APIKey:   a.cfg.Insights.APIKey,
		Model:    a.cfg.Insights.Model,
		BaseURL:  a.cfg.Insights.BaseURL,
		Timeout:  a.cfg.Insights.Timeout,
		RetryMax: a.cfg.Insights.RetryMax,
	})
	a.insightService = insights.NewService(insightClient, a.catalog, a.bus)
	if a.insightService.Available() {
		log.Printf("Insights enabled: model=%s", a.cfg.Insights.Model)
	} else {
		log.Printf("Insights disabled: no API key configured")
	}

	a.retentionD = retention.NewDaemon(retention.Config{
		CheckInterval: a.cfg.Retention.CheckInterval,
		MaxIdle:       a.cfg.Retention.MaxIdle,
		SweepLimit:    a.cfg.Retention.SweepLimit,
		OrphanAge:     a.cfg.Retention.OrphanAge,
	}, a.catalog, a.storage, a.bus)

	a.shutdown = server.NewShutdownManager(server.DefaultShutdownConfig())

	return nil
}

// startAPIService starts the HTTP API server.
func (a *App) startAPIService() error {
	api := apihttp.NewServer(
		a.cfg,
		a.catalog,
		a.storage,
		a.orchestrator,
		a.insightService,
		a.figures,
		a.stats,
		a.retentionD,
		a.bus,
	)

	handler := server.ShutdownMiddleware(a.shutdown)(api.Routes())
	a.httpServer = &http.Server{
		Addr:         a.cfg.HTTP.Addr,
		Handler:      handler,
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
		IdleTimeout:  a.cfg.HTTP.IdleTimeout,
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		log.Printf("API server listening on %s", a.cfg.HTTP.Addr)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("API server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully stops all services and releases resources.
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = false
	a.mu.Unlock()

	log.Printf("Initiating graceful shutdown...")

	if a.cancel != nil {
		a.cancel()
	}

	if a.retentionD != nil {
		if err := a.retentionD.Stop(); err != nil {
			log.Printf("Retention daemon stop error: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("API server shutdown error: %v", err)
		}
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		log.Printf("Shutdown timeout, some goroutines may not have finished")
	}

	a.cleanup()

	log.Printf("Plotforge stopped")
	return nil
}

// cleanup releases shared resources in reverse startup order.
func (a *App) cleanup() {
	for i := len(a.teardown) - 1; i >= 0; i-- {
		a.teardown[i]()
	}
	a.teardown = nil

	if a.catalog != nil {
		if err := a.catalog.Close(); err != nil {
			log.Printf("Catalog close error: %v", err)
		}
	}
}

// Stats exposes the observability counters, mainly for tests.
func (a *App) Stats() *observability.Stats {
	return a.stats
}

// WaitForShutdown blocks until a shutdown signal is received.
func (a *App) WaitForShutdown(ctx context.Context) error {
	return a.shutdown.ListenForSignals(ctx)
}
