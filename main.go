package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"asset-preview/internal/capture"
	"asset-preview/internal/database"
	"asset-preview/internal/engine"
	"asset-preview/internal/filesystem"
	"asset-preview/internal/handlers"
	"asset-preview/internal/hostexec"
	"asset-preview/internal/indexer"
	"asset-preview/internal/logging"
	"asset-preview/internal/memory"
	"asset-preview/internal/metrics"
	"asset-preview/internal/middleware"
	"asset-preview/internal/namespace"
	"asset-preview/internal/scene/memscene"
	"asset-preview/internal/scheduler"
	"asset-preview/internal/startup"
	"asset-preview/internal/watcher"

	"github.com/gorilla/mux"
)

func main() {
	startTime := time.Now()

	memory.ConfigureFromEnv()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	filesystem.SetObserver(metrics.NewFilesystemObserver())
	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
		"library":  config.LibraryDir,
		"cache":    config.CacheDir,
		"database": config.DatabaseDir,
	}))
	metrics.InitializeMetrics()
	metrics.AppInfo.WithLabelValues(startup.Version, startup.Commit, startup.GoVersion).Set(1)

	// Initialize database
	dbStart := time.Now()
	ctx := context.Background()
	db, err := database.New(ctx, config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	defer db.Close()
	startup.LogDatabaseInit(time.Since(dbStart))

	// Initialize preview engine
	startup.LogEngineInit(config)
	if err := capture.InitVips(); err != nil {
		logging.Warn("libvips unavailable, downscaling with imaging: %v", err)
	}
	defer capture.ShutdownVips()

	exec, err := hostexec.New(config.HostExecutor)
	if err != nil {
		startup.LogFatal("Failed to create host executor: %v", err)
	}

	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()

	schedCfg := scheduler.DefaultConfig()
	schedCfg.Backpressure = monitor
	mainLoop := scheduler.NewMainLoop(schedCfg.QueueSize)

	eng, err := engine.New(memscene.New(), exec, engine.Config{
		CacheDir:   config.CacheDir,
		MasterSize: config.MasterSize,
		Scheduler:  schedCfg,
		Dispatcher: mainLoop,
		Metadata:   db,
		Reports:    db,
		Allocator:  namespace.NewAllocator(),
	})
	if err != nil {
		startup.LogFatal("Failed to initialize preview engine: %v", err)
	}
	startup.LogEngineStarted(schedCfg.Workers)

	// Initialize indexer
	startup.LogIndexerInit(config)
	idx := indexer.New(eng, db, config.LibraryDir, config.IndexInterval)
	idx.SetPollInterval(config.PollInterval)
	idx.SetOnIndexComplete(db.UpdateDBMetrics)

	// Start indexer in background (non-blocking)
	go func() {
		if err := idx.Start(); err != nil {
			logging.Error("Failed to start indexer: %v", err)
		}
	}()
	startup.LogIndexerStarted()

	watchCtx, stopWatching := context.WithCancel(ctx)
	var w *watcher.Watcher
	if config.WatchLibrary {
		w, err = watcher.New(eng, config.LibraryDir)
		if err != nil {
			logging.Warn("Library watching disabled: %v", err)
		} else {
			go w.Run(watchCtx)
		}
	}

	collector := metrics.NewCollector(statsProvider{db: db, eng: eng}, 30*time.Second)
	collector.Start()

	// Initialize handlers
	h := handlers.New(eng, idx, db, config)

	// Setup router
	router := setupRouter(h, config.MetricsEnabled)

	// Log routes dynamically
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	// Apply logging middleware
	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.Logger(loggingConfig)(router)

	// Create server
	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // first captures of heavy scenes are slow
		IdleTimeout:  60 * time.Second,
	}

	// Start graceful shutdown handler
	go handleShutdown(srv, func() {
		startup.LogShutdownStep("Stopping library watcher")
		stopWatching()
		if w != nil {
			if err := w.Close(); err != nil {
				logging.Warn("Watcher close error: %v", err)
			}
		}
		startup.LogShutdownStepComplete("Library watcher stopped")

		startup.LogShutdownStep("Stopping indexer")
		idx.Stop()
		startup.LogShutdownStepComplete("Indexer stopped")

		startup.LogShutdownStep("Draining preview requests")
		monitor.Stop()
		eng.Stop()
		mainLoop.Close()
		if err := exec.Close(); err != nil {
			logging.Warn("Host executor close error: %v", err)
		}
		startup.LogShutdownStepComplete("Preview engine stopped")

		collector.Stop()
	})

	// Start server
	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
}

func setupRouter(h *handlers.Handlers, metricsEnabled bool) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))

	// Health check and version routes
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")
	if metricsEnabled {
		r.Handle("/metrics", h.MetricsHandler()).Methods("GET")
	}

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/preview/{path:.*}", h.GetPreview).Methods("GET")
	api.HandleFunc("/metadata/{path:.*}", h.GetMetadata).Methods("GET")
	api.HandleFunc("/cleanup/{path:.*}", h.GetCleanupReport).Methods("GET")
	api.HandleFunc("/reindex", h.TriggerReindex).Methods("POST")

	// Library notifications
	api.HandleFunc("/library/added", h.AssetAdded).Methods("POST")
	api.HandleFunc("/library/workspace", h.AssetBroughtIntoWorkspace).Methods("POST")
	api.HandleFunc("/library/{path:.*}", h.AssetRemoved).Methods("DELETE")

	return r
}

// statsProvider feeds the metrics collector from the database and cache.
type statsProvider struct {
	db  *database.Database
	eng *engine.Engine
}

func (p statsProvider) GetStats() metrics.Stats {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stats := metrics.Stats{EphemeralEntries: p.eng.Cache().Len()}
	counts, err := p.db.Counts(ctx)
	if err != nil {
		logging.Warn("Failed to collect record counts: %v", err)
		return stats
	}
	stats.BasicRecords = counts.Basic
	stats.FullRecords = counts.Full
	stats.CleanupReports = counts.Reports
	return stats
}

func handleShutdown(srv *http.Server, stop func()) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	stop()

	startup.LogShutdownComplete()
}
