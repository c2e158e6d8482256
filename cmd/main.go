package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/velatorre/crossline/internal/adapters/http/api"
	"github.com/velatorre/crossline/internal/adapters/providers/clips"
	"github.com/velatorre/crossline/internal/adapters/providers/streams"
	"github.com/velatorre/crossline/internal/adapters/providers/timing"
	"github.com/velatorre/crossline/internal/adapters/repository"
	app "github.com/velatorre/crossline/internal/app"
	"github.com/velatorre/crossline/internal/config"
	"github.com/velatorre/crossline/pkg/logger"
	"github.com/velatorre/crossline/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 10 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	systemMetricsInterval  = 10 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics.
	// We collect our own custom system metrics instead.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	// Seed the catalog store, optionally from a YAML file.
	store := repository.NewMemStore()
	if cfg.CatalogPath != "" {
		if err := repository.LoadCatalog(ctx, store, cfg.CatalogPath); err != nil {
			os.Stderr.WriteString("failed to load catalog: " + err.Error() + "\n")
			return
		}
		log.Info(ctx, "catalog loaded", logger.String("path", cfg.CatalogPath))
	}

	// Create and start the service with configuration options
	svc := app.New(
		app.WithLogger(log),
		app.WithStore(store),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithTaskQueueSize(cfg.TaskQueueSize),
		app.WithFreshnessWindow(time.Duration(cfg.DedupeFreshnessSeconds)*time.Second),
		app.WithRetention(time.Duration(cfg.DedupeRetentionMinutes)*time.Minute),
		app.WithTimingClient(timing.NewHTTPClient(cfg.TimingBaseURL, timing.WithAPIKey(cfg.TimingAPIKey))),
		app.WithStreamsClient(streams.NewHTTPClient(cfg.StreamsBaseURL)),
		app.WithClipsClient(clips.NewHTTPClient(cfg.ClipsBaseURL)),
	)
	if err := svc.Start(ctx); err != nil {
		os.Stderr.WriteString("failed to start service: " + err.Error() + "\n")
		return
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	// Register the API routes with the service dependency.
	apiServer := api.NewServer(svc, svc, api.WithSharedKey(cfg.SharedKey))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           apiServer.Router(),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
			return
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// GetStats refreshes the queue/worker/dedupe gauges.
			_ = svc.GetStats()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}
