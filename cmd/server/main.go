package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/chat-upload-api/backend/internal/analyzer"
	"github.com/chat-upload-api/backend/internal/api"
	"github.com/chat-upload-api/backend/internal/config"
	"github.com/chat-upload-api/backend/internal/events"
	"github.com/chat-upload-api/backend/internal/logging"
	"github.com/chat-upload-api/backend/internal/metrics"
	"github.com/chat-upload-api/backend/internal/parser"
	"github.com/chat-upload-api/backend/internal/processing"
	"github.com/chat-upload-api/backend/internal/storage"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", defaultConfigPath(), "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Printf("Failed to create directories: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New("server", cfg.Log.Level)

	if err := run(cfg, *configPath, logger); err != nil {
		logger.Errorf("[Server] %v", err)
		os.Exit(1)
	}
}

func defaultConfigPath() string {
	exePath, err := os.Executable()
	if err != nil {
		return "chat-upload-api.yaml"
	}
	return filepath.Join(filepath.Dir(exePath), "chat-upload-api.yaml")
}

func run(cfg *config.AppConfig, configPath string, logger *log.Logger) error {
	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()

	store, err := storage.Open(startCtx, cfg.Storage, logging.New("storage", cfg.Log.Level))
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	defer store.Close()

	publisher, err := events.New(cfg.Events, logging.New("events", cfg.Log.Level))
	if err != nil {
		return fmt.Errorf("initializing events: %w", err)
	}
	defer publisher.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(cfg.Metrics.Namespace, registry)
	}

	parsers := parser.NewRegistry()
	gate := parser.NewGate(parser.Rules{
		MaxFileSize:  cfg.Uploads.MaxFileSize,
		AllowedTypes: cfg.Uploads.AllowedFileTypes,
	}, parsers)

	manager := processing.NewManager(processing.Dependencies{
		Store:     store,
		Parsers:   parsers,
		Analyzers: analyzer.NewRegistry(analyzer.NewSampler(nil)),
		Publisher: publisher,
		Metrics:   m,
		Logger:    logging.New("processing", cfg.Log.Level),
	}, processing.Options{
		MaxConcurrentJobs: cfg.Processing.MaxConcurrentJobs,
		ProgressInterval:  cfg.Processing.ProgressInterval,
		ProgressSteps:     cfg.Processing.ProgressSteps,
	})

	e := echo.New()
	e.HideBanner = true
	e.Logger = logger
	api.SetupMiddleware(e, cfg.Server, logging.New("api", cfg.Log.Level), false)

	handlers := api.NewHandlers(&api.Dependencies{
		Store:         store,
		Gate:          gate,
		Processor:     manager,
		Publisher:     publisher,
		Metrics:       m,
		WatchInterval: cfg.Processing.WatchInterval,
		Version:       Version,
		Logger:        logging.New("api", cfg.Log.Level),
	})
	api.RegisterRoutes(e, handlers)
	if cfg.Metrics.Enabled {
		api.RegisterMetricsRoute(e, cfg.Metrics.Path, registry)
	}

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           Chat Upload API Server                          ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("║  Storage:    %-45s║\n", store.Backend())
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  API:       %-46s║\n", api.APIPrefix)
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")

	serverErr := make(chan error, 1)
	go func() {
		if err := e.StartServer(s); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server stopped: %w", err)
		}
	case sig := <-quit:
		logger.Infof("[Server] received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Warnf("[Server] http shutdown: %v", err)
	}
	if err := manager.Shutdown(ctx); err != nil {
		logger.Warnf("[Server] processing shutdown: %v", err)
	}
	logger.Info("[Server] stopped")
	return nil
}
