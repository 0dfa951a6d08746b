package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dbehnke/dis-nexus/pkg/config"
	"github.com/dbehnke/dis-nexus/pkg/database"
	"github.com/dbehnke/dis-nexus/pkg/logger"
	"github.com/dbehnke/dis-nexus/pkg/metrics"
	"github.com/dbehnke/dis-nexus/pkg/monitor"
	"github.com/dbehnke/dis-nexus/pkg/network"
	"github.com/dbehnke/dis-nexus/pkg/web"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

const (
	maintenanceInterval = time.Minute
	lineTimeout         = 30 * time.Second
)

func main() {
	// Parse command line flags
	configFile := flag.String("config", "config.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	validate := flag.Bool("validate", false, "Validate configuration and exit")
	flag.Parse()

	// Show version
	build := web.BuildInfo{Version: version, Commit: commit, BuildTime: buildTime}
	if *showVersion {
		fmt.Printf("DIS-Nexus %s\n", build)
		os.Exit(0)
	}

	// Bootstrap logger until the configured one is available
	log := logger.New(logger.Config{
		Level:  "info",
		Format: "text",
	})

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Error("Failed to load configuration", logger.Error(err))
		os.Exit(1)
	}

	// Validate only mode
	if *validate {
		log.Info("Configuration is valid")
		os.Exit(0)
	}

	var logOutput io.Writer = os.Stdout
	if cfg.Logging.File != "" {
		f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			log.Error("Failed to open log file", logger.String("file", cfg.Logging.File), logger.Error(err))
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()
		logOutput = io.MultiWriter(os.Stdout, f)
	}
	log = logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: logOutput,
	})

	log.Info("Starting DIS-Nexus",
		logger.String("version", version),
		logger.String("build_time", buildTime),
		logger.String("config_file", *configFile))
	web.SetBuildInfo(build)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Initialize wait group for goroutines
	var wg sync.WaitGroup

	// Initialize metrics collector
	metricsCollector := metrics.NewCollector()

	// Start Prometheus metrics server if enabled
	if cfg.Metrics.Enabled && cfg.Metrics.Prometheus.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			metricsServer := metrics.NewPrometheusServer(
				metrics.PrometheusConfig{
					Enabled: cfg.Metrics.Prometheus.Enabled,
					Port:    cfg.Metrics.Prometheus.Port,
					Path:    cfg.Metrics.Prometheus.Path,
				},
				metricsCollector,
				log,
			)
			if err := metricsServer.Start(ctx); err != nil && err != context.Canceled {
				log.Error("Prometheus metrics server error", logger.Error(err))
			}
		}()
	}

	// Open the event store if enabled
	var (
		eventWriter monitor.EventWriter
		eventStore  web.EventStore
	)
	if cfg.Database.Enabled {
		db, err := database.NewDB(database.Config{Path: cfg.Database.Path, BusyTimeout: cfg.Database.BusyTimeout}, log.WithComponent("database"))
		if err != nil {
			log.Error("Failed to open database", logger.Error(err))
			os.Exit(1)
		}
		defer func() {
			if err := db.Close(); err != nil {
				log.Warn("Failed to close database", logger.Error(err))
			}
		}()
		repo := database.NewEventRepository(db.GetDB())
		eventWriter = repo
		eventStore = repo
	}

	// Start web server if enabled
	var hub monitor.Broadcaster
	if cfg.Web.Enabled {
		webServer := web.NewServer(cfg.Web, web.NewAPI(log.WithComponent("web.api"), eventStore, metricsCollector), log.WithComponent("web"))
		hub = webServer.GetHub()
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := webServer.Start(ctx); err != nil && err != context.Canceled {
				log.Error("Web server error", logger.Error(err))
			}
		}()
	}

	// Wire the decode pipeline
	recorder := monitor.NewRecorder(eventWriter, hub, metricsCollector, log.WithComponent("monitor"))
	retention := time.Duration(cfg.Database.RetentionDays) * 24 * time.Hour
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := recorder.RunMaintenance(ctx, maintenanceInterval, retention, lineTimeout); err != nil && err != context.Canceled {
			log.Error("Maintenance loop error", logger.Error(err))
		}
	}()

	if cfg.Listener.Enabled {
		listener := network.NewListener(cfg.Listener, log).WithCollector(metricsCollector)
		listener.SetHandlers(recorder.HandleIntercomControl, recorder.HandleDecodeError)
		listener.SetSignalHandler(recorder.HandleIntercomSignal)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := listener.Start(ctx); err != nil && err != context.Canceled {
				log.Error("Listener error", logger.Error(err))
				cancel()
			}
		}()
	} else {
		log.Warn("Listener disabled; no PDUs will be received")
	}

	log.Info("DIS-Nexus initialized",
		logger.String("server_name", cfg.Server.Name))

	// Wait for shutdown signal or a fatal component error
	select {
	case sig := <-sigChan:
		log.Info("Received shutdown signal",
			logger.String("signal", sig.String()))
	case <-ctx.Done():
	}

	// Cancel context to trigger graceful shutdown
	cancel()

	// Wait for all components to stop
	wg.Wait()

	log.Info("DIS-Nexus stopped")
}
