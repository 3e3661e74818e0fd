package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	promadapter "github.com/samijaber1/aegis-gate/internal/adapter/prometheus"
	"github.com/samijaber1/aegis-gate/internal/adapter/synthetic"
	"github.com/samijaber1/aegis-gate/internal/api"
	"github.com/samijaber1/aegis-gate/internal/config"
	"github.com/samijaber1/aegis-gate/internal/gate"
	"github.com/samijaber1/aegis-gate/internal/metrics"
	"github.com/samijaber1/aegis-gate/internal/notify"
	"github.com/samijaber1/aegis-gate/internal/scheduler"
	"github.com/samijaber1/aegis-gate/internal/sli"
	"github.com/samijaber1/aegis-gate/internal/storage/sqlite"
)

func main() {
	configPath := flag.String("config", "", "Path to config YAML (default: ./config.yaml or ./configs/config.yaml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := config.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting aegis-gate server",
		zap.String("addr", cfg.ListenAddr()),
		zap.String("slo_dir", cfg.SLO.Directory),
		zap.String("adapter", cfg.Adapter.Type),
	)

	registry := prometheus.NewRegistry()
	collectors := metrics.New(registry)

	// SLI data source
	var source sli.Source
	var promSource *promadapter.Adapter
	switch cfg.Adapter.Type {
	case "prometheus":
		promSource = promadapter.NewAdapter(promadapter.Config{
			URL:            cfg.Adapter.PrometheusURL,
			Timeout:        cfg.Adapter.PrometheusTimeout,
			MaxConcurrency: int64(cfg.Adapter.MaxConcurrency),
			RetryAttempts:  cfg.Adapter.RetryAttempts,
		})
		source = promSource
		logger.Info("using Prometheus adapter", zap.String("url", cfg.Adapter.PrometheusURL))

	case "synthetic":
		syn := synthetic.NewAdapter()
		if cfg.Adapter.SyntheticFixtureDir != "" {
			if err := loadFixtures(syn, cfg.Adapter.SyntheticFixtureDir); err != nil {
				logger.Fatal("failed to load synthetic fixtures", zap.Error(err))
			}
			logger.Info("using synthetic adapter", zap.String("fixtures", cfg.Adapter.SyntheticFixtureDir))
		} else {
			logger.Info("using synthetic adapter (no fixtures directory specified)")
		}
		source = syn
	}

	if cfg.Guard.Enabled {
		source = sli.NewGuard(source, sli.GuardConfig{
			MaxRequestsPerSecond: cfg.Guard.MaxRequestsPerSecond,
			Burst:                cfg.Guard.Burst,
			ConsecutiveFailures:  cfg.Guard.ConsecutiveFailures,
			OpenTimeout:          cfg.Guard.OpenTimeout,
		})
	}

	notifier := notify.NewLogNotifier(logger)

	sched := scheduler.New(source, notifier, collectors, logger, scheduler.Config{
		SLODirectory: cfg.SLO.Directory,
		SchemaPath:   cfg.SLO.SchemaPath,
		TickTimeout:  cfg.Evaluation.TickTimeout,
	})

	if cfg.Storage.Enabled {
		store, err := sqlite.NewStore(cfg.Storage.Path)
		if err != nil {
			logger.Fatal("failed to open audit storage", zap.Error(err))
		}
		defer store.Close()
		sched.SetAuditStorage(store)
		logger.Info("audit storage enabled", zap.String("path", cfg.Storage.Path))
	}

	if err := sched.LoadSLOs(); err != nil {
		logger.Fatal("failed to load SLOs", zap.Error(err))
	}

	if promSource != nil {
		promSource.RegisterSLOs(sched.GetSLOs())
	}

	if err := sched.Start(); err != nil {
		logger.Fatal("failed to start scheduler", zap.Error(err))
	}

	apiServer := api.NewServer(sched, gate.NewEngine(), collectors, registry, logger, cfg.ListenAddr())

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- apiServer.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Fatal("server error", zap.Error(err))

	case sig := <-shutdown:
		logger.Info("received signal", zap.Stringer("signal", sig))

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := apiServer.Shutdown(ctx); err != nil {
			logger.Warn("error shutting down server", zap.Error(err))
		}

		sched.Stop()
		logger.Info("shutdown complete")
	}
}

// loadFixtures loads every *.json file in dir as a fixture for the service
// named after the file.
func loadFixtures(adapter *synthetic.Adapter, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read fixtures directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		service := strings.TrimSuffix(entry.Name(), ".json")
		if err := adapter.LoadFixture(service, filepath.Join(dir, entry.Name())); err != nil {
			return fmt.Errorf("failed to load fixture %s: %w", entry.Name(), err)
		}
	}

	return nil
}
