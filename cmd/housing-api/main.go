package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"calhousing/config"
	qhttp "calhousing/http"
	"calhousing/logging"
	"calhousing/ml"
	"calhousing/monitoring"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (default: ./config.yaml or ../config.yaml)")
	flag.Parse()

	// 1. Load config
	path := *configPath
	if path == "" {
		path = config.FindFile(config.DefaultFile)
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// 2. Load model; the service starts even when the artifact is missing
	// and reports the load error on every prediction.
	collector := monitoring.NewCollector()
	holder := ml.NewHolder(cfg.Model.Type, cfg.Model.Path, logger.Named("model"))
	holder.OnReload(collector.ObserveReload)

	cached, err := ml.NewCachedRegressor(holder, cfg.Model.CacheSize)
	if err != nil {
		logger.Fatal("Failed to create prediction cache", zap.Error(err))
	}
	holder.OnReload(func(err error) {
		if err == nil {
			cached.Purge()
		}
	})
	collector.WatchCache(cached)

	if err := holder.Reload(); err != nil {
		logger.Error("Model unavailable, predictions will fail until it loads", zap.Error(err))
	}
	if cfg.Model.Watch {
		go func() {
			if err := holder.Watch(ctx); err != nil {
				logger.Error("Model watcher stopped", zap.Error(err))
			}
		}()
	}

	// 3. Start HTTP server
	opts := []qhttp.Option{
		qhttp.WithLogger(logger.Named("http")),
		qhttp.WithModelStatus(holder),
	}
	if cfg.HTTP.Metrics {
		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collector,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		opts = append(opts, qhttp.WithMetrics(collector, registry))
	}
	api := qhttp.NewAPI(cached, opts...)

	server := qhttp.NewServer(qhttp.ServerConfig{
		Addr:    cfg.HTTP.Addr(),
		Timeout: cfg.HTTP.Timeout,
	}, api.Handler(), logger.Named("server"))
	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// 4. Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down...")
	stop()

	if err := server.Stop(); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Exiting")
}
