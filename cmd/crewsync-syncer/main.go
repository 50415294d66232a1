package main

import (
	"context"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"github.com/crewsync/crewsync/pkg/cache"
	"github.com/crewsync/crewsync/pkg/config"
	"github.com/crewsync/crewsync/pkg/observability"
	"github.com/crewsync/crewsync/pkg/store/mongostore"
	evsync "github.com/crewsync/crewsync/pkg/sync"
)

var runOnce = flag.Bool("run-once", false, "Drain one batch and exit")

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout).
		WithField("component", "syncer")

	registry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	var syncMetrics *evsync.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
		syncMetrics = evsync.NewMetrics(registry)
	}

	ctx := context.Background()
	store, err := mongostore.Connect(ctx, cfg.Mongo, logger, metrics)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to mongodb")
		os.Exit(1)
	}
	defer store.Close(context.Background())

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	mappingCache := cache.New(cfg.Cache, redisClient, logger, metrics)

	applier := &evsync.StoreApplier{
		Store:       store,
		Invalidator: mappingCache.Invalidate,
	}
	worker := evsync.NewWorker(store, applier, cfg.Sync.Worker, logger, syncMetrics)

	if *runOnce {
		n, err := worker.RunOnce(ctx)
		if err != nil {
			logger.WithError(err).Error("Batch failed")
			os.Exit(1)
		}
		logger.WithField("processed", n).Info("Batch complete")
		return
	}

	// Health and metrics endpoint.
	healthChecker := observability.NewHealthChecker(store.Client(), redisClient)
	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, healthChecker)
	healthMux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	healthServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: healthMux,
	}
	go func() {
		logger.Infof("Health endpoints listening on %s", healthServer.Addr)
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Health server failed")
		}
	}()

	c := cron.New()
	_, err = c.AddFunc(cfg.Sync.Schedule, func() {
		defer observability.RecoverPanic(logger, "sync batch")
		if _, err := worker.RunOnce(context.Background()); err != nil {
			logger.WithError(err).Error("Batch failed")
		}
	})
	if err != nil {
		logger.WithError(err).Errorf("Invalid sync schedule %q", cfg.Sync.Schedule)
		os.Exit(1)
	}

	c.Start()
	logger.Infof("Syncer started with schedule %q", cfg.Sync.Schedule)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Infof("Received signal %s, waiting for in-flight batch", sig)

	// Stop pulling new batches; the returned context completes when running
	// jobs have finished.
	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(cfg.Server.ShutdownTimeout):
		logger.Warn("Shutdown timeout reached before batch finished")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Health server shutdown error")
	}
	logger.Info("Syncer stopped")
}
