package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/crewsync/crewsync/pkg/api"
	"github.com/crewsync/crewsync/pkg/audit"
	"github.com/crewsync/crewsync/pkg/cache"
	"github.com/crewsync/crewsync/pkg/claims"
	"github.com/crewsync/crewsync/pkg/config"
	"github.com/crewsync/crewsync/pkg/observability"
	"github.com/crewsync/crewsync/pkg/orgs"
	"github.com/crewsync/crewsync/pkg/store/mongostore"
	evsync "github.com/crewsync/crewsync/pkg/sync"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

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

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		logger.WithError(err).Warn("Redis unavailable, mapping cache will run degraded")
	}
	cancel()
	mappingCache := cache.New(cfg.Cache, redisClient, logger, metrics)

	auditLoggers := []audit.Logger{audit.NewStoreLogger(store)}
	if cfg.Audit.Dir != "" {
		fileLogger, err := audit.NewFileLogger(audit.FileLoggerConfig{
			BasePath: cfg.Audit.Dir,
			MaxSize:  cfg.Audit.MaxSize,
			MaxFiles: cfg.Audit.MaxFiles,
		})
		if err != nil {
			logger.WithError(err).Error("Failed to open audit log directory")
			os.Exit(1)
		}
		auditLoggers = append(auditLoggers, fileLogger)
	}
	auditLog := audit.NewMultiLogger(auditLoggers...)

	queue := evsync.NewQueue(store, logger, syncMetrics)
	service := orgs.New(store, queue, mappingCache, auditLog, logger, metrics)

	var tokener *claims.Tokener
	if cfg.Auth.TokenSecret != "" {
		tokener, err = claims.NewTokener([]byte(cfg.Auth.TokenSecret), cfg.Auth.TokenTTL)
		if err != nil {
			logger.WithError(err).Error("Failed to initialize token signer")
			os.Exit(1)
		}
	}

	server := api.NewServer(service, store, queue, tokener, auditLog, logger, metrics)

	httpServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Health and metrics on a separate port for probes.
	healthChecker := observability.NewHealthChecker(store.Client(), redisClient)
	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, healthChecker)
	healthMux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	healthServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: healthMux,
	}

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(healthServer.Shutdown)
	shutdown.RegisterShutdownFunc(store.Close)
	shutdown.RegisterShutdownFunc(func(context.Context) error { return redisClient.Close() })
	shutdown.RegisterShutdownFunc(func(context.Context) error { return auditLog.Close() })

	go func() {
		logger.Infof("Health endpoints listening on %s", healthServer.Addr)
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Health server failed")
		}
	}()
	go func() {
		logger.Infof("CrewSync API listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("API server failed")
			os.Exit(1)
		}
	}()

	if err := shutdown.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("Shutdown finished with errors")
		os.Exit(1)
	}
}
