// Package observability provides structured logging, Prometheus metrics,
// health checks, and graceful shutdown.
//
// # Structured Logging
//
// Create logger:
//
//	logger := observability.NewLogger(observability.InfoLevel, nil)
//	logger.WithField("organization_id", orgID).Info("organization created")
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.ResolutionsTotal.WithLabelValues("direct-name-match").Inc()
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(mongoClient, redisClient)
//	status := checker.Check(ctx)
//
// MongoDB failure makes the service unhealthy; Redis failure only degrades
// it, since the cache is a latency optimization over the document store.
//
// # Graceful Shutdown
//
//	manager := observability.NewShutdownManager(logger, server, 30*time.Second)
//	manager.RegisterShutdownFunc(func(ctx context.Context) error {
//	    return mongoClient.Disconnect(ctx)
//	})
//	manager.WaitForShutdown()
package observability
