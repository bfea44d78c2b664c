// Package observability provides structured logging, Prometheus metrics,
// OpenTelemetry tracing, health probes and graceful shutdown.
//
// # Logging
//
// Logger wraps logrus:
//
//	logger := observability.NewLoggerWithFormat(observability.InfoLevel, "json", os.Stdout)
//	logger.WithField("content_id", id).Warn("notification failed")
//	observability.FromContext(ctx).Info("request finished")
//
// # Metrics
//
//	metrics := observability.NewMetrics(prometheus.NewRegistry())
//	router.Use(observability.HTTPMetricsMiddleware(metrics))
//	metrics.RecordAccess("content", string(decision.Reason), decision.Allowed)
//
// # Tracing
//
//	tp, err := observability.InitTracing(ctx, cfg, logger)
//	defer observability.ShutdownTracing(ctx, tp, logger)
//
// # Health
//
//	checker := observability.NewHealthChecker(db, redisClient, version)
//	observability.RegisterHealthRoutes(router, checker)
package observability
