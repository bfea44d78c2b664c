// Command mediagate serves the media library API.
//
// Configuration comes from defaults, the YAML file named by
// MEDIAGATE_CONFIG_FILE, and MEDIAGATE_* environment variables.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/mediagate/pkg/api"
	"github.com/platinummonkey/mediagate/pkg/async"
	"github.com/platinummonkey/mediagate/pkg/audit"
	"github.com/platinummonkey/mediagate/pkg/config"
	"github.com/platinummonkey/mediagate/pkg/httputil"
	"github.com/platinummonkey/mediagate/pkg/middleware"
	"github.com/platinummonkey/mediagate/pkg/notify"
	"github.com/platinummonkey/mediagate/pkg/observability"
	"github.com/platinummonkey/mediagate/pkg/rbac"
)

var version = "dev"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLoggerWithFormat(cfg.Observability.Level(), cfg.Observability.LogFormat, os.Stdout)
	async.SetLogger(logger.FieldLogger())

	if err := run(context.Background(), cfg, logger); err != nil {
		logger.WithError(err).Error("mediagate stopped with an error")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *observability.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tp, err := observability.InitTracing(ctx, cfg.Observability.OTel(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}

	metrics := observability.NewMetrics(prometheus.NewRegistry())

	store, db, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to open %s storage: %w", cfg.Storage.Type, err)
	}
	logger.Infof("storage backend: %s", cfg.Storage.Type)

	redisClient, err := openRedis(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	lim := buildLimiters(cfg, redisClient, logger)
	for _, l := range []middleware.Limiter{lim.password, lim.share, lim.api} {
		if rl, ok := l.(*middleware.RateLimiter); ok {
			rl.StartCleanup(ctx)
		}
	}

	authn, err := buildAuthenticator(ctx, cfg.Auth)
	if err != nil {
		return err
	}
	blobs, err := buildBlobs(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to configure media storage: %w", err)
	}

	scheduler := async.NewScheduler(ctx, 4, cfg.Notifications.Timeout)
	dispatcher := notify.NewDispatcher(buildNotifier(cfg.Notifications, logger), scheduler, logger.FieldLogger()).
		WithRateLimit(notify.NewRateLimiter(cfg.Notifications.RateLimit, cfg.Notifications.RatePeriod)).
		OnResult(func(channel notify.Channel, outcome string) {
			metrics.NotificationsTotal.WithLabelValues(string(channel), outcome).Inc()
		})

	profileCache := rbac.NewCachedProfileStore(store, cfg.Cache.ProfileCacheSize, cfg.Cache.ProfileCacheTTL)
	metrics.RegisterProfileCache(profileCache.Stats)

	svc := api.NewServices(api.Deps{
		Store:           store,
		Profiles:        profileCache,
		Audit:           audit.NewLogrusLogger(logger.Logrus()),
		Sender:          dispatcher,
		Blobs:           blobs,
		Sharing:         cfg.Sharing,
		PasswordLimiter: lim.password,
		ShareLimiter:    lim.share,
	})

	if cfg.Auth.OwnerUserID != "" {
		if _, err := svc.Profiles.BootstrapOwner(ctx, cfg.Auth.OwnerUserID, ""); err != nil {
			if !errors.Is(err, rbac.ErrOwnerExists) {
				return fmt.Errorf("failed to bootstrap owner: %w", err)
			}
			logger.Debug("owner already exists, skipping bootstrap")
		} else {
			logger.Infof("bootstrapped owner %s", cfg.Auth.OwnerUserID)
		}
	}

	server := api.NewServer(svc, metrics)
	server.Use(
		observability.HTTPMetricsMiddleware(metrics),
		middleware.Authenticate(authn, svc.Profiles),
		middleware.ClientKeyMiddleware,
		middleware.RateLimit(lim.api, cfg.Server.RateLimitWindow, metrics.RateLimitedTotal.WithLabelValues("api")),
	)
	handler := httputil.Chain(
		httputil.RequestIDMiddleware(logger),
		httputil.LoggingMiddleware,
		httputil.RecoveryMiddleware,
		httputil.CORSMiddleware(cfg.Server.CORSOrigins),
		httputil.MaxBytesMiddleware(cfg.Server.MaxBodyBytes),
	)(server)

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      otelhttp.NewHandler(handler, "mediagate"),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	opsServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:           opsRouter(cfg, metrics, db, redisClient),
		ReadHeaderTimeout: 5 * time.Second,
	}

	shutdown := observability.NewShutdownManager(logger, apiServer, cfg.Server.ShutdownTimeout)
	shutdown.Register("ops-server", opsServer.Shutdown)
	shutdown.Register("notifications", func(context.Context) error {
		return scheduler.Drain(cfg.Notifications.Timeout)
	})
	shutdown.Register("tracing", func(ctx context.Context) error {
		return observability.ShutdownTracing(ctx, tp, logger)
	})
	if db != nil {
		shutdown.Register("database", func(context.Context) error { return db.Close() })
	}
	if redisClient != nil {
		shutdown.Register("redis", func(context.Context) error { return redisClient.Close() })
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("mediagate %s listening on %s", version, apiServer.Addr)
		return serve(apiServer)
	})
	g.Go(func() error {
		logger.Infof("health and metrics listening on %s", opsServer.Addr)
		return serve(opsServer)
	})
	if db != nil && cfg.Observability.MetricsEnabled {
		g.Go(func() error {
			recordDBStats(gctx, db, metrics)
			return nil
		})
	}
	g.Go(func() error {
		return shutdown.WaitForSignal(gctx)
	})
	return g.Wait()
}

// serve treats a graceful shutdown as success
func serve(s *http.Server) error {
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server on %s failed: %w", s.Addr, err)
	}
	return nil
}

// opsRouter serves probes and metrics on the health port
func opsRouter(cfg *config.Config, metrics *observability.Metrics, db *sql.DB, redisClient redis.UniversalClient) *mux.Router {
	r := mux.NewRouter()
	observability.RegisterHealthRoutes(r, observability.NewHealthChecker(db, redisClient, version))
	if cfg.Observability.MetricsEnabled {
		r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	}
	return r
}

func recordDBStats(ctx context.Context, db *sql.DB, metrics *observability.Metrics) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		metrics.RecordDBStats(db.Stats())
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
