// Command mediagate-sweeper runs periodic maintenance against a shared
// mediagate database: it fails orders left pending past their TTL and
// publishes order and share gauges.
package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/mediagate/pkg/api"
	"github.com/platinummonkey/mediagate/pkg/async"
	"github.com/platinummonkey/mediagate/pkg/audit"
	"github.com/platinummonkey/mediagate/pkg/config"
	"github.com/platinummonkey/mediagate/pkg/observability"
	"github.com/platinummonkey/mediagate/pkg/storage"
	"github.com/platinummonkey/mediagate/pkg/storage/sqlstore"
)

const sweepTimeout = 2 * time.Minute

var (
	runOnce  = flag.Bool("run-once", false, "Run one sweep and exit")
	schedule = flag.String("schedule", "", "Cron schedule override (default: sweeper.schedule from config)")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	logger := observability.NewLoggerWithFormat(cfg.Observability.Level(), cfg.Observability.LogFormat, os.Stdout)
	async.SetLogger(logger.FieldLogger())

	if cfg.Storage.Type == storage.BackendMemory {
		logger.Error("the sweeper needs a shared database; set storage.type to postgres or sqlite")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := sqlstore.Open(ctx, cfg.Storage)
	if err != nil {
		logger.WithError(err).Error("failed to open storage")
		os.Exit(1)
	}
	defer store.Close()

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	svc := api.NewServices(api.Deps{
		Store:   store,
		Audit:   audit.NewLogrusLogger(logger.Logrus()),
		Sharing: cfg.Sharing,
	})
	sw := &sweeper{
		billing: svc.Billing,
		sharing: svc.Sharing,
		orders:  store,
		metrics: metrics,
		logger:  logger,
		ttl:     cfg.Sweeper.PendingOrderTTL,
	}

	if *runOnce {
		if err := sw.run(ctx); err != nil {
			logger.WithError(err).Error("sweep failed")
			os.Exit(1)
		}
		logger.Info("sweep completed")
		return
	}

	spec := cfg.Sweeper.Schedule
	if *schedule != "" {
		spec = *schedule
	}

	c := cron.New()
	_, err = c.AddFunc(spec, func() {
		async.SafeGo(ctx, sweepTimeout, "sweep", sw.run)
	})
	if err != nil {
		logger.WithError(err).Errorf("invalid sweeper schedule %q", spec)
		os.Exit(1)
	}

	r := mux.NewRouter()
	observability.RegisterHealthRoutes(r, observability.NewHealthChecker(store.DB(), nil, version))
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	opsServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		defer observability.RecoverPanic(logger, "metrics server")
		if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("metrics server failed")
		}
	}()

	c.Start()
	logger.Infof("mediagate-sweeper started, schedule %s", spec)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logger.Info("Shutting down gracefully...")

	stopped := c.Stop()
	<-stopped.Done()

	shutdownCtx, done := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer done()
	if err := opsServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("metrics server shutdown")
	}
	logger.Info("sweeper stopped")
}

var version = "dev"
