package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/platinummonkey/mediagate/pkg/api"
	"github.com/platinummonkey/mediagate/pkg/auth"
	"github.com/platinummonkey/mediagate/pkg/blob"
	"github.com/platinummonkey/mediagate/pkg/config"
	"github.com/platinummonkey/mediagate/pkg/middleware"
	"github.com/platinummonkey/mediagate/pkg/notify"
	"github.com/platinummonkey/mediagate/pkg/observability"
	"github.com/platinummonkey/mediagate/pkg/storage"
	"github.com/platinummonkey/mediagate/pkg/storage/memory"
	"github.com/platinummonkey/mediagate/pkg/storage/rediscache"
	"github.com/platinummonkey/mediagate/pkg/storage/sqlstore"
)

// openStore returns the configured store and, for SQL backends, its pool
func openStore(ctx context.Context, cfg storage.Config) (api.Store, *sql.DB, error) {
	if cfg.Type == storage.BackendMemory {
		return memory.New(), nil, nil
	}
	s, err := sqlstore.Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return s, s.DB(), nil
}

// openRedis connects when a redis URL is configured and returns nil otherwise
func openRedis(ctx context.Context, cfg storage.Config) (redis.UniversalClient, error) {
	if cfg.RedisURL == "" {
		return nil, nil
	}
	client, err := rediscache.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return client, nil
}

type limiters struct {
	password middleware.Limiter
	share    middleware.Limiter
	api      middleware.Limiter
}

// buildLimiters shares attempt counters through redis when it is available.
// Password guesses fail closed when redis is down; share lookups and API
// requests fail open.
func buildLimiters(cfg *config.Config, client redis.UniversalClient, logger *observability.Logger) limiters {
	if client != nil {
		return limiters{
			password: rediscache.NewLimiter(client, cfg.Attempts.PasswordAttempts, cfg.Attempts.PasswordWindow, "password"),
			share: rediscache.NewLimiter(client, cfg.Attempts.ShareLookups, cfg.Attempts.ShareWindow, "share").
				WithFailOpen(logger.FieldLogger()),
			api: rediscache.NewLimiter(client, cfg.Server.RateLimitRequests, cfg.Server.RateLimitWindow, "api").
				WithFailOpen(logger.FieldLogger()),
		}
	}
	return limiters{
		password: middleware.NewRateLimiter(middleware.RateLimitConfig{
			RequestsPerWindow: cfg.Attempts.PasswordAttempts,
			WindowDuration:    cfg.Attempts.PasswordWindow,
		}),
		share: middleware.NewRateLimiter(middleware.RateLimitConfig{
			RequestsPerWindow: cfg.Attempts.ShareLookups,
			WindowDuration:    cfg.Attempts.ShareWindow,
		}),
		api: middleware.NewRateLimiter(middleware.RateLimitConfig{
			RequestsPerWindow: cfg.Server.RateLimitRequests,
			WindowDuration:    cfg.Server.RateLimitWindow,
			BurstSize:         cfg.Server.RateLimitRequests / 10,
		}),
	}
}

func buildAuthenticator(ctx context.Context, cfg config.AuthConfig) (auth.Authenticator, error) {
	switch cfg.Mode {
	case config.AuthModeOIDC:
		return auth.NewOIDCAuthenticator(ctx, cfg.OIDCIssuer, cfg.OIDCClientID)
	case config.AuthModeHeader:
		return auth.NewHeaderAuthenticator(cfg.UserHeader, cfg.EmailHeader), nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Mode)
	}
}

// buildNotifier posts to the relay webhook, or logs messages when none is configured
func buildNotifier(cfg config.NotificationConfig, logger *observability.Logger) notify.Notifier {
	if cfg.WebhookURL == "" {
		logger.Warn("no notification webhook configured, notifications will only be logged")
		return notify.LogNotifier{Logger: logger.FieldLogger()}
	}
	return notify.NewWebhookNotifier(cfg.WebhookURL, cfg.WebhookSecret, cfg.Timeout)
}

// buildBlobs presigns against S3 when a bucket is configured
func buildBlobs(ctx context.Context, cfg *config.Config, logger *observability.Logger) (blob.Store, error) {
	if cfg.S3.Bucket == "" {
		base := fmt.Sprintf("http://%s:%s/files", cfg.Server.Host, cfg.Server.Port)
		logger.Warnf("no S3 bucket configured, issuing development file URLs under %s", base)
		return blob.NewMemoryStore(base), nil
	}
	return blob.NewS3Store(ctx, blob.S3Config{
		Endpoint:     cfg.S3.Endpoint,
		Region:       cfg.S3.Region,
		Bucket:       cfg.S3.Bucket,
		AccessKey:    cfg.S3.AccessKey,
		SecretKey:    cfg.S3.SecretKey,
		UsePathStyle: cfg.S3.UsePathStyle,
		TTL:          cfg.S3.PresignTTL,
	})
}
