// Package config loads mediagate configuration from defaults, an optional YAML
// file and MEDIAGATE_* environment variables, then validates it.
//
// # Precedence
//
// Defaults are overlaid by the YAML file named in MEDIAGATE_CONFIG_FILE, and
// environment variables override both. Unparseable numeric, boolean or
// duration variables are ignored and the previous value is kept.
//
// # Configuration Structure
//
// Server settings:
//
//	MEDIAGATE_HOST="0.0.0.0"
//	MEDIAGATE_PORT="8080"
//	MEDIAGATE_HEALTH_PORT="9090"
//	MEDIAGATE_READ_TIMEOUT="15s"
//	MEDIAGATE_RATE_LIMIT_REQUESTS="300"
//
// Storage settings:
//
//	MEDIAGATE_STORAGE_TYPE="postgres"  # memory, postgres, sqlite
//	MEDIAGATE_DATABASE_DSN="postgres://localhost/mediagate?sslmode=disable"
//	MEDIAGATE_DB_MAX_OPEN_CONNS="20"
//	MEDIAGATE_REDIS_URL="redis://localhost:6379"
//	MEDIAGATE_S3_BUCKET="mediagate-media"
//	MEDIAGATE_S3_REGION="us-east-1"
//
// Auth settings:
//
//	MEDIAGATE_AUTH_MODE="oidc"  # oidc, header
//	MEDIAGATE_OIDC_ISSUER="https://id.example.com"
//	MEDIAGATE_OIDC_CLIENT_ID="mediagate"
//	MEDIAGATE_OWNER_USER_ID="..."
//
// Sharing and limits:
//
//	MEDIAGATE_INVITE_CODE_LENGTH="8"
//	MEDIAGATE_SHARE_TOKEN_LENGTH="32"
//	MEDIAGATE_DEFAULT_SHARE_TTL="168h"
//	MEDIAGATE_PASSWORD_ATTEMPTS="5"
//	MEDIAGATE_PASSWORD_WINDOW="15m"
//	MEDIAGATE_NOTIFY_WEBHOOK_URL="https://relay.internal/notify"
//
// Observability settings:
//
//	MEDIAGATE_LOG_LEVEL="info"  # debug, info, warn, error
//	MEDIAGATE_LOG_FORMAT="json"  # json, text
//	MEDIAGATE_METRICS_ENABLED="true"
//	MEDIAGATE_OTEL_ENABLED="true"
//	MEDIAGATE_OTEL_ENDPOINT="otel-collector:4317"
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//	logger := observability.NewLoggerWithFormat(cfg.Observability.Level(), cfg.Observability.LogFormat, os.Stdout)
package config
