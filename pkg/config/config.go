package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/mediagate/pkg/observability"
	"github.com/platinummonkey/mediagate/pkg/sharing"
	"github.com/platinummonkey/mediagate/pkg/storage"
)

// Auth modes accepted by AuthConfig.Mode
const (
	AuthModeOIDC   = "oidc"
	AuthModeHeader = "header"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Storage       storage.Config      `yaml:"storage"`
	S3            S3Config            `yaml:"s3"`
	Auth          AuthConfig          `yaml:"auth"`
	Notifications NotificationConfig  `yaml:"notifications"`
	Sharing       sharing.Config      `yaml:"sharing"`
	Attempts      AttemptConfig       `yaml:"attempts"`
	Cache         CacheConfig         `yaml:"cache"`
	Observability ObservabilityConfig `yaml:"observability"`
	Sweeper       SweeperConfig       `yaml:"sweeper"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`

	// Per-client request limit applied to the whole API
	RateLimitRequests int           `yaml:"rate_limit_requests"`
	RateLimitWindow   time.Duration `yaml:"rate_limit_window"`

	// CORSOrigins lists browser origins allowed to call the API; "*" allows any
	CORSOrigins  []string `yaml:"cors_origins"`
	MaxBodyBytes int64    `yaml:"max_body_bytes"`
}

// S3Config locates the bucket holding media files. An empty bucket disables presigning.
type S3Config struct {
	Endpoint     string        `yaml:"endpoint"`
	Region       string        `yaml:"region"`
	Bucket       string        `yaml:"bucket"`
	AccessKey    string        `yaml:"access_key"`
	SecretKey    string        `yaml:"secret_key"`
	UsePathStyle bool          `yaml:"use_path_style"`
	PresignTTL   time.Duration `yaml:"presign_ttl"`
}

// AuthConfig selects how requests are authenticated
type AuthConfig struct {
	Mode         string `yaml:"mode"`
	OIDCIssuer   string `yaml:"oidc_issuer"`
	OIDCClientID string `yaml:"oidc_client_id"`
	// UserHeader names the header a trusted proxy sets in header mode
	UserHeader  string `yaml:"user_header"`
	EmailHeader string `yaml:"email_header"`
	// OwnerUserID is promoted to owner at startup when set
	OwnerUserID string `yaml:"owner_user_id"`
}

// NotificationConfig configures the notification relay
type NotificationConfig struct {
	WebhookURL    string        `yaml:"webhook_url"`
	WebhookSecret string        `yaml:"webhook_secret"`
	Timeout       time.Duration `yaml:"timeout"`
	// At most RateLimit messages per recipient each RatePeriod
	RateLimit  int           `yaml:"rate_limit"`
	RatePeriod time.Duration `yaml:"rate_period"`
}

// AttemptConfig bounds password guesses and share-token lookups
type AttemptConfig struct {
	PasswordAttempts int           `yaml:"password_attempts"`
	PasswordWindow   time.Duration `yaml:"password_window"`
	ShareLookups     int           `yaml:"share_lookups"`
	ShareWindow      time.Duration `yaml:"share_window"`
}

// CacheConfig sizes the in-process profile cache
type CacheConfig struct {
	ProfileCacheSize int           `yaml:"profile_cache_size"`
	ProfileCacheTTL  time.Duration `yaml:"profile_cache_ttl"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Metrics
	MetricsEnabled bool `yaml:"metrics_enabled"`

	// OpenTelemetry
	OTelEnabled        bool    `yaml:"otel_enabled"`
	OTelEndpoint       string  `yaml:"otel_endpoint"`
	OTelServiceName    string  `yaml:"otel_service_name"`
	OTelServiceVersion string  `yaml:"otel_service_version"`
	OTelInsecure       bool    `yaml:"otel_insecure"` // Use insecure gRPC connection
	OTelSampleRatio    float64 `yaml:"otel_sample_ratio"`
}

// Level returns the parsed log level
func (o ObservabilityConfig) Level() observability.LogLevel {
	return observability.ParseLogLevel(o.LogLevel)
}

// OTel converts the tracing settings for observability.InitTracing
func (o ObservabilityConfig) OTel() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        o.OTelEnabled,
		Endpoint:       o.OTelEndpoint,
		ServiceName:    o.OTelServiceName,
		ServiceVersion: o.OTelServiceVersion,
		Insecure:       o.OTelInsecure,
		SampleRatio:    o.OTelSampleRatio,
	}
}

// SweeperConfig drives the background sweeper
type SweeperConfig struct {
	// Schedule is a cron expression (robfig/cron, seconds optional)
	Schedule string `yaml:"schedule"`
	// PendingOrderTTL is how long an order may stay pending before it is failed
	PendingOrderTTL time.Duration `yaml:"pending_order_ttl"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              "8080",
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
			ShutdownTimeout:   30 * time.Second,
			HealthPort:        "9090",
			RateLimitRequests: 300,
			RateLimitWindow:   time.Minute,
			MaxBodyBytes:      1 << 20,
		},
		Storage: storage.DefaultConfig(),
		S3: S3Config{
			Region:     "us-east-1",
			PresignTTL: 15 * time.Minute,
		},
		Auth: AuthConfig{
			Mode:        AuthModeHeader,
			UserHeader:  "X-Forwarded-User",
			EmailHeader: "X-Forwarded-Email",
		},
		Notifications: NotificationConfig{
			Timeout:    10 * time.Second,
			RateLimit:  20,
			RatePeriod: time.Minute,
		},
		Sharing: sharing.DefaultConfig(),
		Attempts: AttemptConfig{
			PasswordAttempts: 5,
			PasswordWindow:   15 * time.Minute,
			ShareLookups:     60,
			ShareWindow:      time.Minute,
		},
		Cache: CacheConfig{
			ProfileCacheSize: 1024,
			ProfileCacheTTL:  30 * time.Second,
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			LogFormat:          "json",
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "mediagate",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
			OTelSampleRatio:    1,
		},
		Sweeper: SweeperConfig{
			Schedule:        "@every 5m",
			PendingOrderTTL: 24 * time.Hour,
		},
	}
}

// LoadConfig builds the configuration from defaults, the optional YAML file
// named by MEDIAGATE_CONFIG_FILE, and MEDIAGATE_* environment variables, in
// that order of precedence.
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := getEnv("MEDIAGATE_CONFIG_FILE", ""); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyServerEnv()
	cfg.applyStorageEnv()
	cfg.applyS3Env()
	cfg.applyAuthEnv()
	cfg.applyNotificationEnv()
	cfg.applySharingEnv()
	cfg.applyAttemptEnv()
	cfg.applyObservabilityEnv()
	cfg.Cache.ProfileCacheSize = getEnvInt("MEDIAGATE_PROFILE_CACHE_SIZE", cfg.Cache.ProfileCacheSize)
	cfg.Cache.ProfileCacheTTL = getEnvDuration("MEDIAGATE_PROFILE_CACHE_TTL", cfg.Cache.ProfileCacheTTL)
	cfg.Sweeper.Schedule = getEnv("MEDIAGATE_SWEEPER_SCHEDULE", cfg.Sweeper.Schedule)
	cfg.Sweeper.PendingOrderTTL = getEnvDuration("MEDIAGATE_PENDING_ORDER_TTL", cfg.Sweeper.PendingOrderTTL)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyServerEnv() {
	s := &c.Server
	s.Host = getEnv("MEDIAGATE_HOST", s.Host)
	s.Port = getEnv("MEDIAGATE_PORT", s.Port)
	s.ReadTimeout = getEnvDuration("MEDIAGATE_READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = getEnvDuration("MEDIAGATE_WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = getEnvDuration("MEDIAGATE_IDLE_TIMEOUT", s.IdleTimeout)
	s.ShutdownTimeout = getEnvDuration("MEDIAGATE_SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.HealthPort = getEnv("MEDIAGATE_HEALTH_PORT", s.HealthPort)
	s.RateLimitRequests = getEnvInt("MEDIAGATE_RATE_LIMIT_REQUESTS", s.RateLimitRequests)
	s.RateLimitWindow = getEnvDuration("MEDIAGATE_RATE_LIMIT_WINDOW", s.RateLimitWindow)
	if origins := getEnv("MEDIAGATE_CORS_ORIGINS", ""); origins != "" {
		s.CORSOrigins = strings.Split(origins, ",")
	}
	if maxBytes := getEnvInt("MEDIAGATE_MAX_BODY_BYTES", 0); maxBytes > 0 {
		s.MaxBodyBytes = int64(maxBytes)
	}
}

func (c *Config) applyStorageEnv() {
	s := &c.Storage
	s.Type = getEnv("MEDIAGATE_STORAGE_TYPE", s.Type)
	s.DSN = getEnv("MEDIAGATE_DATABASE_DSN", s.DSN)
	if maxConns := getEnvInt("MEDIAGATE_DB_MAX_OPEN_CONNS", 0); maxConns > 0 {
		s.MaxOpenConns = maxConns
	}
	if idle := getEnvInt("MEDIAGATE_DB_MAX_IDLE_CONNS", 0); idle > 0 {
		s.MaxIdleConns = idle
	}
	s.ConnTimeout = getEnvDuration("MEDIAGATE_DB_TIMEOUT", s.ConnTimeout)
	s.MaxLifetime = getEnvDuration("MEDIAGATE_DB_MAX_LIFETIME", s.MaxLifetime)

	s.RedisURL = getEnv("MEDIAGATE_REDIS_URL", s.RedisURL)
	s.RedisPassword = getEnv("MEDIAGATE_REDIS_PASSWORD", s.RedisPassword)
	if redisDB := getEnvInt("MEDIAGATE_REDIS_DB", -1); redisDB >= 0 {
		s.RedisDB = redisDB
	}
	if retries := getEnvInt("MEDIAGATE_REDIS_MAX_RETRIES", 0); retries > 0 {
		s.RedisMaxRetries = retries
	}
	if pool := getEnvInt("MEDIAGATE_REDIS_POOL_SIZE", 0); pool > 0 {
		s.RedisPoolSize = pool
	}
}

func (c *Config) applyS3Env() {
	s := &c.S3
	s.Endpoint = getEnv("MEDIAGATE_S3_ENDPOINT", s.Endpoint)
	s.Region = getEnv("MEDIAGATE_S3_REGION", s.Region)
	s.Bucket = getEnv("MEDIAGATE_S3_BUCKET", s.Bucket)
	s.AccessKey = getEnv("MEDIAGATE_S3_ACCESS_KEY", s.AccessKey)
	s.SecretKey = getEnv("MEDIAGATE_S3_SECRET_KEY", s.SecretKey)
	s.UsePathStyle = getEnvBool("MEDIAGATE_S3_USE_PATH_STYLE", s.UsePathStyle)
	s.PresignTTL = getEnvDuration("MEDIAGATE_S3_PRESIGN_TTL", s.PresignTTL)
}

func (c *Config) applyAuthEnv() {
	a := &c.Auth
	a.Mode = strings.ToLower(getEnv("MEDIAGATE_AUTH_MODE", a.Mode))
	a.OIDCIssuer = getEnv("MEDIAGATE_OIDC_ISSUER", a.OIDCIssuer)
	a.OIDCClientID = getEnv("MEDIAGATE_OIDC_CLIENT_ID", a.OIDCClientID)
	a.UserHeader = getEnv("MEDIAGATE_AUTH_USER_HEADER", a.UserHeader)
	a.EmailHeader = getEnv("MEDIAGATE_AUTH_EMAIL_HEADER", a.EmailHeader)
	a.OwnerUserID = getEnv("MEDIAGATE_OWNER_USER_ID", a.OwnerUserID)
}

func (c *Config) applyNotificationEnv() {
	n := &c.Notifications
	n.WebhookURL = getEnv("MEDIAGATE_NOTIFY_WEBHOOK_URL", n.WebhookURL)
	n.WebhookSecret = getEnv("MEDIAGATE_NOTIFY_WEBHOOK_SECRET", n.WebhookSecret)
	n.Timeout = getEnvDuration("MEDIAGATE_NOTIFY_TIMEOUT", n.Timeout)
	n.RateLimit = getEnvInt("MEDIAGATE_NOTIFY_RATE_LIMIT", n.RateLimit)
	n.RatePeriod = getEnvDuration("MEDIAGATE_NOTIFY_RATE_PERIOD", n.RatePeriod)
}

func (c *Config) applySharingEnv() {
	s := &c.Sharing
	s.InviteCodeLength = getEnvInt("MEDIAGATE_INVITE_CODE_LENGTH", s.InviteCodeLength)
	s.ClientInviteLength = getEnvInt("MEDIAGATE_CLIENT_INVITE_LENGTH", s.ClientInviteLength)
	s.ShareTokenLength = getEnvInt("MEDIAGATE_SHARE_TOKEN_LENGTH", s.ShareTokenLength)
	s.MaxCodeAttempts = getEnvInt("MEDIAGATE_MAX_CODE_ATTEMPTS", s.MaxCodeAttempts)
	s.DefaultShareTTL = getEnvDuration("MEDIAGATE_DEFAULT_SHARE_TTL", s.DefaultShareTTL)
	s.BaseURL = getEnv("MEDIAGATE_BASE_URL", s.BaseURL)
}

func (c *Config) applyAttemptEnv() {
	a := &c.Attempts
	a.PasswordAttempts = getEnvInt("MEDIAGATE_PASSWORD_ATTEMPTS", a.PasswordAttempts)
	a.PasswordWindow = getEnvDuration("MEDIAGATE_PASSWORD_WINDOW", a.PasswordWindow)
	a.ShareLookups = getEnvInt("MEDIAGATE_SHARE_LOOKUPS", a.ShareLookups)
	a.ShareWindow = getEnvDuration("MEDIAGATE_SHARE_WINDOW", a.ShareWindow)
}

func (c *Config) applyObservabilityEnv() {
	o := &c.Observability
	o.LogLevel = getEnv("MEDIAGATE_LOG_LEVEL", o.LogLevel)
	o.LogFormat = getEnv("MEDIAGATE_LOG_FORMAT", o.LogFormat)
	o.MetricsEnabled = getEnvBool("MEDIAGATE_METRICS_ENABLED", o.MetricsEnabled)
	o.OTelEnabled = getEnvBool("MEDIAGATE_OTEL_ENABLED", o.OTelEnabled)
	o.OTelEndpoint = getEnv("MEDIAGATE_OTEL_ENDPOINT", o.OTelEndpoint)
	o.OTelServiceName = getEnv("MEDIAGATE_OTEL_SERVICE_NAME", o.OTelServiceName)
	o.OTelServiceVersion = getEnv("MEDIAGATE_OTEL_SERVICE_VERSION", o.OTelServiceVersion)
	o.OTelInsecure = getEnvBool("MEDIAGATE_OTEL_INSECURE", o.OTelInsecure)
	o.OTelSampleRatio = getEnvFloat("MEDIAGATE_OTEL_SAMPLE_RATIO", o.OTelSampleRatio)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}
	if c.Server.RateLimitRequests <= 0 || c.Server.RateLimitWindow <= 0 {
		return fmt.Errorf("server rate limit must be positive")
	}

	// Validate storage config based on type
	switch c.Storage.Type {
	case storage.BackendMemory:
	case storage.BackendPostgres, storage.BackendSQLite:
		if c.Storage.DSN == "" {
			return fmt.Errorf("database DSN is required for %s storage", c.Storage.Type)
		}
	default:
		return fmt.Errorf("invalid storage type: %s (must be memory, postgres, or sqlite)", c.Storage.Type)
	}

	if c.S3.Bucket != "" && c.S3.PresignTTL <= 0 {
		return fmt.Errorf("S3 presign TTL must be positive")
	}

	switch c.Auth.Mode {
	case AuthModeOIDC:
		if c.Auth.OIDCIssuer == "" || c.Auth.OIDCClientID == "" {
			return fmt.Errorf("OIDC issuer and client ID are required for oidc auth")
		}
	case AuthModeHeader:
		if c.Auth.UserHeader == "" {
			return fmt.Errorf("user header is required for header auth")
		}
	default:
		return fmt.Errorf("invalid auth mode: %s (must be oidc or header)", c.Auth.Mode)
	}

	if c.Notifications.RateLimit <= 0 || c.Notifications.RatePeriod <= 0 {
		return fmt.Errorf("notification rate limit must be positive")
	}

	sh := c.Sharing
	if sh.InviteCodeLength <= 0 || sh.ClientInviteLength <= 0 || sh.ShareTokenLength <= 0 {
		return fmt.Errorf("code lengths must be positive")
	}
	if sh.MaxCodeAttempts <= 0 {
		return fmt.Errorf("max code attempts must be positive")
	}
	if sh.DefaultShareTTL < 0 {
		return fmt.Errorf("default share TTL cannot be negative")
	}

	if c.Attempts.PasswordAttempts <= 0 || c.Attempts.PasswordWindow <= 0 {
		return fmt.Errorf("password attempt limit must be positive")
	}
	if c.Attempts.ShareLookups <= 0 || c.Attempts.ShareWindow <= 0 {
		return fmt.Errorf("share lookup limit must be positive")
	}

	if c.Cache.ProfileCacheSize < 0 {
		return fmt.Errorf("profile cache size cannot be negative")
	}

	switch c.Observability.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Observability.LogFormat)
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}
	if r := c.Observability.OTelSampleRatio; r < 0 || r > 1 {
		return fmt.Errorf("OpenTelemetry sample ratio must be between 0 and 1")
	}

	if c.Sweeper.Schedule == "" {
		return fmt.Errorf("sweeper schedule is required")
	}
	if c.Sweeper.PendingOrderTTL <= 0 {
		return fmt.Errorf("pending order TTL must be positive")
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
