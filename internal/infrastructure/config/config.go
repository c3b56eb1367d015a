package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/meschain/marketsync/internal/domain/integration"
	"github.com/meschain/marketsync/internal/infrastructure/ecommerce"
	"github.com/meschain/marketsync/internal/infrastructure/ratelimit"
)

// EnvPrefix prefixes every environment override, e.g. MSYNC_DATABASE_PASSWORD
const EnvPrefix = "MSYNC"

// Config holds all application configuration
type Config struct {
	App          AppConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Log          LogConfig
	HTTP         HTTPConfig
	Sync         SyncConfig
	Webhook      WebhookConfig
	Telemetry    TelemetryConfig
	Storage      StorageConfig
	Archive      ArchiveConfig
	Swagger      SwaggerConfig
	Marketplaces map[integration.MarketplaceCode]MarketplaceConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	Output     string // stdout, stderr, or file path
	TimeFormat string // iso8601, rfc3339, epoch
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
	LogLevel        string
	SlowThreshold   time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// JWTConfig holds the settings of the bearer tokens protecting the reporting API
type JWTConfig struct {
	Secret                string
	AccessTokenExpiration time.Duration
	Issuer                string
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	MaxBodySize       int64
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
	CORSAllowOrigins  []string
	CORSAllowMethods  []string
	CORSAllowHeaders  []string
	TrustedProxies    []string
}

// SyncConfig holds the orchestrator and sync engine settings
type SyncConfig struct {
	DefaultWorkers       int
	QueueSize            int
	EventQueueSize       int
	MaxAttempts          int
	JobTimeout           time.Duration
	EventTimeout         time.Duration
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	HistorySize          int
	BatchSize            int
	OrderMaxPages        int
	OrderOverlap         time.Duration
	MatchThreshold       float64
	CategoryCacheTTL     time.Duration
	RunOnStart           bool
	ShutdownTimeout      time.Duration
}

// WebhookConfig holds the webhook ingestor settings
type WebhookConfig struct {
	MaxBodySize   int64
	DedupeEnabled bool
	DedupeTTL     time.Duration
	// DedupeBackend is "redis" or "memory"
	DedupeBackend string
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	SamplingRatio     float64
	ServiceName       string
	Insecure          bool
	MetricsInterval   time.Duration
	LogsEnabled       bool
	DBTraceEnabled    bool
	DBLogFullSQL      bool
	DBSlowQueryThresh time.Duration
	ProfilingEnabled  bool
	ProfilingEndpoint string
}

// StorageConfig holds the S3-compatible object storage used for audit archives
type StorageConfig struct {
	Endpoint     string
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	UseSSL       bool
	UsePathStyle bool
}

// ArchiveConfig controls the periodic export of aged audit records
type ArchiveConfig struct {
	Enabled   bool
	Interval  time.Duration
	Retention time.Duration
	BatchSize int
	Prefix    string
}

// SwaggerConfig holds the API documentation endpoint configuration
type SwaggerConfig struct {
	Enabled     bool     // Serve /swagger/*any
	RequireAuth bool     // Require a bearer token to read the documentation
	AllowedIPs  []string // IP or CIDR allow list (empty = allow all)
}

// MarketplaceConfig is one [marketplaces.<code>] section
type MarketplaceConfig struct {
	Enabled bool
	// Adapter holds the credentials and endpoints handed to the adapter
	Adapter      ecommerce.Config
	SyncInterval time.Duration
	BatchSize    int
	Workers      int
	RateLimit    ratelimit.MarketplaceLimits
	// Attributes are the [[marketplaces.<code>.attributes]] rules
	Attributes []integration.AttributeRule
}

// Load loads configuration from .env, config.toml and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with MSYNC_ prefix (e.g., MSYNC_DATABASE_PASSWORD)
// 2. .env in the working directory (does not override the real environment)
// 3. config.toml
// 4. Built-in defaults
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return FromViper(v)
}

// FromViper builds the configuration from a prepared viper instance
func FromViper(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
			LogLevel:        v.GetString("database.log_level"),
			SlowThreshold:   v.GetDuration("database.slow_threshold"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:                v.GetString("jwt.secret"),
			AccessTokenExpiration: v.GetDuration("jwt.access_token_expiration"),
			Issuer:                v.GetString("jwt.issuer"),
		},
		Log: LogConfig{
			Level:      v.GetString("log.level"),
			Format:     v.GetString("log.format"),
			Output:     v.GetString("log.output"),
			TimeFormat: v.GetString("log.time_format"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:       v.GetDuration("http.read_timeout"),
			WriteTimeout:      v.GetDuration("http.write_timeout"),
			IdleTimeout:       v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:    v.GetInt("http.max_header_bytes"),
			MaxBodySize:       v.GetInt64("http.max_body_size"),
			RateLimitEnabled:  v.GetBool("http.rate_limit_enabled"),
			RateLimitRequests: v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:   v.GetDuration("http.rate_limit_window"),
			CORSAllowOrigins:  v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods:  v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders:  v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:    v.GetStringSlice("http.trusted_proxies"),
		},
		Sync: SyncConfig{
			DefaultWorkers:       v.GetInt("sync.default_workers"),
			QueueSize:            v.GetInt("sync.queue_size"),
			EventQueueSize:       v.GetInt("sync.event_queue_size"),
			MaxAttempts:          v.GetInt("sync.max_attempts"),
			JobTimeout:           v.GetDuration("sync.job_timeout"),
			EventTimeout:         v.GetDuration("sync.event_timeout"),
			RetryInitialInterval: v.GetDuration("sync.retry_initial_interval"),
			RetryMaxInterval:     v.GetDuration("sync.retry_max_interval"),
			HistorySize:          v.GetInt("sync.history_size"),
			BatchSize:            v.GetInt("sync.batch_size"),
			OrderMaxPages:        v.GetInt("sync.order_max_pages"),
			OrderOverlap:         v.GetDuration("sync.order_overlap"),
			MatchThreshold:       v.GetFloat64("sync.match_threshold"),
			CategoryCacheTTL:     v.GetDuration("sync.category_cache_ttl"),
			RunOnStart:           v.GetBool("sync.run_on_start"),
			ShutdownTimeout:      v.GetDuration("sync.shutdown_timeout"),
		},
		Webhook: WebhookConfig{
			MaxBodySize:   v.GetInt64("webhook.max_body_size"),
			DedupeEnabled: !v.IsSet("webhook.dedupe_enabled") || v.GetBool("webhook.dedupe_enabled"),
			DedupeTTL:     v.GetDuration("webhook.dedupe_ttl"),
			DedupeBackend: v.GetString("webhook.dedupe_backend"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
			ProfilingEnabled:  v.GetBool("telemetry.profiling_enabled"),
			ProfilingEndpoint: v.GetString("telemetry.profiling_endpoint"),
		},
		Storage: StorageConfig{
			Endpoint:     v.GetString("storage.endpoint"),
			Region:       v.GetString("storage.region"),
			Bucket:       v.GetString("storage.bucket"),
			AccessKey:    v.GetString("storage.access_key"),
			SecretKey:    v.GetString("storage.secret_key"),
			UseSSL:       v.GetBool("storage.use_ssl"),
			UsePathStyle: v.GetBool("storage.use_path_style"),
		},
		Archive: ArchiveConfig{
			Enabled:   v.GetBool("archive.enabled"),
			Interval:  v.GetDuration("archive.interval"),
			Retention: v.GetDuration("archive.retention"),
			BatchSize: v.GetInt("archive.batch_size"),
			Prefix:    v.GetString("archive.prefix"),
		},
		Swagger: SwaggerConfig{
			Enabled:     v.GetBool("swagger.enabled"),
			RequireAuth: v.GetBool("swagger.require_auth"),
			AllowedIPs:  v.GetStringSlice("swagger.allowed_ips"),
		},
	}

	marketplaces, err := loadMarketplaces(v)
	if err != nil {
		return nil, err
	}
	cfg.Marketplaces = marketplaces

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadMarketplaces reads one section per supported marketplace. Keys are read
// one by one so MSYNC_MARKETPLACES_<CODE>_<KEY> overrides work for every field.
func loadMarketplaces(v *viper.Viper) (map[integration.MarketplaceCode]MarketplaceConfig, error) {
	defaults := ratelimit.DefaultLimits()
	out := make(map[integration.MarketplaceCode]MarketplaceConfig)
	for _, code := range integration.AllMarketplaces() {
		key := func(name string) string {
			return "marketplaces." + strings.ToLower(code.String()) + "." + name
		}
		if !v.GetBool(key("enabled")) {
			continue
		}

		limits := defaults[code]
		if c := v.GetInt(key("rate_limit.capacity")); c > 0 {
			limits.Default.Capacity = c
		}
		if r := v.GetFloat64(key("rate_limit.refill_per_second")); r > 0 {
			limits.Default.RefillPerSecond = r
		}
		if d := v.GetDuration(key("rate_limit.acquire_timeout")); d > 0 {
			limits.AcquireTimeout = d
		}

		var attributes []integration.AttributeRule
		if err := v.UnmarshalKey(key("attributes"), &attributes); err != nil {
			return nil, fmt.Errorf("invalid attribute rules for %s: %w", code, err)
		}

		out[code] = MarketplaceConfig{
			Enabled: true,
			Adapter: ecommerce.Config{
				Marketplace:   code,
				Sandbox:       v.GetBool(key("sandbox")),
				APIKey:        v.GetString(key("api_key")),
				APISecret:     v.GetString(key("api_secret")),
				SupplierID:    v.GetString(key("supplier_id")),
				MarketplaceID: v.GetString(key("marketplace_id")),
				RefreshToken:  v.GetString(key("refresh_token")),
				WebhookSecret: v.GetString(key("webhook_secret")),
				BaseURL:       v.GetString(key("base_url")),
				AuthURL:       v.GetString(key("auth_url")),
				Timeout:       v.GetDuration(key("timeout")),
				PageSize:      v.GetInt(key("page_size")),
				OrderLookback: v.GetDuration(key("order_lookback")),
				Currency:      v.GetString(key("currency")),
			},
			SyncInterval: v.GetDuration(key("sync_interval")),
			BatchSize:    v.GetInt(key("batch_size")),
			Workers:      v.GetInt(key("workers")),
			RateLimit:    limits,
			Attributes:   attributes,
		}
	}
	return out, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "marketsync"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "marketsync"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = "warn"
	}
	if cfg.Database.SlowThreshold == 0 {
		cfg.Database.SlowThreshold = 200 * time.Millisecond
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.JWT.AccessTokenExpiration == 0 {
		cfg.JWT.AccessTokenExpiration = time.Hour
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "marketsync"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Log.TimeFormat == "" {
		cfg.Log.TimeFormat = "iso8601"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 30 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20
	}
	if cfg.HTTP.RateLimitRequests == 0 {
		cfg.HTTP.RateLimitRequests = 100
	}
	if cfg.HTTP.RateLimitWindow == 0 {
		cfg.HTTP.RateLimitWindow = time.Minute
	}
	// An empty CORS origin list allows no cross-origin requests
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID"}
	}
	if cfg.Sync.DefaultWorkers == 0 {
		cfg.Sync.DefaultWorkers = 2
	}
	if cfg.Sync.QueueSize == 0 {
		cfg.Sync.QueueSize = 64
	}
	if cfg.Sync.EventQueueSize == 0 {
		cfg.Sync.EventQueueSize = 1024
	}
	if cfg.Sync.MaxAttempts == 0 {
		cfg.Sync.MaxAttempts = 5
	}
	if cfg.Sync.JobTimeout == 0 {
		cfg.Sync.JobTimeout = 15 * time.Minute
	}
	if cfg.Sync.EventTimeout == 0 {
		cfg.Sync.EventTimeout = 30 * time.Second
	}
	if cfg.Sync.RetryInitialInterval == 0 {
		cfg.Sync.RetryInitialInterval = 10 * time.Second
	}
	if cfg.Sync.RetryMaxInterval == 0 {
		cfg.Sync.RetryMaxInterval = 10 * time.Minute
	}
	if cfg.Sync.HistorySize == 0 {
		cfg.Sync.HistorySize = 200
	}
	if cfg.Sync.BatchSize == 0 {
		cfg.Sync.BatchSize = 100
	}
	if cfg.Sync.OrderMaxPages == 0 {
		cfg.Sync.OrderMaxPages = 20
	}
	if cfg.Sync.OrderOverlap == 0 {
		cfg.Sync.OrderOverlap = 5 * time.Minute
	}
	if cfg.Sync.MatchThreshold == 0 {
		cfg.Sync.MatchThreshold = integration.DefaultMatchThreshold
	}
	if cfg.Sync.CategoryCacheTTL == 0 {
		cfg.Sync.CategoryCacheTTL = 24 * time.Hour
	}
	if cfg.Sync.ShutdownTimeout == 0 {
		cfg.Sync.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Webhook.MaxBodySize == 0 {
		cfg.Webhook.MaxBodySize = 256 << 10 // 256KiB
	}
	if cfg.Webhook.DedupeTTL == 0 {
		cfg.Webhook.DedupeTTL = 72 * time.Hour
	}
	if cfg.Webhook.DedupeBackend == "" {
		cfg.Webhook.DedupeBackend = "redis"
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "marketsync"
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 60 * time.Second
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Storage.Bucket == "" {
		cfg.Storage.Bucket = "marketsync-audit"
	}
	if cfg.Archive.Interval == 0 {
		cfg.Archive.Interval = 24 * time.Hour
	}
	if cfg.Archive.Retention == 0 {
		cfg.Archive.Retention = 90 * 24 * time.Hour
	}
	if cfg.Archive.BatchSize == 0 {
		cfg.Archive.BatchSize = 5000
	}
	if cfg.Archive.Prefix == "" {
		cfg.Archive.Prefix = "audit"
	}
	for code, mp := range cfg.Marketplaces {
		if mp.SyncInterval == 0 {
			mp.SyncInterval = 15 * time.Minute
		}
		if mp.BatchSize == 0 {
			mp.BatchSize = cfg.Sync.BatchSize
		}
		if mp.Workers == 0 {
			mp.Workers = cfg.Sync.DefaultWorkers
		}
		cfg.Marketplaces[code] = mp
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if c.Sync.MatchThreshold <= 0 || c.Sync.MatchThreshold > 1 {
		return fmt.Errorf("sync.match_threshold must be in (0, 1], got %f", c.Sync.MatchThreshold)
	}
	if c.Sync.MaxAttempts < 1 {
		return fmt.Errorf("sync.max_attempts must be at least 1")
	}
	if c.Webhook.DedupeBackend != "redis" && c.Webhook.DedupeBackend != "memory" {
		return fmt.Errorf("webhook.dedupe_backend must be redis or memory, got %q", c.Webhook.DedupeBackend)
	}
	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}
	for code, mp := range c.Marketplaces {
		// Validate fills in adapter defaults, so the result is stored back
		adapter := mp.Adapter
		if err := adapter.Validate(); err != nil {
			return fmt.Errorf("marketplaces.%s: %w", strings.ToLower(code.String()), err)
		}
		mp.Adapter = adapter
		c.Marketplaces[code] = mp
	}

	if c.IsProduction() {
		if c.JWT.Secret == "" {
			return fmt.Errorf("jwt.secret is required in production")
		}
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt.secret must be at least 32 characters in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production to prevent sensitive data exposure in traces")
		}
		if c.Swagger.Enabled && !c.Swagger.RequireAuth && len(c.Swagger.AllowedIPs) == 0 {
			return fmt.Errorf("swagger endpoint must be disabled, require authentication, or have IP restriction in production")
		}
		if c.Webhook.DedupeBackend == "memory" {
			return fmt.Errorf("webhook.dedupe_backend=memory loses deliveries across restarts; use redis in production")
		}
		for code, mp := range c.Marketplaces {
			if mp.Adapter.Sandbox {
				return fmt.Errorf("marketplaces.%s.sandbox must be false in production", strings.ToLower(code.String()))
			}
		}
	}
	return nil
}

// IsProduction reports whether the service runs with production safeguards
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// EnabledMarketplaces returns the configured marketplaces in a stable order
func (c *Config) EnabledMarketplaces() []integration.MarketplaceCode {
	codes := make([]integration.MarketplaceCode, 0, len(c.Marketplaces))
	for _, code := range integration.AllMarketplaces() {
		if _, ok := c.Marketplaces[code]; ok {
			codes = append(codes, code)
		}
	}
	return codes
}

// AdapterConfigs returns the adapter settings keyed by marketplace
func (c *Config) AdapterConfigs() map[integration.MarketplaceCode]ecommerce.Config {
	out := make(map[integration.MarketplaceCode]ecommerce.Config, len(c.Marketplaces))
	for code, mp := range c.Marketplaces {
		out[code] = mp.Adapter
	}
	return out
}

// RateLimits returns the call budgets of the configured marketplaces
func (c *Config) RateLimits() map[integration.MarketplaceCode]ratelimit.MarketplaceLimits {
	out := make(map[integration.MarketplaceCode]ratelimit.MarketplaceLimits, len(c.Marketplaces))
	for code, mp := range c.Marketplaces {
		out[code] = mp.RateLimit
	}
	return out
}

// Workers returns the worker pool size per configured marketplace
func (c *Config) Workers() map[integration.MarketplaceCode]int {
	out := make(map[integration.MarketplaceCode]int, len(c.Marketplaces))
	for code, mp := range c.Marketplaces {
		if mp.Workers > 0 {
			out[code] = mp.Workers
		}
	}
	return out
}

// SyncIntervals returns the scheduled sync interval per marketplace.
// Marketplaces with a zero interval are only synced on demand.
func (c *Config) SyncIntervals() map[integration.MarketplaceCode]time.Duration {
	out := make(map[integration.MarketplaceCode]time.Duration, len(c.Marketplaces))
	for code, mp := range c.Marketplaces {
		if mp.SyncInterval > 0 {
			out[code] = mp.SyncInterval
		}
	}
	return out
}

// AttributeTables builds the attribute table of every marketplace that
// declares rules
func (c *Config) AttributeTables() (map[integration.MarketplaceCode]*integration.AttributeTable, error) {
	out := make(map[integration.MarketplaceCode]*integration.AttributeTable)
	for code, mp := range c.Marketplaces {
		if len(mp.Attributes) == 0 {
			continue
		}
		table, err := integration.NewAttributeTable(code, mp.Attributes)
		if err != nil {
			return nil, fmt.Errorf("marketplaces.%s.attributes: %w", strings.ToLower(code.String()), err)
		}
		out[code] = table
	}
	return out, nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
