package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App          AppConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Log          LogConfig
	HTTP         HTTPConfig
	Fulfillment  FulfillmentConfig
	Sweeper      SweeperConfig
	Notification NotificationConfig
	Payment      PaymentConfig
	Telemetry    TelemetryConfig
	Metrics      MetricsConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver          string // postgres, sqlite, memory
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
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns the host:port of the Redis server
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// JWTConfig holds the settings used to verify bearer tokens
type JWTConfig struct {
	Secret string
	Issuer string
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	MaxBodySize    int64
	TrustedProxies []string
}

// FulfillmentConfig tunes checkout and allocation
type FulfillmentConfig struct {
	CommitRetryBudget      int
	CommitRetryDelay       time.Duration
	DefaultTaxRate         decimal.Decimal
	PreorderExpirationDays int
	InstoreLocation        string // shelf, warehouse
	PreorderLocation       string // shelf, warehouse
}

// SweeperConfig holds the expiry sweep schedule
type SweeperConfig struct {
	Enabled       bool
	Mode          string // inprocess, asynq
	DailyHour     int
	DailyMinute   int
	CheckInterval time.Duration
	CronSpec      string // used in asynq mode
	BatchSize     int
}

// NotificationConfig holds order notification settings
type NotificationConfig struct {
	Enabled        bool
	Driver         string // log, redis
	Channel        string
	Locale         string
	IdempotencyTTL time.Duration
}

// PaymentConfig holds payment gateway callback settings
type PaymentConfig struct {
	// CallbackSecret, when set, must match the X-Callback-Secret header
	CallbackSecret string
	IdempotencyTTL time.Duration
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	DBTraceEnabled    bool    // Enable database query tracing (otelgorm)
	DBSlowQueryThresh time.Duration
}

// MetricsConfig holds the Prometheus endpoint settings
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with ERP_ prefix (e.g., ERP_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("ERP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	taxRate := decimal.Zero
	if raw := v.GetString("fulfillment.default_tax_rate"); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("fulfillment.default_tax_rate: %w", err)
		}
		taxRate = parsed
	}

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
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
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("jwt.secret"),
			Issuer: v.GetString("jwt.issuer"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			MaxBodySize:    v.GetInt64("http.max_body_size"),
			TrustedProxies: v.GetStringSlice("http.trusted_proxies"),
		},
		Fulfillment: FulfillmentConfig{
			CommitRetryBudget:      v.GetInt("fulfillment.commit_retry_budget"),
			CommitRetryDelay:       v.GetDuration("fulfillment.commit_retry_delay"),
			DefaultTaxRate:         taxRate,
			PreorderExpirationDays: v.GetInt("fulfillment.preorder_expiration_days"),
			InstoreLocation:        v.GetString("fulfillment.instore_location"),
			PreorderLocation:       v.GetString("fulfillment.preorder_location"),
		},
		Sweeper: SweeperConfig{
			Enabled:       v.GetBool("sweeper.enabled"),
			Mode:          v.GetString("sweeper.mode"),
			DailyHour:     v.GetInt("sweeper.daily_hour"),
			DailyMinute:   v.GetInt("sweeper.daily_minute"),
			CheckInterval: v.GetDuration("sweeper.check_interval"),
			CronSpec:      v.GetString("sweeper.cron_spec"),
			BatchSize:     v.GetInt("sweeper.batch_size"),
		},
		Notification: NotificationConfig{
			Enabled:        v.GetBool("notification.enabled"),
			Driver:         v.GetString("notification.driver"),
			Channel:        v.GetString("notification.channel"),
			Locale:         v.GetString("notification.locale"),
			IdempotencyTTL: v.GetDuration("notification.idempotency_ttl"),
		},
		Payment: PaymentConfig{
			CallbackSecret: v.GetString("payment.callback_secret"),
			IdempotencyTTL: v.GetDuration("payment.idempotency_ttl"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
		},
		Metrics: MetricsConfig{
			Enabled: v.GetBool("metrics.enabled"),
			Path:    v.GetString("metrics.path"),
		},
	}

	// Sweeps default to on unless explicitly disabled
	if !v.IsSet("sweeper.enabled") {
		cfg.Sweeper.Enabled = true
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "erp-fulfillment"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
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
		cfg.Database.DBName = "erp"
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
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "erp-backend"
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
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB
	}
	if cfg.Fulfillment.CommitRetryBudget == 0 {
		cfg.Fulfillment.CommitRetryBudget = 3
	}
	if cfg.Fulfillment.CommitRetryDelay == 0 {
		cfg.Fulfillment.CommitRetryDelay = 20 * time.Millisecond
	}
	if cfg.Fulfillment.PreorderExpirationDays == 0 {
		cfg.Fulfillment.PreorderExpirationDays = 3
	}
	if cfg.Fulfillment.InstoreLocation == "" {
		cfg.Fulfillment.InstoreLocation = "shelf"
	}
	if cfg.Fulfillment.PreorderLocation == "" {
		cfg.Fulfillment.PreorderLocation = "warehouse"
	}
	if cfg.Sweeper.Mode == "" {
		cfg.Sweeper.Mode = "inprocess"
	}
	if cfg.Sweeper.DailyHour == 0 && cfg.Sweeper.DailyMinute == 0 {
		cfg.Sweeper.DailyHour = 2
	}
	if cfg.Sweeper.CheckInterval == 0 {
		cfg.Sweeper.CheckInterval = time.Minute
	}
	if cfg.Sweeper.CronSpec == "" {
		cfg.Sweeper.CronSpec = "0 2 * * *"
	}
	if cfg.Sweeper.BatchSize == 0 {
		cfg.Sweeper.BatchSize = 200
	}
	if cfg.Notification.Driver == "" {
		cfg.Notification.Driver = "log"
	}
	if cfg.Notification.Channel == "" {
		cfg.Notification.Channel = "erp:order-notifications"
	}
	if cfg.Notification.Locale == "" {
		cfg.Notification.Locale = "en"
	}
	if cfg.Notification.IdempotencyTTL == 0 {
		cfg.Notification.IdempotencyTTL = 24 * time.Hour
	}
	if cfg.Payment.IdempotencyTTL == 0 {
		cfg.Payment.IdempotencyTTL = 72 * time.Hour
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "erp-fulfillment"
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite", "memory":
	default:
		return fmt.Errorf("database.driver must be postgres, sqlite or memory, got %q", c.Database.Driver)
	}
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

	if c.Fulfillment.CommitRetryBudget < 1 {
		return fmt.Errorf("fulfillment.commit_retry_budget must be at least 1")
	}
	if c.Fulfillment.DefaultTaxRate.IsNegative() || c.Fulfillment.DefaultTaxRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("fulfillment.default_tax_rate must be in [0, 1), got %s", c.Fulfillment.DefaultTaxRate)
	}
	if c.Fulfillment.PreorderExpirationDays < 1 {
		return fmt.Errorf("fulfillment.preorder_expiration_days must be positive")
	}
	for key, loc := range map[string]string{
		"fulfillment.instore_location":  c.Fulfillment.InstoreLocation,
		"fulfillment.preorder_location": c.Fulfillment.PreorderLocation,
	} {
		if loc != "shelf" && loc != "warehouse" {
			return fmt.Errorf("%s must be shelf or warehouse, got %q", key, loc)
		}
	}

	if c.Sweeper.Mode != "inprocess" && c.Sweeper.Mode != "asynq" {
		return fmt.Errorf("sweeper.mode must be inprocess or asynq, got %q", c.Sweeper.Mode)
	}
	if c.Sweeper.DailyHour < 0 || c.Sweeper.DailyHour > 23 {
		return fmt.Errorf("sweeper.daily_hour must be between 0 and 23, got %d", c.Sweeper.DailyHour)
	}
	if c.Sweeper.DailyMinute < 0 || c.Sweeper.DailyMinute > 59 {
		return fmt.Errorf("sweeper.daily_minute must be between 0 and 59, got %d", c.Sweeper.DailyMinute)
	}
	if c.Notification.Driver != "log" && c.Notification.Driver != "redis" {
		return fmt.Errorf("notification.driver must be log or redis, got %q", c.Notification.Driver)
	}

	if c.App.Env == "production" {
		if c.JWT.Secret == "" {
			return fmt.Errorf("jwt.secret is required in production")
		}
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt.secret must be at least 32 characters in production")
		}
		if c.Database.Driver != "postgres" {
			return fmt.Errorf("database.driver cannot be '%s' in production", c.Database.Driver)
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Payment.CallbackSecret == "" {
			return fmt.Errorf("payment.callback_secret is required in production")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}
	return nil
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
