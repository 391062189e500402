package config

import (
	"fmt"
	"strings"
	"time"

	"estate-market-backend/internal/apperrors"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
)

// EnvPrefix is the prefix of environment overrides. Nesting levels are
// separated by a double underscore: ESTATE_DATABASE__PASSWORD sets
// database.password.
const EnvPrefix = "ESTATE_"

// DefaultConfig is loaded before the config file and the environment.
var DefaultConfig = []byte(`
server:
  host: "0.0.0.0"
  port: 8080
  read_timeout: 15s
  write_timeout: 30s
  shutdown_timeout: 10s
  allowed_origins:
    - "http://localhost:3000"

database:
  host: "localhost"
  port: 5432
  user: "estate"
  database: "estate"
  ssl_mode: "disable"
  max_open_conns: 20

jwt:
  access_token_expiry_minutes: 60
  refresh_token_expiry_minutes: 10080

storage:
  type: "local"
  upload_dir: "./uploads"
  base_url: "http://localhost:8080"
  max_file_size_mb: 5
  max_images: 10
  allowed_types:
    - "image/jpeg"
    - "image/png"

log:
  level: "info"
  format: "logfmt"

payment:
  provider: "stripe"
  currency: "usd"
  call_timeout: 10s
  max_attempts: 3
  initial_interval: 200ms
  max_interval: 2s
  breaker:
    max_requests: 1
    interval: 60s
    timeout: 30s
    consecutive_failures: 5

kafka:
  topic: "transaction-events"
  consumer_group: "transaction-ledger"
  records_per_poll: 100
  metrics_addr: ":9102"

mongo:
  database: "estate"
  collection: "transaction_events"

redis:
  addr: "localhost:6379"
  db: 0
  dead_letter_key: "events:dead-letter"
  revoked_prefix: "auth:revoked:"

transactions:
  pending_ttl: 72h
  expire_batch_size: 100
  replay_batch_size: 100
`)

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `koanf:"server"`
	Database     DatabaseConfig     `koanf:"database"`
	JWT          JWTConfig          `koanf:"jwt"`
	Storage      StorageConfig      `koanf:"storage"`
	Log          LogConfig          `koanf:"log"`
	Scheduler    SchedulerConfig    `koanf:"scheduler"`
	Payment      PaymentConfig      `koanf:"payment"`
	Kafka        KafkaConfig        `koanf:"kafka"`
	Mongo        MongoConfig        `koanf:"mongo"`
	Redis        RedisConfig        `koanf:"redis"`
	Transactions TransactionsConfig `koanf:"transactions"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	AllowedOrigins  []string      `koanf:"allowed_origins"`
}

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Host         string `koanf:"host"`
	Port         int    `koanf:"port"`
	User         string `koanf:"user"`
	Password     string `koanf:"password"`
	Database     string `koanf:"database"`
	SSLMode      string `koanf:"ssl_mode"`
	MaxOpenConns int    `koanf:"max_open_conns"`
}

// JWTConfig contains JWT token settings
type JWTConfig struct {
	Secret             string `koanf:"secret"`
	AccessTokenExpiry  int    `koanf:"access_token_expiry_minutes"`
	RefreshTokenExpiry int    `koanf:"refresh_token_expiry_minutes"`
}

// StorageConfig contains file storage settings
type StorageConfig struct {
	Type         string   `koanf:"type"`
	UploadDir    string   `koanf:"upload_dir"`
	BaseURL      string   `koanf:"base_url"`
	MaxFileSize  int64    `koanf:"max_file_size_mb"`
	MaxImages    int      `koanf:"max_images"`
	AllowedTypes []string `koanf:"allowed_types"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `koanf:"level"`  // "debug", "info", "warn", "error"
	Format string `koanf:"format"` // "logfmt", "json" or "console"
}

// SchedulerConfig contains cron schedule settings
type SchedulerConfig struct {
	ExpireStaleTransactions string `koanf:"expire_stale_transactions"`
	ReplayDeadLetters       string `koanf:"replay_dead_letters"`
}

// PaymentConfig contains payment gateway settings
type PaymentConfig struct {
	Provider        string        `koanf:"provider"`
	SecretKey       string        `koanf:"secret_key"`
	Currency        string        `koanf:"currency"`
	CallTimeout     time.Duration `koanf:"call_timeout"`
	MaxAttempts     int           `koanf:"max_attempts"`
	InitialInterval time.Duration `koanf:"initial_interval"`
	MaxInterval     time.Duration `koanf:"max_interval"`
	Breaker         BreakerConfig `koanf:"breaker"`
}

// BreakerConfig contains circuit breaker settings for the gateway
type BreakerConfig struct {
	MaxRequests         uint32        `koanf:"max_requests"`
	Interval            time.Duration `koanf:"interval"`
	Timeout             time.Duration `koanf:"timeout"`
	ConsecutiveFailures uint32        `koanf:"consecutive_failures"`
}

// KafkaConfig contains event streaming settings. An empty broker list
// disables publishing.
type KafkaConfig struct {
	Brokers        []string `koanf:"brokers"`
	Topic          string   `koanf:"topic"`
	ConsumerGroup  string   `koanf:"consumer_group"`
	RecordsPerPoll int      `koanf:"records_per_poll"`
	MetricsAddr    string   `koanf:"metrics_addr"`
}

// MongoConfig contains event audit store settings. An empty URI disables
// the history endpoint.
type MongoConfig struct {
	URI        string `koanf:"uri"`
	Database   string `koanf:"database"`
	Collection string `koanf:"collection"`
}

// RedisConfig contains cache settings
type RedisConfig struct {
	Addr          string `koanf:"addr"`
	Password      string `koanf:"password"`
	DB            int    `koanf:"db"`
	DeadLetterKey string `koanf:"dead_letter_key"`
	RevokedPrefix string `koanf:"revoked_prefix"`
}

// TransactionsConfig contains lifecycle settings
type TransactionsConfig struct {
	PendingTTL      time.Duration `koanf:"pending_ttl"`
	ExpireBatchSize int           `koanf:"expire_batch_size"`
	ReplayBatchSize int           `koanf:"replay_batch_size"`
}

// Load reads the embedded defaults, then the YAML file at configPath (if
// any), then ESTATE_ environment variables.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(DefaultConfig), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load default config: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Validate checks if the configuration is valid and fills scheduler defaults
func (c *Config) Validate() error {
	ve := apperrors.ValidationErrs()

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		ve.Add("server.port", fmt.Sprintf("invalid port %d", c.Server.Port))
	}

	if c.Database.Host == "" {
		ve.Add("database.host", "cannot be empty")
	}
	if c.Database.User == "" {
		ve.Add("database.user", "cannot be empty")
	}
	if c.Database.Database == "" {
		ve.Add("database.database", "cannot be empty")
	}

	if len(c.JWT.Secret) < 32 {
		ve.Add("jwt.secret", "must be at least 32 characters")
	}
	if c.JWT.AccessTokenExpiry <= 0 || c.JWT.RefreshTokenExpiry <= 0 {
		ve.Add("jwt", "token expiry must be positive")
	}

	if c.Storage.UploadDir == "" {
		ve.Add("storage.upload_dir", "cannot be empty")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		ve.Add("log.level", "must be one of debug, info, warn, error")
	}
	switch strings.ToLower(c.Log.Format) {
	case "logfmt", "json", "console", "text":
	default:
		ve.Add("log.format", "must be one of logfmt, json, console")
	}

	if c.Payment.Provider != "stripe" {
		ve.Add("payment.provider", "only stripe is supported")
	}
	if c.Payment.MaxAttempts <= 0 {
		ve.Add("payment.max_attempts", "must be positive")
	}
	if c.Payment.Currency == "" {
		ve.Add("payment.currency", "cannot be empty")
	}

	if c.Transactions.PendingTTL < time.Minute {
		ve.Add("transactions.pending_ttl", "must be at least 1m")
	}

	if c.Scheduler.ExpireStaleTransactions == "" {
		c.Scheduler.ExpireStaleTransactions = "0 */30 * * * *" // every 30 minutes
	}
	if c.Scheduler.ReplayDeadLetters == "" {
		c.Scheduler.ReplayDeadLetters = "0 */5 * * * *" // every 5 minutes
	}

	return ve.Err()
}

// GetDatabaseConnectionString returns a PostgreSQL connection string
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// GetServerAddress returns the HTTP server address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// KafkaEnabled reports whether events are published to Kafka.
func (c *Config) KafkaEnabled() bool {
	return len(c.Kafka.Brokers) > 0
}

// MongoEnabled reports whether the event audit store is configured.
func (c *Config) MongoEnabled() bool {
	return c.Mongo.URI != ""
}
