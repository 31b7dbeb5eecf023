// Package config loads the goGuard service configuration from GOGUARD_*
// environment variables and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/policy"
	"github.com/caarlos0/env/v11"
)

// Backends accepted by Store.Backend.
const (
	BackendRedis    = "redis"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config is the service configuration.
type Config struct {
	// File is the optional YAML overlay. Environment variables win over it.
	File string `env:"GOGUARD_CONFIG_FILE"`

	Server   ServerConfig
	Store    StoreConfig
	Policy   PolicyConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
	Log      LogConfig
	Operator OperatorConfig

	// tiers comes from the YAML file only; nil derives tiers from
	// MaxAttempts.
	tiers []policy.Tier
}

type ServerConfig struct {
	Addr            string        `env:"GOGUARD_HTTP_ADDR"`
	ReadTimeout     time.Duration `env:"GOGUARD_HTTP_READ_TIMEOUT"`
	WriteTimeout    time.Duration `env:"GOGUARD_HTTP_WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `env:"GOGUARD_HTTP_SHUTDOWN_TIMEOUT"`
	TrustProxy      bool          `env:"GOGUARD_TRUST_PROXY"`
}

type StoreConfig struct {
	Backend       string        `env:"GOGUARD_BACKEND"`
	RedisAddr     string        `env:"GOGUARD_REDIS_ADDR"`
	RedisPassword string        `env:"GOGUARD_REDIS_PASSWORD"`
	RedisDB       int           `env:"GOGUARD_REDIS_DB"`
	RedisPrefix   string        `env:"GOGUARD_REDIS_PREFIX"`
	SQLitePath    string        `env:"GOGUARD_SQLITE_PATH"`
	PostgresDSN   string        `env:"GOGUARD_POSTGRES_DSN"`
	MaxRetries    int           `env:"GOGUARD_STORE_MAX_RETRIES"`
	SweepInterval time.Duration `env:"GOGUARD_SWEEP_INTERVAL"`
}

type PolicyConfig struct {
	MaxAttempts   int           `env:"GOGUARD_MAX_ATTEMPTS"`
	BlockDuration time.Duration `env:"GOGUARD_BLOCK_DURATION"`
	RecordTTL     time.Duration `env:"GOGUARD_RECORD_TTL"`
	AfterBlock    string        `env:"GOGUARD_AFTER_BLOCK"`
	FailMode      string        `env:"GOGUARD_FAIL_MODE"`
}

type AuditConfig struct {
	Enabled    bool   `env:"GOGUARD_AUDIT_ENABLED"`
	BufferSize int    `env:"GOGUARD_AUDIT_BUFFER"`
	Output     string `env:"GOGUARD_AUDIT_OUTPUT"`
}

type MetricsConfig struct {
	Enabled           bool `env:"GOGUARD_METRICS_ENABLED"`
	LatencyHistograms bool `env:"GOGUARD_METRICS_LATENCY"`

	// OTelEndpoint is an OTLP/HTTP metrics URL. Empty disables the push
	// pipeline; /metrics is served either way.
	OTelEndpoint    string        `env:"GOGUARD_OTEL_ENDPOINT"`
	OTelInterval    time.Duration `env:"GOGUARD_OTEL_INTERVAL"`
	OTelServiceName string        `env:"GOGUARD_OTEL_SERVICE_NAME"`
}

type LogConfig struct {
	Level      string `env:"GOGUARD_LOG_LEVEL"`
	Format     string `env:"GOGUARD_LOG_FORMAT"`
	File       string `env:"GOGUARD_LOG_FILE"`
	MaxSizeMB  int    `env:"GOGUARD_LOG_MAX_SIZE_MB"`
	MaxBackups int    `env:"GOGUARD_LOG_MAX_BACKUPS"`
	MaxAgeDays int    `env:"GOGUARD_LOG_MAX_AGE_DAYS"`
}

type OperatorConfig struct {
	SigningMethod  string        `env:"GOGUARD_OPERATOR_SIGNING_METHOD"`
	Secret         string        `env:"GOGUARD_OPERATOR_SECRET"`
	PrivateKeyFile string        `env:"GOGUARD_OPERATOR_PRIVATE_KEY_FILE"`
	PublicKeyFile  string        `env:"GOGUARD_OPERATOR_PUBLIC_KEY_FILE"`
	Issuer         string        `env:"GOGUARD_OPERATOR_ISSUER"`
	Audience       string        `env:"GOGUARD_OPERATOR_AUDIENCE"`
	TokenTTL       time.Duration `env:"GOGUARD_OPERATOR_TOKEN_TTL"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	tracker := goGuard.DefaultConfig()
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Store: StoreConfig{
			Backend:       BackendRedis,
			RedisAddr:     "localhost:6379",
			RedisPrefix:   tracker.Store.RedisPrefix,
			SQLitePath:    "goguard.db",
			MaxRetries:    tracker.Store.MaxRetries,
			SweepInterval: time.Minute,
		},
		Policy: PolicyConfig{
			MaxAttempts:   tracker.Policy.MaxAttempts,
			BlockDuration: tracker.Policy.BlockDuration,
			RecordTTL:     tracker.Policy.RecordTTL,
			AfterBlock:    tracker.Policy.AfterBlock.String(),
			FailMode:      tracker.FailMode.String(),
		},
		Audit: AuditConfig{
			BufferSize: tracker.Audit.BufferSize,
			Output:     "stdout",
		},
		Metrics: MetricsConfig{
			Enabled:         tracker.Metrics.Enabled,
			OTelInterval:    30 * time.Second,
			OTelServiceName: "goguard",
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Operator: OperatorConfig{
			SigningMethod: "hs256",
			Issuer:        "goguard",
			Audience:      "goguard-operator",
			TokenTTL:      time.Hour,
		},
	}
}

// Load reads the process environment.
func Load() (Config, error) {
	return LoadFromEnv(env.ToMap(os.Environ()))
}

// LoadFromEnv builds the configuration from defaults, then the YAML file
// named by GOGUARD_CONFIG_FILE, then environ.
func LoadFromEnv(environ map[string]string) (Config, error) {
	cfg := Default()

	if path := strings.TrimSpace(environ["GOGUARD_CONFIG_FILE"]); path != "" {
		if err := loadConfigFile(&cfg, path); err != nil {
			return Config{}, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.Store.Backend = strings.ToLower(strings.TrimSpace(cfg.Store.Backend))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the service-level settings. Tracker settings are checked
// again by the tracker builder.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case BackendRedis:
		if c.Store.RedisAddr == "" {
			return errors.New("GOGUARD_REDIS_ADDR is required for the redis backend")
		}
	case BackendSQLite:
		if c.Store.SQLitePath == "" {
			return errors.New("GOGUARD_SQLITE_PATH is required for the sqlite backend")
		}
	case BackendPostgres:
		if c.Store.PostgresDSN == "" {
			return errors.New("GOGUARD_POSTGRES_DSN is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Store.Backend)
	}
	if c.Server.Addr == "" {
		return errors.New("GOGUARD_HTTP_ADDR must not be empty")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("GOGUARD_HTTP_SHUTDOWN_TIMEOUT must be > 0")
	}
	if c.Metrics.OTelEndpoint != "" {
		if c.Metrics.OTelInterval <= 0 {
			return errors.New("GOGUARD_OTEL_INTERVAL must be > 0")
		}
		if c.Metrics.OTelServiceName == "" {
			return errors.New("GOGUARD_OTEL_SERVICE_NAME must not be empty")
		}
	}
	if _, err := c.Tracker(); err != nil {
		return err
	}
	return nil
}

// Tracker maps the service configuration onto a tracker Config.
func (c Config) Tracker() (goGuard.Config, error) {
	cfg := goGuard.DefaultConfig()

	afterBlock, err := policy.ParseAfterBlock(strings.ToLower(strings.TrimSpace(c.Policy.AfterBlock)))
	if err != nil {
		return goGuard.Config{}, err
	}
	failMode, err := goGuard.ParseFailMode(c.Policy.FailMode)
	if err != nil {
		return goGuard.Config{}, err
	}

	cfg.Policy.MaxAttempts = c.Policy.MaxAttempts
	cfg.Policy.BlockDuration = c.Policy.BlockDuration
	cfg.Policy.RecordTTL = c.Policy.RecordTTL
	cfg.Policy.AfterBlock = afterBlock
	cfg.Policy.Tiers = policy.TiersFor(c.Policy.MaxAttempts)
	if c.tiers != nil {
		cfg.Policy.Tiers = append([]policy.Tier(nil), c.tiers...)
	}
	cfg.Store.RedisPrefix = c.Store.RedisPrefix
	cfg.Store.MaxRetries = c.Store.MaxRetries
	cfg.Audit.Enabled = c.Audit.Enabled
	cfg.Audit.BufferSize = c.Audit.BufferSize
	cfg.Metrics.Enabled = c.Metrics.Enabled
	cfg.Metrics.EnableLatencyHistograms = c.Metrics.LatencyHistograms
	cfg.FailMode = failMode

	if err := cfg.Validate(); err != nil {
		return goGuard.Config{}, err
	}
	return cfg, nil
}
