package goGuard

import (
	"errors"
	"fmt"

	"github.com/MrEthical07/goGuard/attempt"
	"github.com/MrEthical07/goGuard/policy"
)

// Config is the complete tracker configuration. Start from DefaultConfig
// and override fields; Builder.Build validates it.
type Config struct {
	Policy   policy.Config
	Store    StoreConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
	FailMode FailMode
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreConfig applies to the backend the Builder constructs itself from a
// Redis client. Stores passed through WithStore carry their own settings.
type StoreConfig struct {
	RedisPrefix string
	MaxRetries  int
}

/*
====================================
OBSERVABILITY CONFIG
====================================
*/

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the production defaults: five failures, a ten
// minute block, a thirty minute record TTL, fail closed.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Policy: policy.DefaultConfig(),
		Store: StoreConfig{
			RedisPrefix: "gla",
			MaxRetries:  attempt.DefaultMaxRetries,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
		FailMode: FailClosed,
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if cfg.Policy.Tiers != nil {
		out.Policy.Tiers = append([]policy.Tier(nil), cfg.Policy.Tiers...)
	}
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if err := c.Policy.Validate(); err != nil {
		return fmt.Errorf("Policy: %w", err)
	}

	if c.Store.MaxRetries <= 0 {
		return errors.New("Store MaxRetries must be > 0")
	}
	if c.Store.MaxRetries > 64 {
		return errors.New("Store MaxRetries must be <= 64")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	switch c.FailMode {
	case FailClosed, FailOpen:
	default:
		return errors.New("unsupported FailMode")
	}

	return nil
}
