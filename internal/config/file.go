package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/MrEthical07/goGuard/policy"
	"gopkg.in/yaml.v3"
)

// fileDuration accepts "90s" style strings or bare integers as seconds.
type fileDuration time.Duration

func (d *fileDuration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("invalid duration type")
	}
	if value.Tag == "!!int" {
		var seconds int64
		if err := value.Decode(&seconds); err != nil {
			return err
		}
		*d = fileDuration(time.Duration(seconds) * time.Second)
		return nil
	}
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = fileDuration(parsed)
	return nil
}

type configFile struct {
	Server   *serverFile   `yaml:"server"`
	Store    *storeFile    `yaml:"store"`
	Policy   *policyFile   `yaml:"policy"`
	Audit    *auditFile    `yaml:"audit"`
	Metrics  *metricsFile  `yaml:"metrics"`
	Logging  *loggingFile  `yaml:"logging"`
	Operator *operatorFile `yaml:"operator"`
}

type serverFile struct {
	Addr            *string       `yaml:"addr"`
	ReadTimeout     *fileDuration `yaml:"read_timeout"`
	WriteTimeout    *fileDuration `yaml:"write_timeout"`
	ShutdownTimeout *fileDuration `yaml:"shutdown_timeout"`
	TrustProxy      *bool         `yaml:"trust_proxy"`
}

type storeFile struct {
	Backend       *string       `yaml:"backend"`
	RedisAddr     *string       `yaml:"redis_addr"`
	RedisDB       *int          `yaml:"redis_db"`
	RedisPrefix   *string       `yaml:"redis_prefix"`
	SQLitePath    *string       `yaml:"sqlite_path"`
	PostgresDSN   *string       `yaml:"postgres_dsn"`
	MaxRetries    *int          `yaml:"max_retries"`
	SweepInterval *fileDuration `yaml:"sweep_interval"`
}

type tierFile struct {
	Threshold int    `yaml:"threshold"`
	Level     string `yaml:"level"`
	Message   string `yaml:"message"`
}

type policyFile struct {
	MaxAttempts   *int          `yaml:"max_attempts"`
	BlockDuration *fileDuration `yaml:"block_duration"`
	RecordTTL     *fileDuration `yaml:"record_ttl"`
	AfterBlock    *string       `yaml:"after_block"`
	FailMode      *string       `yaml:"fail_mode"`
	Tiers         *[]tierFile   `yaml:"tiers"`
}

type auditFile struct {
	Enabled    *bool   `yaml:"enabled"`
	BufferSize *int    `yaml:"buffer_size"`
	Output     *string `yaml:"output"`
}

type metricsFile struct {
	Enabled           *bool         `yaml:"enabled"`
	LatencyHistograms *bool         `yaml:"latency_histograms"`
	OTelEndpoint      *string       `yaml:"otel_endpoint"`
	OTelInterval      *fileDuration `yaml:"otel_interval"`
	OTelServiceName   *string       `yaml:"otel_service_name"`
}

type loggingFile struct {
	Level      *string `yaml:"level"`
	Format     *string `yaml:"format"`
	File       *string `yaml:"file"`
	MaxSizeMB  *int    `yaml:"max_size_mb"`
	MaxBackups *int    `yaml:"max_backups"`
	MaxAgeDays *int    `yaml:"max_age_days"`
}

type operatorFile struct {
	SigningMethod  *string       `yaml:"signing_method"`
	PrivateKeyFile *string       `yaml:"private_key_file"`
	PublicKeyFile  *string       `yaml:"public_key_file"`
	Issuer         *string       `yaml:"issuer"`
	Audience       *string       `yaml:"audience"`
	TokenTTL       *fileDuration `yaml:"token_ttl"`
}

func loadConfigFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var file configFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return applyConfigFile(cfg, &file)
}

func applyConfigFile(cfg *Config, file *configFile) error {
	if cfg == nil || file == nil {
		return nil
	}

	if s := file.Server; s != nil {
		setString(&cfg.Server.Addr, s.Addr)
		setDuration(&cfg.Server.ReadTimeout, s.ReadTimeout)
		setDuration(&cfg.Server.WriteTimeout, s.WriteTimeout)
		setDuration(&cfg.Server.ShutdownTimeout, s.ShutdownTimeout)
		setBool(&cfg.Server.TrustProxy, s.TrustProxy)
	}

	if s := file.Store; s != nil {
		setString(&cfg.Store.Backend, s.Backend)
		setString(&cfg.Store.RedisAddr, s.RedisAddr)
		setInt(&cfg.Store.RedisDB, s.RedisDB)
		setString(&cfg.Store.RedisPrefix, s.RedisPrefix)
		if s.SQLitePath != nil {
			cfg.Store.SQLitePath = filepath.Clean(*s.SQLitePath)
		}
		setString(&cfg.Store.PostgresDSN, s.PostgresDSN)
		setInt(&cfg.Store.MaxRetries, s.MaxRetries)
		setDuration(&cfg.Store.SweepInterval, s.SweepInterval)
	}

	if p := file.Policy; p != nil {
		setInt(&cfg.Policy.MaxAttempts, p.MaxAttempts)
		setDuration(&cfg.Policy.BlockDuration, p.BlockDuration)
		setDuration(&cfg.Policy.RecordTTL, p.RecordTTL)
		setString(&cfg.Policy.AfterBlock, p.AfterBlock)
		setString(&cfg.Policy.FailMode, p.FailMode)
		if p.Tiers != nil {
			tiers, err := parseTiers(*p.Tiers)
			if err != nil {
				return err
			}
			cfg.tiers = tiers
		}
	}

	if a := file.Audit; a != nil {
		setBool(&cfg.Audit.Enabled, a.Enabled)
		setInt(&cfg.Audit.BufferSize, a.BufferSize)
		setString(&cfg.Audit.Output, a.Output)
	}

	if m := file.Metrics; m != nil {
		setBool(&cfg.Metrics.Enabled, m.Enabled)
		setBool(&cfg.Metrics.LatencyHistograms, m.LatencyHistograms)
		setString(&cfg.Metrics.OTelEndpoint, m.OTelEndpoint)
		setDuration(&cfg.Metrics.OTelInterval, m.OTelInterval)
		setString(&cfg.Metrics.OTelServiceName, m.OTelServiceName)
	}

	if l := file.Logging; l != nil {
		setString(&cfg.Log.Level, l.Level)
		setString(&cfg.Log.Format, l.Format)
		setString(&cfg.Log.File, l.File)
		setInt(&cfg.Log.MaxSizeMB, l.MaxSizeMB)
		setInt(&cfg.Log.MaxBackups, l.MaxBackups)
		setInt(&cfg.Log.MaxAgeDays, l.MaxAgeDays)
	}

	// Secrets are environment-only.
	if o := file.Operator; o != nil {
		setString(&cfg.Operator.SigningMethod, o.SigningMethod)
		setString(&cfg.Operator.PrivateKeyFile, o.PrivateKeyFile)
		setString(&cfg.Operator.PublicKeyFile, o.PublicKeyFile)
		setString(&cfg.Operator.Issuer, o.Issuer)
		setString(&cfg.Operator.Audience, o.Audience)
		setDuration(&cfg.Operator.TokenTTL, o.TokenTTL)
	}

	return nil
}

func parseTiers(in []tierFile) ([]policy.Tier, error) {
	out := make([]policy.Tier, 0, len(in))
	for _, t := range in {
		var level policy.Level
		switch t.Level {
		case "caution":
			level = policy.LevelCaution
		case "final_warning":
			level = policy.LevelFinalWarning
		default:
			return nil, fmt.Errorf("tier %d: unknown level %q", t.Threshold, t.Level)
		}
		out = append(out, policy.Tier{Threshold: t.Threshold, Level: level, Message: t.Message})
	}
	return out, nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *fileDuration) {
	if v != nil {
		*dst = time.Duration(*v)
	}
}
