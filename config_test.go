package goGuard

import (
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/goGuard/policy"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.FailMode != FailClosed {
		t.Fatalf("expected fail-closed default, got %s", cfg.FailMode)
	}
	if cfg.Policy.MaxAttempts != 5 || cfg.Policy.BlockDuration != 10*time.Minute || cfg.Policy.RecordTTL != 30*time.Minute {
		t.Fatalf("unexpected policy defaults %+v", cfg.Policy)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "policy", mutate: func(c *Config) { c.Policy.MaxAttempts = 0 }, wantErr: "Policy"},
		{name: "ttl shorter than block", mutate: func(c *Config) { c.Policy.RecordTTL = time.Minute }, wantErr: "Policy"},
		{name: "retries", mutate: func(c *Config) { c.Store.MaxRetries = 0 }, wantErr: "MaxRetries"},
		{name: "retries upper bound", mutate: func(c *Config) { c.Store.MaxRetries = 65 }, wantErr: "MaxRetries"},
		{name: "audit buffer", mutate: func(c *Config) { c.Audit.Enabled = true; c.Audit.BufferSize = 0 }, wantErr: "BufferSize"},
		{name: "latency without metrics", mutate: func(c *Config) {
			c.Metrics.Enabled = false
			c.Metrics.EnableLatencyHistograms = true
		}, wantErr: "EnableLatencyHistograms"},
		{name: "fail mode", mutate: func(c *Config) { c.FailMode = FailMode(7) }, wantErr: "FailMode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestWithConfigClonesTiers(t *testing.T) {
	cfg := DefaultConfig()
	b := New().WithConfig(cfg)
	cfg.Policy.Tiers[0].Message = "mutated"

	if b.config.Policy.Tiers[0].Message == "mutated" {
		t.Fatal("builder must not share the caller's tier slice")
	}
}

func TestBuildRequiresStore(t *testing.T) {
	if _, err := New().Build(); err == nil {
		t.Fatal("expected error without store or redis")
	}
}

func TestBuildRejectsReuse(t *testing.T) {
	_, rdb := newTestRedis(t)
	b := New().WithRedis(rdb)
	tracker, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer tracker.Close()

	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	_, rdb := newTestRedis(t)
	cfg := DefaultConfig()
	cfg.Policy.Tiers = []policy.Tier{{Threshold: 9, Level: policy.LevelCaution}}

	if _, err := New().WithConfig(cfg).WithRedis(rdb).Build(); err == nil {
		t.Fatal("expected invalid tier to fail Build")
	}
}
