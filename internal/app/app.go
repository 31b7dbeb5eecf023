// Package app assembles the tracker, its backend and the operator token
// manager from service configuration. Both binaries share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/attempt"
	"github.com/MrEthical07/goGuard/internal/config"
	"github.com/MrEthical07/goGuard/jwt"
	"github.com/MrEthical07/goGuard/store/postgres"
	"github.com/MrEthical07/goGuard/store/redisstore"
	"github.com/MrEthical07/goGuard/store/sqlite"
	"github.com/redis/go-redis/v9"
)

// Backend is an opened attempt store. Sweeper is nil for Redis, which
// expires records itself.
type Backend struct {
	Name    string
	Store   attempt.Store
	Sweeper attempt.Sweeper
	closers []func() error
}

// Close releases the backend's connections.
func (b *Backend) Close() error {
	if b == nil {
		return nil
	}
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// OpenBackend connects to the configured store and prepares its schema.
func OpenBackend(ctx context.Context, cfg config.StoreConfig) (*Backend, error) {
	switch cfg.Backend {
	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		store := redisstore.New(rdb, cfg.RedisPrefix, cfg.MaxRetries)
		if err := store.Ping(ctx); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		return &Backend{Name: cfg.Backend, Store: store, closers: []func() error{rdb.Close}}, nil

	case config.BackendSQLite:
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("sqlite dir: %w", err)
			}
		}
		store, err := sqlite.Open(ctx, cfg.SQLitePath, cfg.MaxRetries)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		return &Backend{Name: cfg.Backend, Store: store, Sweeper: store, closers: []func() error{store.Close}}, nil

	case config.BackendPostgres:
		pool, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("postgres schema: %w", err)
		}
		store := postgres.New(pool, cfg.MaxRetries)
		closePool := func() error {
			pool.Close()
			return nil
		}
		return &Backend{Name: cfg.Backend, Store: store, Sweeper: store, closers: []func() error{closePool}}, nil

	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// AuditSink opens the configured audit output. The returned closer is a
// no-op for stdout and stderr.
func AuditSink(cfg config.AuditConfig) (goGuard.AuditSink, io.Closer, error) {
	if !cfg.Enabled {
		return nil, nopCloser{}, nil
	}
	switch cfg.Output {
	case "", "stdout":
		return goGuard.NewJSONWriterSink(os.Stdout), nopCloser{}, nil
	case "stderr":
		return goGuard.NewJSONWriterSink(os.Stderr), nopCloser{}, nil
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			return nil, nil, fmt.Errorf("audit output: %w", err)
		}
		return goGuard.NewJSONWriterSink(f), f, nil
	}
}

// BuildTracker builds a tracker over backend.
func BuildTracker(cfg config.Config, backend *Backend, logger *slog.Logger, sink goGuard.AuditSink) (*goGuard.Tracker, error) {
	trackerCfg, err := cfg.Tracker()
	if err != nil {
		return nil, err
	}
	return goGuard.New().
		WithConfig(trackerCfg).
		WithStore(backend.Store).
		WithLogger(logger).
		WithAuditSink(sink).
		Build()
}

// OperatorTokens builds the operator token manager. It returns nil without
// an error when no key material is configured, which leaves the operator
// endpoints unmounted.
func OperatorTokens(cfg config.OperatorConfig) (*jwt.Manager, error) {
	method, err := jwt.ParseSigningMethod(cfg.SigningMethod)
	if err != nil {
		return nil, err
	}

	jc := jwt.Config{
		TokenTTL:      cfg.TokenTTL,
		SigningMethod: method,
		Issuer:        cfg.Issuer,
		Audience:      cfg.Audience,
		Leeway:        30 * time.Second,
		RequireIAT:    true,
	}

	switch method {
	case jwt.MethodHS256:
		if cfg.Secret == "" {
			return nil, nil
		}
		jc.PrivateKey = []byte(cfg.Secret)
	case jwt.MethodEd25519:
		if cfg.PrivateKeyFile == "" && cfg.PublicKeyFile == "" {
			return nil, nil
		}
		if cfg.PrivateKeyFile != "" {
			if jc.PrivateKey, err = os.ReadFile(cfg.PrivateKeyFile); err != nil {
				return nil, fmt.Errorf("operator private key: %w", err)
			}
		}
		if cfg.PublicKeyFile != "" {
			if jc.PublicKey, err = os.ReadFile(cfg.PublicKeyFile); err != nil {
				return nil, fmt.Errorf("operator public key: %w", err)
			}
		}
	}

	return jwt.NewManager(jc)
}
