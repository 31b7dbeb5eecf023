package goGuard

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/MrEthical07/goGuard/attempt"
	internalaudit "github.com/MrEthical07/goGuard/internal/audit"
	internalmetrics "github.com/MrEthical07/goGuard/internal/metrics"
	"github.com/MrEthical07/goGuard/store/redisstore"
	"github.com/redis/go-redis/v9"
)

// Builder assembles a Tracker. Configure it during initialization, call
// Build once, and discard it.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	store  attempt.Store

	logger    *slog.Logger
	auditSink AuditSink
	clock     func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis selects the Redis backend. It is ignored when WithStore is also
// used.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithStore supplies any attempt.Store implementation, such as the sqlite or
// postgres backends.
func (b *Builder) WithStore(store attempt.Store) *Builder {
	b.store = store
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock replaces time.Now. Tests use it to step through block windows.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready Tracker.
func (b *Builder) Build() (*Tracker, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store := b.store
	if store == nil {
		if b.redis == nil {
			return nil, errors.New("attempt store or redis client required")
		}
		store = redisstore.New(b.redis, cfg.Store.RedisPrefix, cfg.Store.MaxRetries)
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	tracker := &Tracker{
		config: cfg,
		store:  store,
		logger: logger,
		now:    clock,
		metrics: internalmetrics.New(internalmetrics.Config{
			Enabled:                 cfg.Metrics.Enabled,
			EnableLatencyHistograms: cfg.Metrics.EnableLatencyHistograms,
		}),
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink),
	}

	b.built = true

	return tracker, nil
}
