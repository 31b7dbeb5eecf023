// Package sweeper runs the external reclamation pass for attempt stores that
// do not expire records on their own.
package sweeper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/MrEthical07/goGuard/attempt"
)

// DefaultInterval is used when a Worker is built with a non-positive interval.
const DefaultInterval = time.Minute

// Worker periodically deletes reclaimable attempt records.
type Worker struct {
	store    attempt.Sweeper
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// Option customizes a Worker.
type Option func(*Worker)

// WithLogger sets the worker's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithClock overrides the time source handed to Sweep.
func WithClock(now func() time.Time) Option {
	return func(w *Worker) {
		if now != nil {
			w.now = now
		}
	}
}

// WithTimeout bounds a single sweep pass.
func WithTimeout(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.timeout = d
		}
	}
}

// New creates a worker for store.
func New(store attempt.Sweeper, interval time.Duration, opts ...Option) *Worker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	w := &Worker{
		store:    store,
		interval: interval,
		timeout:  30 * time.Second,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start sweeps once immediately and then every interval until ctx is done.
// It always returns nil so it can run inside an errgroup next to the HTTP
// server without tearing it down over a failed pass.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "sweeper starting", slog.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.run(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.InfoContext(ctx, "sweeper stopping")
			return nil
		case <-ticker.C:
			w.run(ctx)
		}
	}
}

// RunOnce performs a single sweep and returns the number of deleted records.
func (w *Worker) RunOnce(ctx context.Context) (int64, error) {
	if w == nil || w.store == nil {
		return 0, errors.New("sweeper has no store")
	}
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	return w.store.Sweep(ctx, w.now())
}

func (w *Worker) run(ctx context.Context) {
	removed, err := w.RunOnce(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		w.logger.ErrorContext(ctx, "sweep failed", slog.Any("error", err))
		return
	}
	if removed > 0 {
		w.logger.InfoContext(ctx, "swept reclaimable attempt records", slog.Int64("count", removed))
	}
}
