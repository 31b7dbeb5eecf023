// Command goguard-server serves the attempt tracker over HTTP. For SQL
// backends it also runs the reclamation sweeper.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/MrEthical07/goGuard/httpapi"
	"github.com/MrEthical07/goGuard/internal/app"
	"github.com/MrEthical07/goGuard/internal/config"
	"github.com/MrEthical07/goGuard/internal/logging"
	"github.com/MrEthical07/goGuard/internal/telemetry"
	"github.com/MrEthical07/goGuard/metrics/export/prometheus"
	"github.com/MrEthical07/goGuard/sweeper"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, logCloser, err := logging.New(logging.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		return err
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := app.OpenBackend(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer backend.Close()

	sink, auditCloser, err := app.AuditSink(cfg.Audit)
	if err != nil {
		return err
	}
	defer auditCloser.Close()

	tracker, err := app.BuildTracker(cfg, backend, logger.With("component", "tracker"), sink)
	if err != nil {
		return err
	}
	defer tracker.Close()

	shutdownTelemetry, err := telemetry.Setup(ctx, telemetry.Config{
		Endpoint:    cfg.Metrics.OTelEndpoint,
		Interval:    cfg.Metrics.OTelInterval,
		ServiceName: cfg.Metrics.OTelServiceName,
		Backend:     backend.Name,
	}, tracker)
	if err != nil {
		return fmt.Errorf("otel metrics: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("otel metrics shutdown", slog.Any("error", err))
		}
	}()
	if cfg.Metrics.OTelEndpoint != "" {
		logger.Info("otel metrics export enabled", slog.Duration("interval", cfg.Metrics.OTelInterval))
	}

	tokens, err := app.OperatorTokens(cfg.Operator)
	if err != nil {
		return err
	}

	opts := httpapi.Options{
		Metrics:    prometheus.NewPrometheusExporter(tracker).Handler(),
		Logger:     logger.With("component", "httpapi"),
		TrustProxy: cfg.Server.TrustProxy,
	}
	if tokens != nil {
		opts.Operator = tokens
	} else {
		logger.Warn("operator endpoints disabled: no operator key configured")
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           httpapi.New(tracker, opts).Handler(),
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server listening",
			slog.String("addr", cfg.Server.Addr),
			slog.String("backend", backend.Name),
			slog.String("fail_mode", tracker.FailMode().String()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	if backend.Sweeper != nil {
		w := sweeper.New(backend.Sweeper, cfg.Store.SweepInterval,
			sweeper.WithLogger(logger.With("component", "sweeper")),
		)
		g.Go(func() error { return w.Start(gctx) })
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if dropped := tracker.AuditDropped(); dropped > 0 {
		logger.Warn("audit events dropped", slog.Uint64("count", dropped))
	}
	return nil
}
