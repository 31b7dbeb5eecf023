// Package telemetry pushes tracker metrics to an OTLP/HTTP collector.
package telemetry

import (
	"context"
	"errors"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	otelexport "github.com/MrEthical07/goGuard/metrics/export/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const meterName = "github.com/MrEthical07/goGuard"

// Config selects the collector and how the points are labelled.
type Config struct {
	Endpoint    string // OTLP/HTTP metrics URL; empty disables the pipeline
	Interval    time.Duration
	ServiceName string
	Backend     string
}

// Setup starts a periodic OTLP export of tracker's metrics.
//
// Export is opt-in: with an empty Endpoint Setup returns a no-op shutdown
// function. The returned shutdown flushes the last collection and should be
// deferred by the caller.
func Setup(ctx context.Context, cfg Config, tracker *goGuard.Tracker) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }

	if cfg.Endpoint == "" {
		return noop, nil
	}

	exporter, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpointURL(cfg.Endpoint))
	if err != nil {
		return noop, err
	}

	var opts []sdkmetric.PeriodicReaderOption
	if cfg.Interval > 0 {
		opts = append(opts, sdkmetric.WithInterval(cfg.Interval))
	}
	return start(ctx, cfg, tracker, sdkmetric.NewPeriodicReader(exporter, opts...))
}

func start(ctx context.Context, cfg Config, tracker *goGuard.Tracker, reader sdkmetric.Reader) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
		),
	)
	if err != nil {
		return noop, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(res),
	)

	instruments, err := otelexport.NewOTelExporter(mp.Meter(meterName), tracker, otelexport.Options{Backend: cfg.Backend})
	if err != nil {
		_ = mp.Shutdown(ctx)
		return noop, err
	}

	return func(ctx context.Context) error {
		return errors.Join(instruments.Close(), mp.Shutdown(ctx))
	}, nil
}
