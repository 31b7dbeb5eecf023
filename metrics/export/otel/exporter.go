package otel

import (
	"context"
	"errors"
	"fmt"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

const (
	StoreUpName = "goguard_store_up"
	StoreUpHelp = "1 when the attempt store answered the last health check."

	defaultPingTimeout = time.Second
)

// Options labels the exported points.
type Options struct {
	// Backend names the attempt store (redis, sqlite, postgres). Empty
	// omits the backend attribute.
	Backend string
	// PingTimeout bounds the store ping behind goguard_store_up. Zero
	// uses one second.
	PingTimeout time.Duration
}

type metricsSource interface {
	MetricsSnapshot() goGuard.MetricsSnapshot
	AuditDropped() uint64
	FailMode() goGuard.FailMode
}

type pinger interface {
	Ping(ctx context.Context) error
}

type observedCounter struct {
	id         goGuard.MetricID
	instrument metric.Int64ObservableCounter
}

// observedHistogram exports one cumulative bucket series per le bound on a
// single gauge.
type observedHistogram struct {
	id      goGuard.MetricID
	buckets metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
	bounds  [8]metric.MeasurementOption
}

// OTelExporter publishes tracker counters, latency buckets and store health
// as observable instruments on a caller-supplied meter. Every point carries
// the fail_mode attribute and, when configured, the backend attribute.
type OTelExporter struct {
	source       metricsSource
	store        pinger
	pingTimeout  time.Duration
	labels       metric.MeasurementOption
	registration metric.Registration
	counters     []observedCounter
	histograms   []observedHistogram
	auditDropped metric.Int64ObservableCounter
	storeUp      metric.Int64ObservableGauge
}

// NewOTelExporter registers instruments that read from tracker.
func NewOTelExporter(meter metric.Meter, tracker *goGuard.Tracker, opts Options) (*OTelExporter, error) {
	if tracker == nil {
		return nil, ErrNilSource
	}
	return NewOTelExporterFromSource(meter, tracker, opts)
}

// NewOTelExporterFromSource registers instruments over any snapshot source.
// goguard_store_up is registered only when source also has a Ping method.
func NewOTelExporterFromSource(meter metric.Meter, source metricsSource, opts Options) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = defaultPingTimeout
	}

	base := []attribute.KeyValue{attribute.String("fail_mode", source.FailMode().String())}
	if opts.Backend != "" {
		base = append(base, attribute.String("backend", opts.Backend))
	}

	e := &OTelExporter{
		source:      source,
		pingTimeout: opts.PingTimeout,
		labels:      metric.WithAttributeSet(attribute.NewSet(base...)),
		counters:    make([]observedCounter, 0, len(internaldefs.CounterDefs)),
		histograms:  make([]observedHistogram, 0, len(internaldefs.HistogramDefs)),
	}

	var observables []metric.Observable

	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", def.Name, err)
		}
		e.counters = append(e.counters, observedCounter{id: def.ID, instrument: ins})
		observables = append(observables, ins)
	}

	for _, def := range internaldefs.HistogramDefs {
		h := observedHistogram{id: def.ID}

		buckets, err := meter.Int64ObservableGauge(def.Name+"_bucket",
			metric.WithDescription(def.Help+" Cumulative count per le bound."))
		if err != nil {
			return nil, fmt.Errorf("create histogram bucket gauge %s: %w", def.Name, err)
		}
		count, err := meter.Int64ObservableGauge(def.Name+"_count",
			metric.WithDescription("Histogram total sample count."))
		if err != nil {
			return nil, fmt.Errorf("create histogram count gauge %s: %w", def.Name, err)
		}
		h.buckets, h.count = buckets, count

		for i, le := range internaldefs.HistogramBounds {
			attrs := append([]attribute.KeyValue{attribute.String("le", le)}, base...)
			h.bounds[i] = metric.WithAttributeSet(attribute.NewSet(attrs...))
		}

		e.histograms = append(e.histograms, h)
		observables = append(observables, buckets, count)
	}

	auditDropped, err := meter.Int64ObservableCounter(
		internaldefs.AuditDroppedName,
		metric.WithDescription(internaldefs.AuditDroppedHelp),
	)
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	e.auditDropped = auditDropped
	observables = append(observables, auditDropped)

	if p, ok := source.(pinger); ok {
		storeUp, err := meter.Int64ObservableGauge(StoreUpName, metric.WithDescription(StoreUpHelp))
		if err != nil {
			return nil, fmt.Errorf("create store up gauge: %w", err)
		}
		e.store = p
		e.storeUp = storeUp
		observables = append(observables, storeUp)
	}

	registration, err := meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}

	e.registration = registration
	return e, nil
}

func (e *OTelExporter) observe(ctx context.Context, o metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()

	for _, c := range e.counters {
		o.ObserveInt64(c.instrument, int64(snapshot.Counters[c.id]), e.labels)
	}
	for _, h := range e.histograms {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[h.id]))
		for i, v := range cumulative {
			o.ObserveInt64(h.buckets, int64(v), h.bounds[i])
		}
		o.ObserveInt64(h.count, int64(cumulative[len(cumulative)-1]), e.labels)
	}
	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()), e.labels)

	if e.store != nil {
		o.ObserveInt64(e.storeUp, e.storeHealth(ctx), e.labels)
	}
	return nil
}

func (e *OTelExporter) storeHealth(ctx context.Context) int64 {
	ctx, cancel := context.WithTimeout(ctx, e.pingTimeout)
	defer cancel()
	if err := e.store.Ping(ctx); err != nil {
		return 0
	}
	return 1
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
