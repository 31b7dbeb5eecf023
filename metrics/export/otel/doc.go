// Package otel exports goGuard tracker metrics through an OpenTelemetry meter.
//
// Each counter becomes an Int64ObservableCounter. The decision latency
// histogram is one gauge with an le attribute per bound plus a _count gauge.
// When the source can be pinged, goguard_store_up reports store health at
// each collection. All points carry fail_mode and, when set, backend
// attributes. One callback reads [goGuard.Tracker.MetricsSnapshot] per
// collection cycle. The caller owns the MeterProvider.
package otel
