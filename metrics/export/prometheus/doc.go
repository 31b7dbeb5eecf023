// Package prometheus renders goGuard tracker metrics in Prometheus text
// exposition format.
//
// [NewPrometheusExporter] wraps a [goGuard.Tracker] and exposes an
// [http.Handler]. Counters are named goguard_*_total and the single
// histogram is goguard_decision_latency_seconds, present only when latency
// histograms are enabled. Nothing is registered globally; callers mount the
// handler themselves.
package prometheus
