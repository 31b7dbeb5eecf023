// Package internal holds the parts of goGuard that are not public API.
//
// # Sub-packages
//
//   - app: wiring shared by the binaries (backend selection, audit sink, operator tokens)
//   - audit: async event dispatch with a bounded queue
//   - config: service configuration from YAML and GOGUARD_* variables
//   - logging: slog setup with optional rotated file output
//   - metrics: lock-free counters and latency histograms
//   - sqlitemigrate: embedded schema migrations for the sqlite backend
//   - telemetry: OTLP metric push for the server binary
package internal
