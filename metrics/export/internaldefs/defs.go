package internaldefs

import (
	goGuard "github.com/MrEthical07/goGuard"
)

// CounterDef names one tracker counter for export.
type CounterDef struct {
	ID   goGuard.MetricID
	Name string
	Help string
}

// HistogramDef names one tracker histogram for export.
type HistogramDef struct {
	ID   goGuard.MetricID
	Name string
	Help string
}

// Audit backpressure counter.
const (
	AuditDroppedName = "goguard_audit_dropped_total"
	AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
)

var CounterDefs = []CounterDef{
	{ID: goGuard.MetricFailureRecorded, Name: "goguard_failure_recorded_total", Help: "Credential failures committed to the attempt store."},
	{ID: goGuard.MetricWarningIssued, Name: "goguard_warning_issued_total", Help: "Failures answered with a caution or final warning."},
	{ID: goGuard.MetricBlockEntered, Name: "goguard_block_entered_total", Help: "Failures that started a block."},
	{ID: goGuard.MetricBlockedAttempt, Name: "goguard_blocked_attempt_total", Help: "Attempts refused because a block was active."},
	{ID: goGuard.MetricCheck, Name: "goguard_check_total", Help: "Block-state checks."},
	{ID: goGuard.MetricReset, Name: "goguard_reset_total", Help: "Records cleared after a successful login or operator unlock."},
	{ID: goGuard.MetricVerifySuccess, Name: "goguard_verify_success_total", Help: "Guarded logins whose credentials were accepted."},
	{ID: goGuard.MetricVerifyError, Name: "goguard_verify_error_total", Help: "Guarded logins whose verifier failed."},
	{ID: goGuard.MetricStoreUnavailable, Name: "goguard_store_unavailable_total", Help: "Operations that could not reach the attempt store."},
	{ID: goGuard.MetricContention, Name: "goguard_contention_total", Help: "Operations that exhausted compare-and-set retries."},
	{ID: goGuard.MetricInvalidIdentifier, Name: "goguard_invalid_identifier_total", Help: "Calls rejected for a malformed identifier."},
	{ID: goGuard.MetricFailOpen, Name: "goguard_fail_open_total", Help: "Guarded logins that proceeded without a store answer."},
}

var HistogramDefs = []HistogramDef{
	{ID: goGuard.MetricDecisionLatency, Name: "goguard_decision_latency_seconds", Help: "Check and record-failure latency histogram."},
}

// HistogramBounds are the upper bounds, in seconds, of the tracker's
// latency buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// NormalizeBuckets pads or truncates raw to the fixed bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
