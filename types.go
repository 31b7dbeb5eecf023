package goGuard

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	internalaudit "github.com/MrEthical07/goGuard/internal/audit"
	internalmetrics "github.com/MrEthical07/goGuard/internal/metrics"
	"github.com/MrEthical07/goGuard/policy"
)

// Level is the escalation level attached to a Decision.
type Level = policy.Level

const (
	LevelNone         = policy.LevelNone
	LevelCaution      = policy.LevelCaution
	LevelFinalWarning = policy.LevelFinalWarning
	LevelBlocked      = policy.LevelBlocked
)

// FailMode selects what a login gate does when the attempt store cannot
// answer.
type FailMode int

const (
	// FailClosed denies the attempt. It is the default.
	FailClosed FailMode = iota
	// FailOpen lets credential verification proceed without throttling.
	// Cancelled or expired contexts still deny.
	FailOpen
)

func (m FailMode) String() string {
	switch m {
	case FailClosed:
		return "closed"
	case FailOpen:
		return "open"
	default:
		return "unknown"
	}
}

// ParseFailMode maps "closed" or "open" onto a FailMode. Empty selects
// FailClosed.
func ParseFailMode(s string) (FailMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "closed":
		return FailClosed, nil
	case "open":
		return FailOpen, nil
	default:
		return 0, fmt.Errorf("unknown fail mode %q", s)
	}
}

// Decision is what the caller acts on after a check, a recorded failure or
// a guarded login.
//
// Blocked means the attempt must be refused without verifying credentials.
// Message is a user-facing hint and is empty when no tier applies. Verified
// is only set by Guard. Degraded marks a decision made without a store
// answer.
type Decision struct {
	Blocked      bool
	AttemptCount int
	Level        Level
	Message      string
	BlockedUntil time.Time
	RetryAfter   time.Duration
	Verified     bool
	Degraded     bool
}

// Status is the operator view of one identifier's record.
type Status struct {
	Identifier    string
	Present       bool
	FailureCount  int
	LastAttemptAt time.Time
	BlockedUntil  time.Time
	ExpiresAt     time.Time
	Blocked       bool
	RetryAfter    time.Duration
}

// VerifyFunc checks the caller's credentials. ok=false with a nil error is a
// credential failure and is counted; a non-nil error is an infrastructure
// failure and is not.
type VerifyFunc func(ctx context.Context) (ok bool, err error)

// AuditEvent is a structured audit record emitted by the tracker.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the tracker's dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes JSON-encoded events to an [io.Writer], one per line.
type JSONWriterSink = internalaudit.JSONWriterSink

func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// Audit event types.
const (
	AuditFailureRecorded  = internalaudit.EventFailureRecorded
	AuditWarningIssued    = internalaudit.EventWarningIssued
	AuditBlockEntered     = internalaudit.EventBlockEntered
	AuditBlockedAttempt   = internalaudit.EventBlockedAttempt
	AuditReset            = internalaudit.EventReset
	AuditStoreUnavailable = internalaudit.EventStoreUnavailable
	AuditFailOpen         = internalaudit.EventFailOpen
)

// MetricID identifies a counter or histogram in the in-process metrics.
type MetricID = internalmetrics.MetricID

// MetricsSnapshot is a point-in-time copy of all counters and histograms.
type MetricsSnapshot = internalmetrics.Snapshot

const (
	// MetricFailureRecorded counts committed credential failures.
	MetricFailureRecorded = MetricID(internalmetrics.MetricFailureRecorded)
	// MetricWarningIssued counts failures that returned a caution or final warning.
	MetricWarningIssued = MetricID(internalmetrics.MetricWarningIssued)
	// MetricBlockEntered counts failures that started a block.
	MetricBlockEntered = MetricID(internalmetrics.MetricBlockEntered)
	// MetricBlockedAttempt counts attempts refused because a block was active.
	MetricBlockedAttempt = MetricID(internalmetrics.MetricBlockedAttempt)
	MetricCheck          = MetricID(internalmetrics.MetricCheck)
	MetricReset          = MetricID(internalmetrics.MetricReset)
	// MetricVerifySuccess counts Guard calls whose verifier accepted the credentials.
	MetricVerifySuccess = MetricID(internalmetrics.MetricVerifySuccess)
	// MetricVerifyError counts Guard calls whose verifier returned an error.
	MetricVerifyError       = MetricID(internalmetrics.MetricVerifyError)
	MetricStoreUnavailable  = MetricID(internalmetrics.MetricStoreUnavailable)
	MetricContention        = MetricID(internalmetrics.MetricContention)
	MetricInvalidIdentifier = MetricID(internalmetrics.MetricInvalidIdentifier)
	// MetricFailOpen counts Guard calls that proceeded without a store answer.
	MetricFailOpen = MetricID(internalmetrics.MetricFailOpen)
	// MetricDecisionLatency is the histogram of Check and CheckAndRecordFailure latency.
	MetricDecisionLatency = MetricID(internalmetrics.MetricDecisionLatency)
)
