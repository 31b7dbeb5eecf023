package goGuard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/MrEthical07/goGuard/attempt"
	internalaudit "github.com/MrEthical07/goGuard/internal/audit"
	internalmetrics "github.com/MrEthical07/goGuard/internal/metrics"
	"github.com/MrEthical07/goGuard/policy"
)

const unavailableMessage = "Sign-in is temporarily unavailable. Please try again shortly."

// Tracker is the attempt-throttling gate. It is safe for concurrent use and
// keeps no per-identifier state in memory: every decision is a single atomic
// read-modify-write against the configured store.
type Tracker struct {
	config  Config
	store   attempt.Store
	logger  *slog.Logger
	now     func() time.Time
	metrics *internalmetrics.Metrics
	audit   *internalaudit.Dispatcher
}

type pinger interface {
	Ping(ctx context.Context) error
}

func (t *Tracker) ready() error {
	if t == nil || t.store == nil {
		return ErrTrackerNotReady
	}
	return nil
}

func (t *Tracker) checkIdentifier(identifier string) error {
	if err := validateIdentifier(identifier); err != nil {
		t.metrics.Inc(MetricInvalidIdentifier)
		return err
	}
	return nil
}

// CheckAndRecordFailure records one failed credential verification for
// identifier and returns the resulting decision.
//
// While a block is active nothing is written and the decision is Blocked
// with the remaining time. Otherwise the count is incremented atomically; the
// failure that reaches the configured maximum starts a block.
//
// On a store error the error is always returned. Under FailClosed the
// decision is additionally Blocked and Degraded.
func (t *Tracker) CheckAndRecordFailure(ctx context.Context, identifier string) (Decision, error) {
	if err := t.ready(); err != nil {
		return Decision{}, err
	}
	if err := t.checkIdentifier(identifier); err != nil {
		return Decision{}, err
	}

	start := time.Now()
	now := t.now()

	var (
		result policy.Decision
		wrote  bool
	)
	_, err := t.store.Update(ctx, identifier, now, func(prior *attempt.Record) (*attempt.Record, bool) {
		d, next, write := policy.Evaluate(t.config.Policy, identifier, prior, now)
		result, wrote = d, write
		return next, write
	})
	if err != nil {
		return t.storeFailure(ctx, identifier, "record_failure", err)
	}
	t.metrics.Observe(MetricDecisionLatency, time.Since(start))

	t.observeFailure(ctx, identifier, result, wrote)
	return fromPolicy(result), nil
}

// Check reports whether identifier is currently blocked without recording
// anything. It is the cheap gate to run before verifying credentials.
func (t *Tracker) Check(ctx context.Context, identifier string) (Decision, error) {
	if err := t.ready(); err != nil {
		return Decision{}, err
	}
	if err := t.checkIdentifier(identifier); err != nil {
		return Decision{}, err
	}

	start := time.Now()
	rec, err := t.store.Get(ctx, identifier)
	if err != nil {
		return t.storeFailure(ctx, identifier, "check", err)
	}
	t.metrics.Inc(MetricCheck)

	d := policy.Inspect(t.config.Policy, rec, t.now())
	t.metrics.Observe(MetricDecisionLatency, time.Since(start))

	if d.Blocked {
		t.metrics.Inc(MetricBlockedAttempt)
		t.emit(ctx, AuditEvent{
			EventType:  AuditBlockedAttempt,
			Identifier: identifier,
			Metadata:   retryMetadata(d),
		})
	}
	return fromPolicy(d), nil
}

// Reset clears the record for identifier after a successful verification.
// Resetting an identifier with no record succeeds.
func (t *Tracker) Reset(ctx context.Context, identifier string) error {
	if err := t.ready(); err != nil {
		return err
	}
	if err := t.checkIdentifier(identifier); err != nil {
		return err
	}

	if err := t.store.Reset(ctx, identifier); err != nil {
		wrapped := t.classify(ctx, err)
		t.logger.WarnContext(ctx, "attempt reset failed",
			slog.String("ip", ClientIPFromContext(ctx)),
			slog.String("request_id", RequestIDFromContext(ctx)),
			slog.Any("error", err),
		)
		t.emit(ctx, AuditEvent{
			EventType:  AuditStoreUnavailable,
			Identifier: identifier,
			Error:      wrapped.Error(),
			Metadata:   map[string]string{"op": "reset"},
		})
		return wrapped
	}

	t.metrics.Inc(MetricReset)
	t.emit(ctx, AuditEvent{EventType: AuditReset, Identifier: identifier, Success: true})
	return nil
}

// Status returns the operator view of identifier's record. A logically
// expired record is reported as not present. Status has no fail mode: store
// errors are returned as is.
func (t *Tracker) Status(ctx context.Context, identifier string) (Status, error) {
	if err := t.ready(); err != nil {
		return Status{}, err
	}
	if err := t.checkIdentifier(identifier); err != nil {
		return Status{}, err
	}

	rec, err := t.store.Get(ctx, identifier)
	if err != nil {
		return Status{Identifier: identifier}, t.classify(ctx, err)
	}

	now := t.now()
	s := Status{Identifier: identifier}
	if rec == nil || rec.Expired(now) {
		return s, nil
	}

	s.Present = true
	s.FailureCount = rec.FailureCount
	s.LastAttemptAt = rec.LastAttemptAt
	s.BlockedUntil = rec.BlockedUntil
	s.ExpiresAt = rec.ExpiresAt
	if rec.BlockedAt(now) {
		s.Blocked = true
		s.RetryAfter = rec.BlockedUntil.Sub(now)
	}
	return s, nil
}

// Ping reports whether the store answers. Stores without a health check are
// assumed healthy.
func (t *Tracker) Ping(ctx context.Context) error {
	if err := t.ready(); err != nil {
		return err
	}
	p, ok := t.store.(pinger)
	if !ok {
		return nil
	}
	if err := p.Ping(ctx); err != nil {
		return t.classify(ctx, err)
	}
	return nil
}

// FailMode reports the configured fail mode.
func (t *Tracker) FailMode() FailMode {
	if t == nil {
		return FailClosed
	}
	return t.config.FailMode
}

func (t *Tracker) MetricsSnapshot() MetricsSnapshot {
	if t == nil {
		return internalmetrics.New(internalmetrics.Config{}).Snapshot()
	}
	return t.metrics.Snapshot()
}

func (t *Tracker) AuditDropped() uint64 {
	if t == nil {
		return 0
	}
	return t.audit.Dropped()
}

// Close flushes pending audit events. The store is owned by the caller and
// is left open.
func (t *Tracker) Close() {
	if t == nil {
		return
	}
	t.audit.Close()
}

func (t *Tracker) observeFailure(ctx context.Context, identifier string, d policy.Decision, wrote bool) {
	if d.Blocked && !wrote {
		t.metrics.Inc(MetricBlockedAttempt)
		t.emit(ctx, AuditEvent{
			EventType:  AuditBlockedAttempt,
			Identifier: identifier,
			Metadata:   retryMetadata(d),
		})
		return
	}

	t.metrics.Inc(MetricFailureRecorded)
	t.emit(ctx, AuditEvent{
		EventType:  AuditFailureRecorded,
		Identifier: identifier,
		Metadata:   map[string]string{"count": strconv.Itoa(d.Count)},
	})

	switch {
	case d.Blocked:
		t.metrics.Inc(MetricBlockEntered)
		t.emit(ctx, AuditEvent{
			EventType:  AuditBlockEntered,
			Identifier: identifier,
			Metadata:   retryMetadata(d),
		})
	case d.Level != LevelNone:
		t.metrics.Inc(MetricWarningIssued)
		t.emit(ctx, AuditEvent{
			EventType:  AuditWarningIssued,
			Identifier: identifier,
			Metadata: map[string]string{
				"count": strconv.Itoa(d.Count),
				"level": d.Level.String(),
			},
		})
	}
}

// storeFailure applies the fail mode to a store error on the decision path.
func (t *Tracker) storeFailure(ctx context.Context, identifier, op string, err error) (Decision, error) {
	wrapped := t.classify(ctx, err)
	closed := t.failsClosed(ctx)

	t.logger.WarnContext(ctx, "attempt store error",
		slog.String("op", op),
		slog.Bool("fail_closed", closed),
		slog.String("ip", ClientIPFromContext(ctx)),
		slog.String("request_id", RequestIDFromContext(ctx)),
		slog.Any("error", err),
	)
	t.emit(ctx, AuditEvent{
		EventType:  AuditStoreUnavailable,
		Identifier: identifier,
		Error:      wrapped.Error(),
		Metadata:   map[string]string{"op": op},
	})

	if closed {
		return Decision{
			Blocked:  true,
			Level:    LevelBlocked,
			Message:  unavailableMessage,
			Degraded: true,
		}, wrapped
	}
	return Decision{Degraded: true}, wrapped
}

// classify maps err onto the exported sentinels. A done context always wins
// so callers can tell cancellation from a backend fault.
func (t *Tracker) classify(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		t.metrics.Inc(MetricStoreUnavailable)
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, ctxErr)
	}
	if errors.Is(err, ErrContention) {
		t.metrics.Inc(MetricContention)
		return err
	}
	t.metrics.Inc(MetricStoreUnavailable)
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func (t *Tracker) failsClosed(ctx context.Context) bool {
	return t.config.FailMode != FailOpen || ctx.Err() != nil
}

func (t *Tracker) emit(ctx context.Context, event AuditEvent) {
	if t.audit == nil {
		return
	}
	event.Timestamp = t.now().UTC()
	event.IP = ClientIPFromContext(ctx)
	event.RequestID = RequestIDFromContext(ctx)
	t.audit.Emit(ctx, event)
}

func retryMetadata(d policy.Decision) map[string]string {
	return map[string]string{
		"count":               strconv.Itoa(d.Count),
		"retry_after_seconds": strconv.FormatInt(int64(d.RetryAfter.Round(time.Second)/time.Second), 10),
	}
}

func fromPolicy(d policy.Decision) Decision {
	return Decision{
		Blocked:      d.Blocked,
		AttemptCount: d.Count,
		Level:        d.Level,
		Message:      d.Message,
		BlockedUntil: d.BlockedUntil,
		RetryAfter:   d.RetryAfter,
	}
}
