package goGuard

import (
	"context"
	"errors"
	"log/slog"
)

// Guard runs the login-gate protocol for identifier:
//
//  1. Check; a blocked identifier returns at once and verify is never called.
//  2. verify.
//  3. A credential failure (ok=false, err=nil) is recorded with
//     CheckAndRecordFailure and its decision returned.
//  4. Success resets the record and returns Verified.
//
// An error from verify is returned unchanged and is not counted as a
// failure. When the store cannot answer in step 1, FailClosed denies and
// FailOpen lets verification continue with Degraded set. A done context
// always denies.
func (t *Tracker) Guard(ctx context.Context, identifier string, verify VerifyFunc) (Decision, error) {
	if verify == nil {
		return Decision{}, ErrVerifierRequired
	}

	degraded := false
	d, err := t.Check(ctx, identifier)
	switch {
	case err != nil && !isStoreError(err):
		return d, err
	case err != nil:
		if t.failsClosed(ctx) {
			return d, err
		}
		degraded = true
		t.metrics.Inc(MetricFailOpen)
		t.logger.WarnContext(ctx, "attempt store unavailable; verifying without throttle",
			slog.String("ip", ClientIPFromContext(ctx)),
			slog.String("request_id", RequestIDFromContext(ctx)),
			slog.Any("error", err),
		)
		t.emit(ctx, AuditEvent{EventType: AuditFailOpen, Identifier: identifier, Error: err.Error()})
	case d.Blocked:
		return d, nil
	}

	ok, verr := verify(ctx)
	if verr != nil {
		t.metrics.Inc(MetricVerifyError)
		return Decision{AttemptCount: d.AttemptCount, Degraded: degraded}, verr
	}

	if ok {
		t.metrics.Inc(MetricVerifySuccess)
		out := Decision{Verified: true, Degraded: degraded}
		if err := t.Reset(ctx, identifier); err != nil {
			// Reset already logged it; the login itself stands.
			out.Degraded = true
		}
		return out, nil
	}

	fd, err := t.CheckAndRecordFailure(ctx, identifier)
	if err != nil {
		fd.Degraded = true
		return fd, err
	}
	fd.Degraded = fd.Degraded || degraded
	return fd, nil
}

func isStoreError(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrContention)
}
