package policy

import (
	"time"

	"github.com/MrEthical07/goGuard/attempt"
)

// Decision is the outcome of evaluating one attempt against a record.
type Decision struct {
	Blocked      bool
	Count        int
	Level        Level
	Message      string
	BlockedUntil time.Time
	RetryAfter   time.Duration
}

// Evaluate applies one recorded failure for identifier to prior at now and
// returns the decision together with the record to persist.
//
// write is false when the stored record must stay untouched, which happens
// only while a block is active: blocked attempts are not counted. prior may be
// nil; a logically expired prior is treated exactly like nil. The returned
// record's Version is left for the store to assign.
func Evaluate(cfg Config, identifier string, prior *attempt.Record, now time.Time) (Decision, *attempt.Record, bool) {
	if prior != nil && prior.Expired(now) {
		prior = nil
	}

	if prior.BlockedAt(now) {
		return blockedDecision(cfg, prior.FailureCount, prior.BlockedUntil, now), prior, false
	}

	base := effectiveCount(cfg, prior)
	next := &attempt.Record{
		Identifier:    identifier,
		FailureCount:  base + 1,
		LastAttemptAt: now,
		ExpiresAt:     now.Add(cfg.RecordTTL),
	}

	if next.FailureCount >= cfg.MaxAttempts {
		next.BlockedUntil = now.Add(cfg.BlockDuration)
		return blockedDecision(cfg, next.FailureCount, next.BlockedUntil, now), next, true
	}

	d := Decision{Count: next.FailureCount}
	if tier, ok := cfg.tierFor(next.FailureCount); ok {
		d.Level = tier.Level
		d.Message = tier.Message
	}
	return d, next, true
}

// Inspect reports the current state of prior without recording anything.
// It backs the cheap pre-verification check.
func Inspect(cfg Config, prior *attempt.Record, now time.Time) Decision {
	if prior == nil || prior.Expired(now) {
		return Decision{}
	}
	if prior.BlockedAt(now) {
		return blockedDecision(cfg, prior.FailureCount, prior.BlockedUntil, now)
	}
	return Decision{Count: effectiveCount(cfg, prior)}
}

// effectiveCount is the failure count the next attempt builds on. A lapsed
// block resets it under AfterBlockReset.
func effectiveCount(cfg Config, prior *attempt.Record) int {
	if prior == nil {
		return 0
	}
	if cfg.AfterBlock == AfterBlockReset && !prior.BlockedUntil.IsZero() {
		return 0
	}
	return prior.FailureCount
}

func blockedDecision(cfg Config, count int, until, now time.Time) Decision {
	remaining := until.Sub(now)
	return Decision{
		Blocked:      true,
		Count:        count,
		Level:        LevelBlocked,
		Message:      cfg.blockedMessage(remaining),
		BlockedUntil: until,
		RetryAfter:   remaining,
	}
}
