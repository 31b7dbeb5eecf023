// Package policy is the pure decision logic of the attempt tracker.
//
// Evaluate maps (prior record, now) to a Decision and the next record; it
// performs no I/O and reads no clock, so it runs unchanged inside any
// backend's compare-and-set retry loop.
//
// # State machine
//
//   - absent / logically expired → counted as zero failures.
//   - blocked (now < BlockedUntil) → Blocked, record untouched, count frozen.
//   - otherwise → count+1, LastAttemptAt=now, ExpiresAt=now+RecordTTL;
//     count >= MaxAttempts enters a block of BlockDuration, lower counts pick
//     the highest matching warning tier.
//
// What happens to the count once a block lapses is selected by AfterBlock.
package policy
