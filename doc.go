// Package goGuard is a distributed login-attempt throttling gate.
//
// A [Tracker] keeps one failure record per identifier in a shared
// [attempt.Store] and answers, for each failed sign-in, whether the caller
// gets no message, a caution, a final warning, or a temporary block. It sees
// only the identifier; credentials are verified by the caller, typically via
// [Tracker.Guard].
//
// # Concurrency
//
// Tracker methods are safe to call from many goroutines and many processes.
// There are no in-process locks on the decision path: every recorded failure
// is one conditional read-modify-write in the store, retried a bounded number
// of times on contention. K concurrent failures for one identifier always
// raise its count by exactly K.
//
// # Expiry
//
// Records carry an ExpiresAt and are treated as absent from that instant on.
// The tracker never deletes expired records; Redis key TTLs or the sweeper
// package do, and never before an active block has ended.
//
// # What this package must NOT do
//
//   - Verify passwords or hold credentials.
//   - Keep per-identifier state in memory.
//   - Swallow store errors; they are always returned, and FailMode only decides
//     whether the accompanying Decision is Blocked.
package goGuard
