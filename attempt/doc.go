// Package attempt defines the attempt record model, its binary encoding, and
// the storage contract every backend implements.
//
// # Concurrency contract
//
// Store.Update is a read-modify-write that must be linearizable per
// identifier: two concurrent updates for the same key are applied one after
// the other, never both against the same prior state. Backends achieve this
// with an optimistic conditional write (Redis WATCH/MULTI, SQL version
// column) and retry internally up to a bounded budget before returning
// ErrContention. No in-process lock is involved, so several processes may
// share one store.
//
// # Expiry contract
//
// Every record carries ExpiresAt. Readers treat an expired record as absent.
// Physical deletion is left to the backend's own TTL or to an external
// Sweeper, which must never delete a record whose BlockedUntil is still in
// the future (see Record.ReclaimableAt).
//
// # What this package must NOT do
//
//   - Make policy decisions (those live in package policy).
//   - Import goGuard or any backend package.
package attempt
