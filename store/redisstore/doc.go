// Package redisstore implements attempt.Store on Redis.
//
// # Design
//
// Records are stored as attempt.Encode bytes under "<prefix>:<identifier>".
// Update uses WATCH/MULTI optimistic transactions with bounded retry on
// redis.TxFailedErr, so concurrent failures for one identifier never read the
// same stale count. Every SET carries a PX expiry of ReclaimableAt-now: Redis
// itself is the reclamation process and can never drop a record while its
// block is still active.
//
// # What this package must NOT do
//
//   - Make throttle decisions (the Mutator passed to Update does that).
//   - Hold in-process locks; correctness must hold across processes.
package redisstore
