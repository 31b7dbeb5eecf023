package attempt

import (
	"math/rand/v2"
	"time"
)

// Record is the persisted failure counter for one identifier.
//
// BlockedUntil is the zero time when no block has been applied. Version is
// advanced by every committed write and is what SQL backends compare-and-set on.
// A fresh insert starts from a random version, so a writer holding a version
// read before a Reset cannot match the row inserted after it.
type Record struct {
	Identifier    string
	FailureCount  int
	LastAttemptAt time.Time
	BlockedUntil  time.Time
	ExpiresAt     time.Time
	Version       uint64
}

// NextVersion returns the version for the record that replaces prior. A nil
// prior gets a random version in [1, 2^62], leaving room to increment.
func NextVersion(prior *Record) uint64 {
	if prior != nil {
		return prior.Version + 1
	}
	return rand.Uint64N(1<<62) + 1
}

// Clone returns a copy that can be mutated without touching r.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	return &out
}

// Expired reports whether the record is logically expired at now. Expired
// records are treated as absent by every read path.
func (r *Record) Expired(now time.Time) bool {
	if r == nil {
		return true
	}
	return !now.Before(r.ExpiresAt)
}

// BlockedAt reports whether now falls inside the block window.
func (r *Record) BlockedAt(now time.Time) bool {
	if r == nil || r.BlockedUntil.IsZero() {
		return false
	}
	return now.Before(r.BlockedUntil)
}

// ReclaimableAt is the earliest instant at which an external reclaimer may
// physically delete the record: the later of ExpiresAt and BlockedUntil.
func (r *Record) ReclaimableAt() time.Time {
	if r == nil {
		return time.Time{}
	}
	if r.BlockedUntil.After(r.ExpiresAt) {
		return r.BlockedUntil
	}
	return r.ExpiresAt
}

// Reclaimable reports whether a reclaimer observing the store at now may
// delete the record.
func (r *Record) Reclaimable(now time.Time) bool {
	if r == nil {
		return false
	}
	return !now.Before(r.ReclaimableAt())
}
