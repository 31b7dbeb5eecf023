package attempt

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnavailable indicates the backing store could not serve the request.
	ErrUnavailable = errors.New("attempt store unavailable")
	// ErrContention indicates the bounded compare-and-set retries were exhausted.
	ErrContention = errors.New("attempt store contention")
)

// DefaultMaxRetries is the compare-and-set retry budget used when a backend
// is constructed with a non-positive value.
const DefaultMaxRetries = 8

// Mutator computes the next state of a record. prior is nil when the record
// is absent. Returning write=false leaves the stored record untouched.
//
// A Mutator may be invoked more than once per Update when the backend loses a
// compare-and-set race; it must not have side effects beyond its return
// values.
type Mutator func(prior *Record) (next *Record, write bool)

// Store is the durable, per-identifier linearizable home of attempt records.
type Store interface {
	// Get returns the stored record or nil when none exists. It does not
	// filter logically expired records; callers decide with Record.Expired.
	Get(ctx context.Context, identifier string) (*Record, error)

	// Update atomically applies fn to the current record and commits the
	// result. It returns the committed record, or the unchanged prior when fn
	// chose not to write.
	Update(ctx context.Context, identifier string, now time.Time, fn Mutator) (*Record, error)

	// Reset deletes the record. Resetting an absent identifier succeeds.
	Reset(ctx context.Context, identifier string) error
}

// Sweeper is implemented by backends that need an external process to
// physically delete stale records. Sweep must only remove records for which
// Record.Reclaimable(now) holds.
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) (int64, error)
}
