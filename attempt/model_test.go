package attempt

import (
	"testing"
	"time"
)

func TestRecordExpiredBoundary(t *testing.T) {
	r := testRecord()

	if r.Expired(r.ExpiresAt.Add(-time.Millisecond)) {
		t.Fatal("record must not be expired before ExpiresAt")
	}
	if !r.Expired(r.ExpiresAt) {
		t.Fatal("record must be expired exactly at ExpiresAt")
	}

	var missing *Record
	if !missing.Expired(time.Now()) {
		t.Fatal("nil record must report expired")
	}
}

func TestRecordBlockedAt(t *testing.T) {
	r := testRecord()

	if !r.BlockedAt(r.LastAttemptAt) {
		t.Fatal("expected blocked inside window")
	}
	if r.BlockedAt(r.BlockedUntil) {
		t.Fatal("block must lapse exactly at BlockedUntil")
	}

	r.BlockedUntil = time.Time{}
	if r.BlockedAt(r.LastAttemptAt) {
		t.Fatal("zero BlockedUntil must never block")
	}
}

func TestReclaimableAtNeverPrecedesActiveBlock(t *testing.T) {
	r := testRecord()
	r.ExpiresAt = r.LastAttemptAt.Add(time.Minute)

	if got := r.ReclaimableAt(); !got.Equal(r.BlockedUntil) {
		t.Fatalf("expected ReclaimableAt=%v, got %v", r.BlockedUntil, got)
	}
	if r.Reclaimable(r.ExpiresAt) {
		t.Fatal("record with active block must not be reclaimable")
	}
	if !r.Reclaimable(r.BlockedUntil) {
		t.Fatal("record must be reclaimable once the block lapses")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	r := testRecord()
	c := r.Clone()
	c.FailureCount++

	if r.FailureCount == c.FailureCount {
		t.Fatal("mutating clone changed the original")
	}
}

func TestNextVersion(t *testing.T) {
	prior := &Record{Version: 41}
	if got := NextVersion(prior); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}

	seen := make(map[uint64]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		v := NextVersion(nil)
		if v == 0 || v > 1<<62 {
			t.Fatalf("fresh version %d out of range", v)
		}
		if _, dup := seen[v]; dup {
			t.Fatalf("fresh version %d repeated", v)
		}
		seen[v] = struct{}{}
	}
}
