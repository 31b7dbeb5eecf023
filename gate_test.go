package goGuard

import (
	"context"
	"errors"
	"testing"
)

func TestGuardSkipsVerifierWhileBlocked(t *testing.T) {
	tracker, _ := newTestTracker(t, testConfig(), newFakeClock(t0), nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := tracker.CheckAndRecordFailure(ctx, "a@x.com"); err != nil {
			t.Fatalf("failure %d: %v", i+1, err)
		}
	}

	called := false
	d, err := tracker.Guard(ctx, "a@x.com", func(context.Context) (bool, error) {
		called = true
		return true, nil
	})
	if err != nil {
		t.Fatalf("Guard failed: %v", err)
	}
	if called {
		t.Fatal("verifier must not run while blocked")
	}
	if !d.Blocked || d.Verified {
		t.Fatalf("expected blocked decision, got %+v", d)
	}
}

func TestGuardSuccessResets(t *testing.T) {
	tracker, mr := newTestTracker(t, testConfig(), newFakeClock(t0), nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := tracker.CheckAndRecordFailure(ctx, "a@x.com"); err != nil {
			t.Fatalf("failure %d: %v", i+1, err)
		}
	}

	d, err := tracker.Guard(ctx, "a@x.com", func(context.Context) (bool, error) { return true, nil })
	if err != nil {
		t.Fatalf("Guard failed: %v", err)
	}
	if !d.Verified || d.Blocked {
		t.Fatalf("expected verified decision, got %+v", d)
	}
	if mr.Exists("test:a@x.com") {
		t.Fatal("expected record cleared after successful verification")
	}
}

func TestGuardRecordsCredentialFailure(t *testing.T) {
	tracker, _ := newTestTracker(t, testConfig(), newFakeClock(t0), nil)
	ctx := context.Background()
	wrong := func(context.Context) (bool, error) { return false, nil }

	var d Decision
	var err error
	for i := 1; i <= 5; i++ {
		d, err = tracker.Guard(ctx, "a@x.com", wrong)
		if err != nil {
			t.Fatalf("Guard %d failed: %v", i, err)
		}
		if d.AttemptCount != i || d.Verified {
			t.Fatalf("Guard %d: unexpected decision %+v", i, d)
		}
	}
	if !d.Blocked || d.Level != LevelBlocked {
		t.Fatalf("expected block on 5th wrong password, got %+v", d)
	}
}

func TestGuardVerifierErrorIsNotCounted(t *testing.T) {
	tracker, mr := newTestTracker(t, testConfig(), newFakeClock(t0), nil)
	idpDown := errors.New("identity provider down")

	_, err := tracker.Guard(context.Background(), "a@x.com", func(context.Context) (bool, error) {
		return false, idpDown
	})
	if !errors.Is(err, idpDown) {
		t.Fatalf("expected verifier error, got %v", err)
	}
	if mr.Exists("test:a@x.com") {
		t.Fatal("infrastructure errors must not be recorded as failures")
	}
	if got := tracker.MetricsSnapshot().Counters[MetricVerifyError]; got != 1 {
		t.Fatalf("expected verify error metric 1, got %d", got)
	}
}

func TestGuardFailModes(t *testing.T) {
	t.Run("closed denies without verifying", func(t *testing.T) {
		tracker, mr := newTestTracker(t, testConfig(), newFakeClock(t0), nil)
		mr.Close()

		called := false
		d, err := tracker.Guard(context.Background(), "a@x.com", func(context.Context) (bool, error) {
			called = true
			return true, nil
		})
		if !errors.Is(err, ErrStoreUnavailable) {
			t.Fatalf("expected ErrStoreUnavailable, got %v", err)
		}
		if called || !d.Blocked || !d.Degraded {
			t.Fatalf("expected degraded denial without verification, got %+v called=%v", d, called)
		}
	})

	t.Run("open verifies", func(t *testing.T) {
		cfg := testConfig()
		cfg.FailMode = FailOpen
		tracker, mr := newTestTracker(t, cfg, newFakeClock(t0), nil)
		mr.Close()

		d, err := tracker.Guard(context.Background(), "a@x.com", func(context.Context) (bool, error) { return true, nil })
		if err != nil {
			t.Fatalf("expected fail-open success, got %v", err)
		}
		if !d.Verified || !d.Degraded {
			t.Fatalf("expected verified degraded decision, got %+v", d)
		}
		if got := tracker.MetricsSnapshot().Counters[MetricFailOpen]; got != 1 {
			t.Fatalf("expected fail-open metric 1, got %d", got)
		}
	})

	t.Run("open still reports failed recording", func(t *testing.T) {
		cfg := testConfig()
		cfg.FailMode = FailOpen
		tracker, mr := newTestTracker(t, cfg, newFakeClock(t0), nil)
		mr.Close()

		d, err := tracker.Guard(context.Background(), "a@x.com", func(context.Context) (bool, error) { return false, nil })
		if !errors.Is(err, ErrStoreUnavailable) {
			t.Fatalf("expected ErrStoreUnavailable, got %v", err)
		}
		if d.Verified || !d.Degraded {
			t.Fatalf("expected unverified degraded decision, got %+v", d)
		}
	})

	t.Run("cancelled context denies under fail open", func(t *testing.T) {
		cfg := testConfig()
		cfg.FailMode = FailOpen
		tracker, _ := newTestTracker(t, cfg, newFakeClock(t0), nil)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		called := false
		d, err := tracker.Guard(ctx, "a@x.com", func(context.Context) (bool, error) {
			called = true
			return true, nil
		})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if called || !d.Blocked {
			t.Fatalf("expected denial without verification, got %+v called=%v", d, called)
		}
	})
}

func TestGuardRejectsBadInput(t *testing.T) {
	tracker, _ := newTestTracker(t, testConfig(), newFakeClock(t0), nil)

	if _, err := tracker.Guard(context.Background(), "a@x.com", nil); !errors.Is(err, ErrVerifierRequired) {
		t.Fatalf("expected ErrVerifierRequired, got %v", err)
	}
	_, err := tracker.Guard(context.Background(), " ", func(context.Context) (bool, error) {
		t.Fatal("verifier must not run for an invalid identifier")
		return false, nil
	})
	if !errors.Is(err, ErrInvalidIdentifier) {
		t.Fatalf("expected ErrInvalidIdentifier, got %v", err)
	}
}
