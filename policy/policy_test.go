package policy

import (
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/goGuard/attempt"
)

var t0 = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

// apply mimics a store: it persists next only when write is true.
func apply(cfg Config, rec *attempt.Record, now time.Time) (Decision, *attempt.Record) {
	d, next, write := Evaluate(cfg, "a@x.com", rec, now)
	if write {
		return d, next
	}
	return d, rec
}

func TestEvaluateWarningTiersAndBlock(t *testing.T) {
	cfg := DefaultConfig()
	var rec *attempt.Record

	want := []struct {
		blocked bool
		level   Level
	}{
		{false, LevelNone},
		{false, LevelNone},
		{false, LevelCaution},
		{false, LevelFinalWarning},
		{true, LevelBlocked},
	}

	for i, w := range want {
		now := t0.Add(time.Duration(i) * time.Second)
		var d Decision
		d, rec = apply(cfg, rec, now)

		if d.Count != i+1 {
			t.Fatalf("attempt %d: expected count %d, got %d", i+1, i+1, d.Count)
		}
		if d.Blocked != w.blocked || d.Level != w.level {
			t.Fatalf("attempt %d: expected blocked=%v level=%s, got blocked=%v level=%s", i+1, w.blocked, w.level, d.Blocked, d.Level)
		}
		if w.level == LevelNone && d.Message != "" {
			t.Fatalf("attempt %d: expected no message, got %q", i+1, d.Message)
		}
		if w.level != LevelNone && d.Message == "" {
			t.Fatalf("attempt %d: expected a message", i+1)
		}
	}

	blockedAt := t0.Add(4 * time.Second)
	if !rec.BlockedUntil.Equal(blockedAt.Add(cfg.BlockDuration)) {
		t.Fatalf("expected BlockedUntil=%v, got %v", blockedAt.Add(cfg.BlockDuration), rec.BlockedUntil)
	}
	if !rec.ExpiresAt.Equal(blockedAt.Add(cfg.RecordTTL)) {
		t.Fatalf("expected ExpiresAt=%v, got %v", blockedAt.Add(cfg.RecordTTL), rec.ExpiresAt)
	}
}

func TestEvaluateBlockedDoesNotIncrement(t *testing.T) {
	cfg := DefaultConfig()
	rec := &attempt.Record{
		Identifier:    "a@x.com",
		FailureCount:  5,
		LastAttemptAt: t0,
		BlockedUntil:  t0.Add(10 * time.Minute),
		ExpiresAt:     t0.Add(30 * time.Minute),
		Version:       5,
	}

	for i := 1; i <= 3; i++ {
		now := t0.Add(time.Duration(i) * time.Minute)
		d, next, write := Evaluate(cfg, "a@x.com", rec, now)
		if write {
			t.Fatalf("call %d: blocked evaluation must not write", i)
		}
		if !d.Blocked || d.Count != 5 {
			t.Fatalf("call %d: expected blocked with count 5, got %+v", i, d)
		}
		if next != rec {
			t.Fatalf("call %d: blocked evaluation must return prior unchanged", i)
		}
		if d.RetryAfter != rec.BlockedUntil.Sub(now) {
			t.Fatalf("call %d: unexpected RetryAfter %v", i, d.RetryAfter)
		}
	}
}

func TestEvaluateAfterBlockLapses(t *testing.T) {
	lapsed := func() *attempt.Record {
		return &attempt.Record{
			Identifier:    "a@x.com",
			FailureCount:  5,
			LastAttemptAt: t0,
			BlockedUntil:  t0.Add(10 * time.Minute),
			ExpiresAt:     t0.Add(30 * time.Minute),
		}
	}
	now := t0.Add(11 * time.Minute)

	t.Run("reset", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.AfterBlock = AfterBlockReset

		d, next, write := Evaluate(cfg, "a@x.com", lapsed(), now)
		if !write {
			t.Fatal("expected write")
		}
		if d.Blocked || d.Count != 1 || d.Message != "" {
			t.Fatalf("expected fresh count 1 without message, got %+v", d)
		}
		if !next.BlockedUntil.IsZero() {
			t.Fatalf("expected block cleared, got %v", next.BlockedUntil)
		}
	})

	t.Run("escalate", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.AfterBlock = AfterBlockEscalate

		d, next, write := Evaluate(cfg, "a@x.com", lapsed(), now)
		if !write {
			t.Fatal("expected write")
		}
		if !d.Blocked || d.Count != 6 {
			t.Fatalf("expected immediate re-block at count 6, got %+v", d)
		}
		if !next.BlockedUntil.Equal(now.Add(cfg.BlockDuration)) {
			t.Fatalf("expected new block window, got %v", next.BlockedUntil)
		}
	})
}

func TestEvaluateTreatsExpiredRecordAsAbsent(t *testing.T) {
	cfg := DefaultConfig()
	stale := &attempt.Record{
		Identifier:    "a@x.com",
		FailureCount:  4,
		LastAttemptAt: t0,
		ExpiresAt:     t0.Add(cfg.RecordTTL),
	}

	d, next, write := Evaluate(cfg, "a@x.com", stale, stale.ExpiresAt)
	if !write || d.Count != 1 || next.FailureCount != 1 {
		t.Fatalf("expected expired record to count as fresh, got decision=%+v next=%+v", d, next)
	}
}

func TestEvaluateExampleScenario(t *testing.T) {
	cfg := DefaultConfig()
	var rec *attempt.Record
	var d Decision

	for i := 0; i < 4; i++ {
		d, rec = apply(cfg, rec, t0)
	}
	if d.Message != defaultFinalWarningMessage {
		t.Fatalf("4th failure: expected final warning, got %q", d.Message)
	}

	d, rec = apply(cfg, rec, t0)
	if !d.Blocked || !strings.Contains(d.Message, "locked for 10 minutes") {
		t.Fatalf("5th failure: expected lock message, got %+v", d)
	}

	d, rec = apply(cfg, rec, t0.Add(time.Minute))
	if !d.Blocked || d.Count != 5 || !strings.Contains(d.Message, "9 minutes") {
		t.Fatalf("6th call: expected still blocked with 9 minutes left, got %+v", d)
	}

	d, _ = apply(cfg, rec, t0.Add(11*time.Minute))
	if d.Blocked || d.Count != 1 {
		t.Fatalf("7th call: expected reset-after-block count 1, got %+v", d)
	}
}

func TestInspectIsReadOnly(t *testing.T) {
	cfg := DefaultConfig()

	if d := Inspect(cfg, nil, t0); d.Blocked || d.Count != 0 {
		t.Fatalf("expected empty decision for absent record, got %+v", d)
	}

	rec := &attempt.Record{
		FailureCount:  2,
		LastAttemptAt: t0,
		ExpiresAt:     t0.Add(cfg.RecordTTL),
	}
	if d := Inspect(cfg, rec, t0.Add(time.Minute)); d.Blocked || d.Count != 2 {
		t.Fatalf("expected count 2 unblocked, got %+v", d)
	}
	if rec.FailureCount != 2 {
		t.Fatal("Inspect mutated the record")
	}

	rec.FailureCount = 5
	rec.BlockedUntil = t0.Add(cfg.BlockDuration)
	if d := Inspect(cfg, rec, t0.Add(time.Minute)); !d.Blocked || d.Level != LevelBlocked {
		t.Fatalf("expected blocked decision, got %+v", d)
	}
	if d := Inspect(cfg, rec, t0.Add(cfg.BlockDuration)); d.Blocked || d.Count != 0 {
		t.Fatalf("expected lapsed block to inspect as fresh under reset mode, got %+v", d)
	}
}

func TestCustomTiersEvaluatedHighestFirst(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxAttempts = 10
	cfg.Tiers = []Tier{
		{Threshold: 2, Level: LevelCaution, Message: "two"},
		{Threshold: 8, Level: LevelFinalWarning, Message: "eight"},
		{Threshold: 5, Level: LevelCaution, Message: "five"},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	cases := map[int]string{1: "", 2: "two", 4: "two", 5: "five", 7: "five", 8: "eight", 9: "eight"}
	for count, want := range cases {
		rec := &attempt.Record{FailureCount: count - 1, ExpiresAt: t0.Add(time.Hour)}
		d, _, _ := Evaluate(cfg, "k", rec, t0)
		if d.Message != want {
			t.Fatalf("count %d: expected %q, got %q", count, want, d.Message)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{name: "defaults", mutate: func(*Config) {}, wantValid: true},
		{name: "zero max attempts", mutate: func(c *Config) { c.MaxAttempts = 0; c.Tiers = nil }, wantValid: false},
		{name: "zero block", mutate: func(c *Config) { c.BlockDuration = 0 }, wantValid: false},
		{name: "ttl shorter than block", mutate: func(c *Config) { c.RecordTTL = 5 * time.Minute }, wantValid: false},
		{name: "tier at max attempts", mutate: func(c *Config) { c.Tiers = []Tier{{Threshold: 5, Level: LevelCaution}} }, wantValid: false},
		{name: "tier blocked level", mutate: func(c *Config) { c.Tiers = []Tier{{Threshold: 2, Level: LevelBlocked}} }, wantValid: false},
		{name: "duplicate tier", mutate: func(c *Config) {
			c.Tiers = []Tier{{Threshold: 2, Level: LevelCaution}, {Threshold: 2, Level: LevelFinalWarning}}
		}, wantValid: false},
		{name: "no tiers", mutate: func(c *Config) { c.Tiers = nil }, wantValid: true},
		{name: "bad after-block", mutate: func(c *Config) { c.AfterBlock = 9 }, wantValid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantValid && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tt.wantValid && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestDefaultBlockedMessageRoundsUp(t *testing.T) {
	cases := map[time.Duration]string{
		10 * time.Minute:            "10 minutes",
		9*time.Minute + time.Second: "10 minutes",
		30 * time.Second:            "1 minute.",
		time.Minute:                 "1 minute.",
		0:                           "1 minute.",
	}
	for remaining, want := range cases {
		if got := DefaultBlockedMessage(remaining); !strings.Contains(got, want) {
			t.Fatalf("remaining %v: expected %q in %q", remaining, want, got)
		}
	}
}

func TestTiersForScalesWithMaxAttempts(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5, 10} {
		cfg := DefaultConfig()
		cfg.MaxAttempts = n
		cfg.Tiers = TiersFor(n)
		if err := cfg.Validate(); err != nil {
			t.Fatalf("TiersFor(%d) invalid: %v", n, err)
		}
	}

	tiers := TiersFor(10)
	if len(tiers) != 2 || tiers[0].Threshold != 9 || tiers[1].Threshold != 8 {
		t.Fatalf("unexpected tiers %+v", tiers)
	}
	if got := TiersFor(2); len(got) != 1 || got[0].Level != LevelFinalWarning {
		t.Fatalf("expected only a final warning for two attempts, got %+v", got)
	}
}
