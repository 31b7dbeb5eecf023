package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MrEthical07/goGuard/internal/app"
	"github.com/MrEthical07/goGuard/internal/config"
	"github.com/MrEthical07/goGuard/jwt"
)

func useSQLite(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "admin.db")
	t.Setenv("GOGUARD_BACKEND", "sqlite")
	t.Setenv("GOGUARD_SQLITE_PATH", path)
	return path
}

func TestTokenCommandMintsScopedToken(t *testing.T) {
	useSQLite(t)
	secret := strings.Repeat("k", 32)
	t.Setenv("GOGUARD_OPERATOR_SECRET", secret)

	var out bytes.Buffer
	err := run(context.Background(), []string{"token", "-subject", "oncall", "-scopes", "attempts:read, attempts:write"}, &out)
	if err != nil {
		t.Fatalf("token: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	mgr, err := app.OperatorTokens(cfg.Operator)
	if err != nil {
		t.Fatalf("OperatorTokens: %v", err)
	}
	claims, err := mgr.Parse(strings.TrimSpace(out.String()))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Subject != "oncall" || !claims.HasScope(jwt.ScopeWrite) {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestTokenCommandErrors(t *testing.T) {
	useSQLite(t)

	if err := run(context.Background(), []string{"token", "-subject", "oncall"}, &bytes.Buffer{}); err == nil {
		t.Fatal("expected error without operator key")
	}

	t.Setenv("GOGUARD_OPERATOR_SECRET", strings.Repeat("k", 32))
	if err := run(context.Background(), []string{"token", "-subject", "oncall", "-scopes", "root"}, &bytes.Buffer{}); err == nil {
		t.Fatal("expected error for unknown scope")
	}
}

func TestInspectAndUnlock(t *testing.T) {
	useSQLite(t)
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	tracker, backend, err := openTracker(ctx, cfg)
	if err != nil {
		t.Fatalf("openTracker: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := tracker.CheckAndRecordFailure(ctx, "alice@example.com"); err != nil {
			t.Fatalf("record failure: %v", err)
		}
	}
	tracker.Close()
	_ = backend.Close()

	var out bytes.Buffer
	if err := run(ctx, []string{"inspect", "Alice@Example.com"}, &out); err != nil {
		t.Fatalf("inspect: %v", err)
	}
	var got struct {
		Present      bool `json:"present"`
		FailureCount int  `json:"failure_count"`
	}
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("decode inspect output: %v\n%s", err, out.String())
	}
	if !got.Present || got.FailureCount != 2 {
		t.Fatalf("unexpected inspect output %s", out.String())
	}

	out.Reset()
	if err := run(ctx, []string{"unlock", "alice@example.com"}, &out); err != nil {
		t.Fatalf("unlock: %v", err)
	}

	out.Reset()
	if err := run(ctx, []string{"inspect", "alice@example.com"}, &out); err != nil {
		t.Fatalf("inspect after unlock: %v", err)
	}
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("decode inspect output: %v", err)
	}
	if got.Present {
		t.Fatalf("expected record cleared, got %s", out.String())
	}
}

func TestSweepAndUsage(t *testing.T) {
	useSQLite(t)

	var out bytes.Buffer
	if err := run(context.Background(), []string{"sweep"}, &out); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if !strings.Contains(out.String(), "removed 0 records") {
		t.Fatalf("unexpected sweep output %q", out.String())
	}

	if err := run(context.Background(), nil, &out); err == nil {
		t.Fatal("expected usage error without a command")
	}
	if err := run(context.Background(), []string{"bogus"}, &out); err == nil {
		t.Fatal("expected error for unknown command")
	}
	if err := run(context.Background(), []string{"inspect"}, &out); err == nil {
		t.Fatal("expected error without identifier")
	}
}
