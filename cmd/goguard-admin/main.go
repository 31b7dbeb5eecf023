// Command goguard-admin performs operator tasks against the configured
// attempt store.
//
// Usage:
//
//	goguard-admin token -subject oncall -scopes attempts:read,attempts:write
//	goguard-admin sweep
//	goguard-admin inspect alice@example.com
//	goguard-admin unlock alice@example.com
//
// Configuration comes from the same GOGUARD_* variables as the server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/internal/app"
	"github.com/MrEthical07/goGuard/internal/config"
	"github.com/MrEthical07/goGuard/internal/logging"
	"github.com/MrEthical07/goGuard/jwt"
	"github.com/MrEthical07/goGuard/sweeper"
)

const usage = `usage: goguard-admin <command> [flags]

commands:
  token    mint an operator token
  sweep    delete reclaimable records once (sqlite, postgres)
  inspect  print the record for an identifier
  unlock   clear the record for an identifier
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "goguard-admin:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New(strings.TrimSpace(usage))
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	switch args[0] {
	case "token":
		return runToken(cfg, args[1:], out)
	case "sweep":
		return runSweep(ctx, cfg, out)
	case "inspect":
		return runInspect(ctx, cfg, args[1:], out)
	case "unlock":
		return runUnlock(ctx, cfg, args[1:], out)
	case "help", "-h", "--help":
		_, err := io.WriteString(out, usage)
		return err
	default:
		return fmt.Errorf("unknown command %q\n%s", args[0], usage)
	}
}

func runToken(cfg config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	subject := fs.String("subject", "", "operator name recorded in the token")
	scopes := fs.String("scopes", string(jwt.ScopeRead), "comma-separated scopes")
	ttl := fs.Duration("ttl", cfg.Operator.TokenTTL, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg.Operator.TokenTTL = *ttl
	tokens, err := app.OperatorTokens(cfg.Operator)
	if err != nil {
		return err
	}
	if tokens == nil {
		return errors.New("no operator key configured: set GOGUARD_OPERATOR_SECRET or GOGUARD_OPERATOR_PRIVATE_KEY_FILE")
	}

	var granted []jwt.Scope
	for _, s := range strings.Split(*scopes, ",") {
		switch scope := jwt.Scope(strings.TrimSpace(s)); scope {
		case jwt.ScopeRead, jwt.ScopeWrite:
			granted = append(granted, scope)
		case "":
		default:
			return fmt.Errorf("unknown scope %q", s)
		}
	}

	token, err := tokens.Issue(*subject, granted...)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}

func runSweep(ctx context.Context, cfg config.Config, out io.Writer) error {
	backend, err := app.OpenBackend(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer backend.Close()

	if backend.Sweeper == nil {
		_, err := fmt.Fprintf(out, "%s expires records itself; nothing to sweep\n", backend.Name)
		return err
	}

	logger, closer, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return err
	}
	defer closer.Close()

	removed, err := sweeper.New(backend.Sweeper, 0, sweeper.WithLogger(logger)).RunOnce(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "removed %d records\n", removed)
	return err
}

func openTracker(ctx context.Context, cfg config.Config) (*goGuard.Tracker, *app.Backend, error) {
	backend, err := app.OpenBackend(ctx, cfg.Store)
	if err != nil {
		return nil, nil, err
	}
	tracker, err := app.BuildTracker(cfg, backend, nil, nil)
	if err != nil {
		_ = backend.Close()
		return nil, nil, err
	}
	return tracker, backend, nil
}

func identifierArg(cmd string, args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("usage: goguard-admin %s <identifier>", cmd)
	}
	return goGuard.NormalizeIdentifier(args[0]), nil
}

func runInspect(ctx context.Context, cfg config.Config, args []string, out io.Writer) error {
	id, err := identifierArg("inspect", args)
	if err != nil {
		return err
	}
	tracker, backend, err := openTracker(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.Close()
	defer tracker.Close()

	st, err := tracker.Status(ctx, id)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Identifier    string    `json:"identifier"`
		Present       bool      `json:"present"`
		FailureCount  int       `json:"failure_count"`
		LastAttemptAt time.Time `json:"last_attempt_at,omitzero"`
		BlockedUntil  time.Time `json:"blocked_until,omitzero"`
		ExpiresAt     time.Time `json:"expires_at,omitzero"`
		Blocked       bool      `json:"blocked"`
		RetryAfter    string    `json:"retry_after,omitempty"`
	}{
		Identifier:    st.Identifier,
		Present:       st.Present,
		FailureCount:  st.FailureCount,
		LastAttemptAt: st.LastAttemptAt,
		BlockedUntil:  st.BlockedUntil,
		ExpiresAt:     st.ExpiresAt,
		Blocked:       st.Blocked,
		RetryAfter:    retryAfter(st.RetryAfter),
	})
}

func runUnlock(ctx context.Context, cfg config.Config, args []string, out io.Writer) error {
	id, err := identifierArg("unlock", args)
	if err != nil {
		return err
	}
	tracker, backend, err := openTracker(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.Close()
	defer tracker.Close()

	if err := tracker.Reset(ctx, id); err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "unlocked %s\n", id)
	return err
}

func retryAfter(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	return d.Round(time.Second).String()
}
