// Package httpapi exposes the tracker over HTTP for login services that do
// not link the library directly.
//
// When the store cannot be reached, check and failure answer 503 with
// "degraded": true and the verdict of the configured fail mode: blocked
// under fail-closed, not blocked under fail-open. Reset answers a bare 503.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/jwt"
	"github.com/MrEthical07/goGuard/middleware"
)

const maxBodyBytes = 4 << 10

// Tracker is the subset of *goGuard.Tracker the handlers call.
type Tracker interface {
	Check(ctx context.Context, identifier string) (goGuard.Decision, error)
	CheckAndRecordFailure(ctx context.Context, identifier string) (goGuard.Decision, error)
	Reset(ctx context.Context, identifier string) error
	Status(ctx context.Context, identifier string) (goGuard.Status, error)
	Ping(ctx context.Context) error
}

var _ Tracker = (*goGuard.Tracker)(nil)

// Options wires the optional parts of the API.
type Options struct {
	// Operator verifies bearer tokens for the operator endpoints. Nil
	// leaves those endpoints unmounted.
	Operator middleware.TokenParser
	// Metrics serves GET /metrics when set.
	Metrics http.Handler
	Logger  *slog.Logger
	// TrustProxy takes the client IP from X-Forwarded-For.
	TrustProxy    bool
	HealthTimeout time.Duration
}

// Server holds the HTTP handlers.
type Server struct {
	tracker Tracker
	opts    Options
	logger  *slog.Logger
}

// New returns a Server backed by tracker.
func New(tracker Tracker, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.HealthTimeout <= 0 {
		opts.HealthTimeout = 2 * time.Second
	}
	return &Server{tracker: tracker, opts: opts, logger: logger}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/attempts/check", s.handleCheck)
	mux.HandleFunc("POST /v1/attempts/failure", s.handleFailure)
	mux.HandleFunc("POST /v1/attempts/reset", s.handleReset)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	if s.opts.Operator != nil {
		read := middleware.RequireOperator(s.opts.Operator, jwt.ScopeRead)
		write := middleware.RequireOperator(s.opts.Operator, jwt.ScopeWrite)
		mux.Handle("GET /v1/operator/attempts/{identifier}", read(http.HandlerFunc(s.handleInspect)))
		mux.Handle("DELETE /v1/operator/attempts/{identifier}", write(http.HandlerFunc(s.handleUnlock)))
	}
	if s.opts.Metrics != nil {
		mux.Handle("GET /metrics", s.opts.Metrics)
	}

	return middleware.RequestMetadata(s.opts.TrustProxy)(mux)
}

type attemptRequest struct {
	Identifier string `json:"identifier"`
}

type decisionResponse struct {
	Blocked           bool   `json:"blocked"`
	AttemptCount      int    `json:"attempt_count"`
	Level             string `json:"level"`
	Message           string `json:"message,omitempty"`
	RetryAfterSeconds int64  `json:"retry_after_seconds"`
}

type statusResponse struct {
	Identifier        string     `json:"identifier"`
	Present           bool       `json:"present"`
	FailureCount      int        `json:"failure_count"`
	LastAttemptAt     *time.Time `json:"last_attempt_at,omitempty"`
	BlockedUntil      *time.Time `json:"blocked_until,omitempty"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	Blocked           bool       `json:"blocked"`
	RetryAfterSeconds int64      `json:"retry_after_seconds"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// degradedResponse is the 503 body for check and failure during a store
// outage. It embeds the fail-mode verdict.
type degradedResponse struct {
	Error    string `json:"error"`
	Degraded bool   `json:"degraded"`
	decisionResponse
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	id, ok := s.decodeIdentifier(w, r)
	if !ok {
		return
	}
	d, err := s.tracker.Check(r.Context(), id)
	s.writeDecision(w, r, "check", d, err)
}

func (s *Server) handleFailure(w http.ResponseWriter, r *http.Request) {
	id, ok := s.decodeIdentifier(w, r)
	if !ok {
		return
	}
	d, err := s.tracker.CheckAndRecordFailure(r.Context(), id)
	s.writeDecision(w, r, "failure", d, err)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	id, ok := s.decodeIdentifier(w, r)
	if !ok {
		return
	}
	if err := s.tracker.Reset(r.Context(), id); err != nil {
		s.writeError(w, r, "reset", err)
		return
	}
	writeJSON(w, http.StatusOK, decisionResponse{Level: goGuard.LevelNone.String()})
}

func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	id := goGuard.NormalizeIdentifier(r.PathValue("identifier"))
	st, err := s.tracker.Status(r.Context(), id)
	if err != nil {
		s.writeError(w, r, "inspect", err)
		return
	}

	resp := statusResponse{
		Identifier:        st.Identifier,
		Present:           st.Present,
		FailureCount:      st.FailureCount,
		LastAttemptAt:     timePtr(st.LastAttemptAt),
		BlockedUntil:      timePtr(st.BlockedUntil),
		ExpiresAt:         timePtr(st.ExpiresAt),
		Blocked:           st.Blocked,
		RetryAfterSeconds: seconds(st.RetryAfter),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	id := goGuard.NormalizeIdentifier(r.PathValue("identifier"))
	if err := s.tracker.Reset(r.Context(), id); err != nil {
		s.writeError(w, r, "unlock", err)
		return
	}

	operator := ""
	if claims, ok := middleware.OperatorFromContext(r.Context()); ok {
		operator = claims.Subject
	}
	s.logger.InfoContext(r.Context(), "identifier unlocked by operator",
		slog.String("operator", operator),
		slog.String("request_id", goGuard.RequestIDFromContext(r.Context())),
	)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.opts.HealthTimeout)
	defer cancel()

	if err := s.tracker.Ping(ctx); err != nil {
		s.logger.WarnContext(r.Context(), "health check failed", slog.Any("error", err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) decodeIdentifier(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req attemptRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad_request"})
		return "", false
	}
	return goGuard.NormalizeIdentifier(req.Identifier), true
}

func (s *Server) writeDecision(w http.ResponseWriter, r *http.Request, op string, d goGuard.Decision, err error) {
	resp := decisionResponse{
		Blocked:           d.Blocked,
		AttemptCount:      d.AttemptCount,
		Level:             d.Level.String(),
		Message:           d.Message,
		RetryAfterSeconds: seconds(d.RetryAfter),
	}
	if err != nil {
		if d.Degraded && isUnavailable(err) {
			writeJSON(w, http.StatusServiceUnavailable, degradedResponse{
				Error:            "unavailable",
				Degraded:         true,
				decisionResponse: resp,
			})
			return
		}
		s.writeError(w, r, op, err)
		return
	}

	if d.Blocked && resp.RetryAfterSeconds > 0 {
		w.Header().Set("Retry-After", strconv.FormatInt(resp.RetryAfterSeconds, 10))
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeError maps tracker errors onto status codes. Store details never reach
// the client.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, goGuard.ErrInvalidIdentifier):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_identifier"})
	case isUnavailable(err):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "unavailable"})
	default:
		s.logger.ErrorContext(r.Context(), "attempt api failed", slog.String("op", op), slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal"})
	}
}

func isUnavailable(err error) bool {
	return errors.Is(err, goGuard.ErrStoreUnavailable) ||
		errors.Is(err, goGuard.ErrContention) ||
		errors.Is(err, goGuard.ErrTrackerNotReady)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// seconds rounds up so a client never retries before the block ends.
func seconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64(math.Ceil(d.Seconds()))
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}
