package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goGuard/attempt"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists attempt records in the login_attempts table.
type Store struct {
	pool       *pgxpool.Pool
	maxRetries int
}

// New returns a Store on pool. A non-positive maxRetries uses
// attempt.DefaultMaxRetries.
func New(pool *pgxpool.Pool, maxRetries int) *Store {
	if maxRetries <= 0 {
		maxRetries = attempt.DefaultMaxRetries
	}
	return &Store{pool: pool, maxRetries: maxRetries}
}

// Ping reports whether the database answers.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", attempt.ErrUnavailable, err)
	}
	return nil
}

// Get returns the stored record or nil.
func (s *Store) Get(ctx context.Context, identifier string) (*attempt.Record, error) {
	rec, err := s.get(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", attempt.ErrUnavailable, err)
	}
	return rec, nil
}

func (s *Store) get(ctx context.Context, identifier string) (*attempt.Record, error) {
	const q = `
		SELECT failure_count, last_attempt_at, blocked_until, expires_at, version
		FROM login_attempts
		WHERE identifier = $1
	`

	var (
		rec          attempt.Record
		blockedUntil pgtype.Timestamptz
		version      int64
	)
	err := s.pool.QueryRow(ctx, q, identifier).Scan(
		&rec.FailureCount,
		&rec.LastAttemptAt,
		&blockedUntil,
		&rec.ExpiresAt,
		&version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	rec.Identifier = identifier
	rec.LastAttemptAt = rec.LastAttemptAt.UTC()
	rec.ExpiresAt = rec.ExpiresAt.UTC()
	if blockedUntil.Valid {
		rec.BlockedUntil = blockedUntil.Time.UTC()
	}
	rec.Version = uint64(version)
	return &rec, nil
}

// Update applies fn under a version compare-and-set, retrying lost races.
func (s *Store) Update(ctx context.Context, identifier string, now time.Time, fn attempt.Mutator) (*attempt.Record, error) {
	for i := 0; i < s.maxRetries; i++ {
		prior, err := s.get(ctx, identifier)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", attempt.ErrUnavailable, err)
		}

		next, write := fn(prior)
		if !write {
			return prior, nil
		}

		next = next.Clone()
		next.Identifier = identifier
		next.Version = attempt.NextVersion(prior)

		won, err := s.commit(ctx, prior, next)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", attempt.ErrUnavailable, err)
		}
		if won {
			return next, nil
		}
	}
	return nil, attempt.ErrContention
}

func (s *Store) commit(ctx context.Context, prior, next *attempt.Record) (bool, error) {
	if prior == nil {
		const q = `
			INSERT INTO login_attempts (
				identifier, failure_count, last_attempt_at, blocked_until, expires_at, reclaimable_at, version
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (identifier) DO NOTHING
		`
		tag, err := s.pool.Exec(ctx, q,
			next.Identifier,
			next.FailureCount,
			next.LastAttemptAt,
			nullIfZero(next.BlockedUntil),
			next.ExpiresAt,
			next.ReclaimableAt(),
			int64(next.Version),
		)
		if err != nil {
			return false, err
		}
		return tag.RowsAffected() == 1, nil
	}

	const q = `
		UPDATE login_attempts
		SET failure_count = $2,
			last_attempt_at = $3,
			blocked_until = $4,
			expires_at = $5,
			reclaimable_at = $6,
			version = $7
		WHERE identifier = $1 AND version = $8
	`
	tag, err := s.pool.Exec(ctx, q,
		next.Identifier,
		next.FailureCount,
		next.LastAttemptAt,
		nullIfZero(next.BlockedUntil),
		next.ExpiresAt,
		next.ReclaimableAt(),
		int64(next.Version),
		int64(prior.Version),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Reset deletes the record for identifier.
func (s *Store) Reset(ctx context.Context, identifier string) error {
	const q = `DELETE FROM login_attempts WHERE identifier = $1`
	if _, err := s.pool.Exec(ctx, q, identifier); err != nil {
		return fmt.Errorf("%w: %v", attempt.ErrUnavailable, err)
	}
	return nil
}

// Sweep deletes rows whose expiry and block have both passed.
func (s *Store) Sweep(ctx context.Context, now time.Time) (int64, error) {
	const q = `DELETE FROM login_attempts WHERE reclaimable_at <= $1`
	tag, err := s.pool.Exec(ctx, q, now)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", attempt.ErrUnavailable, err)
	}
	return tag.RowsAffected(), nil
}

func nullIfZero(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
