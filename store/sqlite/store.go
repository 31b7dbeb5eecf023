// Package sqlite provides a SQLite-backed attempt store for single-node
// deployments.
//
// Writes compare-and-set on the version column: the first failure inserts with
// ON CONFLICT DO NOTHING and later failures update WHERE version matches the
// version that was read. Zero affected rows means a concurrent writer won and
// the read-modify-write is retried. Fresh inserts take a random starting
// version, so a compare-and-set from before a Reset never matches the row
// inserted after it. Rows are only deleted by Reset and Sweep.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/MrEthical07/goGuard/attempt"
	"github.com/MrEthical07/goGuard/internal/sqlitemigrate"
	"github.com/MrEthical07/goGuard/store/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store persists attempt records in SQLite.
type Store struct {
	sqlDB      *sql.DB
	maxRetries int
}

func toMillis(value time.Time) int64 {
	if value.IsZero() {
		return 0
	}
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	if value == 0 {
		return time.Time{}
	}
	return time.UnixMilli(value).UTC()
}

// Open opens the database at path and applies embedded migrations.
func Open(ctx context.Context, path string, maxRetries int) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("storage path is required")
	}
	if maxRetries <= 0 {
		maxRetries = attempt.DefaultMaxRetries
	}

	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer connection; other processes are serialized by busy_timeout.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.Apply(ctx, sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, maxRetries: maxRetries}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Ping reports whether the database answers.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.sqlDB.PingContext(ctx); err != nil {
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
		WHERE identifier = ?`

	var (
		count                    int
		last, blocked, expiresAt int64
		version                  int64
	)
	err := s.sqlDB.QueryRowContext(ctx, q, identifier).Scan(&count, &last, &blocked, &expiresAt, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &attempt.Record{
		Identifier:    identifier,
		FailureCount:  count,
		LastAttemptAt: fromMillis(last),
		BlockedUntil:  fromMillis(blocked),
		ExpiresAt:     fromMillis(expiresAt),
		Version:       uint64(version),
	}, nil
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
	var (
		res sql.Result
		err error
	)
	if prior == nil {
		const q = `
			INSERT INTO login_attempts (
				identifier, failure_count, last_attempt_at, blocked_until, expires_at, reclaimable_at, version
			) VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (identifier) DO NOTHING`
		res, err = s.sqlDB.ExecContext(ctx, q,
			next.Identifier,
			next.FailureCount,
			toMillis(next.LastAttemptAt),
			toMillis(next.BlockedUntil),
			toMillis(next.ExpiresAt),
			toMillis(next.ReclaimableAt()),
			int64(next.Version),
		)
	} else {
		const q = `
			UPDATE login_attempts
			SET failure_count = ?, last_attempt_at = ?, blocked_until = ?, expires_at = ?, reclaimable_at = ?, version = ?
			WHERE identifier = ? AND version = ?`
		res, err = s.sqlDB.ExecContext(ctx, q,
			next.FailureCount,
			toMillis(next.LastAttemptAt),
			toMillis(next.BlockedUntil),
			toMillis(next.ExpiresAt),
			toMillis(next.ReclaimableAt()),
			int64(next.Version),
			next.Identifier,
			int64(prior.Version),
		)
	}
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Reset deletes the record for identifier.
func (s *Store) Reset(ctx context.Context, identifier string) error {
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM login_attempts WHERE identifier = ?`, identifier); err != nil {
		return fmt.Errorf("%w: %v", attempt.ErrUnavailable, err)
	}
	return nil
}

// Sweep deletes rows that are both expired and past any block.
func (s *Store) Sweep(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM login_attempts WHERE reclaimable_at <= ?`, toMillis(now))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", attempt.ErrUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", attempt.ErrUnavailable, err)
	}
	return n, nil
}
