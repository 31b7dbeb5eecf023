package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goGuard/attempt"
	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "gla"

// Store keeps one binary-encoded attempt record per identifier in Redis.
type Store struct {
	redis      redis.UniversalClient
	prefix     string
	maxRetries int
}

// New creates a Redis-backed attempt store. An empty prefix uses "gla" and a
// non-positive maxRetries uses attempt.DefaultMaxRetries.
func New(redisClient redis.UniversalClient, prefix string, maxRetries int) *Store {
	if prefix == "" {
		prefix = defaultPrefix
	}
	if maxRetries <= 0 {
		maxRetries = attempt.DefaultMaxRetries
	}
	return &Store{
		redis:      redisClient,
		prefix:     prefix,
		maxRetries: maxRetries,
	}
}

func (s *Store) key(identifier string) string {
	return s.prefix + ":" + identifier
}

// Get returns the stored record, or nil when the key is missing or holds
// bytes that no longer decode.
func (s *Store) Get(ctx context.Context, identifier string) (*attempt.Record, error) {
	return readRecord(ctx, s.redis, s.key(identifier))
}

// Update runs fn inside WATCH/MULTI on the record key. A concurrent write to
// the key aborts the EXEC and the whole read-modify-write is retried.
func (s *Store) Update(ctx context.Context, identifier string, now time.Time, fn attempt.Mutator) (*attempt.Record, error) {
	key := s.key(identifier)

	for i := 0; i < s.maxRetries; i++ {
		var committed *attempt.Record

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			prior, err := readRecord(ctx, tx, key)
			if err != nil {
				return err
			}

			next, write := fn(prior)
			if !write {
				committed = prior
				return nil
			}

			next = next.Clone()
			next.Identifier = identifier
			next.Version = attempt.NextVersion(prior)

			encoded, err := attempt.Encode(next)
			if err != nil {
				return err
			}

			// Redis expiry is the reclamation process; it must outlive any block.
			ttl := next.ReclaimableAt().Sub(now)
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				if ttl < time.Millisecond {
					pipe.Del(ctx, key)
					return nil
				}
				pipe.Set(ctx, key, encoded, ttl)
				return nil
			})
			if err != nil {
				return err
			}

			committed = next
			return nil
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			if errors.Is(err, attempt.ErrUnavailable) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %v", attempt.ErrUnavailable, err)
		}

		return committed, nil
	}

	return nil, attempt.ErrContention
}

// Reset deletes the record; deleting a missing key is not an error.
func (s *Store) Reset(ctx context.Context, identifier string) error {
	if err := s.redis.Del(ctx, s.key(identifier)).Err(); err != nil {
		return fmt.Errorf("%w: %v", attempt.ErrUnavailable, err)
	}
	return nil
}

// Ping reports whether Redis answers.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", attempt.ErrUnavailable, err)
	}
	return nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readRecord(ctx context.Context, c getter, key string) (*attempt.Record, error) {
	data, err := c.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", attempt.ErrUnavailable, err)
	}

	record, err := attempt.Decode(data)
	if err != nil {
		// Undecodable bytes are overwritten by the next committed update.
		return nil, nil
	}
	return record, nil
}
