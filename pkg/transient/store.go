// Package transient implements the fast, TTL-oriented side of the hybrid
// storage layer: presence sets, advisory locks,
// generation status, and short-lived session/history state, backed by
// Redis via github.com/redis/go-redis/v9.
package transient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/worldforge/server/pkg/config"
)

// ErrUnavailable is returned when the Redis backend cannot be reached,
//'s "Fails with UNAVAILABLE".
var ErrUnavailable = errors.New("transient: store unavailable")

// ErrLockUnavailable is returned by SetIfAbsent when the key already
// holds a value, i.e. the advisory lock is held by someone else.
var ErrLockUnavailable = errors.New("transient: lock unavailable")

// Store is the Redis-backed transient store.
type Store struct {
	client *redis.Client
}

// New dials Redis using cfg and returns a ready Store.
func New(cfg config.TransientConfig) (*Store, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("transient: parse REDIS_URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	opts.DB = cfg.DB
	return &Store{client: redis.NewClient(opts)}, nil
}

// Close releases the underlying Redis connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}

// Ping verifies connectivity, used by health checks.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func wrapUnavailable(err error) error {
	if err == nil || errors.Is(err, redis.Nil) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// GetString reads a key, returning "", nil on miss.
func (s *Store) GetString(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", wrapUnavailable(err)
	}
	return v, nil
}

// SetString writes a key, optionally with a TTL (ttl<=0 means no expiry).
func (s *Store) SetString(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return wrapUnavailable(err)
	}
	return nil
}

// SetIfAbsent implements an advisory lock: it writes value to key only if
// key does not already exist, with the given TTL. Returns
// ErrLockUnavailable if the key is already held.
func (s *Store) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) error {
	ok, err := s.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return wrapUnavailable(err)
	}
	if !ok {
		return ErrLockUnavailable
	}
	return nil
}

// Delete removes a key (releasing a lock, clearing status, etc).
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return wrapUnavailable(err)
	}
	return nil
}

// SetAdd adds a member to a presence set.
func (s *Store) SetAdd(ctx context.Context, key, member string) error {
	if err := s.client.SAdd(ctx, key, member).Err(); err != nil {
		return wrapUnavailable(err)
	}
	return nil
}

// SetRemove removes a member from a presence set.
func (s *Store) SetRemove(ctx context.Context, key, member string) error {
	if err := s.client.SRem(ctx, key, member).Err(); err != nil {
		return wrapUnavailable(err)
	}
	return nil
}

// SetMembers lists all members of a presence set.
func (s *Store) SetMembers(ctx context.Context, key string) ([]string, error) {
	members, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, wrapUnavailable(err)
	}
	return members, nil
}

// ListPushFront prepends a value to a history list (actions, chat).
func (s *Store) ListPushFront(ctx context.Context, key, value string) error {
	if err := s.client.LPush(ctx, key, value).Err(); err != nil {
		return wrapUnavailable(err)
	}
	return nil
}

// ListRange returns the [from,to] slice of a list (inclusive, Redis semantics).
func (s *Store) ListRange(ctx context.Context, key string, from, to int64) ([]string, error) {
	vals, err := s.client.LRange(ctx, key, from, to).Result()
	if err != nil {
		return nil, wrapUnavailable(err)
	}
	return vals, nil
}

// ListTrim trims a list to its first maxLen entries.
func (s *Store) ListTrim(ctx context.Context, key string, maxLen int64) error {
	if maxLen <= 0 {
		maxLen = 1
	}
	if err := s.client.LTrim(ctx, key, 0, maxLen-1).Err(); err != nil {
		return wrapUnavailable(err)
	}
	return nil
}

// ListLen returns the number of entries in a list.
func (s *Store) ListLen(ctx context.Context, key string) (int64, error) {
	n, err := s.client.LLen(ctx, key).Result()
	if err != nil {
		return 0, wrapUnavailable(err)
	}
	return n, nil
}

// HashSet writes a session hash record, with an optional TTL applied on
// top of the hash itself (Redis has no per-field TTL; session TTL is
// set on the whole key).
func (s *Store) HashSet(ctx context.Context, key string, fields map[string]string, ttl time.Duration) error {
	values := make(map[string]any, len(fields))
	for k, v := range fields {
		values[k] = v
	}
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, values)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return wrapUnavailable(err)
	}
	return nil
}

// HashGetAll reads an entire session hash record.
func (s *Store) HashGetAll(ctx context.Context, key string) (map[string]string, error) {
	vals, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, wrapUnavailable(err)
	}
	return vals, nil
}

// FlushAll wipes every key in the transient store, used by
// store.Facade.ResetWorld.
func (s *Store) FlushAll(ctx context.Context) error {
	if err := s.client.FlushDB(ctx).Err(); err != nil {
		return wrapUnavailable(err)
	}
	return nil
}
