// Package kvstore abstracts the keyed counter/lock store that backs all of
// Gatekeeper's mutable authentication state: MFA codes, failure counters,
// block flags, the refresh-token whitelist, and the access-token blacklist.
//
// Counts and flags never live in process memory -- every request reads and
// writes through this store, so any number of Gatekeeper instances can
// serve the same user concurrently. Ordering guarantees come entirely from
// the store's atomic operations (Increment in particular).
package kvstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is the capability contract consumed by the MFA and session managers.
// Implementations must provide atomic Increment; everything else is plain
// keyed access with TTLs. Keys are opaque strings owned by the callers.
type Store interface {
	// SetWithTTL stores value under key, expiring after ttl.
	// Overwrites any existing value and re-arms the expiry.
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error

	// Get returns the value under key. The bool reports whether the key
	// exists; a missing key is not an error.
	Get(ctx context.Context, key string) (string, bool, error)

	// Delete removes key. Deleting a missing key is a no-op.
	Delete(ctx context.Context, key string) error

	// Increment atomically increments the integer at key and returns the
	// new value. A missing key counts from zero.
	Increment(ctx context.Context, key string) (int64, error)

	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// RemainingTTL returns how long until key expires. Returns zero for
	// missing keys and keys without an expiry.
	RemainingTTL(ctx context.Context, key string) (time.Duration, error)
}

// redisStore implements Store on a Redis client.
type redisStore struct {
	client *redis.Client
}

// New creates a Store backed by the given Redis client.
func New(client *redis.Client) Store {
	return &redisStore{client: client}
}

func (s *redisStore) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}
	return nil
}

func (s *redisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("getting %s: %w", key, err)
	}
	return val, true, nil
}

func (s *redisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}

func (s *redisStore) Increment(ctx context.Context, key string) (int64, error) {
	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("incrementing %s: %w", key, err)
	}
	return n, nil
}

func (s *redisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("checking %s: %w", key, err)
	}
	return n > 0, nil
}

func (s *redisStore) RemainingTTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("querying ttl of %s: %w", key, err)
	}
	// Redis returns -2 for missing keys and -1 for keys without expiry.
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}
