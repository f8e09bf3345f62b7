// Package lock implements C9's distributed-lock half of the message/lock
// substrate: Redis-backed, token-verified resource locks for critical
// sections such as matrix-structure mutations.
//
// Grounded on original_source/backend/common/providers/locking/redis_lock.py
// (exercised by backend/tests/unit/providers/test_locking.py): key prefix
// "lock:<resource>", `SET key token NX EX ttl` to acquire, and a Lua script
// for token-verified release/extend so a caller can never unlock or extend
// someone else's lock. Ported from the redis-py async client to
// github.com/redis/go-redis/v9.
package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "lock:"

// ErrNotHeld is returned by Release/Extend when the caller's token doesn't
// match the current holder (or the lock has already expired).
var ErrNotHeld = errors.New("lock: token does not match current holder")

// releaseScript deletes the key only if its value still equals the caller's
// token, so a lock that expired and was re-acquired by someone else is
// never torn down out from under them.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`)

// extendScript resets the TTL only if the token still matches.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
	return 0
end
`)

// Locker is a Redis-backed distributed lock over named resources.
type Locker struct {
	client *redis.Client
}

// New builds a Locker over an existing Redis client.
func New(client *redis.Client) *Locker {
	return &Locker{client: client}
}

func resourceKey(resource string) string {
	return keyPrefix + resource
}

func newToken() (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("lock: generating token: %w", err)
	}
	return hex.EncodeToString(raw), nil
}

// Acquire attempts to take the lock on resource for ttl. It returns the
// holder token on success, or ok=false if the resource is already locked.
func (l *Locker) Acquire(ctx context.Context, resource string, ttl time.Duration) (token string, ok bool, err error) {
	token, err = newToken()
	if err != nil {
		return "", false, err
	}
	set, err := l.client.SetNX(ctx, resourceKey(resource), token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("lock: acquiring %q: %w", resource, err)
	}
	if !set {
		return "", false, nil
	}
	return token, true, nil
}

// Release drops the lock on resource iff token matches the current holder.
func (l *Locker) Release(ctx context.Context, resource, token string) error {
	n, err := releaseScript.Run(ctx, l.client, []string{resourceKey(resource)}, token).Int64()
	if err != nil {
		return fmt.Errorf("lock: releasing %q: %w", resource, err)
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}

// Extend resets the lock's TTL on resource iff token matches the current
// holder.
func (l *Locker) Extend(ctx context.Context, resource, token string, newTTL time.Duration) error {
	n, err := extendScript.Run(ctx, l.client, []string{resourceKey(resource)}, token, newTTL.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("lock: extending %q: %w", resource, err)
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}

// IsLocked reports whether resource is currently held by anyone.
func (l *Locker) IsLocked(ctx context.Context, resource string) (bool, error) {
	n, err := l.client.Exists(ctx, resourceKey(resource)).Result()
	if err != nil {
		return false, fmt.Errorf("lock: checking %q: %w", resource, err)
	}
	return n > 0, nil
}

// WithLock acquires resource, runs fn, and always releases — even if fn
// panics or returns an error. Returns ErrNotHeld without running fn if the
// resource is already locked.
func WithLock(ctx context.Context, l *Locker, resource string, ttl time.Duration, fn func(ctx context.Context) error) error {
	token, ok, err := l.Acquire(ctx, resource, ttl)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotHeld
	}
	defer func() {
		_ = l.Release(context.WithoutCancel(ctx), resource, token)
	}()
	return fn(ctx)
}
