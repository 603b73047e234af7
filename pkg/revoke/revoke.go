// Package revoke keeps a shared deny-list of token ids in Redis. Each entry
// expires on its own when the token it names would have expired.
package revoke

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces revocation keys inside a shared Redis.
const DefaultKeyPrefix = "triage:revoked:"

type Redis struct {
	rdb    goredis.UniversalClient
	prefix string
	now    func() time.Time
}

type Option func(*Redis)

func WithKeyPrefix(prefix string) Option {
	return func(r *Redis) { r.prefix = prefix }
}

func WithClock(now func() time.Time) Option {
	return func(r *Redis) { r.now = now }
}

func NewRedis(rdb goredis.UniversalClient, opts ...Option) *Redis {
	r := &Redis{rdb: rdb, prefix: DefaultKeyPrefix, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Revoke records jti until expiresAt and reports whether this call was the
// one that recorded it. A token that has already expired needs no entry.
func (r *Redis) Revoke(ctx context.Context, jti string, expiresAt time.Time) (bool, error) {
	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		return true, nil
	}
	set, err := r.rdb.SetNX(ctx, r.prefix+jti, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("revoke: redis setnx: %w", err)
	}
	return set, nil
}

func (r *Redis) IsRevoked(ctx context.Context, jti string) (bool, error) {
	err := r.rdb.Get(ctx, r.prefix+jti).Err()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, goredis.Nil):
		return false, nil
	default:
		return false, fmt.Errorf("revoke: redis get: %w", err)
	}
}

// DeleteExpired is a no-op: Redis expires entries itself.
func (r *Redis) DeleteExpired(context.Context, time.Time) (int64, error) { return 0, nil }
