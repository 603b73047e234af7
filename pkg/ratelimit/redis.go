package ratelimit

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/aussiebroadwan/triage/pkg/idx"
)

// DefaultKeyPrefix namespaces limiter keys inside a shared Redis.
const DefaultKeyPrefix = "triage:ratelimit:"

// slidingWindow prunes, counts and records in one step, so concurrent
// callers on a key are serialised by Redis itself.
//
//	KEYS[1]  bucket
//	ARGV[1]  now, microseconds
//	ARGV[2]  window, microseconds
//	ARGV[3]  limit
//	ARGV[4]  member for this request
//
// Returns {admitted (0|1), count before this request, oldest live score}.
var slidingWindow = goredis.NewScript(`
local key    = KEYS[1]
local now    = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit  = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)

local count  = redis.call('ZCARD', key)
local oldest = now
local head   = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if #head > 0 then
	oldest = tonumber(head[2])
end

if count >= limit then
	return {0, count, oldest}
end

redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, math.ceil(window / 1000))
return {1, count, oldest}
`)

// Redis is a Limiter storing each bucket as a sorted set scored by request
// time in microseconds. The set expires one window after its newest member,
// so idle keys clean themselves up.
type Redis struct {
	rdb    goredis.UniversalClient
	prefix string
	now    func() time.Time
}

// RedisOption configures a Redis limiter.
type RedisOption func(*Redis)

// WithKeyPrefix replaces DefaultKeyPrefix.
func WithKeyPrefix(prefix string) RedisOption {
	return func(r *Redis) { r.prefix = prefix }
}

// WithRedisClock replaces time.Now.
func WithRedisClock(now func() time.Time) RedisOption {
	return func(r *Redis) { r.now = now }
}

func NewRedis(rdb goredis.UniversalClient, opts ...RedisOption) *Redis {
	r := &Redis{rdb: rdb, prefix: DefaultKeyPrefix, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var _ Limiter = (*Redis)(nil)

func (r *Redis) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, Info, error) {
	if window <= 0 {
		return false, Info{}, ErrInvalidWindow
	}

	now := r.now()
	res, err := slidingWindow.Run(ctx, r.rdb, []string{r.prefix + key},
		now.UnixMicro(),
		window.Microseconds(),
		limit,
		idx.NewAt(now).String(),
	).Int64Slice()
	if err != nil {
		return false, Info{}, fmt.Errorf("ratelimit: redis: %w", err)
	}
	if len(res) != 3 {
		return false, Info{}, fmt.Errorf("ratelimit: redis: unexpected reply %v", res)
	}

	admitted, count := res[0] == 1, int(res[1])
	reset := time.UnixMicro(res[2]).Add(window)
	if !admitted {
		return false, denied(limit, reset), nil
	}
	return true, Info{
		Limit:     limit,
		Remaining: limit - count - 1,
		ResetTime: reset,
	}, nil
}
