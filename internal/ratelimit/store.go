package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Window is the state of one counter after a hit.
type Window struct {
	Allowed bool
	Count   int64
	ResetAt time.Time
}

// Store performs the atomic check-and-increment for one key.
type Store interface {
	Hit(ctx context.Context, key string, now time.Time, p Policy) (Window, error)
}

// hitScript keeps {count, reset} in a hash. reset is epoch millis.
//
//	first hit or now > reset → count = 1, reset = now + window
//	count >= quota           → deny, nothing written
//	otherwise                → count + 1
var hitScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local quota = tonumber(ARGV[2])
local count = tonumber(redis.call('HGET', KEYS[1], 'count'))
local reset = tonumber(redis.call('HGET', KEYS[1], 'reset'))
if count == nil or reset == nil or now > reset then
  redis.call('HSET', KEYS[1], 'count', 1, 'reset', ARGV[4])
  redis.call('PEXPIRE', KEYS[1], ARGV[3])
  return {1, 1, ARGV[4]}
end
if count >= quota then
  return {0, count, redis.call('HGET', KEYS[1], 'reset')}
end
count = redis.call('HINCRBY', KEYS[1], 'count', 1)
return {1, count, redis.call('HGET', KEYS[1], 'reset')}
`)

// expirySlack keeps a key alive a little past its window so clock skew
// between app and Redis never opens a window early.
const expirySlack = time.Minute

// RedisStore runs the hit script. Redis executes scripts one at a time, so
// two concurrent hits on the last free slot cannot both pass.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Hit(ctx context.Context, key string, now time.Time, p Policy) (Window, error) {
	if s.client == nil {
		return Window{}, fmt.Errorf("redis client is nil")
	}

	nowMs := now.UnixMilli()
	resetMs := now.Add(p.Window).UnixMilli()
	ttlMs := (p.Window + expirySlack).Milliseconds()

	raw, err := hitScript.Run(ctx, s.client, []string{key},
		nowMs, p.Quota, ttlMs, strconv.FormatInt(resetMs, 10),
	).Slice()
	if err != nil {
		return Window{}, fmt.Errorf("rate limit script: %w", err)
	}
	if len(raw) != 3 {
		return Window{}, fmt.Errorf("rate limit script: unexpected reply %v", raw)
	}

	allowed, ok1 := raw[0].(int64)
	count, ok2 := raw[1].(int64)
	resetStr, ok3 := raw[2].(string)
	if !ok1 || !ok2 || !ok3 {
		return Window{}, fmt.Errorf("rate limit script: unexpected reply %v", raw)
	}
	reset, err := strconv.ParseInt(resetStr, 10, 64)
	if err != nil {
		return Window{}, fmt.Errorf("rate limit script: bad reset %q", resetStr)
	}

	return Window{
		Allowed: allowed == 1,
		Count:   count,
		ResetAt: time.UnixMilli(reset),
	}, nil
}
