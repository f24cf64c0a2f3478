package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultRedisKeyPrefix = "ratelimit:"

// slidingWindowScript keeps one sorted set per key, scored by request time in
// microseconds. Members are unique so two requests in the same microsecond both count.
// Scores are formatted in Go: Lua number formatting loses precision at this magnitude.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = ARGV[1]
local cutoff = ARGV[2]
local limit = tonumber(ARGV[3])
local member = ARGV[4]
local ttl = ARGV[5]

redis.call('ZREMRANGEBYSCORE', key, '-inf', cutoff)

local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
	redis.call('ZADD', key, now, member)
	count = count + 1
	allowed = 1
end

local oldest = ''
local first = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if first[2] then
	oldest = first[2]
end

if count > 0 then
	redis.call('PEXPIRE', key, ttl)
end

return {allowed, count, oldest}
`)

// RedisStore is a Store shared by every process pointed at the same Redis.
// The prune, count and record steps run in one Lua script, so a key's check
// is atomic across instances.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	newID  func() string
}

var _ Store = (*RedisStore)(nil)

// RedisStoreOption configures a RedisStore.
type RedisStoreOption func(*RedisStore)

// WithKeyPrefix sets the prefix prepended to every Redis key.
func WithKeyPrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) { s.prefix = prefix }
}

// NewRedisStore creates a RedisStore over client.
func NewRedisStore(client redis.UniversalClient, opts ...RedisStoreOption) *RedisStore {
	if client == nil {
		panic("ratelimit: redis client is required")
	}
	s := &RedisStore{
		client: client,
		prefix: defaultRedisKeyPrefix,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) Record(ctx context.Context, key string, now time.Time, window time.Duration, limit int) (Window, error) {
	res, err := slidingWindowScript.Run(ctx, s.client, []string{s.prefix + key},
		strconv.FormatInt(now.UnixMicro(), 10),
		strconv.FormatInt(now.Add(-window).UnixMicro(), 10),
		limit,
		s.newID(),
		max(1, window.Milliseconds()),
	).Slice()
	if err != nil {
		return Window{}, errors.Join(ErrStoreUnavailable, err)
	}
	if len(res) != 3 {
		return Window{}, fmt.Errorf("%w: unexpected script reply of length %d", ErrStoreUnavailable, len(res))
	}

	allowed, _ := res[0].(int64)
	count, _ := res[1].(int64)

	w := Window{
		Allowed: allowed == 1,
		Count:   int(count),
	}
	if raw, ok := res[2].(string); ok && raw != "" {
		score, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Window{}, errors.Join(ErrStoreUnavailable, err)
		}
		w.Oldest = time.UnixMicro(int64(score))
	}
	return w, nil
}

func (s *RedisStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}
