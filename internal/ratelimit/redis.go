package ratelimit

import (
    "context"
    "time"

    "github.com/redis/go-redis/v9"
)

// RedisStore keeps counters in Redis so every instance sees the same window.
type RedisStore struct {
    rdb redis.Cmdable
}

// NewRedisStore wraps a connected client (or cluster/ring) as a Store.
func NewRedisStore(rdb redis.Cmdable) *RedisStore {
    return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Incr(ctx context.Context, key string) (int64, error) {
    return s.rdb.Incr(ctx, key).Result()
}

// TTL uses PTTL for millisecond precision.  go-redis reports -1 and -2
// verbatim (not scaled) for "no expiry" and "no key"; both are mapped onto
// the Store contract.
func (s *RedisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
    d, err := s.rdb.PTTL(ctx, key).Result()
    if err != nil {
        return 0, err
    }
    switch d {
    case -2, -2 * time.Millisecond:
        return NoKey, nil
    case -1, -1 * time.Millisecond:
        return -1, nil
    }
    return d, nil
}

func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
    return s.rdb.PExpire(ctx, key, ttl).Err()
}
