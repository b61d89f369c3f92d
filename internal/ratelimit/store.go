// Package ratelimit implements a fixed-window request limiter over a
// pluggable counter store.  The in-memory store serves single-instance
// deployments; the Redis store shares counters across instances.
package ratelimit

import (
    "context"
    "time"
)

// Store is the capability set the limiter needs from a counter backend.
type Store interface {
    // Incr atomically increments key and returns the new value.  A missing
    // key starts at zero.
    Incr(ctx context.Context, key string) (int64, error)
    // TTL returns the remaining lifetime of key.  It returns a negative
    // duration when the key exists without an expiry, and NoKey when the
    // key does not exist.
    TTL(ctx context.Context, key string) (time.Duration, error)
    // Expire sets the key's remaining lifetime.
    Expire(ctx context.Context, key string, ttl time.Duration) error
}

// NoKey is what TTL reports for a key that does not exist, mirroring
// Redis' PTTL of -2.
const NoKey = -2 * time.Millisecond
