package ratelimit

import (
    "context"
    "fmt"
    "time"
)

// Decision is the outcome of one Allow call.
type Decision struct {
    Allowed    bool
    Limit      int
    Remaining  int
    RetryAfter time.Duration // time until the window resets
}

// Limiter allows at most Limit hits per key inside a fixed Window.
type Limiter struct {
    store  Store
    limit  int
    window time.Duration
}

// New builds a Limiter.  Limit below 1 is treated as 1 and a non-positive
// window as one minute.
func New(store Store, limit int, window time.Duration) *Limiter {
    if limit < 1 {
        limit = 1
    }
    if window <= 0 {
        window = time.Minute
    }
    return &Limiter{store: store, limit: limit, window: window}
}

// Allow records a hit for key and reports whether it fits in the window.
// The first hit of a window starts its expiry; a counter found without an
// expiry (a crash between INCR and EXPIRE) gets one set here.
func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
    n, err := l.store.Incr(ctx, key)
    if err != nil {
        return Decision{}, fmt.Errorf("ratelimit incr %s: %w", key, err)
    }
    ttl := l.window
    if n == 1 {
        if err := l.store.Expire(ctx, key, l.window); err != nil {
            return Decision{}, fmt.Errorf("ratelimit expire %s: %w", key, err)
        }
    } else {
        ttl, err = l.store.TTL(ctx, key)
        if err != nil {
            return Decision{}, fmt.Errorf("ratelimit ttl %s: %w", key, err)
        }
        if ttl < 0 {
            if err := l.store.Expire(ctx, key, l.window); err != nil {
                return Decision{}, fmt.Errorf("ratelimit expire %s: %w", key, err)
            }
            ttl = l.window
        }
    }
    remaining := l.limit - int(n)
    if remaining < 0 {
        remaining = 0
    }
    return Decision{
        Allowed:    n <= int64(l.limit),
        Limit:      l.limit,
        Remaining:  remaining,
        RetryAfter: ttl,
    }, nil
}
