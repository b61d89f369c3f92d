package ratelimit

import (
    "context"
    "testing"
    "time"

    "github.com/alicebob/miniredis/v2"
    "github.com/redis/go-redis/v9"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

// storeHarness gives each backend a way to move its clock forward.
type storeHarness struct {
    name    string
    store   Store
    advance func(time.Duration)
}

func harnesses(t *testing.T) []storeHarness {
    t.Helper()

    mem := NewMemoryStore()
    clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
    mem.now = func() time.Time { return clock }

    mr := miniredis.RunT(t)
    rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
    t.Cleanup(func() { _ = rdb.Close() })

    return []storeHarness{
        {name: "memory", store: mem, advance: func(d time.Duration) { clock = clock.Add(d) }},
        {name: "redis", store: NewRedisStore(rdb), advance: mr.FastForward},
    }
}

func TestLimiter_BlocksAfterLimit(t *testing.T) {
    for _, h := range harnesses(t) {
        t.Run(h.name, func(t *testing.T) {
            ctx := context.Background()
            l := New(h.store, 3, time.Minute)
            for i := 0; i < 3; i++ {
                d, err := l.Allow(ctx, "k")
                require.NoError(t, err)
                assert.True(t, d.Allowed, "hit %d", i+1)
                assert.Equal(t, 2-i, d.Remaining)
            }
            d, err := l.Allow(ctx, "k")
            require.NoError(t, err)
            assert.False(t, d.Allowed)
            assert.Equal(t, 0, d.Remaining)
            assert.Greater(t, d.RetryAfter, time.Duration(0))
            assert.LessOrEqual(t, d.RetryAfter, time.Minute)
        })
    }
}

func TestLimiter_WindowResets(t *testing.T) {
    for _, h := range harnesses(t) {
        t.Run(h.name, func(t *testing.T) {
            ctx := context.Background()
            l := New(h.store, 1, time.Minute)
            d, err := l.Allow(ctx, "reset")
            require.NoError(t, err)
            require.True(t, d.Allowed)
            d, err = l.Allow(ctx, "reset")
            require.NoError(t, err)
            require.False(t, d.Allowed)

            h.advance(61 * time.Second)

            d, err = l.Allow(ctx, "reset")
            require.NoError(t, err)
            assert.True(t, d.Allowed)
        })
    }
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
    for _, h := range harnesses(t) {
        t.Run(h.name, func(t *testing.T) {
            ctx := context.Background()
            l := New(h.store, 1, time.Minute)
            a, err := l.Allow(ctx, "a")
            require.NoError(t, err)
            b, err := l.Allow(ctx, "b")
            require.NoError(t, err)
            assert.True(t, a.Allowed)
            assert.True(t, b.Allowed)
        })
    }
}

func TestLimiter_RepairsMissingExpiry(t *testing.T) {
    for _, h := range harnesses(t) {
        t.Run(h.name, func(t *testing.T) {
            ctx := context.Background()
            // Simulate a crash between INCR and EXPIRE.
            _, err := h.store.Incr(ctx, "orphan")
            require.NoError(t, err)
            ttl, err := h.store.TTL(ctx, "orphan")
            require.NoError(t, err)
            require.Less(t, ttl, time.Duration(0))

            l := New(h.store, 5, time.Minute)
            _, err = l.Allow(ctx, "orphan")
            require.NoError(t, err)
            ttl, err = h.store.TTL(ctx, "orphan")
            require.NoError(t, err)
            assert.Greater(t, ttl, time.Duration(0))
        })
    }
}

func TestStoreTTL_MissingKey(t *testing.T) {
    for _, h := range harnesses(t) {
        t.Run(h.name, func(t *testing.T) {
            ttl, err := h.store.TTL(context.Background(), "nope")
            require.NoError(t, err)
            assert.Equal(t, NoKey, ttl)
        })
    }
}

func TestMemoryStore_SweepAndClose(t *testing.T) {
    s := NewMemoryStore()
    clock := time.Now()
    s.now = func() time.Time { return clock }
    ctx := context.Background()

    _, _ = s.Incr(ctx, "short")
    require.NoError(t, s.Expire(ctx, "short", time.Second))
    _, _ = s.Incr(ctx, "long")
    require.NoError(t, s.Expire(ctx, "long", time.Hour))

    clock = clock.Add(2 * time.Second)
    s.Sweep()
    assert.Equal(t, 1, s.Len())

    s.Start(10 * time.Millisecond)
    require.NoError(t, s.Close())
    require.NoError(t, s.Close())
}

func TestMemoryStore_CloseWithoutStart(t *testing.T) {
    done := make(chan struct{})
    go func() {
        _ = NewMemoryStore().Close()
        close(done)
    }()
    select {
    case <-done:
    case <-time.After(time.Second):
        t.Fatal("Close blocked without a running janitor")
    }
}
