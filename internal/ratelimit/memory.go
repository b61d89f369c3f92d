package ratelimit

import (
    "context"
    "sync"
    "time"
)

type memoryEntry struct {
    count    int64
    expireAt time.Time // zero means no expiry
}

// MemoryStore keeps counters in process memory.  Expired keys are evicted
// lazily on access and periodically by a janitor goroutine that the owner
// starts with Start and stops with Close.
type MemoryStore struct {
    mu      sync.Mutex
    entries map[string]*memoryEntry
    now     func() time.Time

    running  bool
    stopOnce sync.Once
    stop     chan struct{}
    done     chan struct{}
}

// NewMemoryStore returns an empty store.  The janitor is not running until
// Start is called.
func NewMemoryStore() *MemoryStore {
    return &MemoryStore{
        entries: make(map[string]*memoryEntry),
        now:     time.Now,
        stop:    make(chan struct{}),
        done:    make(chan struct{}),
    }
}

// Start launches the janitor that sweeps expired keys every interval.
func (s *MemoryStore) Start(interval time.Duration) {
    if interval <= 0 {
        interval = time.Minute
    }
    s.mu.Lock()
    if s.running {
        s.mu.Unlock()
        return
    }
    s.running = true
    s.mu.Unlock()
    go func() {
        defer close(s.done)
        t := time.NewTicker(interval)
        defer t.Stop()
        for {
            select {
            case <-t.C:
                s.Sweep()
            case <-s.stop:
                return
            }
        }
    }()
}

// Close stops the janitor, if running, and waits for it to exit.
func (s *MemoryStore) Close() error {
    s.stopOnce.Do(func() { close(s.stop) })
    s.mu.Lock()
    running := s.running
    s.mu.Unlock()
    if running {
        <-s.done
    }
    return nil
}

// Sweep removes every expired key.
func (s *MemoryStore) Sweep() {
    now := s.now()
    s.mu.Lock()
    defer s.mu.Unlock()
    for k, e := range s.entries {
        if e.expired(now) {
            delete(s.entries, k)
        }
    }
}

// Len reports the number of live keys.
func (s *MemoryStore) Len() int {
    s.mu.Lock()
    defer s.mu.Unlock()
    return len(s.entries)
}

func (e *memoryEntry) expired(now time.Time) bool {
    return !e.expireAt.IsZero() && !now.Before(e.expireAt)
}

// get returns the live entry for key; the caller holds s.mu.
func (s *MemoryStore) get(key string, now time.Time) *memoryEntry {
    e, ok := s.entries[key]
    if !ok {
        return nil
    }
    if e.expired(now) {
        delete(s.entries, key)
        return nil
    }
    return e
}

func (s *MemoryStore) Incr(_ context.Context, key string) (int64, error) {
    now := s.now()
    s.mu.Lock()
    defer s.mu.Unlock()
    e := s.get(key, now)
    if e == nil {
        e = &memoryEntry{}
        s.entries[key] = e
    }
    e.count++
    return e.count, nil
}

func (s *MemoryStore) TTL(_ context.Context, key string) (time.Duration, error) {
    now := s.now()
    s.mu.Lock()
    defer s.mu.Unlock()
    e := s.get(key, now)
    if e == nil {
        return NoKey, nil
    }
    if e.expireAt.IsZero() {
        return -1, nil
    }
    return e.expireAt.Sub(now), nil
}

func (s *MemoryStore) Expire(_ context.Context, key string, ttl time.Duration) error {
    now := s.now()
    s.mu.Lock()
    defer s.mu.Unlock()
    if e := s.get(key, now); e != nil {
        e.expireAt = now.Add(ttl)
    }
    return nil
}
