package config

import "time"

// CacheConfig controls the Redis response cache in front of public,
// read-only endpoints.
type CacheConfig struct {
    Enabled      bool
    TTL          time.Duration
    Prefix       string
    MaxBodyBytes int
}

func LoadCacheConfig() CacheConfig {
    c := CacheConfig{
        Enabled:      envBool("CACHE_ENABLED", false),
        TTL:          envDur("CACHE_TTL", 15*time.Second),
        Prefix:       envStr("CACHE_PREFIX", "cache"),
        MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 64<<10),
    }
    if c.TTL <= 0 {
        c.TTL = 15 * time.Second
    }
    return c
}
