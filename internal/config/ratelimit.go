package config

import "time"

// Rate limiter backends.  The memory backend is only correct for a single
// instance; use redis when several instances share traffic.
const (
    RateLimitMemory = "memory"
    RateLimitRedis  = "redis"
)

type RateLimitConfig struct {
    Enabled         bool
    Backend         string
    Limit           int
    Window          time.Duration
    JanitorInterval time.Duration
    KeyStrategy     string
    Prefix          string
    Debug           bool
}

func LoadRateLimitConfig() RateLimitConfig {
    def := RateLimitConfig{
        Enabled:         envBool("RATE_LIMIT_ENABLED", true),
        Backend:         envStr("RATE_LIMIT_BACKEND", RateLimitMemory),
        Limit:           envInt("RATE_LIMIT_LIMIT", 60),
        Window:          envDur("RATE_LIMIT_WINDOW", time.Minute),
        JanitorInterval: envDur("RATE_LIMIT_JANITOR_INTERVAL", time.Minute),
        KeyStrategy:     envStr("RATE_LIMIT_KEY_STRATEGY", "ip_user_route"),
        Prefix:          envStr("RATE_LIMIT_PREFIX", "rl"),
        Debug:           envBool("RATE_LIMIT_DEBUG", false),
    }
    if def.Limit < 1 { def.Limit = 1 }
    if def.Window <= 0 { def.Window = time.Minute }
    if def.JanitorInterval <= 0 { def.JanitorInterval = def.Window }
    return def
}
