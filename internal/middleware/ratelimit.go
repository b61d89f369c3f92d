package middleware

import (
    "math"
    "net/http"
    "strconv"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/mentor-booking/internal/config"
    "github.com/iliyamo/mentor-booking/internal/metrics"
    "github.com/iliyamo/mentor-booking/internal/ratelimit"
)

// RateLimit rejects requests over the configured fixed-window budget with
// 429.  A store failure lets the request through: the limiter protects the
// service, it must not take it down.
func RateLimit(cfg config.RateLimitConfig, limiter *ratelimit.Limiter, m *metrics.Metrics) echo.MiddlewareFunc {
    if !cfg.Enabled || limiter == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            key := buildRateKey(cfg, c)
            d, err := limiter.Allow(c.Request().Context(), key)
            if err != nil {
                c.Logger().Warnf("[ratelimit] store error for key=%s: %v", key, err)
                return next(c)
            }

            h := c.Response().Header()
            h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
            h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))

            if !d.Allowed {
                secs := int(math.Ceil(d.RetryAfter.Seconds()))
                if secs < 1 {
                    secs = 1
                }
                h.Set("Retry-After", strconv.Itoa(secs))
                m.RateLimited()
                if cfg.Debug {
                    c.Logger().Infof("[ratelimit] block key=%s retry=%s", key, d.RetryAfter)
                }
                return c.JSON(http.StatusTooManyRequests, echo.Map{
                    "error":       "too_many_requests",
                    "message":     "rate limit exceeded",
                    "retry_after": secs,
                })
            }
            if cfg.Debug {
                h.Set("X-RateLimit-Key", key)
            }
            return next(c)
        }
    }
}

func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
    parts := []string{cfg.Prefix}
    ip := c.RealIP()
    if ip == "" {
        ip = "unknown"
    }
    uid := "anon"
    if id, ok := UserID(c); ok {
        uid = strconv.FormatUint(id, 10)
    }
    route := c.Request().Method + " " + c.Path()

    switch strings.ToLower(cfg.KeyStrategy) {
    case "ip":
        parts = append(parts, "ip", ip)
    case "user":
        parts = append(parts, "user", uid)
    case "route":
        parts = append(parts, "route", route)
    case "ip_user":
        parts = append(parts, "ip", ip, "user", uid)
    case "ip_route":
        parts = append(parts, "ip", ip, "route", route)
    case "user_route":
        parts = append(parts, "user", uid, "route", route)
    default:
        parts = append(parts, "ip", ip, "user", uid, "route", route)
    }
    return strings.Join(parts, ":")
}
