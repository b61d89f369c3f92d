package middleware

import (
    "bytes"
    "context"
    "crypto/sha1"
    "encoding/binary"
    "encoding/json"
    "fmt"
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/mentor-booking/internal/config"
)

// captureWriter captures response body/status while forwarding to the client.
type captureWriter struct {
    http.ResponseWriter
    status int
    buf    bytes.Buffer
    size   int64
    limit  int64
}

func (cw *captureWriter) WriteHeader(code int) { cw.status = code; cw.ResponseWriter.WriteHeader(code) }

func (cw *captureWriter) Write(b []byte) (int, error) {
    if remain := cw.limit - cw.size; cw.limit <= 0 || remain > 0 {
        if cw.limit > 0 && int64(len(b)) > remain {
            cw.buf.Write(b[:remain])
        } else {
            cw.buf.Write(b)
        }
    }
    cw.size += int64(len(b))
    return cw.ResponseWriter.Write(b)
}

// ResponseCache stores successful GET responses in Redis, headers and body
// together, so a hit is byte-identical to the original.  Entries are keyed
// by path and query; Invalidate drops every entry for a path when the data
// behind it changes.
type ResponseCache struct {
    cfg config.CacheConfig
    rdb redis.Cmdable
}

// NewResponseCache returns nil when caching is disabled or there is no
// Redis client; a nil cache's Middleware passes through and Invalidate is
// a no-op.
func NewResponseCache(cfg config.CacheConfig, rdb redis.Cmdable) *ResponseCache {
    if !cfg.Enabled || rdb == nil {
        return nil
    }
    return &ResponseCache{cfg: cfg, rdb: rdb}
}

// key is prefix:sha1(path):sha1(query), so every query variant of a path
// shares the pathKey prefix.
func (rc *ResponseCache) key(path, query string) string {
    sum := sha1.Sum([]byte(query))
    return fmt.Sprintf("%s:%x", rc.pathKey(path), sum[:])
}

func (rc *ResponseCache) pathKey(path string) string {
    sum := sha1.Sum([]byte(path))
    return fmt.Sprintf("%s:%x", rc.cfg.Prefix, sum[:])
}

// Invalidate removes every cached response for path, whatever its query
// string.
func (rc *ResponseCache) Invalidate(ctx context.Context, path string) error {
    if rc == nil {
        return nil
    }
    var cursor uint64
    for {
        keys, next, err := rc.rdb.Scan(ctx, cursor, rc.pathKey(path)+":*", 100).Result()
        if err != nil {
            return err
        }
        if len(keys) > 0 {
            if err := rc.rdb.Del(ctx, keys...).Err(); err != nil {
                return err
            }
        }
        if next == 0 {
            return nil
        }
        cursor = next
    }
}

// encodePayload packs: [4 bytes status][4 bytes headerLen][headerJSON][body]
func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
    hdrJSON, err := json.Marshal(header)
    if err != nil {
        return nil, err
    }
    out := make([]byte, 8+len(hdrJSON)+len(body))
    binary.BigEndian.PutUint32(out[0:4], uint32(status))
    binary.BigEndian.PutUint32(out[4:8], uint32(len(hdrJSON)))
    copy(out[8:], hdrJSON)
    copy(out[8+len(hdrJSON):], body)
    return out, nil
}

func decodePayload(bs []byte) (status int, header http.Header, body []byte, ok bool) {
    if len(bs) < 8 {
        return 0, nil, nil, false
    }
    status = int(binary.BigEndian.Uint32(bs[0:4]))
    hlen := int(binary.BigEndian.Uint32(bs[4:8]))
    if 8+hlen > len(bs) {
        return 0, nil, nil, false
    }
    header = make(http.Header)
    if hlen > 0 {
        if err := json.Unmarshal(bs[8:8+hlen], &header); err != nil {
            return 0, nil, nil, false
        }
    }
    return status, header, bs[8+hlen:], true
}

// Middleware serves GET requests from the cache and stores 200 responses
// that fit in MaxBodyBytes.  Redis errors fall through to the handler.
func (rc *ResponseCache) Middleware() echo.MiddlewareFunc {
    if rc == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    maxBody := int64(rc.cfg.MaxBodyBytes)
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            req := c.Request()
            if req.Method != http.MethodGet {
                return next(c)
            }
            ctx := req.Context()
            key := rc.key(req.URL.Path, req.URL.RawQuery)

            if bs, err := rc.rdb.Get(ctx, key).Bytes(); err == nil {
                if status, hdr, body, ok := decodePayload(bs); ok {
                    for k, vals := range hdr {
                        if strings.EqualFold(k, "Content-Length") {
                            continue
                        }
                        for _, v := range vals {
                            c.Response().Header().Add(k, v)
                        }
                    }
                    c.Response().Header().Set("X-Cache", "HIT")
                    c.Response().WriteHeader(status)
                    _, _ = c.Response().Write(body)
                    return nil
                }
            }

            cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: maxBody}
            c.Response().Writer = cw
            c.Response().Header().Set("X-Cache", "MISS")
            if err := next(c); err != nil {
                return err
            }
            if cw.status != http.StatusOK || (maxBody > 0 && cw.size > maxBody) {
                return nil
            }
            hdr := c.Response().Header().Clone()
            hdr.Del("X-Cache")
            if payload, err := encodePayload(cw.status, hdr, cw.buf.Bytes()); err == nil {
                _ = rc.rdb.Set(context.WithoutCancel(ctx), key, payload, rc.cfg.TTL).Err()
            }
            return nil
        }
    }
}
