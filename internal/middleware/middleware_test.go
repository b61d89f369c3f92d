package middleware

import (
    "net/http"
    "net/http/httptest"
    "strconv"
    "testing"
    "time"

    "github.com/alicebob/miniredis/v2"
    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/mentor-booking/internal/config"
    "github.com/iliyamo/mentor-booking/internal/model"
    "github.com/iliyamo/mentor-booking/internal/ratelimit"
    "github.com/iliyamo/mentor-booking/internal/utils"
)

const testSecret = "test-secret"

func serve(e *echo.Echo, method, target, token string) *httptest.ResponseRecorder {
    req := httptest.NewRequest(method, target, nil)
    if token != "" {
        req.Header.Set("Authorization", "Bearer "+token)
    }
    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, req)
    return rec
}

func token(t *testing.T, uid uint64, role string) string {
    t.Helper()
    at, err := utils.NewAccessToken(testSecret, uid, role, 5)
    require.NoError(t, err)
    return at.Token
}

func whoami(c echo.Context) error {
    id, ok := UserID(c)
    return c.JSON(http.StatusOK, echo.Map{"id": id, "ok": ok, "role": Role(c)})
}

func TestJWTAuth(t *testing.T) {
    e := echo.New()
    e.GET("/me", whoami, JWTAuth(testSecret))

    rec := serve(e, http.MethodGet, "/me", "")
    assert.Equal(t, http.StatusUnauthorized, rec.Code)

    rec = serve(e, http.MethodGet, "/me", "garbage")
    assert.Equal(t, http.StatusUnauthorized, rec.Code)

    rec = serve(e, http.MethodGet, "/me", token(t, 9, model.RoleMentee))
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.JSONEq(t, `{"id":9,"ok":true,"role":"MENTEE"}`, rec.Body.String())
}

func TestOptionalJWT(t *testing.T) {
    e := echo.New()
    e.GET("/me", whoami, OptionalJWT(testSecret))

    rec := serve(e, http.MethodGet, "/me", "")
    assert.JSONEq(t, `{"id":0,"ok":false,"role":""}`, rec.Body.String())

    rec = serve(e, http.MethodGet, "/me", "garbage")
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.JSONEq(t, `{"id":0,"ok":false,"role":""}`, rec.Body.String())

    rec = serve(e, http.MethodGet, "/me", token(t, 4, model.RoleMentor))
    assert.JSONEq(t, `{"id":4,"ok":true,"role":"MENTOR"}`, rec.Body.String())
}

func TestRequireRole(t *testing.T) {
    e := echo.New()
    e.GET("/admin", whoami, JWTAuth(testSecret), RequireRole(model.RoleAdmin))

    rec := serve(e, http.MethodGet, "/admin", token(t, 1, model.RoleMentee))
    assert.Equal(t, http.StatusForbidden, rec.Code)

    rec = serve(e, http.MethodGet, "/admin", token(t, 1, model.RoleAdmin))
    assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit_BlocksOverLimit(t *testing.T) {
    store := ratelimit.NewMemoryStore()
    cfg := config.RateLimitConfig{Enabled: true, Limit: 2, Window: time.Minute, KeyStrategy: "ip", Prefix: "rl"}
    e := echo.New()
    e.Use(RateLimit(cfg, ratelimit.New(store, cfg.Limit, cfg.Window), nil))
    e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

    for i := 0; i < 2; i++ {
        rec := serve(e, http.MethodGet, "/x", "")
        require.Equal(t, http.StatusNoContent, rec.Code)
        assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
        assert.Equal(t, strconv.Itoa(1-i), rec.Header().Get("X-RateLimit-Remaining"))
    }
    rec := serve(e, http.MethodGet, "/x", "")
    assert.Equal(t, http.StatusTooManyRequests, rec.Code)
    assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestRateLimit_Disabled(t *testing.T) {
    e := echo.New()
    e.Use(RateLimit(config.RateLimitConfig{Enabled: false}, nil, nil))
    e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

    rec := serve(e, http.MethodGet, "/x", "")
    assert.Equal(t, http.StatusNoContent, rec.Code)
    assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
}

func TestBuildRateKey(t *testing.T) {
    e := echo.New()
    req := httptest.NewRequest(http.MethodGet, "/v1/packs", nil)
    req.RemoteAddr = "10.0.0.1:1234"
    c := e.NewContext(req, httptest.NewRecorder())
    c.SetPath("/v1/packs")
    c.Set(ctxUserID, uint64(5))

    assert.Equal(t, "rl:ip:10.0.0.1", buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip"}, c))
    assert.Equal(t, "rl:user:5", buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "user"}, c))
    assert.Equal(t, "rl:ip:10.0.0.1:user:5:route:GET /v1/packs", buildRateKey(config.RateLimitConfig{Prefix: "rl"}, c))
}

func TestResponseCache(t *testing.T) {
    mr := miniredis.RunT(t)
    rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
    defer rdb.Close()

    rc := NewResponseCache(config.CacheConfig{Enabled: true, TTL: time.Minute, Prefix: "cache", MaxBodyBytes: 1024}, rdb)
    require.NotNil(t, rc)

    calls := 0
    e := echo.New()
    e.GET("/v1/instructors/:slug/inventory", func(c echo.Context) error {
        calls++
        return c.JSON(http.StatusOK, echo.Map{"calls": calls})
    }, rc.Middleware())

    rec := serve(e, http.MethodGet, "/v1/instructors/jane/inventory", "")
    assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
    assert.JSONEq(t, `{"calls":1}`, rec.Body.String())

    rec = serve(e, http.MethodGet, "/v1/instructors/jane/inventory", "")
    assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
    assert.JSONEq(t, `{"calls":1}`, rec.Body.String())
    assert.Equal(t, 1, calls)

    require.NoError(t, rc.Invalidate(t.Context(), "/v1/instructors/jane/inventory"))
    rec = serve(e, http.MethodGet, "/v1/instructors/jane/inventory", "")
    assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
    assert.JSONEq(t, `{"calls":2}`, rec.Body.String())
}

func TestResponseCache_InvalidateDropsQueryVariants(t *testing.T) {
    mr := miniredis.RunT(t)
    rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
    defer rdb.Close()

    rc := NewResponseCache(config.CacheConfig{Enabled: true, TTL: time.Minute, Prefix: "cache", MaxBodyBytes: 1024}, rdb)
    calls := 0
    e := echo.New()
    e.GET("/v1/instructors/:slug/inventory", func(c echo.Context) error {
        calls++
        return c.JSON(http.StatusOK, echo.Map{"calls": calls})
    }, rc.Middleware())

    serve(e, http.MethodGet, "/v1/instructors/jane/inventory?foo=1", "")
    serve(e, http.MethodGet, "/v1/instructors/jane/inventory", "")
    serve(e, http.MethodGet, "/v1/instructors/ada/inventory", "")
    assert.Len(t, mr.Keys(), 3)

    require.NoError(t, rc.Invalidate(t.Context(), "/v1/instructors/jane/inventory"))
    assert.Len(t, mr.Keys(), 1)

    rec := serve(e, http.MethodGet, "/v1/instructors/jane/inventory?foo=1", "")
    assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
    assert.JSONEq(t, `{"calls":4}`, rec.Body.String())

    rec = serve(e, http.MethodGet, "/v1/instructors/ada/inventory", "")
    assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
}

func TestResponseCache_DisabledIsNil(t *testing.T) {
    rc := NewResponseCache(config.CacheConfig{Enabled: false}, nil)
    assert.Nil(t, rc)
    assert.NoError(t, rc.Invalidate(t.Context(), "/x"))

    e := echo.New()
    e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, rc.Middleware())
    assert.Equal(t, http.StatusNoContent, serve(e, http.MethodGet, "/x", "").Code)
}
