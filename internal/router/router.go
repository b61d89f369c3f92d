package router // package router defines how HTTP routes are registered for the API

import (
    "github.com/labstack/echo/v4"
    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promhttp"

    "github.com/iliyamo/mentor-booking/internal/handler"
    "github.com/iliyamo/mentor-booking/internal/middleware"
)

// RegisterRoutes registers the unauthenticated operational endpoints:
// the health check and, when a registry is given, Prometheus metrics.
func RegisterRoutes(e *echo.Echo, db handler.Pinger, reg *prometheus.Registry) {
    e.GET("/healthz", handler.Health(db))
    if reg != nil {
        e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))
    }
}

// RegisterAuth registers the token endpoints under /v1/auth and the
// authenticated profile endpoint at /v1/me.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
    g := e.Group("/v1/auth")
    g.POST("/register", a.Register)
    g.POST("/login", a.Login)
    g.POST("/refresh", a.Refresh)               // rotates the refresh token
    g.POST("/refresh-access", a.RefreshAccess) // keeps the refresh token
    // Logout only needs the refresh token in the body.
    g.POST("/logout", a.Logout)

    e.GET("/v1/me", a.Me, middleware.JWTAuth(jwtSecret))
}
