package router

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/mentor-booking/internal/handler"
    "github.com/iliyamo/mentor-booking/internal/middleware"
    "github.com/iliyamo/mentor-booking/internal/model"
)

// RegisterInventory registers the instructor inventory endpoints.  Reading
// is public and goes through the response cache; updates need a MENTOR or
// ADMIN token and drop the cached read.
func RegisterInventory(e *echo.Echo, h *handler.InventoryHandler, cache *middleware.ResponseCache, jwtSecret string) {
    g := e.Group("/v1/instructors/:slug/inventory")
    g.GET("", h.List, cache.Middleware())
    g.PUT("/:type", h.Set,
        middleware.JWTAuth(jwtSecret),
        middleware.RequireRole(model.RoleMentor, model.RoleAdmin),
    )
}
