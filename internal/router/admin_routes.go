package router

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/mentor-booking/internal/handler"
    "github.com/iliyamo/mentor-booking/internal/middleware"
    "github.com/iliyamo/mentor-booking/internal/model"
)

// RegisterAdmin registers operator endpoints under /v1/admin.  All routes
// require a JWT with the ADMIN role.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, jwtSecret string) {
    g := e.Group(
        "/v1/admin",
        middleware.JWTAuth(jwtSecret),
        middleware.RequireRole(model.RoleAdmin),
    )
    g.POST("/packs", h.GrantPack)
}
