package router

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/mentor-booking/internal/handler"
    "github.com/iliyamo/mentor-booking/internal/middleware"
    "github.com/iliyamo/mentor-booking/internal/model"
)

// RegisterPacks registers the pack endpoints under /v1/packs.  Every route
// needs a valid JWT; the handler checks that the caller owns the pack, and
// admins may act on any pack.
func RegisterPacks(e *echo.Echo, h *handler.BookingHandler, jwtSecret string) {
    g := e.Group(
        "/v1/packs",
        middleware.JWTAuth(jwtSecret),
        middleware.RequireRole(model.RoleMentee, model.RoleAdmin),
    )
    g.GET("", h.ListPacks)
    g.POST("/:id/eligibility", h.CheckEligibility)
    g.POST("/:id/sessions", h.BookSession)
    g.GET("/:id/sessions", h.ListSessions)
}

// RegisterWaitlist registers the waitlist endpoints.  Joining is public:
// a token, when present, links the entry to the account.
func RegisterWaitlist(e *echo.Echo, h *handler.WaitlistHandler, jwtSecret string) {
    e.POST("/v1/waitlist", h.Join, middleware.OptionalJWT(jwtSecret))
    e.GET("/v1/waitlist/me", h.Mine, middleware.JWTAuth(jwtSecret))
}
