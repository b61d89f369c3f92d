package middleware

// identity.go holds the context keys JWTAuth fills in and the accessors
// handlers and other middleware read them through.

import (
    "github.com/labstack/echo/v4"
)

const (
    ctxUserID = "user_id"
    ctxRole   = "role"
)

// UserID returns the authenticated user's id.  ok is false for anonymous
// requests.
func UserID(c echo.Context) (uint64, bool) {
    id, ok := c.Get(ctxUserID).(uint64)
    return id, ok && id != 0
}

// Role returns the authenticated user's role, or "" when anonymous.
func Role(c echo.Context) string {
    r, _ := c.Get(ctxRole).(string)
    return r
}
