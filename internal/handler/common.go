package handler // handler defines the HTTP handlers

import (
    "errors"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/mentor-booking/internal/middleware"
    "github.com/iliyamo/mentor-booking/internal/service"
)

// dbTimeout bounds the store calls a single request makes.
const dbTimeout = 5 * time.Second

var errNoUser = errors.New("invalid user_id in context")

// getUserID returns the authenticated caller set by the JWT middleware.
func getUserID(c echo.Context) (uint64, error) {
    id, ok := middleware.UserID(c)
    if !ok {
        return 0, errNoUser
    }
    return id, nil
}

// rejection writes a business rejection with its stable code.
func rejection(c echo.Context, e service.Eligibility) error {
    return c.JSON(http.StatusUnprocessableEntity, echo.Map{
        "code":    string(e.Code),
        "message": e.Code.Message(),
    })
}

// parseOptionalTime parses an RFC 3339 timestamp; an empty string is nil.
func parseOptionalTime(s string) (*time.Time, error) {
    if s == "" {
        return nil, nil
    }
    t, err := time.Parse(time.RFC3339, s)
    if err != nil {
        return nil, err
    }
    t = t.UTC()
    return &t, nil
}
