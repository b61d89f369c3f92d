package handler

import (
    "context"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
    PingContext(ctx context.Context) error
}

// Health reports "ok" when the database answers a ping within two
// seconds, and 503 otherwise.  Load balancers poll it.
func Health(db Pinger) echo.HandlerFunc {
    return func(c echo.Context) error {
        ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
        defer cancel()
        if err := db.PingContext(ctx); err != nil {
            return c.String(http.StatusServiceUnavailable, "db unavailable")
        }
        return c.String(http.StatusOK, "ok")
    }
}
