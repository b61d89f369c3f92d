package handler

import (
    "context"
    "errors"
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/mentor-booking/internal/model"
    "github.com/iliyamo/mentor-booking/internal/repository"
    "github.com/iliyamo/mentor-booking/internal/service"
)

// WaitlistJoiner adds someone to a waitlist.
type WaitlistJoiner interface {
    Join(ctx context.Context, email, slug, typ string, userID *uint64) (bool, error)
}

// WaitlistReader lists the entries for one address.
type WaitlistReader interface {
    ListByEmail(ctx context.Context, email string) ([]model.WaitlistEntry, error)
}

// UserReader resolves the caller's account.
type UserReader interface {
    GetByID(ctx context.Context, id uint64) (repository.User, error)
}

type WaitlistHandler struct {
    Waitlist WaitlistJoiner
    Entries  WaitlistReader
    Users    UserReader
}

func NewWaitlistHandler(w WaitlistJoiner, entries WaitlistReader, users UserReader) *WaitlistHandler {
    return &WaitlistHandler{Waitlist: w, Entries: entries, Users: users}
}

type joinWaitlistReq struct {
    Email          string `json:"email"`
    InstructorSlug string `json:"instructor_slug"`
    Type           string `json:"type"`
}

// Join handles POST /v1/waitlist.  It is public; a valid bearer token
// links the entry to the account.  201 for a new entry, 200 when the
// address was already waiting.
func (h *WaitlistHandler) Join(c echo.Context) error {
    var req joinWaitlistReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    slug := strings.TrimSpace(req.InstructorSlug)
    if slug == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "instructor_slug required"})
    }
    var uid *uint64
    if id, err := getUserID(c); err == nil {
        uid = &id
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
    defer cancel()

    joined, err := h.Waitlist.Join(ctx, strings.TrimSpace(req.Email), slug, strings.TrimSpace(req.Type), uid)
    switch {
    case errors.Is(err, service.ErrInvalidEmail):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid email"})
    case errors.Is(err, service.ErrInvalidType):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "type must be one-on-one or group"})
    case errors.Is(err, repository.ErrInstructorNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "instructor not found"})
    case err != nil:
        c.Logger().Errorf("join waitlist %s: %v", slug, err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "join failed"})
    }
    if !joined {
        return c.JSON(http.StatusOK, echo.Map{"status": "already_on_waitlist"})
    }
    return c.JSON(http.StatusCreated, echo.Map{"status": "joined"})
}

// Mine handles GET /v1/waitlist/me: the waitlists the caller's email is on,
// including ones joined before signing up.
func (h *WaitlistHandler) Mine(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
    defer cancel()

    u, err := h.Users.GetByID(ctx, uid)
    if err != nil {
        if errors.Is(err, repository.ErrUserNotFound) {
            return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
    }
    entries, err := h.Entries.ListByEmail(ctx, u.Email)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
    }
    out := make([]echo.Map, 0, len(entries))
    for _, e := range entries {
        out = append(out, echo.Map{
            "instructor_slug":      e.InstructorSlug,
            "type":                 e.Type,
            "notified":             e.Notified,
            "last_notification_at": e.LastNotificationAt,
            "joined_at":            e.CreatedAt,
        })
    }
    return c.JSON(http.StatusOK, echo.Map{"waitlists": out})
}
