package handler

import (
    "context"
    "errors"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/mentor-booking/internal/middleware"
    "github.com/iliyamo/mentor-booking/internal/model"
    "github.com/iliyamo/mentor-booking/internal/repository"
    "github.com/iliyamo/mentor-booking/internal/service"
)

// PackOwners looks up who owns a pack and lists a user's packs.
type PackOwners interface {
    OwnerID(ctx context.Context, packID string) (uint64, error)
    ListByUser(ctx context.Context, userID uint64) ([]repository.PackWithSeat, error)
}

// EligibilityChecker is the read-only booking check.
type EligibilityChecker interface {
    Check(ctx context.Context, packID string, userID uint64, scheduledAt *time.Time) (service.Eligibility, error)
}

// SessionLister lists the sessions booked against a pack.
type SessionLister interface {
    ListByPack(ctx context.Context, packID string) ([]model.MentorshipSession, error)
}

// SessionBooker books a session inside a transaction.
type SessionBooker interface {
    Book(ctx context.Context, packID string, scheduledAt time.Time) (service.Booking, error)
}

// BookingHandler serves the mentee-facing pack endpoints.  It checks pack
// ownership itself; admins may act on any pack.
type BookingHandler struct {
    Packs    PackOwners
    Checker  EligibilityChecker
    Booker   SessionBooker
    Sessions SessionLister
    now      func() time.Time
}

func NewBookingHandler(packs PackOwners, checker EligibilityChecker, booker SessionBooker, sessions SessionLister) *BookingHandler {
    return &BookingHandler{Packs: packs, Checker: checker, Booker: booker, Sessions: sessions, now: time.Now}
}

type scheduleReq struct {
    ScheduledAt string `json:"scheduled_at"` // RFC 3339
}

type packResp struct {
    ID                string    `json:"id"`
    MentorID          uint64    `json:"mentor_id"`
    RemainingSessions int       `json:"remaining_sessions"`
    ExpiresAt         time.Time `json:"expires_at"`
    Status            string    `json:"status"`
    SeatStatus        *string   `json:"seat_status"`
}

// authorizePack resolves the caller and makes sure they may use packID.
// It writes the response itself and returns done=true when the request
// must stop.
func (h *BookingHandler) authorizePack(ctx context.Context, c echo.Context, packID string) (uid uint64, done bool, err error) {
    uid, err = getUserID(c)
    if err != nil {
        return 0, true, c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    owner, err := h.Packs.OwnerID(ctx, packID)
    if err != nil {
        if errors.Is(err, repository.ErrPackNotFound) {
            return uid, true, rejection(c, service.Rejected(service.CodePackNotFound))
        }
        return uid, true, c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
    }
    if owner != uid && middleware.Role(c) != model.RoleAdmin {
        return uid, true, c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
    }
    return uid, false, nil
}

// CheckEligibility handles POST /v1/packs/:id/eligibility.  The optional
// body {"scheduled_at": RFC3339} also checks the time against the pack's
// expiry.  200 {"eligible": true} or 422 {"code","message"}.
func (h *BookingHandler) CheckEligibility(c echo.Context) error {
    packID := c.Param("id")
    var req scheduleReq
    if c.Request().ContentLength != 0 {
        if err := c.Bind(&req); err != nil {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
        }
    }
    scheduledAt, err := parseOptionalTime(req.ScheduledAt)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "scheduled_at must be RFC 3339"})
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
    defer cancel()

    uid, done, err := h.authorizePack(ctx, c, packID)
    if done {
        return err
    }
    res, err := h.Checker.Check(ctx, packID, uid, scheduledAt)
    if err != nil {
        c.Logger().Errorf("eligibility check pack=%s: %v", packID, err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "eligibility check failed"})
    }
    if !res.Valid {
        return rejection(c, res)
    }
    return c.JSON(http.StatusOK, echo.Map{"eligible": true})
}

// BookSession handles POST /v1/packs/:id/sessions with body
// {"scheduled_at": RFC3339}.  The booking re-checks eligibility under row
// locks, so a 422 here can differ from an earlier eligibility call.
func (h *BookingHandler) BookSession(c echo.Context) error {
    packID := c.Param("id")
    var req scheduleReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    scheduledAt, err := parseOptionalTime(req.ScheduledAt)
    if err != nil || scheduledAt == nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "scheduled_at (RFC 3339) required"})
    }
    if !scheduledAt.After(h.now()) {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "scheduled_at must be in the future"})
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
    defer cancel()

    if _, done, err := h.authorizePack(ctx, c, packID); done {
        return err
    }
    b, err := h.Booker.Book(ctx, packID, *scheduledAt)
    if err != nil {
        if errors.Is(err, repository.ErrConflict) {
            return c.JSON(http.StatusConflict, echo.Map{"error": "pack changed, try again"})
        }
        c.Logger().Errorf("book session pack=%s: %v", packID, err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "booking failed"})
    }
    if !b.Eligibility.Valid {
        return rejection(c, b.Eligibility)
    }
    return c.JSON(http.StatusCreated, echo.Map{
        "session_id":   b.Session.ID,
        "scheduled_at": b.Session.ScheduledAt,
        "remaining":    b.Remaining,
    })
}

// ListPacks handles GET /v1/packs: the caller's packs, newest first.
func (h *BookingHandler) ListPacks(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
    defer cancel()

    packs, err := h.Packs.ListByUser(ctx, uid)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
    }
    out := make([]packResp, 0, len(packs))
    for _, p := range packs {
        out = append(out, packResp{
            ID:                p.Pack.ID,
            MentorID:          p.Pack.MentorID,
            RemainingSessions: p.Pack.RemainingSessions,
            ExpiresAt:         p.Pack.ExpiresAt,
            Status:            p.Pack.Status,
            SeatStatus:        p.SeatStatus,
        })
    }
    return c.JSON(http.StatusOK, echo.Map{"packs": out})
}

// ListSessions handles GET /v1/packs/:id/sessions.
func (h *BookingHandler) ListSessions(c echo.Context) error {
    packID := c.Param("id")
    ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
    defer cancel()

    if _, done, err := h.authorizePack(ctx, c, packID); done {
        return err
    }
    sessions, err := h.Sessions.ListByPack(ctx, packID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
    }
    out := make([]echo.Map, 0, len(sessions))
    for _, s := range sessions {
        out = append(out, echo.Map{"id": s.ID, "scheduled_at": s.ScheduledAt, "status": s.Status})
    }
    return c.JSON(http.StatusOK, echo.Map{"sessions": out})
}
