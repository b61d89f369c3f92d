package handler

import (
    "context"
    "database/sql"
    "net/http"
    "time"

    "github.com/google/uuid"
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/mentor-booking/internal/model"
)

// PackGranter creates packs with their seat in a transaction.
type PackGranter interface {
    DB() *sql.DB
    CreateWithSeatTx(ctx context.Context, tx *sql.Tx, p model.SessionPack) error
}

// AdminHandler holds the operator-only endpoints.
type AdminHandler struct {
    Packs PackGranter
}

func NewAdminHandler(p PackGranter) *AdminHandler { return &AdminHandler{Packs: p} }

type grantPackReq struct {
    UserID    uint64 `json:"user_id"`
    MentorID  uint64 `json:"mentor_id"`
    Sessions  int    `json:"sessions"`
    ExpiresAt string `json:"expires_at"` // RFC 3339
}

// GrantPack handles POST /v1/admin/packs: create an active pack with an
// active seat for a user, as payment fulfilment would.
func (h *AdminHandler) GrantPack(c echo.Context) error {
    var req grantPackReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    if req.UserID == 0 || req.MentorID == 0 || req.Sessions <= 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_id, mentor_id and positive sessions required"})
    }
    exp, err := time.Parse(time.RFC3339, req.ExpiresAt)
    if err != nil || !exp.After(time.Now()) {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "expires_at must be a future RFC 3339 time"})
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
    defer cancel()

    tx, err := h.Packs.DB().BeginTx(ctx, nil)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "begin tx failed"})
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    p := model.SessionPack{
        ID:                uuid.NewString(),
        UserID:            req.UserID,
        MentorID:          req.MentorID,
        RemainingSessions: req.Sessions,
        ExpiresAt:         exp.UTC(),
        Status:            model.PackActive,
    }
    if err := h.Packs.CreateWithSeatTx(ctx, tx, p); err != nil {
        c.Logger().Errorf("grant pack: %v", err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create pack failed"})
    }
    if err := tx.Commit(); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "commit failed"})
    }
    committed = true

    return c.JSON(http.StatusCreated, packResp{
        ID:                p.ID,
        MentorID:          p.MentorID,
        RemainingSessions: p.RemainingSessions,
        ExpiresAt:         p.ExpiresAt,
        Status:            p.Status,
        SeatStatus:        strPtr(model.SeatActive),
    })
}

func strPtr(s string) *string { return &s }
