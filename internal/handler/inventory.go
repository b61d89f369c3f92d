package handler

import (
    "context"
    "errors"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/mentor-booking/internal/model"
    "github.com/iliyamo/mentor-booking/internal/repository"
    "github.com/iliyamo/mentor-booking/internal/service"
)

// InventorySetter stores a new count and announces the change.
type InventorySetter interface {
    Set(ctx context.Context, slug, typ string, count int) (service.InventoryChange, error)
}

// InventoryLister reads an instructor's current counts.
type InventoryLister interface {
    ListBySlug(ctx context.Context, slug string) ([]model.Inventory, error)
}

// CacheInvalidator drops a cached GET response.
type CacheInvalidator interface {
    Invalidate(ctx context.Context, path string) error
}

type InventoryHandler struct {
    Inventory InventorySetter
    Lister    InventoryLister
    Cache     CacheInvalidator // may be nil
}

func NewInventoryHandler(s InventorySetter, l InventoryLister, cache CacheInvalidator) *InventoryHandler {
    return &InventoryHandler{Inventory: s, Lister: l, Cache: cache}
}

type setInventoryReq struct {
    Count *int `json:"count"`
}

// Set handles PUT /v1/instructors/:slug/inventory/:type with {"count": n}.
func (h *InventoryHandler) Set(c echo.Context) error {
    slug, typ := c.Param("slug"), c.Param("type")
    var req setInventoryReq
    if err := c.Bind(&req); err != nil || req.Count == nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "count required"})
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
    defer cancel()

    ch, err := h.Inventory.Set(ctx, slug, typ, *req.Count)
    switch {
    case errors.Is(err, service.ErrInvalidType):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "type must be one-on-one or group"})
    case errors.Is(err, service.ErrInvalidCount):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "count must not be negative"})
    case errors.Is(err, repository.ErrInstructorNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "instructor not found"})
    case err != nil:
        c.Logger().Errorf("set inventory %s/%s: %v", slug, typ, err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
    }
    if h.Cache != nil {
        if err := h.Cache.Invalidate(ctx, "/v1/instructors/"+slug+"/inventory"); err != nil {
            c.Logger().Warnf("invalidate inventory cache %s: %v", slug, err)
        }
    }
    return c.JSON(http.StatusOK, echo.Map{
        "instructor_slug": slug,
        "type":            typ,
        "previous_count":  ch.Previous,
        "count":           ch.Current,
    })
}

// List handles GET /v1/instructors/:slug/inventory.
func (h *InventoryHandler) List(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
    defer cancel()

    items, err := h.Lister.ListBySlug(ctx, c.Param("slug"))
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
    }
    out := make([]echo.Map, 0, len(items))
    for _, it := range items {
        out = append(out, echo.Map{"type": it.Type, "count": it.Count, "available": it.Count > 0})
    }
    return c.JSON(http.StatusOK, echo.Map{"instructor_slug": c.Param("slug"), "inventory": out})
}
