package repository

import (
    "context"
    "database/sql"
    "errors"

    "github.com/iliyamo/mentor-booking/internal/model"
)

// InventoryRepo tracks open spots per instructor and mentorship type.
type InventoryRepo struct {
    db *sql.DB
}

// NewInventoryRepo returns a new InventoryRepo bound to the provided database.
func NewInventoryRepo(db *sql.DB) *InventoryRepo { return &InventoryRepo{db: db} }

// DB exposes the underlying sql.DB for transaction control.
func (r *InventoryRepo) DB() *sql.DB { return r.db }

// SetTx stores a new count for (slug, type) and returns the previous one.
// The existing row is locked first so two concurrent updates produce a
// consistent previous/new pair.  A missing row counts as 0.
func (r *InventoryRepo) SetTx(ctx context.Context, tx *sql.Tx, slug, typ string, count int) (int, error) {
    var prev int
    err := tx.QueryRowContext(ctx,
        `SELECT count FROM inventory WHERE instructor_slug = ? AND type = ? FOR UPDATE`, slug, typ).Scan(&prev)
    if err != nil && !errors.Is(err, sql.ErrNoRows) {
        return 0, err
    }
    if _, err := tx.ExecContext(ctx,
        `INSERT INTO inventory (instructor_slug, type, count) VALUES (?, ?, ?)
         ON DUPLICATE KEY UPDATE count = VALUES(count), updated_at = UTC_TIMESTAMP()`,
        slug, typ, count); err != nil {
        return 0, err
    }
    return prev, nil
}

// ListBySlug returns the inventory rows for one instructor.
func (r *InventoryRepo) ListBySlug(ctx context.Context, slug string) ([]model.Inventory, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT instructor_slug, type, count, updated_at FROM inventory WHERE instructor_slug = ? ORDER BY type`, slug)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := []model.Inventory{}
    for rows.Next() {
        var inv model.Inventory
        if err := rows.Scan(&inv.InstructorSlug, &inv.Type, &inv.Count, &inv.UpdatedAt); err != nil {
            return nil, err
        }
        out = append(out, inv)
    }
    return out, rows.Err()
}
