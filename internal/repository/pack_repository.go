package repository

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "time"

    "github.com/iliyamo/mentor-booking/internal/model"
)

// PackWithSeat is a session pack joined with its (optional) seat.  It is
// the single row the eligibility rules are evaluated against.
type PackWithSeat struct {
    Pack       model.SessionPack
    SeatStatus *string // nil when the pack has no seat row
}

// PackRepo provides data access to session_packs and seats.  All
// timestamps are stored and compared in UTC.
type PackRepo struct {
    db *sql.DB
}

// NewPackRepo returns a new PackRepo bound to the provided database.
func NewPackRepo(db *sql.DB) *PackRepo { return &PackRepo{db: db} }

// DB exposes the underlying sql.DB so callers can begin transactions
// spanning several repositories.
func (r *PackRepo) DB() *sql.DB { return r.db }

const packWithSeatQuery = `SELECT p.id, p.user_id, p.mentor_id, p.remaining_sessions, p.expires_at,
                                  p.status, p.created_at, p.updated_at, s.status
                           FROM session_packs p
                           LEFT JOIN seats s ON s.pack_id = p.id
                           WHERE p.id = ?`

type rowScanner interface {
    Scan(dest ...any) error
}

func scanPackWithSeat(row rowScanner) (*PackWithSeat, error) {
    var out PackWithSeat
    var seatStatus sql.NullString
    err := row.Scan(
        &out.Pack.ID, &out.Pack.UserID, &out.Pack.MentorID, &out.Pack.RemainingSessions,
        &out.Pack.ExpiresAt, &out.Pack.Status, &out.Pack.CreatedAt, &out.Pack.UpdatedAt,
        &seatStatus,
    )
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrPackNotFound
    }
    if err != nil {
        return nil, err
    }
    if seatStatus.Valid {
        s := seatStatus.String
        out.SeatStatus = &s
    }
    return &out, nil
}

// GetWithSeat loads a pack and its seat in a single round trip.  It returns
// ErrPackNotFound when no pack has the given id.
func (r *PackRepo) GetWithSeat(ctx context.Context, packID string) (*PackWithSeat, error) {
    return scanPackWithSeat(r.db.QueryRowContext(ctx, packWithSeatQuery, packID))
}

// GetWithSeatForUpdateTx is GetWithSeat inside a transaction, locking the
// pack and seat rows until the transaction ends.  Booking uses it to
// re-check eligibility at write time.
func (r *PackRepo) GetWithSeatForUpdateTx(ctx context.Context, tx *sql.Tx, packID string) (*PackWithSeat, error) {
    return scanPackWithSeat(tx.QueryRowContext(ctx, packWithSeatQuery+` FOR UPDATE`, packID))
}

// OwnerID returns the user that owns the pack, or ErrPackNotFound.
func (r *PackRepo) OwnerID(ctx context.Context, packID string) (uint64, error) {
    var uid uint64
    err := r.db.QueryRowContext(ctx, `SELECT user_id FROM session_packs WHERE id = ?`, packID).Scan(&uid)
    if errors.Is(err, sql.ErrNoRows) {
        return 0, ErrPackNotFound
    }
    return uid, err
}

// DecrementRemainingTx consumes one session from the pack and returns the
// new remaining count.  The guard in the WHERE clause keeps the column
// from going negative; if no row matched, ErrConflict is returned.
func (r *PackRepo) DecrementRemainingTx(ctx context.Context, tx *sql.Tx, packID string) (int, error) {
    res, err := tx.ExecContext(ctx,
        `UPDATE session_packs SET remaining_sessions = remaining_sessions - 1, updated_at = UTC_TIMESTAMP()
         WHERE id = ? AND remaining_sessions > 0`, packID)
    if err != nil {
        return 0, err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return 0, err
    }
    if n != 1 {
        return 0, ErrConflict
    }
    var remaining int
    if err := tx.QueryRowContext(ctx, `SELECT remaining_sessions FROM session_packs WHERE id = ?`, packID).Scan(&remaining); err != nil {
        return 0, err
    }
    return remaining, nil
}

// ListByUser returns every pack owned by the user with its seat status,
// newest first.
func (r *PackRepo) ListByUser(ctx context.Context, userID uint64) ([]PackWithSeat, error) {
    const q = `SELECT p.id, p.user_id, p.mentor_id, p.remaining_sessions, p.expires_at,
                      p.status, p.created_at, p.updated_at, s.status
               FROM session_packs p
               LEFT JOIN seats s ON s.pack_id = p.id
               WHERE p.user_id = ?
               ORDER BY p.created_at DESC`
    rows, err := r.db.QueryContext(ctx, q, userID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := []PackWithSeat{}
    for rows.Next() {
        p, err := scanPackWithSeat(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, *p)
    }
    return out, rows.Err()
}

// CreateWithSeatTx inserts a new active pack and its active seat.  Packs are
// created by the payment fulfilment flow; the id is generated by the caller.
func (r *PackRepo) CreateWithSeatTx(ctx context.Context, tx *sql.Tx, p model.SessionPack) error {
    if p.Status == "" {
        p.Status = model.PackActive
    }
    if _, err := tx.ExecContext(ctx,
        `INSERT INTO session_packs (id, user_id, mentor_id, remaining_sessions, expires_at, status) VALUES (?, ?, ?, ?, ?, ?)`,
        p.ID, p.UserID, p.MentorID, p.RemainingSessions, p.ExpiresAt.UTC().Format(time.DateTime), p.Status,
    ); err != nil {
        return fmt.Errorf("insert pack: %w", err)
    }
    if _, err := tx.ExecContext(ctx, `INSERT INTO seats (pack_id, status) VALUES (?, ?)`, p.ID, model.SeatActive); err != nil {
        return fmt.Errorf("insert seat: %w", err)
    }
    return nil
}
