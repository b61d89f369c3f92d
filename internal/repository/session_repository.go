package repository

import (
    "context"
    "database/sql"
    "time"

    "github.com/google/uuid"

    "github.com/iliyamo/mentor-booking/internal/model"
)

// SessionRepo persists booked mentorship sessions.
type SessionRepo struct {
    db *sql.DB
}

// NewSessionRepo returns a new SessionRepo bound to the given database.
func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{db: db} }

// CreateTx inserts a SCHEDULED session inside the caller's transaction.  A
// fresh UUID is assigned to s.ID when it is empty.
func (r *SessionRepo) CreateTx(ctx context.Context, tx *sql.Tx, s *model.MentorshipSession) error {
    if s.ID == "" {
        s.ID = uuid.NewString()
    }
    if s.Status == "" {
        s.Status = "SCHEDULED"
    }
    const q = `INSERT INTO mentorship_sessions (id, pack_id, mentor_id, mentee_id, scheduled_at, status) VALUES (?, ?, ?, ?, ?, ?)`
    _, err := tx.ExecContext(ctx, q, s.ID, s.PackID, s.MentorID, s.MenteeID, s.ScheduledAt.UTC().Format(time.DateTime), s.Status)
    return err
}

// ListByPack returns the sessions booked against a pack, oldest first.
func (r *SessionRepo) ListByPack(ctx context.Context, packID string) ([]model.MentorshipSession, error) {
    const q = `SELECT id, pack_id, mentor_id, mentee_id, scheduled_at, status, created_at
               FROM mentorship_sessions WHERE pack_id = ? ORDER BY scheduled_at`
    rows, err := r.db.QueryContext(ctx, q, packID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := []model.MentorshipSession{}
    for rows.Next() {
        var s model.MentorshipSession
        if err := rows.Scan(&s.ID, &s.PackID, &s.MentorID, &s.MenteeID, &s.ScheduledAt, &s.Status, &s.CreatedAt); err != nil {
            return nil, err
        }
        out = append(out, s)
    }
    return out, rows.Err()
}
