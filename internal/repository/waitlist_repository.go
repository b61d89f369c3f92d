package repository

import (
    "context"
    "crypto/sha1"
    "database/sql"
    "fmt"
    "strings"
    "time"

    "github.com/iliyamo/mentor-booking/internal/model"
)

// WaitlistRecipient is the slice of a waitlist row the notifier needs.
type WaitlistRecipient struct {
    ID    uint64
    Email string
}

// WaitlistRepo provides data access to waitlist_entries.  The
// notified/last_notification_at columns are the only record of who has
// been emailed, so every read here can be safely repeated.
type WaitlistRepo struct {
    db *sql.DB
}

// NewWaitlistRepo returns a new WaitlistRepo bound to the provided database.
func NewWaitlistRepo(db *sql.DB) *WaitlistRepo { return &WaitlistRepo{db: db} }

// NormalizeEmail trims and lower-cases an address the same way on insert
// and on comparison.
func NormalizeEmail(email string) string {
    return strings.ToLower(strings.TrimSpace(email))
}

// Add inserts a waitlist entry.  When the (email, instructor_slug, type)
// triple already exists it returns ErrAlreadyOnWaitlist.
func (r *WaitlistRepo) Add(ctx context.Context, e *model.WaitlistEntry) error {
    e.Email = NormalizeEmail(e.Email)
    res, err := r.db.ExecContext(ctx,
        `INSERT INTO waitlist_entries (email, user_id, instructor_slug, type) VALUES (?, ?, ?, ?)`,
        e.Email, e.UserID, e.InstructorSlug, e.Type)
    if err != nil {
        if isDuplicateKey(err) {
            return ErrAlreadyOnWaitlist
        }
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    e.ID = uint64(id)
    return nil
}

// ListEligible returns the rows for (slug, type) that were never notified
// or whose last notification is older than cutoff.
func (r *WaitlistRepo) ListEligible(ctx context.Context, slug, typ string, cutoff time.Time) ([]WaitlistRecipient, error) {
    const q = `SELECT id, email FROM waitlist_entries
               WHERE instructor_slug = ? AND type = ?
                 AND (notified = 0 OR last_notification_at IS NULL OR last_notification_at < ?)
               ORDER BY id`
    rows, err := r.db.QueryContext(ctx, q, slug, typ, cutoff.UTC())
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := []WaitlistRecipient{}
    for rows.Next() {
        var rec WaitlistRecipient
        if err := rows.Scan(&rec.ID, &rec.Email); err != nil {
            return nil, err
        }
        out = append(out, rec)
    }
    return out, rows.Err()
}

// CountWaiting returns how many rows for (slug, type) are waiting for an
// email, using the same rule as ListEligible.
func (r *WaitlistRepo) CountWaiting(ctx context.Context, slug, typ string, cutoff time.Time) (int, error) {
    var n int
    err := r.db.QueryRowContext(ctx,
        `SELECT COUNT(*) FROM waitlist_entries
         WHERE instructor_slug = ? AND type = ?
           AND (notified = 0 OR last_notification_at IS NULL OR last_notification_at < ?)`,
        slug, typ, cutoff.UTC()).Scan(&n)
    return n, err
}

// MarkNotified flags every row for (slug, type) whose email is in emails,
// including rows that were not individually read, since "notified" is a
// property of the (email, instructor, type) key.  It returns the number of
// rows updated.
func (r *WaitlistRepo) MarkNotified(ctx context.Context, slug, typ string, emails []string, at time.Time) (int64, error) {
    if len(emails) == 0 {
        return 0, nil
    }
    placeholders := strings.TrimSuffix(strings.Repeat("?,", len(emails)), ",")
    q := `UPDATE waitlist_entries SET notified = 1, last_notification_at = ?, updated_at = ?
          WHERE instructor_slug = ? AND type = ? AND email IN (` + placeholders + `)`
    ts := at.UTC()
    args := make([]interface{}, 0, len(emails)+4)
    args = append(args, ts, ts, slug, typ)
    for _, e := range emails {
        args = append(args, NormalizeEmail(e))
    }
    res, err := r.db.ExecContext(ctx, q, args...)
    if err != nil {
        return 0, err
    }
    return res.RowsAffected()
}

// ListByEmail returns every entry for an address, for the "my waitlists" view.
func (r *WaitlistRepo) ListByEmail(ctx context.Context, email string) ([]model.WaitlistEntry, error) {
    const q = `SELECT id, email, user_id, instructor_slug, type, notified, last_notification_at, created_at, updated_at
               FROM waitlist_entries WHERE email = ? ORDER BY created_at`
    rows, err := r.db.QueryContext(ctx, q, NormalizeEmail(email))
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := []model.WaitlistEntry{}
    for rows.Next() {
        var e model.WaitlistEntry
        var uid sql.NullInt64
        var last sql.NullTime
        if err := rows.Scan(&e.ID, &e.Email, &uid, &e.InstructorSlug, &e.Type, &e.Notified, &last, &e.CreatedAt, &e.UpdatedAt); err != nil {
            return nil, err
        }
        if uid.Valid {
            v := uint64(uid.Int64)
            e.UserID = &v
        }
        if last.Valid {
            t := last.Time
            e.LastNotificationAt = &t
        }
        out = append(out, e)
    }
    return out, rows.Err()
}

// notifyLockName is the MySQL advisory lock guarding one (slug, type)
// fan-out.  MySQL caps lock names at 64 characters, so the key is hashed
// to a fixed 49-character name.
func notifyLockName(slug, typ string) string {
    sum := sha1.Sum([]byte(typ + ":" + slug))
    return fmt.Sprintf("waitlist:%x", sum[:])
}

// LockNotify takes the advisory lock for (slug, type) on a dedicated
// connection and returns a function that releases it.  Concurrent
// inventory events for the same key are serialized through this lock.
func (r *WaitlistRepo) LockNotify(ctx context.Context, slug, typ string, timeout time.Duration) (func(), error) {
    conn, err := r.db.Conn(ctx)
    if err != nil {
        return nil, fmt.Errorf("pin connection: %w", err)
    }
    name := notifyLockName(slug, typ)
    secs := int(timeout / time.Second)
    if secs < 1 {
        secs = 1
    }
    var got sql.NullInt64
    if err := conn.QueryRowContext(ctx, `SELECT GET_LOCK(?, ?)`, name, secs).Scan(&got); err != nil {
        _ = conn.Close()
        return nil, fmt.Errorf("get_lock %s: %w", name, err)
    }
    if !got.Valid || got.Int64 != 1 {
        _ = conn.Close()
        return nil, ErrLockTimeout
    }
    return func() {
        // Release on a fresh context: the caller's may already be cancelled.
        rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
        defer cancel()
        _, _ = conn.ExecContext(rctx, `SELECT RELEASE_LOCK(?)`, name)
        _ = conn.Close()
    }, nil
}
