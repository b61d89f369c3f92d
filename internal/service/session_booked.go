package service

import (
    "context"
    "errors"
    "fmt"
    "io"
    "sync"

    "github.com/labstack/gommon/log"

    "github.com/iliyamo/mentor-booking/internal/besteffort"
    "github.com/iliyamo/mentor-booking/internal/discord"
    "github.com/iliyamo/mentor-booking/internal/mailer"
    "github.com/iliyamo/mentor-booking/internal/queue"
    "github.com/iliyamo/mentor-booking/internal/repository"
)

// UserLookup resolves a user id to its account.
type UserLookup interface {
    GetByID(ctx context.Context, id uint64) (repository.User, error)
}

// SessionBookedHandler consumes session.booked: it appends an audit line,
// emails the mentee a confirmation and posts an admin note.
type SessionBookedHandler struct {
    users  UserLookup
    mail   mailer.Mailer
    admin  AdminNotifier
    tasks  *besteffort.Runner
    logger *log.Logger

    mu    sync.Mutex
    audit io.Writer
}

func NewSessionBookedHandler(users UserLookup, mail mailer.Mailer, admin AdminNotifier, tasks *besteffort.Runner, audit io.Writer, logger *log.Logger) *SessionBookedHandler {
    return &SessionBookedHandler{users: users, mail: mail, admin: admin, tasks: tasks, audit: audit, logger: logger}
}

// HandleEvent is the session.booked queue handler.  The audit write is the
// part that must succeed; the email is best effort.
func (h *SessionBookedHandler) HandleEvent(ctx context.Context, body []byte) error {
    ev, err := queue.Decode[queue.SessionBookedEvent](body)
    if err != nil {
        return err
    }
    if ev.SessionID == "" {
        return queue.Permanent(errors.New("session.booked event without session_id"))
    }

    line := fmt.Sprintf("[%s] Session booked | session_id=%s | pack_id=%s | mentee_id=%d | mentor_id=%d | scheduled_at=%s | remaining=%d\n",
        ev.BookedAt.UTC().Format("2006-01-02T15:04:05Z"), ev.SessionID, ev.PackID, ev.MenteeID, ev.MentorID,
        ev.ScheduledAt.UTC().Format("2006-01-02T15:04:05Z"), ev.Remaining)
    h.mu.Lock()
    _, err = io.WriteString(h.audit, line)
    h.mu.Unlock()
    if err != nil {
        return fmt.Errorf("write audit: %w", err)
    }

    h.tasks.Run(ctx, "session booked email", func(ctx context.Context) error {
        u, err := h.users.GetByID(ctx, ev.MenteeID)
        if err != nil {
            return fmt.Errorf("lookup mentee %d: %w", ev.MenteeID, err)
        }
        msg, err := mailer.BuildSessionBooked(u.Email, mailer.SessionBooked{SessionID: ev.SessionID, ScheduledAt: ev.ScheduledAt, Remaining: ev.Remaining})
        if err != nil {
            return err
        }
        return h.mail.Send(ctx, msg)
    })
    h.tasks.Run(ctx, "session booked admin note", func(ctx context.Context) error {
        when := ev.ScheduledAt.UTC().Format("Mon 2 Jan 15:04 MST")
        return h.admin.NotifyAdmin(ctx, discord.SessionBookedMessage(ev.SessionID, when, ev.Remaining))
    })
    return nil
}
