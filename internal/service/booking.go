package service

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "time"

    "github.com/labstack/gommon/log"

    "github.com/iliyamo/mentor-booking/internal/besteffort"
    "github.com/iliyamo/mentor-booking/internal/metrics"
    "github.com/iliyamo/mentor-booking/internal/model"
    "github.com/iliyamo/mentor-booking/internal/queue"
    "github.com/iliyamo/mentor-booking/internal/repository"
)

// BookingPacks is the transactional pack access booking needs.
type BookingPacks interface {
    DB() *sql.DB
    GetWithSeatForUpdateTx(ctx context.Context, tx *sql.Tx, packID string) (*repository.PackWithSeat, error)
    DecrementRemainingTx(ctx context.Context, tx *sql.Tx, packID string) (int, error)
}

// SessionWriter inserts a session inside a transaction.
type SessionWriter interface {
    CreateTx(ctx context.Context, tx *sql.Tx, s *model.MentorshipSession) error
}

// SessionBookedPublisher announces committed bookings.
type SessionBookedPublisher interface {
    PublishSessionBooked(ctx context.Context, ev queue.SessionBookedEvent) error
}

// Booking is the outcome of Book.  When Eligibility is not valid nothing
// was written and Session is nil.
type Booking struct {
    Eligibility Eligibility
    Session     *model.MentorshipSession
    Remaining   int
}

// BookingService writes sessions against packs.
type BookingService struct {
    packs     BookingPacks
    sessions  SessionWriter
    publisher SessionBookedPublisher
    tasks     *besteffort.Runner
    metrics   *metrics.Metrics
    logger    *log.Logger
    now       func() time.Time
}

func NewBookingService(packs BookingPacks, sessions SessionWriter, publisher SessionBookedPublisher, tasks *besteffort.Runner, m *metrics.Metrics, logger *log.Logger) *BookingService {
    return &BookingService{packs: packs, sessions: sessions, publisher: publisher, tasks: tasks, metrics: m, logger: logger, now: time.Now}
}

// Book re-reads the pack and seat with row locks, re-runs Evaluate on the
// fresh row and, when it passes, inserts the session and consumes one
// pack session in the same transaction.  The earlier read-only check is
// never trusted.  A committed booking is published as session.booked in
// the background.
func (s *BookingService) Book(ctx context.Context, packID string, scheduledAt time.Time) (Booking, error) {
    tx, err := s.packs.DB().BeginTx(ctx, nil)
    if err != nil {
        s.metrics.Booking("error")
        return Booking{}, fmt.Errorf("begin booking tx: %w", err)
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    p, err := s.packs.GetWithSeatForUpdateTx(ctx, tx, packID)
    if err != nil && !errors.Is(err, repository.ErrPackNotFound) {
        s.metrics.Booking("error")
        return Booking{}, fmt.Errorf("lock pack %s: %w", packID, err)
    }
    at := scheduledAt.UTC()
    res := Evaluate(p, s.now().UTC(), &at)
    if !res.Valid {
        s.metrics.Booking("rejected")
        s.logger.Infoj(log.JSON{"event": "booking_rejected", "pack_id": packID, "code": string(res.Code)})
        return Booking{Eligibility: res}, nil
    }

    sess := &model.MentorshipSession{
        PackID:      packID,
        MentorID:    p.Pack.MentorID,
        MenteeID:    p.Pack.UserID,
        ScheduledAt: at,
    }
    if err := s.sessions.CreateTx(ctx, tx, sess); err != nil {
        s.metrics.Booking("error")
        return Booking{}, fmt.Errorf("insert session: %w", err)
    }
    remaining, err := s.packs.DecrementRemainingTx(ctx, tx, packID)
    if err != nil {
        if errors.Is(err, repository.ErrConflict) {
            s.metrics.Booking("conflict")
        } else {
            s.metrics.Booking("error")
        }
        return Booking{}, fmt.Errorf("decrement pack %s: %w", packID, err)
    }
    if err := tx.Commit(); err != nil {
        s.metrics.Booking("error")
        return Booking{}, fmt.Errorf("commit booking: %w", err)
    }
    committed = true
    s.metrics.Booking("booked")

    ev := queue.SessionBookedEvent{
        SessionID:   sess.ID,
        PackID:      packID,
        MenteeID:    sess.MenteeID,
        MentorID:    sess.MentorID,
        ScheduledAt: at,
        Remaining:   remaining,
        BookedAt:    s.now().UTC(),
    }
    s.tasks.Go(ctx, "publish session.booked", func(ctx context.Context) error {
        return s.publisher.PublishSessionBooked(ctx, ev)
    })
    return Booking{Eligibility: Eligible(), Session: sess, Remaining: remaining}, nil
}
