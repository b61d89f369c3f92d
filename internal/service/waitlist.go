package service

import (
    "context"
    "errors"
    "fmt"
    "net/mail"

    "github.com/labstack/gommon/log"

    "github.com/iliyamo/mentor-booking/internal/besteffort"
    "github.com/iliyamo/mentor-booking/internal/discord"
    "github.com/iliyamo/mentor-booking/internal/mailer"
    "github.com/iliyamo/mentor-booking/internal/model"
    "github.com/iliyamo/mentor-booking/internal/repository"
)

var (
    // ErrInvalidEmail is returned for an address that does not parse.
    ErrInvalidEmail = errors.New("invalid email address")
    // ErrInvalidType is returned for an unknown mentorship type.
    ErrInvalidType = errors.New("invalid mentorship type")
)

// WaitlistAdder inserts waitlist rows.
type WaitlistAdder interface {
    Add(ctx context.Context, e *model.WaitlistEntry) error
}

// InstructorNames resolves an instructor slug to a display name.
type InstructorNames interface {
    InstructorName(ctx context.Context, slug string) (string, error)
}

// WaitlistService signs people up for availability emails.
type WaitlistService struct {
    entries     WaitlistAdder
    instructors InstructorNames
    mail        mailer.Mailer
    admin       AdminNotifier
    tasks       *besteffort.Runner
    logger      *log.Logger
    siteURL     string
}

func NewWaitlistService(entries WaitlistAdder, instructors InstructorNames, mail mailer.Mailer, admin AdminNotifier, tasks *besteffort.Runner, logger *log.Logger, siteURL string) *WaitlistService {
    return &WaitlistService{entries: entries, instructors: instructors, mail: mail, admin: admin, tasks: tasks, logger: logger, siteURL: siteURL}
}

// Join adds email to the (slug, typ) waitlist.  It reports false, with no
// error, when the address was already waiting.  A new signup gets a
// confirmation email and an admin note, both in the background.
func (s *WaitlistService) Join(ctx context.Context, email, slug, typ string, userID *uint64) (bool, error) {
    addr, err := mail.ParseAddress(email)
    if err != nil || addr.Name != "" {
        return false, ErrInvalidEmail
    }
    if !model.ValidMentorshipType(typ) {
        return false, ErrInvalidType
    }
    name, err := s.instructors.InstructorName(ctx, slug)
    if err != nil {
        return false, err
    }

    entry := &model.WaitlistEntry{Email: addr.Address, UserID: userID, InstructorSlug: slug, Type: typ}
    if err := s.entries.Add(ctx, entry); err != nil {
        if errors.Is(err, repository.ErrAlreadyOnWaitlist) {
            s.logger.Infoj(log.JSON{"event": "waitlist_duplicate", "instructor": slug, "type": typ})
            return false, nil
        }
        return false, fmt.Errorf("add waitlist entry: %w", err)
    }

    label := model.MentorshipTypeLabel(typ)
    s.tasks.Go(ctx, "waitlist joined email", func(ctx context.Context) error {
        msg, err := mailer.BuildWaitlistJoined(entry.Email, mailer.WaitlistJoined{InstructorName: name, TypeLabel: label, SiteURL: s.siteURL})
        if err != nil {
            return err
        }
        return s.mail.Send(ctx, msg)
    })
    s.tasks.Go(ctx, "waitlist joined admin note", func(ctx context.Context) error {
        return s.admin.NotifyAdmin(ctx, discord.WaitlistJoinedMessage(entry.Email, name, label))
    })
    return true, nil
}
