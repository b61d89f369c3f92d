package service

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "time"

    "github.com/labstack/gommon/log"

    "github.com/iliyamo/mentor-booking/internal/besteffort"
    "github.com/iliyamo/mentor-booking/internal/model"
    "github.com/iliyamo/mentor-booking/internal/queue"
)

// ErrInvalidCount is returned for a negative inventory count.
var ErrInvalidCount = errors.New("inventory count must not be negative")

// InventoryWriter stores counts inside a transaction.
type InventoryWriter interface {
    DB() *sql.DB
    SetTx(ctx context.Context, tx *sql.Tx, slug, typ string, count int) (int, error)
}

// InventoryChangedPublisher announces inventory writes.
type InventoryChangedPublisher interface {
    PublishInventoryChanged(ctx context.Context, ev queue.InventoryChangedEvent) error
}

// InventoryChanger is what runs when the broker cannot take the event.
type InventoryChanger interface {
    HandleInventoryChanged(ctx context.Context, slug, typ string, previousCount, newCount int) (InventoryResult, error)
}

// InventoryChange is a stored count with the value it replaced.
type InventoryChange struct {
    Previous int
    Current  int
}

// InventoryService updates open spot counts.
type InventoryService struct {
    inventory   InventoryWriter
    instructors InstructorNames
    publisher   InventoryChangedPublisher
    fallback    InventoryChanger
    tasks       *besteffort.Runner
    logger      *log.Logger
    now         func() time.Time
}

func NewInventoryService(inventory InventoryWriter, instructors InstructorNames, publisher InventoryChangedPublisher, fallback InventoryChanger, tasks *besteffort.Runner, logger *log.Logger) *InventoryService {
    return &InventoryService{inventory: inventory, instructors: instructors, publisher: publisher, fallback: fallback, tasks: tasks, logger: logger, now: time.Now}
}

// Set stores count for (slug, typ) and publishes the transition.  When the
// broker is unreachable the waitlist notifier runs in-process in the
// background instead, so a reopened offer still reaches the waitlist.
func (s *InventoryService) Set(ctx context.Context, slug, typ string, count int) (InventoryChange, error) {
    if !model.ValidMentorshipType(typ) {
        return InventoryChange{}, ErrInvalidType
    }
    if count < 0 {
        return InventoryChange{}, ErrInvalidCount
    }
    if _, err := s.instructors.InstructorName(ctx, slug); err != nil {
        return InventoryChange{}, err
    }

    tx, err := s.inventory.DB().BeginTx(ctx, nil)
    if err != nil {
        return InventoryChange{}, fmt.Errorf("begin inventory tx: %w", err)
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()
    prev, err := s.inventory.SetTx(ctx, tx, slug, typ, count)
    if err != nil {
        return InventoryChange{}, fmt.Errorf("set inventory %s/%s: %w", slug, typ, err)
    }
    if err := tx.Commit(); err != nil {
        return InventoryChange{}, fmt.Errorf("commit inventory: %w", err)
    }
    committed = true

    ev := queue.InventoryChangedEvent{InstructorSlug: slug, Type: typ, PreviousCount: prev, NewCount: count, ChangedAt: s.now().UTC()}
    if err := s.publisher.PublishInventoryChanged(ctx, ev); err != nil {
        s.logger.Warnj(log.JSON{"event": "inventory_publish_failed", "instructor": slug, "type": typ, "error": err.Error()})
        s.tasks.Go(ctx, "inventory changed in-process", func(ctx context.Context) error {
            _, err := s.fallback.HandleInventoryChanged(ctx, slug, typ, prev, count)
            return err
        })
    }
    return InventoryChange{Previous: prev, Current: count}, nil
}
