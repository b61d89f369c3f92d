package service

import (
    "context"
    "errors"
    "fmt"
    "strings"
    "sync"
    "time"

    "github.com/labstack/gommon/log"
    "golang.org/x/sync/errgroup"
    "golang.org/x/time/rate"

    "github.com/iliyamo/mentor-booking/internal/besteffort"
    "github.com/iliyamo/mentor-booking/internal/config"
    "github.com/iliyamo/mentor-booking/internal/discord"
    "github.com/iliyamo/mentor-booking/internal/mailer"
    "github.com/iliyamo/mentor-booking/internal/metrics"
    "github.com/iliyamo/mentor-booking/internal/model"
    "github.com/iliyamo/mentor-booking/internal/queue"
    "github.com/iliyamo/mentor-booking/internal/repository"
)

// Skip reasons reported in InventoryResult.SkippedReason.
const (
    SkipNoInventory        = "no inventory"
    SkipInventoryExhausted = "inventory exhausted"
    SkipStillAvailable     = "still available"
    SkipNoActiveOffer      = "no active offer"
    SkipNoRecipients       = "no eligible recipients"
)

// markTimeout bounds the bookkeeping write after a fan-out.
const markTimeout = 10 * time.Second

// InventoryResult reports what one inventory change did.  SkippedReason is
// empty when emails were attempted.
type InventoryResult struct {
    NotifiedCount int
    SkippedReason string
}

// WaitlistStore is the waitlist persistence the notifier needs.
type WaitlistStore interface {
    ListEligible(ctx context.Context, slug, typ string, cutoff time.Time) ([]repository.WaitlistRecipient, error)
    CountWaiting(ctx context.Context, slug, typ string, cutoff time.Time) (int, error)
    MarkNotified(ctx context.Context, slug, typ string, emails []string, at time.Time) (int64, error)
    LockNotify(ctx context.Context, slug, typ string, timeout time.Duration) (func(), error)
}

// OfferLookup finds the purchase path a waitlist email links to.
type OfferLookup interface {
    ActiveOffer(ctx context.Context, slug, typ string) (repository.ActiveOffer, bool, error)
    InstructorName(ctx context.Context, slug string) (string, error)
}

// AdminNotifier posts operational notes, typically to Discord.
type AdminNotifier interface {
    NotifyAdmin(ctx context.Context, content string) error
    NotifyChannel(ctx context.Context, channelID, content string) error
}

// WaitlistNotifier emails waitlisted people when an instructor's spots
// reopen.  Every step can be repeated: the notified and
// last_notification_at columns are the only bookkeeping, so a retry
// re-derives the same recipient set minus whoever was already marked.
type WaitlistNotifier struct {
    waitlist WaitlistStore
    offers   OfferLookup
    mail     mailer.Mailer
    admin    AdminNotifier
    tasks    *besteffort.Runner
    metrics  *metrics.Metrics
    logger   *log.Logger
    cfg      config.NotifierConfig
    siteURL  string
    now      func() time.Time
}

func NewWaitlistNotifier(
    waitlist WaitlistStore,
    offers OfferLookup,
    mail mailer.Mailer,
    admin AdminNotifier,
    tasks *besteffort.Runner,
    m *metrics.Metrics,
    logger *log.Logger,
    cfg config.NotifierConfig,
    siteURL string,
) *WaitlistNotifier {
    if cfg.Cooldown <= 0 {
        cfg.Cooldown = 7 * 24 * time.Hour
    }
    if cfg.SendTimeout <= 0 {
        cfg.SendTimeout = 5 * time.Second
    }
    return &WaitlistNotifier{
        waitlist: waitlist,
        offers:   offers,
        mail:     mail,
        admin:    admin,
        tasks:    tasks,
        metrics:  m,
        logger:   logger,
        cfg:      cfg,
        siteURL:  strings.TrimRight(siteURL, "/"),
        now:      time.Now,
    }
}

// HandleInventoryChanged decides what an inventory change means for the
// waitlist of (slug, typ).  Mail goes out only when the count moves from
// zero (or below) to positive.  Moving from positive to zero posts an
// admin note and writes nothing.  Store failures are returned so the
// caller can retry the whole call; individual send failures are not.
func (n *WaitlistNotifier) HandleInventoryChanged(ctx context.Context, slug, typ string, previousCount, newCount int) (res InventoryResult, err error) {
    start := n.now()
    defer func() {
        result := res.SkippedReason
        switch {
        case err != nil:
            result = "error"
        case result == "":
            result = "notified"
        }
        n.metrics.NotifierRun(result, n.now().Sub(start))
    }()

    switch {
    case newCount <= 0 && previousCount > 0:
        n.tasks.Run(ctx, "announce inventory exhausted", func(ctx context.Context) error {
            return n.announceExhausted(ctx, slug, typ)
        })
        return InventoryResult{SkippedReason: SkipInventoryExhausted}, nil
    case newCount <= 0:
        return InventoryResult{SkippedReason: SkipNoInventory}, nil
    case previousCount > 0:
        return InventoryResult{SkippedReason: SkipStillAvailable}, nil
    }

    offer, ok, err := n.offers.ActiveOffer(ctx, slug, typ)
    if err != nil {
        return InventoryResult{}, fmt.Errorf("lookup offer %s/%s: %w", slug, typ, err)
    }
    if !ok {
        n.logger.Infoj(log.JSON{"event": "waitlist_skipped", "instructor": slug, "type": typ, "reason": SkipNoActiveOffer})
        return InventoryResult{SkippedReason: SkipNoActiveOffer}, nil
    }

    unlock, err := n.waitlist.LockNotify(ctx, slug, typ, n.cfg.LockTimeout)
    if err != nil {
        return InventoryResult{}, fmt.Errorf("lock waitlist %s/%s: %w", slug, typ, err)
    }
    defer unlock()

    cutoff := n.now().UTC().Add(-n.cfg.Cooldown)
    rows, err := n.waitlist.ListEligible(ctx, slug, typ, cutoff)
    if err != nil {
        return InventoryResult{}, fmt.Errorf("list eligible %s/%s: %w", slug, typ, err)
    }
    recipients := DistinctEmails(rows)
    if len(recipients) == 0 {
        n.logger.Infoj(log.JSON{"event": "waitlist_skipped", "instructor": slug, "type": typ, "reason": SkipNoRecipients})
        return InventoryResult{SkippedReason: SkipNoRecipients}, nil
    }

    data := mailer.WaitlistAvailable{
        InstructorName: offer.InstructorName,
        TypeLabel:      model.MentorshipTypeLabel(typ),
        CheckoutURL:    n.absoluteURL(offer.CheckoutURL),
        SiteURL:        n.siteURL,
    }
    sent := n.sendAll(ctx, recipients, data)

    // Delivered emails must be recorded even when ctx ended during the
    // fan-out, or a retry would email the same people again.
    if len(sent) > 0 {
        mctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), markTimeout)
        _, err := n.waitlist.MarkNotified(mctx, slug, typ, sent, n.now().UTC())
        cancel()
        if err != nil {
            return InventoryResult{}, fmt.Errorf("mark notified %s/%s: %w", slug, typ, err)
        }
    }
    if err := ctx.Err(); err != nil {
        // Cut short: hand back an error so the event is redelivered and the
        // unsent rows, still eligible, get their email.
        return InventoryResult{NotifiedCount: len(sent)}, fmt.Errorf("fan-out %s/%s interrupted after %d sends: %w", slug, typ, len(sent), err)
    }

    failed := len(recipients) - len(sent)
    n.logger.Infoj(log.JSON{"event": "waitlist_notified", "instructor": slug, "type": typ, "sent": len(sent), "failed": failed})
    summary := discord.WaitlistNotifiedMessage(offer.InstructorName, model.MentorshipTypeLabel(typ), len(sent), failed)
    n.tasks.Run(ctx, "announce waitlist notified", func(ctx context.Context) error {
        var errs []error
        errs = append(errs, n.admin.NotifyAdmin(ctx, summary))
        if offer.DiscordChannelID != nil {
            errs = append(errs, n.admin.NotifyChannel(ctx, *offer.DiscordChannelID, summary))
        }
        return errors.Join(errs...)
    })
    return InventoryResult{NotifiedCount: len(sent)}, nil
}

// HandleEvent is the inventory.changed queue handler.
func (n *WaitlistNotifier) HandleEvent(ctx context.Context, body []byte) error {
    ev, err := queue.Decode[queue.InventoryChangedEvent](body)
    if err != nil {
        return err
    }
    if ev.InstructorSlug == "" || !model.ValidMentorshipType(ev.Type) {
        return queue.Permanent(fmt.Errorf("invalid inventory event %q/%q", ev.InstructorSlug, ev.Type))
    }
    _, err = n.HandleInventoryChanged(ctx, ev.InstructorSlug, ev.Type, ev.PreviousCount, ev.NewCount)
    return err
}

// sendAll sends one email per address with bounded concurrency and
// pacing, waits for every send to settle and returns the addresses that
// succeeded, in input order.
func (n *WaitlistNotifier) sendAll(ctx context.Context, emails []string, data mailer.WaitlistAvailable) []string {
    every := rate.Inf
    if n.cfg.SendsPerSecond > 0 {
        every = rate.Limit(n.cfg.SendsPerSecond)
    }
    limiter := rate.NewLimiter(every, 1)
    ok := make([]bool, len(emails))
    var mu sync.Mutex

    g, gctx := errgroup.WithContext(ctx)
    g.SetLimit(max(n.cfg.Concurrency, 1))
    for i, email := range emails {
        g.Go(func() error {
            if err := n.sendOne(gctx, limiter, email, data); err != nil {
                n.metrics.WaitlistEmail("failed")
                n.logger.Warnj(log.JSON{"event": "waitlist_send_failed", "email": email, "error": err.Error()})
                return nil
            }
            n.metrics.WaitlistEmail("sent")
            mu.Lock()
            ok[i] = true
            mu.Unlock()
            return nil
        })
    }
    _ = g.Wait()

    sent := make([]string, 0, len(emails))
    for i, email := range emails {
        if ok[i] {
            sent = append(sent, email)
        }
    }
    return sent
}

func (n *WaitlistNotifier) sendOne(ctx context.Context, limiter *rate.Limiter, to string, data mailer.WaitlistAvailable) error {
    if err := limiter.Wait(ctx); err != nil {
        return fmt.Errorf("pacing: %w", err)
    }
    msg, err := mailer.BuildWaitlistAvailable(to, data)
    if err != nil {
        return err
    }
    sctx, cancel := context.WithTimeout(ctx, n.cfg.SendTimeout)
    defer cancel()
    return n.mail.Send(sctx, msg)
}

func (n *WaitlistNotifier) announceExhausted(ctx context.Context, slug, typ string) error {
    name, err := n.offers.InstructorName(ctx, slug)
    if err != nil {
        name = slug
    }
    waiting, err := n.waitlist.CountWaiting(ctx, slug, typ, n.now().UTC().Add(-n.cfg.Cooldown))
    if err != nil {
        return fmt.Errorf("count waiting: %w", err)
    }
    n.logger.Infoj(log.JSON{"event": "inventory_exhausted", "instructor": slug, "type": typ, "waiting": waiting})
    return n.admin.NotifyAdmin(ctx, discord.InventoryExhaustedMessage(name, model.MentorshipTypeLabel(typ), waiting))
}

func (n *WaitlistNotifier) absoluteURL(u string) string {
    if strings.HasPrefix(u, "/") {
        return n.siteURL + u
    }
    return u
}

// DistinctEmails returns the normalized addresses of rows, each once, in
// first-seen order.  Blank addresses are dropped.
func DistinctEmails(rows []repository.WaitlistRecipient) []string {
    seen := make(map[string]struct{}, len(rows))
    out := make([]string, 0, len(rows))
    for _, r := range rows {
        e := repository.NormalizeEmail(r.Email)
        if e == "" {
            continue
        }
        if _, dup := seen[e]; dup {
            continue
        }
        seen[e] = struct{}{}
        out = append(out, e)
    }
    return out
}
