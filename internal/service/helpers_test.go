package service

import (
    "context"
    "io"
    "sort"
    "strings"
    "sync"
    "time"

    "github.com/labstack/gommon/log"

    "github.com/iliyamo/mentor-booking/internal/besteffort"
    "github.com/iliyamo/mentor-booking/internal/mailer"
    "github.com/iliyamo/mentor-booking/internal/repository"
)

var testNow = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

func quietLogger() *log.Logger {
    l := log.New("test")
    l.SetOutput(io.Discard)
    return l
}

func testRunner() *besteffort.Runner {
    return besteffort.NewRunner(quietLogger(), time.Second)
}

// fakeMailer records sends and fails for addresses in fail.
type fakeMailer struct {
    mu    sync.Mutex
    sent  []mailer.Message
    fail   map[string]bool
    block  bool   // wait for ctx to expire instead of sending
    onSend func() // runs after each successful send
}

func (m *fakeMailer) Send(ctx context.Context, msg mailer.Message) error {
    if m.block {
        <-ctx.Done()
        return ctx.Err()
    }
    if m.fail[msg.To] {
        return io.ErrUnexpectedEOF
    }
    m.mu.Lock()
    m.sent = append(m.sent, msg)
    m.mu.Unlock()
    if m.onSend != nil {
        m.onSend()
    }
    return nil
}

func (m *fakeMailer) recipients() []string {
    m.mu.Lock()
    defer m.mu.Unlock()
    out := make([]string, 0, len(m.sent))
    for _, s := range m.sent {
        out = append(out, s.To)
    }
    sort.Strings(out)
    return out
}

// fakeAdmin records Discord posts.
type fakeAdmin struct {
    mu    sync.Mutex
    posts []string
}

func (a *fakeAdmin) NotifyAdmin(ctx context.Context, content string) error {
    a.mu.Lock()
    defer a.mu.Unlock()
    a.posts = append(a.posts, "admin:"+content)
    return nil
}

func (a *fakeAdmin) NotifyChannel(ctx context.Context, channelID, content string) error {
    a.mu.Lock()
    defer a.mu.Unlock()
    a.posts = append(a.posts, channelID+":"+content)
    return nil
}

func (a *fakeAdmin) all() []string {
    a.mu.Lock()
    defer a.mu.Unlock()
    return append([]string(nil), a.posts...)
}

type waitRow struct {
    id       uint64
    email    string
    slug     string
    typ      string
    notified bool
    last     *time.Time
}

// fakeWaitlist is an in-memory WaitlistStore with the same eligibility rule
// as the SQL one.
type fakeWaitlist struct {
    mu      sync.Mutex
    rows    []*waitRow
    listErr error
    markErr error
    lockErr error
    locks   int
}

func (w *fakeWaitlist) add(email, slug, typ string, notified bool, last *time.Time) *waitRow {
    r := &waitRow{id: uint64(len(w.rows) + 1), email: email, slug: slug, typ: typ, notified: notified, last: last}
    w.rows = append(w.rows, r)
    return r
}

func (w *fakeWaitlist) eligible(r *waitRow, slug, typ string, cutoff time.Time) bool {
    return r.slug == slug && r.typ == typ && (!r.notified || r.last == nil || r.last.Before(cutoff))
}

func (w *fakeWaitlist) ListEligible(ctx context.Context, slug, typ string, cutoff time.Time) ([]repository.WaitlistRecipient, error) {
    if w.listErr != nil {
        return nil, w.listErr
    }
    w.mu.Lock()
    defer w.mu.Unlock()
    var out []repository.WaitlistRecipient
    for _, r := range w.rows {
        if w.eligible(r, slug, typ, cutoff) {
            out = append(out, repository.WaitlistRecipient{ID: r.id, Email: r.email})
        }
    }
    return out, nil
}

func (w *fakeWaitlist) CountWaiting(ctx context.Context, slug, typ string, cutoff time.Time) (int, error) {
    rows, err := w.ListEligible(ctx, slug, typ, cutoff)
    return len(rows), err
}

func (w *fakeWaitlist) MarkNotified(ctx context.Context, slug, typ string, emails []string, at time.Time) (int64, error) {
    if w.markErr != nil {
        return 0, w.markErr
    }
    // A SQL driver fails on a done context the same way.
    if err := ctx.Err(); err != nil {
        return 0, err
    }
    w.mu.Lock()
    defer w.mu.Unlock()
    set := map[string]bool{}
    for _, e := range emails {
        set[strings.ToLower(e)] = true
    }
    var n int64
    for _, r := range w.rows {
        if r.slug == slug && r.typ == typ && set[repository.NormalizeEmail(r.email)] {
            t := at
            r.notified, r.last = true, &t
            n++
        }
    }
    return n, nil
}

func (w *fakeWaitlist) LockNotify(ctx context.Context, slug, typ string, timeout time.Duration) (func(), error) {
    if w.lockErr != nil {
        return nil, w.lockErr
    }
    w.mu.Lock()
    w.locks++
    w.mu.Unlock()
    return func() {}, nil
}

// fakeOffers serves one active offer per key.
type fakeOffers struct {
    offers map[string]repository.ActiveOffer
    names  map[string]string
    err    error
}

func (o *fakeOffers) ActiveOffer(ctx context.Context, slug, typ string) (repository.ActiveOffer, bool, error) {
    if o.err != nil {
        return repository.ActiveOffer{}, false, o.err
    }
    off, ok := o.offers[slug+"/"+typ]
    return off, ok, nil
}

func (o *fakeOffers) InstructorName(ctx context.Context, slug string) (string, error) {
    if n, ok := o.names[slug]; ok {
        return n, nil
    }
    return "", repository.ErrInstructorNotFound
}
