package service

import (
    "context"
    "errors"
    "strings"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/mentor-booking/internal/config"
    "github.com/iliyamo/mentor-booking/internal/model"
    "github.com/iliyamo/mentor-booking/internal/queue"
    "github.com/iliyamo/mentor-booking/internal/repository"
)

const slug = "kim-jung-gi"

type notifierFixture struct {
    n        *WaitlistNotifier
    waitlist *fakeWaitlist
    offers   *fakeOffers
    mail     *fakeMailer
    admin    *fakeAdmin
}

func newNotifierFixture() *notifierFixture {
    channel := "inst-channel"
    f := &notifierFixture{
        waitlist: &fakeWaitlist{},
        offers: &fakeOffers{
            offers: map[string]repository.ActiveOffer{
                slug + "/" + model.TypeOneOnOne: {
                    InstructorSlug:   slug,
                    InstructorName:   "Kim Jung Gi",
                    DiscordChannelID: &channel,
                    Type:             model.TypeOneOnOne,
                    CheckoutURL:      "/checkout/kim-jung-gi/one-on-one",
                },
            },
            names: map[string]string{slug: "Kim Jung Gi"},
        },
        mail:  &fakeMailer{fail: map[string]bool{}},
        admin: &fakeAdmin{},
    }
    cfg := config.NotifierConfig{
        Cooldown:       7 * 24 * time.Hour,
        SendTimeout:    50 * time.Millisecond,
        Concurrency:    2,
        SendsPerSecond: 1000,
        LockTimeout:    time.Second,
    }
    f.n = NewWaitlistNotifier(f.waitlist, f.offers, f.mail, f.admin, testRunner(), nil, quietLogger(), cfg, "https://mentorships.example.com/")
    f.n.now = func() time.Time { return testNow }
    return f
}

func (f *notifierFixture) run(t *testing.T, prev, next int) InventoryResult {
    t.Helper()
    res, err := f.n.HandleInventoryChanged(context.Background(), slug, model.TypeOneOnOne, prev, next)
    require.NoError(t, err)
    return res
}

func TestNotifier_ZeroToZeroIsNoop(t *testing.T) {
    f := newNotifierFixture()
    f.waitlist.add("a@example.com", slug, model.TypeOneOnOne, false, nil)

    res := f.run(t, 0, 0)
    assert.Equal(t, InventoryResult{SkippedReason: SkipNoInventory}, res)
    assert.Empty(t, f.mail.recipients())
    assert.Empty(t, f.admin.all())
    assert.Zero(t, f.waitlist.locks)
}

func TestNotifier_StillAvailable(t *testing.T) {
    f := newNotifierFixture()
    f.waitlist.add("a@example.com", slug, model.TypeOneOnOne, false, nil)

    res := f.run(t, 2, 5)
    assert.Equal(t, SkipStillAvailable, res.SkippedReason)
    assert.Zero(t, res.NotifiedCount)
    assert.Empty(t, f.mail.recipients())
}

func TestNotifier_ExhaustedPostsAdminNoteOnly(t *testing.T) {
    f := newNotifierFixture()
    f.waitlist.add("a@example.com", slug, model.TypeOneOnOne, false, nil)
    f.waitlist.add("b@example.com", slug, model.TypeOneOnOne, false, nil)

    res := f.run(t, 1, 0)
    assert.Equal(t, InventoryResult{SkippedReason: SkipInventoryExhausted}, res)
    assert.Empty(t, f.mail.recipients())
    posts := f.admin.all()
    require.Len(t, posts, 1)
    assert.Contains(t, posts[0], "sold out")
    assert.Contains(t, posts[0], "2 people are on the waitlist")
    for _, r := range f.waitlist.rows {
        assert.False(t, r.notified)
    }
}

func TestNotifier_NoActiveOffer(t *testing.T) {
    f := newNotifierFixture()
    f.waitlist.add("a@example.com", slug, model.TypeGroup, false, nil)

    res, err := f.n.HandleInventoryChanged(context.Background(), slug, model.TypeGroup, 0, 3)
    require.NoError(t, err)
    assert.Equal(t, InventoryResult{SkippedReason: SkipNoActiveOffer}, res)
    assert.Empty(t, f.mail.recipients())
    assert.False(t, f.waitlist.rows[0].notified)
}

func TestNotifier_DedupesAndMarksEveryRow(t *testing.T) {
    f := newNotifierFixture()
    f.waitlist.add("same@example.com", slug, model.TypeOneOnOne, false, nil)
    f.waitlist.add(" Same@Example.com ", slug, model.TypeOneOnOne, false, nil)
    f.waitlist.add("other@example.com", slug, model.TypeOneOnOne, false, nil)
    f.waitlist.add("group@example.com", slug, model.TypeGroup, false, nil)

    res := f.run(t, 0, 3)
    assert.Equal(t, InventoryResult{NotifiedCount: 2}, res)
    assert.Equal(t, []string{"other@example.com", "same@example.com"}, f.mail.recipients())
    for _, r := range f.waitlist.rows[:3] {
        assert.True(t, r.notified, "row %d", r.id)
        require.NotNil(t, r.last)
        assert.Equal(t, testNow, *r.last)
    }
    assert.False(t, f.waitlist.rows[3].notified, "other type untouched")

    msg := f.mail.sent[0]
    assert.Contains(t, msg.Text, "https://mentorships.example.com/checkout/kim-jung-gi/one-on-one")
    assert.Contains(t, msg.Subject, "Kim Jung Gi")
    assert.NotEmpty(t, msg.Headers["X-Entity-Ref-ID"])

    posts := f.admin.all()
    require.Len(t, posts, 2)
    assert.True(t, strings.HasPrefix(posts[0], "admin:"))
    assert.True(t, strings.HasPrefix(posts[1], "inst-channel:"))
}

func TestNotifier_Cooldown(t *testing.T) {
    f := newNotifierFixture()
    recent := testNow.Add(-24 * time.Hour)
    stale := testNow.Add(-8 * 24 * time.Hour)
    f.waitlist.add("recent@example.com", slug, model.TypeOneOnOne, true, &recent)
    f.waitlist.add("stale@example.com", slug, model.TypeOneOnOne, true, &stale)

    res := f.run(t, 0, 1)
    assert.Equal(t, 1, res.NotifiedCount)
    assert.Equal(t, []string{"stale@example.com"}, f.mail.recipients())
    assert.Equal(t, recent, *f.waitlist.rows[0].last)
}

func TestNotifier_FailedSendLeavesRowEligible(t *testing.T) {
    f := newNotifierFixture()
    f.waitlist.add("ok@example.com", slug, model.TypeOneOnOne, false, nil)
    f.waitlist.add("bounce@example.com", slug, model.TypeOneOnOne, false, nil)
    f.mail.fail["bounce@example.com"] = true

    res := f.run(t, 0, 2)
    assert.Equal(t, 1, res.NotifiedCount)
    assert.True(t, f.waitlist.rows[0].notified)
    assert.False(t, f.waitlist.rows[1].notified)
    assert.Nil(t, f.waitlist.rows[1].last)
    assert.Contains(t, f.admin.all()[0], "1 email failed")

    // Next reopening retries only the failed address.
    delete(f.mail.fail, "bounce@example.com")
    f.mail.sent = nil
    res = f.run(t, 0, 2)
    assert.Equal(t, 1, res.NotifiedCount)
    assert.Equal(t, []string{"bounce@example.com"}, f.mail.recipients())
}

func TestNotifier_TimedOutSendIsAFailure(t *testing.T) {
    f := newNotifierFixture()
    f.waitlist.add("slow@example.com", slug, model.TypeOneOnOne, false, nil)
    f.mail.block = true

    start := time.Now()
    res := f.run(t, 0, 1)
    assert.Less(t, time.Since(start), time.Second)
    assert.Equal(t, 0, res.NotifiedCount)
    assert.Empty(t, res.SkippedReason)
    assert.False(t, f.waitlist.rows[0].notified)
}

func TestNotifier_CancelledFanOutStillMarksSent(t *testing.T) {
    f := newNotifierFixture()
    f.waitlist.add("a@example.com", slug, model.TypeOneOnOne, false, nil)
    f.waitlist.add("b@example.com", slug, model.TypeOneOnOne, false, nil)
    f.n.cfg.Concurrency = 1

    ctx, cancel := context.WithCancel(context.Background())
    f.mail.onSend = cancel

    res, err := f.n.HandleInventoryChanged(ctx, slug, model.TypeOneOnOne, 0, 1)
    require.ErrorIs(t, err, context.Canceled)
    assert.Equal(t, 1, res.NotifiedCount)
    assert.Equal(t, []string{"a@example.com"}, f.mail.recipients())
    assert.True(t, f.waitlist.rows[0].notified)
    assert.False(t, f.waitlist.rows[1].notified)

    // The redelivered event only emails the address that was cut off.
    f.mail.onSend = nil
    res = f.run(t, 0, 1)
    assert.Equal(t, 1, res.NotifiedCount)
    assert.Equal(t, []string{"a@example.com", "b@example.com"}, f.mail.recipients())
}

func TestNotifier_RerunDoesNotRenotify(t *testing.T) {
    f := newNotifierFixture()
    f.waitlist.add("a@example.com", slug, model.TypeOneOnOne, false, nil)

    first := f.run(t, 0, 1)
    assert.Equal(t, 1, first.NotifiedCount)

    second := f.run(t, 0, 1)
    assert.Equal(t, InventoryResult{SkippedReason: SkipNoRecipients}, second)
    assert.Len(t, f.mail.recipients(), 1)
}

func TestNotifier_StoreErrorsEscalate(t *testing.T) {
    cause := errors.New("db gone")

    f := newNotifierFixture()
    f.waitlist.listErr = cause
    _, err := f.n.HandleInventoryChanged(context.Background(), slug, model.TypeOneOnOne, 0, 1)
    assert.ErrorIs(t, err, cause)

    f = newNotifierFixture()
    f.waitlist.add("a@example.com", slug, model.TypeOneOnOne, false, nil)
    f.waitlist.markErr = cause
    _, err = f.n.HandleInventoryChanged(context.Background(), slug, model.TypeOneOnOne, 0, 1)
    assert.ErrorIs(t, err, cause)

    f = newNotifierFixture()
    f.waitlist.lockErr = repository.ErrLockTimeout
    _, err = f.n.HandleInventoryChanged(context.Background(), slug, model.TypeOneOnOne, 0, 1)
    assert.ErrorIs(t, err, repository.ErrLockTimeout)

    f = newNotifierFixture()
    f.offers.err = cause
    _, err = f.n.HandleInventoryChanged(context.Background(), slug, model.TypeOneOnOne, 0, 1)
    assert.ErrorIs(t, err, cause)
}

func TestNotifier_HandleEvent(t *testing.T) {
    f := newNotifierFixture()
    f.waitlist.add("a@example.com", slug, model.TypeOneOnOne, false, nil)

    body := []byte(`{"instructor_slug":"kim-jung-gi","type":"one-on-one","previous_count":0,"new_count":1}`)
    require.NoError(t, f.n.HandleEvent(context.Background(), body))
    assert.Equal(t, []string{"a@example.com"}, f.mail.recipients())

    err := f.n.HandleEvent(context.Background(), []byte(`{"instructor_slug":"kim-jung-gi","type":"weekly"}`))
    assert.True(t, queue.IsPermanent(err))

    err = f.n.HandleEvent(context.Background(), []byte(`garbage`))
    assert.True(t, queue.IsPermanent(err))
}

func TestDistinctEmails(t *testing.T) {
    got := DistinctEmails([]repository.WaitlistRecipient{
        {ID: 1, Email: "B@x.com"},
        {ID: 2, Email: "a@x.com"},
        {ID: 3, Email: " b@X.com"},
        {ID: 4, Email: "  "},
    })
    assert.Equal(t, []string{"b@x.com", "a@x.com"}, got)
}
