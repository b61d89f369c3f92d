package mailer

import (
    "bytes"
    "context"
    "errors"
    "testing"
    "time"

    "github.com/labstack/gommon/log"
    "github.com/resend/resend-go/v2"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/mentor-booking/internal/config"
)

type fakeSender struct {
    got *resend.SendEmailRequest
    err error
}

func (f *fakeSender) SendWithContext(ctx context.Context, p *resend.SendEmailRequest) (*resend.SendEmailResponse, error) {
    f.got = p
    if f.err != nil {
        return nil, f.err
    }
    return &resend.SendEmailResponse{Id: "msg_1"}, nil
}

func TestResendMailer_MapsMessage(t *testing.T) {
    fs := &fakeSender{}
    m := &ResendMailer{emails: fs, from: "Mentorships <hi@example.com>", replyTo: "help@example.com"}
    msg := Message{To: "a@example.com", Subject: "s", HTML: "<p>h</p>", Text: "t", Headers: map[string]string{refHeader: "x"}}

    require.NoError(t, m.Send(context.Background(), msg))
    require.NotNil(t, fs.got)
    assert.Equal(t, []string{"a@example.com"}, fs.got.To)
    assert.Equal(t, "Mentorships <hi@example.com>", fs.got.From)
    assert.Equal(t, "help@example.com", fs.got.ReplyTo)
    assert.Equal(t, "<p>h</p>", fs.got.Html)
    assert.Equal(t, "t", fs.got.Text)
    assert.Equal(t, "x", fs.got.Headers[refHeader])
}

func TestResendMailer_WrapsError(t *testing.T) {
    cause := errors.New("429 too many requests")
    m := &ResendMailer{emails: &fakeSender{err: cause}, from: "f@example.com"}
    err := m.Send(context.Background(), Message{To: "a@example.com"})
    require.Error(t, err)
    assert.ErrorIs(t, err, cause)
}

func TestMailers_RejectEmptyRecipient(t *testing.T) {
    m := &ResendMailer{emails: &fakeSender{}}
    assert.ErrorIs(t, m.Send(context.Background(), Message{To: "  "}), ErrNoRecipient)

    lm := NewLogMailer(log.New("test"))
    assert.ErrorIs(t, lm.Send(context.Background(), Message{}), ErrNoRecipient)
}

func TestLogMailer_Logs(t *testing.T) {
    buf := &bytes.Buffer{}
    l := log.New("mail")
    l.SetOutput(buf)
    require.NoError(t, NewLogMailer(l).Send(context.Background(), Message{To: "a@example.com", Subject: "Hello"}))
    assert.Contains(t, buf.String(), "a@example.com")
    assert.Contains(t, buf.String(), "Hello")
}

func TestNew_SelectsProvider(t *testing.T) {
    m, err := New(config.MailConfig{Provider: config.MailProviderLog}, log.New("t"))
    require.NoError(t, err)
    assert.IsType(t, &LogMailer{}, m)

    m, err = New(config.MailConfig{Provider: config.MailProviderResend, ResendAPIKey: "re_test", From: "f@example.com"}, log.New("t"))
    require.NoError(t, err)
    assert.IsType(t, &ResendMailer{}, m)

    _, err = New(config.MailConfig{Provider: "smtp"}, log.New("t"))
    assert.Error(t, err)
}

func TestBuildWaitlistAvailable(t *testing.T) {
    msg, err := BuildWaitlistAvailable("a@example.com", WaitlistAvailable{
        InstructorName: "Kim <Jung Gi>",
        TypeLabel:      "1-on-1",
        CheckoutURL:    "https://example.com/checkout/kim",
        SiteURL:        "https://example.com",
    })
    require.NoError(t, err)
    assert.Equal(t, "a@example.com", msg.To)
    assert.Equal(t, "A 1-on-1 spot with Kim <Jung Gi> is open", msg.Subject)
    assert.Contains(t, msg.HTML, "Kim &lt;Jung Gi&gt;")
    assert.Contains(t, msg.HTML, `href="https://example.com/checkout/kim"`)
    assert.Contains(t, msg.Text, "Kim <Jung Gi>")
    assert.Contains(t, msg.Text, "https://example.com/checkout/kim")
    assert.NotEmpty(t, msg.Headers[refHeader])
}

func TestRefHeader_UniquePerMessage(t *testing.T) {
    a, err := BuildWaitlistJoined("a@example.com", WaitlistJoined{InstructorName: "X", TypeLabel: "group"})
    require.NoError(t, err)
    b, err := BuildWaitlistJoined("a@example.com", WaitlistJoined{InstructorName: "X", TypeLabel: "group"})
    require.NoError(t, err)
    assert.NotEqual(t, a.Headers[refHeader], b.Headers[refHeader])
}

func TestBuildSessionBooked(t *testing.T) {
    at := time.Date(2026, 3, 2, 17, 30, 0, 0, time.UTC)
    msg, err := BuildSessionBooked("m@example.com", SessionBooked{SessionID: "sess-1", ScheduledAt: at, Remaining: 3})
    require.NoError(t, err)
    assert.Contains(t, msg.Text, "Monday, March 2, 2026 at 17:30 UTC")
    assert.Contains(t, msg.Text, "Sessions left in your pack: 3.")
    assert.Contains(t, msg.HTML, "sess-1")
}
