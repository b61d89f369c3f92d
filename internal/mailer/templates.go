package mailer

import (
    "bytes"
    "fmt"
    htmltemplate "html/template"
    texttemplate "text/template"
    "time"

    "github.com/google/uuid"
)

// refHeader makes every send a distinct thread in Gmail and friends, so a
// second "spots open" mail a week later is not folded into the first.
const refHeader = "X-Entity-Ref-ID"

func newHeaders() map[string]string {
    return map[string]string{refHeader: uuid.NewString()}
}

// WaitlistAvailable is the data for the "spots are open" email.
type WaitlistAvailable struct {
    InstructorName string
    TypeLabel      string // e.g. "1-on-1"
    CheckoutURL    string
    SiteURL        string
}

var waitlistHTML = htmltemplate.Must(htmltemplate.New("waitlist").Parse(`<p>Good news!</p>
<p>A {{.TypeLabel}} mentorship spot with <strong>{{.InstructorName}}</strong> just opened up.</p>
<p><a href="{{.CheckoutURL}}">Grab your spot</a> before it's gone.</p>
<p>You're receiving this because you joined the waitlist on <a href="{{.SiteURL}}">{{.SiteURL}}</a>.</p>`))

var waitlistText = texttemplate.Must(texttemplate.New("waitlist").Parse(`Good news!

A {{.TypeLabel}} mentorship spot with {{.InstructorName}} just opened up.

Grab your spot before it's gone: {{.CheckoutURL}}

You're receiving this because you joined the waitlist on {{.SiteURL}}.
`))

// BuildWaitlistAvailable renders the notification for one recipient.
func BuildWaitlistAvailable(to string, d WaitlistAvailable) (Message, error) {
    return render(to, fmt.Sprintf("A %s spot with %s is open", d.TypeLabel, d.InstructorName),
        waitlistHTML, waitlistText, d)
}

// WaitlistJoined is the data for the join confirmation.
type WaitlistJoined struct {
    InstructorName string
    TypeLabel      string
    SiteURL        string
}

var joinedHTML = htmltemplate.Must(htmltemplate.New("joined").Parse(`<p>You're on the waitlist for a {{.TypeLabel}} mentorship with <strong>{{.InstructorName}}</strong>.</p>
<p>We'll email you as soon as a spot opens.</p>`))

var joinedText = texttemplate.Must(texttemplate.New("joined").Parse(`You're on the waitlist for a {{.TypeLabel}} mentorship with {{.InstructorName}}.

We'll email you as soon as a spot opens.
`))

func BuildWaitlistJoined(to string, d WaitlistJoined) (Message, error) {
    return render(to, "You're on the waitlist for "+d.InstructorName, joinedHTML, joinedText, d)
}

// SessionBooked is the data for the booking confirmation.
type SessionBooked struct {
    SessionID   string
    ScheduledAt time.Time
    Remaining   int
}

// When formats ScheduledAt for humans, always in UTC.
func (d SessionBooked) When() string {
    return d.ScheduledAt.UTC().Format("Monday, January 2, 2006 at 15:04 UTC")
}

var bookedHTML = htmltemplate.Must(htmltemplate.New("booked").Parse(`<p>Your mentorship session is booked for <strong>{{.When}}</strong>.</p>
<p>Sessions left in your pack: {{.Remaining}}.</p>
<p style="color:#888">Reference: {{.SessionID}}</p>`))

var bookedText = texttemplate.Must(texttemplate.New("booked").Parse(`Your mentorship session is booked for {{.When}}.

Sessions left in your pack: {{.Remaining}}.

Reference: {{.SessionID}}
`))

func BuildSessionBooked(to string, d SessionBooked) (Message, error) {
    return render(to, "Your mentorship session is booked", bookedHTML, bookedText, d)
}

func render(to, subject string, h *htmltemplate.Template, t *texttemplate.Template, data any) (Message, error) {
    var hb, tb bytes.Buffer
    if err := h.Execute(&hb, data); err != nil {
        return Message{}, fmt.Errorf("render %s html: %w", h.Name(), err)
    }
    if err := t.Execute(&tb, data); err != nil {
        return Message{}, fmt.Errorf("render %s text: %w", t.Name(), err)
    }
    return Message{To: to, Subject: subject, HTML: hb.String(), Text: tb.String(), Headers: newHeaders()}, nil
}
