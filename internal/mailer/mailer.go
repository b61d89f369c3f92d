// Package mailer sends transactional email.  Delivery goes through Resend in
// production; the log mailer prints messages instead and is used in
// development and tests.
package mailer

import (
    "context"
    "errors"
    "fmt"
    "strings"

    "github.com/labstack/gommon/log"
    "github.com/resend/resend-go/v2"

    "github.com/iliyamo/mentor-booking/internal/config"
)

// Message is one outbound email to a single recipient.
type Message struct {
    To      string
    Subject string
    HTML    string
    Text    string
    Headers map[string]string
}

// Mailer delivers a message or returns why it could not.
type Mailer interface {
    Send(ctx context.Context, msg Message) error
}

// ErrNoRecipient is returned for a message without a To address.
var ErrNoRecipient = errors.New("mailer: message has no recipient")

// emailSender is the part of the Resend client the mailer uses.
type emailSender interface {
    SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// ResendMailer sends through the Resend API.
type ResendMailer struct {
    emails  emailSender
    from    string
    replyTo string
}

// NewResendMailer builds a mailer for the given API key and sender.
func NewResendMailer(apiKey, from, replyTo string) *ResendMailer {
    client := resend.NewClient(apiKey)
    return &ResendMailer{emails: client.Emails, from: from, replyTo: replyTo}
}

func (m *ResendMailer) Send(ctx context.Context, msg Message) error {
    if strings.TrimSpace(msg.To) == "" {
        return ErrNoRecipient
    }
    req := &resend.SendEmailRequest{
        From:    m.from,
        To:      []string{msg.To},
        Subject: msg.Subject,
        Html:    msg.HTML,
        Text:    msg.Text,
        Headers: msg.Headers,
        ReplyTo: m.replyTo,
    }
    if _, err := m.emails.SendWithContext(ctx, req); err != nil {
        return fmt.Errorf("resend to %s: %w", msg.To, err)
    }
    return nil
}

// LogMailer writes each message to the logger and always succeeds.
type LogMailer struct {
    logger *log.Logger
}

func NewLogMailer(logger *log.Logger) *LogMailer { return &LogMailer{logger: logger} }

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
    if strings.TrimSpace(msg.To) == "" {
        return ErrNoRecipient
    }
    m.logger.Infoj(log.JSON{"mail_to": msg.To, "subject": msg.Subject, "text": msg.Text})
    return nil
}

// New picks the implementation named by cfg.Provider.
func New(cfg config.MailConfig, logger *log.Logger) (Mailer, error) {
    switch cfg.Provider {
    case config.MailProviderResend:
        return NewResendMailer(cfg.ResendAPIKey, cfg.From, cfg.ReplyTo), nil
    case config.MailProviderLog, "":
        return NewLogMailer(logger), nil
    }
    return nil, fmt.Errorf("unknown mail provider %q", cfg.Provider)
}
