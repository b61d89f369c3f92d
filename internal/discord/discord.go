// Package discord posts operational notes for admins and instructors to
// Discord channels through the bot REST API.  No gateway connection is
// opened; the bot only writes messages.
package discord

import (
    "context"
    "fmt"
    "strings"
    "unicode/utf8"

    "github.com/bwmarrin/discordgo"

    "github.com/iliyamo/mentor-booking/internal/config"
)

// maxContent is Discord's message length limit.
const maxContent = 2000

type messageSender interface {
    ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Notifier posts to the admin channel and, when an instructor has one, to
// the instructor's own channel.  The zero value (and a Notifier built from
// a disabled config) drops every message.
type Notifier struct {
    session        messageSender
    adminChannelID string
}

// New creates a Notifier from config.  When Discord is not configured it
// returns a disabled Notifier and no error.
func New(cfg config.DiscordConfig) (*Notifier, error) {
    if !cfg.Enabled() {
        return &Notifier{}, nil
    }
    s, err := discordgo.New("Bot " + cfg.BotToken)
    if err != nil {
        return nil, fmt.Errorf("discord session: %w", err)
    }
    return &Notifier{session: s, adminChannelID: cfg.AdminChannelID}, nil
}

// Enabled reports whether messages are actually sent.
func (n *Notifier) Enabled() bool { return n != nil && n.session != nil }

// NotifyAdmin posts content to the admin channel.
func (n *Notifier) NotifyAdmin(ctx context.Context, content string) error {
    if !n.Enabled() {
        return nil
    }
    return n.send(ctx, n.adminChannelID, content)
}

// NotifyChannel posts content to an arbitrary channel, typically an
// instructor's.  An empty channel id is a no-op.
func (n *Notifier) NotifyChannel(ctx context.Context, channelID, content string) error {
    if !n.Enabled() || channelID == "" {
        return nil
    }
    return n.send(ctx, channelID, content)
}

func (n *Notifier) send(ctx context.Context, channelID, content string) error {
    if _, err := n.session.ChannelMessageSend(channelID, truncate(content), discordgo.WithContext(ctx)); err != nil {
        return fmt.Errorf("discord send to %s: %w", channelID, err)
    }
    return nil
}

// truncate cuts s to Discord's limit, which counts characters, not bytes.
func truncate(s string) string {
    if utf8.RuneCountInString(s) <= maxContent {
        return s
    }
    r := []rune(s)[:maxContent-1]
    return strings.TrimRight(string(r), " ") + "…"
}
