package config

const (
    MailProviderResend = "resend"
    MailProviderLog    = "log"
)

// MailConfig selects the outbound mail provider.  The log provider only
// writes messages to the application log and is meant for development.
type MailConfig struct {
    Provider     string
    ResendAPIKey string
    From         string
    ReplyTo      string
}

func LoadMailConfig() MailConfig {
    return MailConfig{
        Provider:     envStr("MAIL_PROVIDER", MailProviderLog),
        ResendAPIKey: envStr("RESEND_API_KEY", ""),
        From:         envStr("MAIL_FROM", "Mentorships <noreply@localhost>"),
        ReplyTo:      envStr("MAIL_REPLY_TO", ""),
    }
}

// DiscordConfig controls admin notifications posted to a Discord channel.
// Both the bot token and the channel id are needed; otherwise Discord
// notifications are disabled.
type DiscordConfig struct {
    BotToken       string
    AdminChannelID string
}

func LoadDiscordConfig() DiscordConfig {
    return DiscordConfig{
        BotToken:       envStr("DISCORD_BOT_TOKEN", ""),
        AdminChannelID: envStr("DISCORD_ADMIN_CHANNEL_ID", ""),
    }
}

func (d DiscordConfig) Enabled() bool {
    return d.BotToken != "" && d.AdminChannelID != ""
}
