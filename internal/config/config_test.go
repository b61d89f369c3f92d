package config

import (
    "testing"
    "time"
)

func validConfig() *Config {
    return &Config{
        Env:            "dev",
        AccessTTLMin:   15,
        RefreshTTLDays: 30,
        Mail:           MailConfig{Provider: MailProviderLog, From: "Mentorships <noreply@example.com>"},
        RateLimit:      RateLimitConfig{Backend: RateLimitMemory},
        Notifier: NotifierConfig{
            Cooldown:       7 * 24 * time.Hour,
            SendTimeout:    5 * time.Second,
            Concurrency:    2,
            SendsPerSecond: 2,
            MaxAttempts:    3,
        },
    }
}

func TestValidate_Valid(t *testing.T) {
    cfg := validConfig()
    if err := cfg.Validate(); err != nil {
        t.Fatalf("expected no error, got %v", err)
    }
}

func TestValidate_ResendNeedsAPIKey(t *testing.T) {
    cfg := validConfig()
    cfg.Mail.Provider = MailProviderResend
    if err := cfg.Validate(); err == nil {
        t.Fatal("expected error when RESEND_API_KEY is missing")
    }
    cfg.Mail.ResendAPIKey = "re_test"
    if err := cfg.Validate(); err != nil {
        t.Fatalf("expected no error with api key, got %v", err)
    }
}

func TestValidate_UnknownBackend(t *testing.T) {
    cfg := validConfig()
    cfg.RateLimit.Backend = "memcached"
    if err := cfg.Validate(); err == nil {
        t.Fatal("expected error for unknown rate limit backend")
    }
}

func TestValidate_NotifierBounds(t *testing.T) {
    cfg := validConfig()
    cfg.Notifier.Concurrency = 0
    if err := cfg.Validate(); err == nil {
        t.Fatal("expected error for zero concurrency")
    }
}

func TestLoadNotifierConfig_Defaults(t *testing.T) {
    t.Setenv("NOTIFY_COOLDOWN", "")
    t.Setenv("NOTIFY_SENDS_PER_SECOND", "")
    n := LoadNotifierConfig()
    if n.Cooldown != 7*24*time.Hour {
        t.Fatalf("unexpected cooldown: %s", n.Cooldown)
    }
    if n.SendsPerSecond != 2 {
        t.Fatalf("unexpected pacing: %v", n.SendsPerSecond)
    }
}

func TestLoadRateLimitConfig_Clamps(t *testing.T) {
    t.Setenv("RATE_LIMIT_LIMIT", "0")
    t.Setenv("RATE_LIMIT_WINDOW", "-1s")
    rl := LoadRateLimitConfig()
    if rl.Limit != 1 {
        t.Fatalf("expected limit clamped to 1, got %d", rl.Limit)
    }
    if rl.Window != time.Minute {
        t.Fatalf("expected default window, got %s", rl.Window)
    }
}

func TestLoadRedisConfig_HostPortWins(t *testing.T) {
    t.Setenv("REDIS_ADDR", "ignored:1")
    t.Setenv("REDIS_HOST", "cache")
    t.Setenv("REDIS_PORT", "6380")
    if got := LoadRedisConfig().Addr; got != "cache:6380" {
        t.Fatalf("unexpected addr: %s", got)
    }
}

func TestDiscordEnabled(t *testing.T) {
    if (DiscordConfig{BotToken: "x"}).Enabled() {
        t.Fatal("expected disabled without channel")
    }
    if !(DiscordConfig{BotToken: "x", AdminChannelID: "1"}).Enabled() {
        t.Fatal("expected enabled")
    }
}
