package config

import (
    "fmt"
    "time"
)

// NotifierConfig tunes the waitlist notifier and the inventory consumer.
type NotifierConfig struct {
    Cooldown       time.Duration // minimum gap between two emails to the same waitlist row
    SendTimeout    time.Duration // bound on a single outbound email
    Concurrency    int           // parallel sends per fan-out
    SendsPerSecond float64       // pacing against the mail provider's rate limit
    LockTimeout    time.Duration // wait for the per-instructor notify lock
    MaxAttempts    int           // consumer retries before a message is dropped
    RetryBackoff   time.Duration // first retry delay, doubled per attempt
}

func LoadNotifierConfig() NotifierConfig {
    return NotifierConfig{
        Cooldown:       envDur("NOTIFY_COOLDOWN", 7*24*time.Hour),
        SendTimeout:    envDur("NOTIFY_SEND_TIMEOUT", 5*time.Second),
        Concurrency:    envInt("NOTIFY_CONCURRENCY", 2),
        SendsPerSecond: envFloat("NOTIFY_SENDS_PER_SECOND", 2),
        LockTimeout:    envDur("NOTIFY_LOCK_TIMEOUT", 10*time.Second),
        MaxAttempts:    envInt("NOTIFY_MAX_ATTEMPTS", 5),
        RetryBackoff:   envDur("NOTIFY_RETRY_BACKOFF", time.Second),
    }
}

func (n NotifierConfig) Validate() error {
    if n.Cooldown <= 0 {
        return fmt.Errorf("NOTIFY_COOLDOWN must be positive, got %s", n.Cooldown)
    }
    if n.SendTimeout <= 0 {
        return fmt.Errorf("NOTIFY_SEND_TIMEOUT must be positive, got %s", n.SendTimeout)
    }
    if n.Concurrency < 1 {
        return fmt.Errorf("NOTIFY_CONCURRENCY must be at least 1, got %d", n.Concurrency)
    }
    if n.SendsPerSecond <= 0 {
        return fmt.Errorf("NOTIFY_SENDS_PER_SECOND must be positive, got %v", n.SendsPerSecond)
    }
    if n.MaxAttempts < 1 {
        return fmt.Errorf("NOTIFY_MAX_ATTEMPTS must be at least 1, got %d", n.MaxAttempts)
    }
    return nil
}
