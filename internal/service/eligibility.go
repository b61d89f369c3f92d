// Package service holds the booking and waitlist business rules.  Handlers
// and queue consumers call into it; it talks to storage through narrow
// interfaces satisfied by the repository package.
package service

import (
    "context"
    "errors"
    "fmt"
    "time"

    "github.com/labstack/gommon/log"

    "github.com/iliyamo/mentor-booking/internal/metrics"
    "github.com/iliyamo/mentor-booking/internal/model"
    "github.com/iliyamo/mentor-booking/internal/repository"
)

// EligibilityCode identifies why a booking is not allowed.
type EligibilityCode string

const (
    CodePackNotFound             EligibilityCode = "PACK_NOT_FOUND"
    CodePackExpired              EligibilityCode = "PACK_EXPIRED"
    CodeScheduledAfterExpiration EligibilityCode = "SCHEDULED_AFTER_EXPIRATION"
    CodePackNotActive            EligibilityCode = "PACK_NOT_ACTIVE"
    CodeNoRemainingSessions      EligibilityCode = "NO_REMAINING_SESSIONS"
    CodeSeatNotActive            EligibilityCode = "SEAT_NOT_ACTIVE"
)

var codeMessages = map[EligibilityCode]string{
    CodePackNotFound:             "This session pack could not be found.",
    CodePackExpired:              "This session pack has expired.",
    CodeScheduledAfterExpiration: "This session is scheduled after your pack expires.",
    CodePackNotActive:            "This session pack is no longer active.",
    CodeNoRemainingSessions:      "This session pack has no remaining sessions.",
    CodeSeatNotActive:            "Your mentorship seat is not active.",
}

// Message returns the user-facing text for the code.
func (c EligibilityCode) Message() string {
    if m, ok := codeMessages[c]; ok {
        return m
    }
    return string(c)
}

// Eligibility is the outcome of a booking check.  A rejection is data, not
// an error: Valid is false and Code says why.
type Eligibility struct {
    Valid bool
    Code  EligibilityCode
}

// Eligible is the passing result.
func Eligible() Eligibility { return Eligibility{Valid: true} }

// Rejected is a failing result with the given code.
func Rejected(code EligibilityCode) Eligibility { return Eligibility{Code: code} }

// metricLabel is the label used for eligibility counters.
func (e Eligibility) metricLabel() string {
    if e.Valid {
        return "VALID"
    }
    return string(e.Code)
}

// Evaluate applies the booking rules to a loaded pack.  The checks run in
// a fixed order and the first failing one wins, so an expired pack is
// reported as expired even when it also has no sessions left.  A nil pack
// means the lookup found nothing.  scheduledAt equal to the expiry is
// allowed.
func Evaluate(p *repository.PackWithSeat, now time.Time, scheduledAt *time.Time) Eligibility {
    if p == nil {
        return Rejected(CodePackNotFound)
    }
    if p.Pack.ExpiresAt.Before(now) {
        return Rejected(CodePackExpired)
    }
    if scheduledAt != nil && scheduledAt.After(p.Pack.ExpiresAt) {
        return Rejected(CodeScheduledAfterExpiration)
    }
    if p.Pack.Status != model.PackActive {
        return Rejected(CodePackNotActive)
    }
    if p.Pack.RemainingSessions <= 0 {
        return Rejected(CodeNoRemainingSessions)
    }
    if p.SeatStatus == nil || *p.SeatStatus != model.SeatActive {
        return Rejected(CodeSeatNotActive)
    }
    return Eligible()
}

// PackReader loads a pack joined with its seat in one round trip.
type PackReader interface {
    GetWithSeat(ctx context.Context, packID string) (*repository.PackWithSeat, error)
}

// EligibilityChecker answers "may this pack book a session now?" without
// changing anything.
type EligibilityChecker struct {
    packs   PackReader
    now     func() time.Time
    metrics *metrics.Metrics
    logger  *log.Logger
}

func NewEligibilityChecker(packs PackReader, m *metrics.Metrics, logger *log.Logger) *EligibilityChecker {
    return &EligibilityChecker{packs: packs, now: time.Now, metrics: m, logger: logger}
}

// Check loads the pack and evaluates it.  Ownership is the caller's
// concern; userID is only logged.  A returned error means the store
// failed, never that the pack was rejected.
func (c *EligibilityChecker) Check(ctx context.Context, packID string, userID uint64, scheduledAt *time.Time) (Eligibility, error) {
    p, err := c.packs.GetWithSeat(ctx, packID)
    if err != nil && !errors.Is(err, repository.ErrPackNotFound) {
        return Eligibility{}, fmt.Errorf("load pack %s: %w", packID, err)
    }
    res := Evaluate(p, c.now().UTC(), scheduledAt)
    c.metrics.Eligibility(res.metricLabel())
    if !res.Valid {
        c.logger.Infoj(log.JSON{"event": "eligibility_rejected", "pack_id": packID, "user_id": userID, "code": string(res.Code)})
    }
    return res, nil
}
