package model

import "time"

// Pack statuses.  Only an ACTIVE pack may have new sessions booked against it.
const (
    PackActive   = "active"
    PackDepleted = "depleted"
    PackExpired  = "expired"
    PackCanceled = "canceled"
)

// SessionPack represents a purchased bundle of mentorship sessions.
// Packs are created when a payment is captured and are never deleted;
// background jobs move them to depleted or expired.
//
// Fields:
//  ID                – UUID primary key.
//  UserID            – mentee who owns the pack.
//  MentorID          – mentor the sessions are booked with.
//  RemainingSessions – sessions left to book, never negative.
//  ExpiresAt         – last instant a session may be scheduled.
//  Status            – active, depleted, expired or canceled.
//  CreatedAt         – creation timestamp.
//  UpdatedAt         – last update timestamp.
type SessionPack struct {
    ID                string    // session_packs.id
    UserID            uint64    // session_packs.user_id
    MentorID          uint64    // session_packs.mentor_id
    RemainingSessions int       // session_packs.remaining_sessions
    ExpiresAt         time.Time // session_packs.expires_at
    Status            string    // session_packs.status
    CreatedAt         time.Time // session_packs.created_at
    UpdatedAt         time.Time // session_packs.updated_at
}
