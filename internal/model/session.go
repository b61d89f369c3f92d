package model

import "time"

// MentorshipSession is one booked session drawn from a pack.
//
// Fields:
//  ID          – UUID primary key.
//  PackID      – pack the session consumed.
//  MentorID    – mentor running the session.
//  MenteeID    – mentee attending.
//  ScheduledAt – agreed start time (UTC).
//  Status      – SCHEDULED, COMPLETED or CANCELLED.
//  CreatedAt   – creation timestamp.
type MentorshipSession struct {
    ID          string    // mentorship_sessions.id
    PackID      string    // mentorship_sessions.pack_id
    MentorID    uint64    // mentorship_sessions.mentor_id
    MenteeID    uint64    // mentorship_sessions.mentee_id
    ScheduledAt time.Time // mentorship_sessions.scheduled_at
    Status      string    // mentorship_sessions.status
    CreatedAt   time.Time // mentorship_sessions.created_at
}
