package model

import "time"

// Mentorship types an instructor can sell and be waitlisted for.
const (
    TypeOneOnOne = "one-on-one"
    TypeGroup    = "group"
)

// ValidMentorshipType reports whether t names a known mentorship type.
func ValidMentorshipType(t string) bool {
    return t == TypeOneOnOne || t == TypeGroup
}

// MentorshipTypeLabel returns the human label used in emails.
func MentorshipTypeLabel(t string) string {
    switch t {
    case TypeOneOnOne:
        return "1-on-1 mentorship"
    case TypeGroup:
        return "group mentorship"
    }
    return t
}

// WaitlistEntry records someone who wants an email when an instructor's
// mentorship type becomes bookable again.  The (email, instructor_slug,
// type) triple is unique.
//
// Fields:
//  ID                 – primary key identifier.
//  Email              – normalized (trimmed, lower-case) address.
//  UserID             – owning user when signed up while logged in.
//  InstructorSlug     – instructor the entry waits on.
//  Type               – one-on-one or group.
//  Notified           – whether an availability email was delivered.
//  LastNotificationAt – when that email went out (nil if never).
//  CreatedAt          – creation timestamp.
//  UpdatedAt          – last update timestamp.
type WaitlistEntry struct {
    ID                 uint64     // waitlist_entries.id
    Email              string     // waitlist_entries.email
    UserID             *uint64    // waitlist_entries.user_id (nullable)
    InstructorSlug     string     // waitlist_entries.instructor_slug
    Type               string     // waitlist_entries.type
    Notified           bool       // waitlist_entries.notified
    LastNotificationAt *time.Time // waitlist_entries.last_notification_at (nullable)
    CreatedAt          time.Time  // waitlist_entries.created_at
    UpdatedAt          time.Time  // waitlist_entries.updated_at
}
