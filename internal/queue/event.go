// Package queue defines message payloads exchanged over the message broker
// and the RabbitMQ publisher and consumer that carry them.
package queue

import (
    "encoding/json"
    "errors"
    "fmt"
    "time"
)

// Queue names.  Both queues are durable and messages are persistent.
const (
    InventoryChangedQueue = "inventory.changed"
    SessionBookedQueue    = "session.booked"
)

// InventoryChangedEvent is published whenever an instructor's open spot
// count for a mentorship type is written.  Consumers compare the previous
// and new counts to decide whether waitlisted people should be emailed.
type InventoryChangedEvent struct {
    InstructorSlug string    `json:"instructor_slug"`
    Type           string    `json:"type"`
    PreviousCount  int       `json:"previous_count"`
    NewCount       int       `json:"new_count"`
    ChangedAt      time.Time `json:"changed_at"`
}

// SessionBookedEvent is published after a booking transaction commits.  It
// carries enough for the confirmation email and the audit log without a
// join on the primary database.
type SessionBookedEvent struct {
    SessionID   string    `json:"session_id"`
    PackID      string    `json:"pack_id"`
    MenteeID    uint64    `json:"mentee_id"`
    MentorID    uint64    `json:"mentor_id"`
    ScheduledAt time.Time `json:"scheduled_at"`
    Remaining   int       `json:"remaining_sessions"`
    BookedAt    time.Time `json:"booked_at"`
}

// permanentError marks a delivery that no retry can fix.
type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the consumer rejects the message without retrying.
func Permanent(err error) error {
    if err == nil {
        return nil
    }
    return permanentError{err: err}
}

// IsPermanent reports whether err (or anything it wraps) came from Permanent.
func IsPermanent(err error) bool {
    var p permanentError
    return errors.As(err, &p)
}

// Decode unmarshals a message body.  A body that does not parse is a
// permanent failure.
func Decode[T any](body []byte) (T, error) {
    var v T
    if err := json.Unmarshal(body, &v); err != nil {
        return v, Permanent(fmt.Errorf("unmarshal: %w", err))
    }
    return v, nil
}
