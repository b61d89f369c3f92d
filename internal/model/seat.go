package model

import "time"

// Seat statuses.  GRACE is a wind-down state and still forbids new bookings.
const (
    SeatActive   = "active"
    SeatGrace    = "grace"
    SeatReleased = "released"
)

// Seat describes the mentor/mentee relationship attached to a pack.  There
// is at most one seat per pack.
//
// Fields:
//  ID        – primary key identifier.
//  PackID    – pack this seat belongs to.
//  Status    – active, grace or released.
//  CreatedAt – creation timestamp.
//  UpdatedAt – last update timestamp.
type Seat struct {
    ID        uint64    // seats.id
    PackID    string    // seats.pack_id
    Status    string    // seats.status
    CreatedAt time.Time // seats.created_at
    UpdatedAt time.Time // seats.updated_at
}
