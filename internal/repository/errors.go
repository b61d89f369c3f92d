// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers and services to distinguish between different failure
// scenarios. For example, ErrForbidden indicates that the current user is
// not authorized to act on a resource owned by someone else, while
// ErrConflict signals that a write lost a race against another writer
// (e.g. two bookings consuming the last session of a pack).
package repository

import (
    "errors"

    "github.com/go-sql-driver/mysql"
)

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an update cannot be applied because the
// row changed underneath it. Handlers should translate this into an
// HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrPackNotFound indicates that no session pack exists with the given id.
var ErrPackNotFound = errors.New("session pack not found")

// ErrInstructorNotFound indicates an unknown instructor slug.
var ErrInstructorNotFound = errors.New("instructor not found")

// ErrAlreadyOnWaitlist is returned by WaitlistRepo.Add when the
// (email, instructor, type) triple already exists.  It is an expected
// outcome, not a failure.
var ErrAlreadyOnWaitlist = errors.New("already on waitlist")

// ErrLockTimeout is returned when an advisory lock could not be acquired
// within the requested timeout.
var ErrLockTimeout = errors.New("advisory lock timeout")

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

func isDuplicateKey(err error) bool {
    var me *mysql.MySQLError
    return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
