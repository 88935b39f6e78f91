package common

import (
	"errors"
	"fmt"
)

// ErrBookingNotFound signals an update targeting a booking row that no
// longer exists. Callers surface "booking not found, please refresh".
var ErrBookingNotFound = errors.New("booking not found")

// ErrConflict is raised when a requested slot overlaps an approved booking.
// The slot selector disables conflicting slots up front, so reaching this
// at confirmation means the cached slot set was stale.
var ErrConflict = errors.New("requested time slot is no longer available")

// ErrOperationInFlight is returned when a transition is requested while a
// previous persistence write for the same booking is still outstanding.
var ErrOperationInFlight = errors.New("a previous request is still being processed")

// ValidationError reports a failed transition guard. It never reaches the
// persistence layer and is recovered by re-prompting the user.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// PersistenceError wraps a storage failure surfaced at the coordinator
// boundary. The booking state is left at its pre-attempt value and the
// caller offers a retry.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed during %s: %s", e.Op, e.Err.Error())
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
