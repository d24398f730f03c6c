package lifecycle

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an item or claim does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is returned when a verified identity lacks the
	// relation to the item that an operation requires.
	ErrUnauthorized = errors.New("not authorized")
	// ErrConflict is returned when the item changed between load and commit.
	// Retrying is safe.
	ErrConflict = errors.New("item was modified concurrently")
	// ErrInvalidTransition is wrapped by every *TransitionError.
	ErrInvalidTransition = errors.New("invalid transition")
)

// Subjects of a TransitionError.
const (
	SubjectItem  = "item"
	SubjectClaim = "claim"
)

// TransitionError reports a failed state machine guard. Current is the
// subject's status at the time of the attempt so callers can resync.
type TransitionError struct {
	Subject   string
	Current   string
	Attempted string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s: %s is %s", e.Attempted, e.Subject, e.Current)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}
