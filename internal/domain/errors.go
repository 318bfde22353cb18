package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the Service that is not an infrastructure
// failure wraps exactly one of these.
var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidState = errors.New("invalid state")
	ErrConflict     = errors.New("conflict")
)

var (
	// ErrChallengeNotFound is returned when the challenge is missing or not ACTIVE.
	ErrChallengeNotFound = fmt.Errorf("challenge %w", ErrNotFound)
	// ErrEnrollmentNotFound is returned when an enrollment cannot be located.
	ErrEnrollmentNotFound = fmt.Errorf("enrollment %w", ErrNotFound)
	// ErrTaskNotFound is returned when the task has no progress row in the enrollment.
	ErrTaskNotFound = fmt.Errorf("task %w", ErrNotFound)
	// ErrDualConfirmationDisabled rejects partner confirmation on challenges that do not require it.
	ErrDualConfirmationDisabled = fmt.Errorf("%w: challenge does not require partner confirmation", ErrForbidden)
	// ErrNoStartDate is returned when scheduling an enrollment without a start date.
	ErrNoStartDate = fmt.Errorf("%w: enrollment has no start date", ErrInvalidState)
	// ErrEnrollmentArchived rejects mutations of an archived enrollment.
	ErrEnrollmentArchived = fmt.Errorf("%w: enrollment is archived", ErrInvalidState)
	// ErrEnrollmentExists signals a lost race on the active-enrollment uniqueness constraint.
	ErrEnrollmentExists = fmt.Errorf("active enrollment %w", ErrConflict)
)

// Kind classifies an error for transport layers.
type Kind string

const (
	KindNone         Kind = ""
	KindNotFound     Kind = "not_found"
	KindForbidden    Kind = "forbidden"
	KindInvalidState Kind = "invalid_state"
	KindConflict     Kind = "conflict"
	KindInternal     Kind = "internal"
)

// KindOf reports the kind of err.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrInvalidState):
		return KindInvalidState
	case errors.Is(err, ErrConflict):
		return KindConflict
	default:
		return KindInternal
	}
}
