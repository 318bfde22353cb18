package domain

import (
	"context"
	"time"
)

// Enrollment is a user's participation in one challenge.
type Enrollment struct {
	ID              string
	UserID          string
	ChallengeID     string
	StartDate       time.Time
	EndDate         *time.Time
	StreakCount     int
	ProgressPercent int
	LastCheckInAt   *time.Time
	IsCompleted     bool
	IsArchived      bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ProgressRow records completion and partner confirmation of one task within one enrollment.
type ProgressRow struct {
	ID                 string
	EnrollmentID       string
	TaskID             string
	CompletedByUser    bool
	CompletedAt        *time.Time
	ConfirmedByPartner bool
	ConfirmedAt        *time.Time
	PartnerUserID      *string
}

// ProgressEntry is a progress row joined with its task definition.
type ProgressEntry struct {
	ProgressRow
	Task Task
}

// Event is a domain event persisted atomically with the state change that produced it.
type Event struct {
	Type        string
	AggregateID string
	Payload     any
}

// Event types written to the outbox.
const (
	EventEnrollmentCreated   = "enrollment.created"
	EventProgressChanged     = "enrollment.progress_changed"
	EventEnrollmentCompleted = "enrollment.completed"
	EventEnrollmentArchived  = "enrollment.archived"
)

// EnrollmentState is the working set of one enrollment: the enrollment row, the
// challenge it belongs to and its progress rows in task order.
type EnrollmentState struct {
	Enrollment Enrollment
	Challenge  Challenge
	Progress   []ProgressEntry
	Events     []Event
}

func (s *EnrollmentState) entry(taskID string) *ProgressEntry {
	for i := range s.Progress {
		if s.Progress[i].TaskID == taskID {
			return &s.Progress[i]
		}
	}
	return nil
}

// Clone returns a copy whose slices can be changed without touching s. Pointer
// fields are shared and must be replaced, not written through.
func (s *EnrollmentState) Clone() *EnrollmentState {
	out := &EnrollmentState{
		Enrollment: s.Enrollment,
		Challenge:  s.Challenge,
		Progress:   make([]ProgressEntry, len(s.Progress)),
	}
	copy(out.Progress, s.Progress)
	if len(s.Events) > 0 {
		out.Events = append([]Event(nil), s.Events...)
	}
	return out
}

// EnrollmentSummary is an enrollment with the task totals used by listings.
type EnrollmentSummary struct {
	Enrollment
	ChallengeTitle string
	DurationDays   int
	TasksTotal     int
	TasksCompleted int
}

// Repository persists enrollments and their progress rows.
//
// UpdateState must hold an exclusive lock on the enrollment for the whole call: the
// state passed to fn reflects every previously committed write, and everything fn
// changes (enrollment fields, progress rows, events) is committed atomically or not
// at all.
type Repository interface {
	// CreateEnrollment inserts the enrollment with its rows and events. It returns
	// ErrEnrollmentExists when a non-archived enrollment for the same user and
	// challenge already exists.
	CreateEnrollment(ctx context.Context, enrollment Enrollment, progress []ProgressRow, events []Event) error
	FindActiveEnrollment(ctx context.Context, userID, challengeID string) (*Enrollment, error)
	// LoadState returns nil when the enrollment does not exist.
	LoadState(ctx context.Context, enrollmentID string) (*EnrollmentState, error)
	// UpdateState returns ErrEnrollmentNotFound when the enrollment does not exist.
	UpdateState(ctx context.Context, enrollmentID string, fn func(*EnrollmentState) error) (*EnrollmentState, error)
	ListByUser(ctx context.Context, userID string, opts ListOptions) ([]EnrollmentSummary, int, error)
	// ActiveByChallenges maps challenge id to the user's non-archived enrollment.
	ActiveByChallenges(ctx context.Context, userID string, challengeIDs []string) (map[string]EnrollmentSummary, error)
}
