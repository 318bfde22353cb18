// Package memory provides an in-memory enrollment repository for local development and tests.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"example.com/challenges/internal/domain"
	"example.com/challenges/internal/persistence"
)

// Definitions resolves the catalog rows an enrollment joins against.
type Definitions interface {
	Challenge(challengeID string) (domain.Challenge, bool)
	Task(challengeID, taskID string) (domain.Task, bool)
}

// Repository implements domain.Repository. A single mutex serialises every call, which
// trivially satisfies the per-enrollment locking contract of UpdateState.
type Repository struct {
	mu          sync.Mutex
	defs        Definitions
	enrollments map[string]domain.Enrollment
	order       []string
	progress    map[string][]domain.ProgressEntry
	events      []domain.Event
}

// NewRepository constructs a Repository joining against defs.
func NewRepository(defs Definitions) *Repository {
	return &Repository{
		defs:        defs,
		enrollments: make(map[string]domain.Enrollment),
		progress:    make(map[string][]domain.ProgressEntry),
	}
}

// CreateEnrollment implements domain.Repository.
func (r *Repository) CreateEnrollment(ctx context.Context, enrollment domain.Enrollment, progress []domain.ProgressRow, events []domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.findActive(enrollment.UserID, enrollment.ChallengeID) != nil {
		return domain.ErrEnrollmentExists
	}
	r.enrollments[enrollment.ID] = enrollment
	r.order = append(r.order, enrollment.ID)
	r.progress[enrollment.ID] = r.snapshotTasks(enrollment.ChallengeID, progress)
	r.events = append(r.events, events...)
	return nil
}

// FindActiveEnrollment implements domain.Repository.
func (r *Repository) FindActiveEnrollment(ctx context.Context, userID, challengeID string) (*domain.Enrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.findActive(userID, challengeID), nil
}

func (r *Repository) findActive(userID, challengeID string) *domain.Enrollment {
	for _, id := range r.order {
		e := r.enrollments[id]
		if e.UserID == userID && e.ChallengeID == challengeID && !e.IsArchived {
			return &e
		}
	}
	return nil
}

// LoadState implements domain.Repository.
func (r *Repository) LoadState(ctx context.Context, enrollmentID string) (*domain.EnrollmentState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.state(enrollmentID), nil
}

// UpdateState implements domain.Repository.
func (r *Repository) UpdateState(ctx context.Context, enrollmentID string, fn func(*domain.EnrollmentState) error) (*domain.EnrollmentState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.state(enrollmentID)
	if current == nil {
		return nil, domain.ErrEnrollmentNotFound
	}

	working := current.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}

	r.enrollments[enrollmentID] = working.Enrollment
	stored := r.progress[enrollmentID]
	for _, entry := range working.Progress {
		for i := range stored {
			if stored[i].ID == entry.ID {
				stored[i].ProgressRow = entry.ProgressRow
			}
		}
	}
	r.events = append(r.events, working.Events...)
	return working, nil
}

func (r *Repository) state(enrollmentID string) *domain.EnrollmentState {
	enrollment, ok := r.enrollments[enrollmentID]
	if !ok {
		return nil
	}
	challenge, _ := r.defs.Challenge(enrollment.ChallengeID)

	entries := slices.Clone(r.progress[enrollmentID])
	slices.SortStableFunc(entries, func(a, b domain.ProgressEntry) int {
		return cmp.Compare(a.Task.Position, b.Task.Position)
	})

	return &domain.EnrollmentState{Enrollment: enrollment, Challenge: challenge, Progress: entries}
}

// snapshotTasks joins rows with the task definitions current at enrollment time.
// Later catalog edits do not change what an enrollment tracks.
func (r *Repository) snapshotTasks(challengeID string, rows []domain.ProgressRow) []domain.ProgressEntry {
	entries := make([]domain.ProgressEntry, 0, len(rows))
	for i, row := range rows {
		task, ok := r.defs.Task(challengeID, row.TaskID)
		if !ok {
			task = domain.Task{ID: row.TaskID, ChallengeID: challengeID, Position: i}
		}
		entries = append(entries, domain.ProgressEntry{ProgressRow: row, Task: task})
	}
	return entries
}

func (r *Repository) summary(e domain.Enrollment) domain.EnrollmentSummary {
	challenge, _ := r.defs.Challenge(e.ChallengeID)
	out := domain.EnrollmentSummary{
		Enrollment:     e,
		ChallengeTitle: challenge.Title,
		DurationDays:   challenge.DurationDays,
	}
	for _, entry := range r.progress[e.ID] {
		out.TasksTotal++
		if entry.CompletedByUser {
			out.TasksCompleted++
		}
	}
	return out
}

// ListByUser implements domain.Repository.
func (r *Repository) ListByUser(ctx context.Context, userID string, opts domain.ListOptions) ([]domain.EnrollmentSummary, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matches := make([]domain.EnrollmentSummary, 0)
	for _, id := range r.order {
		e := r.enrollments[id]
		if e.UserID != userID {
			continue
		}
		if opts.Archived != nil && e.IsArchived != *opts.Archived {
			continue
		}
		matches = append(matches, r.summary(e))
	}

	slices.SortStableFunc(matches, func(a, b domain.EnrollmentSummary) int {
		return compareSummaries(a, b, opts)
	})

	start, end := persistence.Window(len(matches), opts.Offset(), opts.PageSize)
	return matches[start:end], len(matches), nil
}

// compareSummaries mirrors persistence.OrderClause: nulls last, id as tie-breaker.
func compareSummaries(a, b domain.EnrollmentSummary, opts domain.ListOptions) int {
	var c int
	switch opts.OrderBy {
	case domain.OrderByProgressPercent:
		c = cmp.Compare(a.ProgressPercent, b.ProgressPercent)
	case domain.OrderByCreatedAt:
		c = a.CreatedAt.Compare(b.CreatedAt)
	case domain.OrderByLastCheckInAt:
		if n := nullsLast(a.LastCheckInAt, b.LastCheckInAt); n != 0 {
			return n
		}
		if a.LastCheckInAt != nil {
			c = a.LastCheckInAt.Compare(*b.LastCheckInAt)
		}
	default:
		c = a.StartDate.Compare(b.StartDate)
	}
	if c == 0 {
		c = cmp.Compare(a.ID, b.ID)
	}
	if opts.OrderDir != domain.SortAsc {
		c = -c
	}
	return c
}

func nullsLast(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return 0
	}
}

// ActiveByChallenges implements domain.Repository.
func (r *Repository) ActiveByChallenges(ctx context.Context, userID string, challengeIDs []string) (map[string]domain.EnrollmentSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]domain.EnrollmentSummary)
	for _, challengeID := range challengeIDs {
		if e := r.findActive(userID, challengeID); e != nil {
			out[challengeID] = r.summary(*e)
		}
	}
	return out, nil
}

// Events returns every event recorded so far.
func (r *Repository) Events() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.events)
}

// ProgressRows returns the stored rows of one enrollment.
func (r *Repository) ProgressRows(enrollmentID string) []domain.ProgressRow {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows := make([]domain.ProgressRow, 0, len(r.progress[enrollmentID]))
	for _, entry := range r.progress[enrollmentID] {
		rows = append(rows, entry.ProgressRow)
	}
	return rows
}
