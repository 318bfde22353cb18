package domain

import (
	"context"
	"math"
	"time"

	"example.com/challenges/internal/observability"
)

// Snapshot is the derived, read-only view of an enrollment's progress.
type Snapshot struct {
	ID                      string
	ChallengeID             string
	Title                   string
	ProgressPercent         int
	StreakCount             int
	LastCheckInAt           *time.Time
	Totals                  SnapshotTotals
	IsCompleted             bool
	IsArchived              bool
	StartDate               time.Time
	EndDate                 *time.Time
	DurationDays            int
	RequireDualConfirmation bool
}

// SnapshotTotals counts the enrollment's progress rows.
type SnapshotTotals struct {
	Tasks     int
	Completed int
}

// Snapshot reads the enrollment's current derived state without changing it.
func (s *Service) Snapshot(ctx context.Context, enrollmentID string) (*Snapshot, error) {
	state, err := s.repo.LoadState(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, ErrEnrollmentNotFound
	}
	snap := snapshotOf(state)
	return &snap, nil
}

func snapshotOf(state *EnrollmentState) Snapshot {
	e := state.Enrollment
	completed := 0
	for _, entry := range state.Progress {
		if entry.CompletedByUser {
			completed++
		}
	}
	return Snapshot{
		ID:                      e.ID,
		ChallengeID:             e.ChallengeID,
		Title:                   state.Challenge.Title,
		ProgressPercent:         e.ProgressPercent,
		StreakCount:             e.StreakCount,
		LastCheckInAt:           e.LastCheckInAt,
		Totals:                  SnapshotTotals{Tasks: len(state.Progress), Completed: completed},
		IsCompleted:             e.IsCompleted,
		IsArchived:              e.IsArchived,
		StartDate:               e.StartDate,
		EndDate:                 e.EndDate,
		DurationDays:            state.Challenge.DurationDays,
		RequireDualConfirmation: state.Challenge.RequireDualConfirmation,
	}
}

// recompute derives percent, streak, last check-in and completion from the
// progress rows. Completion only ever moves from false to true here; the return
// value reports whether this call made that move.
func recompute(state *EnrollmentState, now time.Time) bool {
	defer observability.ObserveRecompute(time.Now())

	e := &state.Enrollment
	total := len(state.Progress)
	completed := 0
	completedDays := make(map[int]struct{})
	var lastCheckIn *time.Time

	for _, entry := range state.Progress {
		if !entry.CompletedByUser {
			continue
		}
		completed++
		if entry.Task.DayNumber != nil {
			completedDays[*entry.Task.DayNumber] = struct{}{}
		}
		if entry.CompletedAt != nil && (lastCheckIn == nil || entry.CompletedAt.After(*lastCheckIn)) {
			ts := *entry.CompletedAt
			lastCheckIn = &ts
		}
	}

	denominator := total
	if denominator == 0 {
		denominator = 1
	}
	e.ProgressPercent = int(math.Round(100 * float64(completed) / float64(denominator)))
	e.LastCheckInAt = lastCheckIn

	e.StreakCount = 0
	if !e.StartDate.IsZero() {
		e.StreakCount = streak(completedDays, DayIndex(e.StartDate, now))
	}

	if total > 0 && completed == total && !e.IsCompleted {
		e.IsCompleted = true
		if e.EndDate == nil {
			end := now
			e.EndDate = &end
		}
		return true
	}
	return false
}

// streak counts consecutive completed days walking back from today; the first
// missing day ends the run.
func streak(completedDays map[int]struct{}, today int) int {
	n := 0
	for d := today; d >= 1; d-- {
		if _, ok := completedDays[d]; !ok {
			break
		}
		n++
	}
	return n
}
