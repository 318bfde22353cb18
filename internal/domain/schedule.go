package domain

import (
	"cmp"
	"context"
	"slices"
	"time"
)

const day = 24 * time.Hour

// TodayTasks is the set of tasks due on one calendar day of an enrollment.
type TodayTasks struct {
	DayIndex int
	Tasks    []ProgressEntry
}

// DayIndex returns the 1-based number of whole UTC calendar days between start and now.
// Days before the start yield values below 1.
func DayIndex(start, now time.Time) int {
	return int(midnightUTC(now).Sub(midnightUTC(start))/day) + 1
}

func midnightUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// TodayTasks returns the enrollment's tasks due on the day containing now.
// Tasks without a day number are due every day of the challenge.
func (s *Service) TodayTasks(ctx context.Context, enrollmentID string, now time.Time) (*TodayTasks, error) {
	state, err := s.repo.LoadState(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, ErrEnrollmentNotFound
	}
	if state.Enrollment.StartDate.IsZero() {
		return nil, ErrNoStartDate
	}
	today := scheduleFor(state, now)
	return &today, nil
}

func scheduleFor(state *EnrollmentState, now time.Time) TodayTasks {
	index := DayIndex(state.Enrollment.StartDate, now)
	out := TodayTasks{DayIndex: index, Tasks: []ProgressEntry{}}
	if index < 1 || index > state.Challenge.DurationDays {
		return out
	}

	for _, entry := range state.Progress {
		if entry.Task.DayNumber == nil || *entry.Task.DayNumber == index {
			out.Tasks = append(out.Tasks, entry)
		}
	}

	slices.SortStableFunc(out.Tasks, func(a, b ProgressEntry) int {
		if c := compareNullsFirst(a.Task.WeekNumber, b.Task.WeekNumber); c != 0 {
			return c
		}
		return compareNullsFirst(a.Task.DayNumber, b.Task.DayNumber)
	})
	return out
}

func compareNullsFirst(a, b *int) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	default:
		return cmp.Compare(*a, *b)
	}
}
