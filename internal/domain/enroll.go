package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"example.com/challenges/internal/events"
)

// EnrollInput captures an enrollment request. A nil StartDate means now.
type EnrollInput struct {
	UserID      string
	ChallengeID string
	StartDate   *time.Time
}

// Enroll creates an enrollment with one progress row per task the challenge has
// right now. When the user already has a non-archived enrollment in the challenge it
// is returned unchanged and the boolean result is true.
func (s *Service) Enroll(ctx context.Context, input EnrollInput) (*Enrollment, bool, error) {
	enrollment, replay, err := s.enroll(ctx, input)
	s.record("enroll", err)
	return enrollment, replay, err
}

func (s *Service) enroll(ctx context.Context, input EnrollInput) (*Enrollment, bool, error) {
	challenge, err := s.catalog.GetActiveChallenge(ctx, input.ChallengeID)
	if err != nil {
		return nil, false, fmt.Errorf("load challenge %s: %w", input.ChallengeID, err)
	}
	if challenge == nil || challenge.Status != ChallengeStatusActive {
		return nil, false, ErrChallengeNotFound
	}

	existing, err := s.repo.FindActiveEnrollment(ctx, input.UserID, input.ChallengeID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, true, nil
	}

	tasks, err := s.catalog.ListTasks(ctx, challenge.ID)
	if err != nil {
		return nil, false, fmt.Errorf("list tasks for challenge %s: %w", challenge.ID, err)
	}

	now := s.clock()
	start := now
	if input.StartDate != nil {
		start = input.StartDate.UTC()
	}

	enrollment := Enrollment{
		ID:          uuid.NewString(),
		UserID:      input.UserID,
		ChallengeID: challenge.ID,
		StartDate:   start,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	rows := make([]ProgressRow, 0, len(tasks))
	for _, task := range tasks {
		rows = append(rows, ProgressRow{
			ID:           uuid.NewString(),
			EnrollmentID: enrollment.ID,
			TaskID:       task.ID,
		})
	}

	created := Event{
		Type:        EventEnrollmentCreated,
		AggregateID: enrollment.ID,
		Payload: events.EnrollmentCreated{
			EnrollmentID: enrollment.ID,
			UserID:       enrollment.UserID,
			ChallengeID:  enrollment.ChallengeID,
			StartDate:    enrollment.StartDate,
			TaskCount:    len(rows),
		},
	}

	// A conflicting enrollment can be archived before it is re-read; the insert is
	// retried once in that case.
	for attempt := 0; ; attempt++ {
		err = s.repo.CreateEnrollment(ctx, enrollment, rows, []Event{created})
		if err == nil {
			return &enrollment, false, nil
		}
		if !errors.Is(err, ErrConflict) {
			return nil, false, err
		}

		winner, findErr := s.repo.FindActiveEnrollment(ctx, input.UserID, input.ChallengeID)
		if findErr != nil {
			return nil, false, findErr
		}
		if winner != nil {
			s.logger.Printf("concurrent enroll resolved (user=%s, challenge=%s, enrollment=%s)", input.UserID, input.ChallengeID, winner.ID)
			return winner, true, nil
		}
		if attempt > 0 {
			return nil, false, fmt.Errorf("enroll user %s in challenge %s: enrollment changed concurrently twice", input.UserID, input.ChallengeID)
		}
	}
}
