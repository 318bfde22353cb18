package domain

import (
	"context"
	"time"

	"example.com/challenges/internal/events"
	"example.com/challenges/internal/observability"
)

// PartnerConfirmInput captures a partner's acknowledgement of a task.
type PartnerConfirmInput struct {
	EnrollmentID  string
	TaskID        string
	Confirmed     bool
	PartnerUserID string
}

// ToggleTaskCompletion marks a task done or not done and returns the recomputed snapshot.
func (s *Service) ToggleTaskCompletion(ctx context.Context, enrollmentID, taskID string, completed bool) (*Snapshot, error) {
	state, err := s.repo.UpdateState(ctx, enrollmentID, func(st *EnrollmentState) error {
		if st.Enrollment.IsArchived {
			return ErrEnrollmentArchived
		}
		entry := st.entry(taskID)
		if entry == nil {
			return ErrTaskNotFound
		}

		now := s.clock()
		entry.CompletedByUser = completed
		entry.CompletedAt = nil
		if completed {
			entry.CompletedAt = &now
		}
		s.applyRecompute(st, *entry, now)
		return nil
	})
	s.record("toggle_task", err)
	if err != nil {
		return nil, err
	}
	s.afterCommit(state)
	snap := snapshotOf(state)
	return &snap, nil
}

// PartnerConfirm records or clears a partner's confirmation of a task. Confirmation is
// tracked alongside completion and does not feed percent, streak or completion.
func (s *Service) PartnerConfirm(ctx context.Context, input PartnerConfirmInput) (*Snapshot, error) {
	state, err := s.repo.UpdateState(ctx, input.EnrollmentID, func(st *EnrollmentState) error {
		if st.Enrollment.IsArchived {
			return ErrEnrollmentArchived
		}
		if !st.Challenge.RequireDualConfirmation {
			return ErrDualConfirmationDisabled
		}
		entry := st.entry(input.TaskID)
		if entry == nil {
			return ErrTaskNotFound
		}

		now := s.clock()
		entry.ConfirmedByPartner = input.Confirmed
		entry.ConfirmedAt = nil
		entry.PartnerUserID = nil
		if input.Confirmed {
			entry.ConfirmedAt = &now
			if input.PartnerUserID != "" {
				partner := input.PartnerUserID
				entry.PartnerUserID = &partner
			}
		}
		s.applyRecompute(st, *entry, now)
		return nil
	})
	s.record("partner_confirm", err)
	if err != nil {
		return nil, err
	}
	s.afterCommit(state)
	snap := snapshotOf(state)
	return &snap, nil
}

// MarkCompleted force-closes the enrollment regardless of task state.
func (s *Service) MarkCompleted(ctx context.Context, enrollmentID string) (*Snapshot, error) {
	state, err := s.repo.UpdateState(ctx, enrollmentID, func(st *EnrollmentState) error {
		if st.Enrollment.IsArchived {
			return ErrEnrollmentArchived
		}
		now := s.clock()
		wasCompleted := st.Enrollment.IsCompleted
		st.Enrollment.IsCompleted = true
		st.Enrollment.EndDate = &now
		st.Enrollment.UpdatedAt = now
		if !wasCompleted {
			s.appendCompleted(st, now, true)
		}
		return nil
	})
	s.record("mark_completed", err)
	if err != nil {
		return nil, err
	}
	s.afterCommit(state)
	snap := snapshotOf(state)
	return &snap, nil
}

// Archive moves the enrollment to its terminal state. Archiving twice is a no-op.
func (s *Service) Archive(ctx context.Context, enrollmentID string) error {
	_, err := s.repo.UpdateState(ctx, enrollmentID, func(st *EnrollmentState) error {
		if st.Enrollment.IsArchived {
			return nil
		}
		now := s.clock()
		st.Enrollment.IsArchived = true
		st.Enrollment.UpdatedAt = now
		st.Events = append(st.Events, Event{
			Type:        EventEnrollmentArchived,
			AggregateID: st.Enrollment.ID,
			Payload: events.EnrollmentArchived{
				EnrollmentID: st.Enrollment.ID,
				UserID:       st.Enrollment.UserID,
				ChallengeID:  st.Enrollment.ChallengeID,
				ArchivedAt:   now,
			},
		})
		return nil
	})
	s.record("archive", err)
	return err
}

// afterCommit reports committed events to metrics and the log.
func (s *Service) afterCommit(state *EnrollmentState) {
	if state.Enrollment.LastCheckInAt != nil {
		observability.RecordCheckIn(*state.Enrollment.LastCheckInAt)
	}
	for _, event := range state.Events {
		completed, ok := event.Payload.(events.EnrollmentCompleted)
		if !ok {
			continue
		}
		trigger := "tasks"
		if completed.Manual {
			trigger = "manual"
		}
		observability.RecordCompleted(trigger)
		s.logger.Printf("enrollment completed (id=%s, user=%s, trigger=%s)", completed.EnrollmentID, completed.UserID, trigger)
	}
}

func (s *Service) applyRecompute(st *EnrollmentState, changed ProgressEntry, now time.Time) {
	becameCompleted := recompute(st, now)
	st.Enrollment.UpdatedAt = now

	st.Events = append(st.Events, Event{
		Type:        EventProgressChanged,
		AggregateID: st.Enrollment.ID,
		Payload: events.ProgressChanged{
			EnrollmentID:       st.Enrollment.ID,
			UserID:             st.Enrollment.UserID,
			ChallengeID:        st.Enrollment.ChallengeID,
			TaskID:             changed.TaskID,
			CompletedByUser:    changed.CompletedByUser,
			ConfirmedByPartner: changed.ConfirmedByPartner,
			ProgressPercent:    st.Enrollment.ProgressPercent,
			StreakCount:        st.Enrollment.StreakCount,
			OccurredAt:         now,
		},
	})
	if becameCompleted {
		s.appendCompleted(st, now, false)
	}
}

func (s *Service) appendCompleted(st *EnrollmentState, now time.Time, manual bool) {
	st.Events = append(st.Events, Event{
		Type:        EventEnrollmentCompleted,
		AggregateID: st.Enrollment.ID,
		Payload: events.EnrollmentCompleted{
			EnrollmentID: st.Enrollment.ID,
			UserID:       st.Enrollment.UserID,
			ChallengeID:  st.Enrollment.ChallengeID,
			Manual:       manual,
			CompletedAt:  now,
		},
	})
}
