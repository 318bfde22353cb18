// Package events defines the enrollment event payloads written to the outbox and read back by consumers.
package events

import "time"

// EnrollmentCreated is emitted when a user joins a challenge.
type EnrollmentCreated struct {
	EnrollmentID string    `json:"enrollment_id"`
	UserID       string    `json:"user_id"`
	ChallengeID  string    `json:"challenge_id"`
	StartDate    time.Time `json:"start_date"`
	TaskCount    int       `json:"task_count"`
}

// ProgressChanged tracks a task toggle or partner confirmation together with the recomputed totals.
type ProgressChanged struct {
	EnrollmentID       string    `json:"enrollment_id"`
	UserID             string    `json:"user_id"`
	ChallengeID        string    `json:"challenge_id"`
	TaskID             string    `json:"task_id"`
	CompletedByUser    bool      `json:"completed_by_user"`
	ConfirmedByPartner bool      `json:"confirmed_by_partner"`
	ProgressPercent    int       `json:"progress_percent"`
	StreakCount        int       `json:"streak_count"`
	OccurredAt         time.Time `json:"occurred_at"`
}

// EnrollmentCompleted is emitted once, on the first transition to completed.
type EnrollmentCompleted struct {
	EnrollmentID string    `json:"enrollment_id"`
	UserID       string    `json:"user_id"`
	ChallengeID  string    `json:"challenge_id"`
	Manual       bool      `json:"manual"`
	CompletedAt  time.Time `json:"completed_at"`
}

// EnrollmentArchived is emitted when an enrollment enters its terminal state.
type EnrollmentArchived struct {
	EnrollmentID string    `json:"enrollment_id"`
	UserID       string    `json:"user_id"`
	ChallengeID  string    `json:"challenge_id"`
	ArchivedAt   time.Time `json:"archived_at"`
}
