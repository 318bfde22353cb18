package domain

import "context"

// Cadence describes how often a challenge or task recurs.
type Cadence string

const (
	CadenceDaily  Cadence = "DAILY"
	CadenceWeekly Cadence = "WEEKLY"
	CadenceMixed  Cadence = "MIXED"
)

// ChallengeStatus is the catalog lifecycle of a challenge definition.
type ChallengeStatus string

const (
	ChallengeStatusDraft    ChallengeStatus = "DRAFT"
	ChallengeStatusActive   ChallengeStatus = "ACTIVE"
	ChallengeStatusArchived ChallengeStatus = "ARCHIVED"
)

// Challenge is a read-only challenge definition owned by the catalog.
type Challenge struct {
	ID                      string
	Title                   string
	CommunityTag            string
	DurationDays            int
	Cadence                 Cadence
	Visibility              string
	RequireDualConfirmation bool
	Status                  ChallengeStatus
}

// Task is a read-only task definition attached to a challenge.
// DayNumber and WeekNumber are nil when unset.
type Task struct {
	ID           string
	ChallengeID  string
	Position     int
	Cadence      Cadence
	DayNumber    *int
	WeekNumber   *int
	Title        string
	Instructions string
	IsMilestone  bool
}

// CatalogFilter narrows catalog listings. A PageSize of zero asks for every match.
type CatalogFilter struct {
	Page         int
	PageSize     int
	Search       string
	CommunityTag string
	Cadence      Cadence
}

// Catalog is the read-only source of challenge and task definitions.
type Catalog interface {
	// GetActiveChallenge returns nil when the challenge is missing or not ACTIVE.
	GetActiveChallenge(ctx context.Context, challengeID string) (*Challenge, error)
	// ListTasks returns the challenge's tasks in catalog order.
	ListTasks(ctx context.Context, challengeID string) ([]Task, error)
	// ListActiveChallenges returns one page of ACTIVE challenges and the total match count.
	ListActiveChallenges(ctx context.Context, filter CatalogFilter) ([]Challenge, int, error)
}
