package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/challenges/internal/domain"
)

// Catalog reads challenge definitions. Authoring lives elsewhere; this type never writes.
type Catalog struct {
	pool *pgxpool.Pool
}

// NewCatalog constructs a Catalog.
func NewCatalog(pool *pgxpool.Pool) *Catalog {
	return &Catalog{pool: pool}
}

const challengeColumns = `challenge_id, title, community_tag, duration_days, cadence, visibility, require_dual_confirmation, status`

// GetActiveChallenge returns the challenge when it exists and is ACTIVE, nil otherwise.
func (c *Catalog) GetActiveChallenge(ctx context.Context, challengeID string) (*domain.Challenge, error) {
	row := c.pool.QueryRow(ctx,
		`SELECT `+challengeColumns+` FROM challenges WHERE challenge_id = $1 AND status = $2`,
		challengeID, domain.ChallengeStatusActive,
	)
	challenge, err := scanChallenge(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &challenge, nil
}

// ListTasks returns the challenge's tasks in authoring order.
func (c *Catalog) ListTasks(ctx context.Context, challengeID string) ([]domain.Task, error) {
	rows, err := c.pool.Query(ctx,
		`SELECT task_id, challenge_id, position, cadence, day_number, week_number, title, instructions, is_milestone
           FROM challenge_tasks WHERE challenge_id = $1 ORDER BY position, task_id`,
		challengeID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := make([]domain.Task, 0)
	for rows.Next() {
		var t domain.Task
		if err := rows.Scan(&t.ID, &t.ChallengeID, &t.Position, &t.Cadence, &t.DayNumber, &t.WeekNumber, &t.Title, &t.Instructions, &t.IsMilestone); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// ListActiveChallenges filters ACTIVE challenges. A non-positive PageSize returns every match.
func (c *Catalog) ListActiveChallenges(ctx context.Context, filter domain.CatalogFilter) ([]domain.Challenge, int, error) {
	where := `WHERE status = $1
          AND ($2 = '' OR title ILIKE '%' || $2 || '%')
          AND ($3 = '' OR community_tag = $3)
          AND ($4 = '' OR cadence = $4)`
	args := []any{domain.ChallengeStatusActive, likeEscaper.Replace(strings.TrimSpace(filter.Search)), filter.CommunityTag, string(filter.Cadence)}

	var total int
	if err := c.pool.QueryRow(ctx, `SELECT COUNT(*) FROM challenges `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + challengeColumns + ` FROM challenges ` + where + ` ORDER BY created_at, challenge_id`
	if filter.PageSize > 0 {
		page := max(filter.Page, 1)
		query += fmt.Sprintf(` LIMIT %d OFFSET %d`, filter.PageSize, (page-1)*filter.PageSize)
	}

	rows, err := c.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	challenges := make([]domain.Challenge, 0)
	for rows.Next() {
		challenge, err := scanChallenge(rows)
		if err != nil {
			return nil, 0, err
		}
		challenges = append(challenges, challenge)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return challenges, total, nil
}

func scanChallenge(row pgx.Row) (domain.Challenge, error) {
	var ch domain.Challenge
	err := row.Scan(&ch.ID, &ch.Title, &ch.CommunityTag, &ch.DurationDays, &ch.Cadence, &ch.Visibility, &ch.RequireDualConfirmation, &ch.Status)
	return ch, err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
