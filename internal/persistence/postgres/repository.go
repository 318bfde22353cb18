// Package postgres implements enrollment persistence and the challenge catalog on Postgres.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/challenges/internal/domain"
	"example.com/challenges/internal/persistence"
)

// Repository provides Postgres-backed persistence for enrollments, progress rows and outbox events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const enrollmentColumns = `e.enrollment_id, e.user_id, e.challenge_id, e.start_date, e.end_date, e.streak_count,
        e.progress_percent, e.last_check_in_at, e.is_completed, e.is_archived, e.created_at, e.updated_at`

// CreateEnrollment inserts the enrollment, its progress rows and events in one transaction.
// The partial unique index on live enrollments turns a lost race into ErrEnrollmentExists.
func (r *Repository) CreateEnrollment(ctx context.Context, enrollment domain.Enrollment, progress []domain.ProgressRow, events []domain.Event) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const insertEnrollment = `INSERT INTO enrollments (enrollment_id, user_id, challenge_id, start_date, end_date, streak_count, progress_percent,
            last_check_in_at, is_completed, is_archived, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
        ON CONFLICT (user_id, challenge_id) WHERE NOT is_archived DO NOTHING`

	tag, err := tx.Exec(ctx, insertEnrollment,
		enrollment.ID,
		enrollment.UserID,
		enrollment.ChallengeID,
		enrollment.StartDate,
		enrollment.EndDate,
		enrollment.StreakCount,
		enrollment.ProgressPercent,
		enrollment.LastCheckInAt,
		enrollment.IsCompleted,
		enrollment.IsArchived,
		enrollment.CreatedAt,
		enrollment.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEnrollmentExists
	}

	if len(progress) > 0 {
		batch := &pgx.Batch{}
		for _, row := range progress {
			batch.Queue(`INSERT INTO enrollment_progress (progress_id, enrollment_id, task_id, completed_by_user, completed_at,
                    confirmed_by_partner, confirmed_at, partner_user_id)
                VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
				row.ID, row.EnrollmentID, row.TaskID, row.CompletedByUser, row.CompletedAt,
				row.ConfirmedByPartner, row.ConfirmedAt, row.PartnerUserID,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert progress rows: %w", err)
		}
	}

	for _, event := range events {
		if err := insertOutbox(ctx, tx, event); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// FindActiveEnrollment returns the user's live enrollment in the challenge, or nil.
func (r *Repository) FindActiveEnrollment(ctx context.Context, userID, challengeID string) (*domain.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + `
        FROM enrollments e WHERE e.user_id=$1 AND e.challenge_id=$2 AND NOT e.is_archived`

	enrollment, err := scanEnrollment(r.pool.QueryRow(ctx, query, userID, challengeID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// LoadState reads the enrollment with its challenge and progress rows from one snapshot.
func (r *Repository) LoadState(ctx context.Context, enrollmentID string) (*domain.EnrollmentState, error) {
	if !validID(enrollmentID) {
		return nil, nil
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	state, err := loadState(ctx, tx, enrollmentID, false)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, tx.Commit(ctx)
	}
	if err != nil {
		return nil, err
	}
	return state, tx.Commit(ctx)
}

// UpdateState locks the enrollment row, applies fn and writes back every change it made
// together with the events it appended.
func (r *Repository) UpdateState(ctx context.Context, enrollmentID string, fn func(*domain.EnrollmentState) error) (*domain.EnrollmentState, error) {
	if !validID(enrollmentID) {
		return nil, domain.ErrEnrollmentNotFound
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	current, err := loadState(ctx, tx, enrollmentID, true)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrEnrollmentNotFound
	}
	if err != nil {
		return nil, err
	}

	working := current.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}

	if working.Enrollment != current.Enrollment {
		if err := updateEnrollment(ctx, tx, working.Enrollment); err != nil {
			return nil, err
		}
	}

	for i, entry := range working.Progress {
		if entry.ProgressRow == current.Progress[i].ProgressRow {
			continue
		}
		if err := updateProgress(ctx, tx, entry.ProgressRow); err != nil {
			return nil, err
		}
	}

	for _, event := range working.Events {
		if err := insertOutbox(ctx, tx, event); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return working, nil
}

func loadState(ctx context.Context, tx pgx.Tx, enrollmentID string, forUpdate bool) (*domain.EnrollmentState, error) {
	query := `SELECT ` + enrollmentColumns + `,
            c.challenge_id, c.title, c.community_tag, c.duration_days, c.cadence, c.visibility,
            c.require_dual_confirmation, c.status
        FROM enrollments e
        JOIN challenges c ON c.challenge_id = e.challenge_id
        WHERE e.enrollment_id = $1`
	if forUpdate {
		query += ` FOR UPDATE OF e`
	}

	var state domain.EnrollmentState
	e := &state.Enrollment
	c := &state.Challenge
	err := tx.QueryRow(ctx, query, enrollmentID).Scan(
		&e.ID, &e.UserID, &e.ChallengeID, &e.StartDate, &e.EndDate, &e.StreakCount,
		&e.ProgressPercent, &e.LastCheckInAt, &e.IsCompleted, &e.IsArchived, &e.CreatedAt, &e.UpdatedAt,
		&c.ID, &c.Title, &c.CommunityTag, &c.DurationDays, &c.Cadence, &c.Visibility,
		&c.RequireDualConfirmation, &c.Status,
	)
	if err != nil {
		return nil, err
	}
	normalizeEnrollment(e)

	const progressQuery = `SELECT p.progress_id, p.enrollment_id, p.task_id, p.completed_by_user, p.completed_at,
            p.confirmed_by_partner, p.confirmed_at, p.partner_user_id,
            t.challenge_id, t.position, t.cadence, t.day_number, t.week_number, t.title, t.instructions, t.is_milestone
        FROM enrollment_progress p
        JOIN challenge_tasks t ON t.task_id = p.task_id
        WHERE p.enrollment_id = $1
        ORDER BY t.position, t.task_id`

	rows, err := tx.Query(ctx, progressQuery, enrollmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	state.Progress = make([]domain.ProgressEntry, 0)
	for rows.Next() {
		var entry domain.ProgressEntry
		if err := rows.Scan(
			&entry.ID, &entry.EnrollmentID, &entry.TaskID, &entry.CompletedByUser, &entry.CompletedAt,
			&entry.ConfirmedByPartner, &entry.ConfirmedAt, &entry.PartnerUserID,
			&entry.Task.ChallengeID, &entry.Task.Position, &entry.Task.Cadence, &entry.Task.DayNumber,
			&entry.Task.WeekNumber, &entry.Task.Title, &entry.Task.Instructions, &entry.Task.IsMilestone,
		); err != nil {
			return nil, err
		}
		entry.Task.ID = entry.TaskID
		entry.CompletedAt = utcPtr(entry.CompletedAt)
		entry.ConfirmedAt = utcPtr(entry.ConfirmedAt)
		state.Progress = append(state.Progress, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &state, nil
}

func updateEnrollment(ctx context.Context, tx pgx.Tx, e domain.Enrollment) error {
	_, err := tx.Exec(ctx,
		`UPDATE enrollments
            SET end_date = $2, streak_count = $3, progress_percent = $4, last_check_in_at = $5,
                is_completed = $6, is_archived = $7, updated_at = $8
          WHERE enrollment_id = $1`,
		e.ID, e.EndDate, e.StreakCount, e.ProgressPercent, e.LastCheckInAt, e.IsCompleted, e.IsArchived, e.UpdatedAt,
	)
	return err
}

func updateProgress(ctx context.Context, tx pgx.Tx, row domain.ProgressRow) error {
	_, err := tx.Exec(ctx,
		`UPDATE enrollment_progress
            SET completed_by_user = $2, completed_at = $3, confirmed_by_partner = $4, confirmed_at = $5, partner_user_id = $6
          WHERE progress_id = $1`,
		row.ID, row.CompletedByUser, row.CompletedAt, row.ConfirmedByPartner, row.ConfirmedAt, row.PartnerUserID,
	)
	return err
}

// ListByUser pages through a user's enrollments with their progress totals.
func (r *Repository) ListByUser(ctx context.Context, userID string, opts domain.ListOptions) ([]domain.EnrollmentSummary, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM enrollments e WHERE e.user_id = $1 AND ($2::boolean IS NULL OR e.is_archived = $2)`,
		userID, opts.Archived,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := summaryQuery + `
        WHERE e.user_id = $1 AND ($2::boolean IS NULL OR e.is_archived = $2)
        GROUP BY e.enrollment_id, c.challenge_id
        ` + persistence.OrderClause(opts) + `
        LIMIT $3 OFFSET $4`

	rows, err := r.pool.Query(ctx, query, userID, opts.Archived, opts.PageSize, opts.Offset())
	if err != nil {
		return nil, 0, err
	}
	items, err := collectSummaries(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ActiveByChallenges maps challenge id to the user's live enrollment among challengeIDs.
func (r *Repository) ActiveByChallenges(ctx context.Context, userID string, challengeIDs []string) (map[string]domain.EnrollmentSummary, error) {
	out := make(map[string]domain.EnrollmentSummary, len(challengeIDs))
	if len(challengeIDs) == 0 {
		return out, nil
	}

	query := summaryQuery + `
        WHERE e.user_id = $1 AND e.challenge_id = ANY($2) AND NOT e.is_archived
        GROUP BY e.enrollment_id, c.challenge_id`

	rows, err := r.pool.Query(ctx, query, userID, challengeIDs)
	if err != nil {
		return nil, err
	}
	items, err := collectSummaries(rows)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		out[item.ChallengeID] = item
	}
	return out, nil
}

const summaryQuery = `SELECT ` + enrollmentColumns + `, c.title, c.duration_days,
            COUNT(p.progress_id), COUNT(p.progress_id) FILTER (WHERE p.completed_by_user)
        FROM enrollments e
        JOIN challenges c ON c.challenge_id = e.challenge_id
        LEFT JOIN enrollment_progress p ON p.enrollment_id = e.enrollment_id`

func collectSummaries(rows pgx.Rows) ([]domain.EnrollmentSummary, error) {
	defer rows.Close()

	items := make([]domain.EnrollmentSummary, 0)
	for rows.Next() {
		var s domain.EnrollmentSummary
		e := &s.Enrollment
		if err := rows.Scan(
			&e.ID, &e.UserID, &e.ChallengeID, &e.StartDate, &e.EndDate, &e.StreakCount,
			&e.ProgressPercent, &e.LastCheckInAt, &e.IsCompleted, &e.IsArchived, &e.CreatedAt, &e.UpdatedAt,
			&s.ChallengeTitle, &s.DurationDays, &s.TasksTotal, &s.TasksCompleted,
		); err != nil {
			return nil, err
		}
		normalizeEnrollment(e)
		items = append(items, s)
	}
	return items, rows.Err()
}

func scanEnrollment(row pgx.Row) (domain.Enrollment, error) {
	var e domain.Enrollment
	err := row.Scan(&e.ID, &e.UserID, &e.ChallengeID, &e.StartDate, &e.EndDate, &e.StreakCount,
		&e.ProgressPercent, &e.LastCheckInAt, &e.IsCompleted, &e.IsArchived, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return domain.Enrollment{}, err
	}
	normalizeEnrollment(&e)
	return e, nil
}

func normalizeEnrollment(e *domain.Enrollment) {
	e.StartDate = e.StartDate.UTC()
	e.CreatedAt = e.CreatedAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
	e.EndDate = utcPtr(e.EndDate)
	e.LastCheckInAt = utcPtr(e.LastCheckInAt)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// validID reports whether id can name an enrollment row.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func insertOutbox(ctx context.Context, tx pgx.Tx, event domain.Event) error {
	body, err := json.Marshal(event.Payload)
	if err != nil {
		return err
	}

	meta, ok := eventCatalog[event.Type]
	if !ok {
		return fmt.Errorf("unknown event type: %s", event.Type)
	}

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT (dedupe_key) DO NOTHING`

	_, err = tx.Exec(ctx, stmt,
		"enrollment",
		event.AggregateID,
		event.Type,
		meta.Topic,
		meta.SchemaSubject,
		event.AggregateID,
		body,
		dedupeKey(event, meta),
	)
	return err
}

// dedupeKey is nil for events that may repeat for the same enrollment.
func dedupeKey(event domain.Event, meta EventMetadata) any {
	if !meta.OncePerAggregate {
		return nil
	}
	return fmt.Sprintf("%s:%s", event.AggregateID, event.Type)
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic            string
	SchemaSubject    string
	OncePerAggregate bool
}

const enrollmentTopic = "challenge_enrollment_events"

var eventCatalog = map[string]EventMetadata{
	domain.EventEnrollmentCreated: {
		Topic:            enrollmentTopic,
		SchemaSubject:    enrollmentTopic + "-created-value",
		OncePerAggregate: true,
	},
	domain.EventProgressChanged: {
		Topic:         enrollmentTopic,
		SchemaSubject: enrollmentTopic + "-progress_changed-value",
	},
	domain.EventEnrollmentCompleted: {
		Topic:            enrollmentTopic,
		SchemaSubject:    enrollmentTopic + "-completed-value",
		OncePerAggregate: true,
	},
	domain.EventEnrollmentArchived: {
		Topic:            enrollmentTopic,
		SchemaSubject:    enrollmentTopic + "-archived-value",
		OncePerAggregate: true,
	},
}
