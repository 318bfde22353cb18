package outbox

import "example.com/challenges/internal/domain"

// SchemaCatalogEntry maps event type to schema definition.
type SchemaCatalogEntry struct {
	Schema string
}

var schemaCatalog = map[string]SchemaCatalogEntry{
	domain.EventEnrollmentCreated:   {Schema: enrollmentCreatedSchema},
	domain.EventProgressChanged:     {Schema: progressChangedSchema},
	domain.EventEnrollmentCompleted: {Schema: enrollmentCompletedSchema},
	domain.EventEnrollmentArchived:  {Schema: enrollmentArchivedSchema},
}

const enrollmentCreatedSchema = `{
  "type": "object",
  "title": "EnrollmentCreated",
  "properties": {
    "enrollment_id": {"type": "string"},
    "user_id": {"type": "string"},
    "challenge_id": {"type": "string"},
    "start_date": {"type": "string", "format": "date-time"},
    "task_count": {"type": "integer", "minimum": 0}
  },
  "required": ["enrollment_id", "user_id", "challenge_id", "start_date", "task_count"],
  "additionalProperties": false
}`

const progressChangedSchema = `{
  "type": "object",
  "title": "EnrollmentProgressChanged",
  "properties": {
    "enrollment_id": {"type": "string"},
    "user_id": {"type": "string"},
    "challenge_id": {"type": "string"},
    "task_id": {"type": "string"},
    "completed_by_user": {"type": "boolean"},
    "confirmed_by_partner": {"type": "boolean"},
    "progress_percent": {"type": "integer", "minimum": 0, "maximum": 100},
    "streak_count": {"type": "integer", "minimum": 0},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["enrollment_id", "user_id", "challenge_id", "task_id", "completed_by_user", "confirmed_by_partner", "progress_percent", "streak_count", "occurred_at"],
  "additionalProperties": false
}`

const enrollmentCompletedSchema = `{
  "type": "object",
  "title": "EnrollmentCompleted",
  "properties": {
    "enrollment_id": {"type": "string"},
    "user_id": {"type": "string"},
    "challenge_id": {"type": "string"},
    "manual": {"type": "boolean"},
    "completed_at": {"type": "string", "format": "date-time"}
  },
  "required": ["enrollment_id", "user_id", "challenge_id", "manual", "completed_at"],
  "additionalProperties": false
}`

const enrollmentArchivedSchema = `{
  "type": "object",
  "title": "EnrollmentArchived",
  "properties": {
    "enrollment_id": {"type": "string"},
    "user_id": {"type": "string"},
    "challenge_id": {"type": "string"},
    "archived_at": {"type": "string", "format": "date-time"}
  },
  "required": ["enrollment_id", "user_id", "challenge_id", "archived_at"],
  "additionalProperties": false
}`
