package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusPaused    = "paused"
	JobStatusCancelled = "cancelled"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// JobActions accepted by POST /api/v1/jobs/score. An absent action behaves
// like a fresh run.
const (
	JobActionCancel = "cancel"
	JobActionPause  = "pause"
	JobActionResume = "resume"
	JobActionRetry  = "retry"
)

// LeadJob tracks one lead-scoring analysis run over a course's enrollments.
// The runner is the only writer while the job is running; once the status is
// completed, cancelled, or failed the record is terminal and never mutated
// again without an explicit retry.
type LeadJob struct {
	ID              uuid.UUID  `db:"id"               json:"id"`
	CourseID        uuid.UUID  `db:"course_id"        json:"course_id"`
	StartDate       *time.Time `db:"start_date"       json:"start_date,omitempty"`
	EndDate         *time.Time `db:"end_date"         json:"end_date,omitempty"`
	Status          string     `db:"status"           json:"status"`
	ProgressCurrent int        `db:"progress_current" json:"progress_current"`
	ProgressTotal   int        `db:"progress_total"   json:"progress_total"`
	Results         JobResults `db:"results"          json:"results"`
	ErrorMessage    *string    `db:"error_message"    json:"error_message,omitempty"`
	CreatedAt       time.Time  `db:"created_at"       json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"       json:"updated_at"`
	CompletedAt     *time.Time `db:"completed_at"     json:"completed_at,omitempty"`
}

// IsTerminal reports whether the job has reached a final state.
func (j *LeadJob) IsTerminal() bool {
	return IsTerminalStatus(j.Status)
}

// IsTerminalStatus reports whether status is completed, cancelled, or failed.
func IsTerminalStatus(status string) bool {
	return status == JobStatusCompleted || status == JobStatusCancelled || status == JobStatusFailed
}

// JobResults is the accumulated output of a lead-scoring run, stored as a
// single JSONB document on the job record. Leads are kept sorted by score
// descending; the summary counts always match the leads slice.
type JobResults struct {
	Leads         []ScoredLead `json:"leads"`
	TotalAnalyzed int          `json:"total_analyzed"`
	HotLeads      int          `json:"hot_leads"`
	WarmLeads     int          `json:"warm_leads"`
	ColdLeads     int          `json:"cold_leads"`
}
