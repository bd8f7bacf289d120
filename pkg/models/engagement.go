package models

import (
	"time"

	"github.com/google/uuid"
)

// LessonProgress is one user's progress on one lesson of a course, written
// by the learning frontend as lessons are viewed.
type LessonProgress struct {
	ID               uuid.UUID  `db:"id"                 json:"id"`
	UserID           uuid.UUID  `db:"user_id"            json:"user_id"`
	CourseID         uuid.UUID  `db:"course_id"          json:"course_id"`
	LessonID         uuid.UUID  `db:"lesson_id"          json:"lesson_id"`
	Completed        bool       `db:"completed"          json:"completed"`
	TimeSpentMinutes int        `db:"time_spent_minutes" json:"time_spent_minutes"`
	LastViewedAt     *time.Time `db:"last_viewed_at"     json:"last_viewed_at,omitempty"`
}

// SupportConversation records that a user opened a support thread. For lead
// scoring only its existence matters.
type SupportConversation struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	UserID    uuid.UUID `db:"user_id"    json:"user_id"`
	Subject   string    `db:"subject"    json:"subject"`
	Status    string    `db:"status"     json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// CRMNote is a sales-team note attached to a user within a course.
type CRMNote struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	UserID    uuid.UUID `db:"user_id"    json:"user_id"`
	CourseID  uuid.UUID `db:"course_id"  json:"course_id"`
	Note      string    `db:"note"       json:"note"`
	Author    string    `db:"author"     json:"author"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
