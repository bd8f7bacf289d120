package models

import (
	"time"

	"github.com/google/uuid"
)

// Lead temperature buckets. HOT is 75-100, WARM 50-74, COLD 0-49.
const (
	LeadStatusHot  = "HOT"
	LeadStatusWarm = "WARM"
	LeadStatusCold = "COLD"
)

// HoursInactiveSentinel marks a lead with no recorded lesson activity.
const HoursInactiveSentinel = 999

// LeadMetrics are the behavioral signals derived for one enrollment.
type LeadMetrics struct {
	TotalLessonsEnrolled   int     `json:"total_lessons_enrolled"`
	CompletedLessons       int     `json:"completed_lessons"`
	CompletionPercentage   float64 `json:"completion_percentage"`
	TotalTimeMinutes       int     `json:"total_time_minutes"`
	HoursSinceLastActivity int     `json:"hours_since_last_activity"`
	HasSupportConversation bool    `json:"has_support_conversation"`
	CRMInteractions        int     `json:"crm_interactions"`
}

// BehaviorSnapshot is the per-lead engagement picture computed fresh each
// batch. It is never persisted on its own; it lives inside ScoredLead.
type BehaviorSnapshot struct {
	EnrollmentID   uuid.UUID   `json:"enrollment_id"`
	UserID         uuid.UUID   `json:"user_id"`
	Name           string      `json:"name"`
	Email          string      `json:"email"`
	Phone          string      `json:"phone"`
	EnrollmentDate time.Time   `json:"enrollment_date"`
	CourseName     string      `json:"course_name"`
	Metrics        LeadMetrics `json:"metrics"`
}

// ScoredLead is a BehaviorSnapshot plus the model-assigned score.
type ScoredLead struct {
	BehaviorSnapshot
	Score     int    `json:"score"`
	Status    string `json:"status"`
	Reasoning string `json:"reasoning"`
}

// LeadScore is one entry of a provider's response for a batch. Index refers
// to the lead's position in the request batch; EnrollmentID is an optional
// secondary join key for providers that echo it back.
type LeadScore struct {
	Index        int
	EnrollmentID string
	Score        int
	Status       string
	Reason       string
}

// StatusForScore maps a 0-100 score to its temperature bucket.
func StatusForScore(score int) string {
	switch {
	case score >= 75:
		return LeadStatusHot
	case score >= 50:
		return LeadStatusWarm
	default:
		return LeadStatusCold
	}
}
