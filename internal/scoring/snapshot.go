package scoring

import (
	"sort"
	"time"

	"github.com/daneshyar/leadscore/pkg/models"
	"github.com/google/uuid"
)

// defaultReasoning is attached to leads the model omitted from its
// response; the dashboard shows it verbatim.
const defaultReasoning = "بدون تحلیل هوش مصنوعی"

// BuildSnapshots derives one BehaviorSnapshot per enrollment from the
// batch's lesson-progress, support, and CRM rows. Order matches the input
// enrollments. Returns empty slice for empty input (never nil).
func BuildSnapshots(enrollments []*models.Enrollment, progress []*models.LessonProgress,
	conversations []*models.SupportConversation, notes []*models.CRMNote, now time.Time) []models.BehaviorSnapshot {

	if len(enrollments) == 0 {
		return []models.BehaviorSnapshot{}
	}

	progressByUser := make(map[uuid.UUID][]*models.LessonProgress)
	for _, p := range progress {
		progressByUser[p.UserID] = append(progressByUser[p.UserID], p)
	}

	hasSupport := make(map[uuid.UUID]bool)
	for _, c := range conversations {
		hasSupport[c.UserID] = true
	}

	crmCount := make(map[uuid.UUID]int)
	for _, n := range notes {
		crmCount[n.UserID]++
	}

	snapshots := make([]models.BehaviorSnapshot, len(enrollments))
	for i, e := range enrollments {
		snapshots[i] = models.BehaviorSnapshot{
			EnrollmentID:   e.ID,
			UserID:         e.UserID,
			Name:           e.FullName,
			Email:          e.Email,
			Phone:          e.Phone,
			EnrollmentDate: e.CreatedAt,
			CourseName:     e.CourseName,
			Metrics:        deriveMetrics(progressByUser[e.UserID], hasSupport[e.UserID], crmCount[e.UserID], now),
		}
	}
	return snapshots
}

func deriveMetrics(rows []*models.LessonProgress, support bool, crm int, now time.Time) models.LeadMetrics {
	m := models.LeadMetrics{
		TotalLessonsEnrolled:   len(rows),
		HoursSinceLastActivity: models.HoursInactiveSentinel,
		HasSupportConversation: support,
		CRMInteractions:        crm,
	}

	var lastViewed time.Time
	for _, row := range rows {
		if row.Completed {
			m.CompletedLessons++
		}
		m.TotalTimeMinutes += row.TimeSpentMinutes
		if row.LastViewedAt != nil && row.LastViewedAt.After(lastViewed) {
			lastViewed = *row.LastViewedAt
		}
	}

	if m.TotalLessonsEnrolled > 0 {
		m.CompletionPercentage = float64(m.CompletedLessons) / float64(m.TotalLessonsEnrolled) * 100
	}
	if !lastViewed.IsZero() {
		hours := int(now.Sub(lastViewed).Hours())
		if hours < 0 {
			hours = 0
		}
		m.HoursSinceLastActivity = hours
	}
	return m
}

// MergeScores joins a provider's response back onto the batch's snapshots.
// Entries are matched by batch index first, then by enrollment id. Every
// snapshot appears exactly once in the output; leads the model omitted get
// score 0 / COLD / the default reasoning rather than failing the batch.
func MergeScores(snapshots []models.BehaviorSnapshot, scores []models.LeadScore) []models.ScoredLead {
	byIndex := make(map[int]models.LeadScore, len(scores))
	byEnrollment := make(map[string]models.LeadScore, len(scores))
	for _, s := range scores {
		if s.Index >= 0 && s.Index < len(snapshots) {
			if _, taken := byIndex[s.Index]; !taken {
				byIndex[s.Index] = s
			}
		}
		if s.EnrollmentID != "" {
			byEnrollment[s.EnrollmentID] = s
		}
	}

	leads := make([]models.ScoredLead, len(snapshots))
	for i, snap := range snapshots {
		score, ok := byIndex[i]
		if !ok {
			score, ok = byEnrollment[snap.EnrollmentID.String()]
		}
		if !ok {
			leads[i] = models.ScoredLead{
				BehaviorSnapshot: snap,
				Score:            0,
				Status:           models.LeadStatusCold,
				Reasoning:        defaultReasoning,
			}
			continue
		}
		leads[i] = models.ScoredLead{
			BehaviorSnapshot: snap,
			Score:            score.Score,
			Status:           score.Status,
			Reasoning:        score.Reason,
		}
	}
	return leads
}

// Summarize sorts leads by score descending and recomputes the bucket
// counts. Called after every batch so the persisted results always satisfy
// the sort and summary invariants.
func Summarize(leads []models.ScoredLead) models.JobResults {
	sort.SliceStable(leads, func(i, j int) bool {
		return leads[i].Score > leads[j].Score
	})

	results := models.JobResults{
		Leads:         leads,
		TotalAnalyzed: len(leads),
	}
	for _, lead := range leads {
		switch lead.Status {
		case models.LeadStatusHot:
			results.HotLeads++
		case models.LeadStatusWarm:
			results.WarmLeads++
		default:
			results.ColdLeads++
		}
	}
	return results
}
