package store

import (
	"context"
	"errors"
	"time"

	"github.com/daneshyar/leadscore/pkg/models"
	"github.com/google/uuid"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")
var ErrInvalidTransition = errors.New("invalid job status transition")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID) error

	CreateLeadJob(ctx context.Context, job *models.LeadJob) error
	GetLeadJob(ctx context.Context, id uuid.UUID) (*models.LeadJob, error)
	GetLeadJobStatus(ctx context.Context, id uuid.UUID) (string, error)
	UpdateLeadJobStatus(ctx context.Context, id uuid.UUID, status string, opts ...JobUpdateOption) error
	UpdateLeadJobProgress(ctx context.Context, id uuid.UUID, current, total int, results models.JobResults) error
	FailStalledLeadJobs(ctx context.Context, stalledBefore time.Time, message string) (int, error)

	CountEnrollments(ctx context.Context, filter EnrollmentFilter) (int, error)
	ListEnrollments(ctx context.Context, filter EnrollmentFilter, limit, offset int) ([]*models.Enrollment, error)
	ListLessonProgress(ctx context.Context, courseID uuid.UUID, userIDs []uuid.UUID) ([]*models.LessonProgress, error)
	ListSupportConversations(ctx context.Context, userIDs []uuid.UUID) ([]*models.SupportConversation, error)
	ListCRMNotes(ctx context.Context, courseID uuid.UUID, userIDs []uuid.UUID) ([]*models.CRMNote, error)

	GetCourse(ctx context.Context, id uuid.UUID) (*models.Course, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByPhone(ctx context.Context, phone string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	GetEnrollmentByCourseAndEmail(ctx context.Context, courseID uuid.UUID, email string) (*models.Enrollment, error)
	GetEnrollmentByCourseAndPhone(ctx context.Context, courseID uuid.UUID, phone string) (*models.Enrollment, error)
	CreateEnrollment(ctx context.Context, enrollment *models.Enrollment) error
}

// EnrollmentFilter selects the paid enrollments of one course, optionally
// restricted to an inclusive creation-date range. Payment status is always
// restricted to completed/success; unpaid enrollments are never scored.
type EnrollmentFilter struct {
	CourseID  uuid.UUID
	StartDate *time.Time
	EndDate   *time.Time
}

type jobUpdateParams struct {
	ErrorMessage *string
	ClearError   bool
}

type JobUpdateOption func(*jobUpdateParams)

func WithErrorMessage(msg string) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.ErrorMessage = &msg
	}
}

func WithClearedError() JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.ClearError = true
	}
}
