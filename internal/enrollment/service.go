// Package enrollment implements idempotent enrollment creation: resolving
// or creating the user, reusing an existing enrollment for the same course,
// and firing best-effort notifications after a create.
package enrollment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/daneshyar/leadscore/internal/notify"
	"github.com/daneshyar/leadscore/internal/store"
	"github.com/daneshyar/leadscore/pkg/models"
	"github.com/google/uuid"
)

// Params are the caller-supplied enrollment fields. Email or phone must be
// present; the handler validates that before calling Enroll.
type Params struct {
	CourseID      uuid.UUID
	FullName      string
	Email         string
	Phone         string
	CountryCode   string
	ChatUserID    string
	PaymentAmount float64
	PaymentMethod string
	PaymentStatus string
	ReceiptURL    string
}

// Service resolves users and enrollments idempotently.
type Service struct {
	store    store.Store
	notifier notify.Notifier
}

// NewService creates a Service.
func NewService(st store.Store, notifier notify.Notifier) *Service {
	return &Service{store: st, notifier: notifier}
}

// Enroll resolves the user and returns the course enrollment, creating
// either as needed. Resubmitting the same identity for the same course is
// a no-op that returns the existing enrollment; created reports whether a
// new row was written. Notification failures never fail the call.
func (s *Service) Enroll(ctx context.Context, p Params) (enrollment *models.Enrollment, created bool, err error) {
	course, err := s.store.GetCourse(ctx, p.CourseID)
	if err != nil {
		return nil, false, fmt.Errorf("resolve course: %w", err)
	}

	user, err := s.resolveUser(ctx, p)
	if err != nil {
		return nil, false, err
	}

	existing, err := s.findEnrollment(ctx, p)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	now := time.Now().UTC()
	enrollment = &models.Enrollment{
		ID:            uuid.New(),
		UserID:        user.ID,
		CourseID:      course.ID,
		CourseName:    course.Title,
		FullName:      p.FullName,
		Email:         p.Email,
		Phone:         p.Phone,
		CountryCode:   p.CountryCode,
		ChatUserID:    p.ChatUserID,
		PaymentAmount: p.PaymentAmount,
		PaymentMethod: p.PaymentMethod,
		PaymentStatus: paymentStatus(p),
		ReceiptURL:    p.ReceiptURL,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.CreateEnrollment(ctx, enrollment); err != nil {
		return nil, false, fmt.Errorf("create enrollment: %w", err)
	}

	go s.notifyCreated(enrollment)

	return enrollment, true, nil
}

// resolveUser finds the user by email, then phone, then creates one. A
// duplicate-key error on create means another request won the race; the
// refetch is guaranteed to find the colliding row because the unique
// constraints are exactly email and phone.
func (s *Service) resolveUser(ctx context.Context, p Params) (*models.User, error) {
	if user, err := s.lookupUser(ctx, p.Email, p.Phone); err != nil {
		return nil, err
	} else if user != nil {
		return user, nil
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:          uuid.New(),
		FullName:    p.FullName,
		Email:       p.Email,
		Phone:       p.Phone,
		CountryCode: p.CountryCode,
		ChatUserID:  p.ChatUserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := s.store.CreateUser(ctx, user)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, store.ErrDuplicateKey) {
		return nil, fmt.Errorf("create user: %w", err)
	}

	existing, err := s.lookupUser(ctx, p.Email, p.Phone)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("create user: %w", store.ErrDuplicateKey)
	}
	return existing, nil
}

// lookupUser returns the user matching email then phone, or nil when
// neither identity is known.
func (s *Service) lookupUser(ctx context.Context, email, phone string) (*models.User, error) {
	if email != "" {
		user, err := s.store.GetUserByEmail(ctx, email)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("get user by email: %w", err)
		}
	}
	if phone != "" {
		user, err := s.store.GetUserByPhone(ctx, phone)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("get user by phone: %w", err)
		}
	}
	return nil, nil
}

func (s *Service) findEnrollment(ctx context.Context, p Params) (*models.Enrollment, error) {
	if p.Email != "" {
		e, err := s.store.GetEnrollmentByCourseAndEmail(ctx, p.CourseID, p.Email)
		if err == nil {
			return e, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("get enrollment by email: %w", err)
		}
	}
	if p.Phone != "" {
		e, err := s.store.GetEnrollmentByCourseAndPhone(ctx, p.CourseID, p.Phone)
		if err == nil {
			return e, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("get enrollment by phone: %w", err)
		}
	}
	return nil, nil
}

// paymentStatus picks the initial status: free enrollments complete
// immediately, otherwise the caller's status (defaulting to pending).
func paymentStatus(p Params) string {
	if p.PaymentAmount == 0 {
		return models.PaymentStatusCompleted
	}
	if p.PaymentStatus != "" {
		return p.PaymentStatus
	}
	return models.PaymentStatusPending
}

// notifyCreated fires the confirmation email and outbound webhook.
// Best-effort: failures are logged and swallowed.
func (s *Service) notifyCreated(enrollment *models.Enrollment) {
	ctx := context.Background()

	if err := s.notifier.SendEnrollmentConfirmation(ctx, enrollment); err != nil {
		slog.Warn("enrollment confirmation failed",
			"enrollment_id", enrollment.ID, "error", err)
	}
	if err := s.notifier.SendEnrollmentWebhook(ctx, enrollment); err != nil {
		slog.Warn("enrollment webhook failed",
			"enrollment_id", enrollment.ID, "error", err)
	}
}
