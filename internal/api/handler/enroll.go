package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/daneshyar/leadscore/internal/api/response"
	"github.com/daneshyar/leadscore/internal/enrollment"
	"github.com/daneshyar/leadscore/internal/store"
	"github.com/daneshyar/leadscore/pkg/models"
)

// Enroller is the interface the enrollment handler depends on.
type Enroller interface {
	Enroll(ctx context.Context, p enrollment.Params) (*models.Enrollment, bool, error)
}

// NewEnrollHandler returns an http.HandlerFunc for POST /api/v1/enrollments.
// Resubmitting the same identity for the same course returns the existing
// enrollment with 200 instead of 201.
func NewEnrollHandler(svc Enroller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			CourseID      string  `json:"course_id"`
			FullName      string  `json:"full_name"`
			Email         string  `json:"email"`
			Phone         string  `json:"phone"`
			CountryCode   string  `json:"country_code"`
			ChatUserID    string  `json:"chat_user_id"`
			PaymentAmount float64 `json:"payment_amount"`
			PaymentMethod string  `json:"payment_method"`
			PaymentStatus string  `json:"payment_status"`
			ReceiptURL    string  `json:"receipt_url"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		courseID, err := uuid.Parse(req.CourseID)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "course_id must be a valid UUID", nil)
			return
		}
		if req.FullName == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "full_name is required", nil)
			return
		}
		if req.Email == "" && req.Phone == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "email or phone is required", nil)
			return
		}

		enr, created, err := svc.Enroll(r.Context(), enrollment.Params{
			CourseID:      courseID,
			FullName:      req.FullName,
			Email:         req.Email,
			Phone:         req.Phone,
			CountryCode:   req.CountryCode,
			ChatUserID:    req.ChatUserID,
			PaymentAmount: req.PaymentAmount,
			PaymentMethod: req.PaymentMethod,
			PaymentStatus: req.PaymentStatus,
			ReceiptURL:    req.ReceiptURL,
		})
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Course not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to create enrollment", nil)
			return
		}

		if created {
			response.Created(w, "enrollment created", enr)
			return
		}
		response.JSON(w, "enrollment already exists", enr)
	}
}
