package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/daneshyar/leadscore/internal/api/response"
	"github.com/daneshyar/leadscore/internal/cache"
	"github.com/daneshyar/leadscore/internal/scoring"
	"github.com/daneshyar/leadscore/internal/store"
	"github.com/daneshyar/leadscore/pkg/models"

	"github.com/go-chi/chi/v5"
)

// Dispatcher is the job control interface the score handler depends on.
type Dispatcher interface {
	Dispatch(ctx context.Context, jobID uuid.UUID, action string) (string, error)
}

// NewCreateJobHandler returns an http.HandlerFunc for POST /api/v1/jobs.
// It records a pending job; scoring starts on a subsequent score request.
func NewCreateJobHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			CourseID  string `json:"course_id"`
			StartDate string `json:"start_date"`
			EndDate   string `json:"end_date"`
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

		var startDate, endDate *time.Time
		if req.StartDate != "" {
			t, err := time.Parse(time.RFC3339, req.StartDate)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"start_date must be a valid RFC3339 timestamp", nil)
				return
			}
			startDate = &t
		}
		if req.EndDate != "" {
			t, err := time.Parse(time.RFC3339, req.EndDate)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"end_date must be a valid RFC3339 timestamp", nil)
				return
			}
			endDate = &t
		}

		if _, err := s.GetCourse(r.Context(), courseID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Course not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		now := time.Now().UTC()
		job := &models.LeadJob{
			ID:        uuid.New(),
			CourseID:  courseID,
			StartDate: startDate,
			EndDate:   endDate,
			Status:    models.JobStatusPending,
			Results:   models.JobResults{Leads: []models.ScoredLead{}},
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.CreateLeadJob(r.Context(), job); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to create job", nil)
			return
		}

		response.Created(w, "job created", job)
	}
}

// NewScoreJobHandler returns an http.HandlerFunc for POST /api/v1/jobs/score.
// The body carries the job ID and an optional action (cancel, pause, resume,
// retry); an absent action starts a fresh run.
func NewScoreJobHandler(d Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			JobID  string `json:"job_id"`
			Action string `json:"action"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		jobID, err := uuid.Parse(req.JobID)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "job_id must be a valid UUID", nil)
			return
		}

		switch req.Action {
		case "", models.JobActionCancel, models.JobActionPause,
			models.JobActionResume, models.JobActionRetry:
		default:
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"action must be one of cancel, pause, resume, retry", nil)
			return
		}

		message, err := d.Dispatch(r.Context(), jobID, req.Action)
		if err != nil {
			switch {
			case errors.Is(err, store.ErrNotFound):
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
			case errors.Is(err, scoring.ErrJobTerminal):
				response.Error(w, http.StatusConflict, "JOB_TERMINAL",
					"Job already finished; use retry to run it again", nil)
			case errors.Is(err, store.ErrInvalidTransition):
				response.Error(w, http.StatusConflict, "INVALID_TRANSITION",
					"Job is not in a state that allows this action", nil)
			default:
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
					"An unexpected error occurred", nil)
			}
			return
		}

		response.Accepted(w, message, map[string]string{"job_id": jobID.String()})
	}
}

// NewPollJobHandler returns an http.HandlerFunc for GET /api/v1/jobs/{jobID}.
// The cached status is preferred when it is fresher than the stored row,
// which narrows the window where a just-dispatched action is not yet visible.
func NewPollJobHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "jobID must be a valid UUID", nil)
			return
		}

		job, err := s.GetLeadJob(r.Context(), jobID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		if cached, ok, _ := c.GetJobStatus(r.Context(), jobID); ok && cached != job.Status {
			job.Status = cached
		}

		response.JSON(w, "", job)
	}
}
