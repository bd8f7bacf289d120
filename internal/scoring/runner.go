// Package scoring drives lead-scoring analysis jobs: batched enrollment
// reads, behavior-snapshot derivation, one model call per batch, and
// progress persisted to the job record after every batch so a run can be
// paused, resumed, or cancelled without losing finished work.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/daneshyar/leadscore/internal/cache"
	"github.com/daneshyar/leadscore/internal/metrics"
	"github.com/daneshyar/leadscore/internal/scoring/chat"
	"github.com/daneshyar/leadscore/internal/store"
	"github.com/daneshyar/leadscore/pkg/models"
	"github.com/google/uuid"
)

const jobStatusTTL = 30 * time.Minute

// User-facing failure messages shown on the Persian dashboard.
const (
	msgServiceUnavailable = "سرویس هوش مصنوعی موقتا در دسترس نیست. چند دقیقه بعد دوباره تلاش کنید."
	msgRateLimited        = "محدودیت تعداد درخواست‌ها. کمی بعد دوباره تلاش کنید."
	msgQuotaExhausted     = "اعتبار سرویس هوش مصنوعی به پایان رسیده است."
	msgGenericFailure     = "خطا در تحلیل هوش مصنوعی"
)

// Runner drives lead-scoring jobs. One Runner serves the whole process;
// each dispatched run gets its own goroutine. Coordination between a run
// and concurrent pause/cancel calls happens only through the job record's
// status column, re-read at the top of every batch.
type Runner struct {
	store     store.Store
	cache     cache.Cache
	provider  models.ScoreProvider
	metrics   *metrics.Recorder
	batchSize int
	timeout   time.Duration
}

// NewRunner creates a Runner.
func NewRunner(st store.Store, ca cache.Cache, provider models.ScoreProvider,
	rec *metrics.Recorder, batchSize int, inferenceTimeout time.Duration) *Runner {
	return &Runner{
		store:     st,
		cache:     ca,
		provider:  provider,
		metrics:   rec,
		batchSize: batchSize,
		timeout:   inferenceTimeout,
	}
}

// Dispatch handles one invocation against a job. cancel and pause are
// synchronous, idempotent status writes. resume, retry, and the empty
// action validate the job, mark it running, and start processing in a
// background goroutine, returning immediately. The returned message is
// suitable for the API response.
func (r *Runner) Dispatch(ctx context.Context, jobID uuid.UUID, action string) (string, error) {
	switch action {
	case models.JobActionCancel:
		return r.stop(ctx, jobID, models.JobStatusCancelled, "analysis cancelled")
	case models.JobActionPause:
		return r.stop(ctx, jobID, models.JobStatusPaused, "analysis paused")
	case models.JobActionResume, models.JobActionRetry, "":
		return r.start(ctx, jobID, action)
	default:
		return "", fmt.Errorf("unknown action %q", action)
	}
}

func (r *Runner) stop(ctx context.Context, jobID uuid.UUID, status, message string) (string, error) {
	current, err := r.store.GetLeadJobStatus(ctx, jobID)
	if err != nil {
		return "", err
	}
	if current == status {
		return message, nil
	}
	if models.IsTerminalStatus(current) {
		return "", ErrJobTerminal
	}

	if err := r.store.UpdateLeadJobStatus(ctx, jobID, status); err != nil {
		return "", err
	}
	_ = r.cache.SetJobStatus(ctx, jobID, status, jobStatusTTL)
	return message, nil
}

func (r *Runner) start(ctx context.Context, jobID uuid.UUID, action string) (string, error) {
	job, err := r.store.GetLeadJob(ctx, jobID)
	if err != nil {
		return "", err
	}

	if job.IsTerminal() && action != models.JobActionRetry {
		return "", ErrJobTerminal
	}

	offset := 0
	results := models.JobResults{Leads: []models.ScoredLead{}}
	if action == models.JobActionResume && job.ProgressCurrent > 0 && len(job.Results.Leads) > 0 {
		offset = job.ProgressCurrent
		results = job.Results
	}

	if err := r.store.UpdateLeadJobStatus(ctx, jobID, models.JobStatusRunning, store.WithClearedError()); err != nil {
		return "", err
	}
	if offset == 0 {
		// Fresh start discards any partial results from a prior run.
		if err := r.store.UpdateLeadJobProgress(ctx, jobID, 0, 0, results); err != nil {
			return "", err
		}
	}
	_ = r.cache.SetJobStatus(ctx, jobID, models.JobStatusRunning, jobStatusTTL)

	filter := store.EnrollmentFilter{
		CourseID:  job.CourseID,
		StartDate: job.StartDate,
		EndDate:   job.EndDate,
	}
	go r.process(jobID, filter, offset, results)

	if offset > 0 {
		return fmt.Sprintf("analysis resumed from lead %d", offset), nil
	}
	return "analysis started", nil
}

// process runs the batch loop until the enrollments are exhausted, the job
// is stopped concurrently, or a batch fails. It recovers from panics and
// always leaves the job in a coherent state.
func (r *Runner) process(jobID uuid.UUID, filter store.EnrollmentFilter, offset int, results models.JobResults) {
	ctx := context.Background()
	r.metrics.RunStarted()
	defer r.metrics.RunStopped()

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("panic in lead scoring run", "error", rec, "job_id", jobID)
			r.fail(ctx, jobID, msgGenericFailure)
		}
	}()

	total := -1
	for {
		// Cooperative-cancellation checkpoint: a concurrent pause or
		// cancel wins before the next batch starts.
		status, err := r.store.GetLeadJobStatus(ctx, jobID)
		if err != nil {
			slog.Error("read job status", "job_id", jobID, "error", err)
			return
		}
		if status == models.JobStatusCancelled || status == models.JobStatusPaused {
			slog.Info("lead scoring run stopped", "job_id", jobID, "status", status)
			r.metrics.JobFinished(status)
			return
		}

		if total < 0 {
			total, err = r.store.CountEnrollments(ctx, filter)
			if err != nil {
				slog.Error("count enrollments", "job_id", jobID, "error", err)
				r.fail(ctx, jobID, msgGenericFailure)
				return
			}
			if err := r.store.UpdateLeadJobProgress(ctx, jobID, offset, total, results); err != nil {
				slog.Error("persist job total", "job_id", jobID, "error", err)
				r.fail(ctx, jobID, msgGenericFailure)
				return
			}
		}

		batch, err := r.store.ListEnrollments(ctx, filter, r.batchSize, offset)
		if err != nil {
			slog.Error("list enrollments", "job_id", jobID, "offset", offset, "error", err)
			r.fail(ctx, jobID, msgGenericFailure)
			return
		}
		if len(batch) == 0 {
			break
		}

		leads, err := r.scoreBatch(ctx, filter.CourseID, batch)
		if err != nil {
			r.metrics.ProviderError(chat.ErrorClass(err))
			slog.Error("score batch", "job_id", jobID, "offset", offset, "error", err)
			r.fail(ctx, jobID, failureMessage(err))
			return
		}

		results = Summarize(append(results.Leads, leads...))
		offset += len(batch)
		if offset > total {
			// Rows created mid-run can push the cursor past the initial
			// count; keep progress_current <= progress_total.
			total = offset
		}
		if err := r.store.UpdateLeadJobProgress(ctx, jobID, offset, total, results); err != nil {
			slog.Error("persist batch results", "job_id", jobID, "offset", offset, "error", err)
			r.fail(ctx, jobID, msgGenericFailure)
			return
		}
		r.metrics.BatchProcessed(len(batch))
		slog.Info("scoring batch persisted", "job_id", jobID, "progress", offset, "total", total)
	}

	if err := r.store.UpdateLeadJobStatus(ctx, jobID, models.JobStatusCompleted); err != nil {
		slog.Error("mark job completed", "job_id", jobID, "error", err)
		return
	}
	_ = r.cache.SetJobStatus(ctx, jobID, models.JobStatusCompleted, jobStatusTTL)
	r.metrics.JobFinished(models.JobStatusCompleted)
	slog.Info("lead scoring run completed", "job_id", jobID, "leads", results.TotalAnalyzed)
}

// scoreBatch fetches the batch's behavioral rows, derives snapshots, and
// scores them with one provider call.
func (r *Runner) scoreBatch(ctx context.Context, courseID uuid.UUID, batch []*models.Enrollment) ([]models.ScoredLead, error) {
	userIDs := make([]uuid.UUID, len(batch))
	for i, e := range batch {
		userIDs[i] = e.UserID
	}

	progressRows, err := r.store.ListLessonProgress(ctx, courseID, userIDs)
	if err != nil {
		return nil, fmt.Errorf("list lesson progress: %w", err)
	}
	conversations, err := r.store.ListSupportConversations(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("list support conversations: %w", err)
	}
	notes, err := r.store.ListCRMNotes(ctx, courseID, userIDs)
	if err != nil {
		return nil, fmt.Errorf("list crm notes: %w", err)
	}

	snapshots := BuildSnapshots(batch, progressRows, conversations, notes, time.Now().UTC())

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	scores, err := r.provider.ScoreBatch(callCtx, snapshots)
	if err != nil {
		return nil, err
	}
	return MergeScores(snapshots, scores), nil
}

func (r *Runner) fail(ctx context.Context, jobID uuid.UUID, message string) {
	if err := r.store.UpdateLeadJobStatus(ctx, jobID, models.JobStatusFailed,
		store.WithErrorMessage(message)); err != nil {
		slog.Error("mark job failed", "job_id", jobID, "error", err)
		return
	}
	_ = r.cache.SetJobStatus(ctx, jobID, models.JobStatusFailed, jobStatusTTL)
	r.metrics.JobFinished(models.JobStatusFailed)
}

// failureMessage maps a provider error to the Persian message stored on
// the job record.
func failureMessage(err error) string {
	switch {
	case errors.Is(err, chat.ErrServiceUnavailable):
		return msgServiceUnavailable
	case errors.Is(err, chat.ErrRateLimited):
		return msgRateLimited
	case errors.Is(err, chat.ErrQuotaExhausted):
		return msgQuotaExhausted
	default:
		return msgGenericFailure
	}
}
