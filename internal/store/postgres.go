package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/daneshyar/leadscore/pkg/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- API Keys ---

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, name, key_hash, key_prefix, scopes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		key.ID, key.Name, key.KeyHash, key.KeyPrefix, key.Scopes, key.CreatedAt, key.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAPIKeys(ctx context.Context) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE deleted_at IS NULL ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET deleted_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Lead Jobs ---

const leadJobColumns = `id, course_id, start_date, end_date, status,
	progress_current, progress_total, results, error_message,
	created_at, updated_at, completed_at`

func scanLeadJob(row pgx.Row) (*models.LeadJob, error) {
	var j models.LeadJob
	err := row.Scan(&j.ID, &j.CourseID, &j.StartDate, &j.EndDate, &j.Status,
		&j.ProgressCurrent, &j.ProgressTotal, &j.Results, &j.ErrorMessage,
		&j.CreatedAt, &j.UpdatedAt, &j.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan lead job: %w", err)
	}
	return &j, nil
}

func (s *PostgresStore) CreateLeadJob(ctx context.Context, job *models.LeadJob) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO lead_jobs (id, course_id, start_date, end_date, status,
		   progress_current, progress_total, results, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		job.ID, job.CourseID, job.StartDate, job.EndDate, job.Status,
		job.ProgressCurrent, job.ProgressTotal, job.Results, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create lead job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetLeadJob(ctx context.Context, id uuid.UUID) (*models.LeadJob, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+leadJobColumns+` FROM lead_jobs WHERE id = $1`, id)
	return scanLeadJob(row)
}

func (s *PostgresStore) GetLeadJobStatus(ctx context.Context, id uuid.UUID) (string, error) {
	var status string
	err := s.pool.QueryRow(ctx, `SELECT status FROM lead_jobs WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get lead job status: %w", err)
	}
	return status, nil
}

// validTransitions lists the allowed status changes. Writing the current
// status again is always allowed (idempotent pause/cancel). Terminal states
// move only to running, which is the retry path; whether a retry is
// permitted is the runner's decision, not the store's.
var validTransitions = map[string][]string{
	models.JobStatusPending:   {models.JobStatusRunning, models.JobStatusPaused, models.JobStatusCancelled},
	models.JobStatusRunning:   {models.JobStatusPaused, models.JobStatusCancelled, models.JobStatusCompleted, models.JobStatusFailed},
	models.JobStatusPaused:    {models.JobStatusRunning, models.JobStatusCancelled},
	models.JobStatusCancelled: {models.JobStatusRunning},
	models.JobStatusCompleted: {models.JobStatusRunning},
	models.JobStatusFailed:    {models.JobStatusRunning},
}

func (s *PostgresStore) UpdateLeadJobStatus(ctx context.Context, id uuid.UUID, status string, opts ...JobUpdateOption) error {
	params := &jobUpdateParams{}
	for _, opt := range opts {
		opt(params)
	}

	var currentStatus string
	err := s.pool.QueryRow(ctx, `SELECT status FROM lead_jobs WHERE id = $1`, id).Scan(&currentStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get lead job status: %w", err)
	}

	if status != currentStatus {
		valid := false
		for _, a := range validTransitions[currentStatus] {
			if a == status {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, currentStatus, status)
		}
	}

	now := time.Now().UTC()
	query := `UPDATE lead_jobs SET status = $2, updated_at = $3`
	args := []any{id, status, now}
	argIdx := 4

	if status == models.JobStatusCompleted {
		query += fmt.Sprintf(", completed_at = $%d", argIdx)
		args = append(args, now)
		argIdx++
	}
	if params.ErrorMessage != nil {
		query += fmt.Sprintf(", error_message = $%d", argIdx)
		args = append(args, *params.ErrorMessage)
		argIdx++
	} else if params.ClearError {
		query += ", error_message = NULL"
	}

	query += " WHERE id = $1"

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("update lead job status: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateLeadJobProgress(ctx context.Context, id uuid.UUID, current, total int, results models.JobResults) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE lead_jobs SET progress_current = $2, progress_total = $3, results = $4, updated_at = NOW()
		 WHERE id = $1`,
		id, current, total, results)
	if err != nil {
		return fmt.Errorf("update lead job progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FailStalledLeadJobs(ctx context.Context, stalledBefore time.Time, message string) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE lead_jobs SET status = $1, error_message = $2, updated_at = NOW()
		 WHERE status = $3 AND updated_at < $4`,
		models.JobStatusFailed, message, models.JobStatusRunning, stalledBefore)
	if err != nil {
		return 0, fmt.Errorf("fail stalled lead jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// --- Enrollments (scoring read side) ---

// paidStatuses restricts scoring to enrollments the platform considers paid.
var paidStatuses = []string{models.PaymentStatusCompleted, models.PaymentStatusSuccess}

func enrollmentWhere(filter EnrollmentFilter) (string, []any) {
	conditions := []string{"e.course_id = $1", "e.payment_status = ANY($2)"}
	args := []any{filter.CourseID, paidStatuses}
	argIdx := 3

	if filter.StartDate != nil {
		conditions = append(conditions, fmt.Sprintf("e.created_at >= $%d", argIdx))
		args = append(args, *filter.StartDate)
		argIdx++
	}
	if filter.EndDate != nil {
		conditions = append(conditions, fmt.Sprintf("e.created_at <= $%d", argIdx))
		args = append(args, *filter.EndDate)
		argIdx++
	}

	return strings.Join(conditions, " AND "), args
}

func (s *PostgresStore) CountEnrollments(ctx context.Context, filter EnrollmentFilter) (int, error) {
	where, args := enrollmentWhere(filter)

	var total int
	err := s.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM enrollments e WHERE "+where, args...).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("count enrollments: %w", err)
	}
	return total, nil
}

const enrollmentColumns = `e.id, e.user_id, e.course_id, c.title, e.full_name, e.email, e.phone,
	e.country_code, e.chat_user_id, e.payment_amount, e.payment_method, e.payment_status,
	e.receipt_url, e.created_at, e.updated_at`

func scanEnrollment(rows pgx.Rows) (*models.Enrollment, error) {
	var e models.Enrollment
	if err := rows.Scan(&e.ID, &e.UserID, &e.CourseID, &e.CourseName, &e.FullName, &e.Email, &e.Phone,
		&e.CountryCode, &e.ChatUserID, &e.PaymentAmount, &e.PaymentMethod, &e.PaymentStatus,
		&e.ReceiptURL, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, fmt.Errorf("scan enrollment: %w", err)
	}
	return &e, nil
}

func (s *PostgresStore) ListEnrollments(ctx context.Context, filter EnrollmentFilter, limit, offset int) ([]*models.Enrollment, error) {
	where, args := enrollmentWhere(filter)

	query := fmt.Sprintf(
		`SELECT %s FROM enrollments e JOIN courses c ON c.id = e.course_id
		 WHERE %s ORDER BY e.created_at DESC LIMIT $%d OFFSET $%d`,
		enrollmentColumns, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	defer rows.Close()

	var enrollments []*models.Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		enrollments = append(enrollments, e)
	}
	return enrollments, rows.Err()
}

func (s *PostgresStore) ListLessonProgress(ctx context.Context, courseID uuid.UUID, userIDs []uuid.UUID) ([]*models.LessonProgress, error) {
	if len(userIDs) == 0 {
		return []*models.LessonProgress{}, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, course_id, lesson_id, completed, time_spent_minutes, last_viewed_at
		 FROM lesson_progress WHERE course_id = $1 AND user_id = ANY($2)`, courseID, userIDs)
	if err != nil {
		return nil, fmt.Errorf("list lesson progress: %w", err)
	}
	defer rows.Close()

	var progress []*models.LessonProgress
	for rows.Next() {
		var p models.LessonProgress
		if err := rows.Scan(&p.ID, &p.UserID, &p.CourseID, &p.LessonID,
			&p.Completed, &p.TimeSpentMinutes, &p.LastViewedAt); err != nil {
			return nil, fmt.Errorf("scan lesson progress: %w", err)
		}
		progress = append(progress, &p)
	}
	return progress, rows.Err()
}

func (s *PostgresStore) ListSupportConversations(ctx context.Context, userIDs []uuid.UUID) ([]*models.SupportConversation, error) {
	if len(userIDs) == 0 {
		return []*models.SupportConversation{}, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, subject, status, created_at
		 FROM support_conversations WHERE user_id = ANY($1)`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("list support conversations: %w", err)
	}
	defer rows.Close()

	var conversations []*models.SupportConversation
	for rows.Next() {
		var c models.SupportConversation
		if err := rows.Scan(&c.ID, &c.UserID, &c.Subject, &c.Status, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan support conversation: %w", err)
		}
		conversations = append(conversations, &c)
	}
	return conversations, rows.Err()
}

func (s *PostgresStore) ListCRMNotes(ctx context.Context, courseID uuid.UUID, userIDs []uuid.UUID) ([]*models.CRMNote, error) {
	if len(userIDs) == 0 {
		return []*models.CRMNote{}, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, course_id, note, author, created_at
		 FROM crm_notes WHERE course_id = $1 AND user_id = ANY($2)`, courseID, userIDs)
	if err != nil {
		return nil, fmt.Errorf("list crm notes: %w", err)
	}
	defer rows.Close()

	var notes []*models.CRMNote
	for rows.Next() {
		var n models.CRMNote
		if err := rows.Scan(&n.ID, &n.UserID, &n.CourseID, &n.Note, &n.Author, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan crm note: %w", err)
		}
		notes = append(notes, &n)
	}
	return notes, rows.Err()
}

// --- Courses / Users / Enrollment writes ---

func (s *PostgresStore) GetCourse(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	var c models.Course
	err := s.pool.QueryRow(ctx,
		`SELECT id, title, created_at FROM courses WHERE id = $1`, id,
	).Scan(&c.ID, &c.Title, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get course: %w", err)
	}
	return &c, nil
}

const userColumns = `id, full_name, email, phone, country_code, chat_user_id, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.FullName, &u.Email, &u.Phone, &u.CountryCode,
		&u.ChatUserID, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

func (s *PostgresStore) GetUserByPhone(ctx context.Context, phone string) (*models.User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE phone = $1`, phone)
	return scanUser(row)
}

func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, full_name, email, phone, country_code, chat_user_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		user.ID, user.FullName, user.Email, user.Phone, user.CountryCode,
		user.ChatUserID, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *PostgresStore) getEnrollmentBy(ctx context.Context, condition string, courseID uuid.UUID, value string) (*models.Enrollment, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM enrollments e JOIN courses c ON c.id = e.course_id
		 WHERE e.course_id = $1 AND %s ORDER BY e.created_at ASC LIMIT 1`,
		enrollmentColumns, condition)

	rows, err := s.pool.Query(ctx, query, courseID, value)
	if err != nil {
		return nil, fmt.Errorf("get enrollment: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("get enrollment: %w", err)
		}
		return nil, ErrNotFound
	}
	return scanEnrollment(rows)
}

func (s *PostgresStore) GetEnrollmentByCourseAndEmail(ctx context.Context, courseID uuid.UUID, email string) (*models.Enrollment, error) {
	return s.getEnrollmentBy(ctx, "e.email = $2", courseID, email)
}

func (s *PostgresStore) GetEnrollmentByCourseAndPhone(ctx context.Context, courseID uuid.UUID, phone string) (*models.Enrollment, error) {
	return s.getEnrollmentBy(ctx, "e.phone = $2", courseID, phone)
}

func (s *PostgresStore) CreateEnrollment(ctx context.Context, enrollment *models.Enrollment) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO enrollments (id, user_id, course_id, full_name, email, phone, country_code,
		   chat_user_id, payment_amount, payment_method, payment_status, receipt_url, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		enrollment.ID, enrollment.UserID, enrollment.CourseID, enrollment.FullName,
		enrollment.Email, enrollment.Phone, enrollment.CountryCode, enrollment.ChatUserID,
		enrollment.PaymentAmount, enrollment.PaymentMethod, enrollment.PaymentStatus,
		enrollment.ReceiptURL, enrollment.CreatedAt, enrollment.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
