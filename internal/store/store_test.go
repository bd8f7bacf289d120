package store_test

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/daneshyar/leadscore/internal/store"
	"github.com/daneshyar/leadscore/pkg/models"
)

// migrationsDir returns the absolute path to the migrations directory.
func migrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// setupTestDB spins up a Postgres container, runs migrations, and returns a pool + cleanup.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("leadscore_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Run migrations
	err = store.RunMigrations(connStr, migrationsDir())
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return pool
}

// createCourse inserts a course and returns it.
func createCourse(t *testing.T, pool *pgxpool.Pool, title string) *models.Course {
	t.Helper()
	c := &models.Course{ID: uuid.New(), Title: title, CreatedAt: time.Now().UTC()}
	_, err := pool.Exec(context.Background(),
		`INSERT INTO courses (id, title, created_at) VALUES ($1, $2, $3)`,
		c.ID, c.Title, c.CreatedAt)
	require.NoError(t, err)
	return c
}

func newUser(email, phone string) *models.User {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.User{
		ID:        uuid.New(),
		FullName:  "Sara Ahmadi",
		Email:     email,
		Phone:     phone,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// createEnrollment inserts a user + enrollment pair into courseID and returns
// the enrollment.
func createEnrollment(t *testing.T, s store.Store, courseID uuid.UUID, email, phone, paymentStatus string, createdAt time.Time) *models.Enrollment {
	t.Helper()
	ctx := context.Background()

	user := newUser(email, phone)
	require.NoError(t, s.CreateUser(ctx, user))

	e := &models.Enrollment{
		ID:            uuid.New(),
		UserID:        user.ID,
		CourseID:      courseID,
		FullName:      user.FullName,
		Email:         email,
		Phone:         phone,
		PaymentAmount: 2500000,
		PaymentStatus: paymentStatus,
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}
	require.NoError(t, s.CreateEnrollment(ctx, e))
	return e
}

func newLeadJob(courseID uuid.UUID, status string) *models.LeadJob {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.LeadJob{
		ID:        uuid.New(),
		CourseID:  courseID,
		Status:    status,
		Results:   models.JobResults{Leads: []models.ScoredLead{}},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// --- API Key Tests ---

func TestAPIKey_CreateAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	key := &models.APIKey{
		ID:        uuid.New(),
		Name:      "dashboard",
		KeyHash:   "bcrypt-hash-here",
		KeyPrefix: "ls_abcd",
		Scopes:    []string{"read", "write"},
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.CreateAPIKey(ctx, key)
	require.NoError(t, err)

	keys, err := s.GetAPIKeyByPrefix(ctx, "ls_abcd")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, key.ID, keys[0].ID)
	assert.Equal(t, "dashboard", keys[0].Name)
	assert.Equal(t, []string{"read", "write"}, keys[0].Scopes)
	assert.Nil(t, keys[0].LastUsedAt)
}

func TestAPIKey_GetByPrefix_SharedPrefix(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	// Two distinct keys can collide on the 8-char prefix; both must come back
	// so the authenticator can bcrypt-compare each candidate.
	now := time.Now().UTC()
	for _, name := range []string{"first", "second"} {
		require.NoError(t, s.CreateAPIKey(ctx, &models.APIKey{
			ID: uuid.New(), Name: name, KeyHash: "hash-" + name,
			KeyPrefix: "ls_9999", Scopes: []string{"read"},
			CreatedAt: now, UpdatedAt: now,
		}))
	}

	keys, err := s.GetAPIKeyByPrefix(ctx, "ls_9999")
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}

func TestAPIKey_GetByPrefix_NoMatch(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	keys, err := s.GetAPIKeyByPrefix(context.Background(), "ls_none")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestAPIKey_List(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	now := time.Now().UTC()
	for i, name := range []string{"one", "two"} {
		require.NoError(t, s.CreateAPIKey(ctx, &models.APIKey{
			ID: uuid.New(), Name: name, KeyHash: "h", KeyPrefix: "ls_list" + name[:1],
			Scopes:    []string{"read"},
			CreatedAt: now.Add(time.Duration(i) * time.Second),
			UpdatedAt: now,
		}))
	}

	keys, err := s.ListAPIKeys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 2)
	// Newest first
	assert.Equal(t, "two", keys[0].Name)
	assert.Equal(t, "one", keys[1].Name)
}

func TestAPIKey_Revoke(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	now := time.Now().UTC()
	key := &models.APIKey{
		ID: uuid.New(), Name: "revoked", KeyHash: "h", KeyPrefix: "ls_gone",
		Scopes: []string{"read"}, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.CreateAPIKey(ctx, key))

	require.NoError(t, s.RevokeAPIKey(ctx, key.ID))

	// Revoked keys no longer resolve by prefix or appear in listings.
	keys, err := s.GetAPIKeyByPrefix(ctx, "ls_gone")
	require.NoError(t, err)
	assert.Empty(t, keys)

	all, err := s.ListAPIKeys(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	// Revoking again is a not-found.
	err = s.RevokeAPIKey(ctx, key.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAPIKey_UpdateLastUsed(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	now := time.Now().UTC()
	key := &models.APIKey{
		ID: uuid.New(), Name: "used", KeyHash: "h", KeyPrefix: "ls_used",
		Scopes: []string{"read"}, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.CreateAPIKey(ctx, key))

	require.NoError(t, s.UpdateAPIKeyLastUsed(ctx, key.ID))

	keys, err := s.GetAPIKeyByPrefix(ctx, "ls_used")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	require.NotNil(t, keys[0].LastUsedAt)
	assert.WithinDuration(t, time.Now().UTC(), *keys[0].LastUsedAt, 10*time.Second)
}

// --- Lead Job Tests ---

func TestLeadJob_CreateAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	course := createCourse(t, pool, "Go for Backend Engineers")
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)

	job := newLeadJob(course.ID, models.JobStatusPending)
	job.StartDate = &start
	job.EndDate = &end

	require.NoError(t, s.CreateLeadJob(ctx, job))

	got, err := s.GetLeadJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, course.ID, got.CourseID)
	assert.Equal(t, models.JobStatusPending, got.Status)
	require.NotNil(t, got.StartDate)
	assert.True(t, got.StartDate.Equal(start))
	require.NotNil(t, got.EndDate)
	assert.True(t, got.EndDate.Equal(end))
	assert.Equal(t, 0, got.ProgressCurrent)
	assert.Nil(t, got.ErrorMessage)
	assert.Nil(t, got.CompletedAt)
}

func TestLeadJob_Get_NotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	_, err := s.GetLeadJob(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestLeadJob_GetStatus(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	course := createCourse(t, pool, "status course")
	job := newLeadJob(course.ID, models.JobStatusPending)
	require.NoError(t, s.CreateLeadJob(ctx, job))

	status, err := s.GetLeadJobStatus(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, status)

	_, err = s.GetLeadJobStatus(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestLeadJob_UpdateStatus_ValidTransition(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	course := createCourse(t, pool, "transition course")
	job := newLeadJob(course.ID, models.JobStatusPending)
	require.NoError(t, s.CreateLeadJob(ctx, job))

	require.NoError(t, s.UpdateLeadJobStatus(ctx, job.ID, models.JobStatusRunning))
	require.NoError(t, s.UpdateLeadJobStatus(ctx, job.ID, models.JobStatusPaused))
	require.NoError(t, s.UpdateLeadJobStatus(ctx, job.ID, models.JobStatusRunning))
	require.NoError(t, s.UpdateLeadJobStatus(ctx, job.ID, models.JobStatusCompleted))

	got, err := s.GetLeadJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
	assert.WithinDuration(t, time.Now().UTC(), *got.CompletedAt, 10*time.Second)
}

func TestLeadJob_UpdateStatus_InvalidTransition(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	course := createCourse(t, pool, "bad transition course")
	job := newLeadJob(course.ID, models.JobStatusPending)
	require.NoError(t, s.CreateLeadJob(ctx, job))

	// pending cannot jump straight to completed
	err := s.UpdateLeadJobStatus(ctx, job.ID, models.JobStatusCompleted)
	assert.ErrorIs(t, err, store.ErrInvalidTransition)

	got, err := s.GetLeadJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, got.Status)
}

func TestLeadJob_UpdateStatus_SameStatusIdempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	course := createCourse(t, pool, "idempotent course")
	job := newLeadJob(course.ID, models.JobStatusPending)
	require.NoError(t, s.CreateLeadJob(ctx, job))

	require.NoError(t, s.UpdateLeadJobStatus(ctx, job.ID, models.JobStatusRunning))
	require.NoError(t, s.UpdateLeadJobStatus(ctx, job.ID, models.JobStatusCancelled))
	// Cancelling an already-cancelled job stays fine.
	require.NoError(t, s.UpdateLeadJobStatus(ctx, job.ID, models.JobStatusCancelled))
}

func TestLeadJob_UpdateStatus_RetryFromTerminal(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	course := createCourse(t, pool, "retry course")
	job := newLeadJob(course.ID, models.JobStatusPending)
	require.NoError(t, s.CreateLeadJob(ctx, job))

	require.NoError(t, s.UpdateLeadJobStatus(ctx, job.ID, models.JobStatusRunning))
	require.NoError(t, s.UpdateLeadJobStatus(ctx, job.ID, models.JobStatusFailed,
		store.WithErrorMessage("provider went away")))

	got, err := s.GetLeadJob(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, "provider went away", *got.ErrorMessage)

	// Retry clears the error on the way back to running.
	require.NoError(t, s.UpdateLeadJobStatus(ctx, job.ID, models.JobStatusRunning,
		store.WithClearedError()))

	got, err = s.GetLeadJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusRunning, got.Status)
	assert.Nil(t, got.ErrorMessage)
}

func TestLeadJob_UpdateStatus_NotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	err := s.UpdateLeadJobStatus(context.Background(), uuid.New(), models.JobStatusRunning)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestLeadJob_UpdateProgress(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	course := createCourse(t, pool, "progress course")
	job := newLeadJob(course.ID, models.JobStatusPending)
	require.NoError(t, s.CreateLeadJob(ctx, job))

	results := models.JobResults{
		Leads: []models.ScoredLead{
			{
				BehaviorSnapshot: models.BehaviorSnapshot{
					EnrollmentID: uuid.New(),
					Name:         "Reza Karimi",
					Email:        "reza@example.com",
					CourseName:   course.Title,
				},
				Score:     82,
				Status:    models.LeadStatusHot,
				Reasoning: "completed most lessons recently",
			},
		},
		TotalAnalyzed: 1,
		HotLeads:      1,
	}

	require.NoError(t, s.UpdateLeadJobProgress(ctx, job.ID, 20, 45, results))

	got, err := s.GetLeadJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, got.ProgressCurrent)
	assert.Equal(t, 45, got.ProgressTotal)
	require.Len(t, got.Results.Leads, 1)
	assert.Equal(t, "Reza Karimi", got.Results.Leads[0].Name)
	assert.Equal(t, 82, got.Results.Leads[0].Score)
	assert.Equal(t, models.LeadStatusHot, got.Results.Leads[0].Status)
	assert.Equal(t, 1, got.Results.TotalAnalyzed)
	assert.Equal(t, 1, got.Results.HotLeads)
}

func TestLeadJob_UpdateProgress_NotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	err := s.UpdateLeadJobProgress(context.Background(), uuid.New(), 1, 2, models.JobResults{})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestFailStalledLeadJobs(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	course := createCourse(t, pool, "stalled course")

	stalled := newLeadJob(course.ID, models.JobStatusPending)
	require.NoError(t, s.CreateLeadJob(ctx, stalled))
	require.NoError(t, s.UpdateLeadJobStatus(ctx, stalled.ID, models.JobStatusRunning))
	// Age the running job past the cutoff.
	_, err := pool.Exec(ctx,
		`UPDATE lead_jobs SET updated_at = NOW() - INTERVAL '2 hours' WHERE id = $1`, stalled.ID)
	require.NoError(t, err)

	fresh := newLeadJob(course.ID, models.JobStatusPending)
	require.NoError(t, s.CreateLeadJob(ctx, fresh))
	require.NoError(t, s.UpdateLeadJobStatus(ctx, fresh.ID, models.JobStatusRunning))

	count, err := s.FailStalledLeadJobs(ctx, time.Now().UTC().Add(-30*time.Minute), "stalled")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := s.GetLeadJob(ctx, stalled.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, "stalled", *got.ErrorMessage)

	got, err = s.GetLeadJob(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusRunning, got.Status)
}

// --- Enrollment scoring read side ---

func TestEnrollments_CountAndList_PaidOnly(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	course := createCourse(t, pool, "Data Engineering")
	now := time.Now().UTC().Truncate(time.Microsecond)

	createEnrollment(t, s, course.ID, "paid1@example.com", "", models.PaymentStatusCompleted, now)
	createEnrollment(t, s, course.ID, "paid2@example.com", "", models.PaymentStatusSuccess, now.Add(-time.Hour))
	createEnrollment(t, s, course.ID, "unpaid@example.com", "", models.PaymentStatusPending, now)
	createEnrollment(t, s, course.ID, "failed@example.com", "", models.PaymentStatusFailed, now)

	filter := store.EnrollmentFilter{CourseID: course.ID}

	total, err := s.CountEnrollments(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	enrollments, err := s.ListEnrollments(ctx, filter, 10, 0)
	require.NoError(t, err)
	require.Len(t, enrollments, 2)
	// Newest first, with the course title joined in.
	assert.Equal(t, "paid1@example.com", enrollments[0].Email)
	assert.Equal(t, "paid2@example.com", enrollments[1].Email)
	assert.Equal(t, "Data Engineering", enrollments[0].CourseName)
}

func TestEnrollments_List_DateFilter(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	course := createCourse(t, pool, "date filter course")
	base := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	createEnrollment(t, s, course.ID, "early@example.com", "", models.PaymentStatusCompleted, base.AddDate(0, -2, 0))
	inRange := createEnrollment(t, s, course.ID, "in@example.com", "", models.PaymentStatusCompleted, base)
	createEnrollment(t, s, course.ID, "late@example.com", "", models.PaymentStatusCompleted, base.AddDate(0, 2, 0))

	start := base.AddDate(0, -1, 0)
	end := base.AddDate(0, 1, 0)
	filter := store.EnrollmentFilter{CourseID: course.ID, StartDate: &start, EndDate: &end}

	total, err := s.CountEnrollments(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	enrollments, err := s.ListEnrollments(ctx, filter, 10, 0)
	require.NoError(t, err)
	require.Len(t, enrollments, 1)
	assert.Equal(t, inRange.ID, enrollments[0].ID)
}

func TestEnrollments_List_Paging(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	course := createCourse(t, pool, "paging course")
	now := time.Now().UTC().Truncate(time.Microsecond)
	for i := 0; i < 5; i++ {
		createEnrollment(t, s, course.ID, uuid.NewString()+"@example.com", "",
			models.PaymentStatusCompleted, now.Add(-time.Duration(i)*time.Minute))
	}

	filter := store.EnrollmentFilter{CourseID: course.ID}

	first, err := s.ListEnrollments(ctx, filter, 2, 0)
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := s.ListEnrollments(ctx, filter, 2, 2)
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.NotEqual(t, first[0].ID, second[0].ID)

	last, err := s.ListEnrollments(ctx, filter, 2, 4)
	require.NoError(t, err)
	assert.Len(t, last, 1)
}

func TestEngagementReads(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	course := createCourse(t, pool, "engagement course")
	now := time.Now().UTC().Truncate(time.Microsecond)
	e := createEnrollment(t, s, course.ID, "engaged@example.com", "", models.PaymentStatusCompleted, now)

	viewed := now.Add(-3 * time.Hour)
	_, err := pool.Exec(ctx,
		`INSERT INTO lesson_progress (id, user_id, course_id, lesson_id, completed, time_spent_minutes, last_viewed_at)
		 VALUES ($1, $2, $3, $4, TRUE, 42, $5)`,
		uuid.New(), e.UserID, course.ID, uuid.New(), viewed)
	require.NoError(t, err)

	_, err = pool.Exec(ctx,
		`INSERT INTO support_conversations (id, user_id, subject, status, created_at)
		 VALUES ($1, $2, 'billing question', 'open', $3)`,
		uuid.New(), e.UserID, now)
	require.NoError(t, err)

	_, err = pool.Exec(ctx,
		`INSERT INTO crm_notes (id, user_id, course_id, note, author, created_at)
		 VALUES ($1, $2, $3, 'called, interested in upsell', 'sales', $4)`,
		uuid.New(), e.UserID, course.ID, now)
	require.NoError(t, err)

	userIDs := []uuid.UUID{e.UserID}

	progress, err := s.ListLessonProgress(ctx, course.ID, userIDs)
	require.NoError(t, err)
	require.Len(t, progress, 1)
	assert.True(t, progress[0].Completed)
	assert.Equal(t, 42, progress[0].TimeSpentMinutes)

	conversations, err := s.ListSupportConversations(ctx, userIDs)
	require.NoError(t, err)
	require.Len(t, conversations, 1)
	assert.Equal(t, "billing question", conversations[0].Subject)

	notes, err := s.ListCRMNotes(ctx, course.ID, userIDs)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "sales", notes[0].Author)
}

func TestEngagementReads_EmptyUserList(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	progress, err := s.ListLessonProgress(ctx, uuid.New(), nil)
	require.NoError(t, err)
	assert.Empty(t, progress)

	conversations, err := s.ListSupportConversations(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, conversations)

	notes, err := s.ListCRMNotes(ctx, uuid.New(), nil)
	require.NoError(t, err)
	assert.Empty(t, notes)
}

// --- Courses / Users / Enrollment writes ---

func TestGetCourse(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	course := createCourse(t, pool, "Intro to ML")

	got, err := s.GetCourse(ctx, course.ID)
	require.NoError(t, err)
	assert.Equal(t, "Intro to ML", got.Title)

	_, err = s.GetCourse(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUser_CreateAndLookup(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	user := newUser("sara@example.com", "9121234567")
	require.NoError(t, s.CreateUser(ctx, user))

	byEmail, err := s.GetUserByEmail(ctx, "sara@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)

	byPhone, err := s.GetUserByPhone(ctx, "9121234567")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byPhone.ID)

	_, err = s.GetUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.GetUserByPhone(ctx, "0000000000")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUser_Create_DuplicateEmail(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, newUser("dup@example.com", "9120000001")))

	err := s.CreateUser(ctx, newUser("dup@example.com", "9120000002"))
	assert.ErrorIs(t, err, store.ErrDuplicateKey)
}

func TestUser_Create_EmptyIdentifiersDontCollide(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	// Imported records may lack an email; the partial unique index must not
	// treat two empty emails as duplicates.
	require.NoError(t, s.CreateUser(ctx, newUser("", "9125550001")))
	require.NoError(t, s.CreateUser(ctx, newUser("", "9125550002")))
}

func TestEnrollment_GetByCourseAndIdentity(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	course := createCourse(t, pool, "lookup course")
	other := createCourse(t, pool, "other course")
	now := time.Now().UTC().Truncate(time.Microsecond)

	e := createEnrollment(t, s, course.ID, "find@example.com", "9123334444", models.PaymentStatusPending, now)

	byEmail, err := s.GetEnrollmentByCourseAndEmail(ctx, course.ID, "find@example.com")
	require.NoError(t, err)
	assert.Equal(t, e.ID, byEmail.ID)
	assert.Equal(t, "lookup course", byEmail.CourseName)

	byPhone, err := s.GetEnrollmentByCourseAndPhone(ctx, course.ID, "9123334444")
	require.NoError(t, err)
	assert.Equal(t, e.ID, byPhone.ID)

	// Same identity, different course: no match.
	_, err = s.GetEnrollmentByCourseAndEmail(ctx, other.ID, "find@example.com")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.GetEnrollmentByCourseAndPhone(ctx, course.ID, "9999999999")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
