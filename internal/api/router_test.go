package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daneshyar/leadscore/internal/api"
	mw "github.com/daneshyar/leadscore/internal/api/middleware"
	"github.com/daneshyar/leadscore/internal/cache"
	"github.com/daneshyar/leadscore/internal/store"
	"github.com/daneshyar/leadscore/pkg/models"
)

// --- stub store that returns empty results (all auth fails) ---

type stubStore struct{}

func (s *stubStore) Ping(_ context.Context) error { return nil }
func (s *stubStore) GetAPIKeyByPrefix(_ context.Context, _ string) ([]*models.APIKey, error) {
	return nil, nil
}
func (s *stubStore) UpdateAPIKeyLastUsed(_ context.Context, _ uuid.UUID) error { return nil }
func (s *stubStore) CreateAPIKey(_ context.Context, _ *models.APIKey) error    { return nil }
func (s *stubStore) ListAPIKeys(_ context.Context) ([]*models.APIKey, error)   { return nil, nil }
func (s *stubStore) RevokeAPIKey(_ context.Context, _ uuid.UUID) error         { return nil }

func (s *stubStore) CreateLeadJob(_ context.Context, _ *models.LeadJob) error { return nil }
func (s *stubStore) GetLeadJob(_ context.Context, _ uuid.UUID) (*models.LeadJob, error) {
	return nil, store.ErrNotFound
}
func (s *stubStore) GetLeadJobStatus(_ context.Context, _ uuid.UUID) (string, error) {
	return "", store.ErrNotFound
}
func (s *stubStore) UpdateLeadJobStatus(_ context.Context, _ uuid.UUID, _ string, _ ...store.JobUpdateOption) error {
	return nil
}
func (s *stubStore) UpdateLeadJobProgress(_ context.Context, _ uuid.UUID, _, _ int, _ models.JobResults) error {
	return nil
}
func (s *stubStore) FailStalledLeadJobs(_ context.Context, _ time.Time, _ string) (int, error) {
	return 0, nil
}

func (s *stubStore) CountEnrollments(_ context.Context, _ store.EnrollmentFilter) (int, error) {
	return 0, nil
}
func (s *stubStore) ListEnrollments(_ context.Context, _ store.EnrollmentFilter, _, _ int) ([]*models.Enrollment, error) {
	return nil, nil
}
func (s *stubStore) ListLessonProgress(_ context.Context, _ uuid.UUID, _ []uuid.UUID) ([]*models.LessonProgress, error) {
	return nil, nil
}
func (s *stubStore) ListSupportConversations(_ context.Context, _ []uuid.UUID) ([]*models.SupportConversation, error) {
	return nil, nil
}
func (s *stubStore) ListCRMNotes(_ context.Context, _ uuid.UUID, _ []uuid.UUID) ([]*models.CRMNote, error) {
	return nil, nil
}

func (s *stubStore) GetCourse(_ context.Context, _ uuid.UUID) (*models.Course, error) {
	return nil, store.ErrNotFound
}
func (s *stubStore) GetUserByEmail(_ context.Context, _ string) (*models.User, error) {
	return nil, store.ErrNotFound
}
func (s *stubStore) GetUserByPhone(_ context.Context, _ string) (*models.User, error) {
	return nil, store.ErrNotFound
}
func (s *stubStore) CreateUser(_ context.Context, _ *models.User) error { return nil }
func (s *stubStore) GetEnrollmentByCourseAndEmail(_ context.Context, _ uuid.UUID, _ string) (*models.Enrollment, error) {
	return nil, store.ErrNotFound
}
func (s *stubStore) GetEnrollmentByCourseAndPhone(_ context.Context, _ uuid.UUID, _ string) (*models.Enrollment, error) {
	return nil, store.ErrNotFound
}
func (s *stubStore) CreateEnrollment(_ context.Context, _ *models.Enrollment) error { return nil }

// --- stub cache ---

type stubCache struct{}

func (c *stubCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error { return nil }
func (c *stubCache) Get(_ context.Context, _ string) ([]byte, bool, error)            { return nil, false, nil }
func (c *stubCache) Delete(_ context.Context, _ string) error                         { return nil }
func (c *stubCache) Ping(_ context.Context) error                                     { return nil }
func (c *stubCache) SetJobStatus(_ context.Context, _ uuid.UUID, _ string, _ time.Duration) error {
	return nil
}
func (c *stubCache) GetJobStatus(_ context.Context, _ uuid.UUID) (string, bool, error) {
	return "", false, nil
}
func (c *stubCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 1, nil
}

// --- router tests ---

func newTestRouter() http.Handler {
	return api.NewRouter(api.Dependencies{
		Auth:      mw.NewAuth(&stubStore{}),
		RateLimit: mw.NewRateLimit(&stubCache{}, 60),
		HealthHandler: func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		},
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	})
}

func TestRouter_HealthEndpoint_Public(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_MetricsEndpoint_Public(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_ProtectedEndpoints_RequireAuth(t *testing.T) {
	router := newTestRouter()

	endpoints := []struct {
		method string
		path   string
	}{
		{"POST", "/api/v1/jobs"},
		{"POST", "/api/v1/jobs/score"},
		{"GET", "/api/v1/jobs/" + uuid.NewString()},
		{"POST", "/api/v1/enrollments"},
		{"POST", "/api/v1/admin/keys"},
		{"GET", "/api/v1/admin/keys"},
	}

	for _, ep := range endpoints {
		t.Run(ep.method+" "+ep.path, func(t *testing.T) {
			req := httptest.NewRequest(ep.method, ep.path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			errObj := body["error"].(map[string]any)
			assert.Equal(t, "INVALID_TOKEN", errObj["code"])
		})
	}
}

func TestRouter_NotFound(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest("GET", "/api/v1/nonexistent", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

// Verify unused interfaces are satisfied
var _ store.Store = (*stubStore)(nil)
var _ cache.Cache = (*stubCache)(nil)
