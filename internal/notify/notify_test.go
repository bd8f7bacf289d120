package notify_test

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

	"github.com/daneshyar/leadscore/internal/config"
	"github.com/daneshyar/leadscore/internal/notify"
	"github.com/daneshyar/leadscore/pkg/models"
)

func testEnrollment() *models.Enrollment {
	return &models.Enrollment{
		ID:         uuid.New(),
		Email:      "sara@example.com",
		FullName:   "Sara Ahmadi",
		CourseName: "Intensive Persian",
	}
}

func TestSendEnrollmentConfirmation(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	n := notify.NewHTTPNotifier(config.NotifyConfig{EmailURL: srv.URL, Timeout: 5 * time.Second})
	err := n.SendEnrollmentConfirmation(context.Background(), testEnrollment())
	require.NoError(t, err)

	assert.Equal(t, "enrollment_confirmation", got["type"])
	assert.Equal(t, "sara@example.com", got["to"])
	assert.Equal(t, "Intensive Persian", got["course_name"])
}

func TestSendEnrollmentWebhook(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	n := notify.NewHTTPNotifier(config.NotifyConfig{WebhookURL: srv.URL, Timeout: 5 * time.Second})
	enr := testEnrollment()
	err := n.SendEnrollmentWebhook(context.Background(), enr)
	require.NoError(t, err)

	assert.Equal(t, "enrollment.created", got["event"])
	payload := got["enrollment"].(map[string]any)
	assert.Equal(t, enr.ID.String(), payload["id"])
}

func TestUnsetURLIsNoOp(t *testing.T) {
	n := notify.NewHTTPNotifier(config.NotifyConfig{Timeout: time.Second})
	assert.NoError(t, n.SendEnrollmentConfirmation(context.Background(), testEnrollment()))
	assert.NoError(t, n.SendEnrollmentWebhook(context.Background(), testEnrollment()))
}

func TestNon2xxIsDeliveryFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := notify.NewHTTPNotifier(config.NotifyConfig{EmailURL: srv.URL, Timeout: time.Second})
	err := n.SendEnrollmentConfirmation(context.Background(), testEnrollment())
	assert.ErrorIs(t, err, notify.ErrDeliveryFailed)
}

func TestUnreachableHostIsDeliveryFailure(t *testing.T) {
	n := notify.NewHTTPNotifier(config.NotifyConfig{
		EmailURL: "http://127.0.0.1:1",
		Timeout:  time.Second,
	})
	err := n.SendEnrollmentConfirmation(context.Background(), testEnrollment())
	assert.ErrorIs(t, err, notify.ErrDeliveryFailed)
}
