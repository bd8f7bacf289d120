// Package notify delivers best-effort enrollment notifications to the
// platform's mail service and the configured outbound webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/daneshyar/leadscore/internal/config"
	"github.com/daneshyar/leadscore/pkg/models"
)

var ErrDeliveryFailed = errors.New("notification delivery failed")

// Notifier is the interface for post-enrollment side effects. Failures are
// the caller's to log and swallow; an undelivered confirmation never fails
// an enrollment.
type Notifier interface {
	SendEnrollmentConfirmation(ctx context.Context, enrollment *models.Enrollment) error
	SendEnrollmentWebhook(ctx context.Context, enrollment *models.Enrollment) error
}

// HTTPNotifier implements Notifier over plain HTTP POSTs. An unset URL
// turns the corresponding delivery into a no-op.
type HTTPNotifier struct {
	emailURL   string
	webhookURL string
	client     *http.Client
}

// NewHTTPNotifier creates an HTTPNotifier from config.
func NewHTTPNotifier(cfg config.NotifyConfig) *HTTPNotifier {
	return &HTTPNotifier{
		emailURL:   cfg.EmailURL,
		webhookURL: cfg.WebhookURL,
		client:     &http.Client{Timeout: cfg.Timeout},
	}
}

func (n *HTTPNotifier) SendEnrollmentConfirmation(ctx context.Context, enrollment *models.Enrollment) error {
	return n.post(ctx, n.emailURL, map[string]any{
		"type":        "enrollment_confirmation",
		"to":          enrollment.Email,
		"full_name":   enrollment.FullName,
		"course_name": enrollment.CourseName,
	})
}

func (n *HTTPNotifier) SendEnrollmentWebhook(ctx context.Context, enrollment *models.Enrollment) error {
	return n.post(ctx, n.webhookURL, map[string]any{
		"event":      "enrollment.created",
		"enrollment": enrollment,
	})
}

func (n *HTTPNotifier) post(ctx context.Context, url string, payload any) error {
	if url == "" {
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", ErrDeliveryFailed, resp.StatusCode)
	}
	return nil
}

var _ Notifier = (*HTTPNotifier)(nil)
