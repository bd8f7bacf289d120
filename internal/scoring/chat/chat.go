// Package chat implements the chat-completions protocol shared by the
// scoring providers: request construction, the tool-call schema, defensive
// response parsing, and HTTP status classification.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/daneshyar/leadscore/pkg/models"
)

// Sentinel errors for scoring-endpoint failures.
var (
	ErrServiceUnavailable = errors.New("scoring model temporarily unavailable")
	ErrRateLimited        = errors.New("scoring model rate limit exceeded")
	ErrQuotaExhausted     = errors.New("scoring model quota exhausted")
	ErrRequestFailed      = errors.New("scoring model request failed")
	ErrInvalidResponse    = errors.New("scoring model returned invalid response")
)

// ClassifyStatus maps a non-2xx response code to a sentinel error.
func ClassifyStatus(code int) error {
	switch code {
	case http.StatusServiceUnavailable:
		return fmt.Errorf("%w: status %d", ErrServiceUnavailable, code)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", ErrRateLimited, code)
	case http.StatusPaymentRequired:
		return fmt.Errorf("%w: status %d", ErrQuotaExhausted, code)
	default:
		return fmt.Errorf("%w: status %d", ErrRequestFailed, code)
	}
}

// ErrorClass names an error's sentinel class for metrics labels.
func ErrorClass(err error) string {
	switch {
	case errors.Is(err, ErrServiceUnavailable):
		return "unavailable"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrQuotaExhausted):
		return "quota"
	case errors.Is(err, ErrInvalidResponse):
		return "invalid_response"
	default:
		return "request_failed"
	}
}

const toolName = "submit_lead_scores"

const systemPrompt = `You are a sales-lead analyst for an online education platform.
You receive one batch of student engagement metrics and score each student's
likelihood of buying a follow-up course on a 0-100 scale:
HOT = 75-100, WARM = 50-74, COLD = 0-49.
Weight course completion percentage and total study time most heavily, then
recency of activity, then whether the student contacted support, then the
number of CRM interactions. Respond only by calling the submit_lead_scores
tool with one entry per input row. Write each reason in Persian.`

// maxHoursInactive caps the inactivity figure sent to the model; anything
// past 999 hours carries no extra signal and 999 doubles as the
// never-active sentinel.
const maxHoursInactive = models.HoursInactiveSentinel

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a chat-completions request body with the scoring tool attached.
type Request struct {
	Model      string    `json:"model"`
	Messages   []Message `json:"messages"`
	Tools      []tool    `json:"tools"`
	ToolChoice any       `json:"tool_choice"`
}

type tool struct {
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type toolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// NewScoreRequest builds the request for one batch. Metrics are serialized
// as compact positional rows (idx, lessons, completed, completion%, minutes,
// hours-inactive capped at 999, support flag, crm count) to keep the payload
// small.
func NewScoreRequest(model string, leads []models.BehaviorSnapshot) Request {
	rows := make([][8]int, len(leads))
	for i, lead := range leads {
		m := lead.Metrics
		hours := m.HoursSinceLastActivity
		if hours > maxHoursInactive {
			hours = maxHoursInactive
		}
		support := 0
		if m.HasSupportConversation {
			support = 1
		}
		rows[i] = [8]int{
			i,
			m.TotalLessonsEnrolled,
			m.CompletedLessons,
			int(m.CompletionPercentage),
			m.TotalTimeMinutes,
			hours,
			support,
			m.CRMInteractions,
		}
	}

	payload, _ := json.Marshal(rows)
	user := fmt.Sprintf(
		"Each row is [idx, lessons, completed, completion_pct, minutes, hours_inactive, support, crm]. hours_inactive=999 means never active.\n%s",
		payload)

	return Request{
		Model: model,
		Messages: []Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: user},
		},
		Tools: []tool{{
			Type: "function",
			Function: toolFunction{
				Name:        toolName,
				Description: "Submit one score entry per input row.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"scores": map[string]any{
							"type": "array",
							"items": map[string]any{
								"type": "object",
								"properties": map[string]any{
									"idx":    map[string]any{"type": "integer"},
									"score":  map[string]any{"type": "integer", "minimum": 0, "maximum": 100},
									"status": map[string]any{"type": "string", "enum": []string{"HOT", "WARM", "COLD"}},
									"reason": map[string]any{"type": "string"},
								},
								"required": []string{"idx", "score", "status", "reason"},
							},
						},
					},
					"required": []string{"scores"},
				},
			},
		}},
		ToolChoice: map[string]any{
			"type":     "function",
			"function": map[string]any{"name": toolName},
		},
	}
}

// --- response parsing ---

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Function struct {
					Name      string          `json:"name"`
					Arguments json.RawMessage `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

// scoreEntry tolerates the shapes the model has been seen to produce.
type scoreEntry struct {
	Idx          *int    `json:"idx"`
	Index        *int    `json:"index"`
	EnrollmentID string  `json:"enrollment_id"`
	Score        float64 `json:"score"`
	Status       string  `json:"status"`
	Reason       string  `json:"reason"`
	Reasoning    string  `json:"reasoning"`
}

type scoresEnvelope struct {
	Scores      []scoreEntry `json:"scores"`
	ScoredLeads []scoreEntry `json:"scored_leads"`
}

// ParseScores extracts score entries from raw tool-call arguments. The
// arguments arrive either as a JSON object or as a JSON-encoded string of
// one; the array may sit under "scores" or "scored_leads", or the payload
// may be a bare array. Scores are clamped to [0,100] and statuses
// normalized to match the score's bucket, so ambiguity never travels past
// this boundary.
func ParseScores(raw json.RawMessage) ([]models.LeadScore, error) {
	data := bytes.TrimSpace(raw)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty tool arguments", ErrInvalidResponse)
	}

	// Arguments may be double-encoded as a JSON string.
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
		data = []byte(strings.TrimSpace(s))
	}

	var entries []scoreEntry
	if len(data) > 0 && data[0] == '[' {
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
	} else {
		var env scoresEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
		entries = env.Scores
		if entries == nil {
			entries = env.ScoredLeads
		}
	}
	if entries == nil {
		return nil, fmt.Errorf("%w: no scores array found", ErrInvalidResponse)
	}

	scores := make([]models.LeadScore, 0, len(entries))
	for _, e := range entries {
		idx := -1
		if e.Idx != nil {
			idx = *e.Idx
		} else if e.Index != nil {
			idx = *e.Index
		}

		score := int(e.Score)
		if score < 0 {
			score = 0
		}
		if score > 100 {
			score = 100
		}

		status := strings.ToUpper(strings.TrimSpace(e.Status))
		if status != models.StatusForScore(score) {
			status = models.StatusForScore(score)
		}

		reason := e.Reason
		if reason == "" {
			reason = e.Reasoning
		}

		scores = append(scores, models.LeadScore{
			Index:        idx,
			EnrollmentID: e.EnrollmentID,
			Score:        score,
			Status:       status,
			Reason:       reason,
		})
	}
	return scores, nil
}

// Client performs chat-completions calls against an OpenAI-compatible
// endpoint. Providers wrap it with their base URL and headers.
type Client struct {
	BaseURL string
	APIKey  string
	Model   string
	Headers map[string]string

	HTTPClient *http.Client
}

// NewClient creates a Client with a sane default transport.
func NewClient(baseURL, apiKey, model string, headers map[string]string) *Client {
	return &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		APIKey:     apiKey,
		Model:      model,
		Headers:    headers,
		HTTPClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

// ScoreBatch sends one batch and parses the tool-call response.
func (c *Client) ScoreBatch(ctx context.Context, leads []models.BehaviorSnapshot) ([]models.LeadScore, error) {
	body, err := json.Marshal(NewScoreRequest(c.Model, leads))
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	for k, v := range c.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, ClassifyStatus(resp.StatusCode)
	}

	var completion completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices", ErrInvalidResponse)
	}

	msg := completion.Choices[0].Message
	for _, tc := range msg.ToolCalls {
		if tc.Function.Name == toolName || len(msg.ToolCalls) == 1 {
			return ParseScores(tc.Function.Arguments)
		}
	}

	// Some models answer in plain content despite the forced tool choice.
	if msg.Content != "" {
		return ParseScores(json.RawMessage(msg.Content))
	}

	return nil, fmt.Errorf("%w: no tool call in response", ErrInvalidResponse)
}
