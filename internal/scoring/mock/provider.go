package mock

import (
	"context"

	"github.com/daneshyar/leadscore/pkg/models"
)

// MockProvider satisfies models.ScoreProvider for testing and local
// development without a model API key.
type MockProvider struct {
	Name_          string
	ScoreBatchFunc func(ctx context.Context, leads []models.BehaviorSnapshot) ([]models.LeadScore, error)
}

func (m *MockProvider) Name() string { return m.Name_ }

func (m *MockProvider) Model() string { return "mock-v1" }

func (m *MockProvider) ScoreBatch(ctx context.Context, leads []models.BehaviorSnapshot) ([]models.LeadScore, error) {
	if m.ScoreBatchFunc != nil {
		return m.ScoreBatchFunc(ctx, leads)
	}
	return nil, nil
}

// NewMockProvider returns a provider that scores every lead from its
// completion percentage, which keeps local runs deterministic.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock",
		ScoreBatchFunc: func(_ context.Context, leads []models.BehaviorSnapshot) ([]models.LeadScore, error) {
			scores := make([]models.LeadScore, len(leads))
			for i, lead := range leads {
				score := int(lead.Metrics.CompletionPercentage)
				if score > 100 {
					score = 100
				}
				scores[i] = models.LeadScore{
					Index:        i,
					EnrollmentID: lead.EnrollmentID.String(),
					Score:        score,
					Status:       models.StatusForScore(score),
					Reason:       "mock score derived from completion percentage",
				}
			}
			return scores, nil
		},
	}
}

// NewFailingProvider returns a provider that always returns the given error.
func NewFailingProvider(err error) *MockProvider {
	return &MockProvider{
		Name_: "mock-failing",
		ScoreBatchFunc: func(_ context.Context, _ []models.BehaviorSnapshot) ([]models.LeadScore, error) {
			return nil, err
		},
	}
}

// Compile-time check that MockProvider implements ScoreProvider.
var _ models.ScoreProvider = (*MockProvider)(nil)
