package openrouter

import (
	"context"

	"github.com/daneshyar/leadscore/internal/config"
	"github.com/daneshyar/leadscore/internal/scoring/chat"
	"github.com/daneshyar/leadscore/pkg/models"
)

// Provider implements models.ScoreProvider using OpenRouter's
// OpenAI-compatible API. OpenRouter signals exhausted credits with HTTP
// 402, which chat.ClassifyStatus maps to ErrQuotaExhausted.
type Provider struct {
	cfg    config.OpenRouterConfig
	client *chat.Client
}

func NewProvider(cfg config.OpenRouterConfig) *Provider {
	return &Provider{
		cfg: cfg,
		client: chat.NewClient(cfg.BaseURL, cfg.APIKey, cfg.Model, map[string]string{
			"HTTP-Referer": "https://daneshyar.io",
			"X-Title":      "leadscore",
		}),
	}
}

func (p *Provider) Name() string { return "openrouter" }

func (p *Provider) Model() string { return p.cfg.Model }

func (p *Provider) ScoreBatch(ctx context.Context, leads []models.BehaviorSnapshot) ([]models.LeadScore, error) {
	return p.client.ScoreBatch(ctx, leads)
}

var _ models.ScoreProvider = (*Provider)(nil)
