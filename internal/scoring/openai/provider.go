package openai

import (
	"context"

	"github.com/daneshyar/leadscore/internal/config"
	"github.com/daneshyar/leadscore/internal/scoring/chat"
	"github.com/daneshyar/leadscore/pkg/models"
)

// Provider implements models.ScoreProvider using the OpenAI API.
type Provider struct {
	cfg    config.OpenAIConfig
	client *chat.Client
}

func NewProvider(cfg config.OpenAIConfig) *Provider {
	return &Provider{
		cfg:    cfg,
		client: chat.NewClient(cfg.BaseURL, cfg.APIKey, cfg.Model, nil),
	}
}

func (p *Provider) Name() string { return "openai" }

func (p *Provider) Model() string { return p.cfg.Model }

func (p *Provider) ScoreBatch(ctx context.Context, leads []models.BehaviorSnapshot) ([]models.LeadScore, error) {
	return p.client.ScoreBatch(ctx, leads)
}

var _ models.ScoreProvider = (*Provider)(nil)
