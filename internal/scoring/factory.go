package scoring

import (
	"fmt"

	"github.com/daneshyar/leadscore/internal/config"
	"github.com/daneshyar/leadscore/internal/scoring/mock"
	"github.com/daneshyar/leadscore/internal/scoring/openai"
	"github.com/daneshyar/leadscore/internal/scoring/openrouter"
	"github.com/daneshyar/leadscore/pkg/models"
)

// NewProvider constructs the appropriate scoring provider based on config.
// Called once at server startup.
func NewProvider(cfg config.AIConfig) (models.ScoreProvider, error) {
	switch cfg.Provider {
	case "openai":
		return openai.NewProvider(cfg.OpenAI), nil
	case "openrouter":
		return openrouter.NewProvider(cfg.OpenRouter), nil
	case "mock":
		return mock.NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown scoring provider %q: must be one of openai, openrouter, mock", cfg.Provider)
	}
}
