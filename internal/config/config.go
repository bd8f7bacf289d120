package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the leadscore server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	AI       AIConfig
	Scoring  ScoringConfig
	Notify   NotifyConfig
	Janitor  JanitorConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type AIConfig struct {
	Provider         string
	InferenceTimeout time.Duration
	OpenAI           OpenAIConfig
	OpenRouter       OpenRouterConfig
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type OpenRouterConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type ScoringConfig struct {
	BatchSize int
}

type NotifyConfig struct {
	EmailURL   string
	WebhookURL string
	Timeout    time.Duration
}

type JanitorConfig struct {
	Schedule     string
	StallTimeout time.Duration
}

var validProviders = map[string]bool{
	"openai":     true,
	"openrouter": true,
	"mock":       true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("LEADSCORE_PORT", 8080),
			Env:  envString("LEADSCORE_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		AI: AIConfig{
			Provider:         os.Getenv("AI_PROVIDER"),
			InferenceTimeout: envDurationSecs("AI_INFERENCE_TIMEOUT_SECS", 60*time.Second),
			OpenAI: OpenAIConfig{
				APIKey:  os.Getenv("OPENAI_API_KEY"),
				BaseURL: envString("OPENAI_BASE_URL", "https://api.openai.com/v1"),
				Model:   envString("OPENAI_MODEL", "gpt-4o-mini"),
			},
			OpenRouter: OpenRouterConfig{
				APIKey:  os.Getenv("OPENROUTER_API_KEY"),
				BaseURL: envString("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
				Model:   envString("OPENROUTER_MODEL", "google/gemini-2.0-flash-001"),
			},
		},
		Scoring: ScoringConfig{
			BatchSize: envInt("SCORING_BATCH_SIZE", 20),
		},
		Notify: NotifyConfig{
			EmailURL:   os.Getenv("NOTIFY_EMAIL_URL"),
			WebhookURL: os.Getenv("NOTIFY_WEBHOOK_URL"),
			Timeout:    envDuration("NOTIFY_TIMEOUT", 10*time.Second),
		},
		Janitor: JanitorConfig{
			Schedule:     envString("JANITOR_SCHEDULE", "@every 10m"),
			StallTimeout: envDuration("JOB_STALL_TIMEOUT", 30*time.Minute),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.AI.Provider == "" {
		return fmt.Errorf("AI_PROVIDER is required")
	}
	if !validProviders[c.AI.Provider] {
		return fmt.Errorf("AI_PROVIDER must be one of openai, openrouter, mock; got %q", c.AI.Provider)
	}

	if c.AI.Provider == "openai" && c.AI.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when AI_PROVIDER is openai")
	}
	if c.AI.Provider == "openrouter" && c.AI.OpenRouter.APIKey == "" {
		return fmt.Errorf("OPENROUTER_API_KEY is required when AI_PROVIDER is openrouter")
	}

	if c.Scoring.BatchSize <= 0 || c.Scoring.BatchSize > 100 {
		return fmt.Errorf("SCORING_BATCH_SIZE must be between 1 and 100; got %d", c.Scoring.BatchSize)
	}

	for name, u := range map[string]string{
		"NOTIFY_EMAIL_URL":   c.Notify.EmailURL,
		"NOTIFY_WEBHOOK_URL": c.Notify.WebhookURL,
	} {
		if u != "" && !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			return fmt.Errorf("%s must start with http:// or https://, got %q", name, u)
		}
	}

	if c.Janitor.StallTimeout < time.Minute {
		return fmt.Errorf("JOB_STALL_TIMEOUT must be at least 1m; got %s", c.Janitor.StallTimeout)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
