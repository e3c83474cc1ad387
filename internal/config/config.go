package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/tatianab/prairie/internal/engine"
)

// Config holds the application configuration.
type Config struct {
	Provider string `env:"PRAIRIE_PROVIDER" envDefault:"openai"`
	APIKey   string `env:"PRAIRIE_API_KEY"`

	Store      string `env:"PRAIRIE_STORE" envDefault:"file"`
	SaveDir    string `env:"PRAIRIE_SAVE_DIR" envDefault:".saves"`
	DBPath     string `env:"PRAIRIE_DB_PATH" envDefault:".saves/prairie.db"`
	JournalDir string `env:"PRAIRIE_JOURNAL_DIR"`
	LogFile    string `env:"PRAIRIE_LOG_FILE" envDefault:"prairie.log"`

	OpenAIEndpoint    string        `env:"PRAIRIE_OPENAI_ENDPOINT" envDefault:"https://api.openai.com/v1/chat/completions"`
	OpenAIModel       string        `env:"PRAIRIE_OPENAI_MODEL" envDefault:"gpt-4-turbo-preview"`
	AnthropicEndpoint string        `env:"PRAIRIE_ANTHROPIC_ENDPOINT" envDefault:"https://api.anthropic.com/v1/messages"`
	AnthropicModel    string        `env:"PRAIRIE_ANTHROPIC_MODEL" envDefault:"claude-3-opus-20240229"`
	MaxTokens         int           `env:"PRAIRIE_MAX_TOKENS" envDefault:"500"`
	Temperature       float64       `env:"PRAIRIE_TEMPERATURE" envDefault:"0.8"`
	HTTPTimeout       time.Duration `env:"PRAIRIE_HTTP_TIMEOUT" envDefault:"60s"`

	// Only used by the auto-play simulator.
	GeminiAPIKey string `env:"GEMINI_API_KEY"`
}

// LoadConfig reads an optional .env file and then the environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if _, err := engine.ParseProvider(cfg.Provider); err != nil {
		return nil, fmt.Errorf("PRAIRIE_PROVIDER: %w", err)
	}
	switch cfg.Store {
	case "file", "sqlite", "memory":
	default:
		return nil, fmt.Errorf("PRAIRIE_STORE: unknown store %q", cfg.Store)
	}
	return &cfg, nil
}

// EngineConfig converts the provider settings for the conversation client.
func (c *Config) EngineConfig() engine.Config {
	ec := engine.DefaultConfig()
	ec.OpenAI = engine.ProviderSettings{
		Endpoint:    c.OpenAIEndpoint,
		Model:       c.OpenAIModel,
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
	}
	ec.Anthropic = engine.ProviderSettings{
		Endpoint:    c.AnthropicEndpoint,
		Model:       c.AnthropicModel,
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
	}
	ec.HTTPClient.Timeout = c.HTTPTimeout
	return ec
}
