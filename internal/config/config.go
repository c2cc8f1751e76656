package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the application configuration.
type Config struct {
	GeminiAPIKey string        `env:"GEMINI_API_KEY"`
	GeminiModel  string        `env:"LESSON_GAME_GEMINI_MODEL" envDefault:"gemini-2.5-flash"`
	SaveDir      string        `env:"LESSON_GAME_SAVE_DIR" envDefault:".saves"`
	DBPath       string        `env:"LESSON_GAME_DB_PATH" envDefault:"lesson-game.db"`
	HTTPAddr     string        `env:"LESSON_GAME_HTTP_ADDR" envDefault:":8080"`
	TickInterval time.Duration `env:"LESSON_GAME_TICK_INTERVAL" envDefault:"1s"`
	OTelEndpoint string        `env:"LESSON_GAME_OTEL_ENDPOINT"`
	OTelEnabled  bool          `env:"LESSON_GAME_OTEL_ENABLED" envDefault:"true"`
}

// LoadConfig loads the configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.TickInterval <= 0 {
		return nil, errors.New("LESSON_GAME_TICK_INTERVAL must be positive")
	}
	return &cfg, nil
}

// RequireGemini reports an error when no Gemini API key is configured.
func (c *Config) RequireGemini() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable is not set")
	}
	return nil
}
