package config

import (
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" default:"development"`
	Port        string `env:"PORT" default:"8765"`
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`
	LogLevel    string `env:"LOG_LEVEL" default:"info"`
	LogFormat   string `env:"LOG_FORMAT" default:"text"`

	// MaxConnections caps concurrent WebSocket connections per instance.
	MaxConnections int64 `env:"MAX_CONNECTIONS" default:"10000"`

	// MessageRate / MessageBurst bound inbound frames per connection.
	MessageRate  float64 `env:"MESSAGE_RATE" default:"20"`
	MessageBurst int     `env:"MESSAGE_BURST" default:"40"`
}

// Load reads configuration from the environment. DATABASE_URL and REDIS_URL
// are optional: without them the server falls back to in-memory stores.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.MaxConnections <= 0 {
		return fmt.Errorf("MAX_CONNECTIONS must be positive, got %d", cfg.MaxConnections)
	}
	if cfg.MessageRate <= 0 {
		return fmt.Errorf("MESSAGE_RATE must be positive, got %v", cfg.MessageRate)
	}
	if cfg.MessageBurst <= 0 {
		return fmt.Errorf("MESSAGE_BURST must be positive, got %d", cfg.MessageBurst)
	}
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}
	return nil
}
