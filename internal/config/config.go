package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	StoreProvider string `env:"STORE_PROVIDER" envDefault:"postgres" validate:"omitempty,oneof=postgres fixture"`
	DatabaseURL   string `env:"DATABASE_URL" validate:"required_if=StoreProvider postgres"`
	FixturePath   string `env:"FIXTURE_PATH" validate:"required_if=StoreProvider fixture"`

	FallbackCustomerGroup string `env:"FALLBACK_CUSTOMER_GROUP" envDefault:"EK" validate:"required"`
	BaseCurrency          string `env:"BASE_CURRENCY" envDefault:"EUR" validate:"required"`

	CacheProvider         string        `env:"CACHE_PROVIDER" envDefault:"memory" validate:"omitempty,oneof=memory redis"`
	RedisConnectionString string        `env:"REDIS_CONNECTION_STRING" envDefault:"redis://localhost:6379/0" validate:"required_if=CacheProvider redis"`
	ContextCacheTTL       time.Duration `env:"CONTEXT_CACHE_TTL" envDefault:"5m"`

	SentryDSN string `env:"SENTRY_DSN"`

	LogLevel  slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	LogFormat string     `env:"LOG_FORMAT" envDefault:"text" validate:"omitempty,oneof=text json"`
	Port      string     `env:"PORT" envDefault:"8080"`
}

var configValidator = validator.New()

func Load() (*Config, error) {
	var cfg Config

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if err := configValidator.Struct(c); err != nil {
		return err
	}

	if c.ContextCacheTTL <= 0 {
		return fmt.Errorf("CONTEXT_CACHE_TTL must be positive")
	}

	return nil
}
