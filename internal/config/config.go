package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the development backend
type Config struct {
	// HTTP listen address
	Addr string `env:"ADDR" envDefault:":8000" validate:"required"`

	// Database Configuration
	Database DatabaseConfig `envPrefix:"DATABASE_"`

	// Token Configuration
	Auth AuthConfig `envPrefix:"JWT_"`

	// Browser origins allowed by CORS
	CORSOrigins []string `env:"CORS_ORIGINS" envDefault:"http://localhost:5173" envSeparator:"," validate:"min=1,dive,url"`

	// Cron schedule of the expired refresh token purge, empty disables it
	ReaperSchedule string `env:"REAPER_SCHEDULE" envDefault:"@every 1h"`

	// Logging Configuration
	Logging LoggingConfig `envPrefix:"LOG_"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL string `env:"URL" envDefault:"taskdeck.sqlite" validate:"required"`
}

// AuthConfig holds JWT signing configuration
type AuthConfig struct {
	Secret     string        `env:"SECRET" validate:"required,min=16"`
	AccessTTL  time.Duration `env:"ACCESS_TTL" envDefault:"15m" validate:"gt=0"`
	RefreshTTL time.Duration `env:"REFRESH_TTL" envDefault:"168h" validate:"gtfield=AccessTTL"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json" validate:"oneof=json console"` // json, console
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}
