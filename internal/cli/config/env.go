package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// Env holds the settings read from TASKDECK_* environment variables
type Env struct {
	// APIURL bypasses taskdeck.json and talks to this server directly
	APIURL     string        `env:"TASKDECK_API_URL" validate:"omitempty,url"`
	WSURL      string        `env:"TASKDECK_WS_URL" validate:"omitempty,url"`
	Timeout    time.Duration `env:"TASKDECK_TIMEOUT" envDefault:"30s" validate:"gt=0"`
	TokenStore string        `env:"TASKDECK_TOKEN_STORE" envDefault:"keyring" validate:"oneof=keyring file memory"`
	LogLevel   string        `env:"TASKDECK_LOG_LEVEL" envDefault:"warn" validate:"oneof=trace debug info warn error disabled"`
	LogFormat  string        `env:"TASKDECK_LOG_FORMAT" envDefault:"console" validate:"oneof=console json"`
}

// LoadEnv parses and validates the TASKDECK_* environment
func LoadEnv() (*Env, error) {
	cfg, err := env.ParseAs[Env]()
	if err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	return &cfg, nil
}

// EnvServer returns the server described by TASKDECK_API_URL, or nil when unset
func (e *Env) EnvServer() *Server {
	if e.APIURL == "" {
		return nil
	}
	return &Server{Alias: "env", URL: e.APIURL, WSURL: e.WSURL}
}
