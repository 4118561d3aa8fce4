package config

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	DBSource        string
	Port            string
	Env             string
	MigrationsURL   string
	TokenSecret     string
	TokenTTL        time.Duration
	StartingBalance decimal.Decimal
}

func Load() (*Config, error) {
	dbSource := os.Getenv("DB_SOURCE")
	if dbSource == "" {
		return nil, fmt.Errorf("DB_SOURCE environment variable is required")
	}

	tokenSecret := os.Getenv("TOKEN_SECRET")
	if tokenSecret == "" {
		return nil, fmt.Errorf("TOKEN_SECRET environment variable is required")
	}

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	migrationsURL := os.Getenv("MIGRATIONS_URL")
	if migrationsURL == "" {
		migrationsURL = "file://migrations"
	}

	tokenTTL := 24 * time.Hour
	if v := os.Getenv("TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid TOKEN_TTL %q: %w", v, err)
		}
		tokenTTL = d
	}

	startingBalance := decimal.NewFromInt(1000)
	if v := os.Getenv("STARTING_BALANCE"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("invalid STARTING_BALANCE %q: %w", v, err)
		}
		if d.IsNegative() {
			return nil, fmt.Errorf("STARTING_BALANCE must not be negative")
		}
		startingBalance = d
	}

	return &Config{
		DBSource:        dbSource,
		Port:            port,
		Env:             env,
		MigrationsURL:   migrationsURL,
		TokenSecret:     tokenSecret,
		TokenTTL:        tokenTTL,
		StartingBalance: startingBalance,
	}, nil
}
