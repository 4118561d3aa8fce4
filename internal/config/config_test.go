package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_SOURCE", "postgresql://localhost/bucks")
	t.Setenv("TOKEN_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "file://migrations", cfg.MigrationsURL)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.True(t, cfg.StartingBalance.Equal(decimal.NewFromInt(1000)))
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DB_SOURCE", "postgresql://localhost/bucks")
	t.Setenv("TOKEN_SECRET", "s3cret")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("TOKEN_TTL", "30m")
	t.Setenv("STARTING_BALANCE", "250.75")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 30*time.Minute, cfg.TokenTTL)
	assert.True(t, cfg.StartingBalance.Equal(decimal.RequireFromString("250.75")))
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing DB_SOURCE", env: map[string]string{"TOKEN_SECRET": "s"}},
		{name: "missing TOKEN_SECRET", env: map[string]string{"DB_SOURCE": "postgresql://x"}},
		{name: "bad TOKEN_TTL", env: map[string]string{"DB_SOURCE": "postgresql://x", "TOKEN_SECRET": "s", "TOKEN_TTL": "soon"}},
		{name: "bad STARTING_BALANCE", env: map[string]string{"DB_SOURCE": "postgresql://x", "TOKEN_SECRET": "s", "STARTING_BALANCE": "lots"}},
		{name: "negative STARTING_BALANCE", env: map[string]string{"DB_SOURCE": "postgresql://x", "TOKEN_SECRET": "s", "STARTING_BALANCE": "-5"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DB_SOURCE", "")
			t.Setenv("TOKEN_SECRET", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
