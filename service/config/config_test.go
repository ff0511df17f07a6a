package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/permafeed")
	t.Setenv("GATEWAY_URL", "https://arweave.net")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ServerAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "nats://localhost:4222", cfg.NATSURL)
	assert.Equal(t, 10, cfg.FetchPageSize)
	assert.Equal(t, "https://api.coingecko.com", cfg.PriceAPIURL)
	assert.Equal(t, "arweave", cfg.PriceAssetID)
	assert.Equal(t, "usd", cfg.DefaultCurrency)
	assert.Equal(t, 5*time.Minute, cfg.PriceRefreshInterval)
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("GATEWAY_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
	assert.Contains(t, err.Error(), "GATEWAY_URL")
}

func TestLoadOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SERVER_ADDR", ":9090")
	t.Setenv("FETCH_PAGE_SIZE", "25")
	t.Setenv("DEFAULT_CURRENCY", "eur")
	t.Setenv("PRICE_REFRESH_INTERVAL", "30s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ServerAddr)
	assert.Equal(t, 25, cfg.FetchPageSize)
	assert.Equal(t, "eur", cfg.DefaultCurrency)
	assert.Equal(t, 30*time.Second, cfg.PriceRefreshInterval)
}

func TestLoadInvalidValues(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("FETCH_PAGE_SIZE", "not-a-number")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FETCH_PAGE_SIZE")
}

func TestValidate(t *testing.T) {
	valid := &Config{
		DatabaseURL:          "postgres://localhost/db",
		GatewayURL:           "https://arweave.net",
		FetchPageSize:        10,
		PriceAPIURL:          "https://api.coingecko.com",
		DefaultCurrency:      "usd",
		PriceRefreshInterval: time.Minute,
	}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing database url", func(c *Config) { c.DatabaseURL = "" }},
		{"missing gateway url", func(c *Config) { c.GatewayURL = "" }},
		{"zero page size", func(c *Config) { c.FetchPageSize = 0 }},
		{"missing currency", func(c *Config) { c.DefaultCurrency = "" }},
		{"refresh interval too short", func(c *Config) { c.PriceRefreshInterval = time.Millisecond }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := *valid
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
