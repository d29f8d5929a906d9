package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/flagkit/pkg/config"
	"github.com/dmitrymomot/flagkit/svc/flags/keycache"
)

func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.Parse[appConfig](map[string]string{
		"APIKEY_SECRET": "0123456789abcdef",
		"PG_CONN_URL":   "postgres://flagkit@localhost:5432/flagkit",
	})
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, keycache.DriverMemory, cfg.KeyCache.Driver)
	assert.Equal(t, 5*time.Minute, cfg.KeyCache.TTL)
	assert.Equal(t, uint64(5), cfg.Postgres.TxAttempts)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.ConnectionURL)
}

func TestConfigRequiresSecrets(t *testing.T) {
	t.Parallel()

	_, err := config.Parse[appConfig](map[string]string{"PG_CONN_URL": "postgres://localhost"})
	require.ErrorIs(t, err, config.ErrParsingConfig)

	_, err = config.Parse[appConfig](map[string]string{"APIKEY_SECRET": "0123456789abcdef"})
	require.ErrorIs(t, err, config.ErrParsingConfig)
}
