package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("QUERYDECK_AUTH_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "clicks", cfg.Dashboard.CVRBasis)
	assert.Equal(t, 25, cfg.Dashboard.DefaultPageSize)
	assert.Equal(t, 10, cfg.Redis.PoolSize)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadRequiresMasterKeyWhenAuthEnabled(t *testing.T) {
	t.Setenv("QUERYDECK_AUTH_ENABLED", "true")
	t.Setenv("QUERYDECK_API_KEY_MASTER", "")

	_, err := Load()
	require.Error(t, err)
}

func TestValidateCVRBasis(t *testing.T) {
	t.Setenv("QUERYDECK_AUTH_ENABLED", "false")
	t.Setenv("QUERYDECK_CVR_BASIS", "orders")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "QUERYDECK_CVR_BASIS")
}

func TestValidateAnomalyThresholds(t *testing.T) {
	t.Setenv("QUERYDECK_AUTH_ENABLED", "false")
	t.Setenv("QUERYDECK_ANOMALY_WARN_PCT", "0.8")
	t.Setenv("QUERYDECK_ANOMALY_CRITICAL_PCT", "0.2")

	_, err := Load()
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("QUERYDECK_AUTH_ENABLED", "false")
	t.Setenv("QUERYDECK_HTTP_ADDR", ":9999")
	t.Setenv("QUERYDECK_PAGE_SIZE", "50")
	t.Setenv("QUERYDECK_CVR_BASIS", "impressions")
	t.Setenv("QUERYDECK_REDIS_POOL_SIZE", "25")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, 50, cfg.Dashboard.DefaultPageSize)
	assert.Equal(t, "impressions", cfg.Dashboard.CVRBasis)
	assert.Equal(t, 25, cfg.Redis.PoolSize)
}
