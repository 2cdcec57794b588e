package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8082", cfg.ListenAddr)
	assert.Equal(t, "DE", cfg.CountryCode)
	assert.Equal(t, "GEF", cfg.PartyId)
	assert.Equal(t, BackendPostgres, cfg.CorrelationBackend)
	assert.Equal(t, 15*time.Minute, cfg.CommandTTL)
	assert.Equal(t, time.Hour, cfg.ClientTTL)
	assert.Equal(t, 5*time.Second, cfg.AuthorizationHookTimeout)
	assert.True(t, cfg.MigrateOnStart)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("EMSP_LISTEN_ADDR", ":9000")
	t.Setenv("EMSP_CORRELATION_BACKEND", "redis")
	t.Setenv("EMSP_COMMAND_TTL", "90s")
	t.Setenv("EMSP_AUTHORIZATION_HOOK_URL", "http://hook.local/authorize")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, BackendRedis, cfg.CorrelationBackend)
	assert.Equal(t, 90*time.Second, cfg.CommandTTL)
	assert.Equal(t, "http://hook.local/authorize", cfg.AuthorizationHookURL)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "emsp.yaml")
	require.NoError(t, os.WriteFile(path, []byte("party_id: ABC\nclient_ttl: 2h\n"), 0o600))
	t.Setenv("EMSP_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "ABC", cfg.PartyId)
	assert.Equal(t, 2*time.Hour, cfg.ClientTTL)
}

func TestValidate(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	bad := cfg
	bad.CorrelationBackend = "etcd"
	bad.CountryCode = "DEU"
	err = bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "correlation_backend")
	assert.Contains(t, err.Error(), "country_code")
}
