package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "development", cfg.Server.Env)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, "phishsim", cfg.Database.DBName)
	assert.Equal(t, time.Hour, cfg.Database.ConnLifetime)
	assert.Equal(t, 30*time.Minute, cfg.Database.ConnIdleTime)
	assert.Equal(t, 5*time.Second, cfg.Redis.DialTimeout)
	assert.Equal(t, 30*time.Second, cfg.Report.CacheTTL)
	assert.Equal(t, "no data", cfg.Report.NoDataLabel)
	assert.False(t, cfg.Geo.Enabled)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PHISHSIM_HTTP_ADDR", ":9999")
	t.Setenv("PHISHSIM_ENV", "production")
	t.Setenv("PHISHSIM_DB_PORT", "5444")
	t.Setenv("PHISHSIM_DB_CONN_LIFETIME", "45m")
	t.Setenv("PHISHSIM_RATE_LIMIT_RPS", "12.5")
	t.Setenv("PHISHSIM_REPORT_CACHE_TTL", "2m")
	t.Setenv("PHISHSIM_AUTH_SKIP_PATHS", "/health, /metrics")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 5444, cfg.Database.Port)
	assert.Equal(t, 45*time.Minute, cfg.Database.ConnLifetime)
	assert.Equal(t, 12.5, cfg.RateLimit.RPS)
	assert.Equal(t, 2*time.Minute, cfg.Report.CacheTTL)
	assert.Equal(t, []string{"/health", "/metrics"}, cfg.Auth.SkipPaths)
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("PHISHSIM_DB_PORT", "not-a-number")
	t.Setenv("PHISHSIM_REPORT_CACHE_TTL", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 30*time.Second, cfg.Report.CacheTTL)
}

func TestValidateAuthRequiresKey(t *testing.T) {
	t.Setenv("PHISHSIM_AUTH_ENABLED", "true")

	_, err := Load()
	require.Error(t, err)

	t.Setenv("PHISHSIM_API_KEY_MASTER", "secret")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.Auth.MasterKey)
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{
		Host: "db", Port: 5432, User: "u", Password: "p",
		DBName: "phishsim", SSLMode: "disable",
	}
	assert.Equal(t, "postgres://u:p@db:5432/phishsim?sslmode=disable", d.DSN())
}
