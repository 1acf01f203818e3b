package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "turbo"
	cfg.LogLevel = "loud"
	cfg.Engine.SelfAddress = "not-an-address"
	cfg.Server.Port = 0

	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown mode")
	require.Contains(t, err.Error(), "unknown log_level")
	require.Contains(t, err.Error(), "self_address")
	require.Contains(t, err.Error(), "server: port")
}

func TestValidateRejectsZeroAddress(t *testing.T) {
	cfg := Defaults()
	cfg.Engine.VenueAddress = "0x0000000000000000000000000000000000000000"
	require.ErrorContains(t, cfg.Validate(), "venue_address")
}

func TestValidateRejectsSharedIdentity(t *testing.T) {
	cfg := Defaults()
	cfg.Engine.VenueAddress = cfg.Engine.SelfAddress
	require.ErrorContains(t, cfg.Validate(), "must differ")
}

func TestValidateS3OnlyWhenEnabled(t *testing.T) {
	cfg := Defaults()
	cfg.S3.Bucket = ""
	require.NoError(t, cfg.Validate())

	cfg.S3.Enabled = true
	require.ErrorContains(t, cfg.Validate(), "s3: bucket")
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "serve"

[server]
port = 9100

[redis]
addr = "redis:6379"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "serve", cfg.Mode)
	require.Equal(t, 9100, cfg.Server.Port)
	require.Equal(t, "redis:6379", cfg.Redis.Addr)

	// Untouched sections keep their defaults.
	require.Equal(t, "http://localhost:8600", cfg.Verifier.BaseURL)
	require.Equal(t, "info", cfg.LogLevel)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`mode = "engine"`), 0o600))

	t.Setenv("QLICKD_MODE", "full")
	t.Setenv("QLICKD_SERVER_PORT", "9200")
	t.Setenv("QLICKD_POSTGRES_PASSWORD", "hunter2")
	t.Setenv("QLICKD_S3_ENABLED", "true")
	t.Setenv("QLICKD_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "full", cfg.Mode)
	require.Equal(t, 9200, cfg.Server.Port)
	require.Equal(t, "hunter2", cfg.Postgres.Password)
	require.True(t, cfg.S3.Enabled)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestEnvOverridesIgnoreMalformed(t *testing.T) {
	cfg := Defaults()
	t.Setenv("QLICKD_SERVER_PORT", "not-a-number")
	t.Setenv("QLICKD_REDIS_TLS_ENABLED", "maybe")
	applyEnvOverrides(&cfg)
	require.Equal(t, 8500, cfg.Server.Port)
	require.False(t, cfg.Redis.TLSEnabled)
}
