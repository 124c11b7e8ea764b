package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		if v, ok := os.LookupEnv(k); ok {
			t.Cleanup(func() { os.Setenv(k, v) })
		}
		os.Unsetenv(k)
	}
}

func TestLoad_Defaults(t *testing.T) {
	unsetEnv(t, "API_BASE_URL", "REQUEST_TIMEOUT", "PORT", "CORS_ALLOWED_ORIGINS",
		"CREDENTIAL_BACKEND", "DATABASE_URL", "VALIDATE_SESSION_ON_RESTORE")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000", cfg.APIBaseURL)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
	assert.Equal(t, ":3000", cfg.HTTPAddress())
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, BackendFile, cfg.CredentialBackend)
	assert.False(t, cfg.ValidateOnRestore)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://api.example.com/")
	t.Setenv("REQUEST_TIMEOUT", "3s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test ,")
	t.Setenv("CREDENTIAL_BACKEND", "Memory")
	t.Setenv("VALIDATE_SESSION_ON_RESTORE", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", cfg.APIBaseURL)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
	assert.Equal(t, BackendMemory, cfg.CredentialBackend)
	assert.True(t, cfg.ValidateOnRestore)
}

func TestLoad_PostgresNeedsDatabaseURL(t *testing.T) {
	unsetEnv(t, "DATABASE_URL")
	t.Setenv("CREDENTIAL_BACKEND", "postgres")

	_, err := Load()
	assert.ErrorContains(t, err, "DATABASE_URL")
}

func TestLoad_UnknownBackend(t *testing.T) {
	t.Setenv("CREDENTIAL_BACKEND", "redis")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_BadTimeout(t *testing.T) {
	t.Setenv("REQUEST_TIMEOUT", "soon")
	_, err := Load()
	assert.Error(t, err)
}
