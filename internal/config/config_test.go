package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setCreds(t *testing.T) {
	t.Helper()
	t.Setenv("CROWDSTRIKE_CLIENT_ID", "abc123")
	t.Setenv("CROWDSTRIKE_CLIENT_SECRET", "s3cret")
}

func TestLoad_Defaults(t *testing.T) {
	setCreds(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://api.crowdstrike.com", cfg.BaseURL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, TransportStdio, cfg.Transport)
}

func TestLoad_MissingCredentials(t *testing.T) {
	t.Setenv("CROWDSTRIKE_CLIENT_ID", "")
	t.Setenv("CROWDSTRIKE_CLIENT_SECRET", "")

	_, err := Load("")
	assert.Error(t, err)
}

func TestLoad_PlaceholderCredentials(t *testing.T) {
	t.Setenv("CROWDSTRIKE_CLIENT_ID", "your_client_id_here")
	t.Setenv("CROWDSTRIKE_CLIENT_SECRET", "your_client_secret_here")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "placeholder")
}

func TestLoad_InvalidLogLevel(t *testing.T) {
	setCreds(t)
	t.Setenv("LOG_LEVEL", "verbose")

	_, err := Load("")
	assert.Error(t, err)
}

func TestLoad_HTTPTransportRequiresAPIKey(t *testing.T) {
	setCreds(t)
	t.Setenv("MCP_TRANSPORT", "http")
	t.Setenv("MCP_API_KEY", "")

	_, err := Load("")
	require.Error(t, err)

	t.Setenv("MCP_SKIP_AUTH", "true")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.SkipAuth)
}

func TestLoad_EnvFile(t *testing.T) {
	setCreds(t)
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile,
		[]byte("NGSIEM_DEFAULT_REPOSITORY=detections\n"), 0o644))

	// godotenv mutates the process environment; clean up after the test.
	t.Cleanup(func() { _ = os.Unsetenv("NGSIEM_DEFAULT_REPOSITORY") })

	cfg, err := Load(envFile)
	require.NoError(t, err)
	assert.Equal(t, "detections", cfg.DefaultRepository)

	// Missing file is not an error.
	_, err = Load(filepath.Join(dir, "nope.env"))
	assert.NoError(t, err)
}
