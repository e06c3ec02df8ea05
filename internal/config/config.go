// Package config loads server configuration from environment variables,
// with optional .env file support for development.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Transport selects how the MCP server is exposed.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Config holds everything the server needs at startup. Credentials are kept
// here and must never appear in logs or error messages.
type Config struct {
	// CrowdStrike API credentials
	ClientID     string
	ClientSecret string
	BaseURL      string

	// NG-SIEM settings
	DefaultRepository string
	CatalogDir        string
	HistoryPath       string

	// Logging
	LogLevel string
	LogFile  string

	// MCP transport
	Transport string
	HTTPAddr  string
	APIKey    string
	SkipAuth  bool
}

// Load reads configuration from the environment. When envFile is non-empty
// and exists, it is loaded first; a missing file is not an error so the
// server can run on plain environment variables.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	cfg := &Config{
		ClientID:          getEnv("CROWDSTRIKE_CLIENT_ID", ""),
		ClientSecret:      getEnv("CROWDSTRIKE_CLIENT_SECRET", ""),
		BaseURL:           getEnv("CROWDSTRIKE_BASE_URL", "https://api.crowdstrike.com"),
		DefaultRepository: getEnv("NGSIEM_DEFAULT_REPOSITORY", ""),
		CatalogDir:        getEnv("NGSIEM_CATALOG_DIR", "config"),
		HistoryPath:       getEnv("NGSIEM_HISTORY_PATH", ""),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFile:           getEnv("LOG_FILE", ""),
		Transport:         getEnv("MCP_TRANSPORT", TransportStdio),
		HTTPAddr:          getEnv("MCP_HTTP_ADDR", ":8037"),
		APIKey:            getEnv("MCP_API_KEY", ""),
		SkipAuth:          isTruthy(os.Getenv("MCP_SKIP_AUTH")),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.ClientID == "" || c.ClientSecret == "" {
		return fmt.Errorf("CROWDSTRIKE_CLIENT_ID and CROWDSTRIKE_CLIENT_SECRET must be set")
	}
	// Catch copied-over .env.example placeholders early.
	if strings.HasPrefix(c.ClientID, "your_") || strings.HasPrefix(c.ClientSecret, "your_") {
		return fmt.Errorf("credentials look like placeholders; configure real CrowdStrike API credentials")
	}

	switch strings.ToLower(c.LogLevel) {
	case "trace", "debug", "info", "warn", "error":
		c.LogLevel = strings.ToLower(c.LogLevel)
	default:
		return fmt.Errorf("invalid LOG_LEVEL %q (want trace, debug, info, warn or error)", c.LogLevel)
	}

	switch c.Transport {
	case TransportStdio:
	case TransportHTTP:
		if c.APIKey == "" && !c.SkipAuth {
			return fmt.Errorf("MCP_API_KEY must be set for the http transport (or MCP_SKIP_AUTH for development)")
		}
	default:
		return fmt.Errorf("invalid MCP_TRANSPORT %q (want stdio or http)", c.Transport)
	}

	return nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes":
		return true
	}
	return false
}
