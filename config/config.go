// Package config loads the engine configuration from the environment.
package config

import (
	"encoding/hex"
	"fmt"
	"os"

	"go.uber.org/multierr"
)

// Config is the process-wide configuration. Secrets come from the
// environment only; nothing here is persisted.
type Config struct {
	DatabaseURL string
	ListenAddr  string

	// EncryptionKey is the 32-byte AES key for the credential vault,
	// hex encoded in LAIKA_ENCRYPTION_KEY.
	EncryptionKey []byte

	AWSAccessKey   string
	AWSSecretKey   string
	AWSRegion      string
	KeystoreBucket string

	GitHubClientID     string
	GitHubClientSecret string
	GitHubRedirectURL  string
	GitHubAppID        string
	GitHubAppKeyObject string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	JiraClientID     string
	JiraClientSecret string
	JiraRedirectURL  string

	PostHogAPIKey    string
	DisableTelemetry bool

	Debug bool
}

// FromEnv builds the configuration. The database URL and encryption key
// are mandatory; everything else degrades gracefully (an adapter without
// OAuth credentials simply cannot finish a callback).
func FromEnv() (*Config, error) {
	cfg := &Config{
		DatabaseURL: os.Getenv("LAIKA_DATABASE_URL"),
		ListenAddr:  getEnvOrDefault("LAIKA_LISTEN_ADDR", ":8080"),

		AWSAccessKey:   os.Getenv("LAIKA_AWS_ACCESS_KEY"),
		AWSSecretKey:   os.Getenv("LAIKA_AWS_SECRET_KEY"),
		AWSRegion:      getEnvOrDefault("LAIKA_AWS_REGION", "us-east-1"),
		KeystoreBucket: os.Getenv("LAIKA_KEYSTORE_BUCKET"),

		GitHubClientID:     os.Getenv("LAIKA_GITHUB_CLIENT_ID"),
		GitHubClientSecret: os.Getenv("LAIKA_GITHUB_CLIENT_SECRET"),
		GitHubRedirectURL:  os.Getenv("LAIKA_GITHUB_REDIRECT_URL"),
		GitHubAppID:        os.Getenv("LAIKA_GITHUB_APP_ID"),
		GitHubAppKeyObject: os.Getenv("LAIKA_GITHUB_APP_KEY_OBJECT"),

		GoogleClientID:     os.Getenv("LAIKA_GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("LAIKA_GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURL:  os.Getenv("LAIKA_GOOGLE_REDIRECT_URL"),

		JiraClientID:     os.Getenv("LAIKA_JIRA_CLIENT_ID"),
		JiraClientSecret: os.Getenv("LAIKA_JIRA_CLIENT_SECRET"),
		JiraRedirectURL:  os.Getenv("LAIKA_JIRA_REDIRECT_URL"),

		PostHogAPIKey:    os.Getenv("LAIKA_POSTHOG_API_KEY"),
		DisableTelemetry: getEnvBool("LAIKA_DISABLE_TELEMETRY"),

		Debug: getEnvBool("LAIKA_DEBUG"),
	}

	var errs error

	if cfg.DatabaseURL == "" {
		errs = multierr.Append(errs, fmt.Errorf("LAIKA_DATABASE_URL is required"))
	}

	keyHex := os.Getenv("LAIKA_ENCRYPTION_KEY")
	if keyHex == "" {
		errs = multierr.Append(errs, fmt.Errorf("LAIKA_ENCRYPTION_KEY is required"))
	} else {
		key, err := hex.DecodeString(keyHex)
		switch {
		case err != nil:
			errs = multierr.Append(errs, fmt.Errorf("LAIKA_ENCRYPTION_KEY is not valid hex: %w", err))
		case len(key) != 32:
			errs = multierr.Append(errs, fmt.Errorf("LAIKA_ENCRYPTION_KEY must decode to 32 bytes, got %d", len(key)))
		default:
			cfg.EncryptionKey = key
		}
	}

	if errs != nil {
		return nil, errs
	}
	return cfg, nil
}

func getEnvOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string) bool {
	v := os.Getenv(key)
	return v == "1" || v == "true" || v == "TRUE"
}
