package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Credential store backends.
const (
	CredentialStoreOS     = "os"
	CredentialStoreSQLite = "sqlite"
)

// Config holds all configuration for the application.
type Config struct {
	// AppViewURL is the read endpoint for public profile and feed lookups.
	AppViewURL string

	// PDSURL is the read/write endpoint used before login. Login switches it
	// to the account's own PDS.
	PDSURL string

	// HTTPTimeout bounds each XRPC request.
	HTTPTimeout time.Duration

	// CredentialStore selects where the refresh token is kept: "os" or "sqlite".
	CredentialStore string

	// CredentialDB is the path of the SQLite credential vault.
	CredentialDB string

	// JetstreamURL is the Jetstream WebSocket endpoint.
	JetstreamURL string

	// DebugAddr is the listen address of the debug server. Empty disables it.
	DebugAddr string

	// LogLevel is the minimum level logged.
	LogLevel slog.Level
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	appView, err := urlVar("METRO_APPVIEW_URL", "https://public.api.bsky.app", "http", "https")
	if err != nil {
		return nil, err
	}

	pds, err := urlVar("METRO_PDS_URL", "https://bsky.social", "http", "https")
	if err != nil {
		return nil, err
	}

	timeout := 30 * time.Second
	if v := os.Getenv("METRO_HTTP_TIMEOUT"); v != "" {
		timeout, err = time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid METRO_HTTP_TIMEOUT: %w", err)
		}
		if timeout <= 0 {
			return nil, fmt.Errorf("invalid METRO_HTTP_TIMEOUT: must be positive, got %s", v)
		}
	}

	store := os.Getenv("METRO_CREDENTIAL_STORE")
	if store == "" {
		store = CredentialStoreOS
	}
	if store != CredentialStoreOS && store != CredentialStoreSQLite {
		return nil, fmt.Errorf("invalid METRO_CREDENTIAL_STORE %q: must be %q or %q", store, CredentialStoreOS, CredentialStoreSQLite)
	}

	credDB := os.Getenv("METRO_CREDENTIAL_DB")
	if credDB == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("locate config dir for METRO_CREDENTIAL_DB: %w", err)
		}
		credDB = filepath.Join(dir, "metro", "credentials.db")
	}

	jetstream, err := urlVar("METRO_JETSTREAM_URL", "wss://jetstream2.us-east.bsky.network/subscribe", "ws", "wss")
	if err != nil {
		return nil, err
	}

	level := slog.LevelInfo
	if v := os.Getenv("METRO_LOG_LEVEL"); v != "" {
		if err := level.UnmarshalText([]byte(strings.ToLower(v))); err != nil {
			return nil, fmt.Errorf("invalid METRO_LOG_LEVEL: %w", err)
		}
	}

	return &Config{
		AppViewURL:      appView,
		PDSURL:          pds,
		HTTPTimeout:     timeout,
		CredentialStore: store,
		CredentialDB:    credDB,
		JetstreamURL:    jetstream,
		DebugAddr:       os.Getenv("METRO_DEBUG_ADDR"),
		LogLevel:        level,
	}, nil
}

// urlVar reads an absolute URL with one of the given schemes, trimming any
// trailing slash.
func urlVar(name, def string, schemes ...string) (string, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}

	u, err := url.Parse(v)
	if err != nil {
		return "", fmt.Errorf("invalid %s: %w", name, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid %s: %q has no host", name, v)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return strings.TrimSuffix(v, "/"), nil
		}
	}
	return "", fmt.Errorf("invalid %s: scheme must be one of %s", name, strings.Join(schemes, ", "))
}
