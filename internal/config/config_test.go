package config

import (
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allVars = []string{
	"METRO_APPVIEW_URL",
	"METRO_PDS_URL",
	"METRO_HTTP_TIMEOUT",
	"METRO_CREDENTIAL_STORE",
	"METRO_CREDENTIAL_DB",
	"METRO_JETSTREAM_URL",
	"METRO_DEBUG_ADDR",
	"METRO_LOG_LEVEL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, v := range allVars {
		t.Setenv(v, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	t.Setenv("HOME", "/tmp/home")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://public.api.bsky.app", cfg.AppViewURL)
	assert.Equal(t, "https://bsky.social", cfg.PDSURL)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, CredentialStoreOS, cfg.CredentialStore)
	assert.Equal(t, "credentials.db", filepath.Base(cfg.CredentialDB))
	assert.Equal(t, "wss://jetstream2.us-east.bsky.network/subscribe", cfg.JetstreamURL)
	assert.Empty(t, cfg.DebugAddr)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("METRO_APPVIEW_URL", "http://localhost:2584/")
	t.Setenv("METRO_PDS_URL", "http://localhost:2583")
	t.Setenv("METRO_HTTP_TIMEOUT", "5s")
	t.Setenv("METRO_CREDENTIAL_STORE", "sqlite")
	t.Setenv("METRO_CREDENTIAL_DB", "/var/lib/metro/creds.db")
	t.Setenv("METRO_JETSTREAM_URL", "ws://localhost:6008/subscribe")
	t.Setenv("METRO_DEBUG_ADDR", "127.0.0.1:9090")
	t.Setenv("METRO_LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:2584", cfg.AppViewURL)
	assert.Equal(t, "http://localhost:2583", cfg.PDSURL)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, CredentialStoreSQLite, cfg.CredentialStore)
	assert.Equal(t, "/var/lib/metro/creds.db", cfg.CredentialDB)
	assert.Equal(t, "ws://localhost:6008/subscribe", cfg.JetstreamURL)
	assert.Equal(t, "127.0.0.1:9090", cfg.DebugAddr)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad timeout", "METRO_HTTP_TIMEOUT", "soon"},
		{"negative timeout", "METRO_HTTP_TIMEOUT", "-1s"},
		{"unknown store", "METRO_CREDENTIAL_STORE", "vault"},
		{"appview without host", "METRO_APPVIEW_URL", "https://"},
		{"pds wrong scheme", "METRO_PDS_URL", "ftp://bsky.social"},
		{"jetstream http scheme", "METRO_JETSTREAM_URL", "https://jetstream.example"},
		{"bad level", "METRO_LOG_LEVEL", "loud"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}
