package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettingsDefaults(t *testing.T) {
	cfg, err := LoadSettings()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8000", cfg.ListenAddr())
	assert.Equal(t, "http://localhost:8000", cfg.ServerURL)
	assert.Equal(t, []string{"RS256"}, cfg.JWTAlgorithms)
	assert.Equal(t, "https://ares/", cfg.CustomClaimsNamespace)
	assert.Equal(t, "Trace-Id", cfg.TraceIDHeader)
	assert.Equal(t, 10*time.Minute, cfg.StateTTL)
	assert.Equal(t, 5*time.Minute, cfg.JWKSCacheTTL)
}

func TestLoadSettingsEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("SERVER_URL", "https://mcp.example/")
	t.Setenv("SUPPORTED_SCOPES", "openid, email")
	t.Setenv("OAUTH_STATE_TTL", "2m")
	t.Setenv("JWT_ALGORITHMS", "RS256,RS384")

	cfg, err := LoadSettings()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.ServerPort)
	// Trailing slashes are stripped so URL concatenation stays clean.
	assert.Equal(t, "https://mcp.example", cfg.ServerURL)
	assert.Equal(t, []string{"openid", "email"}, cfg.SupportedScopes)
	assert.Equal(t, 2*time.Minute, cfg.StateTTL)
	assert.Equal(t, []string{"RS256", "RS384"}, cfg.JWTAlgorithms)
}

func TestLoadSettingsConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9100
  url: https://file.example
auth_server:
  authorize_url: https://backend.example/ares/api/authorize
jwt:
  audience: https://api.file.example/
scopes:
  - openid
otus:
  base_url: https://backend.example/otus
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := LoadSettings()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.ServerPort)
	assert.Equal(t, "https://file.example", cfg.ServerURL)
	assert.Equal(t, "https://backend.example/ares/api/authorize", cfg.AuthServerAuthorizeURL)
	assert.Equal(t, "https://api.file.example/", cfg.JWTAudience)
	assert.Equal(t, []string{"openid"}, cfg.SupportedScopes)
	assert.Equal(t, "https://backend.example/otus/teams", cfg.OtusTeamsURL())
}

func TestLoadSettingsEnvBeatsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9100\n"), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("SERVER_PORT", "9200")

	cfg, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, 9200, cfg.ServerPort)
}

func TestDerivedURLs(t *testing.T) {
	cfg := Settings{
		ServerURL:         "https://mcp.example",
		OtusBaseURL:       "https://backend.example/otus",
		OtusTeamsEndpoint: "/teams",
	}
	assert.Equal(t, "https://mcp.example/.well-known/oauth-protected-resource", cfg.ResourceMetadataURL())
	assert.Equal(t, "https://backend.example/otus/teams", cfg.OtusTeamsURL())
}
