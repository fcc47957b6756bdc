package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings is the immutable application configuration. It is constructed once
// at startup and passed by value into each component's constructor.
type Settings struct {
	ServerHost string
	ServerPort int
	// ServerURL is the canonical URL of this server, used as the protected
	// resource identifier.
	ServerURL string

	// Ares authorization backend.
	AuthServerAuthorizeURL string
	AuthServerTokenURL     string
	AuthServerRefreshURL   string
	AuthServerIssuer       string

	// JWT validation (Auth0).
	JWKSURL               string
	JWTIssuer             string
	JWTAudience           string
	JWTAlgorithms         []string
	CustomClaimsNamespace string

	SupportedScopes []string

	// Otus API.
	OtusBaseURL       string
	OtusTeamsEndpoint string

	// Fallback manual-flow defaults.
	OAuthRedirectURI string

	TraceIDHeader string

	StateTTL     time.Duration
	JWKSCacheTTL time.Duration
}

// fileSettings is the optional config.yaml overlay, applied between defaults
// and environment variables.
type fileSettings struct {
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
		URL  string `yaml:"url"`
	} `yaml:"server"`
	AuthServer struct {
		AuthorizeURL string `yaml:"authorize_url"`
		TokenURL     string `yaml:"token_url"`
		RefreshURL   string `yaml:"refresh_url"`
		Issuer       string `yaml:"issuer"`
	} `yaml:"auth_server"`
	JWT struct {
		JWKSURL               string   `yaml:"jwks_url"`
		Issuer                string   `yaml:"issuer"`
		Audience              string   `yaml:"audience"`
		Algorithms            []string `yaml:"algorithms"`
		CustomClaimsNamespace string   `yaml:"custom_claims_namespace"`
	} `yaml:"jwt"`
	Scopes []string `yaml:"scopes"`
	Otus   struct {
		BaseURL       string `yaml:"base_url"`
		TeamsEndpoint string `yaml:"teams_endpoint"`
	} `yaml:"otus"`
}

// LoadSettings builds Settings from defaults, an optional config.yaml and the
// environment, in that order of precedence.
func LoadSettings() (Settings, error) {
	s := Settings{
		ServerHost:             "0.0.0.0",
		ServerPort:             8000,
		ServerURL:              "http://localhost:8000",
		AuthServerAuthorizeURL: "https://tecro-api.tecrolabs.dev/ares/api/authorize",
		AuthServerTokenURL:     "https://tecro-api.tecrolabs.dev/ares/api/login",
		AuthServerRefreshURL:   "https://tecro-api.tecrolabs.dev/ares/api/refresh_token",
		AuthServerIssuer:       "https://tecro-api.tecrolabs.dev/ares",
		JWKSURL:                "https://square-test-ttt.us.auth0.com/.well-known/jwks.json",
		JWTIssuer:              "https://square-test-ttt.us.auth0.com/",
		JWTAudience:            "https://square-test-ttt.us.auth0.com/api/v2/",
		JWTAlgorithms:          []string{"RS256"},
		CustomClaimsNamespace:  "https://ares/",
		SupportedScopes:        []string{"openid", "profile", "email", "offline_access"},
		OtusBaseURL:            "https://tecro-api.tecrolabs.dev/otus",
		OtusTeamsEndpoint:      "/teams",
		OAuthRedirectURI:       "http://localhost:8000/auth/callback",
		TraceIDHeader:          "Trace-Id",
		StateTTL:               10 * time.Minute,
		JWKSCacheTTL:           5 * time.Minute,
	}

	applyConfigFile(&s)
	applyEnv(&s)

	if s.ServerURL == "" {
		return Settings{}, fmt.Errorf("SERVER_URL must not be empty")
	}
	s.ServerURL = strings.TrimRight(s.ServerURL, "/")
	if s.JWKSURL == "" {
		return Settings{}, fmt.Errorf("JWT_JWKS_URL must not be empty")
	}
	return s, nil
}

func applyConfigFile(s *Settings) {
	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		path = "config.yaml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	var fc fileSettings
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return
	}

	setString(&s.ServerHost, fc.Server.Host)
	if fc.Server.Port != 0 {
		s.ServerPort = fc.Server.Port
	}
	setString(&s.ServerURL, fc.Server.URL)
	setString(&s.AuthServerAuthorizeURL, fc.AuthServer.AuthorizeURL)
	setString(&s.AuthServerTokenURL, fc.AuthServer.TokenURL)
	setString(&s.AuthServerRefreshURL, fc.AuthServer.RefreshURL)
	setString(&s.AuthServerIssuer, fc.AuthServer.Issuer)
	setString(&s.JWKSURL, fc.JWT.JWKSURL)
	setString(&s.JWTIssuer, fc.JWT.Issuer)
	setString(&s.JWTAudience, fc.JWT.Audience)
	if len(fc.JWT.Algorithms) > 0 {
		s.JWTAlgorithms = fc.JWT.Algorithms
	}
	setString(&s.CustomClaimsNamespace, fc.JWT.CustomClaimsNamespace)
	if len(fc.Scopes) > 0 {
		s.SupportedScopes = fc.Scopes
	}
	setString(&s.OtusBaseURL, fc.Otus.BaseURL)
	setString(&s.OtusTeamsEndpoint, fc.Otus.TeamsEndpoint)
}

func applyEnv(s *Settings) {
	setEnvString(&s.ServerHost, "SERVER_HOST")
	setEnvInt(&s.ServerPort, "SERVER_PORT")
	setEnvString(&s.ServerURL, "SERVER_URL")
	setEnvString(&s.AuthServerAuthorizeURL, "AUTH_SERVER_AUTHORIZE_URL")
	setEnvString(&s.AuthServerTokenURL, "AUTH_SERVER_TOKEN_URL")
	setEnvString(&s.AuthServerRefreshURL, "AUTH_SERVER_REFRESH_URL")
	setEnvString(&s.AuthServerIssuer, "AUTH_SERVER_ISSUER")
	setEnvString(&s.JWKSURL, "JWT_JWKS_URL")
	setEnvString(&s.JWTIssuer, "JWT_ISSUER")
	setEnvString(&s.JWTAudience, "JWT_AUDIENCE")
	setEnvList(&s.JWTAlgorithms, "JWT_ALGORITHMS")
	setEnvString(&s.CustomClaimsNamespace, "JWT_CUSTOM_CLAIMS_NAMESPACE")
	setEnvList(&s.SupportedScopes, "SUPPORTED_SCOPES")
	setEnvString(&s.OtusBaseURL, "OTUS_BASE_URL")
	setEnvString(&s.OtusTeamsEndpoint, "OTUS_TEAMS_ENDPOINT")
	setEnvString(&s.OAuthRedirectURI, "OAUTH_REDIRECT_URI")
	setEnvString(&s.TraceIDHeader, "TRACE_ID_HEADER")
	setEnvDuration(&s.StateTTL, "OAUTH_STATE_TTL")
	setEnvDuration(&s.JWKSCacheTTL, "JWKS_CACHE_TTL")
}

// OtusTeamsURL is the full URL for the Otus teams endpoint.
func (s Settings) OtusTeamsURL() string {
	return s.OtusBaseURL + s.OtusTeamsEndpoint
}

// ResourceMetadataURL is where the protected-resource metadata document is
// served.
func (s Settings) ResourceMetadataURL() string {
	return s.ServerURL + "/.well-known/oauth-protected-resource"
}

// ListenAddr is the host:port the HTTP server binds to.
func (s Settings) ListenAddr() string {
	return fmt.Sprintf("%s:%d", s.ServerHost, s.ServerPort)
}

func setString(dst *string, val string) {
	if val != "" {
		*dst = val
	}
}

func setEnvString(dst *string, key string) {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		*dst = val
	}
}

func setEnvInt(dst *int, key string) {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			*dst = parsed
		}
	}
}

func setEnvList(dst *[]string, key string) {
	if val := os.Getenv(key); val != "" {
		parts := strings.Split(val, ",")
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			*dst = out
		}
	}
}

func setEnvDuration(dst *time.Duration, key string) {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			*dst = parsed
		}
	}
}
