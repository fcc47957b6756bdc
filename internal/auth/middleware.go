package auth

import (
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/tecrolabs/otus-mcp/internal/config"
	"github.com/tecrolabs/otus-mcp/internal/oauth"
)

// DefaultExcludedPaths are the routes that must stay reachable without a
// token: the discovery documents and the endpoints a client uses to obtain
// one.
var DefaultExcludedPaths = []string{
	"/",
	"/.well-known/oauth-protected-resource",
	"/.well-known/oauth-authorization-server",
	"/healthz",
	"/register",
	"/oauth/authorize",
	"/oauth/token",
	"/auth/start",
	"/auth/callback",
	"/auth/refresh",
}

// Middleware enforces bearer authentication on every route that is not on
// the exemption list. Rejections carry a WWW-Authenticate challenge pointing
// at the protected-resource metadata so compliant clients can discover how
// to obtain a token.
type Middleware struct {
	verifier      *TokenVerifier
	excludedPaths []string
	challenge     string

	// OnReject, when set, is notified of every rejected request.
	OnReject func(path, reason string)
}

// NewMiddleware creates the authentication gate. A nil excludedPaths uses
// DefaultExcludedPaths.
func NewMiddleware(cfg config.Settings, verifier *TokenVerifier, excludedPaths []string) *Middleware {
	if excludedPaths == nil {
		excludedPaths = DefaultExcludedPaths
	}
	return &Middleware{
		verifier:      verifier,
		excludedPaths: excludedPaths,
		challenge:     WWWAuthenticate(cfg),
	}
}

// Handler wraps next with the authentication gate.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.isExcluded(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token := extractBearerToken(r.Header.Get("Authorization"))
		if token == "" {
			log.Debugf("No bearer token for path: %s", r.URL.Path)
			m.unauthorized(w, r.URL.Path, "No valid bearer token provided")
			return
		}

		info, err := m.verifier.VerifyToken(r.Context(), token)
		if err != nil {
			log.Debugf("Invalid token for path %s: %v", r.URL.Path, err)
			m.unauthorized(w, r.URL.Path, "Invalid or expired token")
			return
		}
		// Log a fingerprint, never the token itself.
		log.Debugf("Authenticated %s on %s (token %s)", info.ClientID, r.URL.Path, oauth.HashToken(token)[:12])

		// Attach both the descriptor and the raw token: the MCP tool layer
		// reads the token from the context because it never sees the
		// request itself.
		ctx := WithAccessToken(r.Context(), info)
		ctx = WithBearerToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) isExcluded(path string) bool {
	for _, excluded := range m.excludedPaths {
		if path == excluded || strings.HasPrefix(path, excluded+"/") {
			return true
		}
	}
	return false
}

// extractBearerToken returns the token from a strict "Bearer <token>"
// header, or "" when the header is absent or uses another scheme.
func extractBearerToken(header string) string {
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(header[len("Bearer "):])
}

func (m *Middleware) unauthorized(w http.ResponseWriter, path, detail string) {
	if m.OnReject != nil {
		m.OnReject(path, detail)
	}
	w.Header().Set("WWW-Authenticate", m.challenge)
	writeJSON(w, http.StatusUnauthorized, map[string]string{
		"error":             "unauthorized",
		"error_description": detail,
	})
}
