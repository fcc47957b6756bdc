package auth

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/tecrolabs/otus-mcp/internal/config"
)

// Metadata serves the RFC 9728 protected-resource and RFC 8414
// authorization-server metadata documents.
type Metadata struct {
	cfg config.Settings
}

// NewMetadata creates the metadata handler set.
func NewMetadata(cfg config.Settings) *Metadata {
	return &Metadata{cfg: cfg}
}

// ProtectedResourceMetadata is the RFC 9728 document telling clients which
// authorization servers can issue tokens for this resource.
func (m *Metadata) ProtectedResourceMetadata() map[string]interface{} {
	return map[string]interface{}{
		"resource": m.cfg.ServerURL,
		// Point at this server, which proxies the auth server metadata.
		"authorization_servers":    []string{m.cfg.ServerURL},
		"scopes_supported":         m.cfg.SupportedScopes,
		"bearer_methods_supported": []string{"header"},
		"resource_documentation":   m.cfg.ServerURL + "/docs",
	}
}

// AuthorizationServerMetadata is the RFC 8414 document describing the
// endpoints needed to complete the OAuth flow through Ares.
func (m *Metadata) AuthorizationServerMetadata() map[string]interface{} {
	return map[string]interface{}{
		"issuer":                                m.cfg.AuthServerIssuer,
		"authorization_endpoint":                m.cfg.AuthServerAuthorizeURL,
		"token_endpoint":                        m.cfg.AuthServerTokenURL,
		"scopes_supported":                      m.cfg.SupportedScopes,
		"response_types_supported":              []string{"code"},
		"response_modes_supported":              []string{"query"},
		"grant_types_supported":                 []string{"authorization_code", "refresh_token"},
		"token_endpoint_auth_methods_supported": []string{"none"},
		"code_challenge_methods_supported":      []string{"S256"},
	}
}

// HandleProtectedResource serves GET /.well-known/oauth-protected-resource.
func (m *Metadata) HandleProtectedResource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, m.ProtectedResourceMetadata())
}

// HandleAuthorizationServer serves GET /.well-known/oauth-authorization-server.
func (m *Metadata) HandleAuthorizationServer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, m.AuthorizationServerMetadata())
}

// WWWAuthenticate builds the challenge header for 401 responses per RFC 9728
// section 5.1, pointing clients at the protected-resource metadata.
func WWWAuthenticate(cfg config.Settings) string {
	header := fmt.Sprintf("Bearer resource_metadata=%q", cfg.ResourceMetadataURL())
	if len(cfg.SupportedScopes) > 0 {
		header += fmt.Sprintf(" scope=%q", strings.Join(cfg.SupportedScopes, " "))
	}
	return header
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
