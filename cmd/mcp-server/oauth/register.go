package oauth

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/tecrolabs/otus-mcp/internal/oauth"
)

const clientSecretLifetime = 365 * 24 * time.Hour

// Registrar implements RFC 7591 dynamic client registration.
type Registrar struct {
	clients oauth.ClientStore
}

// NewRegistrar creates a registrar backed by the given client store.
func NewRegistrar(clients oauth.ClientStore) *Registrar {
	return &Registrar{clients: clients}
}

type registrationRequest struct {
	RedirectURIs            []string `json:"redirect_uris"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
	GrantTypes              []string `json:"grant_types"`
	ResponseTypes           []string `json:"response_types"`
	ClientName              string   `json:"client_name"`
	ClientURI               string   `json:"client_uri"`
	Scope                   string   `json:"scope"`
}

// HandleRegister serves POST /register. Credentials are generated
// server-side; the plaintext secret is returned once and only its bcrypt
// hash is persisted.
func (reg *Registrar) HandleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req registrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeOAuthError(w, http.StatusBadRequest, "invalid_client_metadata", "Invalid request body")
		return
	}
	if len(req.RedirectURIs) == 0 {
		writeOAuthError(w, http.StatusBadRequest, "invalid_client_metadata", "redirect_uris is required")
		return
	}
	for _, uri := range req.RedirectURIs {
		parsed, err := url.Parse(uri)
		if err != nil || parsed.Scheme == "" {
			writeOAuthError(w, http.StatusBadRequest, "invalid_client_metadata", "Invalid redirect_uri: "+uri)
			return
		}
	}

	authMethod := req.TokenEndpointAuthMethod
	if authMethod == "" {
		authMethod = "none"
	}
	grantTypes := req.GrantTypes
	if len(grantTypes) == 0 {
		grantTypes = []string{"authorization_code", "refresh_token"}
	}
	responseTypes := req.ResponseTypes
	if len(responseTypes) == 0 {
		responseTypes = []string{"code"}
	}

	suffix, err := oauth.RandomString(16)
	if err != nil {
		writeOAuthError(w, http.StatusInternalServerError, "server_error", "Failed to generate client credentials")
		return
	}
	clientID := "mcp_client_" + suffix
	issuedAt := time.Now().Unix()

	client := &oauth.Client{
		ClientID:                clientID,
		RedirectURIs:            req.RedirectURIs,
		GrantTypes:              grantTypes,
		ResponseTypes:           responseTypes,
		Scope:                   req.Scope,
		TokenEndpointAuthMethod: authMethod,
		ClientName:              req.ClientName,
		ClientURI:               req.ClientURI,
		ClientIDIssuedAt:        issuedAt,
		CreatedAt:               time.Now(),
		UpdatedAt:               time.Now(),
	}

	var clientSecret string
	if authMethod != "none" {
		clientSecret, err = oauth.RandomString(32)
		if err != nil {
			writeOAuthError(w, http.StatusInternalServerError, "server_error", "Failed to generate client credentials")
			return
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(clientSecret), bcrypt.DefaultCost)
		if err != nil {
			writeOAuthError(w, http.StatusInternalServerError, "server_error", "Failed to generate client credentials")
			return
		}
		client.ClientSecretHash = string(hash)
		client.ClientSecretExpiresAt = issuedAt + int64(clientSecretLifetime.Seconds())
	}

	if err := reg.clients.SaveClient(r.Context(), client); err != nil {
		log.Errorf("Failed to save client %s: %v", clientID, err)
		writeOAuthError(w, http.StatusInternalServerError, "server_error", "Failed to store client registration")
		return
	}

	log.Infof("Registered OAuth client %s (%s)", clientID, client.ClientName)

	response := map[string]interface{}{
		"client_id":                  clientID,
		"client_id_issued_at":        issuedAt,
		"redirect_uris":              req.RedirectURIs,
		"grant_types":                grantTypes,
		"response_types":             responseTypes,
		"token_endpoint_auth_method": authMethod,
	}
	if req.ClientName != "" {
		response["client_name"] = req.ClientName
	}
	if req.ClientURI != "" {
		response["client_uri"] = req.ClientURI
	}
	if req.Scope != "" {
		response["scope"] = req.Scope
	}
	if clientSecret != "" {
		response["client_secret"] = clientSecret
		response["client_secret_expires_at"] = client.ClientSecretExpiresAt
	}
	writeJSON(w, http.StatusCreated, response)
}
