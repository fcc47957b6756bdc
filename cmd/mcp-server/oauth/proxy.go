// Package oauth implements the OAuth 2.1 surface of the server: the
// authorize/token proxy that translates standard requests into Ares calls,
// the fallback manual flow and RFC 7591 dynamic client registration.
package oauth

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/tecrolabs/otus-mcp/internal/config"
	"github.com/tecrolabs/otus-mcp/internal/events"
	"github.com/tecrolabs/otus-mcp/internal/oauth"
	"github.com/tecrolabs/otus-mcp/internal/upstream"
)

// Proxy translates standard OAuth 2.1 requests into the Ares backend's
// calling conventions, correlating the authorize step with the later
// callback/token exchange through the transaction state store.
type Proxy struct {
	cfg    config.Settings
	states oauth.StateStore
	ares   *upstream.AresClient
	events *events.Publisher
}

// NewProxy creates the proxy handler set.
func NewProxy(cfg config.Settings, states oauth.StateStore, ares *upstream.AresClient, publisher *events.Publisher) *Proxy {
	return &Proxy{cfg: cfg, states: states, ares: ares, events: publisher}
}

// HandleAuthorize serves GET /oauth/authorize. The standard authorization
// request is saved under its state parameter and translated into the Ares
// authorize call; the user agent is then redirected to the provider.
func (p *Proxy) HandleAuthorize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	responseType := query.Get("response_type")
	clientID := query.Get("client_id")
	redirectURI := query.Get("redirect_uri")
	state := query.Get("state")
	scope := query.Get("scope")
	codeChallenge := query.Get("code_challenge")
	codeChallengeMethod := query.Get("code_challenge_method")

	if responseType != "code" {
		writeOAuthError(w, http.StatusBadRequest, "unsupported_response_type", "Only 'code' response_type is supported")
		return
	}
	if redirectURI == "" || state == "" {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "Missing redirect_uri or state")
		return
	}

	// Store the original request params for the token exchange.
	err := p.states.Save(r.Context(), state, map[string]string{
		"client_id":             clientID,
		"redirect_uri":          redirectURI,
		"code_challenge":        codeChallenge,
		"code_challenge_method": codeChallengeMethod,
		"scope":                 scope,
	})
	if err != nil {
		log.Errorf("Failed to save authorize state: %v", err)
		writeOAuthError(w, http.StatusInternalServerError, "server_error", "Failed to store transaction state")
		return
	}

	authURL, err := p.ares.Authorize(r.Context(), redirectURI)
	if err != nil {
		var upErr *upstream.UpstreamError
		if errors.As(err, &upErr) {
			log.Errorf("Ares authorize error: %d - %s", upErr.StatusCode, upErr.Body)
			writeOAuthError(w, upstreamStatus(upErr), "authorization_error", "Authorization server error: "+upErr.Message)
			return
		}
		log.Errorf("Failed to proxy authorize request: %v", err)
		writeOAuthError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	// Ensure state survives the round trip even when Ares drops it; the
	// client's CSRF binding depends on it.
	authURL = ensureStateParam(authURL, state)

	log.Infof("Redirecting to auth provider: %s", truncate(authURL, 100))
	http.Redirect(w, r, authURL, http.StatusFound)
}

// tokenRequest is a standard OAuth token request, accepted form-encoded or
// as JSON.
type tokenRequest struct {
	GrantType    string `json:"grant_type"`
	Code         string `json:"code"`
	RedirectURI  string `json:"redirect_uri"`
	ClientID     string `json:"client_id"`
	CodeVerifier string `json:"code_verifier"`
	RefreshToken string `json:"refresh_token"`
}

// HandleToken serves POST /oauth/token, forwarding the grant to the matching
// Ares endpoint and reshaping the response into standard OAuth fields.
func (p *Proxy) HandleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req, ok := parseTokenRequest(w, r)
	if !ok {
		return
	}

	var tokens map[string]interface{}
	var err error
	switch req.GrantType {
	case "authorization_code":
		tokens, err = p.ares.ExchangeCode(r.Context(), req.Code, req.RedirectURI)
	case "refresh_token":
		tokens, err = p.ares.Refresh(r.Context(), req.RefreshToken)
	default:
		writeOAuthError(w, http.StatusBadRequest, "unsupported_grant_type", "Grant type '"+req.GrantType+"' not supported")
		return
	}
	if err != nil {
		var upErr *upstream.UpstreamError
		if errors.As(err, &upErr) {
			log.Errorf("Ares token error: %d - %s", upErr.StatusCode, upErr.Message)
			code := upErr.ErrorCode
			if code == "" {
				code = "token_error"
			}
			writeOAuthError(w, upstreamStatus(upErr), code, upErr.Message)
			return
		}
		log.Errorf("Token proxy error: %v", err)
		writeOAuthError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	p.events.TokenIssued(req.ClientID, req.GrantType)
	writeJSON(w, http.StatusOK, reshapeTokens(tokens))
}

func parseTokenRequest(w http.ResponseWriter, r *http.Request) (tokenRequest, bool) {
	contentType := r.Header.Get("Content-Type")
	if strings.Contains(contentType, "application/x-www-form-urlencoded") {
		if err := r.ParseForm(); err != nil {
			writeOAuthError(w, http.StatusBadRequest, "invalid_request", "Invalid form body")
			return tokenRequest{}, false
		}
		return tokenRequest{
			GrantType:    r.FormValue("grant_type"),
			Code:         r.FormValue("code"),
			RedirectURI:  r.FormValue("redirect_uri"),
			ClientID:     r.FormValue("client_id"),
			CodeVerifier: r.FormValue("code_verifier"),
			RefreshToken: r.FormValue("refresh_token"),
		}, true
	}

	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return tokenRequest{}, false
	}
	return req, true
}

// reshapeTokens normalizes an Ares token payload into standard OAuth fields.
func reshapeTokens(tokens map[string]interface{}) map[string]interface{} {
	response := map[string]interface{}{
		"access_token": tokens["access_token"],
		"token_type":   "Bearer",
		"expires_in":   3600,
	}
	if tokenType, ok := tokens["token_type"].(string); ok && tokenType != "" {
		response["token_type"] = tokenType
	}
	if expiresIn, ok := tokens["expires_in"]; ok {
		response["expires_in"] = expiresIn
	}
	for _, field := range []string{"refresh_token", "id_token", "scope"} {
		if val, ok := tokens[field].(string); ok && val != "" {
			response[field] = val
		}
	}
	return response
}

// ensureStateParam appends state to redirectURL when it is missing.
func ensureStateParam(redirectURL, state string) string {
	parsed, err := url.Parse(redirectURL)
	if err == nil {
		query := parsed.Query()
		if query.Get("state") != "" {
			return redirectURL
		}
		query.Set("state", state)
		parsed.RawQuery = query.Encode()
		return parsed.String()
	}
	separator := "?"
	if strings.Contains(redirectURL, "?") {
		separator = "&"
	}
	return redirectURL + separator + "state=" + url.QueryEscape(state)
}

// upstreamStatus passes a 4xx through (it is a valid OAuth error status) and
// normalizes everything else to 500.
func upstreamStatus(e *upstream.UpstreamError) int {
	if e.StatusCode >= 400 && e.StatusCode < 500 {
		return e.StatusCode
	}
	return http.StatusInternalServerError
}

func writeOAuthError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, map[string]string{
		"error":             code,
		"error_description": description,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func truncate(val string, max int) string {
	if len(val) <= max {
		return val
	}
	return val[:max] + "..."
}
