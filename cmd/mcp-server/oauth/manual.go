package oauth

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/tecrolabs/otus-mcp/internal/oauth"
	"github.com/tecrolabs/otus-mcp/internal/upstream"
)

// HandleAuthStart serves GET /auth/start: a server-initiated login for
// clients without their own OAuth machinery. The server generates PKCE
// material and state itself, then redirects to the provider.
func (p *Proxy) HandleAuthStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	verifier, _ := oauth.GeneratePKCE()
	state, err := oauth.RandomString(32)
	if err != nil {
		writeOAuthError(w, http.StatusInternalServerError, "server_error", "Failed to generate state")
		return
	}

	callbackURL := p.cfg.OAuthRedirectURI
	if override := r.URL.Query().Get("callback_url"); override != "" {
		callbackURL = override
	}

	err = p.states.Save(r.Context(), state, map[string]string{
		"code_verifier": verifier,
		"callback_url":  callbackURL,
	})
	if err != nil {
		log.Errorf("Failed to save login state: %v", err)
		writeOAuthError(w, http.StatusInternalServerError, "server_error", "Failed to store transaction state")
		return
	}

	authURL, err := p.ares.Authorize(r.Context(), callbackURL)
	if err != nil {
		var upErr *upstream.UpstreamError
		if errors.As(err, &upErr) {
			writeOAuthError(w, upstreamStatus(upErr), "authorization_error", "Authorization server error: "+upErr.Message)
			return
		}
		log.Errorf("Failed to start login flow: %v", err)
		writeOAuthError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	http.Redirect(w, r, ensureStateParam(authURL, state), http.StatusFound)
}

// HandleAuthCallback serves GET /auth/callback: the redirect target of the
// manual flow. The transaction is consumed only after a successful code
// exchange so the client can retry a failed callback.
func (p *Proxy) HandleAuthCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	if errCode := query.Get("error"); errCode != "" {
		writeOAuthError(w, http.StatusBadRequest, errCode, query.Get("error_description"))
		return
	}

	code := query.Get("code")
	state := query.Get("state")
	if code == "" || state == "" {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "Missing code or state")
		return
	}

	data, err := p.states.Peek(r.Context(), state)
	if err != nil {
		if errors.Is(err, oauth.ErrStateNotFound) {
			writeOAuthError(w, http.StatusBadRequest, "invalid_state", "Unknown or expired state")
			return
		}
		log.Errorf("State lookup failed: %v", err)
		writeOAuthError(w, http.StatusInternalServerError, "server_error", "State lookup failed")
		return
	}

	callbackURL := data["callback_url"]
	if callbackURL == "" {
		callbackURL = p.cfg.OAuthRedirectURI
	}

	tokens, err := p.ares.ExchangeCode(r.Context(), code, callbackURL)
	if err != nil {
		// State stays in the store so the exchange can be retried.
		var upErr *upstream.UpstreamError
		if errors.As(err, &upErr) {
			log.Errorf("Code exchange failed: %d - %s", upErr.StatusCode, upErr.Message)
			errCode := upErr.ErrorCode
			if errCode == "" {
				errCode = "token_exchange_failed"
			}
			writeOAuthError(w, upstreamStatus(upErr), errCode, upErr.Message)
			return
		}
		log.Errorf("Code exchange failed: %v", err)
		writeOAuthError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	if _, err := p.states.Consume(r.Context(), state); err != nil {
		log.Warnf("Failed to consume state %s: %v", truncate(state, 8), err)
	}

	p.events.TokenIssued(data["client_id"], "authorization_code")
	writeJSON(w, http.StatusOK, tokens)
}

// HandleAuthRefresh serves POST /auth/refresh, forwarding a refresh token to
// Ares and returning the provider response verbatim.
func (p *Proxy) HandleAuthRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.RefreshToken == "" {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "Missing refresh_token")
		return
	}

	tokens, err := p.ares.Refresh(r.Context(), body.RefreshToken)
	if err != nil {
		var upErr *upstream.UpstreamError
		if errors.As(err, &upErr) {
			errCode := upErr.ErrorCode
			if errCode == "" {
				errCode = "refresh_failed"
			}
			writeOAuthError(w, upstreamStatus(upErr), errCode, upErr.Message)
			return
		}
		log.Errorf("Token refresh failed: %v", err)
		writeOAuthError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	p.events.TokenIssued("", "refresh_token")
	writeJSON(w, http.StatusOK, tokens)
}
