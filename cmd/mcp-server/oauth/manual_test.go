package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tecrolabs/otus-mcp/internal/oauth"
)

func TestHandleAuthStart(t *testing.T) {
	stub := newAresStub(t)
	proxy, states := newTestProxy(t, stub)

	rec := httptest.NewRecorder()
	proxy.HandleAuthStart(rec, httptest.NewRequest(http.MethodGet, "/auth/start", nil))

	require.Equal(t, http.StatusFound, rec.Code)
	parsed, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)

	state := parsed.Query().Get("state")
	require.NotEmpty(t, state)

	data, err := states.Peek(context.Background(), state)
	require.NoError(t, err)
	assert.NotEmpty(t, data["code_verifier"])
	assert.Equal(t, "http://localhost:8000/auth/callback", data["callback_url"])
}

func TestHandleAuthStartCallbackOverride(t *testing.T) {
	stub := newAresStub(t)
	proxy, states := newTestProxy(t, stub)

	req := httptest.NewRequest(http.MethodGet, "/auth/start?callback_url="+url.QueryEscape("https://other.example/cb"), nil)
	rec := httptest.NewRecorder()
	proxy.HandleAuthStart(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	parsed, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)

	data, err := states.Peek(context.Background(), parsed.Query().Get("state"))
	require.NoError(t, err)
	assert.Equal(t, "https://other.example/cb", data["callback_url"])
}

func TestHandleAuthCallbackSuccessConsumesState(t *testing.T) {
	stub := newAresStub(t)
	proxy, states := newTestProxy(t, stub)

	require.NoError(t, states.Save(context.Background(), "state-1", map[string]string{
		"code_verifier": "ver",
		"callback_url":  "https://mcp.example/auth/callback",
	}))

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=authcode&state=state-1", nil)
	rec := httptest.NewRecorder()
	proxy.HandleAuthCallback(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "authcode", stub.lastLoginCode)
	assert.Equal(t, "https://mcp.example/auth/callback", stub.lastLoginCallback)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "at-123", body["access_token"])

	// The transaction is gone once the exchange succeeded.
	_, err := states.Peek(context.Background(), "state-1")
	assert.ErrorIs(t, err, oauth.ErrStateNotFound)
}

func TestHandleAuthCallbackFailureKeepsState(t *testing.T) {
	stub := newAresStub(t)
	stub.loginStatus = http.StatusBadRequest
	stub.loginBody = map[string]interface{}{"error": "invalid_grant", "error_message": "code already used"}
	proxy, states := newTestProxy(t, stub)

	require.NoError(t, states.Save(context.Background(), "state-1", map[string]string{"callback_url": "https://mcp.example/cb"}))

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=stale&state=state-1", nil)
	rec := httptest.NewRecorder()
	proxy.HandleAuthCallback(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// A failed exchange must leave the transaction retryable.
	_, err := states.Peek(context.Background(), "state-1")
	assert.NoError(t, err)
}

func TestHandleAuthCallbackUnknownState(t *testing.T) {
	stub := newAresStub(t)
	proxy, _ := newTestProxy(t, stub)

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=authcode&state=never-saved", nil)
	rec := httptest.NewRecorder()
	proxy.HandleAuthCallback(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_state", decodeError(t, rec)["error"])
}

func TestHandleAuthCallbackProviderError(t *testing.T) {
	stub := newAresStub(t)
	proxy, _ := newTestProxy(t, stub)

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?error=access_denied&error_description=user+cancelled", nil)
	rec := httptest.NewRecorder()
	proxy.HandleAuthCallback(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "access_denied", body["error"])
	assert.Equal(t, "user cancelled", body["error_description"])
}

func TestHandleAuthCallbackMissingParams(t *testing.T) {
	stub := newAresStub(t)
	proxy, _ := newTestProxy(t, stub)

	for _, target := range []string{"/auth/callback?code=x", "/auth/callback?state=y", "/auth/callback"} {
		rec := httptest.NewRecorder()
		proxy.HandleAuthCallback(rec, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid_request", decodeError(t, rec)["error"])
	}
}

func TestHandleAuthRefresh(t *testing.T) {
	stub := newAresStub(t)
	proxy, _ := newTestProxy(t, stub)

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", strings.NewReader(`{"refresh_token":"rt-456"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	proxy.HandleAuthRefresh(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "at-new", body["access_token"])
}

func TestHandleAuthRefreshMissingToken(t *testing.T) {
	stub := newAresStub(t)
	proxy, _ := newTestProxy(t, stub)

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	proxy.HandleAuthRefresh(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", decodeError(t, rec)["error"])
}

func TestHandleAuthRefreshUpstreamError(t *testing.T) {
	stub := newAresStub(t)
	stub.refreshStatus = http.StatusUnauthorized
	stub.refreshBody = map[string]interface{}{"error_message": "refresh token revoked"}
	proxy, _ := newTestProxy(t, stub)

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", strings.NewReader(`{"refresh_token":"revoked"}`))
	rec := httptest.NewRecorder()
	proxy.HandleAuthRefresh(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "refresh_failed", body["error"])
	assert.Equal(t, "refresh token revoked", body["error_description"])
}
