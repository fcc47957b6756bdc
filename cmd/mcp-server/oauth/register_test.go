package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tecrolabs/otus-mcp/internal/oauth"
)

func registerRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestHandleRegisterPublicClient(t *testing.T) {
	store := oauth.NewMemoryClientStore()
	registrar := NewRegistrar(store)

	rec := httptest.NewRecorder()
	registrar.HandleRegister(rec, registerRequest(`{
		"redirect_uris": ["https://client.example/cb"],
		"client_name": "Test Client"
	}`))

	require.Equal(t, http.StatusCreated, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	clientID, _ := body["client_id"].(string)
	assert.True(t, strings.HasPrefix(clientID, "mcp_client_"))
	assert.Equal(t, "none", body["token_endpoint_auth_method"])
	assert.Equal(t, []interface{}{"authorization_code", "refresh_token"}, body["grant_types"])
	assert.Equal(t, []interface{}{"code"}, body["response_types"])
	assert.Equal(t, "Test Client", body["client_name"])
	assert.NotContains(t, body, "client_secret")

	stored, err := store.GetClient(context.Background(), clientID)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://client.example/cb"}, stored.RedirectURIs)
	assert.Empty(t, stored.ClientSecretHash)
}

func TestHandleRegisterConfidentialClient(t *testing.T) {
	store := oauth.NewMemoryClientStore()
	registrar := NewRegistrar(store)

	rec := httptest.NewRecorder()
	registrar.HandleRegister(rec, registerRequest(`{
		"redirect_uris": ["https://client.example/cb"],
		"token_endpoint_auth_method": "client_secret_post"
	}`))

	require.Equal(t, http.StatusCreated, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	secret, _ := body["client_secret"].(string)
	require.NotEmpty(t, secret)
	assert.NotZero(t, body["client_secret_expires_at"])

	// Only the hash is persisted, and it matches the issued secret.
	clientID := body["client_id"].(string)
	stored, err := store.GetClient(context.Background(), clientID)
	require.NoError(t, err)
	assert.NotEqual(t, secret, stored.ClientSecretHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.ClientSecretHash), []byte(secret)))
}

func TestHandleRegisterRequiresRedirectURIs(t *testing.T) {
	registrar := NewRegistrar(oauth.NewMemoryClientStore())

	rec := httptest.NewRecorder()
	registrar.HandleRegister(rec, registerRequest(`{"client_name": "No URIs"}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_client_metadata", decodeError(t, rec)["error"])
}

func TestHandleRegisterRejectsMalformedRedirectURI(t *testing.T) {
	registrar := NewRegistrar(oauth.NewMemoryClientStore())

	rec := httptest.NewRecorder()
	registrar.HandleRegister(rec, registerRequest(`{"redirect_uris": ["not a url"]}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_client_metadata", decodeError(t, rec)["error"])
}

func TestHandleRegisterRejectsBadJSON(t *testing.T) {
	registrar := NewRegistrar(oauth.NewMemoryClientStore())

	rec := httptest.NewRecorder()
	registrar.HandleRegister(rec, registerRequest(`{not json`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleRegisterRejectsGet(t *testing.T) {
	registrar := NewRegistrar(oauth.NewMemoryClientStore())

	rec := httptest.NewRecorder()
	registrar.HandleRegister(rec, httptest.NewRequest(http.MethodGet, "/register", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleRegisterUniqueClientIDs(t *testing.T) {
	registrar := NewRegistrar(oauth.NewMemoryClientStore())

	ids := map[string]bool{}
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		registrar.HandleRegister(rec, registerRequest(`{"redirect_uris": ["https://client.example/cb"]}`))
		require.Equal(t, http.StatusCreated, rec.Code)

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		ids[body["client_id"].(string)] = true
	}
	assert.Len(t, ids, 5)
}
