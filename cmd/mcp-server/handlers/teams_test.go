package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tecrolabs/otus-mcp/internal/auth"
	"github.com/tecrolabs/otus-mcp/internal/config"
	"github.com/tecrolabs/otus-mcp/internal/upstream"
	"github.com/tecrolabs/otus-mcp/pkg/mcp"
)

func newTeamsHandler(t *testing.T, status int, body string) (*TeamsHandler, *string) {
	t.Helper()

	var seenAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenAuth = r.Header.Get("Authorization")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	otus := upstream.NewOtusClient(config.Settings{
		OtusBaseURL:       server.URL,
		OtusTeamsEndpoint: "/teams",
	})
	return NewTeamsHandler(otus), &seenAuth
}

func TestTeamsTool(t *testing.T) {
	handler, _ := newTeamsHandler(t, http.StatusOK, "{}")
	tool := handler.Tool()
	assert.Equal(t, "otus_teams", tool.Name)
	assert.NotEmpty(t, tool.Description)
}

func TestTeamsHandleForwardsToken(t *testing.T) {
	const payload = `{"teams":[{"id":1,"name":"alpha"}]}`
	handler, seenAuth := newTeamsHandler(t, http.StatusOK, payload)

	ctx := auth.WithBearerToken(context.Background(), "token-abc")
	result, err := handler.Handle(ctx, mcp.ToolCall{Name: "otus_teams"})
	require.NoError(t, err)

	assert.False(t, result.IsError)
	require.Len(t, result.Content, 1)
	assert.Equal(t, payload, result.Content[0].Text)
	assert.Equal(t, "Bearer token-abc", *seenAuth)
}

func TestTeamsHandleMissingToken(t *testing.T) {
	handler, _ := newTeamsHandler(t, http.StatusOK, "{}")

	result, err := handler.Handle(context.Background(), mcp.ToolCall{Name: "otus_teams"})
	require.NoError(t, err)

	assert.True(t, result.IsError)
	assert.Contains(t, result.Content[0].Text, "Authentication required")
}

func TestTeamsHandleUnauthorized(t *testing.T) {
	handler, _ := newTeamsHandler(t, http.StatusUnauthorized, "")

	ctx := auth.WithBearerToken(context.Background(), "expired")
	result, err := handler.Handle(ctx, mcp.ToolCall{Name: "otus_teams"})
	require.NoError(t, err)

	assert.True(t, result.IsError)
	assert.Equal(t, "Token is invalid or expired", result.Content[0].Text)
}

func TestTeamsHandleForbidden(t *testing.T) {
	handler, _ := newTeamsHandler(t, http.StatusForbidden, "")

	ctx := auth.WithBearerToken(context.Background(), "limited")
	result, err := handler.Handle(ctx, mcp.ToolCall{Name: "otus_teams"})
	require.NoError(t, err)

	assert.True(t, result.IsError)
	assert.Equal(t, "Insufficient permissions to access teams", result.Content[0].Text)
}

func TestTeamsHandleServerError(t *testing.T) {
	handler, _ := newTeamsHandler(t, http.StatusInternalServerError, "boom")

	ctx := auth.WithBearerToken(context.Background(), "token")
	result, err := handler.Handle(ctx, mcp.ToolCall{Name: "otus_teams"})
	require.NoError(t, err)

	assert.True(t, result.IsError)
	assert.Contains(t, result.Content[0].Text, "Failed to fetch teams")
}
