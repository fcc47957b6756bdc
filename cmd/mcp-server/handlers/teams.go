// Package handlers contains the MCP tool handlers that call the Otus API on
// behalf of the authenticated user.
package handlers

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/tecrolabs/otus-mcp/internal/auth"
	"github.com/tecrolabs/otus-mcp/internal/upstream"
	"github.com/tecrolabs/otus-mcp/pkg/mcp"
)

// TeamsHandler exposes the Otus teams listing as an MCP tool.
type TeamsHandler struct {
	otus *upstream.OtusClient
}

// NewTeamsHandler creates the handler.
func NewTeamsHandler(otus *upstream.OtusClient) *TeamsHandler {
	return &TeamsHandler{otus: otus}
}

// Tool returns the tool definition.
func (h *TeamsHandler) Tool() mcp.Tool {
	return mcp.Tool{
		Name:        "otus_teams",
		Description: "Get the teams the authenticated user belongs to",
		InputSchema: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
		},
	}
}

// Handle forwards the caller's bearer token to the Otus teams endpoint and
// returns the API response verbatim.
func (h *TeamsHandler) Handle(ctx context.Context, call mcp.ToolCall) (mcp.ToolResult, error) {
	token, ok := auth.BearerTokenFromContext(ctx)
	if !ok || token == "" {
		return mcp.ErrorResult("Authentication required: no bearer token in request"), nil
	}

	body, err := h.otus.GetTeams(ctx, token)
	if err != nil {
		var otusErr *upstream.OtusError
		if errors.As(err, &otusErr) {
			log.Warnf("Teams fetch failed: %d - %s", otusErr.StatusCode, otusErr.Message)
			switch otusErr.StatusCode {
			case 401:
				return mcp.ErrorResult("Token is invalid or expired"), nil
			case 403:
				return mcp.ErrorResult("Insufficient permissions to access teams"), nil
			default:
				return mcp.ErrorResult("Failed to fetch teams: " + otusErr.Message), nil
			}
		}
		log.Errorf("Teams fetch failed: %v", err)
		return mcp.ErrorResult("Failed to fetch teams: " + err.Error()), nil
	}

	return mcp.TextResult(body), nil
}
