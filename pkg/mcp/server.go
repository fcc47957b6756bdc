package mcp

import (
	"context"
	"fmt"
	"sync"
)

// ToolHandler executes a tool call. The context carries request-scoped
// values such as the caller's bearer token.
type ToolHandler func(ctx context.Context, call ToolCall) (ToolResult, error)

// Server holds the registered tools and dispatches calls to their handlers
type Server struct {
	name     string
	version  string
	mu       sync.RWMutex
	tools    []Tool
	handlers map[string]ToolHandler
}

// NewServer creates a new MCP server
func NewServer(name, version string) *Server {
	return &Server{
		name:     name,
		version:  version,
		handlers: make(map[string]ToolHandler),
	}
}

// RegisterTool adds a tool and its handler
func (s *Server) RegisterTool(tool Tool, handler ToolHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tools = append(s.tools, tool)
	s.handlers[tool.Name] = handler
}

// Tools returns the registered tool definitions
func (s *Server) Tools() []Tool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Tool, len(s.tools))
	copy(out, s.tools)
	return out
}

// Call dispatches a tool call to its registered handler
func (s *Server) Call(ctx context.Context, call ToolCall) (ToolResult, error) {
	s.mu.RLock()
	handler, ok := s.handlers[call.Name]
	s.mu.RUnlock()
	if !ok {
		return ToolResult{}, fmt.Errorf("unknown tool: %s", call.Name)
	}
	return handler(ctx, call)
}
